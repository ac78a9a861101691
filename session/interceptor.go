package session

import (
	"context"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/metrics"
	"github.com/jrsteele09/go-exchange-client/transport"
)

const refreshKey = "refresh"

// authorize attaches the current credential. It reads the state on every
// call, so a credential installed by a refresh is picked up immediately.
func (c *Controller) authorize(_ context.Context, req transport.Request) (transport.Request, error) {
	token := c.state.AccessToken()
	if token == "" {
		return req, nil
	}
	return req.WithHeader(transport.HeaderAuthorization, transport.Bearer(token)), nil
}

// recoverUnauthorized turns a 401 into at most one refresh and one retry.
func (c *Controller) recoverUnauthorized(ctx context.Context, req transport.Request, resp *transport.Response, err error) (*transport.Response, error) {
	if err == nil || !apperrors.Is(err, apperrors.ErrUnauthorized) {
		return resp, err
	}
	if req.Retried() || req.NoAuthRetry {
		c.metrics.RecordAuthRetry(metrics.OutcomeRejected)
		return resp, err
	}
	current := c.state.AccessToken()
	if current == "" {
		c.metrics.RecordAuthRetry(metrics.OutcomeRejected)
		return resp, err
	}

	if c.policy == RefreshPolicyFailFast {
		return c.retryFailFast(ctx, req, resp, err)
	}
	return c.retryCoalesced(ctx, req, current)
}

func (c *Controller) retryFailFast(ctx context.Context, req transport.Request, resp *transport.Response, err error) (*transport.Response, error) {
	if !c.state.beginRefresh() {
		c.log.Debug().Str("path", req.Path).Msg("refresh already in flight, not retrying")
		c.metrics.RecordAuthRetry(metrics.OutcomeRejected)
		return resp, err
	}
	if _, rerr := c.runRefresh(ctx, true); rerr != nil {
		c.metrics.RecordAuthRetry(metrics.OutcomeFailure)
		return nil, rerr
	}
	c.metrics.RecordAuthRetry(metrics.OutcomeSuccess)
	return c.client.Do(ctx, req.Retry())
}

func (c *Controller) retryCoalesced(ctx context.Context, req transport.Request, current string) (*transport.Response, error) {
	// The credential was replaced while this request was on the wire: the
	// refresh it needs has already happened.
	if sent := req.Header.Get(transport.HeaderAuthorization); sent != "" && sent != transport.Bearer(current) {
		c.metrics.RecordAuthRetry(metrics.OutcomeShared)
		return c.client.Do(ctx, req.Retry())
	}

	_, shared, err := c.coalescedRefresh(ctx, current, true)
	if err != nil {
		c.metrics.RecordAuthRetry(metrics.OutcomeFailure)
		return nil, err
	}
	if shared {
		c.metrics.RecordAuthRetry(metrics.OutcomeShared)
	} else {
		c.metrics.RecordAuthRetry(metrics.OutcomeSuccess)
	}
	return c.client.Do(ctx, req.Retry())
}

// refresh runs a refresh under the controller's policy.
func (c *Controller) refresh(ctx context.Context, logoutOnFailure bool) (string, error) {
	if c.policy == RefreshPolicyFailFast {
		if !c.state.beginRefresh() {
			return "", &apperrors.AuthError{Reason: "refresh already in flight"}
		}
		return c.runRefresh(ctx, logoutOnFailure)
	}
	token, _, err := c.coalescedRefresh(ctx, c.state.AccessToken(), logoutOnFailure)
	return token, err
}

// coalescedRefresh joins the in-flight refresh or starts one. seen is the
// credential the caller found stale; if another refresh already replaced it,
// no new refresh is made. The refresh itself is detached from ctx so a caller
// giving up does not fail the others; each caller still stops waiting when
// its own ctx is done.
func (c *Controller) coalescedRefresh(ctx context.Context, seen string, logoutOnFailure bool) (string, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		if token := c.state.AccessToken(); token != "" && token != seen {
			return token, nil
		}
		c.state.refreshInFlight.Store(true)
		return c.runRefresh(detached, logoutOnFailure)
	})

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-ch:
		token, _ := res.Val.(string)
		return token, res.Shared, res.Err
	}
}

// runRefresh performs the refresh call. The caller has already marked the
// refresh in flight; runRefresh always clears the mark.
func (c *Controller) runRefresh(ctx context.Context, logoutOnFailure bool) (string, error) {
	token, err := c.api.RefreshAccessToken(ctx)
	if err != nil {
		c.state.endRefresh()
		c.metrics.RecordRefresh(metrics.OutcomeFailure)
		if logoutOnFailure {
			c.log.Warn().Err(err).Msg("refresh failed, logging out")
			c.Logout(ctx)
		}
		return "", err
	}

	c.installCredential(token)
	c.state.endRefresh()
	c.metrics.RecordRefresh(metrics.OutcomeSuccess)
	c.log.Debug().Msg("access token refreshed")
	return token, nil
}
