package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"golang.org/x/oauth2"
)

// expiryDelta refreshes a credential slightly before the server rejects it.
const expiryDelta = 10 * time.Second

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// CredentialExpiry reads the exp claim of a JWT access credential without
// verifying it. ok is false for opaque credentials or a missing claim.
func CredentialExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

type tokenSource struct {
	ctx context.Context
	c   *Controller
}

// TokenSource exposes the session credential as an oauth2.TokenSource so
// oauth2.NewClient can ride on it. A credential that is known to be expired
// is refreshed first.
func (c *Controller) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, c: c}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	token := ts.c.state.AccessToken()
	if token == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNotAuthenticated, "[tokenSource.Token]")
	}

	expiry, ok := CredentialExpiry(token)
	if ok && !expiry.After(NowTimeFunc().Add(expiryDelta)) {
		refreshed, err := ts.c.Refresh(ts.ctx)
		if err != nil {
			return nil, err
		}
		token = refreshed
		expiry, ok = CredentialExpiry(token)
	}

	out := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	if ok {
		out.Expiry = expiry
	}
	return out, nil
}

var _ oauth2.TokenSource = (*tokenSource)(nil)

