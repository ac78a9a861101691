// Package session owns the authentication state of an exchange client: it
// bootstraps the session from the ambient refresh cookie, installs the bearer
// credential on the shared transport, refreshes it when a request comes back
// 401, and tears everything down on logout.
package session

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/metrics"
	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/jrsteele09/go-exchange-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultLoginRoute is where Logout sends the user.
const DefaultLoginRoute = "/login"

// RefreshPolicy decides what a 401 does while another request's refresh is in flight.
type RefreshPolicy string

const (
	// RefreshPolicyCoalesce waits for the in-flight refresh and retries with its result.
	RefreshPolicyCoalesce RefreshPolicy = "coalesce"
	// RefreshPolicyFailFast propagates the 401 without waiting.
	RefreshPolicyFailFast RefreshPolicy = "fail-fast"
)

// AuthAPI is the subset of the auth endpoints the controller drives.
type AuthAPI interface {
	RefreshAccessToken(ctx context.Context) (string, error)
	Profile(ctx context.Context, accessToken string) (*users.User, error)
	Logout(ctx context.Context) error
}

var _ AuthAPI = (*users.Service)(nil)

// Navigator routes the application to a named entry point.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// Clearer is client-side state dropped on logout.
type Clearer interface {
	Clear()
}

// ClearerFunc adapts a function to Clearer.
type ClearerFunc func()

func (f ClearerFunc) Clear() {
	f()
}

// Controller is the single owner of a session.
type Controller struct {
	client     *transport.Client
	api        AuthAPI
	state      *State
	policy     RefreshPolicy
	loginRoute string
	navigator  Navigator
	clearers   []Clearer
	log        zerolog.Logger
	metrics    *metrics.Metrics

	initOnce     sync.Once
	refreshGroup singleflight.Group

	requestInterceptor  int
	responseInterceptor int
}

// Option defines a function type to modify the Controller instance.
type Option func(*Controller)

func WithRefreshPolicy(p RefreshPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		c.navigator = n
	}
}

func WithLoginRoute(route string) Option {
	return func(c *Controller) {
		c.loginRoute = route
	}
}

// WithClearers registers state that Logout clears, e.g. the query cache.
func WithClearers(clearers ...Clearer) Option {
	return func(c *Controller) {
		c.clearers = append(c.clearers, clearers...)
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates the controller and installs its interceptors on client. The
// interceptors stay installed until Close.
func New(client *transport.Client, api AuthAPI, options ...Option) *Controller {
	c := &Controller{
		client:     client,
		api:        api,
		state:      newState(),
		policy:     RefreshPolicyCoalesce,
		loginRoute: DefaultLoginRoute,
		log:        log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.policy != RefreshPolicyFailFast {
		c.policy = RefreshPolicyCoalesce
	}

	c.requestInterceptor = client.UseRequest(c.authorize)
	c.responseInterceptor = client.UseResponse(c.recoverUnauthorized)
	return c
}

// Close removes the interceptors from the transport.
func (c *Controller) Close() {
	c.client.EjectRequest(c.requestInterceptor)
	c.client.EjectResponse(c.responseInterceptor)
}

// Initialize restores the session from the ambient refresh credential. Every
// failure is logged and leaves the session Unauthenticated. Only the first
// call does any work; later calls return the current status.
func (c *Controller) Initialize(ctx context.Context) Status {
	c.initOnce.Do(func() {
		defer c.state.finishInitializing()

		token, err := c.refresh(ctx, false)
		if err != nil {
			c.log.Info().Err(err).Msg("no session to restore")
			return
		}
		c.fetchProfile(ctx, token)
	})
	return c.state.Status()
}

// Login installs a credential obtained from the login endpoint. The profile
// is always re-fetched; a failed fetch is logged and the credential stays.
func (c *Controller) Login(ctx context.Context, user *users.User, accessToken string) error {
	if accessToken == "" {
		return apperrors.Wrapf(apperrors.ErrMissingAccessToken, "[Controller.Login]")
	}
	c.installCredential(accessToken)
	if user != nil {
		c.state.setUser(user)
	}
	c.fetchProfile(ctx, accessToken)
	return nil
}

// Logout ends the session. The logout call is best effort; local teardown
// always happens.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.api.Logout(ctx); err != nil {
		c.log.Warn().Err(err).Msg("logout call failed")
	}

	for _, cl := range c.clearers {
		cl.Clear()
	}
	c.state.clear()
	c.client.DeleteDefaultHeader(transport.HeaderAuthorization)

	if c.navigator != nil {
		c.navigator.Navigate(c.loginRoute)
	}
}

// Refresh obtains a new access credential now, sharing any refresh already in
// flight. A failed refresh logs the session out.
func (c *Controller) Refresh(ctx context.Context) (string, error) {
	return c.refresh(ctx, true)
}

func (c *Controller) IsAuthenticated() bool {
	return c.state.AccessToken() != ""
}

func (c *Controller) User() *users.User {
	return c.state.User()
}

func (c *Controller) AccessToken() string {
	return c.state.AccessToken()
}

func (c *Controller) Status() Status {
	return c.state.Status()
}

func (c *Controller) Snapshot() Snapshot {
	return c.state.Snapshot()
}

func (c *Controller) Policy() RefreshPolicy {
	return c.policy
}

func (c *Controller) installCredential(token string) {
	c.state.setCredential(token)
	c.client.SetDefaultHeader(transport.HeaderAuthorization, transport.Bearer(token))
}

func (c *Controller) fetchProfile(ctx context.Context, token string) {
	u, err := c.api.Profile(ctx, token)
	if err != nil {
		c.log.Warn().Err(err).Msg("fetching profile failed")
		return
	}
	c.state.setUser(u)
}
