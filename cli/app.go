package cli

import (
	"context"
	"net/url"

	"github.com/jrsteele09/go-exchange-client/credstore"
	"github.com/jrsteele09/go-exchange-client/exchange"
	"github.com/jrsteele09/go-exchange-client/internal/config"
	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/metrics"
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/jrsteele09/go-exchange-client/session"
	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/jrsteele09/go-exchange-client/users"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App is the wired client a command runs against.
type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Printer  *Printer
	Registry *prometheus.Registry
	Store    *credstore.FileStore
	Jar      *credstore.Jar
	Client   *transport.Client
	Users    *users.Service
	Cache    *querycache.Cache
	Session  *session.Controller
	Exchange *exchange.Service
}

// NewApp wires the transport, session and services from cfg and restores the
// session persisted in the state dir.
func NewApp(ctx context.Context, cfg config.Config, logger zerolog.Logger, printer *Printer) (*App, error) {
	origin, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[cli.NewApp] base url")
	}

	app := &App{
		Config:   cfg,
		Log:      logger,
		Printer:  printer,
		Registry: prometheus.NewRegistry(),
		Store:    credstore.NewFileStore(cfg.GetStateDir()),
	}
	m := metrics.New(app.Registry)

	app.Jar, err = credstore.NewJar(app.Store, origin, credstore.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[cli.NewApp] cookie jar")
	}

	transportOpts := []transport.Option{
		transport.WithCookieJar(app.Jar),
		transport.WithTimeout(cfg.GetRequestTimeout()),
		transport.WithUserAgent(cfg.GetUserAgent()),
		transport.WithMetrics(m),
		transport.WithLogger(logger),
	}
	if rps := cfg.GetRateLimit(); rps > 0 {
		transportOpts = append(transportOpts, transport.WithRateLimit(rps, cfg.GetRateBurst()))
	}
	app.Client, err = transport.New(cfg.GetBaseURL(), transportOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[cli.NewApp] transport")
	}

	app.Users = users.NewService(app.Client)
	app.Cache = querycache.New(cfg.GetCacheSize(), cfg.GetCacheStaleTime())
	app.Session = session.New(app.Client, app.Users,
		session.WithRefreshPolicy(session.RefreshPolicy(cfg.GetRefreshPolicy())),
		session.WithLoginRoute(cfg.GetLoginRoute()),
		session.WithClearers(app.Cache, app.Jar),
		session.WithNavigator(session.NavigatorFunc(app.sessionEnded)),
		session.WithLogger(logger),
		session.WithMetrics(m),
	)
	app.Exchange = exchange.NewService(app.Client, exchange.WithCache(app.Cache), exchange.WithLogger(logger))

	status := app.Session.Initialize(ctx)
	logger.Debug().Stringer("status", status).Str("user", app.Session.User().String()).Msg("session initialized")
	return app, nil
}

func (a *App) Close() {
	a.Session.Close()
}

// sessionEnded stands in for navigating to the login page.
func (a *App) sessionEnded(route string) {
	a.Log.Debug().Str("route", route).Msg("session ended")
	a.Printer.Warning("Session ended. Run `exchangectl login` to sign in again.")
}

// requireSession fails commands that need a signed-in user.
func (a *App) requireSession() error {
	if !a.Session.IsAuthenticated() {
		return errors.Wrap(apperrors.ErrNotAuthenticated, "run `exchangectl login` first")
	}
	return nil
}
