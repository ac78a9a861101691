// Package cli implements the exchangectl command tree.
package cli

import (
	"context"

	"github.com/jrsteele09/go-exchange-client/internal/config"
	"github.com/jrsteele09/go-exchange-client/internal/logging"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// SetBuildInfo records the values stamped in at link time.
func SetBuildInfo(v, c, bt string) {
	version, commit, buildTime = v, c, bt
}

type rootOptions struct {
	cfgFile     string
	noColor     bool
	metricsFile string
	v       *viper.Viper

	cfg     config.Config
	log     zerolog.Logger
	printer *Printer
	app     *App
}

// NewRootCmd builds a fresh command tree. Each call has its own flag and
// config state.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "exchangectl",
		Short: "Command line client for the P2P crypto exchange",
		Long: `exchangectl signs in to the exchange and keeps the session alive between runs.

Example usage:
  exchangectl login --email alice@example.com --password ...
  exchangectl balances
  exchangectl orders list --currency BTC --type SELL
  exchangectl trade 42 0.25
  exchangectl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return o.finish()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.cfgFile, "config", "", "config file (default is .exchangectl.yaml)")
	flags.BoolVar(&o.noColor, "no-color", false, "disable coloured output")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write request and session metrics to this file on exit (Prometheus text format)")
	flags.String("base-url", "", "exchange API origin")
	flags.String("state-dir", "", "directory holding the persisted session")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("refresh-policy", "", "concurrent 401 handling: coalesce or fail-fast")

	_ = o.v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = o.v.BindPFlag("state_dir", flags.Lookup("state-dir"))
	_ = o.v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = o.v.BindPFlag("refresh_policy", flags.Lookup("refresh-policy"))

	root.AddCommand(
		newLoginCmd(o),
		newRegisterCmd(o),
		newLogoutCmd(o),
		newWhoamiCmd(o),
		newBalancesCmd(o),
		newWalletsCmd(o),
		newTransferCmd(o),
		newOrdersCmd(o),
		newMarketCmd(o),
		newTradeCmd(o),
		newTransactionsCmd(o),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree against os.Args, stopping work when ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.LoadWith(o.v, o.cfgFile)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	o.cfg = cfg
	o.log = logging.New(cmd.ErrOrStderr(), cfg.GetLogLevel(), cfg.GetEnv())
	o.printer = NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), colorsWanted(o.noColor))
	o.log.Debug().Str("base_url", cfg.GetBaseURL()).Str("state_dir", cfg.GetStateDir()).Msg("configuration loaded")
	return nil
}

// finish closes the app and dumps its metrics when asked to.
func (o *rootOptions) finish() error {
	if o.app == nil {
		return nil
	}
	app := o.app
	o.app = nil
	app.Close()
	if o.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(o.metricsFile, app.Registry); err != nil {
		return errors.Wrap(err, "writing metrics")
	}
	return nil
}

// session returns the wired app, building it and restoring the session on first use.
func (o *rootOptions) session(cmd *cobra.Command) (*App, error) {
	if o.app != nil {
		return o.app, nil
	}
	app, err := NewApp(cmd.Context(), o.cfg, o.log, o.printer)
	if err != nil {
		return nil, err
	}
	o.app = app
	return app, nil
}

// signedIn is session plus a check that a user is signed in.
func (o *rootOptions) signedIn(cmd *cobra.Command) (*App, error) {
	app, err := o.session(cmd)
	if err != nil {
		return nil, err
	}
	if err := app.requireSession(); err != nil {
		return nil, err
	}
	return app, nil
}
