package cli

import (
	"bufio"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/session"
	"github.com/jrsteele09/go-exchange-client/users"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type credentialFlags struct {
	email         string
	password      string
	passwordStdin bool
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
	cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")
}

func (f *credentialFlags) credentials(cmd *cobra.Command) (users.Credentials, error) {
	creds := users.Credentials{Email: strings.TrimSpace(f.email), Password: f.password}
	if f.passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return creds, errors.Wrap(err, "reading password")
		}
		creds.Password = strings.TrimRight(line, "\r\n")
	}
	if creds.Password == "" {
		return creds, errors.New("a password is required (--password or --password-stdin)")
	}
	return creds, nil
}

func newLoginCmd(o *rootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := f.credentials(cmd)
			if err != nil {
				return err
			}
			app, err := o.session(cmd)
			if err != nil {
				return err
			}

			resp, err := app.Users.Login(cmd.Context(), creds.Email, creds.Password)
			if err != nil {
				return errors.Errorf("login failed: %s", apperrors.Message(err))
			}
			if err := app.Session.Login(cmd.Context(), resp.User, resp.AccessToken); err != nil {
				return err
			}
			o.printer.Success("Signed in as %s", app.Session.User().Email)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newRegisterCmd(o *rootOptions) *cobra.Command {
	var f credentialFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := f.credentials(cmd)
			if err != nil {
				return err
			}
			app, err := o.session(cmd)
			if err != nil {
				return err
			}

			resp, err := app.Users.Register(cmd.Context(), creds)
			if err != nil {
				return errors.Errorf("registration failed: %s", apperrors.Message(err))
			}
			o.printer.Success("%s", resp.Message)
			o.printer.Print("Run `exchangectl login --email %s` to sign in.", resp.User.Email)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := o.session(cmd)
			if err != nil {
				return err
			}
			app.Session.Logout(cmd.Context())
			o.printer.Success("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user and session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := o.session(cmd)
			if err != nil {
				return err
			}

			snap := app.Session.Snapshot()
			if snap.Status != session.StatusAuthenticated {
				o.printer.Print("Not signed in (%s)", snap.Status)
				return nil
			}
			o.printer.Print("User:    %s", snap.User)
			o.printer.Print("Policy:  %s", app.Session.Policy())
			if exp, ok := session.CredentialExpiry(snap.AccessToken); ok {
				o.printer.Print("Expires: %s (in %s)", exp.Local().Format(time.RFC3339), time.Until(exp).Round(time.Second))
			}
			o.printer.Print("Session: %s", app.Store.Path())
			return nil
		},
	}
}
