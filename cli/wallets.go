package cli

import (
	"strconv"

	"github.com/jrsteele09/go-exchange-client/exchange"
	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func parseAmount(s string) (float64, error) {
	amount, err := strconv.ParseFloat(s, 64)
	if err != nil || amount <= 0 {
		return 0, errors.Errorf("invalid amount %q", s)
	}
	return amount, nil
}

func parseCurrency(s string) (string, error) {
	currency := exchange.NormalizeCurrency(s)
	if !exchange.IsSupportedCrypto(currency) {
		return "", errors.Wrapf(apperrors.ErrUnsupportedCurrency, "%q", s)
	}
	return currency, nil
}

func newBalancesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show the balance of every supported coin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}

			balances := app.Exchange.Balances(cmd.Context())
			rows := make([][]string, 0, len(exchange.CryptoCurrencies))
			for _, c := range exchange.CryptoCurrencies {
				rows = append(rows, []string{c.Code, c.Name, exchange.FormatCryptoAmount(balances[c.Code], c.Code)})
			}
			return o.printer.Table([]string{"Currency", "Name", "Balance"}, rows)
		},
	}
}

func newWalletsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallets [currency]",
		Short: "List wallets, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}

			var wallets []exchange.Wallet
			if len(args) == 1 {
				currency, err := parseCurrency(args[0])
				if err != nil {
					return err
				}
				w, err := app.Exchange.Wallet(cmd.Context(), currency)
				if err != nil {
					return err
				}
				wallets = append(wallets, *w)
			} else if wallets, err = app.Exchange.Wallets(cmd.Context()); err != nil {
				return err
			}

			if len(wallets) == 0 {
				o.printer.Info("No wallets yet. Create one with `exchangectl wallets create <currency>`.")
				return nil
			}
			rows := make([][]string, 0, len(wallets))
			for _, w := range wallets {
				rows = append(rows, []string{w.Currency, exchange.FormatCryptoAmount(w.Balance, w.Currency), w.Address})
			}
			return o.printer.Table([]string{"Currency", "Balance", "Address"}, rows)
		},
	}
	cmd.AddCommand(newWalletCreateCmd(o), newWalletDepositCmd(o))
	return cmd
}

func newWalletCreateCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <currency>",
		Short: "Open a wallet for a coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency, err := parseCurrency(args[0])
			if err != nil {
				return err
			}
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}

			w, err := app.Exchange.CreateWallet(cmd.Context(), currency)
			if err != nil {
				return err
			}
			o.printer.Success("Created %s wallet", w.Currency)
			return nil
		},
	}
}

func newWalletDepositCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <currency> <amount>",
		Short: "Add funds to a wallet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency, err := parseCurrency(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}

			w, err := app.Exchange.UpdateWalletBalance(cmd.Context(), exchange.BalanceUpdate{Currency: currency, Amount: amount})
			if err != nil {
				return err
			}
			o.printer.Success("%s balance is now %s", w.Currency, exchange.FormatCryptoAmount(w.Balance, w.Currency))
			return nil
		},
	}
}

func newTransferCmd(o *rootOptions) *cobra.Command {
	var to, address string
	cmd := &cobra.Command{
		Use:   "transfer <currency> <amount>",
		Short: "Send funds to another user or an external address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency, err := parseCurrency(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}

			var transfer exchange.Transfer
			if to != "" {
				receiver, err := app.Users.FindByEmail(cmd.Context(), to)
				if err != nil {
					return errors.Errorf("receiver %s: %s", to, apperrors.Message(err))
				}
				transfer = exchange.InternalTransfer(currency, amount, receiver.ID)
			} else {
				transfer = exchange.ExternalTransfer(currency, amount, address)
			}

			tx, err := app.Exchange.TransferFunds(cmd.Context(), transfer)
			if err != nil {
				return err
			}
			o.printer.Success("Sent %s %s (transaction %d)", exchange.FormatCryptoAmount(tx.Amount, tx.Currency), tx.Currency, tx.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "receiver email")
	cmd.Flags().StringVar(&address, "address", "", "external address")
	cmd.MarkFlagsMutuallyExclusive("to", "address")
	cmd.MarkFlagsOneRequired("to", "address")
	return cmd
}
