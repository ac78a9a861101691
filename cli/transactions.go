package cli

import (
	"sort"
	"strconv"
	"time"

	"github.com/jrsteele09/go-exchange-client/exchange"
	"github.com/jrsteele09/go-exchange-client/internal/utils"
	"github.com/spf13/cobra"
)

func newTransactionsCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transactions [id]",
		Short: "List your transactions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}
			me := app.Session.User()
			var myID int64
			if me != nil {
				myID = me.ID
			}

			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return err
				}
				tx, err := app.Exchange.Transaction(cmd.Context(), id)
				if err != nil {
					return err
				}
				return o.printer.Table(transactionHeaders, [][]string{transactionRow(*tx, myID)})
			}

			txs, err := app.Exchange.UserTransactions(cmd.Context())
			if err != nil {
				return err
			}
			all := append(append([]exchange.Transaction{}, txs.Sent...), txs.Received...)
			if len(all) == 0 {
				o.printer.Info("No transactions yet")
				return nil
			}
			sort.SliceStable(all, func(i, j int) bool {
				return all[i].CreatedAt.After(all[j].CreatedAt)
			})
			rows := make([][]string, 0, len(all))
			for _, tx := range all {
				rows = append(rows, transactionRow(tx, myID))
			}
			return o.printer.Table(transactionHeaders, rows)
		},
	}
}

var transactionHeaders = []string{"ID", "Date", "Type", "Direction", "Currency", "Amount", "Counterparty", "Status"}

func transactionRow(tx exchange.Transaction, myID int64) []string {
	direction := "IN"
	if utils.Equal(tx.SenderID, myID) {
		direction = "OUT"
	}
	return []string{
		strconv.FormatInt(tx.ID, 10),
		tx.CreatedAt.Local().Format(time.DateTime),
		tx.Type,
		direction,
		tx.Currency,
		exchange.FormatCryptoAmount(tx.Amount, tx.Currency),
		tx.Counterparty(myID),
		tx.Status,
	}
}
