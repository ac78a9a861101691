package cli

import (
	"strconv"

	"github.com/jrsteele09/go-exchange-client/exchange"
	"github.com/spf13/cobra"
)

func newMarketCmd(o *rootOptions) *cobra.Command {
	var fiat string
	cmd := &cobra.Command{
		Use:   "market <currency>",
		Short: "Show market data and the active book for a coin",
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
			ctx := cmd.Context()

			data, err := app.Exchange.MarketData(ctx, currency)
			if err != nil {
				return err
			}
			o.printer.Header(currency + " market")
			if err := o.printer.Table([]string{"Last", "Bid", "Ask", "24h volume", "Buy orders", "Sell orders"}, [][]string{{
				exchange.FormatCurrency(data.LastPrice, fiat),
				exchange.FormatCurrency(data.HighestBid, fiat),
				exchange.FormatCurrency(data.LowestAsk, fiat),
				exchange.FormatCryptoAmount(data.Volume24h, currency),
				strconv.Itoa(data.ActiveBuyOrders),
				strconv.Itoa(data.ActiveSellOrders),
			}}); err != nil {
				return err
			}

			sells, err := app.Exchange.SellOrders(ctx, currency)
			if err != nil {
				return err
			}
			o.printer.Header("Sell orders")
			if err := o.printOrders(sells); err != nil {
				return err
			}

			buys, err := app.Exchange.BuyOrders(ctx, currency)
			if err != nil {
				return err
			}
			o.printer.Header("Buy orders")
			return o.printOrders(buys)
		},
	}
	cmd.Flags().StringVar(&fiat, "fiat", exchange.DefaultFiat, "fiat currency to show prices in")
	return cmd
}

func newTradeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trade <order-id> <amount>",
		Short: "Fill part or all of another user's order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
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

			res, err := app.Exchange.Trade(cmd.Context(), exchange.TradeRequest{OrderID: id, Amount: amount})
			if err != nil {
				return err
			}
			o.printer.Success("%s", res.Message)
			o.printer.Print("Order %d: %s %s left, %s",
				res.Order.ID, exchange.FormatCryptoAmount(res.Order.Amount, res.Order.Currency), res.Order.Currency, res.Order.Status)
			return nil
		},
	}
}
