package cli

import (
	"context"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-exchange-client/exchange"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func parseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid order id %q", s)
	}
	return id, nil
}

func (o *rootOptions) orderRows(orders []exchange.Order) [][]string {
	rows := make([][]string, 0, len(orders))
	for _, ord := range orders {
		trader := ""
		if ord.User != nil {
			trader = ord.User.Email
		}
		rows = append(rows, []string{
			strconv.FormatInt(ord.ID, 10),
			o.printer.Side(ord.Type),
			ord.Currency,
			exchange.FormatCryptoAmount(ord.Amount, ord.Currency),
			exchange.FormatCurrency(ord.PricePerCoin, ord.Fiat),
			exchange.FormatCurrency(ord.Total(), ord.Fiat),
			o.printer.Status(ord.Status),
			trader,
		})
	}
	return rows
}

var orderHeaders = []string{"ID", "Type", "Currency", "Amount", "Price", "Total", "Status", "Trader"}

func (o *rootOptions) printOrders(orders []exchange.Order) error {
	if len(orders) == 0 {
		o.printer.Info("No orders found")
		return nil
	}
	return o.printer.Table(orderHeaders, o.orderRows(orders))
}

func newOrdersCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List, place and manage orders",
	}
	cmd.AddCommand(
		newOrdersListCmd(o),
		newOrdersMineCmd(o),
		newOrdersCreateCmd(o),
		newOrdersCancelCmd(o),
		newOrdersStatusCmd(o),
	)
	return cmd
}

func newOrdersListCmd(o *rootOptions) *cobra.Command {
	var orderType, currency, fiat, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the order book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}
			filter := exchange.OrderFilter{
				Type:     exchange.OrderType(strings.ToUpper(orderType)),
				Currency: exchange.NormalizeCurrency(currency),
				Fiat:     strings.ToUpper(fiat),
				Status:   exchange.OrderStatus(strings.ToUpper(status)),
			}
			orders, err := app.Exchange.AllOrders(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return o.printOrders(orders)
		},
	}
	cmd.Flags().StringVar(&orderType, "type", "", "BUY or SELL")
	cmd.Flags().StringVar(&currency, "currency", "", "coin code")
	cmd.Flags().StringVar(&fiat, "fiat", "", "fiat code")
	cmd.Flags().StringVar(&status, "status", string(exchange.OrderActive), "ACTIVE, COMPLETED or CANCELLED; empty for all")
	return cmd
}

func newOrdersMineCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "Show your own orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}
			orders, err := app.Exchange.UserOrders(cmd.Context())
			if err != nil {
				return err
			}
			return o.printOrders(orders)
		},
	}
}

func newOrdersCreateCmd(o *rootOptions) *cobra.Command {
	var fiat string
	cmd := &cobra.Command{
		Use:   "create <BUY|SELL> <currency> <amount> <price>",
		Short: "Place an order",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			currency, err := parseCurrency(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			price, err := parseAmount(args[3])
			if err != nil {
				return err
			}
			order := exchange.NewOrder{
				Type:         exchange.OrderType(strings.ToUpper(args[0])),
				Currency:     currency,
				Amount:       amount,
				PricePerCoin: price,
				Fiat:         strings.ToUpper(fiat),
			}
			if err := order.Validate(); err != nil {
				return err
			}

			app, err := o.signedIn(cmd)
			if err != nil {
				return err
			}
			created, err := app.Exchange.CreateOrder(cmd.Context(), order)
			if err != nil {
				return err
			}
			o.printer.Success("Placed %s order %d: %s %s at %s", created.Type, created.ID,
				exchange.FormatCryptoAmount(created.Amount, created.Currency), created.Currency,
				exchange.FormatCurrency(created.PricePerCoin, created.Fiat))
			return nil
		},
	}
	cmd.Flags().StringVar(&fiat, "fiat", exchange.DefaultFiat, "fiat currency of the price")
	return cmd
}

func newOrdersCancelCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel one of your active orders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.updateOrder(cmd, args[0], func(ctx context.Context, app *App, id int64) (*exchange.Order, error) {
				return app.Exchange.CancelOrder(ctx, id)
			})
		},
	}
}

func newOrdersStatusCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <ACTIVE|COMPLETED|CANCELLED>",
		Short: "Set the status of one of your orders",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := exchange.OrderStatus(strings.ToUpper(args[1]))
			return o.updateOrder(cmd, args[0], func(ctx context.Context, app *App, id int64) (*exchange.Order, error) {
				return app.Exchange.UpdateOrderStatus(ctx, id, status)
			})
		},
	}
}

func (o *rootOptions) updateOrder(cmd *cobra.Command, rawID string, update func(context.Context, *App, int64) (*exchange.Order, error)) error {
	id, err := parseOrderID(rawID)
	if err != nil {
		return err
	}
	app, err := o.signedIn(cmd)
	if err != nil {
		return err
	}
	order, err := update(cmd.Context(), app, id)
	if err != nil {
		return err
	}
	o.printer.Success("Order %d is %s", order.ID, order.Status)
	return nil
}
