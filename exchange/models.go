package exchange

import (
	"net/url"
	"time"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/internal/utils"
	"github.com/jrsteele09/go-exchange-client/users"
	"github.com/pkg/errors"
)

type OrderType string

const (
	OrderBuy  OrderType = "BUY"
	OrderSell OrderType = "SELL"
)

type OrderStatus string

const (
	OrderActive    OrderStatus = "ACTIVE"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

func (t OrderType) Valid() bool {
	return t == OrderBuy || t == OrderSell
}

// Opposite is the order type a trader fills against.
func (t OrderType) Opposite() OrderType {
	if t == OrderBuy {
		return OrderSell
	}
	return OrderBuy
}

func (s OrderStatus) Valid() bool {
	return s == OrderActive || s == OrderCompleted || s == OrderCancelled
}

// Order is a standing offer to buy or sell Amount of Currency at PricePerCoin Fiat.
type Order struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"userId"`
	User         *users.User `json:"user,omitempty"`
	Type         OrderType   `json:"type"`
	Currency     string      `json:"currency"`
	Amount       float64     `json:"amount"`
	PricePerCoin float64     `json:"pricePerCoin"`
	Fiat         string      `json:"fiat"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt,omitempty"`
}

// Total is the fiat value of the remaining amount.
func (o Order) Total() float64 {
	return o.Amount * o.PricePerCoin
}

type NewOrder struct {
	Type         OrderType `json:"type"`
	Currency     string    `json:"currency"`
	Amount       float64   `json:"amount"`
	PricePerCoin float64   `json:"pricePerCoin"`
	Fiat         string    `json:"fiat"`
}

func (o NewOrder) Validate() error {
	if !o.Type.Valid() {
		return errors.Wrapf(apperrors.ErrInvalidOrder, "order type %q", o.Type)
	}
	if !IsSupportedCrypto(o.Currency) {
		return errors.Wrapf(apperrors.ErrUnsupportedCurrency, "currency %q", o.Currency)
	}
	if !IsSupportedFiat(o.Fiat) {
		return errors.Wrapf(apperrors.ErrUnsupportedCurrency, "fiat %q", o.Fiat)
	}
	if o.Amount <= 0 || o.PricePerCoin <= 0 {
		return errors.Wrap(apperrors.ErrInvalidOrder, "invalid amount or price")
	}
	return nil
}

// OrderFilter narrows the order book listing. Zero fields are not sent.
type OrderFilter struct {
	Type     OrderType
	Currency string
	Fiat     string
	Status   OrderStatus
}

func (f OrderFilter) Values() url.Values {
	v := url.Values{}
	if f.Type != "" {
		v.Set("type", string(f.Type))
	}
	if f.Currency != "" {
		v.Set("currency", f.Currency)
	}
	if f.Fiat != "" {
		v.Set("fiat", f.Fiat)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	return v
}

func (f OrderFilter) params() []string {
	return []string{string(f.Type), f.Currency, f.Fiat, string(f.Status)}
}

type Wallet struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Currency  string    `json:"currency"`
	Balance   float64   `json:"balance"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewWallet struct {
	Currency string `json:"currency"`
}

// BalanceUpdate adjusts the balance of the caller's wallet by Amount (deposit
// when positive, withdrawal when negative).
type BalanceUpdate struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type Transaction struct {
	ID              int64       `json:"id"`
	SenderID        *int64      `json:"senderId,omitempty"`
	ReceiverID      *int64      `json:"receiverId,omitempty"`
	Sender          *users.User `json:"sender,omitempty"`
	Receiver        *users.User `json:"receiver,omitempty"`
	OrderID         *int64      `json:"orderId,omitempty"`
	Type            string      `json:"type"`
	Currency        string      `json:"currency"`
	Amount          float64     `json:"amount"`
	PricePerCoin    float64     `json:"pricePerCoin,omitempty"`
	Fiat            string      `json:"fiat,omitempty"`
	IsExternal      bool        `json:"isExternal"`
	ExternalAddress string      `json:"externalAddress,omitempty"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// Counterparty describes the other side of tx as seen by user userID.
func (tx Transaction) Counterparty(userID int64) string {
	if utils.Equal(tx.SenderID, userID) {
		if tx.IsExternal {
			if tx.ExternalAddress != "" {
				return tx.ExternalAddress
			}
			return "External"
		}
		if tx.Receiver != nil {
			return tx.Receiver.Email
		}
		return "External"
	}
	if tx.Sender != nil {
		return tx.Sender.Email
	}
	return "Unknown"
}

type UserTransactions struct {
	Sent     []Transaction `json:"sentTransactions"`
	Received []Transaction `json:"receivedTransactions"`
}

// Transfer moves funds to another user (ReceiverID) or out of the exchange
// (ExternalAddress). Exactly one destination is set.
type Transfer struct {
	Currency        string  `json:"currency"`
	Amount          float64 `json:"amount"`
	ReceiverID      *int64  `json:"receiverId"`
	ExternalAddress *string `json:"externalAddress"`
}

func InternalTransfer(currency string, amount float64, receiverID int64) Transfer {
	return Transfer{Currency: currency, Amount: amount, ReceiverID: utils.Ptr(receiverID)}
}

func ExternalTransfer(currency string, amount float64, address string) Transfer {
	return Transfer{Currency: currency, Amount: amount, ExternalAddress: utils.Ptr(address)}
}

func (t Transfer) Validate() error {
	if !IsSupportedCrypto(t.Currency) {
		return errors.Wrapf(apperrors.ErrUnsupportedCurrency, "currency %q", t.Currency)
	}
	if t.Amount <= 0 {
		return errors.Wrap(apperrors.ErrInvalidTransfer, "please enter a valid amount")
	}
	internal := utils.Value(t.ReceiverID) > 0
	external := utils.Value(t.ExternalAddress) != ""
	switch {
	case internal && external:
		return errors.Wrap(apperrors.ErrInvalidTransfer, "choose either a receiver or an external address")
	case !internal && !external:
		return errors.Wrap(apperrors.ErrInvalidTransfer, "a receiver or an external address is required")
	}
	return nil
}

// NewTransaction records a direct transfer to another user.
type NewTransaction struct {
	ReceiverID int64   `json:"receiverId"`
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount"`
}

func (t NewTransaction) Validate() error {
	if !IsSupportedCrypto(t.Currency) {
		return errors.Wrapf(apperrors.ErrUnsupportedCurrency, "currency %q", t.Currency)
	}
	if t.ReceiverID <= 0 {
		return errors.Wrap(apperrors.ErrInvalidTransfer, "receiver is required")
	}
	if t.Amount <= 0 {
		return errors.Wrap(apperrors.ErrInvalidTransfer, "please enter a valid amount")
	}
	return nil
}

// TradeRequest fills Amount of an existing order.
type TradeRequest struct {
	OrderID int64   `json:"orderId"`
	Amount  float64 `json:"amount"`
}

func (t TradeRequest) Validate() error {
	if t.OrderID <= 0 {
		return errors.Wrap(apperrors.ErrInvalidTrade, "order is required")
	}
	if t.Amount <= 0 {
		return errors.Wrap(apperrors.ErrInvalidTrade, "please enter amount to trade")
	}
	return nil
}

type TradeResult struct {
	Message     string       `json:"message"`
	Order       *Order       `json:"order,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// MarketData summarises the active order book of one currency.
type MarketData struct {
	Currency         string  `json:"currency"`
	LastPrice        float64 `json:"lastPrice"`
	HighestBid       float64 `json:"highestBid"`
	LowestAsk        float64 `json:"lowestAsk"`
	Volume24h        float64 `json:"volume24h"`
	ActiveBuyOrders  int     `json:"activeBuyOrders"`
	ActiveSellOrders int     `json:"activeSellOrders"`
}
