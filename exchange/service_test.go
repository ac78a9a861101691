package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-exchange-client/exchange"
	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/querycache"
	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/stretchr/testify/require"
)

type hits struct {
	mu     sync.Mutex
	counts map[string]int
	bodies map[string]map[string]any
}

func (h *hits) record(r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	h.counts[key]++
	var body map[string]any
	if json.NewDecoder(r.Body).Decode(&body) == nil {
		h.bodies[key] = body
	}
}

func (h *hits) count(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[key]
}

func (h *hits) body(key string) map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bodies[key]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newExchange serves a small fixed API: alice holds 2 BTC and 100 ETH.
func newExchange(t *testing.T) (*exchange.Service, *hits) {
	t.Helper()
	h := &hits{counts: map[string]int{}, bodies: map[string]map[string]any{}}
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			h.record(r)
			fn(w, r)
		})
	}

	order := map[string]any{"id": 5, "userId": 1, "type": "SELL", "currency": "BTC", "amount": 1, "pricePerCoin": 100, "fiat": "THB", "status": "ACTIVE"}

	handle("GET /api/wallets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"wallets": []map[string]any{
			{"id": 1, "userId": 1, "currency": "BTC", "balance": 2},
			{"id": 2, "userId": 1, "currency": "ETH", "balance": 100},
		}})
	})
	handle("GET /api/wallets/{currency}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"wallet": map[string]any{"id": 1, "currency": r.PathValue("currency"), "balance": 2}})
	})
	handle("POST /api/wallets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"wallet": map[string]any{"id": 3, "currency": "XRP"}})
	})
	handle("PUT /api/wallets/balance", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"wallet": map[string]any{"id": 1, "currency": "BTC", "balance": 3}})
	})
	handle("POST /api/wallets/transfer", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"transaction": map[string]any{"id": 9, "currency": "BTC", "amount": 1, "status": "COMPLETED"}})
	})
	handle("GET /api/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"orders": []any{order}})
	})
	handle("GET /api/orders/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"orders": []any{order}})
	})
	handle("POST /api/orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"message": "Order created successfully", "order": order})
	})
	handle("PUT /api/orders/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "5" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
			return
		}
		cancelled := map[string]any{"id": 5, "status": "CANCELLED"}
		writeJSON(w, http.StatusOK, map[string]any{"order": cancelled})
	})
	handle("PUT /api/orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"order": map[string]any{"id": 5, "status": "COMPLETED"}})
	})
	handle("GET /api/market/{currency}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"marketData": map[string]any{"currency": r.PathValue("currency"), "lastPrice": 100, "activeSellOrders": 1}})
	})
	handle("GET /api/market/{currency}/sell", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"orders": []any{order}})
	})
	handle("GET /api/market/{currency}/buy", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"orders": []any{}})
	})
	handle("GET /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"sentTransactions":     []any{map[string]any{"id": 1, "currency": "BTC", "amount": 1}},
			"receivedTransactions": []any{},
		})
	})
	handle("GET /api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"transaction": map[string]any{"id": 1, "currency": "BTC"}})
	})
	handle("POST /api/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"transaction": map[string]any{"id": 2, "currency": "ETH", "amount": 1}})
	})
	handle("POST /api/transactions/trade", func(w http.ResponseWriter, r *http.Request) {
		partial := map[string]any{"id": 5, "type": "SELL", "currency": "BTC", "amount": 0.5, "status": "ACTIVE"}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Trade executed successfully", "order": partial, "transaction": map[string]any{"id": 3}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client, err := transport.New(srv.URL)
	require.NoError(t, err)

	cache := querycache.New(32, time.Minute)
	return exchange.NewService(client, exchange.WithCache(cache)), h
}

func TestBalances(t *testing.T) {
	svc, h := newExchange(t)

	balances := svc.Balances(context.Background())
	require.Equal(t, map[string]float64{"BTC": 2, "ETH": 100, "XRP": 0, "DOGE": 0}, balances)

	svc.Balances(context.Background())
	require.Equal(t, 1, h.count("GET /api/wallets"), "second read served from cache")
}

func TestBalances_ErrorYieldsZeroes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client, err := transport.New(srv.URL)
	require.NoError(t, err)

	balances := exchange.NewService(client).Balances(context.Background())
	require.Equal(t, map[string]float64{"BTC": 0, "ETH": 0, "XRP": 0, "DOGE": 0}, balances)
}

func TestCreateOrder(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	_, err := svc.AllOrders(ctx, exchange.OrderFilter{})
	require.NoError(t, err)
	_, err = svc.UserOrders(ctx)
	require.NoError(t, err)

	order, err := svc.CreateOrder(ctx, exchange.NewOrder{Type: exchange.OrderSell, Currency: "BTC", Amount: 1, PricePerCoin: 100, Fiat: "THB"})
	require.NoError(t, err)
	require.Equal(t, int64(5), order.ID)
	require.Equal(t, "SELL", h.body("POST /api/orders")["type"])

	_, err = svc.AllOrders(ctx, exchange.OrderFilter{})
	require.NoError(t, err)
	_, err = svc.UserOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, h.count("GET /api/orders"), "order book refetched after create")
	require.Equal(t, 2, h.count("GET /api/orders/user"))
}

func TestCreateOrder_SellBeyondBalance(t *testing.T) {
	svc, h := newExchange(t)

	_, err := svc.CreateOrder(context.Background(), exchange.NewOrder{Type: exchange.OrderSell, Currency: "BTC", Amount: 3, PricePerCoin: 100, Fiat: "THB"})
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	require.Zero(t, h.count("POST /api/orders"))
}

func TestCreateOrder_BuySkipsBalanceCheck(t *testing.T) {
	svc, h := newExchange(t)

	_, err := svc.CreateOrder(context.Background(), exchange.NewOrder{Type: exchange.OrderBuy, Currency: "DOGE", Amount: 1000, PricePerCoin: 3, Fiat: "THB"})
	require.NoError(t, err)
	require.Zero(t, h.count("GET /api/wallets"))
	require.Equal(t, 1, h.count("POST /api/orders"))
}

func TestCreateOrder_Invalid(t *testing.T) {
	svc, h := newExchange(t)

	_, err := svc.CreateOrder(context.Background(), exchange.NewOrder{Type: exchange.OrderBuy, Currency: "BTC", Fiat: "THB"})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrder)
	require.Zero(t, h.count("POST /api/orders"))
}

func TestAllOrders_FilterIsPartOfKey(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	_, err := svc.AllOrders(ctx, exchange.OrderFilter{Currency: "BTC"})
	require.NoError(t, err)
	_, err = svc.AllOrders(ctx, exchange.OrderFilter{Currency: "ETH"})
	require.NoError(t, err)
	_, err = svc.AllOrders(ctx, exchange.OrderFilter{Currency: "BTC"})
	require.NoError(t, err)

	require.Equal(t, 2, h.count("GET /api/orders"))
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newExchange(t)

	order, err := svc.CancelOrder(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderCancelled, order.Status)

	_, err = svc.CancelOrder(ctx, 6)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.Equal(t, "Order not found", apperrors.Message(err))
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	order, err := svc.UpdateOrderStatus(ctx, 5, exchange.OrderCompleted)
	require.NoError(t, err)
	require.Equal(t, exchange.OrderCompleted, order.Status)
	require.Equal(t, "COMPLETED", h.body("PUT /api/orders/5/status")["status"])

	_, err = svc.UpdateOrderStatus(ctx, 5, "PAUSED")
	require.ErrorIs(t, err, apperrors.ErrInvalidOrder)
}

func TestMarket(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	data, err := svc.MarketData(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, 100.0, data.LastPrice)
	_, err = svc.MarketData(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, 1, h.count("GET /api/market/BTC"))

	sells, err := svc.SellOrders(ctx, "BTC")
	require.NoError(t, err)
	require.Len(t, sells, 1)
	buys, err := svc.BuyOrders(ctx, "BTC")
	require.NoError(t, err)
	require.Empty(t, buys)

	_, err = svc.MarketData(ctx, "LTC")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedCurrency)
}

func TestWallets(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	w, err := svc.Wallet(ctx, "BTC")
	require.NoError(t, err)
	require.Equal(t, "BTC", w.Currency)

	_, err = svc.Wallets(ctx)
	require.NoError(t, err)
	_, err = svc.CreateWallet(ctx, "XRP")
	require.NoError(t, err)
	_, err = svc.Wallets(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, h.count("GET /api/wallets"), "create invalidates balances")

	w, err = svc.UpdateWalletBalance(ctx, exchange.BalanceUpdate{Currency: "BTC", Amount: 1})
	require.NoError(t, err)
	require.Equal(t, 3.0, w.Balance)

	_, err = svc.CreateWallet(ctx, "LTC")
	require.ErrorIs(t, err, apperrors.ErrUnsupportedCurrency)
}

func TestTransferFunds(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	tx, err := svc.TransferFunds(ctx, exchange.ExternalTransfer("BTC", 1, "bc1qaddress"))
	require.NoError(t, err)
	require.Equal(t, int64(9), tx.ID)
	body := h.body("POST /api/wallets/transfer")
	require.Equal(t, "bc1qaddress", body["externalAddress"])
	require.Nil(t, body["receiverId"])

	_, err = svc.TransferFunds(ctx, exchange.InternalTransfer("BTC", 5, 2))
	require.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
	require.Equal(t, 1, h.count("POST /api/wallets/transfer"))
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	txs, err := svc.UserTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs.Sent, 1)
	require.Empty(t, txs.Received)

	tx, err := svc.Transaction(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "BTC", tx.Currency)

	_, err = svc.CreateTransaction(ctx, exchange.NewTransaction{ReceiverID: 2, Currency: "ETH", Amount: 1})
	require.NoError(t, err)
	_, err = svc.UserTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, h.count("GET /api/transactions"))
}

func TestTrade(t *testing.T) {
	ctx := context.Background()
	svc, h := newExchange(t)

	_, err := svc.UserOrders(ctx)
	require.NoError(t, err)
	svc.Balances(ctx)

	res, err := svc.Trade(ctx, exchange.TradeRequest{OrderID: 5, Amount: 0.5})
	require.NoError(t, err)
	require.Equal(t, "Trade executed successfully", res.Message)
	require.Equal(t, 0.5, res.Order.Amount)
	require.Equal(t, 0.5, h.body("POST /api/transactions/trade")["amount"])

	_, err = svc.UserOrders(ctx)
	require.NoError(t, err)
	svc.Balances(ctx)
	require.Equal(t, 2, h.count("GET /api/orders/user"))
	require.Equal(t, 2, h.count("GET /api/wallets"))

	_, err = svc.Trade(ctx, exchange.TradeRequest{OrderID: 5})
	require.ErrorIs(t, err, apperrors.ErrInvalidTrade)
}

func TestMutations_MissingEnvelope(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == exchange.PathWallets {
			writeJSON(w, http.StatusOK, map[string]any{"wallets": []map[string]any{{"currency": "BTC", "balance": 5}}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Order cancelled"})
	}))
	t.Cleanup(srv.Close)
	client, err := transport.New(srv.URL)
	require.NoError(t, err)
	cache := querycache.New(32, time.Minute)
	svc := exchange.NewService(client, exchange.WithCache(cache))

	tests := []struct {
		name string
		call func() (any, error)
	}{
		{"CreateOrder", func() (any, error) {
			return svc.CreateOrder(ctx, exchange.NewOrder{Type: exchange.OrderBuy, Currency: "BTC", Amount: 1, PricePerCoin: 1, Fiat: "THB"})
		}},
		{"UpdateOrderStatus", func() (any, error) { return svc.UpdateOrderStatus(ctx, 5, exchange.OrderCompleted) }},
		{"CancelOrder", func() (any, error) { return svc.CancelOrder(ctx, 5) }},
		{"CreateWallet", func() (any, error) { return svc.CreateWallet(ctx, "XRP") }},
		{"UpdateWalletBalance", func() (any, error) {
			return svc.UpdateWalletBalance(ctx, exchange.BalanceUpdate{Currency: "BTC", Amount: 1})
		}},
		{"TransferFunds", func() (any, error) {
			return svc.TransferFunds(ctx, exchange.ExternalTransfer("BTC", 1, "0xabc"))
		}},
		{"CreateTransaction", func() (any, error) {
			return svc.CreateTransaction(ctx, exchange.NewTransaction{ReceiverID: 2, Currency: "BTC", Amount: 1})
		}},
		{"Trade", func() (any, error) { return svc.Trade(ctx, exchange.TradeRequest{OrderID: 5, Amount: 1}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.call()
			require.ErrorIs(t, err, apperrors.ErrMalformedResult)
		})
	}

	// The backend accepted the mutations, so dependent queries were still dropped.
	svc.Balances(ctx)
	cache.Set(querycache.Key(querycache.UserOrders), []exchange.Order{})
	_, err = svc.CancelOrder(ctx, 5)
	require.ErrorIs(t, err, apperrors.ErrMalformedResult)
	_, ok := cache.Get(querycache.Key(querycache.UserOrders))
	require.False(t, ok)
}
