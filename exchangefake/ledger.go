package exchangefake

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/jrsteele09/go-exchange-client/exchange"
	"github.com/jrsteele09/go-exchange-client/internal/utils"
	"github.com/jrsteele09/go-exchange-client/users"
)

// Transaction types recorded by the ledger.
const (
	TxTransfer   = "TRANSFER"
	TxWithdrawal = "WITHDRAWAL"
	TxTrade      = "TRADE"
)

// ledgerError is an HTTP status and message to answer a rejected operation with.
type ledgerError struct {
	status  int
	message string
}

// wallet returns the user's wallet of currency. The caller holds s.lock.
func (s *Server) wallet(userID int64, currency string, create bool) *exchange.Wallet {
	byCurrency, ok := s.wallets[userID]
	if !ok {
		if !create {
			return nil
		}
		byCurrency = make(map[string]*exchange.Wallet)
		s.wallets[userID] = byCurrency
	}
	w, ok := byCurrency[currency]
	if !ok && create {
		w = &exchange.Wallet{ID: s.id(), UserID: userID, Currency: currency, CreatedAt: NowTimeFunc()}
		byCurrency[currency] = w
	}
	return w
}

func (s *Server) userRef(id int64) *users.User {
	stored, err := s.users.GetByID(id)
	if err != nil {
		return nil
	}
	u := stored.User
	return &u
}

// move shifts amount of currency between two users. The caller holds s.lock.
func (s *Server) move(from, to int64, currency string, amount float64) *ledgerError {
	src := s.wallet(from, currency, false)
	if src == nil || src.Balance < amount {
		return &ledgerError{http.StatusBadRequest, "Insufficient balance"}
	}
	src.Balance -= amount
	if to != 0 {
		s.wallet(to, currency, true).Balance += amount
	}
	return nil
}

// transfer debits sender and records the transaction. The caller holds s.lock.
func (s *Server) transfer(sender *users.StoredUser, t exchange.Transfer) (*exchange.Transaction, *ledgerError) {
	tx := &exchange.Transaction{
		ID:        s.id(),
		SenderID:  utils.Ptr(sender.ID),
		Sender:    s.userRef(sender.ID),
		Currency:  t.Currency,
		Amount:    t.Amount,
		Status:    string(exchange.OrderCompleted),
		CreatedAt: NowTimeFunc(),
	}

	receiverID := utils.Value(t.ReceiverID)
	if receiverID > 0 {
		if receiverID == sender.ID {
			return nil, &ledgerError{http.StatusBadRequest, "Cannot transfer to yourself"}
		}
		receiver := s.userRef(receiverID)
		if receiver == nil {
			return nil, &ledgerError{http.StatusNotFound, "Receiver not found"}
		}
		tx.ReceiverID = utils.Ptr(receiverID)
		tx.Receiver = receiver
		tx.Type = TxTransfer
	} else {
		tx.IsExternal = true
		tx.ExternalAddress = utils.Value(t.ExternalAddress)
		tx.Type = TxWithdrawal
	}

	if lerr := s.move(sender.ID, receiverID, t.Currency, t.Amount); lerr != nil {
		return nil, lerr
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Server) findOrder(w http.ResponseWriter, r *http.Request) *exchange.Order {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err == nil {
		for _, o := range s.orders {
			if o.ID == id {
				return o
			}
		}
	}
	writeError(w, http.StatusNotFound, "Order not found")
	return nil
}

func (s *Server) handleWallets(w http.ResponseWriter, _ *http.Request, user *users.StoredUser) {
	s.lock.Lock()
	defer s.lock.Unlock()

	wallets := []exchange.Wallet{}
	for _, c := range exchange.CryptoCurrencies {
		if wal := s.wallet(user.ID, c.Code, false); wal != nil {
			wallets = append(wallets, *wal)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallets": wallets})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	s.lock.Lock()
	defer s.lock.Unlock()

	wal := s.wallet(user.ID, r.PathValue("currency"), false)
	if wal == nil {
		writeError(w, http.StatusNotFound, "Wallet not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"wallet": wal})
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req exchange.NewWallet
	if !decode(w, r, &req) {
		return
	}
	if !exchange.IsSupportedCrypto(req.Currency) {
		writeError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.wallet(user.ID, req.Currency, false) != nil {
		writeError(w, http.StatusBadRequest, "Wallet already exists")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"wallet": s.wallet(user.ID, req.Currency, true)})
}

func (s *Server) handleUpdateBalance(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req exchange.BalanceUpdate
	if !decode(w, r, &req) {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	wal := s.wallet(user.ID, req.Currency, false)
	if wal == nil {
		writeError(w, http.StatusNotFound, "Wallet not found")
		return
	}
	if wal.Balance+req.Amount < 0 {
		writeError(w, http.StatusBadRequest, "Insufficient balance")
		return
	}
	wal.Balance += req.Amount
	writeJSON(w, http.StatusOK, map[string]any{"wallet": wal})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req exchange.Transfer
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	tx, lerr := s.transfer(user, req)
	if lerr != nil {
		writeError(w, lerr.status, lerr.message)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Transfer completed", "transaction": tx})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req exchange.NewTransaction
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	tx, lerr := s.transfer(user, exchange.InternalTransfer(req.Currency, req.Amount, req.ReceiverID))
	if lerr != nil {
		writeError(w, lerr.status, lerr.message)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": tx})
}

func (s *Server) handleTransactions(w http.ResponseWriter, _ *http.Request, user *users.StoredUser) {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := exchange.UserTransactions{Sent: []exchange.Transaction{}, Received: []exchange.Transaction{}}
	for _, tx := range s.transactions {
		if utils.Equal(tx.SenderID, user.ID) {
			out.Sent = append(out.Sent, *tx)
		}
		if utils.Equal(tx.ReceiverID, user.ID) {
			out.Received = append(out.Received, *tx)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	s.lock.Lock()
	defer s.lock.Unlock()
	for _, tx := range s.transactions {
		if tx.ID != id {
			continue
		}
		if utils.Equal(tx.SenderID, user.ID) || utils.Equal(tx.ReceiverID, user.ID) {
			writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Transaction not found")
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request, _ *users.StoredUser) {
	q := r.URL.Query()
	s.lock.Lock()
	defer s.lock.Unlock()

	orders := []exchange.Order{}
	for _, o := range s.orders {
		if q.Get("type") != "" && string(o.Type) != q.Get("type") ||
			q.Get("currency") != "" && o.Currency != q.Get("currency") ||
			q.Get("fiat") != "" && o.Fiat != q.Get("fiat") ||
			q.Get("status") != "" && string(o.Status) != q.Get("status") {
			continue
		}
		orders = append(orders, *o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleUserOrders(w http.ResponseWriter, _ *http.Request, user *users.StoredUser) {
	s.lock.Lock()
	defer s.lock.Unlock()

	orders := []exchange.Order{}
	for _, o := range s.orders {
		if o.UserID == user.ID {
			orders = append(orders, *o)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req exchange.NewOrder
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if req.Type == exchange.OrderSell {
		if wal := s.wallet(user.ID, req.Currency, false); wal == nil || wal.Balance < req.Amount {
			writeError(w, http.StatusBadRequest, "Insufficient balance")
			return
		}
	}

	now := NowTimeFunc()
	order := &exchange.Order{
		ID:           s.id(),
		UserID:       user.ID,
		User:         s.userRef(user.ID),
		Type:         req.Type,
		Currency:     req.Currency,
		Amount:       req.Amount,
		PricePerCoin: req.PricePerCoin,
		Fiat:         req.Fiat,
		Status:       exchange.OrderActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.orders = append(s.orders, order)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Order created successfully", "order": order})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req struct {
		Status exchange.OrderStatus `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	order := s.findOrder(w, r)
	if order == nil {
		return
	}
	if order.UserID != user.ID {
		writeError(w, http.StatusForbidden, "Not your order")
		return
	}
	order.Status = req.Status
	order.UpdatedAt = NowTimeFunc()
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	s.lock.Lock()
	defer s.lock.Unlock()

	order := s.findOrder(w, r)
	if order == nil {
		return
	}
	if order.UserID != user.ID {
		writeError(w, http.StatusForbidden, "Not your order")
		return
	}
	if order.Status != exchange.OrderActive {
		writeError(w, http.StatusBadRequest, "Only active orders can be cancelled")
		return
	}
	order.Status = exchange.OrderCancelled
	order.UpdatedAt = NowTimeFunc()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Order cancelled", "order": order})
}

// handleTrade fills part of an order. Crypto flows from the seller to the
// buyer; fiat settlement happens off the exchange.
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, user *users.StoredUser) {
	var req exchange.TradeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	var order *exchange.Order
	for _, o := range s.orders {
		if o.ID == req.OrderID {
			order = o
		}
	}
	switch {
	case order == nil:
		writeError(w, http.StatusNotFound, "Order not found")
		return
	case order.Status != exchange.OrderActive:
		writeError(w, http.StatusBadRequest, "Order is not active")
		return
	case order.UserID == user.ID:
		writeError(w, http.StatusBadRequest, "Cannot trade with your own order")
		return
	case req.Amount > order.Amount:
		writeError(w, http.StatusBadRequest, "Amount exceeds order amount")
		return
	}

	seller, buyer := order.UserID, user.ID
	if order.Type == exchange.OrderBuy {
		seller, buyer = user.ID, order.UserID
	}
	if lerr := s.move(seller, buyer, order.Currency, req.Amount); lerr != nil {
		writeError(w, lerr.status, lerr.message)
		return
	}

	now := NowTimeFunc()
	order.Amount -= req.Amount
	if order.Amount <= 0 {
		order.Amount = 0
		order.Status = exchange.OrderCompleted
	}
	order.UpdatedAt = now

	tx := &exchange.Transaction{
		ID:           s.id(),
		SenderID:     utils.Ptr(seller),
		ReceiverID:   utils.Ptr(buyer),
		Sender:       s.userRef(seller),
		Receiver:     s.userRef(buyer),
		OrderID:      utils.Ptr(order.ID),
		Type:         TxTrade,
		Currency:     order.Currency,
		Amount:       req.Amount,
		PricePerCoin: order.PricePerCoin,
		Fiat:         order.Fiat,
		Status:       string(exchange.OrderCompleted),
		CreatedAt:    now,
	}
	s.transactions = append(s.transactions, tx)
	writeJSON(w, http.StatusOK, exchange.TradeResult{Message: "Trade executed successfully", Order: order, Transaction: tx})
}

func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request, _ *users.StoredUser) {
	currency := r.PathValue("currency")
	if !exchange.IsSupportedCrypto(currency) {
		writeError(w, http.StatusBadRequest, "Unsupported currency")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	data := exchange.MarketData{Currency: currency}
	for _, o := range s.orders {
		if o.Currency != currency || o.Status != exchange.OrderActive {
			continue
		}
		switch o.Type {
		case exchange.OrderBuy:
			data.ActiveBuyOrders++
			data.HighestBid = max(data.HighestBid, o.PricePerCoin)
		case exchange.OrderSell:
			data.ActiveSellOrders++
			if data.LowestAsk == 0 || o.PricePerCoin < data.LowestAsk {
				data.LowestAsk = o.PricePerCoin
			}
		}
	}

	since := NowTimeFunc().Add(-24 * time.Hour)
	for _, tx := range s.transactions {
		if tx.Type != TxTrade || tx.Currency != currency {
			continue
		}
		data.LastPrice = tx.PricePerCoin
		if tx.CreatedAt.After(since) {
			data.Volume24h += tx.Amount
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"marketData": data})
}

// handleMarketOrders lists the active side of the book, best price first.
func (s *Server) handleMarketOrders(w http.ResponseWriter, r *http.Request, _ *users.StoredUser) {
	var side exchange.OrderType
	switch r.PathValue("side") {
	case "buy":
		side = exchange.OrderBuy
	case "sell":
		side = exchange.OrderSell
	default:
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	currency := r.PathValue("currency")

	s.lock.Lock()
	defer s.lock.Unlock()

	orders := []exchange.Order{}
	for _, o := range s.orders {
		if o.Currency == currency && o.Type == side && o.Status == exchange.OrderActive {
			orders = append(orders, *o)
		}
	}
	slices.SortStableFunc(orders, func(a, b exchange.Order) int {
		if side == exchange.OrderBuy {
			return cmp.Compare(b.PricePerCoin, a.PricePerCoin)
		}
		return cmp.Compare(a.PricePerCoin, b.PricePerCoin)
	})
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
