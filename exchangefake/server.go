// Package exchangefake is an in-memory stand-in for the exchange API, served
// over httptest. It implements the HTTP contract the client relies on, with
// hooks to expire credentials and script refresh or logout failures.
package exchangefake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-exchange-client/exchange"
	"github.com/jrsteele09/go-exchange-client/users"
	fakeuserrepo "github.com/jrsteele09/go-exchange-client/users/repofake"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	RefreshCookieName = "refreshToken"

	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Server struct {
	srv        *httptest.Server
	users      users.UserRepo
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	lock sync.Mutex
	// access tokens minted before this generation are rejected
	generation    int
	refreshTokens map[string]int64
	wallets       map[int64]map[string]*exchange.Wallet
	orders        []*exchange.Order
	transactions  []*exchange.Transaction
	nextID        int64

	refreshStatus int
	refreshDelay  time.Duration
	refreshCount  int
	logoutStatus  int
	requests      []string
}

type Option func(*Server)

// WithAccessTokenTTL sets the lifetime of minted access tokens.
func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = ttl
	}
}

// WithUserRepo replaces the in-memory account store.
func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

// New starts a server. Close it when done.
func New(opts ...Option) *Server {
	s := &Server{
		users:         fakeuserrepo.NewFakeUserRepo(),
		secret:        []byte(uuid.NewString()),
		accessTTL:     DefaultAccessTokenTTL,
		refreshTTL:    DefaultRefreshTokenTTL,
		refreshTokens: make(map[string]int64),
		wallets:       make(map[int64]map[string]*exchange.Wallet),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(s.routes())
	return s
}

func (s *Server) URL() string {
	return s.srv.URL
}

func (s *Server) Close() {
	s.srv.Close()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+users.PathRegister, s.handleRegister)
	mux.HandleFunc("POST "+users.PathLogin, s.handleLogin)
	mux.HandleFunc("POST "+users.PathRefreshToken, s.handleRefresh)
	mux.HandleFunc("POST "+users.PathLogout, s.authed(s.handleLogout))
	mux.HandleFunc("GET "+users.PathProfile, s.authed(s.handleProfile))
	mux.HandleFunc("GET "+users.PathFindByEmail, s.authed(s.handleFindByEmail))

	mux.HandleFunc("GET "+exchange.PathWallets, s.authed(s.handleWallets))
	mux.HandleFunc("GET "+exchange.PathWallets+"/{currency}", s.authed(s.handleWallet))
	mux.HandleFunc("POST "+exchange.PathWallets, s.authed(s.handleCreateWallet))
	mux.HandleFunc("PUT "+exchange.PathWalletTopUp, s.authed(s.handleUpdateBalance))
	mux.HandleFunc("POST "+exchange.PathTransfer, s.authed(s.handleTransfer))

	mux.HandleFunc("GET "+exchange.PathOrders, s.authed(s.handleOrders))
	mux.HandleFunc("GET "+exchange.PathUserOrders, s.authed(s.handleUserOrders))
	mux.HandleFunc("POST "+exchange.PathOrders, s.authed(s.handleCreateOrder))
	mux.HandleFunc("PUT "+exchange.PathOrders+"/{id}/status", s.authed(s.handleOrderStatus))
	mux.HandleFunc("PUT "+exchange.PathOrders+"/{id}/cancel", s.authed(s.handleCancelOrder))

	mux.HandleFunc("GET "+exchange.PathMarket+"/{currency}", s.authed(s.handleMarketData))
	mux.HandleFunc("GET "+exchange.PathMarket+"/{currency}/{side}", s.authed(s.handleMarketOrders))

	mux.HandleFunc("GET "+exchange.PathTransactions, s.authed(s.handleTransactions))
	mux.HandleFunc("GET "+exchange.PathTransactions+"/{id}", s.authed(s.handleTransaction))
	mux.HandleFunc("POST "+exchange.PathTransactions, s.authed(s.handleCreateTransaction))
	mux.HandleFunc("POST "+exchange.PathTrade, s.authed(s.handleTrade))

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.lock.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.lock.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests lists "METHOD /path" for every request received so far.
func (s *Server) Requests() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.requests...)
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.generation++
}

// RevokeRefreshTokens forgets every refresh token so the next refresh fails with 401.
func (s *Server) RevokeRefreshTokens() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshTokens = make(map[string]int64)
}

// SetRefreshFailure makes every refresh call answer status. 0 restores normal behaviour.
func (s *Server) SetRefreshFailure(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshStatus = status
}

func (s *Server) SetRefreshDelay(d time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.refreshDelay = d
}

// SetLogoutFailure makes every logout call answer status. 0 restores normal behaviour.
func (s *Server) SetLogoutFailure(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.logoutStatus = status
}

func (s *Server) RefreshCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.refreshCount
}

// Register creates an account directly, bypassing the API.
func (s *Server) Register(email, password string) (*users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(email, hash)
	if err != nil {
		return nil, err
	}
	return &u.User, nil
}

// Fund credits amount of currency to the user's wallet, creating it if needed.
func (s *Server) Fund(userID int64, currency string, amount float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.wallet(userID, currency, true).Balance += amount
}

// Balance reads a user's balance; 0 when the wallet does not exist.
func (s *Server) Balance(userID int64, currency string) float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if w := s.wallet(userID, currency, false); w != nil {
		return w.Balance
	}
	return 0
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
