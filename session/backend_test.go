package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/jrsteele09/go-exchange-client/users"
	"github.com/stretchr/testify/require"
)

// backend is a scriptable auth API: tokens in valid are accepted, refresh
// hands out the tokens queued in next.
type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	valid         map[string]bool
	next          []string
	refreshStatus int
	refreshDelay  time.Duration
	refreshGate   chan struct{} // when set, refresh blocks until closed
	refreshStart  chan struct{} // signalled when a refresh call arrives
	profileStatus int
	logoutStatus  int
	logoutAbort   bool
	ordersStatus  int // forces every orders response when non-zero

	refreshCalls int
	inFlight     int
	maxInFlight  int
	logoutCalls  int
	ordersAuth   []string
	logoutAuth   []string
	profileUser  users.User
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{
		t:             t,
		valid:         make(map[string]bool),
		refreshStatus: http.StatusOK,
		profileStatus: http.StatusOK,
		logoutStatus:  http.StatusOK,
		profileUser:   users.User{ID: 1, Email: "alice@example.com"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+users.PathRefreshToken, b.handleRefresh)
	mux.HandleFunc("GET "+users.PathProfile, b.handleProfile)
	mux.HandleFunc("POST "+users.PathLogout, b.handleLogout)
	mux.HandleFunc("GET /api/orders", b.handleOrders)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) client() *transport.Client {
	c, err := transport.New(b.srv.URL)
	require.NoError(b.t, err)
	return c
}

func (b *backend) accept(tokens ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tok := range tokens {
		b.valid[tok] = true
	}
}

func (b *backend) revoke(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.valid, token)
}

// issue queues tokens for the next refresh calls; each becomes valid when issued.
func (b *backend) issue(tokens ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next = append(b.next, tokens...)
}

func (b *backend) set(fn func(b *backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *backend) get(fn func(b *backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *backend) authorized(r *http.Request) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && b.valid[token]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	delay, gate, start := b.refreshDelay, b.refreshGate, b.refreshStart
	b.mu.Unlock()

	if start != nil {
		start <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	time.Sleep(delay)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.inFlight--

	if b.refreshStatus != http.StatusOK {
		writeJSON(w, b.refreshStatus, map[string]string{"message": "Invalid refresh token"})
		return
	}
	if len(b.next) == 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No refresh token"})
		return
	}
	token := b.next[0]
	b.next = b.next[1:]
	b.valid[token] = true
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (b *backend) handleProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status, user := b.profileStatus, b.profileUser
	b.mu.Unlock()

	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"message": "profile unavailable"})
		return
	}
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (b *backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.logoutCalls++
	b.logoutAuth = append(b.logoutAuth, r.Header.Get("Authorization"))
	status, abort := b.logoutStatus, b.logoutAbort
	b.mu.Unlock()

	if abort {
		panic(http.ErrAbortHandler)
	}
	writeJSON(w, status, map[string]string{"message": "Logged out"})
}

func (b *backend) handleOrders(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.ordersAuth = append(b.ordersAuth, r.Header.Get("Authorization"))
	forced := b.ordersStatus
	b.mu.Unlock()

	if forced != 0 {
		writeJSON(w, forced, map[string]string{"message": "forced"})
		return
	}
	if !b.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": []any{}})
}
