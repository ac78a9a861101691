package session

import (
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-exchange-client/users"
)

type Status int

const (
	StatusInitializing Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// Snapshot is a consistent copy of the session at one instant.
type Snapshot struct {
	User            *users.User
	AccessToken     string
	Status          Status
	RefreshInFlight bool
}

// State holds the session of one Controller. Only the Controller mutates it;
// everyone else gets read accessors.
type State struct {
	mu          sync.RWMutex
	user        *users.User
	accessToken string
	status      Status

	refreshInFlight atomic.Bool
}

func newState() *State {
	return &State{status: StatusInitializing}
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		User:            copyUser(s.user),
		AccessToken:     s.accessToken,
		Status:          s.status,
		RefreshInFlight: s.refreshInFlight.Load(),
	}
}

func (s *State) User() *users.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) RefreshInFlight() bool {
	return s.refreshInFlight.Load()
}

func (s *State) setCredential(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
	s.status = StatusAuthenticated
}

func (s *State) setUser(u *users.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = copyUser(u)
}

// finishInitializing settles an Initializing status from the credential.
func (s *State) finishInitializing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInitializing {
		return
	}
	if s.accessToken != "" {
		s.status = StatusAuthenticated
		return
	}
	s.status = StatusUnauthenticated
}

func (s *State) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.accessToken = ""
	s.status = StatusUnauthenticated
}

// beginRefresh claims the refresh slot; false means one is already in flight.
func (s *State) beginRefresh() bool {
	return s.refreshInFlight.CompareAndSwap(false, true)
}

func (s *State) endRefresh() {
	s.refreshInFlight.Store(false)
}

func copyUser(u *users.User) *users.User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}
