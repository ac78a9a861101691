package exchangefake

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-exchange-client/users"
)

type accessClaims struct {
	Email      string `json:"email"`
	Generation int    `json:"gen"`
	jwtlib.RegisteredClaims
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user *users.StoredUser)

// AccessToken mints an access token for user, as login and refresh do.
func (s *Server) AccessToken(user users.User) (string, error) {
	s.lock.Lock()
	gen := s.generation
	s.lock.Unlock()

	now := NowTimeFunc()
	claims := accessClaims{
		Email:      user.Email,
		Generation: gen,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verify(tokenString string) (*users.StoredUser, error) {
	var claims accessClaims
	_, err := jwtlib.ParseWithClaims(tokenString, &claims, func(*jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithTimeFunc(NowTimeFunc))
	if err != nil {
		return nil, err
	}

	s.lock.Lock()
	stale := claims.Generation < s.generation
	s.lock.Unlock()
	if stale {
		return nil, errors.New("token revoked")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(id)
}

func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Access token required")
			return
		}
		user, err := s.verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) issueRefreshCookie(w http.ResponseWriter, userID int64) {
	token := uuid.NewString()

	s.lock.Lock()
	s.refreshTokens[token] = userID
	s.lock.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.refreshTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds users.Credentials
	if !decode(w, r, &creds) {
		return
	}
	if err := creds.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.Register(creds.Email, creds.Password)
	if errors.Is(err, users.ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, users.RegisterResponse{Message: "User registered successfully", User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds users.Credentials
	if !decode(w, r, &creds) {
		return
	}
	stored, err := s.users.GetByEmail(creds.Email)
	if err != nil || !users.CheckPasswordHash(creds.Password, stored.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.AccessToken(stored.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	s.issueRefreshCookie(w, stored.ID)
	user := stored.User
	writeJSON(w, http.StatusOK, users.LoginResponse{User: &user, AccessToken: token})
}

// handleRefresh rotates the refresh cookie and mints a new access token.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	s.refreshCount++
	status, delay := s.refreshStatus, s.refreshDelay
	s.lock.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		writeError(w, status, "Refresh token rejected")
		return
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	s.lock.Lock()
	userID, ok := s.refreshTokens[cookie.Value]
	delete(s.refreshTokens, cookie.Value)
	s.lock.Unlock()
	if !ok {
		clearRefreshCookie(w)
		writeError(w, http.StatusForbidden, "Invalid refresh token")
		return
	}

	stored, err := s.users.GetByID(userID)
	if err != nil {
		writeError(w, http.StatusForbidden, "Invalid refresh token")
		return
	}
	token, err := s.AccessToken(stored.User)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	s.issueRefreshCookie(w, userID)
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ *users.StoredUser) {
	s.lock.Lock()
	status := s.logoutStatus
	s.lock.Unlock()
	if status != 0 {
		writeError(w, status, "Logout failed")
		return
	}

	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		s.lock.Lock()
		delete(s.refreshTokens, cookie.Value)
		s.lock.Unlock()
	}
	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request, user *users.StoredUser) {
	writeJSON(w, http.StatusOK, map[string]users.User{"user": user.User})
}

func (s *Server) handleFindByEmail(w http.ResponseWriter, r *http.Request, _ *users.StoredUser) {
	found, err := s.users.GetByEmail(r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]users.User{"user": found.User})
}
