package users

import (
	"context"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/transport"
	"github.com/pkg/errors"
)

// API paths of the auth endpoints.
const (
	PathLogin        = "/api/auth/login"
	PathRegister     = "/api/auth/register"
	PathProfile      = "/api/auth/profile"
	PathRefreshToken = "/api/auth/refresh-token"
	PathLogout       = "/api/auth/logout"
	PathFindByEmail  = "/api/auth/find-by-email"
)

// LoginResponse carries the access credential. The refresh credential arrives
// as an http-only cookie and lands in the transport's cookie jar.
type LoginResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"accessToken"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type userEnvelope struct {
	User *User `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Service calls the auth endpoints of the exchange API.
type Service struct {
	client *transport.Client
}

func NewService(client *transport.Client) *Service {
	return &Service{client: client}
}

// Login exchanges credentials for an access token. A 401 here means bad
// credentials, so it never triggers a refresh.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	req := transport.NewRequest(http.MethodPost, PathLogin).
		WithBody(Credentials{Email: email, Password: password}).
		WithoutAuthRetry()

	var out LoginResponse
	if err := s.client.DoJSON(ctx, req, &out); err != nil {
		return nil, errors.Wrap(err, "[users.Login]")
	}
	if out.AccessToken == "" {
		return nil, errors.Wrap(apperrors.ErrMissingAccessToken, "[users.Login]")
	}
	return &out, nil
}

func (s *Service) Register(ctx context.Context, creds Credentials) (*RegisterResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, errors.Wrap(err, "[users.Register]")
	}
	req := transport.NewRequest(http.MethodPost, PathRegister).
		WithBody(creds).
		WithoutAuthRetry()

	var out RegisterResponse
	if err := s.client.DoJSON(ctx, req, &out); err != nil {
		return nil, errors.Wrap(err, "[users.Register]")
	}
	return &out, nil
}

// Profile fetches the current user. A non-empty accessToken is sent
// explicitly; otherwise the request relies on the installed credential.
func (s *Service) Profile(ctx context.Context, accessToken string) (*User, error) {
	req := transport.NewRequest(http.MethodGet, PathProfile)
	if accessToken != "" {
		req = req.WithHeader(transport.HeaderAuthorization, transport.Bearer(accessToken))
	}

	var out userEnvelope
	if err := s.client.DoJSON(ctx, req, &out); err != nil {
		return nil, errors.Wrap(err, "[users.Profile]")
	}
	if out.User == nil {
		return nil, errors.Wrap(apperrors.ErrMalformedResult, "[users.Profile] missing user")
	}
	return out.User, nil
}

// RefreshAccessToken trades the ambient refresh cookie for a new access
// token. Every failure is an *errors.AuthError.
func (s *Service) RefreshAccessToken(ctx context.Context) (string, error) {
	req := transport.NewRequest(http.MethodPost, PathRefreshToken).WithoutAuthRetry()

	var out refreshResponse
	if err := s.client.DoJSON(ctx, req, &out); err != nil {
		reason := "refresh failed"
		if apperrors.StatusCode(err) != 0 {
			reason = "refresh rejected"
		}
		return "", &apperrors.AuthError{Reason: reason, Err: err}
	}
	if out.AccessToken == "" {
		return "", &apperrors.AuthError{Reason: "refresh returned no access token", Err: apperrors.ErrMissingAccessToken}
	}
	return out.AccessToken, nil
}

func (s *Service) Logout(ctx context.Context) error {
	req := transport.NewRequest(http.MethodPost, PathLogout).WithoutAuthRetry()
	if err := s.client.DoJSON(ctx, req, nil); err != nil {
		return errors.Wrap(err, "[users.Logout]")
	}
	return nil
}

// FindByEmail resolves another user, e.g. the receiver of an internal transfer.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, errors.Wrap(err, "[users.FindByEmail]")
	}

	var out userEnvelope
	if err := s.client.Get(ctx, PathFindByEmail, url.Values{"email": {email}}, &out); err != nil {
		return nil, errors.Wrapf(err, "[users.FindByEmail] %s", email)
	}
	if out.User == nil {
		return nil, errors.Wrapf(apperrors.ErrNotFound, "[users.FindByEmail] %s", email)
	}
	return out.User, nil
}
