package users_test

import (
	"testing"

	"github.com/jrsteele09/go-exchange-client/users"
	"github.com/stretchr/testify/require"
)

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   users.Credentials
		wantErr string
	}{
		{name: "valid", creds: users.Credentials{Email: "alice@example.com", Password: "secret1"}},
		{name: "missing email", creds: users.Credentials{Password: "secret1"}, wantErr: "email is required"},
		{name: "display name", creds: users.Credentials{Email: "Alice <alice@example.com>", Password: "secret1"}, wantErr: "invalid email address"},
		{name: "not an address", creds: users.Credentials{Email: "alice", Password: "secret1"}, wantErr: "invalid email address"},
		{name: "missing password", creds: users.Credentials{Email: "alice@example.com"}, wantErr: "password is required"},
		{name: "short password", creds: users.Credentials{Email: "alice@example.com", Password: "12345"}, wantErr: "at least 6 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("secret1")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", hash)
	require.True(t, users.CheckPasswordHash("secret1", hash))
	require.False(t, users.CheckPasswordHash("secret2", hash))
}

func TestUserString(t *testing.T) {
	var u *users.User
	require.Equal(t, "<anonymous>", u.String())
	require.Equal(t, "bob@example.com (id 7)", (&users.User{ID: 7, Email: "bob@example.com"}).String())
}
