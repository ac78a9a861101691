package fakeuserrepo_test

import (
	"testing"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
	"github.com/jrsteele09/go-exchange-client/users"
	fakeuserrepo "github.com/jrsteele09/go-exchange-client/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	alice, err := repo.Create("alice@example.com", "hash-a")
	require.NoError(t, err)
	require.Equal(t, int64(1), alice.ID)

	bob, err := repo.Create("bob@example.com", "hash-b")
	require.NoError(t, err)
	require.Equal(t, int64(2), bob.ID)

	_, err = repo.Create("ALICE@example.com", "hash-c")
	require.ErrorIs(t, err, users.ErrEmailTaken)

	got, err := repo.GetByEmail("Alice@Example.com")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	got, err = repo.GetByID(2)
	require.NoError(t, err)
	require.Equal(t, "bob@example.com", got.Email)

	_, err = repo.GetByID(99)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	list, err = repo.List(1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, bob.ID, list[0].ID)

	list, err = repo.List(5, 1)
	require.NoError(t, err)
	require.Empty(t, list)
}
