package credstore_test

import (
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/jrsteele09/go-exchange-client/credstore"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store := credstore.NewFileStore(dir + "/state")

	rec, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, rec.Cookies)

	err = store.Save(credstore.Record{
		Origin:  "http://127.0.0.1:5000",
		Cookies: []credstore.StoredCookie{{Name: "refreshToken", Value: "r1", Path: "/", HttpOnly: true}},
	})
	require.NoError(t, err)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	rec, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5000", rec.Origin)
	require.Len(t, rec.Cookies, 1)
	require.Equal(t, "r1", rec.Cookies[0].Value)
	require.True(t, rec.Cookies[0].HttpOnly)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is not an error")
	_, err = os.Stat(store.Path())
	require.True(t, os.IsNotExist(err))
}

func TestFileStore_Corrupt(t *testing.T) {
	dir := t.TempDir()
	store := credstore.NewFileStore(dir)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load()
	require.Error(t, err)
}

func TestJar_PersistsAndRestores(t *testing.T) {
	origin := mustURL(t, "http://127.0.0.1:5000")
	store := credstore.NewMemoryStore()

	jar, err := credstore.NewJar(store, origin)
	require.NoError(t, err)

	jar.SetCookies(mustURL(t, "http://127.0.0.1:5000/api/auth/login"), []*http.Cookie{
		{Name: "refreshToken", Value: "r1", Path: "/", MaxAge: 3600, HttpOnly: true},
	})
	require.Len(t, jar.Cookies(mustURL(t, "http://127.0.0.1:5000/api/orders")), 1)

	restored, err := credstore.NewJar(store, origin)
	require.NoError(t, err)
	cookies := restored.Cookies(mustURL(t, "http://127.0.0.1:5000/api/auth/refresh-token"))
	require.Len(t, cookies, 1)
	require.Equal(t, "refreshToken", cookies[0].Name)
	require.Equal(t, "r1", cookies[0].Value)
}

func TestJar_DeletedCookieIsForgotten(t *testing.T) {
	origin := mustURL(t, "http://127.0.0.1:5000")
	store := credstore.NewMemoryStore()

	jar, err := credstore.NewJar(store, origin)
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{{Name: "refreshToken", Value: "r1", Path: "/", MaxAge: 3600}})
	jar.SetCookies(origin, []*http.Cookie{{Name: "refreshToken", Value: "", Path: "/", MaxAge: -1}})

	rec, err := store.Load()
	require.NoError(t, err)
	require.Empty(t, rec.Cookies)
	require.Empty(t, jar.Cookies(origin))
}

func TestJar_SkipsExpiredAndForeignOrigin(t *testing.T) {
	origin := mustURL(t, "http://127.0.0.1:5000")
	store := credstore.NewMemoryStore()
	require.NoError(t, store.Save(credstore.Record{
		Origin: origin.String(),
		Cookies: []credstore.StoredCookie{
			{Name: "stale", Value: "x", Path: "/", Expires: time.Now().Add(-time.Hour)},
			{Name: "fresh", Value: "y", Path: "/", Expires: time.Now().Add(time.Hour)},
		},
	}))

	jar, err := credstore.NewJar(store, origin)
	require.NoError(t, err)
	cookies := jar.Cookies(origin)
	require.Len(t, cookies, 1)
	require.Equal(t, "fresh", cookies[0].Name)

	other, err := credstore.NewJar(store, mustURL(t, "http://127.0.0.1:6000"))
	require.NoError(t, err)
	require.Empty(t, other.Cookies(mustURL(t, "http://127.0.0.1:6000")))
}

func TestJar_Clear(t *testing.T) {
	origin := mustURL(t, "http://127.0.0.1:5000")
	store := credstore.NewFileStore(t.TempDir())

	jar, err := credstore.NewJar(store, origin)
	require.NoError(t, err)
	jar.SetCookies(origin, []*http.Cookie{{Name: "refreshToken", Value: "r1", Path: "/", MaxAge: 3600}})
	_, err = os.Stat(store.Path())
	require.NoError(t, err)

	jar.Clear()
	require.Empty(t, jar.Cookies(origin))
	_, err = os.Stat(store.Path())
	require.True(t, os.IsNotExist(err))
}
