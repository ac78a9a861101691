package credstore

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

var _ http.CookieJar = (*Jar)(nil)

// Jar is an http.CookieJar that writes every cookie set by the API origin
// through to a Store and restores them on creation.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	store   Store
	origin  *url.URL
	cookies map[string]StoredCookie // keyed by name and path
	log     zerolog.Logger
}

type JarOption func(*Jar)

func WithLogger(logger zerolog.Logger) JarOption {
	return func(j *Jar) {
		j.log = logger
	}
}

// NewJar creates a jar for the API at origin, preloaded with any unexpired
// cookies previously saved to store for the same origin.
func NewJar(store Store, origin *url.URL, opts ...JarOption) (*Jar, error) {
	inner, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	j := &Jar{
		inner:   inner,
		store:   store,
		origin:  origin,
		cookies: make(map[string]StoredCookie),
		log:     log.Logger,
	}
	for _, opt := range opts {
		opt(j)
	}

	rec, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("[credstore.NewJar] %w", err)
	}
	if rec.Origin != origin.String() {
		return j, nil
	}

	now := NowTimeFunc()
	restored := make([]*http.Cookie, 0, len(rec.Cookies))
	for _, c := range rec.Cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		j.cookies[cookieKey(c.Name, c.Path)] = c
		restored = append(restored, c.Cookie())
	}
	if len(restored) > 0 {
		j.inner.SetCookies(origin, restored)
	}
	return j, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("[credstore] creating cookie jar: %w", err)
	}
	return jar, nil
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}

	now := NowTimeFunc()
	for _, c := range cookies {
		key := cookieKey(c.Name, c.Path)
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.cookies, key)
			continue
		}
		stored := StoredCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[key] = stored
	}

	if err := j.store.Save(j.record(now)); err != nil {
		j.log.Warn().Err(err).Msg("persisting refresh cookie failed")
	}
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Clear drops every cookie from memory and from the store.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if inner, err := newCookieJar(); err == nil {
		j.inner = inner
	}
	j.cookies = make(map[string]StoredCookie)
	if err := j.store.Clear(); err != nil {
		j.log.Warn().Err(err).Msg("clearing persisted refresh cookie failed")
	}
}

func (j *Jar) record(now time.Time) Record {
	rec := Record{Origin: j.origin.String(), SavedAt: now}
	for _, c := range j.cookies {
		rec.Cookies = append(rec.Cookies, c)
	}
	return rec
}

func cookieKey(name, path string) string {
	return name + ";" + path
}
