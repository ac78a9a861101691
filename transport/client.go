package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-exchange-client/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"

	contentTypeJSON = "application/json"
)

// RequestInterceptor may rewrite an outgoing request. Returning an error aborts the call.
type RequestInterceptor func(ctx context.Context, req Request) (Request, error)

// ResponseInterceptor sees every completed call: resp is set for any received
// response (including non-2xx), err is set for non-2xx and transport failures.
// It returns the outcome handed to the next interceptor and finally the caller.
type ResponseInterceptor func(ctx context.Context, req Request, resp *Response, err error) (*Response, error)

type registered[T any] struct {
	id int
	fn T
}

// Client is the single configured HTTP client shared by every API call.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	log       zerolog.Logger
	userAgent string

	mu       sync.RWMutex
	defaults http.Header
	requests []registered[RequestInterceptor]
	response []registered[ResponseInterceptor]
	nextID   int
}

// Option defines a function type to modify the Client instance.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// WithCookieJar holds the ambient refresh credential.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.http.Jar = jar
	}
}

// WithRateLimit caps outgoing requests per second; rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("[transport New] invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("[transport New] base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log.Logger,
		defaults: make(http.Header),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Jar returns the cookie jar holding the ambient refresh credential, if any.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// SetDefaultHeader sets a header attached to every subsequent request.
func (c *Client) SetDefaultHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults.Set(key, value)
}

func (c *Client) DeleteDefaultHeader(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults.Del(key)
}

func (c *Client) DefaultHeader(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults.Get(key)
}

// UseRequest registers a request interceptor and returns its id for EjectRequest.
func (c *Client) UseRequest(fn RequestInterceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.requests = append(c.requests, registered[RequestInterceptor]{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Client) EjectRequest(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = eject(c.requests, id)
}

// UseResponse registers a response interceptor and returns its id for EjectResponse.
func (c *Client) UseResponse(fn ResponseInterceptor) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.response = append(c.response, registered[ResponseInterceptor]{id: c.nextID, fn: fn})
	return c.nextID
}

func (c *Client) EjectResponse(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = eject(c.response, id)
}

func eject[T any](list []registered[T], id int) []registered[T] {
	out := list[:0:0]
	for _, r := range list {
		if r.id != id {
			out = append(out, r)
		}
	}
	return out
}

// Do sends req through the request interceptors, the network, and the
// response interceptors, in registration order.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	c.mu.RLock()
	requests := append([]registered[RequestInterceptor](nil), c.requests...)
	responses := append([]registered[ResponseInterceptor](nil), c.response...)
	c.mu.RUnlock()

	var err error
	for _, ic := range requests {
		if req, err = ic.fn(ctx, req); err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, req)
	for _, ic := range responses {
		resp, err = ic.fn(ctx, req, resp, err)
	}
	return resp, err
}

// DoJSON is Do followed by decoding the body into out (skipped when out is nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.DoJSON(ctx, NewRequest(http.MethodGet, path).WithQuery(query), out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, NewRequest(http.MethodPost, path).WithBody(body), out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.DoJSON(ctx, NewRequest(http.MethodPut, path).WithBody(body), out)
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("[transport] %s %s: rate limit: %w", req.Method, req.Path, err)
		}
	}

	httpReq, err := c.build(ctx, req)
	if err != nil {
		return nil, err
	}
	requestID := httpReq.Header.Get(HeaderRequestID)

	start := time.Now()
	httpResp, err := c.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordRequest(req.Method, 0, elapsed.Seconds())
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Str("request_id", requestID).Msg("request failed")
		return nil, fmt.Errorf("[transport] %s %s: %w", req.Method, req.Path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		c.metrics.RecordRequest(req.Method, 0, elapsed.Seconds())
		return nil, fmt.Errorf("[transport] %s %s: reading body: %w", req.Method, req.Path, err)
	}

	c.metrics.RecordRequest(req.Method, httpResp.StatusCode, elapsed.Seconds())
	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", httpResp.StatusCode).
		Int("retries", req.Retries).
		Dur("elapsed", elapsed).
		Str("request_id", requestID).
		Msg("request")

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		Request:    req,
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, newAPIError(req, httpResp.StatusCode, body)
	}
	return resp, nil
}

func (c *Client) build(ctx context.Context, req Request) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	u.RawQuery = ""
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("[transport] %s %s: encoding body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[transport] %s %s: %w", req.Method, req.Path, err)
	}

	c.mu.RLock()
	for k, v := range c.defaults {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	c.mu.RUnlock()

	for k, v := range req.Header {
		httpReq.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}

	httpReq.Header.Set("Accept", contentTypeJSON)
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", contentTypeJSON)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, uuid.New().String())
	}
	return httpReq, nil
}
