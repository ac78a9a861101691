package transport

import (
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/go-exchange-client/internal/errors"
)

// Request describes one API call. It is a value: the With* helpers and Retry
// return modified copies and never touch the receiver's header or query maps,
// so a request captured by an interceptor can be re-submitted safely.
type Request struct {
	Method string
	Path   string // absolute API path, e.g. "/api/orders"
	Query  url.Values
	Header http.Header
	Body   any // JSON encoded when non-nil

	// Retries counts re-submissions after an authorization failure.
	Retries int
	// NoAuthRetry marks calls that must never trigger a refresh (the refresh
	// and logout calls themselves).
	NoAuthRetry bool
}

func NewRequest(method, path string) Request {
	return Request{Method: method, Path: path}
}

func (r Request) WithHeader(key, value string) Request {
	r.Header = r.Header.Clone()
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(key, value)
	return r
}

func (r Request) WithQuery(query url.Values) Request {
	r.Query = cloneValues(query)
	return r
}

func (r Request) WithBody(body any) Request {
	r.Body = body
	return r
}

func (r Request) WithoutAuthRetry() Request {
	r.NoAuthRetry = true
	return r
}

// Retry returns the copy to re-submit after a refresh.
func (r Request) Retry() Request {
	r.Header = r.Header.Clone()
	r.Query = cloneValues(r.Query)
	r.Retries++
	return r
}

func (r Request) Retried() bool {
	return r.Retries > 0
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    Request // the request as it was sent, after request interceptors
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return apperrors.Wrapf(apperrors.ErrMalformedResult, "[Response.Decode] empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperrors.Wrapf(apperrors.ErrMalformedResult, "[Response.Decode] %s %s: %v", r.Request.Method, r.Request.Path, err)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
}

func newAPIError(req Request, statusCode int, body []byte) *apperrors.APIError {
	apiErr := &apperrors.APIError{
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: statusCode,
		Body:       body,
	}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		apiErr.Message = eb.Message
	}
	return apiErr
}

// Bearer formats an access token for the Authorization header.
func Bearer(token string) string {
	return "Bearer " + token
}
