package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is the single entry point for every call to the epoch API
type Client struct {
	baseURL    string
	tokens     *TokenHolder
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	limiter    *rate.Limiter
	metrics    *metrics
	logger     zerolog.Logger
}

// Request describes a single API call. The cancellation token is the
// context passed to Execute.
type Request struct {
	Path   string
	Method string
	Query  url.Values
	Header http.Header
	// Body is sent as-is when it is a string or []byte, JSON-encoded otherwise
	Body any
	// Timeout overrides the client default when positive
	Timeout time.Duration
}

// Response is a successful API response
type Response struct {
	StatusCode int
	Raw        []byte
	// Body is the parsed JSON value, or the raw text when it wasn't JSON
	Body any
}

// NewClient creates a new epoch API client
func NewClient(baseURL string, tokens *TokenHolder, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", ErrInvalidConfig, err)
	}
	if tokens == nil {
		tokens = NewTokenHolder("")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		timeout:    options.timeout,
		userAgent:  options.userAgent,
		limiter:    options.limiter,
		metrics:    newMetrics(options.registerer),
		logger:     logger,
	}, nil
}

// Tokens returns the token holder shared by every request
func (c *Client) Tokens() *TokenHolder {
	return c.tokens
}

// Execute performs the request and returns the parsed body. Non-JSON
// bodies are returned as a string.
func (c *Client) Execute(ctx context.Context, req Request) (any, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ExecuteRaw performs the request and returns the raw body
func (c *Client) ExecuteRaw(ctx context.Context, req Request) ([]byte, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Raw, nil
}

// ExecuteInto performs the request and decodes the body into dst
func (c *Client) ExecuteInto(ctx context.Context, req Request, dst any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Raw, dst); err != nil {
		return &Error{
			Kind:       KindShape,
			Method:     req.method(),
			URL:        req.Path,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Message:    "failed to decode response",
			Err:        err,
		}
	}
	return nil
}

// Do performs the request and classifies any failure as aborted, HTTP or
// transport
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := req.method()
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, NewValidationError("invalid request path", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, c.aborted(method, target, err)
	}

	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.send(ctx, method, target, req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	elapsed := time.Since(start)
	c.metrics.observe(method, status, err, elapsed)

	if err != nil && !IsAborted(err) {
		c.logger.Warn().
			Err(err).
			Str("method", method).
			Str("url", target).
			Int("status", status).
			Msg("API request failed")
	} else {
		c.logger.Debug().
			Str("method", method).
			Str("url", target).
			Int("status", status).
			Dur("elapsed", elapsed).
			Bool("aborted", err != nil).
			Msg("API request")
	}

	return resp, err
}

func (c *Client) send(ctx context.Context, method, target string, req Request) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.aborted(method, target, err)
		}
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, NewValidationError("failed to encode request body", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewValidationError("failed to create request", err)
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	setDefault(httpReq.Header, "Accept", "application/json")
	setDefault(httpReq.Header, "User-Agent", c.userAgent)
	if body != nil {
		setDefault(httpReq.Header, "Content-Type", "application/json")
	}
	// Read at send time: a token change only affects requests issued after it.
	if token := c.tokens.Get(); token != "" {
		setDefault(httpReq.Header, "Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isAbort(ctx, err) {
			return nil, c.aborted(method, target, err)
		}
		return nil, &Error{Kind: KindTransport, Method: method, URL: target, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isAbort(ctx, err) {
			return nil, c.aborted(method, target, err)
		}
		return nil, &Error{Kind: KindTransport, Method: method, URL: target, StatusCode: resp.StatusCode, Message: "failed to read response body", Err: err}
	}

	parsed := parseBody(raw)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Kind:       KindHTTP,
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       parsed,
		}
		apiErr.Message = apiErr.ServerMessage()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return &Response{StatusCode: resp.StatusCode, Raw: raw, Body: parsed}, apiErr
	}

	return &Response{StatusCode: resp.StatusCode, Raw: raw, Body: parsed}, nil
}

// resolve joins relative paths to the base URL; absolute URLs are kept
func (c *Client) resolve(path string, query url.Values) (string, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(path, "/")
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) aborted(method, target string, cause error) *Error {
	return &Error{
		Kind:    KindAborted,
		Method:  method,
		URL:     target,
		Message: "request aborted",
		Err:     fmt.Errorf("%w: %w", ErrAborted, cause),
	}
}

func (r Request) method() string {
	if r.Method != "" {
		return strings.ToUpper(r.Method)
	}
	if r.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

func isAbort(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func setDefault(h http.Header, key, value string) {
	if h.Get(key) == "" && value != "" {
		h.Set(key, value)
	}
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case string:
		return strings.NewReader(b), nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

// parseBody attempts JSON and falls back to the raw text
func parseBody(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
