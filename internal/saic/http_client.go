package saic

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
	"sync"
	"time"

	"github.com/pfrederiksen/saic-ls/pkg/log"
)

// UserAgent is sent with every gateway request.
const UserAgent = "saic-ls/0.2.0"

// HTTPClient implements Client against the SAIC JSON gateway.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	log        log.Logger
	now        func() time.Time

	username    string
	password    string
	countryCode string // set when the username is a phone number

	// loginMu serializes logins so concurrent callers share one session.
	loginMu sync.Mutex

	mu      sync.RWMutex
	session *Session
}

// NewHTTPClient creates a gateway client. Without WithBaseURL it talks to the
// European gateway.
func NewHTTPClient(opts ...Option) *HTTPClient {
	client := &HTTPClient{
		baseURL:   baseURLEurope,
		userAgent: UserAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.NewNopLogger(),
		now: time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	if !strings.HasSuffix(client.baseURL, "/") {
		client.baseURL += "/"
	}

	return client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL sets the gateway base URL (see RegionBaseURL).
func WithBaseURL(url string) Option {
	return func(c *HTTPClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = httpClient
	}
}

// WithCredentials sets the account used for (re-)login. A non-empty
// countryCode marks the username as a phone number.
func WithCredentials(username, password, countryCode string) Option {
	return func(c *HTTPClient) {
		c.username = username
		c.password = password
		c.countryCode = countryCode
	}
}

// WithSession seeds the client with a previously cached session.
func WithSession(s *Session) Option {
	return func(c *HTTPClient) {
		c.session = s
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(c *HTTPClient) {
		c.log = l
	}
}

// IsAuthenticated reports whether the client holds a usable session.
func (c *HTTPClient) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Valid(c.now())
}

// Session returns a copy of the current session, or nil.
func (c *HTTPClient) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *HTTPClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return ""
	}
	return c.session.Token
}

// dropSession forgets the session if it still holds token.
func (c *HTTPClient) dropSession(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.Token == token {
		c.session = nil
	}
}

// ensureSession logs in lazily. The double check lets concurrent callers
// wait on a login already in progress instead of starting another.
func (c *HTTPClient) ensureSession(ctx context.Context) error {
	if c.IsAuthenticated() {
		return nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.IsAuthenticated() {
		return nil
	}
	return c.login(ctx)
}

// envelope is the common gateway response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call performs an authenticated request. A session rejected by the gateway
// triggers exactly one re-login and one retry.
func (c *HTTPClient) call(ctx context.Context, method, path string, query url.Values, body, result any) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	token := c.token()
	err := c.do(ctx, method, path, query, body, token, result)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.SessionExpired() {
		return err
	}

	c.log.Warn("session rejected by gateway, logging in again", "path", path, "reason", apiErr.Message)
	c.dropSession(token)

	if err := c.ensureSession(ctx); err != nil {
		return fmt.Errorf("re-login: %w", err)
	}

	if err := c.do(ctx, method, path, query, body, c.token(), result); err != nil {
		return fmt.Errorf("after re-login: %w", err)
	}
	return nil
}

// do executes a single request and decodes the envelope data into result.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, token string, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		msg, _ := io.ReadAll(resp.Body)
		return &APIError{Code: http.StatusUnauthorized, Message: strings.TrimSpace(string(msg))}
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(msg))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}

	if result != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}
