package saic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const loginPath = "oauth/token"

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	LoginType   string `json:"loginType"`
	CountryCode string `json:"countryCode,omitempty"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// Login makes sure the client holds a usable session. A valid session, such
// as one restored from the cache, is kept; otherwise the configured
// credentials are used.
func (c *HTTPClient) Login(ctx context.Context) error {
	return c.ensureSession(ctx)
}

// login must be called with loginMu held.
func (c *HTTPClient) login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return ErrNotAuthenticated
	}

	req := loginRequest{
		Username:  c.username,
		Password:  c.password,
		LoginType: "email",
	}
	if c.countryCode != "" {
		req.LoginType = "phone"
		req.CountryCode = c.countryCode
	}

	c.log.Debug("logging in", "base_url", c.baseURL, "login_type", req.LoginType)

	var resp loginResponse
	err := c.do(ctx, http.MethodPost, loginPath, nil, req, "", &resp)

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return &AuthError{Reason: apiErr.Message}
	}
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}

	if resp.AccessToken == "" {
		return &AuthError{Reason: "no access token in response"}
	}

	expiresIn := time.Duration(resp.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}

	c.mu.Lock()
	c.session = &Session{
		Token:     resp.AccessToken,
		UserID:    resp.UserID,
		ExpiresAt: c.now().Add(expiresIn),
	}
	c.mu.Unlock()

	c.log.Info("login successful", "user_id", resp.UserID)
	return nil
}
