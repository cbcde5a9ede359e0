package saic

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestLogin_Success(t *testing.T) {
	g, server := newFakeGateway(t)
	client := newTestClient(server)

	if client.IsAuthenticated() {
		t.Fatal("Expected client to start unauthenticated")
	}

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if !client.IsAuthenticated() {
		t.Error("Expected client to be authenticated after login")
	}

	body := g.lastBody()
	if body["loginType"] != "email" {
		t.Errorf("Expected loginType email, got %v", body["loginType"])
	}
	if _, ok := body["countryCode"]; ok {
		t.Error("Expected no countryCode for email login")
	}

	session := client.Session()
	if session == nil || session.Token != "token-1" || session.UserID != "user-42" {
		t.Fatalf("Unexpected session: %+v", session)
	}
	if time.Until(session.ExpiresAt) < 59*time.Minute {
		t.Errorf("Expected expiry about an hour ahead, got %v", session.ExpiresAt)
	}
}

func TestLogin_PhoneNumber(t *testing.T) {
	g, server := newFakeGateway(t)
	client := NewHTTPClient(
		WithBaseURL(server.URL),
		WithCredentials("5551234", "secret", "+61"),
	)

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	body := g.lastBody()
	if body["loginType"] != "phone" || body["countryCode"] != "+61" {
		t.Errorf("Unexpected login body: %v", body)
	}
}

func TestLogin_Rejected(t *testing.T) {
	g, server := newFakeGateway(t)
	g.routes["/"+loginPath] = func(r *http.Request) (int, string, any) {
		return 4, "wrong password", nil
	}
	client := newTestClient(server)

	err := client.Login(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("Expected AuthError, got %v", err)
	}

	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Reason != "wrong password" {
		t.Errorf("Expected reason %q, got %q", "wrong password", authErr.Reason)
	}
}

func TestLogin_MissingToken(t *testing.T) {
	g, server := newFakeGateway(t)
	g.routes["/"+loginPath] = func(r *http.Request) (int, string, any) {
		return 0, "", map[string]any{"user_id": "user-42"}
	}
	client := newTestClient(server)

	if err := client.Login(context.Background()); !IsAuthError(err) {
		t.Fatalf("Expected AuthError, got %v", err)
	}
}

func TestLogin_NoCredentials(t *testing.T) {
	_, server := newFakeGateway(t)
	client := NewHTTPClient(WithBaseURL(server.URL))

	if err := client.Login(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("Expected ErrNotAuthenticated, got %v", err)
	}
}

func TestLogin_KeepsCachedSession(t *testing.T) {
	g, server := newFakeGateway(t)
	g.routes["/"+vehicleListPath] = func(r *http.Request) (int, string, any) {
		return 0, "", map[string]any{"vinList": []map[string]any{{"vin": "VIN1"}}}
	}

	// A restored session and no password, as after a restart without a prompt
	client := NewHTTPClient(
		WithBaseURL(server.URL),
		WithCredentials("driver@example.com", "", ""),
		WithSession(&Session{Token: "token-1", ExpiresAt: time.Now().Add(24 * time.Hour)}),
	)

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if g.loginCount() != 0 {
		t.Errorf("Expected the cached session to be reused, got %d logins", g.loginCount())
	}

	vehicles, err := client.ListVehicles(context.Background())
	if err != nil {
		t.Fatalf("ListVehicles() error = %v", err)
	}
	if len(vehicles) != 1 || vehicles[0].VIN != "VIN1" {
		t.Errorf("Unexpected vehicles: %+v", vehicles)
	}
	if session := client.Session(); session == nil || session.Token != "token-1" {
		t.Errorf("Expected cached token to be kept, got %+v", session)
	}
}

func TestLogin_ExpiredCachedSession(t *testing.T) {
	g, server := newFakeGateway(t)
	client := NewHTTPClient(
		WithBaseURL(server.URL),
		WithCredentials("driver@example.com", "secret", ""),
		WithSession(&Session{Token: "old", ExpiresAt: time.Now().Add(-time.Hour)}),
	)

	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if g.loginCount() != 1 {
		t.Errorf("Expected one login, got %d", g.loginCount())
	}
	if session := client.Session(); session == nil || session.Token != "token-1" {
		t.Errorf("Expected a fresh session, got %+v", session)
	}
}

func TestCall_ReloginOnce(t *testing.T) {
	g, server := newFakeGateway(t)
	g.routes["/"+vehicleListPath] = func(r *http.Request) (int, string, any) {
		return 0, "", map[string]any{"vinList": []map[string]any{{"vin": "VIN1"}}}
	}

	// Seed a stale session the gateway no longer accepts.
	client := NewHTTPClient(
		WithBaseURL(server.URL),
		WithCredentials("driver@example.com", "secret", ""),
		WithSession(&Session{Token: "stale", ExpiresAt: time.Now().Add(time.Hour)}),
	)

	vehicles, err := client.ListVehicles(context.Background())
	if err != nil {
		t.Fatalf("ListVehicles() error = %v", err)
	}
	if len(vehicles) != 1 || vehicles[0].VIN != "VIN1" {
		t.Errorf("Unexpected vehicles: %+v", vehicles)
	}
	if g.loginCount() != 1 {
		t.Errorf("Expected exactly one re-login, got %d", g.loginCount())
	}
}

func TestCall_ReloginFails(t *testing.T) {
	g, server := newFakeGateway(t)
	g.routes["/"+loginPath] = func(r *http.Request) (int, string, any) {
		return 4, "account locked", nil
	}
	g.routes["/"+vehicleListPath] = func(r *http.Request) (int, string, any) {
		return 0, "", nil
	}

	client := NewHTTPClient(
		WithBaseURL(server.URL),
		WithCredentials("driver@example.com", "secret", ""),
		WithSession(&Session{Token: "stale", ExpiresAt: time.Now().Add(time.Hour)}),
	)

	_, err := client.ListVehicles(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("Expected AuthError after failed re-login, got %v", err)
	}
}

func TestSession_Valid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{"nil", nil, false},
		{"empty token", &Session{ExpiresAt: now.Add(time.Hour)}, false},
		{"expired", &Session{Token: "t", ExpiresAt: now.Add(-time.Minute)}, false},
		{"inside margin", &Session{Token: "t", ExpiresAt: now.Add(30 * time.Second)}, false},
		{"valid", &Session{Token: "t", ExpiresAt: now.Add(time.Hour)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Valid(now); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIError_SessionExpired(t *testing.T) {
	tests := []struct {
		err  APIError
		want bool
	}{
		{APIError{Code: 401}, true},
		{APIError{Code: 2, Message: "Token expired, please login"}, true},
		{APIError{Code: 2, Message: "Not logged in"}, true},
		{APIError{Code: 8, Message: "vehicle offline"}, false},
	}

	for _, tt := range tests {
		if got := tt.err.SessionExpired(); got != tt.want {
			t.Errorf("%v SessionExpired() = %v, want %v", tt.err, got, tt.want)
		}
	}
}
