package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// CachedSession is a gateway session stored on disk
type CachedSession struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	SavedAt   time.Time `json:"saved_at"`
}

// SessionCache manages persistent session storage so restarts skip a login
type SessionCache struct {
	path string
	now  func() time.Time
}

// NewSessionCache creates a session cache in dir. An empty dir means
// ~/.config/saic-ls.
func NewSessionCache(dir string) (*SessionCache, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".config", "saic-ls")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	return &SessionCache{
		path: filepath.Join(dir, "session.json"),
		now:  time.Now,
	}, nil
}

// Load returns the cached session for username. It returns nil when nothing
// is cached, the entry belongs to another account, or the session expired.
func (c *SessionCache) Load(username string) (*saic.Session, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var cached CachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	if cached.Username != username {
		return nil, nil
	}

	session := cached.toSession()
	if !session.Valid(c.now()) {
		return nil, nil
	}
	return session, nil
}

// Save writes the session to disk
func (c *SessionCache) Save(username string, session *saic.Session) error {
	if session == nil {
		return c.Delete()
	}

	cached := CachedSession{
		Username:  username,
		Token:     session.Token,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		SavedAt:   c.now(),
	}

	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// 0600: the token grants full remote control of the vehicle
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	return nil
}

// Delete removes the cached session
func (c *SessionCache) Delete() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (c *CachedSession) toSession() *saic.Session {
	return &saic.Session{
		Token:     c.Token,
		UserID:    c.UserID,
		ExpiresAt: c.ExpiresAt,
	}
}

// Path returns the path to the session file
func (c *SessionCache) Path() string {
	return c.path
}
