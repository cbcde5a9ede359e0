package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

func TestNewSessionCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cache, err := NewSessionCache(dir)
	if err != nil {
		t.Fatalf("NewSessionCache failed: %v", err)
	}

	if cache.Path() != filepath.Join(dir, "session.json") {
		t.Errorf("Unexpected path %s", cache.Path())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0700 {
		t.Errorf("Expected directory permissions 0700, got %o", info.Mode().Perm())
	}
}

func TestSessionCache_SaveAndLoad(t *testing.T) {
	cache, err := NewSessionCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewSessionCache failed: %v", err)
	}

	expiresAt := time.Now().Add(12 * time.Hour).Truncate(time.Second)
	session := &saic.Session{Token: "tok", UserID: "user-1", ExpiresAt: expiresAt}

	if err := cache.Save("driver@example.com", session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(cache.Path())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected permissions 0600, got %o", info.Mode().Perm())
	}

	loaded, err := cache.Load("driver@example.com")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected session, got nil")
	}
	if loaded.Token != "tok" || loaded.UserID != "user-1" || !loaded.ExpiresAt.Equal(expiresAt) {
		t.Errorf("Unexpected session %+v", loaded)
	}
}

func TestSessionCache_LoadOtherAccount(t *testing.T) {
	cache, _ := NewSessionCache(t.TempDir())
	session := &saic.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	if err := cache.Save("a@example.com", session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := cache.Load("b@example.com")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Error("Expected no session for a different account")
	}
}

func TestSessionCache_LoadExpired(t *testing.T) {
	cache, _ := NewSessionCache(t.TempDir())
	session := &saic.Session{Token: "tok", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := cache.Save("a@example.com", session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := cache.Load("a@example.com")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Error("Expected expired session to be discarded")
	}
}

func TestSessionCache_LoadMissing(t *testing.T) {
	cache, _ := NewSessionCache(t.TempDir())

	loaded, err := cache.Load("a@example.com")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Error("Expected nil for missing file")
	}
}

func TestSessionCache_LoadCorrupt(t *testing.T) {
	cache, _ := NewSessionCache(t.TempDir())
	if err := os.WriteFile(cache.Path(), []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := cache.Load("a@example.com"); err == nil {
		t.Error("Expected parse error")
	}
}

func TestSessionCache_Delete(t *testing.T) {
	cache, _ := NewSessionCache(t.TempDir())

	// Deleting a missing file is not an error
	if err := cache.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	session := &saic.Session{Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	if err := cache.Save("a@example.com", session); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := cache.Save("a@example.com", nil); err != nil {
		t.Fatalf("Save(nil) failed: %v", err)
	}
	if _, err := os.Stat(cache.Path()); !os.IsNotExist(err) {
		t.Error("Expected Save(nil) to remove the file")
	}
}
