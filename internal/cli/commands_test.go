package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/store"
)

// mockSource implements Watcher for testing
type mockSource struct {
	mu       sync.Mutex
	snap     *model.VehicleSnapshot
	setupErr error
	setups   int
	subs     []func(model.VehicleSnapshot)
	updates  []model.VehicleSnapshot
}

func (m *mockSource) Setup(ctx context.Context) error {
	m.mu.Lock()
	m.setups++
	err := m.setupErr
	subs := m.subs
	snap := m.snap
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if snap != nil {
		for _, fn := range subs {
			fn(*snap)
		}
	}
	return nil
}

func (m *mockSource) LatestSnapshot() *model.VehicleSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *mockSource) Subscribe(fn func(model.VehicleSnapshot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	return nil
}

// Run publishes the queued updates, then waits for cancellation.
func (m *mockSource) Run(ctx context.Context) error {
	m.mu.Lock()
	subs, updates := m.subs, m.updates
	m.mu.Unlock()

	for _, u := range updates {
		for _, fn := range subs {
			fn(u)
		}
	}
	<-ctx.Done()
	return nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	testStore, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = testStore.Close() })
	return testStore
}

func TestStatusCommand_Run(t *testing.T) {
	source := &mockSource{snap: makeTestSnapshot()}

	var buf bytes.Buffer
	cmd := NewStatusCommand(source, nil, "LSJA0000000000001", &buf)

	err := cmd.Run(context.Background(), StatusOptions{Format: FormatJSON})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if source.setups != 1 {
		t.Errorf("Expected one setup, got %d", source.setups)
	}

	// Verify output contains vehicle data
	output := buf.String()
	if !strings.Contains(output, "LSJA0000000000001") {
		t.Error("Output missing VIN")
	}
	if !strings.Contains(output, "85.5") {
		t.Error("Output missing SOC")
	}
}

func TestStatusCommand_Run_SetupError(t *testing.T) {
	source := &mockSource{setupErr: errors.New("login: bad credentials")}

	var buf bytes.Buffer
	cmd := NewStatusCommand(source, nil, "VIN1", &buf)

	err := cmd.Run(context.Background(), StatusOptions{Format: FormatText})
	if err == nil || !strings.Contains(err.Error(), "bad credentials") {
		t.Errorf("Expected setup error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Error("Expected no output on error")
	}
}

func TestStatusCommand_Run_Offline(t *testing.T) {
	testStore := newTestStore(t)

	// Save a snapshot to the store first
	ctx := context.Background()
	if err := testStore.SaveSnapshot(ctx, makeTestSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	// Source should not be called in offline mode
	source := &mockSource{setupErr: errors.New("should not be called")}

	var buf bytes.Buffer
	cmd := NewStatusCommand(source, testStore, "LSJA0000000000001", &buf)

	err := cmd.Run(ctx, StatusOptions{Format: FormatText, Offline: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if source.setups != 0 {
		t.Error("Expected no live query in offline mode")
	}

	// Verify output contains stored data
	if !strings.Contains(buf.String(), "MG MG4") {
		t.Error("Output missing vehicle model from store")
	}
}

func TestStatusCommand_Run_OfflineMissing(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewStatusCommand(nil, newTestStore(t), "UNKNOWN", &buf)

	err := cmd.Run(context.Background(), StatusOptions{Format: FormatText, Offline: true})
	if err == nil || !strings.Contains(err.Error(), "no stored snapshot") {
		t.Errorf("Expected missing snapshot error, got %v", err)
	}

	cmd = NewStatusCommand(nil, nil, "UNKNOWN", &buf)
	if err := cmd.Run(context.Background(), StatusOptions{Format: FormatText, Offline: true}); err == nil {
		t.Error("Expected error without a store")
	}
}

func TestExportCommand_Run(t *testing.T) {
	testStore := newTestStore(t)
	ctx := context.Background()

	for _, vin := range []string{"VIN0000000000000A", "VIN0000000000000B"} {
		snap := makeTestSnapshot()
		snap.VIN = vin
		if err := testStore.SaveSnapshot(ctx, snap); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
	}

	var buf bytes.Buffer
	cmd := NewExportCommand(testStore, &buf)

	if err := cmd.Run(ctx, ExportOptions{Format: FormatJSON}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var summaries []Summary
	if err := json.Unmarshal(buf.Bytes(), &summaries); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 vehicles, got %d", len(summaries))
	}

	// Single vehicle
	buf.Reset()
	if err := cmd.Run(ctx, ExportOptions{Format: FormatCSV, VIN: "VIN0000000000000B"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "VIN0000000000000B") {
		t.Errorf("Expected one CSV row for VIN B, got %q", buf.String())
	}
}

func TestExportCommand_Run_EmptyResults(t *testing.T) {
	var buf bytes.Buffer
	cmd := NewExportCommand(newTestStore(t), &buf)

	if err := cmd.Run(context.Background(), ExportOptions{Format: FormatJSON}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No stored snapshots found") {
		t.Error("Expected 'No stored snapshots found' message")
	}
}

func TestExportCommand_Run_NoStore(t *testing.T) {
	cmd := NewExportCommand(nil, &bytes.Buffer{})
	if err := cmd.Run(context.Background(), ExportOptions{Format: FormatJSON}); err == nil {
		t.Error("Expected error without a store")
	}
}

// syncBuffer guards a bytes.Buffer written from the watch goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCommand_Run(t *testing.T) {
	first := makeTestSnapshot()
	second := makeTestSnapshot()
	second.Runtime.Mode = "grace_period"

	source := &mockSource{snap: first, updates: []model.VehicleSnapshot{*second}}

	var out syncBuffer
	cmd := NewWatchCommand(source, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cmd.Run(ctx, WatchOptions{Format: FormatTable})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for strings.Count(out.String(), "LSJA0000000000001") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "charging") || !strings.Contains(output, "grace_period") {
		t.Errorf("Expected both snapshots in output\n%s", output)
	}
}

func TestWatchCommand_Run_SetupError(t *testing.T) {
	source := &mockSource{setupErr: errors.New("gateway unavailable")}
	cmd := NewWatchCommand(source, &bytes.Buffer{})

	err := cmd.Run(context.Background(), WatchOptions{Format: FormatText})
	if err == nil || !strings.Contains(err.Error(), "gateway unavailable") {
		t.Errorf("Expected setup error, got %v", err)
	}
}

func TestStatusCommand_Run_OfflineSingleVIN(t *testing.T) {
	testStore := newTestStore(t)
	ctx := context.Background()
	if err := testStore.SaveSnapshot(ctx, makeTestSnapshot()); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	var buf bytes.Buffer
	cmd := NewStatusCommand(nil, testStore, "", &buf)
	if err := cmd.Run(ctx, StatusOptions{Format: FormatJSON, Offline: true}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(buf.String(), "LSJA0000000000001") {
		t.Errorf("Expected the only stored vehicle, got %s", buf.String())
	}

	second := makeTestSnapshot()
	second.VIN = "LSJA0000000000002"
	if err := testStore.SaveSnapshot(ctx, second); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	err := cmd.Run(ctx, StatusOptions{Format: FormatJSON, Offline: true})
	if err == nil || !strings.Contains(err.Error(), "account.vin") {
		t.Errorf("Expected ambiguity error, got %v", err)
	}
}
