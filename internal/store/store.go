package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pfrederiksen/saic-ls/internal/model"
	"github.com/pfrederiksen/saic-ls/internal/tracker"
	"github.com/pfrederiksen/saic-ls/pkg/log"
)

// Store persists the runtime timestamps and the latest snapshot of each
// vehicle. It satisfies coordinator.Store.
type Store struct {
	db  *sql.DB
	log log.Logger
}

// NewStore creates a new store at the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable Write-Ahead Logging for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	store := &Store{db: db, log: log.Std().WithName("store")}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runtime_timestamps (
			vin TEXT PRIMARY KEY,
			last_activity TEXT,
			last_powered_on TEXT,
			last_powered_off TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			vin TEXT PRIMARY KEY,
			taken_at DATETIME NOT NULL,
			snapshot_json TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveTimestamps upserts the runtime timestamps of vin.
func (s *Store) SaveTimestamps(ctx context.Context, vin string, ts tracker.Timestamps) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runtime_timestamps (vin, last_activity, last_powered_on, last_powered_off, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(vin) DO UPDATE SET
			last_activity = excluded.last_activity,
			last_powered_on = excluded.last_powered_on,
			last_powered_off = excluded.last_powered_off,
			updated_at = excluded.updated_at
	`, vin, formatTime(ts.LastActivity), formatTime(ts.LastPoweredOn), formatTime(ts.LastPoweredOff))
	if err != nil {
		return fmt.Errorf("save timestamps: %w", err)
	}
	return nil
}

// LoadTimestamps returns the stored timestamps of vin. Missing rows and
// values that cannot be parsed come back as zero times, which the tracker
// replaces with its fallback.
func (s *Store) LoadTimestamps(ctx context.Context, vin string) (tracker.Timestamps, error) {
	var activity, poweredOn, poweredOff sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT last_activity, last_powered_on, last_powered_off
		FROM runtime_timestamps
		WHERE vin = ?
	`, vin).Scan(&activity, &poweredOn, &poweredOff)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Timestamps{}, nil
	}
	if err != nil {
		return tracker.Timestamps{}, fmt.Errorf("query timestamps: %w", err)
	}

	return tracker.Timestamps{
		LastActivity:   s.parseTime(vin, "last_activity", activity),
		LastPoweredOn:  s.parseTime(vin, "last_powered_on", poweredOn),
		LastPoweredOff: s.parseTime(vin, "last_powered_off", poweredOff),
	}, nil
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	v := t.UTC().Format(time.RFC3339Nano)
	return &v
}

func (s *Store) parseTime(vin, column string, v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		s.log.Warn("ignoring unparsable timestamp", "vin", vin, "column", column, "value", v.String)
		return time.Time{}
	}
	return t
}

// SaveSnapshot replaces the stored snapshot of the snapshot's vehicle.
func (s *Store) SaveSnapshot(ctx context.Context, snap *model.VehicleSnapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	snapshotJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	takenAt := snap.UpdatedAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (vin, taken_at, snapshot_json)
		VALUES (?, ?, ?)
		ON CONFLICT(vin) DO UPDATE SET
			taken_at = excluded.taken_at,
			snapshot_json = excluded.snapshot_json
	`, snap.VIN, takenAt.UTC(), string(snapshotJSON))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the stored snapshot of vin, or nil if there is none.
func (s *Store) LatestSnapshot(ctx context.Context, vin string) (*model.VehicleSnapshot, error) {
	var snapshotJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_json FROM snapshots WHERE vin = ?
	`, vin).Scan(&snapshotJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	var snap model.VehicleSnapshot
	if err := json.Unmarshal([]byte(snapshotJSON), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// VINs lists the vehicles with a stored snapshot.
func (s *Store) VINs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vin FROM snapshots ORDER BY vin`)
	if err != nil {
		return nil, fmt.Errorf("query vins: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var vins []string
	for rows.Next() {
		var vin string
		if err := rows.Scan(&vin); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vins = append(vins, vin)
	}
	return vins, rows.Err()
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&stats.Vehicles)
	if err != nil {
		return nil, err
	}

	// MAX over a DATETIME column comes back as text
	var newest sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT MAX(taken_at) FROM snapshots`).Scan(&newest)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if newest.Valid {
		t, err := parseSQLiteTime(newest.String)
		if err != nil {
			return nil, fmt.Errorf("parse newest snapshot time: %w", err)
		}
		stats.NewestSnapshot = &t
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT page_count * page_size as size FROM pragma_page_count(), pragma_page_size()
	`).Scan(&stats.DatabaseSize)
	if err != nil {
		return nil, err
	}

	return &stats, nil
}

func parseSQLiteTime(v string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unknown time format %q", v)
}

// Stats contains storage statistics
type Stats struct {
	Vehicles       int64      `json:"vehicles"`
	NewestSnapshot *time.Time `json:"newest_snapshot,omitempty"`
	DatabaseSize   int64      `json:"database_size"` // bytes
}
