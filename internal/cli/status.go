package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// StatusOptions configures the status command
type StatusOptions struct {
	Format  OutputFormat
	Pretty  bool
	Raw     bool // JSON only: print the gateway payloads
	Offline bool // Use the stored snapshot instead of a live query
}

// LiveSource performs one poll and exposes its result. The coordinator
// satisfies it.
type LiveSource interface {
	Setup(ctx context.Context) error
	LatestSnapshot() *model.VehicleSnapshot
}

// SnapshotStore reads persisted snapshots.
type SnapshotStore interface {
	LatestSnapshot(ctx context.Context, vin string) (*model.VehicleSnapshot, error)
	VINs(ctx context.Context) ([]string, error)
}

// StatusCommand displays current vehicle state
type StatusCommand struct {
	live   LiveSource
	store  SnapshotStore
	vin    string
	output io.Writer
}

// NewStatusCommand creates a new status command. live may be nil for
// offline use; store may be nil when persistence is disabled.
func NewStatusCommand(live LiveSource, store SnapshotStore, vin string, output io.Writer) *StatusCommand {
	return &StatusCommand{
		live:   live,
		store:  store,
		vin:    vin,
		output: output,
	}
}

// Run executes the status command
func (c *StatusCommand) Run(ctx context.Context, opts StatusOptions) error {
	formatter, err := newFormatter(opts.Format, opts.Pretty, opts.Raw)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}

	var snap *model.VehicleSnapshot
	if opts.Offline {
		if c.store == nil {
			return fmt.Errorf("offline status needs storage, which is disabled")
		}
		vin, err := c.storedVIN(ctx)
		if err != nil {
			return err
		}
		snap, err = c.store.LatestSnapshot(ctx, vin)
		if err != nil {
			return fmt.Errorf("get stored snapshot: %w", err)
		}
		if snap == nil {
			return fmt.Errorf("no stored snapshot found for vehicle %s", vin)
		}
	} else {
		if c.live == nil {
			return fmt.Errorf("live status needs a gateway connection")
		}
		// Setup polls once and persists the snapshot when a store is wired
		if err := c.live.Setup(ctx); err != nil {
			return fmt.Errorf("query vehicle: %w", err)
		}
		snap = c.live.LatestSnapshot()
		if snap == nil {
			return fmt.Errorf("no data received for vehicle %s", c.vin)
		}
	}

	return formatter.FormatSnapshot(c.output, snap)
}

// storedVIN returns the configured VIN, or the only stored one.
func (c *StatusCommand) storedVIN(ctx context.Context) (string, error) {
	if c.vin != "" {
		return c.vin, nil
	}
	vins, err := c.store.VINs(ctx)
	if err != nil {
		return "", fmt.Errorf("list stored vehicles: %w", err)
	}
	if len(vins) != 1 {
		return "", fmt.Errorf("found %d stored vehicles, set account.vin to choose one", len(vins))
	}
	return vins[0], nil
}

func newFormatter(format OutputFormat, pretty, raw bool) (Formatter, error) {
	if raw {
		if format != FormatJSON {
			return nil, fmt.Errorf("raw output is only available as json")
		}
		return &JSONFormatter{Pretty: pretty, Raw: true}, nil
	}
	return NewFormatter(format, pretty)
}
