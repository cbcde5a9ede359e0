package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// ExportOptions configures the export command
type ExportOptions struct {
	Format OutputFormat
	Pretty bool
	Raw    bool
	VIN    string // Only export this vehicle; empty exports all
}

// ExportCommand exports the stored snapshot of every known vehicle
type ExportCommand struct {
	store  SnapshotStore
	output io.Writer
}

// NewExportCommand creates a new export command
func NewExportCommand(store SnapshotStore, output io.Writer) *ExportCommand {
	return &ExportCommand{
		store:  store,
		output: output,
	}
}

// Run executes the export command
func (c *ExportCommand) Run(ctx context.Context, opts ExportOptions) error {
	if c.store == nil {
		return fmt.Errorf("store not available for export")
	}

	formatter, err := newFormatter(opts.Format, opts.Pretty, opts.Raw)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}

	vins := []string{opts.VIN}
	if opts.VIN == "" {
		vins, err = c.store.VINs(ctx)
		if err != nil {
			return fmt.Errorf("list vehicles: %w", err)
		}
	}

	snaps := make([]*model.VehicleSnapshot, 0, len(vins))
	for _, vin := range vins {
		snap, err := c.store.LatestSnapshot(ctx, vin)
		if err != nil {
			return fmt.Errorf("get snapshot for %s: %w", vin, err)
		}
		if snap != nil {
			snaps = append(snaps, snap)
		}
	}

	if len(snaps) == 0 {
		_, _ = fmt.Fprintln(c.output, "No stored snapshots found")
		return nil
	}

	return formatter.FormatSnapshots(c.output, snaps)
}
