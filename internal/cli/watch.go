package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pfrederiksen/saic-ls/internal/model"
)

// WatchOptions configures the watch command
type WatchOptions struct {
	Format OutputFormat
	Pretty bool
	Raw    bool
}

// Watcher runs the adaptive polling loop and publishes snapshots. The
// coordinator satisfies it.
type Watcher interface {
	LiveSource
	Run(ctx context.Context) error
	Subscribe(fn func(model.VehicleSnapshot)) error
}

// WatchCommand prints every snapshot the coordinator publishes
type WatchCommand struct {
	watcher Watcher
	output  io.Writer
}

// NewWatchCommand creates a new watch command
func NewWatchCommand(watcher Watcher, output io.Writer) *WatchCommand {
	return &WatchCommand{
		watcher: watcher,
		output:  output,
	}
}

// Run executes the watch command until ctx is cancelled
func (c *WatchCommand) Run(ctx context.Context, opts WatchOptions) error {
	formatter, err := newFormatter(opts.Format, opts.Pretty, opts.Raw)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}

	// Buffered so the publishing goroutine never blocks on a slow terminal
	updates := make(chan model.VehicleSnapshot, 16)
	err = c.watcher.Subscribe(func(snap model.VehicleSnapshot) {
		select {
		case updates <- snap:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	if err := c.watcher.Setup(ctx); err != nil {
		return fmt.Errorf("query vehicle: %w", err)
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- c.watcher.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-runErr
			return nil

		case err := <-runErr:
			if ctx.Err() != nil {
				return nil
			}
			return err

		case snap := <-updates:
			if err := formatter.FormatSnapshot(c.output, &snap); err != nil {
				return fmt.Errorf("format snapshot: %w", err)
			}
		}
	}
}
