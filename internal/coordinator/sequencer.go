package coordinator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/pfrederiksen/saic-ls/internal/saic"
)

// ScheduleActionRefresh confirms the effect of a command: it polls at once,
// waits immediate, polls again and waits confirm. While it runs the
// interval policy is suspended and the interval shows the current delay.
//
// However it ends, the gate is released and the policy re-evaluated before
// it returns. Poll failures are logged and returned together at the end;
// only an authentication failure or cancellation cuts the sequence short.
func (c *Coordinator) ScheduleActionRefresh(ctx context.Context, immediate, confirm time.Duration) error {
	c.mu.Lock()
	ready, closed := c.ready, c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !ready {
		return ErrNotReady
	}

	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	defer c.endAction()

	var errs error
	for _, delay := range []time.Duration{immediate, confirm} {
		c.beginActionStep(delay)

		if err := c.poll(ctx, false); err != nil {
			if fatal(ctx, err) {
				return err
			}
			c.log.Error(err, "action refresh poll failed", "vin", c.VIN())
			errs = multierr.Append(errs, err)
		}

		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return errs
}

// TriggerActionRefresh starts the confirmation sequence for action in the
// background, cancelling one that is still running. Close waits for it.
func (c *Coordinator) TriggerActionRefresh(action Action) {
	c.mu.Lock()
	if c.closed || !c.ready {
		c.mu.Unlock()
		return
	}

	if c.cancelSeq != nil {
		c.cancelSeq()
	}
	ctx, cancel := context.WithCancel(c.lifeCtx)
	c.cancelSeq = cancel

	immediate := c.opts.AfterActionDelay
	confirm := c.opts.ActionInterval(action)
	vin := c.vin
	c.wg.Add(1)
	c.mu.Unlock()

	c.log.Info("scheduling action refresh",
		"vin", vin,
		"action", string(action),
		"immediate", immediate.String(),
		"confirm", confirm.String())

	go func() {
		defer c.wg.Done()
		defer cancel()

		err := c.ScheduleActionRefresh(ctx, immediate, confirm)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			c.log.Debug("action refresh superseded or cancelled", "vin", vin, "action", string(action))
		case saic.IsAuthError(err):
			c.log.Error(err, "action refresh stopped, gateway rejected credentials", "vin", vin)
		default:
			c.log.Error(err, "action refresh finished with errors", "vin", vin, "action", string(action))
		}
	}()
}

func (c *Coordinator) beginActionStep(delay time.Duration) {
	c.mu.Lock()
	c.actionActive = true
	c.updateInterval = delay
	c.mode = ModeAction
	c.nextUpdate = c.clock.Now().Add(delay)
	vin := c.vin
	c.mu.Unlock()

	c.metrics.SetActionActive(vin, true)
	c.metrics.SetInterval(vin, delay, string(ModeAction))
	c.publish()
}

// endAction releases the gate and hands the schedule back to the policy.
func (c *Coordinator) endAction() {
	c.mu.Lock()
	now := c.clock.Now()
	c.actionActive = false
	c.applyPolicyLocked(now)
	base := c.lastUpdate
	if base.IsZero() {
		base = now
	}
	c.nextUpdate = base.Add(c.updateInterval)
	vin := c.vin
	c.mu.Unlock()

	c.metrics.SetActionActive(vin, false)
	c.publish()
	c.signalReschedule()
}

// sleep waits d unless ctx or the coordinator's lifetime ends first.
func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	timer := c.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.lifeCtx.Done():
		return context.Canceled
	}
}
