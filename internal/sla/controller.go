// Package sla wraps the end-to-end retrieve path with a timeout,
// heartbeat, and cancellation policy. Long-running retrievals emit
// periodic liveness signals to the caller once a soft threshold passes,
// and are aborted at a hard transport deadline.
package sla

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/codemem/codemem-mcp/pkg/types"
)

// State names the phases of one retrieve call.
type State string

const (
	StatePending          State = "PENDING"
	StateEmbedding        State = "EMBEDDING"
	StateSearching        State = "SEARCHING"
	StateAssembling       State = "ASSEMBLING"
	StateDone             State = "DONE"
	StateDeadlineExceeded State = "DEADLINE_EXCEEDED"
)

// Defaults for the client-facing deadline discipline.
const (
	DefaultSoftThreshold = 4 * time.Minute
	DefaultHardDeadline  = 300 * time.Second
	DefaultInterval      = 10 * time.Second
)

// Heartbeat is one liveness signal sent to the caller.
type Heartbeat struct {
	State   State
	Elapsed time.Duration
}

// Config holds the controller timings.
type Config struct {
	SoftThreshold time.Duration // begin heartbeating after this
	HardDeadline  time.Duration // abort after this
	Interval      time.Duration // heartbeat period
}

// Controller runs pipelines under the deadline policy.
type Controller struct {
	cfg    Config
	logger *zap.Logger
}

// NewController creates a controller, filling zero timings with defaults.
func NewController(cfg Config, logger *zap.Logger) *Controller {
	if cfg.SoftThreshold <= 0 {
		cfg.SoftThreshold = DefaultSoftThreshold
	}
	if cfg.HardDeadline <= 0 {
		cfg.HardDeadline = DefaultHardDeadline
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Controller{cfg: cfg, logger: logger}
}

// Tracker follows the state of one in-flight call. Safe for concurrent
// use: the pipeline sets states while the controller reads them for
// heartbeats.
type Tracker struct {
	mu    sync.Mutex
	state State
	start time.Time
}

// SetState records a pipeline phase transition.
func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// State returns the current phase.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Elapsed returns time since the call started.
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Run executes fn under the hard deadline. Once the soft threshold
// passes, beat is invoked every interval with the current state until fn
// returns or the deadline hits, at which point in-flight sub-calls are
// cancelled through the derived context and ErrDeadlineExceeded is
// reported. beat may be nil.
func (c *Controller) Run(ctx context.Context, beat func(Heartbeat), fn func(ctx context.Context, t *Tracker) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HardDeadline)
	defer cancel()

	t := &Tracker{state: StatePending, start: time.Now()}

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx, t)
	}()

	soft := time.NewTimer(c.cfg.SoftThreshold)
	defer soft.Stop()

	var ticks <-chan time.Time
	for {
		select {
		case err := <-done:
			if err == nil {
				t.SetState(StateDone)
				return nil
			}
			// The pipeline can observe the hard deadline before we do.
			if errors.Is(err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				t.SetState(StateDeadlineExceeded)
				return fmt.Errorf("%w: after %s", types.ErrDeadlineExceeded, t.Elapsed().Round(time.Millisecond))
			}
			return err

		case <-soft.C:
			ticker := time.NewTicker(c.cfg.Interval)
			defer ticker.Stop()
			ticks = ticker.C
			c.emit(beat, t)

		case <-ticks:
			c.emit(beat, t)

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				t.SetState(StateDeadlineExceeded)
				c.logger.Warn("hard deadline exceeded",
					zap.Duration("elapsed", t.Elapsed()),
					zap.String("last_state", string(t.State())))
				return fmt.Errorf("%w: after %s", types.ErrDeadlineExceeded, t.Elapsed().Round(time.Millisecond))
			}
			// Caller disconnected; sub-calls are cancelled through ctx.
			return ctx.Err()
		}
	}
}

func (c *Controller) emit(beat func(Heartbeat), t *Tracker) {
	if beat == nil {
		return
	}
	beat(Heartbeat{State: t.State(), Elapsed: t.Elapsed()})
}
