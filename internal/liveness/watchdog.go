package liveness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnhealthy ends Watchdog.Run when RestartOnFault is set.
var ErrUnhealthy = errors.New("gateway unhealthy")

type WatchdogOptions struct {
	Interval time.Duration
	// RestartOnFault makes Run return ErrUnhealthy so the process exits and
	// the service manager restarts it.
	RestartOnFault bool
	// OnStatus is called after every evaluation.
	OnStatus func(Status)
}

// Watchdog periodically evaluates a Monitor.
type Watchdog struct {
	monitor *Monitor
	opts    WatchdogOptions
}

func NewWatchdog(monitor *Monitor, opts WatchdogOptions) *Watchdog {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Watchdog{monitor: monitor, opts: opts}
}

// Run blocks until ctx is done, or until the gateway turns unhealthy with
// RestartOnFault set.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := w.Check()
			if st.Healthy() != healthy {
				healthy = st.Healthy()
				if healthy {
					slog.Info("liveness: recovered")
				} else {
					slog.Warn("liveness: unhealthy",
						"stuck", st.Stuck,
						"low_memory", st.LowMemory,
						"last_update", st.LastUpdate,
						"free_memory", st.FreeMemory,
					)
				}
			}
			if !healthy && w.opts.RestartOnFault {
				return fmt.Errorf("%w: stuck=%t low_memory=%t", ErrUnhealthy, st.Stuck, st.LowMemory)
			}
		}
	}
}

// Check evaluates the monitor once and notifies OnStatus.
func (w *Watchdog) Check() Status {
	st := w.monitor.Status()
	if w.opts.OnStatus != nil {
		w.opts.OnStatus(st)
	}
	return st
}
