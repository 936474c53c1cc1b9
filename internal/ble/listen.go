package ble

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"
)

// Discovery is a single advertisement carrying service data.
type Discovery struct {
	Address     string
	RSSI        int16
	Name        string
	ServiceData [][]byte // one entry per advertised service data element
	SeenAt      time.Time
}

type Options struct {
	Adapter string // "hci0" by default
}

// stopRetryInterval paces StopScan attempts made before the scan is running.
const stopRetryInterval = 50 * time.Millisecond

// scanner is the part of *bluetooth.Adapter the listener drives.
type scanner interface {
	Enable() error
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// Listener wraps BlueZ scanning with context cancellation.
type Listener struct {
	adapter scanner
	opts    Options
}

func NewListener(opts Options) *Listener {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}

	return &Listener{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
	}
}

// Run scans until ctx is canceled, calling onDiscovery from the scan
// goroutine for every advertisement that has a name and service data.
func (l *Listener) Run(ctx context.Context, onDiscovery func(Discovery)) error {
	slog.Info("ble: enabling adapter", "adapter", l.opts.Adapter)
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", l.opts.Adapter, err)
	}
	slog.Info("ble: adapter enabled", "adapter", l.opts.Adapter)

	if ctx.Err() != nil {
		slog.Info("ble: canceled before scanning started")
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go l.stopOnCancel(ctx, done)

	slog.Info("ble: scanning started", "adapter", l.opts.Adapter)

	// adapter.Scan blocks until StopScan() or error.
	err := l.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
		if ctx.Err() != nil {
			_ = l.adapter.StopScan()
			return
		}
		d, ok := discoveryFromScan(r)
		if !ok {
			return
		}
		if onDiscovery != nil {
			onDiscovery(d)
		}
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		slog.Info("ble: scanning stopped (context canceled)")
		return nil
	}

	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	slog.Info("ble: scanning stopped")
	return nil
}

// stopOnCancel stops the scan once ctx is done. StopScan fails while no scan
// is in progress, so it is retried until Scan has returned.
func (l *Listener) stopOnCancel(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	ticker := time.NewTicker(stopRetryInterval)
	defer ticker.Stop()
	for {
		if err := l.adapter.StopScan(); err == nil {
			return
		}
		select {
		case <-done:
			return
		case <-ticker.C:
		}
	}
}

func discoveryFromScan(r bluetooth.ScanResult) (Discovery, bool) {
	name := r.LocalName()
	elems := r.ServiceData()
	if name == "" || len(elems) == 0 {
		return Discovery{}, false
	}

	d := Discovery{
		Address:     r.Address.String(),
		RSSI:        r.RSSI,
		Name:        name,
		ServiceData: make([][]byte, 0, len(elems)),
		SeenAt:      time.Now(),
	}
	for _, sd := range elems {
		// The scan result buffer is reused by the stack.
		d.ServiceData = append(d.ServiceData, append([]byte(nil), sd.Data...))
	}
	return d, true
}
