package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

var errNotScanning = errors.New("bluetooth: there is no scan in progress")

// fakeAdapter follows the BlueZ adapter contract: StopScan fails unless a
// scan is running, and Scan blocks until stopped.
type fakeAdapter struct {
	enableErr  error
	onEnable   func()
	beforeScan func()

	mu       sync.Mutex
	scanning bool
	stop     chan struct{}
	scans    int
}

func (f *fakeAdapter) Enable() error {
	if f.onEnable != nil {
		f.onEnable()
	}
	return f.enableErr
}

func (f *fakeAdapter) Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	if f.beforeScan != nil {
		f.beforeScan()
	}

	f.mu.Lock()
	f.scans++
	f.scanning = true
	stop := make(chan struct{})
	f.stop = stop
	f.mu.Unlock()

	<-stop
	return nil
}

func (f *fakeAdapter) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.scanning {
		return errNotScanning
	}
	f.scanning = false
	close(f.stop)
	return nil
}

func (f *fakeAdapter) scanCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans
}

func runListener(t *testing.T, ctx context.Context, adapter scanner) <-chan error {
	t.Helper()
	l := &Listener{adapter: adapter, opts: Options{Adapter: "hci-test"}}
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx, nil) }()
	return errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
		return nil
	}
}

func TestListenerRun_CanceledDuringEnableSkipsScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{onEnable: cancel}

	err := waitRun(t, runListener(t, ctx, adapter))

	require.NoError(t, err)
	assert.Zero(t, adapter.scanCount())
}

func TestListenerRun_CanceledBeforeScanIsRunning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{beforeScan: func() {
		cancel()
		// Let the first StopScan land before the scan is running.
		time.Sleep(3 * stopRetryInterval)
	}}

	err := waitRun(t, runListener(t, ctx, adapter))

	require.NoError(t, err)
	assert.Equal(t, 1, adapter.scanCount())
}

func TestListenerRun_CanceledWhileScanning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &fakeAdapter{}

	errCh := runListener(t, ctx, adapter)
	require.Eventually(t, func() bool { return adapter.scanCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, waitRun(t, errCh))
}

func TestListenerRun_EnableError(t *testing.T) {
	adapter := &fakeAdapter{enableErr: errors.New("adapter hci-test not found")}

	err := waitRun(t, runListener(t, context.Background(), adapter))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ble enable (hci-test)")
	assert.Zero(t, adapter.scanCount())
}
