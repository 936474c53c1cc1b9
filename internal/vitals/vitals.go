// Package vitals reports host figures exposed next to sensor readings.
package vitals

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/mem"
)

// Probe reads free memory and process uptime.
type Probe struct {
	start         time.Time
	now           func() time.Time
	virtualMemory func() (*mem.VirtualMemoryStat, error)
}

// NewProbe starts the uptime clock.
func NewProbe() *Probe {
	return &Probe{
		start:         time.Now(),
		now:           time.Now,
		virtualMemory: mem.VirtualMemory,
	}
}

// FreeMemory returns the memory available to new allocations without swapping.
func (p *Probe) FreeMemory() (uint64, error) {
	vm, err := p.virtualMemory()
	if err != nil {
		return 0, fmt.Errorf("read memory stats: %w", err)
	}
	return vm.Available, nil
}

// Uptime returns how long the probe, and so the process, has been running.
func (p *Probe) Uptime() time.Duration {
	return p.now().Sub(p.start)
}
