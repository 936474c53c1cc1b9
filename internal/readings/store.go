// Package readings holds the latest value per sensor and metric.
package readings

import (
	"sync"
	"time"
)

// Metric names a physical quantity reported by a sensor. The string value is
// also the exposition name.
type Metric string

const (
	Temperature Metric = "temperature"
	Humidity    Metric = "humidity"
	Battery     Metric = "battery"
)

// Metrics lists the known metrics in their fixed rendering order.
var Metrics = []Metric{Temperature, Humidity, Battery}

type sensor struct {
	metrics   []Metric // first-recorded order
	values    map[Metric]float32
	updatedAt time.Time
}

// Store is a latest-value table keyed by (sensor, metric). It is safe for
// concurrent use. Entries are never removed.
type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	order      []string // first-seen order
	sensors    map[string]*sensor
	lastUpdate time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store. The last update time starts at
// construction so a scanner that never delivers is eventually seen as stale.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:     time.Now,
		sensors: make(map[string]*sensor),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastUpdate = s.now()
	return s
}

// Record inserts or overwrites the value for (name, m) and reports whether
// the stored value changed. Writing an identical value is a no-op: repeated
// broadcasts of the same reading must not refresh the liveness timestamp.
func (s *Store) Record(name string, m Metric, v float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, ok := s.sensors[name]
	if !ok {
		sn = &sensor{values: make(map[Metric]float32, len(Metrics))}
		s.sensors[name] = sn
		s.order = append(s.order, name)
	}

	old, had := sn.values[m]
	if had && old == v {
		return false
	}
	if !had {
		sn.metrics = append(sn.metrics, m)
	}
	sn.values[m] = v

	now := s.now()
	sn.updatedAt = now
	s.lastUpdate = now
	return true
}

// Get returns the latest value for (name, m).
func (s *Store) Get(name string, m Metric) (float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sn, ok := s.sensors[name]
	if !ok {
		return 0, false
	}
	v, ok := sn.values[m]
	return v, ok
}

// LastUpdate returns the time of the last record that changed a value.
func (s *Store) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// Len returns the number of distinct sensors seen.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns a point-in-time copy of the table. The copy shares no
// memory with the store and may be iterated while writers continue.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Sensors:    make([]SensorReadings, 0, len(s.order)),
		LastUpdate: s.lastUpdate,
	}
	for _, name := range s.order {
		sn := s.sensors[name]
		sr := SensorReadings{
			Sensor:    name,
			UpdatedAt: sn.updatedAt,
			Values:    make([]Value, 0, len(sn.metrics)),
		}
		for _, m := range sn.metrics {
			sr.Values = append(sr.Values, Value{Metric: m, Value: sn.values[m]})
		}
		snap.Sensors = append(snap.Sensors, sr)
	}
	return snap
}
