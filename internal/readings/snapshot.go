package readings

import "time"

// Value is one metric of a sensor.
type Value struct {
	Metric Metric
	Value  float32
}

// SensorReadings is the state of one sensor inside a Snapshot.
type SensorReadings struct {
	Sensor    string
	UpdatedAt time.Time
	Values    []Value
}

// Get returns the value recorded for m.
func (r SensorReadings) Get(m Metric) (float32, bool) {
	for _, v := range r.Values {
		if v.Metric == m {
			return v.Value, true
		}
	}
	return 0, false
}

// Snapshot is an immutable copy of the store, ordered by insertion.
type Snapshot struct {
	Sensors    []SensorReadings
	LastUpdate time.Time
}

// Lookup finds a sensor by name.
func (s Snapshot) Lookup(name string) (SensorReadings, bool) {
	for _, r := range s.Sensors {
		if r.Sensor == name {
			return r, true
		}
	}
	return SensorReadings{}, false
}
