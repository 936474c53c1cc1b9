package ble

import (
	"context"
	"log/slog"
	"strings"

	"sauron-gateway/internal/mqtt"
	"sauron-gateway/internal/readings"
	"sauron-gateway/internal/utils"
)

// publishQueueSize bounds telemetry waiting for the broker. Frames beyond it
// are dropped; the store is always updated first.
const publishQueueSize = 64

// Recorder stores the latest value of a sensor metric and reports whether
// it changed.
type Recorder interface {
	Record(name string, m readings.Metric, v float32) bool
}

// TelemetryPublisher forwards accepted frames, e.g. to MQTT.
type TelemetryPublisher interface {
	PublishTelemetry(sensorID string, telemetry mqtt.Telemetry) error
}

type HandlerOptions struct {
	// NamePrefix restricts ingestion to devices whose advertised name starts
	// with it. Empty accepts every named device with service data.
	NamePrefix string
	// Publisher is optional. Telemetry is handed to it by Run, off the scan
	// goroutine.
	Publisher TelemetryPublisher
}

type publishJob struct {
	sensorID  string
	telemetry mqtt.Telemetry
}

// BLESensorHandler decodes sensor advertisements into a Recorder.
type BLESensorHandler struct {
	store Recorder
	opts  HandlerOptions
	queue chan publishJob
}

// NewBLESensorHandler creates a new BLE sensor handler.
func NewBLESensorHandler(store Recorder, opts HandlerOptions) *BLESensorHandler {
	h := &BLESensorHandler{store: store, opts: opts}
	if opts.Publisher != nil {
		h.queue = make(chan publishJob, publishQueueSize)
	}
	return h
}

// HandleDiscovery filters and decodes one advertisement and records every
// reading of a recognized frame. Unrecognized payloads are dropped. It never
// waits on the publisher.
func (h *BLESensorHandler) HandleDiscovery(d Discovery) {
	if d.Name == "" || len(d.ServiceData) == 0 {
		return
	}
	if h.opts.NamePrefix != "" && !strings.HasPrefix(d.Name, h.opts.NamePrefix) {
		return
	}

	data := d.ServiceData[0]
	frame, err := ParseServiceData(d.Name, data)
	if err != nil {
		slog.Debug("ble: ignore non-sensor payload", "name", d.Name, "addr", d.Address, "error", err)
		return
	}

	changed := false
	for _, r := range frame.Readings {
		if h.store.Record(d.Name, r.Metric, r.Value) {
			changed = true
		}
	}
	if !changed {
		return
	}

	slog.Info("ble: sensor reading recorded",
		"name", d.Name,
		"addr", d.Address,
		"rssi", d.RSSI,
		"format", frame.Format,
		"readings", len(frame.Readings),
		"data", utils.BytesToHex(data),
	)

	if h.queue == nil {
		return
	}
	select {
	case h.queue <- publishJob{sensorID: d.Name, telemetry: telemetryFromFrame(d, frame)}:
	default:
		slog.Warn("ble: telemetry queue full, dropping frame", "name", d.Name)
	}
}

// Run hands queued telemetry to the publisher until ctx is done. It returns
// immediately when no publisher is configured.
func (h *BLESensorHandler) Run(ctx context.Context) error {
	if h.queue == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-h.queue:
			if err := h.opts.Publisher.PublishTelemetry(job.sensorID, job.telemetry); err != nil {
				slog.Warn("ble: failed to publish telemetry", "name", job.sensorID, "error", err)
			}
		}
	}
}

func telemetryFromFrame(d Discovery, f Frame) mqtt.Telemetry {
	t := mqtt.Telemetry{
		Timestamp: d.SeenAt,
		Format:    string(f.Format),
		RSSI:      d.RSSI,
	}
	for _, r := range f.Readings {
		v := float64(r.Value)
		switch r.Metric {
		case readings.Temperature:
			t.Temperature = &v
		case readings.Humidity:
			t.Humidity = &v
		case readings.Battery:
			t.Battery = &v
		}
	}
	return t
}
