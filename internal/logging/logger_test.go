package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"sauron-gateway/internal/config"
)

func TestNewLogger_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := newLogger(&buf, cfg, "1.2.3", "sauron-gateway")
	logger.Debug("hidden")
	logger.Info("ble: sensor reading recorded", "name", "THS_kitchen")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines=%d want=1 (debug must be filtered): %q", len(lines), buf.String())
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	for k, want := range map[string]string{
		"app":     "sauron-gateway",
		"version": "1.2.3",
		"env":     "prod",
		"name":    "THS_kitchen",
	} {
		if rec[k] != want {
			t.Errorf("%s=%v want=%q", k, rec[k], want)
		}
	}
}

func TestNewLogger_DevIsText(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}

	logger := newLogger(&buf, cfg, "dev", "sauron-gateway")
	logger.Debug("ble: ignore non-sensor payload")

	out := buf.String()
	if !strings.Contains(out, "ble: ignore non-sensor payload") {
		t.Fatalf("output=%q missing message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("output=%q want text, got json", out)
	}
}
