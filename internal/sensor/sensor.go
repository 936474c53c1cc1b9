package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"sauron-gateway/internal/config"
	"sauron-gateway/internal/readings"
)

// Recorder receives local readings through the same entry point as BLE
// sensors.
type Recorder interface {
	Record(name string, m readings.Metric, v float32) bool
}

type senser interface {
	Sense(env *physic.Env) error
}

// Run polls a BME280 on the default I2C bus and records temperature and
// humidity under cfg.LocalSensorID until ctx is done.
func Run(ctx context.Context, cfg config.Config, rec Recorder) error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open("") // default bus, usually /dev/i2c-1
	if err != nil {
		return fmt.Errorf("i2c open: %w", err)
	}
	defer bus.Close()

	dev, err := bmxx80.NewI2C(bus, cfg.BME280Address, &bmxx80.DefaultOpts)
	if err != nil {
		return fmt.Errorf("bme280 at 0x%02X: %w", cfg.BME280Address, err)
	}
	defer dev.Halt()

	slog.Info("sensor: local bme280 ready",
		"address", fmt.Sprintf("0x%02X", cfg.BME280Address),
		"sensor_id", cfg.LocalSensorID,
		"interval", cfg.SensorPollInterval,
	)
	return poll(ctx, dev, cfg.SensorPollInterval, cfg.LocalSensorID, rec)
}

func poll(ctx context.Context, dev senser, interval time.Duration, id string, rec Recorder) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var env physic.Env
			if err := dev.Sense(&env); err != nil {
				return fmt.Errorf("bme280 sense: %w", err)
			}
			recordEnv(rec, id, env)
		}
	}
}

func recordEnv(rec Recorder, id string, env physic.Env) {
	temperature := env.Temperature.Celsius()

	// env.Humidity is a fixed point integer at a precision of 0.00001%rH.
	humidity := float64(env.Humidity) / float64(physic.PercentRH)

	rec.Record(id, readings.Temperature, float32(temperature))
	rec.Record(id, readings.Humidity, float32(humidity))
}
