package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"sauron-gateway/internal/ble"
	"sauron-gateway/internal/config"
	"sauron-gateway/internal/httpapi"
	"sauron-gateway/internal/liveness"
	"sauron-gateway/internal/mqtt"
	"sauron-gateway/internal/readings"
	"sauron-gateway/internal/sensor"
	"sauron-gateway/internal/vitals"
)

const shutdownTimeout = 10 * time.Second

// Run wires the gateway together and blocks until ctx is done or a fatal
// component fails. BLE, the local sensor and MQTT are best effort: the
// gateway keeps serving HTTP without them.
func Run(ctx context.Context, cfg config.Config, appName string) error {
	slog.Info("initializing gateway",
		"http_addr", cfg.HTTPAddr,
		"ble_adapter", cfg.BLEAdapter,
		"ble_name_prefix", cfg.BLENamePrefix,
		"stale_threshold", cfg.StaleThreshold,
		"memory_floor", cfg.MemoryFloor,
		"mqtt_enabled", cfg.MQTTEnabled,
		"local_sensor_enabled", cfg.LocalSensorEnabled,
	)

	store := readings.NewStore()
	probe := vitals.NewProbe()
	monitor := liveness.NewMonitor(liveness.Policy{
		StaleThreshold: cfg.StaleThreshold,
		MemoryFloor:    cfg.MemoryFloor,
	}, store, probe)

	var mqttClient *mqtt.Client
	if cfg.MQTTEnabled {
		c, err := mqtt.NewClient(cfg, slog.Default())
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		mqttClient = c
		defer mqttClient.Disconnect()
	}

	handlerOpts := ble.HandlerOptions{NamePrefix: cfg.BLENamePrefix}
	if mqttClient != nil {
		handlerOpts.Publisher = mqttClient
	}
	bleHandler := ble.NewBLESensorHandler(store, handlerOpts)

	watchdog := liveness.NewWatchdog(monitor, liveness.WatchdogOptions{
		Interval:       cfg.WatchdogInterval,
		RestartOnFault: cfg.RestartOnFault,
		OnStatus: func(st liveness.Status) {
			publishHealth(mqttClient, cfg.MQTTClientID, st, store.Len())
		},
	})

	srv := httpapi.NewServer(cfg, httpapi.NewMux(httpapi.Deps{
		Store:   store,
		Vitals:  probe,
		Health:  monitor,
		AppName: appName,
	}))

	g, ctx := errgroup.WithContext(ctx)

	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.Connect(ctx); err != nil && ctx.Err() == nil {
				slog.Error("mqtt connect failed; continuing without mqtt", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		return bleHandler.Run(ctx)
	})

	g.Go(func() error {
		listener := ble.NewListener(ble.Options{Adapter: cfg.BLEAdapter})
		if err := listener.Run(ctx, bleHandler.HandleDiscovery); err != nil {
			slog.Warn("ble listener could not be initialized; gateway continues without BLE",
				"error", err,
			)
		}
		return nil
	})

	if cfg.LocalSensorEnabled {
		g.Go(func() error {
			if err := sensor.Run(ctx, cfg, store); err != nil && ctx.Err() == nil {
				slog.Warn("local sensor stopped; gateway continues without it", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		err := watchdog.Run(ctx)
		if errors.Is(err, liveness.ErrUnhealthy) {
			slog.Error("watchdog requested restart", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("http: listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http: shutdown", "error", err)
		}
		return nil
	})

	err := g.Wait()
	slog.Info("gateway shutting down")
	return err
}

// publishHealth mirrors a liveness evaluation to MQTT when a client is
// connected. Failures are logged and otherwise ignored.
func publishHealth(c *mqtt.Client, gatewayID string, st liveness.Status, sensors int) {
	if c == nil || !c.IsConnected() {
		return
	}
	err := c.PublishHealth(healthMessage(gatewayID, st, sensors))
	if err != nil {
		slog.Warn("mqtt: failed to publish gateway health", "error", err)
	}
}

func healthMessage(gatewayID string, st liveness.Status, sensors int) mqtt.GatewayHealth {
	return mqtt.GatewayHealth{
		GatewayID:  gatewayID,
		LastUpdate: st.LastUpdate,
		Healthy:    st.Healthy(),
		Stuck:      st.Stuck,
		LowMemory:  st.LowMemory,
		Sensors:    sensors,
	}
}
