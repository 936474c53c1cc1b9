package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	BLEAdapter    string
	BLENamePrefix string

	StaleThreshold   time.Duration
	MemoryFloor      uint64
	WatchdogInterval time.Duration
	RestartOnFault   bool

	LocalSensorEnabled bool
	LocalSensorID      string
	BME280Address      uint16
	SensorPollInterval time.Duration

	MQTTEnabled  bool
	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":80"
	}

	bleAdapter := strings.TrimSpace(os.Getenv("BLE_ADAPTER"))
	if bleAdapter == "" {
		bleAdapter = "hci0"
	}

	// An explicitly empty prefix accepts every device.
	bleNamePrefix, ok := os.LookupEnv("BLE_NAME_PREFIX")
	if !ok {
		bleNamePrefix = "THS_"
	}
	bleNamePrefix = strings.TrimSpace(bleNamePrefix)

	staleThreshold, err := durationEnv("STALE_THRESHOLD", "5m")
	if err != nil {
		return Config{}, err
	}

	memoryFloorStr := strings.TrimSpace(os.Getenv("MEMORY_FLOOR"))
	if memoryFloorStr == "" {
		memoryFloorStr = "16777216"
	}
	memoryFloor, err := strconv.ParseUint(memoryFloorStr, 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MEMORY_FLOOR %q: %w", memoryFloorStr, err)
	}

	watchdogInterval, err := durationEnv("WATCHDOG_INTERVAL", "30s")
	if err != nil {
		return Config{}, err
	}

	restartOnFault, err := boolEnv("RESTART_ON_FAULT", false)
	if err != nil {
		return Config{}, err
	}

	localSensorEnabled, err := boolEnv("LOCAL_SENSOR_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	localSensorID := strings.TrimSpace(os.Getenv("LOCAL_SENSOR_ID"))
	if localSensorID == "" {
		localSensorID = "local"
	}

	bme280AddressStr := strings.TrimSpace(os.Getenv("BME280_ADDRESS"))
	if bme280AddressStr == "" {
		bme280AddressStr = "0x76"
	}
	bme280Address, err := strconv.ParseUint(bme280AddressStr, 0, 16)
	if err != nil {
		return Config{}, fmt.Errorf("invalid BME280_ADDRESS %q: %w", bme280AddressStr, err)
	}

	sensorPollInterval, err := durationEnv("SENSOR_POLL_INTERVAL", "10s")
	if err != nil {
		return Config{}, err
	}

	mqttEnabled, err := boolEnv("MQTT_ENABLED", false)
	if err != nil {
		return Config{}, err
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "sauron-gateway"
	}

	return Config{
		AppEnv:             appEnv,
		LogLevel:           level,
		HTTPAddr:           httpAddr,
		BLEAdapter:         bleAdapter,
		BLENamePrefix:      bleNamePrefix,
		StaleThreshold:     staleThreshold,
		MemoryFloor:        memoryFloor,
		WatchdogInterval:   watchdogInterval,
		RestartOnFault:     restartOnFault,
		LocalSensorEnabled: localSensorEnabled,
		LocalSensorID:      localSensorID,
		BME280Address:      uint16(bme280Address),
		SensorPollInterval: sensorPollInterval,
		MQTTEnabled:        mqttEnabled,
		MQTTBroker:         mqttBroker,
		MQTTPort:           mqttPort,
		MQTTClientID:       mqttClientID,
	}, nil
}

// durationEnv parses a positive duration.
func durationEnv(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
