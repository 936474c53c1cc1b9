package ble

import (
	"errors"
	"fmt"
	"math"

	"sauron-gateway/internal/readings"
)

// Service data layouts broadcast by Xiaomi LYWSD03MMC style thermometers,
// told apart by total length:
//
//	13 bytes  ATC custom firmware: [6:8] temperature BE x10, [8] humidity %, [9] battery %
//	15 bytes  pvvx custom firmware (not decoded)
//	other     stock Xiaomi (nominally 18): [11] event type, data from [14]
//
// Two-byte Xiaomi fields are little-endian: the byte at the higher index is
// the most significant one.
const (
	atcPayloadLen  = 13
	pvvxPayloadLen = 15

	xiaomiTypeIndex = 11
	xiaomiDataIndex = 14
)

// Xiaomi event types found at byte 11.
const (
	xiaomiTemperature         = 0x04
	xiaomiHumidity            = 0x06
	xiaomiBattery             = 0x0A
	xiaomiTemperatureHumidity = 0x0D
)

// Format identifies the layout a frame was decoded from.
type Format string

const (
	FormatATC    Format = "atc"
	FormatXiaomi Format = "xiaomi"
)

// ErrUnrecognized is returned for service data that is not a supported
// sensor frame. Most traffic in range is not of interest, so callers drop it.
var ErrUnrecognized = errors.New("unrecognized payload")

// Reading is one decoded metric.
type Reading struct {
	Metric readings.Metric
	Value  float32
}

// Frame is the complete result of decoding one advertisement.
type Frame struct {
	Format   Format
	Readings []Reading
}

// ParseServiceData decodes service data advertised by the device called
// name. It never panics: every branch checks the length it needs first.
func ParseServiceData(name string, data []byte) (Frame, error) {
	switch len(data) {
	case atcPayloadLen:
		return parseATC(data), nil
	case pvvxPayloadLen:
		return Frame{}, fmt.Errorf("%w: pvvx format from %q not supported", ErrUnrecognized, name)
	default:
		return parseXiaomi(name, data)
	}
}

func parseATC(data []byte) Frame {
	raw := int32(uint16(data[6])<<8 | uint16(data[7]))
	if raw >= 0x8000 {
		// Matches the upstream firmware decoder, one off from two's complement.
		raw -= 0xFFFF
	}
	return Frame{
		Format: FormatATC,
		Readings: []Reading{
			{Metric: readings.Temperature, Value: float32(raw) / 10},
			{Metric: readings.Humidity, Value: float32(data[8])},
			{Metric: readings.Battery, Value: float32(data[9])},
		},
	}
}

func parseXiaomi(name string, data []byte) (Frame, error) {
	if len(data) <= xiaomiTypeIndex {
		return Frame{}, fmt.Errorf("%w: payload too short: %d", ErrUnrecognized, len(data))
	}

	var out []Reading
	switch typ := data[xiaomiTypeIndex]; typ {
	case xiaomiTemperature:
		raw, ok := pairAt(data, xiaomiDataIndex)
		if !ok {
			return Frame{}, shortXiaomi(typ, data)
		}
		out = append(out, Reading{Metric: readings.Temperature, Value: float32(raw) / 10})
	case xiaomiHumidity:
		raw, ok := pairAt(data, xiaomiDataIndex)
		if !ok {
			return Frame{}, shortXiaomi(typ, data)
		}
		out = append(out, Reading{Metric: readings.Humidity, Value: float32(raw) / 10})
	case xiaomiBattery:
		if len(data) <= xiaomiDataIndex {
			return Frame{}, shortXiaomi(typ, data)
		}
		out = append(out, Reading{Metric: readings.Battery, Value: float32(data[xiaomiDataIndex])})
	case xiaomiTemperatureHumidity:
		temp, ok := pairAt(data, xiaomiDataIndex)
		if !ok {
			return Frame{}, shortXiaomi(typ, data)
		}
		hum, ok := pairAt(data, xiaomiDataIndex+2)
		if !ok {
			return Frame{}, shortXiaomi(typ, data)
		}
		out = append(out,
			Reading{Metric: readings.Temperature, Value: float32(temp) / 10},
			Reading{Metric: readings.Humidity, Value: float32(math.Floor(float64(float32(hum) / 10)))},
		)
	default:
		return Frame{}, fmt.Errorf("%w: xiaomi event type 0x%02X from %q", ErrUnrecognized, typ, name)
	}

	return Frame{Format: FormatXiaomi, Readings: out}, nil
}

// pairAt reads data[i+1]:data[i] as a 16-bit value, high byte first.
func pairAt(data []byte, i int) (uint16, bool) {
	if i < 0 || len(data) < i+2 {
		return 0, false
	}
	return uint16(data[i+1])<<8 | uint16(data[i]), true
}

func shortXiaomi(typ byte, data []byte) error {
	return fmt.Errorf("%w: xiaomi event type 0x%02X too short: %d", ErrUnrecognized, typ, len(data))
}
