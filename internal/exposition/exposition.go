// Package exposition renders store snapshots for scrapers and API clients.
package exposition

import (
	"strconv"
	"strings"
	"time"

	"sauron-gateway/internal/readings"
)

// ContentTypeMetrics is the Prometheus text format content type.
const ContentTypeMetrics = "text/plain; version=0.0.4; charset=utf-8"

var metricHelp = map[readings.Metric]string{
	readings.Temperature: "Temperature of the sensor in degrees Celcius.",
	readings.Humidity:    "Relative humidity of the sensor as a percentage.",
	readings.Battery:     "Battery state of charge as a percentage.",
}

// Vitals are process figures supplied by the host.
type Vitals struct {
	FreeMemory uint64
	Uptime     time.Duration
	// Lag is the time since the last accepted update; rendered only when
	// HasLag is set.
	Lag    time.Duration
	HasLag bool
}

// RenderMetrics renders the snapshot and vitals in the Prometheus text
// format. Sensor lines follow snapshot order.
func RenderMetrics(snap readings.Snapshot, v Vitals) string {
	var b strings.Builder

	for _, m := range readings.Metrics {
		writeHeader(&b, string(m), metricHelp[m], "gauge")
	}
	for _, sr := range snap.Sensors {
		label := escapeLabel(sr.Sensor)
		for _, val := range sr.Values {
			b.WriteString(string(val.Metric))
			b.WriteString(`{sensor="`)
			b.WriteString(label)
			b.WriteString(`"} `)
			b.WriteString(FormatValue(val.Value))
			b.WriteByte('\n')
		}
	}

	writeVital(&b, "free_memory_bytes", "Free memory available to the gateway in bytes.", "gauge", v.FreeMemory)
	writeVital(&b, "uptime_seconds", "Seconds since the gateway started.", "counter", uint64(v.Uptime/time.Second))
	if v.HasLag {
		lag := v.Lag
		if lag < 0 {
			lag = 0
		}
		writeVital(&b, "lag_seconds", "Seconds since a sensor reading last changed.", "gauge", uint64(lag/time.Second))
	}

	return b.String()
}

// RenderDevice renders the readings of one sensor as a JSON object with the
// keys temperature, humidity and battery, in that order, omitting metrics
// that were never recorded. An unknown sensor renders as an empty object.
func RenderDevice(snap readings.Snapshot, sensor string) string {
	var b strings.Builder
	b.WriteString("{\n")

	if sr, ok := snap.Lookup(sensor); ok {
		first := true
		for _, m := range readings.Metrics {
			v, ok := sr.Get(m)
			if !ok {
				continue
			}
			if !first {
				b.WriteString(",\n")
			}
			first = false
			b.WriteString(`  "`)
			b.WriteString(string(m))
			b.WriteString(`": `)
			b.WriteString(FormatValue(v))
		}
		if !first {
			b.WriteByte('\n')
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// FormatValue formats v with up to six significant digits and no trailing
// zeros, e.g. 24.6, 50, -0.9, 1e+06.
func FormatValue(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', 6, 32)
}

func writeHeader(b *strings.Builder, name, help, typ string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(help)
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(typ)
	b.WriteByte('\n')
}

func writeVital(b *strings.Builder, name, help, typ string, v uint64) {
	writeHeader(b, name, help, typ)
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(v, 10))
	b.WriteByte('\n')
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}
