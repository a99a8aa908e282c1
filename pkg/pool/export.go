package pool

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ExportMetrics renders the pool's statistics as a flat key to value map for
// metrics-exporter collaborators. Values are numbers, booleans, durations,
// timestamps, or strings. Entries from tags are merged in verbatim and take
// precedence over same-named metrics.
func (p *Pool[T]) ExportMetrics(tags map[string]string) map[string]interface{} {
	s := p.Stats()
	m := map[string]interface{}{
		"pool_name":              p.cfg.Name,
		"retrieval_policy":       string(p.cfg.Policy),
		"max_pool_size":          p.cfg.MaxPoolSize,
		"max_active_objects":     p.cfg.MaxActiveObjects,
		"available_count":        s.CurrentAvailable,
		"active_count":           s.CurrentActive,
		"total_created":          s.TotalCreated,
		"total_discarded":        s.TotalDiscarded,
		"total_retrieved":        s.TotalRetrieved,
		"total_returned":         s.TotalReturned,
		"peak_active":            s.PeakActive,
		"pool_empty_events":      s.PoolEmptyEvents,
		"utilization_percentage": p.Utilization(),
		"healthy":                p.IsHealthy(),
	}
	if es, ok := p.EvictionStats(); ok {
		m["eviction_policy"] = string(p.cfg.Eviction.Policy)
		m["total_evictions"] = es.TotalEvictions
		m["ttl_evictions"] = es.TTLEvictions
		m["idle_evictions"] = es.IdleEvictions
		m["custom_evictions"] = es.CustomEvictions
		m["eviction_runs"] = es.EvictionRuns
		m["last_eviction_run"] = es.LastRun
		m["last_eviction_duration"] = es.LastRunDuration
	}
	for k, v := range tags {
		m[k] = v
	}
	return m
}

// prometheusCounters classifies exported metric names that are monotonic
// counters; everything else numeric renders as a gauge.
var prometheusCounters = map[string]bool{
	"total_created":     true,
	"total_discarded":   true,
	"total_retrieved":   true,
	"total_returned":    true,
	"pool_empty_events": true,
	"total_evictions":   true,
	"ttl_evictions":     true,
	"idle_evictions":    true,
	"custom_evictions":  true,
	"eviction_runs":     true,
}

// ExportPrometheusMetrics renders the pool's statistics in Prometheus
// exposition text format, one HELP/TYPE pair per metric, labelled with the
// pool name. Counters and gauges are typed distinctly; durations render in
// seconds, timestamps as unix seconds, and string values as an _info gauge
// carrying the string in a value label. Label values are escaped for
// backslash, double quote, and newline.
func (p *Pool[T]) ExportPrometheusMetrics(prefix string) string {
	if prefix == "" {
		prefix = "poolkit"
	}
	metrics := p.ExportMetrics(nil)

	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	poolLabel := `pool="` + escapeLabelValue(p.cfg.Name) + `"`

	var b strings.Builder
	for _, name := range names {
		value := metrics[name]
		full := prefix + "_" + name

		switch v := value.(type) {
		case string:
			if name == "pool_name" {
				continue
			}
			fmt.Fprintf(&b, "# HELP %s_info %s\n", full, helpFor(name))
			fmt.Fprintf(&b, "# TYPE %s_info gauge\n", full)
			fmt.Fprintf(&b, "%s_info{%s,value=\"%s\"} 1\n", full, poolLabel, escapeLabelValue(v))
		case bool:
			n := 0
			if v {
				n = 1
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", full, helpFor(name))
			fmt.Fprintf(&b, "# TYPE %s gauge\n", full)
			fmt.Fprintf(&b, "%s{%s} %d\n", full, poolLabel, n)
		case time.Duration:
			full += "_seconds"
			fmt.Fprintf(&b, "# HELP %s %s\n", full, helpFor(name))
			fmt.Fprintf(&b, "# TYPE %s gauge\n", full)
			fmt.Fprintf(&b, "%s{%s} %g\n", full, poolLabel, v.Seconds())
		case time.Time:
			full += "_timestamp_seconds"
			fmt.Fprintf(&b, "# HELP %s %s\n", full, helpFor(name))
			fmt.Fprintf(&b, "# TYPE %s gauge\n", full)
			if v.IsZero() {
				fmt.Fprintf(&b, "%s{%s} 0\n", full, poolLabel)
			} else {
				fmt.Fprintf(&b, "%s{%s} %d\n", full, poolLabel, v.Unix())
			}
		case int, int64, float64:
			metricType := "gauge"
			if prometheusCounters[name] {
				metricType = "counter"
			}
			fmt.Fprintf(&b, "# HELP %s %s\n", full, helpFor(name))
			fmt.Fprintf(&b, "# TYPE %s %s\n", full, metricType)
			fmt.Fprintf(&b, "%s{%s} %v\n", full, poolLabel, v)
		}
	}
	return b.String()
}

func helpFor(name string) string {
	return "Pool metric " + name
}

// escapeLabelValue escapes a Prometheus label value per the exposition
// format: backslash, double quote, and newline.
func escapeLabelValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}
