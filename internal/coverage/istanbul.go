package coverage

import (
	"encoding/json"
	"fmt"
	"io"
)

// FormatIstanbul отчет jest в формате coverage-summary.json
const FormatIstanbul = "istanbul"

type istanbulMetric struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
}

type istanbulEntry map[MetricName]istanbulMetric

// ParseIstanbul разбирает coverage-summary.json (json-summary reporter).
// Ключ "total" содержит итог, остальные ключи пути файлов.
func ParseIstanbul(r io.Reader) (*Summary, error) {
	var raw map[string]istanbulEntry
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse coverage-summary.json: %w", err)
	}

	total, ok := raw["total"]
	if !ok {
		return nil, fmt.Errorf("parse coverage-summary.json: missing \"total\" entry")
	}

	s := NewSummary(FormatIstanbul)
	s.Metrics = total.metrics()

	for path, entry := range raw {
		if path == "total" {
			continue
		}
		s.Files = append(s.Files, FileSummary{Path: path, Metrics: entry.metrics()})
	}
	s.sortFiles()

	return s, nil
}

func (e istanbulEntry) metrics() map[MetricName]Metric {
	out := make(map[MetricName]Metric, len(Metrics))
	for _, name := range Metrics {
		if m, ok := e[name]; ok {
			out[name] = Metric{Covered: m.Covered, Total: m.Total}
		}
	}
	return out
}
