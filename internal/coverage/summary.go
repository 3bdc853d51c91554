// Package coverage разбирает отчеты о покрытии и проверяет пороги.
package coverage

import (
	"math"
	"sort"
)

// MetricName имя метрики покрытия
type MetricName string

const (
	Statements MetricName = "statements"
	Branches   MetricName = "branches"
	Lines      MetricName = "lines"
	Functions  MetricName = "functions"

	// Total совокупное покрытие строк и ветвлений, как в отчете coverage.py
	Total MetricName = "total"
)

// Metrics порядок вывода метрик в отчетах
var Metrics = []MetricName{Statements, Branches, Functions, Lines}

// Metric покрытые и всего
type Metric struct {
	Covered int `json:"covered"`
	Total   int `json:"total"`
}

// Pct процент покрытия. Пустая метрика считается покрытой полностью.
func (m Metric) Pct() float64 {
	if m.Total == 0 {
		return 100
	}
	return float64(m.Covered) / float64(m.Total) * 100
}

// Meets сообщает, достигает ли покрытие порога. Сравнение без округления:
// covered/total >= required/100 в целых сотых процента.
func (m Metric) Meets(required float64) bool {
	req := int64(math.Round(required * 100))
	if m.Total == 0 {
		return req <= 100*100
	}
	return int64(m.Covered)*100*100 >= req*int64(m.Total)
}

// Add складывает метрики
func (m Metric) Add(o Metric) Metric {
	return Metric{Covered: m.Covered + o.Covered, Total: m.Total + o.Total}
}

// FileSummary покрытие одного файла
type FileSummary struct {
	Path    string                `json:"path"`
	Metrics map[MetricName]Metric `json:"metrics"`
}

// Summary итог по отчету
type Summary struct {
	Format  string                `json:"format"`
	Metrics map[MetricName]Metric `json:"metrics"`
	Files   []FileSummary         `json:"files,omitempty"`
}

// NewSummary создает пустой итог
func NewSummary(format string) *Summary {
	return &Summary{Format: format, Metrics: make(map[MetricName]Metric)}
}

// Has сообщает, есть ли метрика в отчете
func (s *Summary) Has(name MetricName) bool {
	if name == Total {
		_, lines := s.Metrics[Lines]
		return lines
	}
	_, ok := s.Metrics[name]
	return ok
}

// Metric метрика по имени. Total: (строки + ветвления покрытые) / (строки + ветвления всего).
func (s *Summary) Metric(name MetricName) Metric {
	if name == Total {
		return s.Metrics[Lines].Add(s.Metrics[Branches])
	}
	return s.Metrics[name]
}

// Percent процент по метрике, округленный до сотых. Только для вывода.
func (s *Summary) Percent(name MetricName) float64 {
	return Round(s.Metric(name).Pct())
}

// Meets сообщает, достигает ли метрика порога
func (s *Summary) Meets(name MetricName, required float64) bool {
	return s.Has(name) && s.Metric(name).Meets(required)
}

func (s *Summary) sortFiles() {
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].Path < s.Files[j].Path })
}

// Round округляет процент до двух знаков для отчетов
func Round(pct float64) float64 {
	return math.Round(pct*100) / 100
}
