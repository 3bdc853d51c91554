package coverage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ErrCoverageShortfall возвращается, когда хотя бы одна метрика ниже порога
var ErrCoverageShortfall = errors.New("coverage below threshold")

// DefaultManifestThreshold порог jest.coverageThreshold.global по умолчанию
const DefaultManifestThreshold = 80.0

// Thresholds минимальный процент по метрикам
type Thresholds map[MetricName]float64

// Uniform задает один порог для перечисленных метрик
func Uniform(pct float64, names ...MetricName) Thresholds {
	t := make(Thresholds, len(names))
	for _, n := range names {
		t[n] = pct
	}
	return t
}

// Effective объединяет пороги манифеста и CI. Вне CI действует манифест,
// в CI по каждой метрике берется более строгое значение.
func Effective(manifest, ci Thresholds, inCI bool) Thresholds {
	out := make(Thresholds, len(manifest)+len(ci))
	for n, v := range manifest {
		out[n] = v
	}
	if !inCI {
		return out
	}
	for n, v := range ci {
		if cur, ok := out[n]; !ok || v > cur {
			out[n] = v
		}
	}
	return out
}

// names отсортированные имена метрик
func (t Thresholds) names() []MetricName {
	names := make([]MetricName, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Shortfall одна метрика ниже порога
type Shortfall struct {
	Metric   MetricName
	Actual   float64
	Required float64
}

// ShortfallError перечисляет все метрики ниже порога
type ShortfallError struct {
	Shortfalls []Shortfall
}

func (e *ShortfallError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s %s%% < %.2f%%", s.Metric, formatActual(s.Actual, s.Required), s.Required))
	}
	return fmt.Sprintf("%s: %s", ErrCoverageShortfall, strings.Join(parts, ", "))
}

// formatActual печатает покрытие с точностью, при которой видно, что оно ниже порога
func formatActual(actual, required float64) string {
	if Round(actual) < Round(required) {
		return fmt.Sprintf("%.2f", actual)
	}
	return fmt.Sprintf("%.4f", actual)
}

// Is позволяет errors.Is(err, ErrCoverageShortfall)
func (e *ShortfallError) Is(target error) bool {
	return target == ErrCoverageShortfall
}

// Check сравнивает итог с порогами. Фактическое покрытие не округляется:
// 89.996% не проходит порог 90%. Метрика, которой нет в отчете, считается непокрытой.
func Check(s *Summary, t Thresholds) error {
	var shortfalls []Shortfall
	for _, name := range t.names() {
		if s.Meets(name, t[name]) {
			continue
		}
		actual := 0.0
		if s.Has(name) {
			actual = s.Metric(name).Pct()
		}
		shortfalls = append(shortfalls, Shortfall{Metric: name, Actual: actual, Required: t[name]})
	}
	if len(shortfalls) > 0 {
		return &ShortfallError{Shortfalls: shortfalls}
	}
	return nil
}

type packageJSON struct {
	Jest struct {
		CoverageThreshold struct {
			Global map[MetricName]float64 `json:"global"`
		} `json:"coverageThreshold"`
	} `json:"jest"`
}

// ManifestThresholds читает jest.coverageThreshold.global из package.json.
// Незаданные метрики получают DefaultManifestThreshold.
func ManifestThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return parseManifest(data)
}

func parseManifest(data []byte) (Thresholds, error) {
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	t := Uniform(DefaultManifestThreshold, Metrics...)
	for name, v := range pkg.Jest.CoverageThreshold.Global {
		if _, known := t[name]; !known {
			continue
		}
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("parse manifest: %s threshold out of range: %v", name, v)
		}
		t[name] = v
	}
	return t, nil
}
