package coverage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// backendSummary итог с заданным числом покрытых строк из 1000
func backendSummary(covered int) *Summary {
	s := NewSummary(FormatCobertura)
	s.Metrics[Lines] = Metric{Covered: covered, Total: 1000}
	s.Metrics[Branches] = Metric{}
	return s
}

func TestParseCobertura(t *testing.T) {
	s, err := ParseCobertura(openFixture(t, "coverage.xml"))
	require.NoError(t, err)

	assert.Equal(t, FormatCobertura, s.Format)
	assert.Equal(t, Metric{Covered: 7, Total: 8}, s.Metrics[Lines])
	assert.Equal(t, Metric{Covered: 3, Total: 4}, s.Metrics[Branches])
	// (7 + 3) / (8 + 4)
	assert.Equal(t, 83.33, s.Percent(Total))

	require.Len(t, s.Files, 2)
	assert.Equal(t, "app.py", s.Files[0].Path)
	assert.Equal(t, Metric{Covered: 3, Total: 4}, s.Files[1].Metrics[Lines])
	assert.Equal(t, Metric{Covered: 1, Total: 2}, s.Files[1].Metrics[Branches])
}

func TestParseCobertura_WithoutBranches(t *testing.T) {
	xml := `<coverage lines-valid="10" lines-covered="9" line-rate="0.9"><packages/></coverage>`
	s, err := ParseCobertura(strings.NewReader(xml))
	require.NoError(t, err)

	assert.False(t, s.Has(Branches))
	assert.Equal(t, 90.0, s.Percent(Total))
}

func TestParseCobertura_Invalid(t *testing.T) {
	_, err := ParseCobertura(strings.NewReader(`<report/>`))
	assert.Error(t, err)

	_, err = ParseCobertura(strings.NewReader(`<coverage lines-valid="x" lines-covered="1"/>`))
	assert.Error(t, err)
}

func TestParseIstanbul(t *testing.T) {
	s, err := ParseIstanbul(openFixture(t, "coverage-summary.json"))
	require.NoError(t, err)

	assert.Equal(t, 95.0, s.Percent(Lines))
	assert.Equal(t, 94.76, s.Percent(Statements))
	assert.Equal(t, 92.5, s.Percent(Functions))
	assert.Equal(t, 88.0, s.Percent(Branches))
	require.Len(t, s.Files, 1)
	assert.Equal(t, "/app/frontend/src/App.tsx", s.Files[0].Path)
}

func TestParseIstanbul_MissingTotal(t *testing.T) {
	_, err := ParseIstanbul(strings.NewReader(`{}`))
	assert.Error(t, err)
}

func TestCheck_BackendBoundary(t *testing.T) {
	threshold := Uniform(90, Total)

	err := Check(backendSummary(899), threshold)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCoverageShortfall)
	assert.Contains(t, err.Error(), "total 89.90% < 90.00%")

	assert.NoError(t, Check(backendSummary(900), threshold))
}

func TestCheck_NoRoundingUp(t *testing.T) {
	s := NewSummary(FormatCobertura)
	s.Metrics[Lines] = Metric{Covered: 89996, Total: 100000}
	s.Metrics[Branches] = Metric{}

	// в отчете 90.00%, но фактически покрытие ниже порога
	assert.Equal(t, 90.0, s.Percent(Total))

	err := Check(s, Uniform(90, Total))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCoverageShortfall)
	assert.Contains(t, err.Error(), "total 89.9960% < 90.00%")

	g := GateReport{Gate: "backend", Summary: s, Thresholds: Uniform(90, Total)}
	assert.False(t, g.Passed())
}

func TestMetricMeets(t *testing.T) {
	assert.True(t, Metric{Covered: 900, Total: 1000}.Meets(90))
	assert.False(t, Metric{Covered: 89999, Total: 100000}.Meets(90))
	assert.True(t, Metric{Covered: 899, Total: 1000}.Meets(89.9))
	assert.True(t, Metric{}.Meets(100))
	assert.False(t, Metric{Covered: 1, Total: 3}.Meets(33.34))
}

func TestCheck_FrontendAnyMetricBelow(t *testing.T) {
	threshold := Uniform(90, Metrics...)

	full := NewSummary(FormatIstanbul)
	for _, n := range Metrics {
		full.Metrics[n] = Metric{Covered: 90, Total: 100}
	}
	assert.NoError(t, Check(full, threshold))

	for _, low := range Metrics {
		t.Run(string(low), func(t *testing.T) {
			s := NewSummary(FormatIstanbul)
			for _, n := range Metrics {
				s.Metrics[n] = Metric{Covered: 95, Total: 100}
			}
			s.Metrics[low] = Metric{Covered: 899, Total: 1000}

			err := Check(s, threshold)
			require.Error(t, err)

			var shortfall *ShortfallError
			require.ErrorAs(t, err, &shortfall)
			require.Len(t, shortfall.Shortfalls, 1)
			assert.Equal(t, low, shortfall.Shortfalls[0].Metric)
		})
	}
}

func TestCheck_MissingMetricFails(t *testing.T) {
	err := Check(NewSummary(FormatIstanbul), Uniform(80, Functions))
	assert.ErrorIs(t, err, ErrCoverageShortfall)
}

func TestManifestThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"name": "frontend",
		"jest": {"coverageThreshold": {"global": {"branches": 85, "lines": 80}}}
	}`), 0o644))

	got, err := ManifestThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, Thresholds{Statements: 80, Branches: 85, Functions: 80, Lines: 80}, got)
}

func TestManifestThresholds_Defaults(t *testing.T) {
	got, err := parseManifest([]byte(`{"name": "frontend"}`))
	require.NoError(t, err)
	assert.Equal(t, Uniform(80, Metrics...), got)

	_, err = parseManifest([]byte(`{"jest": {"coverageThreshold": {"global": {"lines": 120}}}}`))
	assert.Error(t, err)
}

func TestEffective(t *testing.T) {
	manifest := Thresholds{Statements: 80, Branches: 95}
	ci := Uniform(90, Statements, Branches)

	assert.Equal(t, manifest, Effective(manifest, ci, false))
	assert.Equal(t, Thresholds{Statements: 90, Branches: 95}, Effective(manifest, ci, true))
}

func TestBadge(t *testing.T) {
	tests := []struct {
		pct   float64
		color string
		text  string
	}{
		{pct: 100, color: "#4c1", text: "100%"},
		{pct: 92.3, color: "#97CA00", text: "92%"},
		{pct: 89.9, color: "#a4a61d", text: "89%"},
		{pct: 61, color: "#dfb317", text: "61%"},
		{pct: 40, color: "#fe7d37", text: "40%"},
		{pct: 12, color: "#e05d44", text: "12%"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			svg, err := Badge(tt.pct)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(svg, []byte("<?xml")))
			assert.Contains(t, string(svg), tt.color)
			assert.Contains(t, string(svg), ">"+tt.text+"<")
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	backend := GateReport{Gate: "backend", Summary: backendSummary(950), Thresholds: Uniform(90, Total)}

	frontend := NewSummary(FormatIstanbul)
	for _, n := range Metrics {
		frontend.Metrics[n] = Metric{Covered: 91, Total: 100}
	}
	front := GateReport{Gate: "frontend", Summary: frontend, Thresholds: Uniform(90, Metrics...)}

	md, err := RenderMarkdown("abc123", BadgeFile, []GateReport{backend, front})
	require.NoError(t, err)

	out := string(md)
	assert.Contains(t, out, "# Coverage Report for abc123")
	assert.Contains(t, out, "![coverage](coverage-badge.svg)")
	assert.Contains(t, out, "## Backend")
	assert.Contains(t, out, "## Frontend")
	assert.Contains(t, out, "| Total | 95.00% | 90.00% | pass |")
	assert.Contains(t, out, "| Branches | 91.00% | 90.00% | pass |")
	assert.True(t, backend.Passed())
}

func TestRenderHTML(t *testing.T) {
	s, err := ParseCobertura(openFixture(t, "coverage.xml"))
	require.NoError(t, err)

	html, err := RenderHTML(GateReport{Gate: "backend", Summary: s, Thresholds: Uniform(90, Total)})
	require.NoError(t, err)

	out := string(html)
	assert.Contains(t, out, "<h1>Backend Coverage</h1>")
	assert.Contains(t, out, `<tr class="fail"><td>Total</td><td>83.33%</td>`)
	assert.Contains(t, out, "<td>config.py</td><td>75.00%</td><td>50.00%</td>")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Security Scan", Title("security-scan"))
	assert.Equal(t, "Backend", Title("backend"))
}

func TestGateReportJSON(t *testing.T) {
	g := GateReport{Gate: "backend", Summary: backendSummary(910), Thresholds: Uniform(90, Total)}
	data, err := g.JSON()
	require.NoError(t, err)

	back, err := ParseGateReport(data)
	require.NoError(t, err)
	assert.Equal(t, "backend", back.Gate)
	assert.Equal(t, 91.0, back.Summary.Percent(Total))
	assert.True(t, back.Passed())

	_, err = ParseGateReport([]byte(`{"gate":"backend"}`))
	assert.Error(t, err)
}
