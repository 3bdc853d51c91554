package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ReportFile имя сводного отчета, прикладываемого к релизу
const ReportFile = "coverage-report.md"

// Title делает заголовок из имени гейта или метрики.
// Caser хранит состояние, поэтому создается на каждый вызов.
func Title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "-", " "))
}

// GateReport итог одного гейта для сводного отчета
type GateReport struct {
	Gate       string     `json:"gate"`
	Summary    *Summary   `json:"summary"`
	Thresholds Thresholds `json:"thresholds"`
}

// ReportJSONFile имя артефакта с итогом гейта
const ReportJSONFile = "summary.json"

// JSON сериализует итог гейта
func (g GateReport) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal gate report: %w", err)
	}
	return data, nil
}

// ParseGateReport читает итог гейта из артефакта
func ParseGateReport(data []byte) (*GateReport, error) {
	g := new(GateReport)
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parse gate report: %w", err)
	}
	if g.Summary == nil {
		return nil, fmt.Errorf("parse gate report: missing summary")
	}
	return g, nil
}

// Passed сообщает, прошел ли гейт пороги
func (g GateReport) Passed() bool {
	return Check(g.Summary, g.Thresholds) == nil
}

type reportRow struct {
	Metric    string
	Percent   string
	Threshold string
	Status    string
}

func (g GateReport) rows() []reportRow {
	names := append([]MetricName(nil), Metrics...)
	if g.Summary.Format == FormatCobertura {
		names = []MetricName{Total, Lines, Branches}
	}

	var rows []reportRow
	for _, n := range names {
		if !g.Summary.Has(n) {
			continue
		}
		row := reportRow{
			Metric:    Title(string(n)),
			Percent:   fmt.Sprintf("%.2f%%", g.Summary.Percent(n)),
			Threshold: "-",
			Status:    "-",
		}
		if req, ok := g.Thresholds[n]; ok {
			row.Threshold = fmt.Sprintf("%.2f%%", req)
			row.Status = "pass"
			if !g.Summary.Meets(n, req) {
				row.Status = "fail"
			}
		}
		rows = append(rows, row)
	}
	return rows
}

var markdownTemplate = template.Must(template.New("report").Parse(`# Coverage Report for {{.SHA}}

![coverage]({{.Badge}})
{{range .Gates}}
## {{.Title}}

| Metric | Coverage | Threshold | Status |
|---|---|---|---|
{{- range .Rows}}
| {{.Metric}} | {{.Percent}} | {{.Threshold}} | {{.Status}} |
{{- end}}
{{end}}`))

type templateGate struct {
	Title string
	Rows  []reportRow
}

// RenderMarkdown рисует сводный отчет по гейтам со ссылкой на бейдж
func RenderMarkdown(sha, badge string, gates []GateReport) ([]byte, error) {
	data := struct {
		SHA   string
		Badge string
		Gates []templateGate
	}{SHA: sha, Badge: badge}

	for _, g := range gates {
		data.Gates = append(data.Gates, templateGate{Title: Title(g.Gate), Rows: g.rows()})
	}

	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render markdown report: %w", err)
	}
	return buf.Bytes(), nil
}

var htmlTemplate = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}} Coverage</title>
</head>
<body>
<h1>{{.Title}} Coverage</h1>
<table>
<thead><tr><th>Metric</th><th>Coverage</th><th>Threshold</th><th>Status</th></tr></thead>
<tbody>
{{- range .Rows}}
<tr class="{{.Status}}"><td>{{.Metric}}</td><td>{{.Percent}}</td><td>{{.Threshold}}</td><td>{{.Status}}</td></tr>
{{- end}}
</tbody>
</table>
<h2>Files</h2>
<table class="files">
<thead><tr><th>File</th><th>Lines</th><th>Branches</th></tr></thead>
<tbody>
{{- range .Files}}
<tr><td>{{.Path}}</td><td>{{.Lines}}</td><td>{{.Branches}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

type htmlFile struct {
	Path     string
	Lines    string
	Branches string
}

// RenderHTML рисует отчет одного гейта в HTML
func RenderHTML(g GateReport) ([]byte, error) {
	files := make([]htmlFile, 0, len(g.Summary.Files))
	for _, f := range g.Summary.Files {
		files = append(files, htmlFile{
			Path:     f.Path,
			Lines:    fmt.Sprintf("%.2f%%", Round(f.Metrics[Lines].Pct())),
			Branches: fmt.Sprintf("%.2f%%", Round(f.Metrics[Branches].Pct())),
		})
	}

	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Title string
		Rows  []reportRow
		Files []htmlFile
	}{Title: Title(g.Gate), Rows: g.rows(), Files: files})
	if err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}
