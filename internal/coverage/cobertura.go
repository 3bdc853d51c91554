package coverage

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// FormatCobertura отчет coverage.py в формате Cobertura XML
const FormatCobertura = "cobertura"

// ParseCobertura разбирает coverage.xml. Итоговые строки и ветвления берутся
// из атрибутов корня, по файлам считаются из элементов line.
func ParseCobertura(r io.Reader) (*Summary, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse cobertura xml: %w", err)
	}

	root := xmlquery.FindOne(doc, "/coverage")
	if root == nil {
		return nil, fmt.Errorf("parse cobertura xml: no <coverage> root element")
	}

	s := NewSummary(FormatCobertura)

	linesValid, err := intAttr(root, "lines-valid")
	if err != nil {
		return nil, err
	}
	linesCovered, err := intAttr(root, "lines-covered")
	if err != nil {
		return nil, err
	}
	s.Metrics[Lines] = Metric{Covered: linesCovered, Total: linesValid}

	// branches-valid отсутствует, если coverage.py запущен без --branch
	if root.SelectAttr("branches-valid") != "" {
		branchesValid, err := intAttr(root, "branches-valid")
		if err != nil {
			return nil, err
		}
		branchesCovered, err := intAttr(root, "branches-covered")
		if err != nil {
			return nil, err
		}
		s.Metrics[Branches] = Metric{Covered: branchesCovered, Total: branchesValid}
	}

	files := make(map[string]*FileSummary)
	for _, class := range xmlquery.Find(doc, "//class") {
		path := class.SelectAttr("filename")
		fs, ok := files[path]
		if !ok {
			fs = &FileSummary{Path: path, Metrics: make(map[MetricName]Metric)}
			files[path] = fs
		}

		for _, line := range xmlquery.Find(class, "./lines/line") {
			lm := Metric{Total: 1}
			if hits, _ := strconv.Atoi(line.SelectAttr("hits")); hits > 0 {
				lm.Covered = 1
			}
			fs.Metrics[Lines] = fs.Metrics[Lines].Add(lm)

			if line.SelectAttr("branch") == "true" {
				bm, err := conditionCoverage(line.SelectAttr("condition-coverage"))
				if err != nil {
					return nil, fmt.Errorf("%s line %s: %w", path, line.SelectAttr("number"), err)
				}
				fs.Metrics[Branches] = fs.Metrics[Branches].Add(bm)
			}
		}
	}

	for _, fs := range files {
		s.Files = append(s.Files, *fs)
	}
	s.sortFiles()

	return s, nil
}

func intAttr(n *xmlquery.Node, name string) (int, error) {
	raw := n.SelectAttr(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("attribute %s: invalid integer %q", name, raw)
	}
	return v, nil
}

// conditionCoverage разбирает "50% (1/2)"
func conditionCoverage(raw string) (Metric, error) {
	open := strings.IndexByte(raw, '(')
	closing := strings.IndexByte(raw, ')')
	if open < 0 || closing < open {
		return Metric{}, fmt.Errorf("invalid condition-coverage %q", raw)
	}
	covered, total, ok := strings.Cut(raw[open+1:closing], "/")
	if !ok {
		return Metric{}, fmt.Errorf("invalid condition-coverage %q", raw)
	}
	c, err := strconv.Atoi(covered)
	if err != nil {
		return Metric{}, fmt.Errorf("invalid condition-coverage %q", raw)
	}
	t, err := strconv.Atoi(total)
	if err != nil {
		return Metric{}, fmt.Errorf("invalid condition-coverage %q", raw)
	}
	return Metric{Covered: c, Total: t}, nil
}
