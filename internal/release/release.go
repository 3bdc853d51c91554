// Package release собирает и публикует релиз коммита: сводный отчет о покрытии
// и бейдж бэкенда.
package release

import (
	"context"
	"errors"
	"fmt"

	"testgen/internal/artifact"
	"testgen/internal/coverage"
)

// ErrCoverageNotMet сохраненный итог гейта ниже порогов
var ErrCoverageNotMet = errors.New("stored coverage is below thresholds")

// Asset файл релиза
type Asset struct {
	Name        string
	ContentType string
	Data        []byte
}

// Release релиз коммита
type Release struct {
	Tag    string
	Name   string
	Body   string
	Assets []Asset
}

// Published итог публикации
type Published struct {
	ID      int64
	URL     string
	Created bool
	Assets  []string
}

// Publisher публикует релиз
type Publisher interface {
	Publish(ctx context.Context, rel Release) (*Published, error)
}

// ArtifactReader читает артефакты гейтов
type ArtifactReader interface {
	Get(sha, gate, name string) (*artifact.Record, error)
}

// Name имя релиза для коммита
func Name(sha string) string {
	return "Release " + sha
}

// Build собирает релиз из артефактов гейтов. Бейдж берется у badgeGate.
// Итог гейта, не проходящий свои пороги, релиз не допускает.
func Build(store ArtifactReader, sha, badgeGate string, gates ...string) (Release, error) {
	if sha == "" {
		return Release{}, fmt.Errorf("commit sha is required")
	}

	reports := make([]coverage.GateReport, 0, len(gates))
	for _, gate := range gates {
		rec, err := store.Get(sha, gate, coverage.ReportJSONFile)
		if err != nil {
			return Release{}, fmt.Errorf("coverage summary of %s: %w", gate, err)
		}
		report, err := coverage.ParseGateReport(rec.Data)
		if err != nil {
			return Release{}, fmt.Errorf("coverage summary of %s: %w", gate, err)
		}
		if !report.Passed() {
			return Release{}, fmt.Errorf("%w: %s", ErrCoverageNotMet, gate)
		}
		reports = append(reports, *report)
	}

	badge, err := store.Get(sha, badgeGate, coverage.BadgeFile)
	if err != nil {
		return Release{}, fmt.Errorf("coverage badge of %s: %w", badgeGate, err)
	}

	md, err := coverage.RenderMarkdown(sha, coverage.BadgeFile, reports)
	if err != nil {
		return Release{}, err
	}

	return Release{
		Tag:  sha,
		Name: Name(sha),
		Body: string(md),
		Assets: []Asset{
			{Name: coverage.ReportFile, ContentType: "text/markdown; charset=utf-8", Data: md},
			{Name: coverage.BadgeFile, ContentType: "image/svg+xml", Data: badge.Data},
		},
	}, nil
}
