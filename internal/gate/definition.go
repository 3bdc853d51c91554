// Package gate запускает гейты качества: упорядоченные стадии, которые
// останавливаются на первой ошибке.
package gate

import (
	"fmt"

	"testgen/internal/coverage"
)

// Kind вид стадии
type Kind string

const (
	KindInstall   Kind = "install"
	KindAudit     Kind = "audit"
	KindLint      Kind = "lint"
	KindTypecheck Kind = "typecheck"
	KindFormat    Kind = "format"
	KindTest      Kind = "test"
	KindBadge     Kind = "badge"
	KindPublish   Kind = "publish"
	KindBuild     Kind = "build"
)

var knownKinds = map[Kind]bool{
	KindInstall: true, KindAudit: true, KindLint: true, KindTypecheck: true, KindFormat: true,
	KindTest: true, KindBadge: true, KindPublish: true, KindBuild: true,
}

// commandKinds стадии, которые запускают внешнюю команду
func (k Kind) runsCommand() bool {
	return k != KindBadge && k != KindPublish
}

// CoverageSpec где лежит отчет тестовой стадии и какие пороги к нему применять
type CoverageSpec struct {
	Format     string              `yaml:"format"`
	Report     string              `yaml:"report"`
	Thresholds coverage.Thresholds `yaml:"thresholds"`
}

// Stage одна стадия гейта
type Stage struct {
	Name     string            `yaml:"name"`
	Kind     Kind              `yaml:"kind"`
	Run      []string          `yaml:"run,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Coverage *CoverageSpec     `yaml:"coverage,omitempty"`
}

// Definition описание гейта
type Definition struct {
	Name   string            `yaml:"name"`
	Dir    string            `yaml:"dir"`
	Env    map[string]string `yaml:"env,omitempty"`
	Stages []Stage           `yaml:"stages"`
}

// Validate проверяет описание гейта
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("gate name is required")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("gate %s has no stages", d.Name)
	}

	seen := make(map[string]bool, len(d.Stages))
	for i, s := range d.Stages {
		if s.Name == "" {
			return fmt.Errorf("gate %s: stage %d has no name", d.Name, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("gate %s: duplicate stage %s", d.Name, s.Name)
		}
		seen[s.Name] = true

		if !knownKinds[s.Kind] {
			return fmt.Errorf("gate %s: stage %s has unknown kind %q", d.Name, s.Name, s.Kind)
		}
		if s.Kind.runsCommand() && len(s.Run) == 0 {
			return fmt.Errorf("gate %s: stage %s has no command", d.Name, s.Name)
		}
		if s.Kind == KindTest && s.Coverage != nil {
			switch s.Coverage.Format {
			case coverage.FormatCobertura, coverage.FormatIstanbul:
			default:
				return fmt.Errorf("gate %s: stage %s has unknown coverage format %q", d.Name, s.Name, s.Coverage.Format)
			}
			if s.Coverage.Report == "" {
				return fmt.Errorf("gate %s: stage %s has no coverage report path", d.Name, s.Name)
			}
		}
		// бейдж строится из отчета тестовой стадии
		if s.Kind == KindBadge {
			if _, ok := (Definition{Stages: d.Stages[:i]}).CoverageStage(); !ok {
				return fmt.Errorf("gate %s: stage %s has no coverage stage before it", d.Name, s.Name)
			}
		}
	}
	return nil
}

// CoverageStage возвращает тестовую стадию с покрытием, если она есть
func (d Definition) CoverageStage() (Stage, bool) {
	for _, s := range d.Stages {
		if s.Kind == KindTest && s.Coverage != nil {
			return s, true
		}
	}
	return Stage{}, false
}
