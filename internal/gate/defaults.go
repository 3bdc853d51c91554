package gate

import (
	"testgen/internal/coverage"
)

// Имена гейтов по умолчанию
const (
	Backend  = "backend"
	Frontend = "frontend"
)

// BackendDefinition python гейт: установка, сканирование безопасности, линт,
// типы, формат, тесты с покрытием, бейдж и публикация артефактов
func BackendDefinition(threshold float64) Definition {
	return Definition{
		Name: Backend,
		Dir:  ".",
		Env:  map[string]string{"TESTING": "true", "PYTHONPATH": "."},
		Stages: []Stage{
			{Name: "install", Kind: KindInstall, Run: []string{"pip", "install", "-r", "requirements.txt"}},
			{Name: "security-scan", Kind: KindAudit, Run: []string{"bandit", "-r", "src", "-ll"}},
			{Name: "lint", Kind: KindLint, Run: []string{"flake8", "src", "tests"}},
			{Name: "typecheck", Kind: KindTypecheck, Run: []string{"mypy", "src"}},
			{Name: "format-check", Kind: KindFormat, Run: []string{"black", "--check", "src", "tests"}},
			{
				Name: "test",
				Kind: KindTest,
				Run:  []string{"pytest", "--cov=src", "--cov-branch", "--cov-report=xml:coverage.xml", "--cov-report=term"},
				Coverage: &CoverageSpec{
					Format:     coverage.FormatCobertura,
					Report:     "coverage.xml",
					Thresholds: coverage.Uniform(threshold, coverage.Total),
				},
			},
			{Name: "badge-generate", Kind: KindBadge},
			{Name: "publish-artifacts", Kind: KindPublish},
		},
	}
}

// FrontendDefinition node гейт. thresholds действующие пороги по метрикам
// (см. coverage.Effective).
func FrontendDefinition(thresholds coverage.Thresholds) Definition {
	return Definition{
		Name: Frontend,
		Dir:  "frontend",
		Env:  map[string]string{"CI": "true"},
		Stages: []Stage{
			{Name: "install", Kind: KindInstall, Run: []string{"npm", "ci"}},
			{Name: "audit", Kind: KindAudit, Run: []string{"npm", "audit", "--audit-level=high"}},
			{Name: "lint", Kind: KindLint, Run: []string{"npm", "run", "lint"}},
			{Name: "prettier", Kind: KindFormat, Run: []string{"npx", "prettier", "--check", "src/**/*.{ts,tsx}"}},
			{Name: "typecheck", Kind: KindTypecheck, Run: []string{"npx", "tsc", "--noEmit"}},
			{
				Name: "test",
				Kind: KindTest,
				Run:  []string{"npm", "test", "--", "--coverage", "--coverageReporters=json-summary", "--watchAll=false"},
				Coverage: &CoverageSpec{
					Format:     coverage.FormatIstanbul,
					Report:     "coverage/coverage-summary.json",
					Thresholds: thresholds,
				},
			},
			{Name: "build", Kind: KindBuild, Run: []string{"npm", "run", "build"}},
			{Name: "publish-artifacts", Kind: KindPublish},
		},
	}
}
