package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"testgen/internal/artifact"
	"testgen/internal/config"
	"testgen/internal/coverage"
	"testgen/internal/gate"
	"testgen/internal/metrics"
)

// execute запускает корневую команду с аргументами и возвращает вывод
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_PATH", filepath.Join(t.TempDir(), "testgen.log"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ENVIRONMENT", "testing")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	return out.String(), err
}

func setupGlobals(t *testing.T) {
	t.Helper()
	cfg = config.FromEnv()
	log = zap.NewNop()
	prom = metrics.New()
	repoDir = t.TempDir()
	workflow = ""
	shaFlag = ""
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 3, exitCode(&gate.StageError{ExitCode: 3}))
	assert.Equal(t, 2, exitCode(fmt.Errorf("wrapped: %w", &gate.StageError{ExitCode: 2})))
	assert.Equal(t, 1, exitCode(&gate.StageError{}))
}

func TestCommitSHA(t *testing.T) {
	setupGlobals(t)
	cfg.CIConfig.SHA = ""
	assert.Equal(t, "local", commitSHA())

	cfg.CIConfig.SHA = "abc"
	assert.Equal(t, "abc", commitSHA())

	shaFlag = "def"
	t.Cleanup(func() { shaFlag = "" })
	assert.Equal(t, "def", commitSHA())
}

func TestFrontendThresholds(t *testing.T) {
	setupGlobals(t)
	cfg.CoverageConfig.PackageJSONPath = "package.json"
	cfg.CoverageConfig.FrontendThreshold = 90
	cfg.CIConfig.Enabled = false

	// без манифеста действуют значения по умолчанию
	got, err := frontendThresholds()
	require.NoError(t, err)
	assert.Equal(t, coverage.Uniform(80, coverage.Metrics...), got)

	cfg.CIConfig.Enabled = true
	got, err = frontendThresholds()
	require.NoError(t, err)
	assert.Equal(t, coverage.Uniform(90, coverage.Metrics...), got)

	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "package.json"),
		[]byte(`{"jest":{"coverageThreshold":{"global":{"branches":95}}}}`), 0o644))
	got, err = frontendThresholds()
	require.NoError(t, err)
	assert.Equal(t, 95.0, got[coverage.Branches])
	assert.Equal(t, 90.0, got[coverage.Lines])
}

func TestGateDefinitions_WorkflowOverride(t *testing.T) {
	setupGlobals(t)
	path := filepath.Join(t.TempDir(), "gates.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
gates:
  frontend:
    dir: web
    stages:
      - name: build
        kind: build
        run: [npm, run, build]
`), 0o644))
	workflow = path
	t.Cleanup(func() { workflow = "" })

	defs, err := gateDefinitions()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, ".", defs[0].Dir)
	assert.Equal(t, "web", defs[1].Dir)
}

func TestComposeCommand(t *testing.T) {
	out, err := execute(t, "compose")
	require.NoError(t, err)

	assert.Contains(t, out, "5432:5432")
	assert.Contains(t, out, "27017:27017")
	assert.Contains(t, out, "${POSTGRES_PASSWORD}")
	assert.Contains(t, out, "postgres_data")
}

func TestUIBuildCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")

	out, err := execute(t, "ui", "build", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "index.html")
	assert.FileExists(t, filepath.Join(dir, "index.html"))
}

func writeReport(t *testing.T, covered int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coverage.xml")
	xml := fmt.Sprintf(`<coverage lines-valid="1000" lines-covered="%d" branches-valid="0" branches-covered="0"/>`, covered)
	require.NoError(t, os.WriteFile(path, []byte(xml), 0o644))
	return path
}

func TestCoverageCheckCommand(t *testing.T) {
	_, err := execute(t, "coverage", "check", "--format", "cobertura", "--report", writeReport(t, 900), "--threshold", "90")
	require.NoError(t, err)

	_, err = execute(t, "coverage", "check", "--format", "cobertura", "--report", writeReport(t, 899), "--threshold", "90")
	require.Error(t, err)
	assert.ErrorIs(t, err, coverage.ErrCoverageShortfall)
	assert.Equal(t, 2, exitCode(err))
}

func TestCoverageBadgeCommand(t *testing.T) {
	badge := filepath.Join(t.TempDir(), "coverage-badge.svg")

	_, err := execute(t, "coverage", "badge", "--format", "cobertura", "--report", writeReport(t, 930), "-o", badge)
	require.NoError(t, err)

	data, err := os.ReadFile(badge)
	require.NoError(t, err)
	assert.Contains(t, string(data), "93%")
}

func TestGateCommand_PropagatesExitCode(t *testing.T) {
	repo := t.TempDir()
	gates := filepath.Join(t.TempDir(), "gates.yml")
	require.NoError(t, os.WriteFile(gates, []byte(`
gates:
  backend:
    dir: .
    stages:
      - name: lint
        kind: lint
        run: [sh, -c, "exit 4"]
`), 0o644))
	t.Setenv("ARTIFACT_DIR", filepath.Join(t.TempDir(), "artifacts"))

	out, err := execute(t, "gate", "backend", "-C", repo, "--workflow", gates, "--sha", "abc123")
	t.Cleanup(func() { workflow, repoDir, shaFlag = "", ".", "" })

	require.Error(t, err)
	assert.Equal(t, 4, exitCode(err))
	assert.Contains(t, out, "lint")
	assert.Contains(t, out, "failed")
}

func TestArtifactsExportCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")
	t.Setenv("ARTIFACT_DIR", dir)

	store, err := artifact.Open(artifact.Options{Dir: dir}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Put(artifact.Record{SHA: "abc123", Gate: gate.Backend, Name: coverage.BadgeFile, Data: []byte("<svg/>")}))
	require.NoError(t, store.Close())

	out, err := execute(t, "artifacts", "list", "--sha", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "abc123/backend/coverage-badge.svg")

	target := t.TempDir()
	_, err = execute(t, "artifacts", "export", "--sha", "abc123", "-o", target)
	t.Cleanup(func() { shaFlag = "" })
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(target, gate.Backend, coverage.BadgeFile))
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))

	_, err = execute(t, "artifacts", "export", "--sha", "missing", "-o", target)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}
