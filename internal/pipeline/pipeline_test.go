package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"testgen/internal/artifact"
	"testgen/internal/coverage"
	"testgen/internal/gate"
	"testgen/internal/release"
)

const sha = "3a7bd3e2360a3d29eea436fcfb7e44c735d117c4"

var mainPush = Event{Name: "push", Ref: "refs/heads/main", SHA: sha}

type recordingPublisher struct {
	mu       sync.Mutex
	releases []release.Release
}

func (p *recordingPublisher) Publish(_ context.Context, rel release.Release) (*release.Published, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases = append(p.releases, rel)
	return &release.Published{ID: 1, Created: true, URL: "https://example.invalid/releases/" + rel.Tag}, nil
}

// scriptedRunner возвращает заданный итог для каждого гейта
type scriptedRunner struct {
	fail  map[string]error
	delay map[string]time.Duration
}

func (r scriptedRunner) Run(ctx context.Context, def gate.Definition, sha string) (*gate.Result, error) {
	if d := r.delay[def.Name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return &gate.Result{Gate: def.Name, Status: gate.StatusFailed}, ctx.Err()
		}
	}
	if err := r.fail[def.Name]; err != nil {
		return &gate.Result{Gate: def.Name, SHA: sha, Status: gate.StatusFailed}, err
	}
	return &gate.Result{Gate: def.Name, SHA: sha, Status: gate.StatusPassed}, nil
}

func definitions() []gate.Definition {
	return []gate.Definition{
		{Name: gate.Backend},
		{Name: gate.Frontend},
	}
}

func TestEvent_ReleaseEligible(t *testing.T) {
	ok, _ := mainPush.ReleaseEligible()
	assert.True(t, ok)

	ok, reason := Event{Name: "pull_request", Ref: MainRef}.ReleaseEligible()
	assert.False(t, ok)
	assert.Contains(t, reason, "pull_request")

	ok, reason = Event{Name: "push", Ref: "refs/heads/feature"}.ReleaseEligible()
	assert.False(t, ok)
	assert.Contains(t, reason, "refs/heads/feature")
}

func TestPipeline_RedGateDoesNotCancelSibling(t *testing.T) {
	defer goleak.VerifyNone(t)

	lintErr := &gate.StageError{Gate: gate.Backend, Stage: "lint", Kind: gate.FailureStaticCheck, ExitCode: 1, Err: errors.New("flake8")}
	runner := scriptedRunner{
		fail:  map[string]error{gate.Backend: lintErr},
		delay: map[string]time.Duration{gate.Frontend: 50 * time.Millisecond},
	}
	pub := &recordingPublisher{}

	out, err := New(runner, definitions(), nil, pub, nil, zap.NewNop()).Run(context.Background(), mainPush)

	require.ErrorIs(t, err, lintErr)
	assert.True(t, out.Results[1].Passed(), "frontend must finish after backend failed")
	assert.False(t, out.Released)
	assert.Contains(t, out.Reason, "backend")
	assert.Empty(t, pub.releases)
}

func TestPipeline_NoReleaseOutsideMainPush(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &recordingPublisher{}
	out, err := New(scriptedRunner{}, definitions(), nil, pub, nil, zap.NewNop()).
		Run(context.Background(), Event{Name: "pull_request", Ref: "refs/pull/7/merge", SHA: sha})

	require.NoError(t, err)
	assert.False(t, out.Released)
	assert.Contains(t, out.Reason, "not a push")
	assert.Empty(t, pub.releases)
}

// runnerFunc гейт, поведение которого задается функцией
type runnerFunc func(def gate.Definition, sha string) (*gate.Result, error)

func (f runnerFunc) Run(_ context.Context, def gate.Definition, sha string) (*gate.Result, error) {
	return f(def, sha)
}

func passedResult(def gate.Definition, sha string) *gate.Result {
	return &gate.Result{Gate: def.Name, SHA: sha, Status: gate.StatusPassed}
}

func TestPipeline_NoReleaseWhenGateMisbehaves(t *testing.T) {
	tests := []struct {
		name     string
		frontend func(def gate.Definition, sha string) (*gate.Result, error)
		wantErr  error
	}{
		{
			name: "panic",
			frontend: func(gate.Definition, string) (*gate.Result, error) {
				panic("frontend gate crashed")
			},
			wantErr: ErrGatePanicked,
		},
		{
			name: "nil result without error",
			frontend: func(gate.Definition, string) (*gate.Result, error) {
				return nil, nil
			},
			wantErr: ErrGateNotPassed,
		},
		{
			name: "failed result without error",
			frontend: func(def gate.Definition, sha string) (*gate.Result, error) {
				return &gate.Result{Gate: def.Name, SHA: sha, Status: gate.StatusFailed}, nil
			},
			wantErr: ErrGateNotPassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)

			runner := runnerFunc(func(def gate.Definition, sha string) (*gate.Result, error) {
				if def.Name == gate.Frontend {
					return tt.frontend(def, sha)
				}
				return passedResult(def, sha), nil
			})
			pub := &recordingPublisher{}

			out, err := New(runner, definitions(), nil, pub, nil, zap.NewNop()).Run(context.Background(), mainPush)

			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, out.Released)
			assert.Contains(t, out.Reason, gate.Frontend)
			assert.True(t, out.Results[0].Passed())
			assert.Len(t, pub.releases, 0)
		})
	}
}

func TestPipeline_NoGates(t *testing.T) {
	_, err := New(scriptedRunner{}, nil, nil, nil, nil, zap.NewNop()).Run(context.Background(), mainPush)
	assert.Error(t, err)
}

// repo готовит каталог с отчетами покрытия для обоих гейтов
func repo(t *testing.T, backendCovered, frontendCovered int) string {
	t.Helper()
	dir := t.TempDir()

	xml := fmt.Sprintf(`<coverage lines-valid="1000" lines-covered="%d" branches-valid="0" branches-covered="0"/>`, backendCovered)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coverage.xml"), []byte(xml), 0o644))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "frontend", "coverage"), 0o755))
	m := fmt.Sprintf(`{"total":1000,"covered":%d}`, frontendCovered)
	summary := fmt.Sprintf(`{"total":{"statements":%s,"branches":%s,"functions":%s,"lines":%s}}`, m, m, m, m)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frontend", "coverage", "coverage-summary.json"), []byte(summary), 0o644))
	return dir
}

// shGates стадии по умолчанию, но каждая команда заменена на true
func shGates() []gate.Definition {
	defs := []gate.Definition{
		gate.BackendDefinition(90),
		gate.FrontendDefinition(coverage.Uniform(90, coverage.Metrics...)),
	}
	for d := range defs {
		for i := range defs[d].Stages {
			if defs[d].Stages[i].Run != nil {
				defs[d].Stages[i].Run = []string{"sh", "-c", "true"}
			}
		}
	}
	return defs
}

func runEndToEnd(t *testing.T, backendCovered, frontendCovered int) (*Outcome, *recordingPublisher, error) {
	t.Helper()
	store, err := artifact.Open(artifact.Options{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner := gate.NewRunner(&gate.ExecExecutor{}, store, nil, zap.NewNop(), repo(t, backendCovered, frontendCovered))
	pub := &recordingPublisher{}

	out, err := New(runner, shGates(), store, pub, nil, zap.NewNop()).Run(context.Background(), mainPush)
	return out, pub, err
}

func TestPipeline_BothGreenOnMainPublishesRelease(t *testing.T) {
	out, pub, err := runEndToEnd(t, 950, 920)
	require.NoError(t, err)

	assert.True(t, out.Released)
	require.Len(t, pub.releases, 1)

	rel := pub.releases[0]
	assert.Equal(t, "Release "+sha, rel.Name)
	assert.Equal(t, sha, rel.Tag)

	var report, badge *release.Asset
	for i := range rel.Assets {
		switch rel.Assets[i].Name {
		case "coverage-report.md":
			report = &rel.Assets[i]
		case "coverage-badge.svg":
			badge = &rel.Assets[i]
		}
	}
	require.NotNil(t, report)
	require.NotNil(t, badge)
	assert.Contains(t, string(report.Data), "![coverage](coverage-badge.svg)")
	assert.Contains(t, string(badge.Data), "95%")
}

func TestPipeline_FrontendRedBlocksRelease(t *testing.T) {
	out, pub, err := runEndToEnd(t, 1000, 899)

	var se *gate.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, gate.Frontend, se.Gate)
	assert.Equal(t, gate.FailureCoverageShortfall, se.Kind)

	assert.True(t, out.Results[0].Passed())
	assert.False(t, out.Released)
	assert.Empty(t, pub.releases)
}
