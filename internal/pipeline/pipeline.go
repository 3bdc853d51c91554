// Package pipeline запускает гейты параллельно, дожидается обоих и решает,
// публиковать ли релиз.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"testgen/internal/gate"
	"testgen/internal/metrics"
	"testgen/internal/release"
	"testgen/internal/worker"
)

// MainRef ветка, с которой публикуются релизы
const MainRef = "refs/heads/main"

// PushEvent событие push
const PushEvent = "push"

var (
	// ErrGatePanicked гейт упал с паникой
	ErrGatePanicked = errors.New("gate panicked")
	// ErrGateNotPassed гейт завершился без ошибки, но не прошел
	ErrGateNotPassed = errors.New("gate did not pass")
)

// Event событие CI, запустившее пайплайн
type Event struct {
	Name string
	Ref  string
	SHA  string
}

// ReleaseEligible сообщает, допускает ли событие релиз, и причину отказа
func (e Event) ReleaseEligible() (bool, string) {
	if e.Name != PushEvent {
		return false, fmt.Sprintf("event %q is not a push", e.Name)
	}
	if e.Ref != MainRef {
		return false, fmt.Sprintf("ref %q is not %s", e.Ref, MainRef)
	}
	return true, ""
}

// GateRunner выполняет один гейт
type GateRunner interface {
	Run(ctx context.Context, def gate.Definition, sha string) (*gate.Result, error)
}

// Outcome итог пайплайна
type Outcome struct {
	Results   []*gate.Result
	Errors    []error
	Released  bool
	Published *release.Published
	Reason    string
}

// Pipeline гейты плюс шаг релиза
type Pipeline struct {
	runner    GateRunner
	gates     []gate.Definition
	artifacts release.ArtifactReader
	publisher release.Publisher
	badgeGate string
	metrics   metrics.Interface
	logger    *zap.Logger
}

// New создает пайплайн. publisher может быть nil, тогда релиз не публикуется.
func New(runner GateRunner, gates []gate.Definition, artifacts release.ArtifactReader, publisher release.Publisher, m metrics.Interface, logger *zap.Logger) *Pipeline {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Pipeline{
		runner:    runner,
		gates:     gates,
		artifacts: artifacts,
		publisher: publisher,
		badgeGate: gate.Backend,
		metrics:   m,
		logger:    logger,
	}
}

// Run запускает все гейты на отдельных воркерах, ждет их завершения и при
// выполнении условий публикует релиз. Упавший гейт не отменяет соседний.
// Возвращает ошибку первого упавшего гейта в порядке описания.
func (p *Pipeline) Run(ctx context.Context, ev Event) (*Outcome, error) {
	if len(p.gates) == 0 {
		return nil, errors.New("no gates configured")
	}

	logger := p.logger.With(zap.String("sha", ev.SHA), zap.String("event", ev.Name), zap.String("ref", ev.Ref))
	start := time.Now()

	out := &Outcome{
		Results: make([]*gate.Result, len(p.gates)),
		Errors:  make([]error, len(p.gates)),
	}

	pool := worker.NewWorkerPool(len(p.gates), len(p.gates), logger)
	pool.Start()

	for i, def := range p.gates {
		err := pool.Submit(worker.Job{
			Name: def.Name,
			Handler: func(context.Context) error {
				// каждый гейт пишет только в свою ячейку
				out.Results[i], out.Errors[i] = p.runGate(ctx, def, ev.SHA)
				return out.Errors[i]
			},
		})
		if err != nil {
			out.Errors[i] = fmt.Errorf("submit %s gate: %w", def.Name, err)
		}
	}

	// барьер: Stop дожидается всех принятых задач
	pool.Stop()

	var failed []string
	var firstErr error
	for i, def := range p.gates {
		// релиз только при явно прошедшем гейте
		if out.Errors[i] == nil && !out.Results[i].Passed() {
			out.Errors[i] = fmt.Errorf("%w: %s", ErrGateNotPassed, def.Name)
		}
		if out.Errors[i] == nil {
			continue
		}
		failed = append(failed, def.Name)
		if firstErr == nil {
			firstErr = out.Errors[i]
		}
	}

	logger.Info("Gates finished",
		zap.Strings("failed", failed),
		zap.Int64("passed", pool.GetProcessedJobs()),
		zap.Duration("duration", time.Since(start)))

	if firstErr != nil {
		out.Reason = "gates failed: " + strings.Join(failed, ", ")
		logger.Warn("No release created", zap.String("reason", out.Reason))
		p.metrics.RecordRelease(false)
		return out, firstErr
	}

	if ok, reason := ev.ReleaseEligible(); !ok {
		out.Reason = reason
		logger.Info("No release created", zap.String("reason", reason))
		return out, nil
	}

	if p.publisher == nil {
		out.Reason = "no publisher configured"
		logger.Warn("No release created", zap.String("reason", out.Reason))
		return out, nil
	}

	names := make([]string, 0, len(p.gates))
	for _, def := range p.gates {
		names = append(names, def.Name)
	}

	rel, err := release.Build(p.artifacts, ev.SHA, p.badgeGate, names...)
	if err != nil {
		p.metrics.RecordRelease(false)
		return out, fmt.Errorf("build release: %w", err)
	}

	published, err := p.publisher.Publish(ctx, rel)
	if err != nil {
		p.metrics.RecordRelease(false)
		return out, fmt.Errorf("publish release: %w", err)
	}

	out.Released = true
	out.Published = published
	p.metrics.RecordRelease(true)
	logger.Info("Release published", zap.String("name", rel.Name), zap.String("url", published.URL))
	return out, nil
}

// runGate запускает гейт и превращает панику в ошибку гейта
func (p *Pipeline) runGate(ctx context.Context, def gate.Definition, sha string) (result *gate.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Gate panicked", zap.String("gate", def.Name), zap.Any("panic", r))
			result = &gate.Result{Gate: def.Name, SHA: sha, Status: gate.StatusFailed}
			err = fmt.Errorf("%w: %s: %v", ErrGatePanicked, def.Name, r)
		}
	}()
	return p.runner.Run(ctx, def, sha)
}
