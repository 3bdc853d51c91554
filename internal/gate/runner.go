package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"testgen/internal/artifact"
	"testgen/internal/coverage"
	"testgen/internal/metrics"
)

// Status итог стадии или гейта
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// coverage.py --fail-under завершается с кодом 2, jest при недоборе порога с кодом 1
var shortfallExitCodes = map[string]int{
	coverage.FormatCobertura: 2,
	coverage.FormatIstanbul:  1,
}

// ArtifactSink принимает артефакты гейта
type ArtifactSink interface {
	Put(rec artifact.Record) error
}

// StageResult итог стадии
type StageResult struct {
	Name     string
	Kind     Kind
	Status   Status
	Duration time.Duration
	Err      error
}

// Result итог гейта
type Result struct {
	Gate     string
	SHA      string
	Status   Status
	Stages   []StageResult
	Coverage *coverage.GateReport
	Duration time.Duration
}

// Passed сообщает, прошел ли гейт
func (r *Result) Passed() bool {
	return r != nil && r.Status == StatusPassed
}

// Runner выполняет гейты
type Runner struct {
	executor Executor
	sink     ArtifactSink
	metrics  metrics.Interface
	logger   *zap.Logger
	baseDir  string
}

// NewRunner создает Runner. baseDir корень репозитория, относительно него берется Definition.Dir.
func NewRunner(executor Executor, sink ArtifactSink, m metrics.Interface, logger *zap.Logger, baseDir string) *Runner {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Runner{executor: executor, sink: sink, metrics: m, logger: logger, baseDir: baseDir}
}

// run состояние одного запуска гейта; между гейтами не разделяется
type run struct {
	def      Definition
	sha      string
	dir      string
	logger   *zap.Logger
	report   *coverage.GateReport
	rawName  string
	raw      []byte
	badge    []byte
	htmlPage []byte
}

// Run выполняет стадии по порядку. Первая ошибка завершает гейт,
// остальные стадии помечаются skipped. Возвращаемая ошибка *StageError.
func (r *Runner) Run(ctx context.Context, def Definition, sha string) (*Result, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	state := &run{
		def:    def,
		sha:    sha,
		dir:    filepath.Join(r.baseDir, def.Dir),
		logger: r.logger.With(zap.String("gate", def.Name), zap.String("sha", sha)),
	}

	result := &Result{Gate: def.Name, SHA: sha, Status: StatusPassed}
	start := time.Now()
	var failure *StageError

	for _, stage := range def.Stages {
		if failure != nil {
			result.Stages = append(result.Stages, StageResult{Name: stage.Name, Kind: stage.Kind, Status: StatusSkipped})
			r.metrics.RecordStage(def.Name, stage.Name, string(StatusSkipped), 0)
			continue
		}

		state.logger.Info("Running stage", zap.String("stage", stage.Name), zap.String("kind", string(stage.Kind)))
		stageStart := time.Now()
		err := r.runStage(ctx, state, stage)
		sr := StageResult{Name: stage.Name, Kind: stage.Kind, Status: StatusPassed, Duration: time.Since(stageStart)}

		if err != nil {
			sr.Status = StatusFailed
			sr.Err = err
			failure = asStageError(def.Name, stage, err)
			state.logger.Error("Stage failed",
				zap.String("stage", stage.Name),
				zap.String("failure", string(failure.Kind)),
				zap.Int("exit_code", failure.ExitCode),
				zap.Error(err))
		} else {
			state.logger.Info("Stage passed", zap.String("stage", stage.Name), zap.Duration("duration", sr.Duration))
		}

		r.metrics.RecordStage(def.Name, stage.Name, string(sr.Status), sr.Duration)
		result.Stages = append(result.Stages, sr)
	}

	result.Duration = time.Since(start)
	result.Coverage = state.report

	if failure != nil {
		result.Status = StatusFailed
		return result, failure
	}

	state.logger.Info("Gate passed", zap.Duration("duration", result.Duration))
	return result, nil
}

func (r *Runner) runStage(ctx context.Context, state *run, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch stage.Kind {
	case KindBadge:
		return r.badge(state)
	case KindPublish:
		return r.publish(state)
	}

	env := make(map[string]string, len(state.def.Env)+len(stage.Env))
	for k, v := range state.def.Env {
		env[k] = v
	}
	for k, v := range stage.Env {
		env[k] = v
	}

	code, err := r.executor.Run(ctx, Command{Args: stage.Run, Dir: state.dir, Env: env})
	if err != nil {
		return &StageError{Gate: state.def.Name, Stage: stage.Name, Kind: failureKind(stage.Kind), ExitCode: exitCode(code), Err: err}
	}

	if stage.Kind == KindTest && stage.Coverage != nil {
		return r.checkCoverage(state, stage)
	}
	return nil
}

// checkCoverage разбирает отчет тестовой стадии и сравнивает его с порогами
func (r *Runner) checkCoverage(state *run, stage Stage) error {
	spec := stage.Coverage
	path := filepath.Join(state.dir, spec.Report)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read coverage report: %w", err)
	}

	var summary *coverage.Summary
	switch spec.Format {
	case coverage.FormatCobertura:
		summary, err = coverage.ParseCobertura(bytes.NewReader(data))
	case coverage.FormatIstanbul:
		summary, err = coverage.ParseIstanbul(bytes.NewReader(data))
	}
	if err != nil {
		return err
	}

	state.report = &coverage.GateReport{Gate: state.def.Name, Summary: summary, Thresholds: spec.Thresholds}
	state.rawName = filepath.Base(spec.Report)
	state.raw = data

	for name := range spec.Thresholds {
		if summary.Has(name) {
			r.metrics.SetCoverage(state.def.Name, string(name), summary.Percent(name))
		}
	}

	if err := coverage.Check(summary, spec.Thresholds); err != nil {
		return &StageError{
			Gate:     state.def.Name,
			Stage:    stage.Name,
			Kind:     FailureCoverageShortfall,
			ExitCode: shortfallExitCodes[spec.Format],
			Err:      err,
		}
	}

	state.logger.Info("Coverage threshold met", zap.Any("thresholds", spec.Thresholds))
	return nil
}

func (r *Runner) badge(state *run) error {
	if state.report == nil {
		return errors.New("no coverage report to render a badge from")
	}

	pct := headline(state.report.Summary)
	svg, err := coverage.Badge(pct)
	if err != nil {
		return err
	}
	state.badge = svg
	return nil
}

// publish сохраняет артефакты гейта. Вызывается только после успеха всех предыдущих стадий.
func (r *Runner) publish(state *run) error {
	if r.sink == nil {
		return errors.New("no artifact store configured")
	}
	if state.sha == "" {
		return errors.New("commit sha is required to publish artifacts")
	}

	var records []artifact.Record
	if state.report != nil {
		summary, err := state.report.JSON()
		if err != nil {
			return err
		}
		page, err := coverage.RenderHTML(*state.report)
		if err != nil {
			return err
		}
		records = append(records,
			artifact.Record{Name: state.rawName, ContentType: contentType(state.rawName), Data: state.raw},
			artifact.Record{Name: coverage.ReportJSONFile, ContentType: "application/json", Data: summary},
			artifact.Record{Name: "coverage.html", ContentType: "text/html; charset=utf-8", Data: page},
		)
	}
	if state.badge != nil {
		records = append(records, artifact.Record{Name: coverage.BadgeFile, ContentType: "image/svg+xml", Data: state.badge})
	}
	if len(records) == 0 {
		return errors.New("nothing to publish")
	}

	for _, rec := range records {
		rec.SHA = state.sha
		rec.Gate = state.def.Name
		if err := r.sink.Put(rec); err != nil {
			return err
		}
	}

	state.logger.Info("Artifacts published", zap.Int("count", len(records)))
	return nil
}

// headline процент для бейджа: совокупный для coverage.py, строки для jest
func headline(s *coverage.Summary) float64 {
	if s.Format == coverage.FormatCobertura {
		return s.Percent(coverage.Total)
	}
	return s.Percent(coverage.Lines)
}

func asStageError(gate string, stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return &StageError{Gate: gate, Stage: stage.Name, Kind: failureKind(stage.Kind), ExitCode: 1, Err: err}
}

func exitCode(code int) int {
	if code <= 0 {
		return 1
	}
	return code
}

func contentType(name string) string {
	switch filepath.Ext(name) {
	case ".xml":
		return "application/xml"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
