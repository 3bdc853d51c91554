package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"testgen/internal/metrics"
)

// ErrUnavailable возвращается, когда компонент не стал готов за отведенный бюджет
var ErrUnavailable = errors.New("datastore unavailable")

// Policy задает бюджет ожидания: интервал между попытками, таймаут одной попытки и число попыток
type Policy struct {
	Interval time.Duration
	Timeout  time.Duration
	Retries  int
}

// DefaultPolicy возвращает бюджет из compose healthcheck: 10s/5s/5
func DefaultPolicy() Policy {
	return Policy{
		Interval: 10 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  5,
	}
}

// Poller опрашивает Probe до готовности
type Poller struct {
	policy  Policy
	logger  *zap.Logger
	metrics metrics.Interface
}

// NewPoller создает Poller
func NewPoller(policy Policy, logger *zap.Logger, m metrics.Interface) *Poller {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Poller{policy: policy, logger: logger, metrics: m}
}

// Policy возвращает действующий бюджет
func (p *Poller) Policy() Policy {
	return p.policy
}

// budget верхняя граница общего времени ожидания, чтобы ограничение шло только по числу попыток
func (p *Poller) budget(retries int) time.Duration {
	return time.Duration(retries)*(p.policy.Interval+p.policy.Timeout) + time.Minute
}

// WaitHealthy опрашивает probe, пока он не ответит успехом.
// После Retries неудачных попыток подряд возвращает ошибку, оборачивающую ErrUnavailable.
func (p *Poller) WaitHealthy(ctx context.Context, target string, probe Probe) error {
	retries := p.policy.Retries
	if retries < 1 {
		retries = 1
	}

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		checkCtx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
		defer cancel()

		err := probe.Check(checkCtx)
		p.metrics.RecordProbe(target, err == nil)
		if err != nil {
			p.logger.Warn("Health check failed",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", retries),
				zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	start := time.Now()
	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.policy.Interval)),
		backoff.WithMaxTries(uint(retries)),
		backoff.WithMaxElapsedTime(p.budget(retries)),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("waiting for %s: %w", target, ctxErr)
		}
		return fmt.Errorf("%s not healthy after %d attempts: %w: %w", target, attempt, ErrUnavailable, err)
	}

	p.logger.Info("Datastore is healthy",
		zap.String("target", target),
		zap.Int("attempts", attempt),
		zap.Duration("waited", time.Since(start)))
	return nil
}
