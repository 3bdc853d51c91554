// Package worker реализует пул воркеров. Ошибка одной задачи учитывается
// в метриках и не влияет на остальные задачи пула.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Ошибки
var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Pool пул воркеров
type Pool struct {
	workers  int
	jobQueue chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.Logger
	metrics  *Metrics
	stopOnce sync.Once
	stopped  bool
	mu       sync.RWMutex
}

// Убеждаемся, что Pool реализует PoolInterface
var _ PoolInterface = (*Pool)(nil)

// Job представляет задачу для обработки
type Job struct {
	Name    string
	Handler func(ctx context.Context) error
}

// Metrics метрики пула
type Metrics struct {
	mu             sync.RWMutex
	processedJobs  int64
	failedJobs     int64
	processingTime time.Duration
	queueSize      int
}

// NewWorkerPool создает новый пул воркеров
func NewWorkerPool(workers int, queueSize int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:  workers,
		jobQueue: make(chan Job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		metrics:  &Metrics{},
	}
}

// Start запускает пул воркеров
func (wp *Pool) Start() {
	wp.logger.Debug("Starting worker pool", zap.Int("workers", wp.workers))

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop закрывает очередь, дожидается уже принятых задач и останавливает воркеры
func (wp *Pool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.stopped = true
		wp.mu.Unlock()
		close(wp.jobQueue)
	})

	wp.wg.Wait()
	wp.cancel()
	wp.logger.Debug("Worker pool stopped")
}

// Submit добавляет задачу в очередь
func (wp *Pool) Submit(job Job) error {
	if job.Handler == nil {
		return fmt.Errorf("job %q has no handler", job.Name)
	}

	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.jobQueue <- job:
		wp.metrics.mu.Lock()
		wp.metrics.queueSize = len(wp.jobQueue)
		wp.metrics.mu.Unlock()
		return nil
	default:
		return ErrQueueFull
	}
}

// worker основной цикл воркера
func (wp *Pool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.processJob(job, id)
	}
}

// processJob обрабатывает задачу; паника задачи считается ее ошибкой
func (wp *Pool) processJob(job Job, workerID int) {
	startTime := time.Now()

	wp.logger.Debug("Processing job", zap.Int("worker_id", workerID), zap.String("job", job.Name))

	err := wp.run(job)

	wp.metrics.mu.Lock()
	wp.metrics.queueSize = len(wp.jobQueue)
	if err != nil {
		wp.metrics.failedJobs++
	} else {
		wp.metrics.processedJobs++
	}
	wp.metrics.processingTime += time.Since(startTime)
	wp.metrics.mu.Unlock()

	if err != nil {
		wp.logger.Warn("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(startTime)),
			zap.Error(err))
		return
	}

	wp.logger.Debug("Job processed successfully",
		zap.Int("worker_id", workerID),
		zap.String("job", job.Name),
		zap.Duration("duration", time.Since(startTime)))
}

func (wp *Pool) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %q panicked: %v", job.Name, r)
		}
	}()
	return job.Handler(wp.ctx)
}

// GetProcessedJobs возвращает количество успешных задач
func (wp *Pool) GetProcessedJobs() int64 {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()
	return wp.metrics.processedJobs
}

// GetFailedJobs возвращает количество неудачных задач
func (wp *Pool) GetFailedJobs() int64 {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()
	return wp.metrics.failedJobs
}

// GetProcessingTime возвращает общее время обработки
func (wp *Pool) GetProcessingTime() time.Duration {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()
	return wp.metrics.processingTime
}

// GetQueueSize возвращает текущий размер очереди
func (wp *Pool) GetQueueSize() int {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()
	return wp.metrics.queueSize
}
