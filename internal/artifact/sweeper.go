package artifact

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultGCSchedule расписание GC value log
const DefaultGCSchedule = "@every 5m"

const gcDiscardRatio = 0.5

// Sweeper периодически запускает GC хранилища по cron расписанию
type Sweeper struct {
	store    *Store
	cron     *cron.Cron
	schedule string
	logger   *zap.Logger
	mu       sync.Mutex
	running  bool
}

// NewSweeper создает Sweeper
func NewSweeper(store *Store, schedule string, logger *zap.Logger) *Sweeper {
	if schedule == "" {
		schedule = DefaultGCSchedule
	}
	return &Sweeper{
		store:    store,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		schedule: schedule,
		logger:   logger,
	}
}

// Start регистрирует задачу и запускает cron
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return fmt.Errorf("failed to schedule artifact gc %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Artifact sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop останавливает cron и ждет завершения текущего прохода
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("Artifact sweeper stopped")
}

// Sweep выполняет один проход GC
func (s *Sweeper) Sweep() {
	start := time.Now()
	rounds, err := s.store.CollectGarbage(gcDiscardRatio)
	if err != nil {
		s.logger.Error("Artifact gc failed", zap.Error(err))
		return
	}
	s.logger.Debug("Artifact gc completed", zap.Int("rewritten", rounds), zap.Duration("duration", time.Since(start)))
}
