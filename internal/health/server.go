package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"testgen/internal/middleware"
)

// Version версия, отдаваемая в /health
var Version = "dev"

// Status представляет статус здоровья системы
type Status struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components,omitempty"`
}

// Server представляет HTTP сервер для health check и страницы-заглушки
type Server struct {
	server    *http.Server
	engine    *gin.Engine
	logger    *zap.Logger
	startTime time.Time
	probes    map[string]Probe
	timeout   time.Duration
	mu        sync.Mutex
}

// Option настраивает Server
type Option func(*Server)

// WithMetricsHandler публикует обработчик на /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.engine.GET("/metrics", gin.WrapH(h))
	}
}

// WithPage отдает статическую HTML страницу по пути
func WithPage(path string, html []byte) Option {
	return func(s *Server) {
		s.engine.GET(path, func(c *gin.Context) {
			c.Data(http.StatusOK, "text/html; charset=utf-8", html)
		})
	}
}

// WithProbeTimeout задает таймаут одной проверки компонента
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer создает новый health check сервер
func NewServer(port string, logger *zap.Logger, probes map[string]Probe, opts ...Option) *Server {
	engine := gin.New()
	engine.Use(middleware.Recovery(logger), middleware.Logging(logger))

	s := &Server{
		server: &http.Server{
			Addr:              ":" + port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine:    engine,
		logger:    logger,
		startTime: time.Now(),
		probes:    probes,
		timeout:   DefaultPolicy().Timeout,
	}

	// Регистрируем маршруты
	engine.GET("/health", s.healthHandler)
	engine.GET("/ready", s.readyHandler)
	engine.GET("/live", s.liveHandler)
	engine.NoRoute(notFoundHandler)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler возвращает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start запускает сервер и блокируется до остановки
func (s *Server) Start() error {
	s.logger.Info("Starting health check server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Stop останавливает сервер
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health check server")
	return s.server.Shutdown(ctx)
}

// healthHandler обрабатывает запросы /health
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.status("healthy", s.checkComponents(c.Request.Context())))
}

// readyHandler обрабатывает запросы /ready
func (s *Server) readyHandler(c *gin.Context) {
	components := s.checkComponents(c.Request.Context())

	overall := "ready"
	for _, status := range components {
		if status != "healthy" {
			overall = "unhealthy"
			break
		}
	}

	if overall != "ready" {
		s.logger.Warn("Readiness check failed", zap.Any("components", components))
		c.JSON(http.StatusServiceUnavailable, s.status(overall, components))
		return
	}
	c.JSON(http.StatusOK, s.status(overall, components))
}

// liveHandler обрабатывает запросы /live
func (s *Server) liveHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.status("alive", nil))
}

func notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "Not Found",
		"message": "The requested resource was not found",
	})
}

func (s *Server) status(status string, components map[string]string) Status {
	return Status{
		Status:     status,
		Timestamp:  time.Now(),
		Uptime:     formatDuration(time.Since(s.startTime)),
		Version:    Version,
		Components: components,
	}
}

// checkComponents проверяет состояние всех компонентов
func (s *Server) checkComponents(ctx context.Context) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	components := make(map[string]string, len(names))
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.probes[name].Check(checkCtx)
		cancel()

		if err != nil {
			components[name] = "unhealthy"
			s.logger.Error("Component check failed", zap.String("component", name), zap.Error(err))
			continue
		}
		components[name] = "healthy"
	}
	return components
}

// formatDuration форматирует время в читаемый формат (например: 8s)
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
