// Package storage содержит подключения к PostgreSQL и MongoDB.
package storage

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"go.uber.org/zap"
)

// Postgres представляет подключение к PostgreSQL
type Postgres struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPostgres открывает пул соединений. Готовность сервера проверяет health.Poller,
// поэтому здесь нет ни ping, ни повторов.
func NewPostgres(databaseURL string, logger *zap.Logger) (*Postgres, error) {
	dsn, err := normalizeDSN(databaseURL)
	if err != nil {
		return nil, err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(5*time.Second),
	))

	// Настраиваем пул соединений
	sqldb.SetMaxOpenConns(10)
	sqldb.SetMaxIdleConns(5)
	sqldb.SetConnMaxLifetime(5 * time.Minute)
	sqldb.SetConnMaxIdleTime(1 * time.Minute)

	db := bun.NewDB(sqldb, pgdialect.New())

	// Добавляем отладку в режиме разработки
	if logger.Core().Enabled(zap.DebugLevel) {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}

	logger.Info("Opened PostgreSQL pool", zap.String("dsn", RedactURL(dsn)))

	return &Postgres{db: db, logger: logger}, nil
}

// Close закрывает соединение с базой данных
func (p *Postgres) Close() error {
	return p.db.Close()
}

// GetDB возвращает подключение к базе данных
func (p *Postgres) GetDB() *bun.DB {
	return p.db
}

// normalizeDSN приводит postgresql:// к схеме, которую понимает pgdriver, и отключает TLS для локальных хостов
func normalizeDSN(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	switch u.Scheme {
	case "postgresql":
		u.Scheme = "postgres"
	case "postgres":
	default:
		return "", fmt.Errorf("invalid DATABASE_URL scheme %q", u.Scheme)
	}

	q := u.Query()
	if q.Get("sslmode") == "" && isLocalHost(u.Hostname()) {
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// WithDatabase возвращает тот же DSN, но указывающий на другую базу
func WithDatabase(raw, database string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	u.Path = "/" + database
	return u.String(), nil
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		host == "postgres" || strings.HasSuffix(host, ".local")
}

// RedactURL скрывает пароль в URL для логов
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
