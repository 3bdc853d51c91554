package provision

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"testgen/internal/health"
	"testgen/internal/model"
	"testgen/internal/storage"
)

// sqlRunner выполняет служебные запросы от имени администратора
type sqlRunner interface {
	Exists(ctx context.Context, query string, args ...interface{}) (bool, error)
	Exec(ctx context.Context, query string, args ...interface{}) error
}

// Schema создает таблицы приложения в test_gen_db
type Schema interface {
	Migrate(ctx context.Context, owner string) error
	Close() error
}

// SchemaOpener открывает подключение к базе приложения
type SchemaOpener func(ctx context.Context) (Schema, error)

// PostgresInitializer создает роль, базу и таблицу test_cases
type PostgresInitializer struct {
	admin      sqlRunner
	probe      health.Probe
	poller     *health.Poller
	credential model.Credential
	openSchema SchemaOpener
	logger     *zap.Logger
}

// NewPostgresInitializer создает инициализатор поверх административного пула.
// adminURL нужен, чтобы открыть подключение к test_gen_db после ее создания.
func NewPostgresInitializer(db *bun.DB, adminURL, password string, poller *health.Poller, logger *zap.Logger) *PostgresInitializer {
	return &PostgresInitializer{
		admin:      bunRunner{db: db},
		probe:      health.NewPostgresProbe(db),
		poller:     poller,
		credential: model.AppCredential(password),
		openSchema: func(ctx context.Context) (Schema, error) {
			dsn, err := storage.WithDatabase(adminURL, model.AppDatabase)
			if err != nil {
				return nil, err
			}
			pg, err := storage.NewPostgres(dsn, logger)
			if err != nil {
				return nil, err
			}
			return &bunSchema{pg: pg}, nil
		},
		logger: logger,
	}
}

// Name возвращает имя хранилища
func (i *PostgresInitializer) Name() string {
	return "postgres"
}

// Init выполняет инициализацию
func (i *PostgresInitializer) Init(ctx context.Context) error {
	if err := i.credential.Validate(); err != nil {
		return fmt.Errorf("invalid postgres credential: %w", err)
	}
	if err := i.poller.WaitHealthy(ctx, i.Name(), i.probe); err != nil {
		return err
	}

	cred := i.credential

	roleExists, err := i.admin.Exists(ctx, "SELECT EXISTS(SELECT 1 FROM pg_roles WHERE rolname = ?)", cred.Username)
	if err != nil {
		return fmt.Errorf("failed to check role: %w", err)
	}
	if roleExists {
		i.logger.Info("Role already exists", zap.Object("credential", cred))
	} else {
		if err := i.admin.Exec(ctx, "CREATE ROLE ? WITH LOGIN PASSWORD ?", bun.Ident(cred.Username), cred.Password); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		i.logger.Info("Role created", zap.Object("credential", cred))
	}

	dbExists, err := i.admin.Exists(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = ?)", cred.Database)
	if err != nil {
		return fmt.Errorf("failed to check database: %w", err)
	}
	if dbExists {
		i.logger.Info("Database already exists", zap.String("database", cred.Database))
	} else {
		// CREATE DATABASE не работает внутри транзакции, поэтому проверка отдельным запросом
		if err := i.admin.Exec(ctx, "CREATE DATABASE ? OWNER ?", bun.Ident(cred.Database), bun.Ident(cred.Username)); err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		i.logger.Info("Database created", zap.String("database", cred.Database))
	}

	if err := i.admin.Exec(ctx, "GRANT ALL PRIVILEGES ON DATABASE ? TO ?", bun.Ident(cred.Database), bun.Ident(cred.Username)); err != nil {
		return fmt.Errorf("failed to grant privileges: %w", err)
	}

	schema, err := i.openSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cred.Database, err)
	}
	defer schema.Close()

	if err := schema.Migrate(ctx, cred.Username); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// bunRunner выполняет запросы через bun, подставляя аргументы вместо ?
type bunRunner struct {
	db *bun.DB
}

func (r bunRunner) Exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r bunRunner) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// bunSchema создает таблицы по моделям bun
type bunSchema struct {
	pg *storage.Postgres
}

// Migrate создает test_cases и выдает права владельцу
func (s *bunSchema) Migrate(ctx context.Context, owner string) error {
	db := s.pg.GetDB()

	if _, err := db.NewCreateTable().
		Model((*model.TestCase)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create table %s: %w", model.TestCaseTable, err)
	}

	grants := []string{
		"GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO ?",
		"GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO ?",
	}
	for _, q := range grants {
		if _, err := db.ExecContext(ctx, q, bun.Ident(owner)); err != nil {
			return fmt.Errorf("grant on %s: %w", model.TestCaseTable, err)
		}
	}
	return nil
}

func (s *bunSchema) Close() error {
	return s.pg.Close()
}
