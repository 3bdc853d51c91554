// Package health содержит проверки готовности хранилищ и health check сервер.
package health

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Probe проверяет готовность одного компонента
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc адаптирует функцию к Probe
type ProbeFunc func(ctx context.Context) error

// Check вызывает функцию
func (f ProbeFunc) Check(ctx context.Context) error {
	return f(ctx)
}

// PostgresProbe аналог pg_isready поверх пула bun
type PostgresProbe struct {
	db *bun.DB
}

// NewPostgresProbe создает проверку PostgreSQL
func NewPostgresProbe(db *bun.DB) *PostgresProbe {
	return &PostgresProbe{db: db}
}

// Check выполняет ping базы данных
func (p *PostgresProbe) Check(ctx context.Context) error {
	if p.db == nil {
		return errors.New("database connection is nil")
	}
	return p.db.PingContext(ctx)
}

// MongoProbe выполняет команду ping на admin базе
type MongoProbe struct {
	client *mongo.Client
}

// NewMongoProbe создает проверку MongoDB
func NewMongoProbe(client *mongo.Client) *MongoProbe {
	return &MongoProbe{client: client}
}

// Check выполняет db.adminCommand('ping')
func (p *MongoProbe) Check(ctx context.Context) error {
	if p.client == nil {
		return errors.New("mongo client is nil")
	}
	return p.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}
