package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Mongo представляет подключение к MongoDB
type Mongo struct {
	client *mongo.Client
	logger *zap.Logger
}

// NewMongo создает клиента. Драйвер подключается лениво, готовность проверяет health.Poller.
func NewMongo(mongoURL string, logger *zap.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(mongoURL).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(5 * time.Second)

	client, err := mongo.Connect(context.Background(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	logger.Info("Created MongoDB client", zap.String("url", RedactURL(mongoURL)))

	return &Mongo{client: client, logger: logger}, nil
}

// Client возвращает клиента MongoDB
func (m *Mongo) Client() *mongo.Client {
	return m.client
}

// Database возвращает базу по имени
func (m *Mongo) Database(name string) *mongo.Database {
	return m.client.Database(name)
}

// Close отключает клиента
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
