// Package repository содержит репозитории для работы с хранилищами.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"testgen/internal/model"
)

var (
	// ErrDuplicatePattern возвращается при нарушении уникальности pattern_name.
	// Повторов и слияния нет, конфликт решает вызывающий.
	ErrDuplicatePattern = errors.New("pattern with this pattern_name already exists")

	// ErrPatternNotFound возвращается, когда паттерн не найден
	ErrPatternNotFound = errors.New("pattern not found")
)

// patternCollection подмножество *mongo.Collection, которым пользуется репозиторий
type patternCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

// PatternRepository реализует model.PatternRepository поверх коллекции test_patterns
type PatternRepository struct {
	collection patternCollection
	logger     *zap.Logger
	now        func() time.Time
}

var _ model.PatternRepository = (*PatternRepository)(nil)

// NewPatternRepository создает новый репозиторий паттернов
func NewPatternRepository(db *mongo.Database, logger *zap.Logger) *PatternRepository {
	return &PatternRepository{
		collection: db.Collection(model.PatternCollection),
		logger:     logger,
		now:        time.Now,
	}
}

// Insert добавляет паттерн
func (r *PatternRepository) Insert(ctx context.Context, pattern *model.Pattern) error {
	if err := pattern.Validate(); err != nil {
		return err
	}
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = r.now().UTC()
	}

	res, err := r.collection.InsertOne(ctx, pattern)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Warn("Duplicate pattern rejected", zap.String("pattern_name", pattern.PatternName))
			return fmt.Errorf("%w: %s", ErrDuplicatePattern, pattern.PatternName)
		}
		return fmt.Errorf("failed to insert pattern: %w", err)
	}

	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		pattern.ID = id
	}

	r.logger.Debug("Pattern inserted", zap.String("pattern_name", pattern.PatternName))
	return nil
}

// FindByName возвращает паттерн по имени
func (r *PatternRepository) FindByName(ctx context.Context, name string) (*model.Pattern, error) {
	pattern := new(model.Pattern)
	err := r.collection.FindOne(ctx, bson.D{{Key: model.PatternNameField, Value: name}}).Decode(pattern)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", ErrPatternNotFound, name)
		}
		return nil, fmt.Errorf("failed to find pattern: %w", err)
	}
	return pattern, nil
}

// List возвращает все паттерны по имени
func (r *PatternRepository) List(ctx context.Context) ([]model.Pattern, error) {
	cursor, err := r.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: model.PatternNameField, Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer cursor.Close(ctx)

	var patterns []model.Pattern
	if err := cursor.All(ctx, &patterns); err != nil {
		return nil, fmt.Errorf("failed to decode patterns: %w", err)
	}
	return patterns, nil
}
