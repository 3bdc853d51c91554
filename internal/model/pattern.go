// Package model содержит модели данных.
//
// Группа: ENTITIES - Основные сущности
// Содержит: Pattern, PatternRepository
package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pattern представляет шаблон теста, хранящийся в коллекции test_patterns
type Pattern struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatternName  string             `bson:"pattern_name" json:"pattern_name"`
	CodePattern  string             `bson:"code_pattern,omitempty" json:"code_pattern,omitempty"`
	TestTemplate string             `bson:"test_template,omitempty" json:"test_template,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// Validate проверяет паттерн перед вставкой. Кроме длины имя ничем не ограничено,
// единственность обеспечивает уникальный индекс.
func (p *Pattern) Validate() error {
	var errs ValidationErrors

	if err := ValidateRequired("pattern_name", p.PatternName); err != nil {
		errs = append(errs, err.(ValidationError))
	} else {
		if err := ValidateLength("pattern_name", p.PatternName, 1, 255); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// PatternRepository определяет интерфейс для работы с паттернами
type PatternRepository interface {
	Insert(ctx context.Context, pattern *Pattern) error
	FindByName(ctx context.Context, name string) (*Pattern, error)
	List(ctx context.Context) ([]Pattern, error)
}
