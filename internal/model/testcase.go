// Package model содержит модели данных.
//
// Группа: ENTITIES - Основные сущности
// Содержит: TestCase
package model

import (
	"github.com/uptrace/bun"
)

// TestCase представляет сгенерированный тест в таблице test_cases
type TestCase struct {
	bun.BaseModel `bun:"table:test_cases,alias:tc"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,type:varchar(255),notnull" json:"name"`
	Code string `bun:"code,type:text,notnull" json:"code"`
	TimestampedModel
}
