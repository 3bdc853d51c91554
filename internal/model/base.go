// Package model содержит базовые модели и интерфейсы.
//
// Группа: BASE - Базовые компоненты
// Содержит: TimestampedModel, константы хранилищ
package model

import (
	"time"
)

// Имена объектов, которые создает инициализация хранилищ
const (
	AppUsername       = "test_gen_user"
	AppDatabase       = "test_gen_db"
	PatternCollection = "test_patterns"
	PatternNameField  = "pattern_name"
	PatternIndexName  = "pattern_name_unique"
	TestCaseTable     = "test_cases"
)

// TimestampedModel представляет модель с временной меткой создания
type TimestampedModel struct {
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
