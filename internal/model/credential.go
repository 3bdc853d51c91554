// Package model содержит модели данных.
//
// Группа: ENTITIES - Основные сущности
// Содержит: Credential
package model

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// RoleReadWrite единственная роль, которую выдает инициализация
const RoleReadWrite = "readWrite"

// Credential описывает учетную запись приложения в хранилище.
// Пароль всегда приходит из окружения и никогда не логируется.
type Credential struct {
	Username string
	Password string
	Role     string
	Database string
}

// AppCredential возвращает учетную запись test_gen_user с паролем из окружения
func AppCredential(password string) Credential {
	return Credential{
		Username: AppUsername,
		Password: password,
		Role:     RoleReadWrite,
		Database: AppDatabase,
	}
}

// Validate проверяет учетную запись
func (c Credential) Validate() error {
	var errs ValidationErrors
	for field, value := range map[string]string{
		"username": c.Username,
		"password": c.Password,
		"role":     c.Role,
		"database": c.Database,
	} {
		if err := ValidateRequired(field, value); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if err := ValidateIdentifier("username", c.Username); c.Username != "" && err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// String скрывает пароль
func (c Credential) String() string {
	return fmt.Sprintf("%s@%s (%s)", c.Username, c.Database, c.Role)
}

// MarshalLogObject позволяет логировать учетную запись без пароля
func (c Credential) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("username", c.Username)
	enc.AddString("database", c.Database)
	enc.AddString("role", c.Role)
	return nil
}
