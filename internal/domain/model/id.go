package model

import (
	"strings"

	"github.com/google/uuid"
)

// CanonicalID приводит идентификатор к каноническому виду UUID
// (нижний регистр, с дефисами). Невалидные строки возвращаются как есть.
func CanonicalID(id string) string {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return id
	}
	return parsed.String()
}

// IsValidID проверяет, что строка - валидный UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewID генерирует новый UUID v4.
func NewID() string {
	return uuid.NewString()
}
