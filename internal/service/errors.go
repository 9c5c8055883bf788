// errors.go - ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation - ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrConflict - конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт - ресурс уже существует")
	// ErrUnauthorized - неверные учётные данные или токен.
	ErrUnauthorized = errors.New("не аутентифицирован")
	// ErrNotFound - ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden - операция над чужим ресурсом.
	ErrForbidden = errors.New("доступ запрещён")
)

// Error - ошибка сервиса с сообщением для клиента.
// Kind - одна из sentinel-ошибок выше (доступна через errors.Is).
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// errorf создаёт Error заданного вида с форматированным сообщением.
func errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
