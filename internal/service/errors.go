package service

import (
	"errors"

	"github.com/SergeiKhy/shortify/internal/repository"
)

// Ошибки сервиса
var (
	ErrLinkNotFound = repository.ErrLinkNotFound
	// ErrAllocationExhausted все попытки выделить код закончились коллизиями.
	// Это сигнал для эксплуатации (пространство кодов переполнено), а не ошибка пользователя.
	ErrAllocationExhausted = errors.New("failed to allocate a unique short code")
)

// ValidationError отклонённый пользовательский ввод; Reason показывается пользователю как есть
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func newValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidationError сообщает, является ли err (или обёрнутая в нём ошибка) ValidationError
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
