package services

import (
	"errors"
	"fmt"
	"time"

	"harvest/repository"
)

// ValidationError is a client input problem. Its message is shown to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PaymentNotDueError is returned by ExpireOrder for an unpaid order still inside its payment window.
type PaymentNotDueError struct {
	DueAt time.Time
}

func (e *PaymentNotDueError) Error() string {
	return "payment is not due until " + e.DueAt.Format(time.RFC3339)
}

// IsNotFound reports whether err means the entity is missing or not owned by the caller.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrOrderNotFound) ||
		errors.Is(err, repository.ErrCartItemNotFound) ||
		errors.Is(err, repository.ErrProductNotFound) ||
		errors.Is(err, repository.ErrNoCartItems)
}
