package models

import (
	"errors"
	"fmt"
)

type OrderRole string

const (
	OrderRoleBuyer  OrderRole = "buyer"
	OrderRoleSeller OrderRole = "seller"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// OrderFilter selects one user's orders, as buyer or as seller, one page at a time.
type OrderFilter struct {
	UserID string
	Role   OrderRole
	Status *OrderStatus
	Page   int
	Limit  int
}

func (f OrderFilter) Validate() error {
	if f.UserID == "" {
		return errors.New("userID is empty")
	}

	if f.Role != OrderRoleBuyer && f.Role != OrderRoleSeller {
		return fmt.Errorf("invalid role: %q", f.Role)
	}

	if f.Page < 1 {
		return fmt.Errorf("page must be >= 1, got %d", f.Page)
	}

	if f.Limit < 1 || f.Limit > MaxPageLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxPageLimit, f.Limit)
	}

	return nil
}

func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// TotalPages returns the page count for total matching rows.
func (f OrderFilter) TotalPages(total int) int {
	if f.Limit <= 0 || total == 0 {
		return 0
	}
	return (total + f.Limit - 1) / f.Limit
}
