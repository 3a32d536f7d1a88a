package services

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewOrderNumber formats FM + YYYYMMDD + three random digits.
// Collisions are possible and resolved by the store's unique index.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("FM%s%03d", now.Format("20060102"), rand.IntN(1000))
}
