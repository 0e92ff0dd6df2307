package service

import (
	"fmt"
	"time"

	"github.com/boddenberg/irpf-engine/internal/domain"
)

// Fiscal years outside this range are rejected before any storage access.
const (
	MinYear = 1900
	MaxYear = 2999
)

// Clock returns the current instant. Injected so reports and dashboards are
// reproducible in tests.
type Clock func() time.Time

func validateUserID(userID int64) error {
	if userID <= 0 {
		return &domain.ErrValidation{Field: "userId", Message: "must be a positive integer"}
	}
	return nil
}

func validateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return &domain.ErrValidation{
			Field:   "year",
			Message: fmt.Sprintf("must be between %d and %d", MinYear, MaxYear),
		}
	}
	return nil
}
