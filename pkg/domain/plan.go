package domain

import (
	"fmt"
	"time"
)

// Plan is an insurance product owned by exactly one company. Immutable once
// created.
type Plan struct {
	ID             uint64    `json:"id"`
	CompanyID      uint64    `json:"company_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Premium        Amount    `json:"premium"`
	CoverageAmount Amount    `json:"coverage_amount"`
	DurationDays   uint32    `json:"duration_days"`
	CreatedAt      time.Time `json:"created_at"`
}

func (p Plan) Validate() error {
	if p.Premium == 0 {
		return fmt.Errorf("%w: premium must be greater than zero", ErrInvalidPlan)
	}
	if p.CoverageAmount == 0 {
		return fmt.Errorf("%w: coverage amount must be greater than zero", ErrInvalidPlan)
	}
	if p.DurationDays == 0 {
		return fmt.Errorf("%w: duration must be greater than zero", ErrInvalidPlan)
	}
	return nil
}

// Term is the coverage period length a settled request activates.
func (p Plan) Term() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
