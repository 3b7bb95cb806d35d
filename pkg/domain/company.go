package domain

import (
	"fmt"
	"strings"
	"time"
)

// Company is an onboarded insurer. Rate is the company-declared risk rate in
// basis points; it is stored and surfaced but never interpreted by the engine.
type Company struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Rate      uint32    `json:"rate"`
	Addr      Identity  `json:"addr"`
	CreatedAt time.Time `json:"created_at"`
}

func ValidateCompanyInput(name string, addr Identity) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: company name is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(string(addr)) == "" {
		return fmt.Errorf("%w: company addr is required", ErrInvalidArgument)
	}
	return nil
}
