package domain

import "time"

// RequestStatus is the closed set of negotiation states. Denied, Settled and
// Expired are terminal; no transition leaves them.
type RequestStatus string

const (
	StatusPending        RequestStatus = "PENDING"
	StatusApproved       RequestStatus = "APPROVED"
	StatusCounterOffered RequestStatus = "COUNTER_OFFERED"
	StatusDenied         RequestStatus = "DENIED"
	StatusSettled        RequestStatus = "SETTLED"
	StatusExpired        RequestStatus = "EXPIRED"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCounterOffered,
		StatusDenied, StatusSettled, StatusExpired:
		return true
	}
	return false
}

func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusDenied, StatusSettled, StatusExpired:
		return true
	case StatusPending, StatusApproved, StatusCounterOffered:
		return false
	}
	return false
}

// CanNegotiate reports whether the owning company may act on the request.
// A company acts exactly once, on a freshly submitted request.
func (s RequestStatus) CanNegotiate() bool {
	return s == StatusPending
}

// CanRespond reports whether the customer may accept or reject the company's
// decision.
func (s RequestStatus) CanRespond() bool {
	return s == StatusApproved || s == StatusCounterOffered
}

// Request is a customer's expression of interest in a plan, carrying the
// negotiation state. OfferAmount is zero until the company counter-offers.
type Request struct {
	ID          uint64        `json:"id"`
	PlanID      uint64        `json:"plan_id"`
	Customer    Identity      `json:"customer"`
	Status      RequestStatus `json:"status"`
	OfferAmount Amount        `json:"offer_amount"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Policy records the coverage obligation activated when a request settles.
// Payout execution against it belongs to an external collaborator.
type Policy struct {
	RequestID      uint64    `json:"request_id"`
	PlanID         uint64    `json:"plan_id"`
	CompanyID      uint64    `json:"company_id"`
	Customer       Identity  `json:"customer"`
	CoverageAmount Amount    `json:"coverage_amount"`
	PremiumPaid    Amount    `json:"premium_paid"`
	ActivatedAt    time.Time `json:"activated_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}
