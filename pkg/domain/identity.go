package domain

// Identity is an opaque ledger address controlling companies, requests and
// balances. Identities are derived from caller credentials outside the core.
type Identity string

// Amount is a value in the smallest unit of the settlement currency.
type Amount uint64

type RoleKind string

const (
	RoleAdmin    RoleKind = "ADMIN"
	RoleCompany  RoleKind = "COMPANY"
	RoleCustomer RoleKind = "CUSTOMER"
)

// Role is the capability resolved for a caller once per operation.
// CompanyID is set only for RoleCompany.
type Role struct {
	Kind      RoleKind
	CompanyID uint64
}
