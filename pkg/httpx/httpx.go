package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"insurelane/pkg/domain"

	"github.com/google/uuid"
)

func NewRequestID() string { return "req_" + uuid.NewString() }

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	resp := map[string]any{
		"request_id": NewRequestID(),
		"error": map[string]any{
			"code": code, "message": message, "details": details,
		},
	}
	WriteJSON(w, status, resp)
}

// WriteDomainError maps the ledger error taxonomy onto HTTP statuses and
// stable error codes.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, code := 500, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = 403, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrNotFound):
		status, code = 404, "NOT_FOUND"
	case errors.Is(err, domain.ErrDuplicateName):
		status, code = 409, "DUPLICATE_NAME"
	case errors.Is(err, domain.ErrDuplicateRequest):
		status, code = 409, "DUPLICATE_REQUEST"
	case errors.Is(err, domain.ErrInvalidPlan):
		status, code = 400, "INVALID_PLAN"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = 409, "INVALID_STATE"
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code = 400, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrInsufficientFunds):
		status, code = 402, "INSUFFICIENT_FUNDS"
	}
	WriteError(w, status, code, err.Error(), nil)
}
