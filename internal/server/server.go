// Package server exposes the ledger's operation groups as a JSON HTTP API.
// Transport concerns stop here: handlers resolve the caller identity, decode
// the body, call one ledger operation and write the envelope.
package server

import (
	"net/http"
	"strconv"

	"insurelane/internal/idempotency"
	"insurelane/internal/journal"
	"insurelane/internal/ledger"
	"insurelane/pkg/authn"
	"insurelane/pkg/domain"
	"insurelane/pkg/httpx"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	Ledger    *ledger.Ledger
	Journal   *journal.Journal // nil when no database is configured
	Idem      idempotency.Store
	DevFaucet bool
}

func New(l *ledger.Ledger, j *journal.Journal, idem idempotency.Store, devFaucet bool) *Server {
	return &Server{Ledger: l, Journal: j, Idem: idem, DevFaucet: devFaucet}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Route("/insurance", func(api chi.Router) {

		api.Post("/companies", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			var req struct {
				Name string `json:"name"`
				Rate uint32 `json:"rate"`
				Addr string `json:"addr"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			s.mutate(w, r, caller, "POST /insurance/companies", 201, func() (string, any, error) {
				c, err := s.Ledger.RegisterCompany(r.Context(), caller, req.Name, req.Rate, domain.Identity(req.Addr))
				return "company", c, err
			})
		})

		api.Get("/companies/count", func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "count": s.Ledger.CompanyCount()})
		})

		api.Get("/companies/self", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			c, err := s.Ledger.CompanyByAddr(caller)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "company": c})
		})

		api.Get("/companies/{company_id}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := pathID(w, r, "company_id")
			if !ok {
				return
			}
			c, err := s.Ledger.Company(id)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "company": c})
		})

		api.Post("/plans", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			var req struct {
				Name           string `json:"name"`
				Description    string `json:"description"`
				Premium        uint64 `json:"premium"`
				CoverageAmount uint64 `json:"coverage_amount"`
				DurationDays   uint32 `json:"duration_days"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			s.mutate(w, r, caller, "POST /insurance/plans", 201, func() (string, any, error) {
				p, err := s.Ledger.CreatePlan(r.Context(), caller, req.Name, req.Description,
					domain.Amount(req.Premium), domain.Amount(req.CoverageAmount), req.DurationDays)
				return "plan", p, err
			})
		})

		api.Get("/plans", func(w http.ResponseWriter, r *http.Request) {
			if q := r.URL.Query().Get("company_id"); q != "" {
				id, err := strconv.ParseUint(q, 10, 64)
				if err != nil {
					httpx.WriteError(w, 400, "INVALID_ARGUMENT", "company_id must be a number", nil)
					return
				}
				plans, err := s.Ledger.PlansByCompany(id)
				if err != nil {
					httpx.WriteDomainError(w, err)
					return
				}
				httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "plans": plans})
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "plans": s.Ledger.Plans()})
		})

		api.Post("/requests", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			var req struct {
				PlanID  uint64 `json:"plan_id"`
				Payment uint64 `json:"payment"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			s.mutate(w, r, caller, "POST /insurance/requests", 201, func() (string, any, error) {
				out, err := s.Ledger.SubmitRequest(r.Context(), caller, req.PlanID, domain.Amount(req.Payment))
				return "request", out, err
			})
		})

		api.Get("/requests", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			requests, err := s.Ledger.ViewRequests(r.Context(), caller)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "requests": requests})
		})

		api.Get("/requests/{request_id}", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			id, ok := pathID(w, r, "request_id")
			if !ok {
				return
			}
			out, err := s.Ledger.ViewRequest(r.Context(), caller, id)
			if err != nil {
				httpx.WriteDomainError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "request": out})
		})

		api.Post("/requests/{request_id}/negotiate", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			id, ok := pathID(w, r, "request_id")
			if !ok {
				return
			}
			var req struct {
				Approve       bool   `json:"approve"`
				CounterAmount uint64 `json:"counter_amount"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			s.mutate(w, r, caller, "POST /insurance/requests/negotiate", 200, func() (string, any, error) {
				out, err := s.Ledger.Negotiate(r.Context(), caller, id, req.Approve, domain.Amount(req.CounterAmount))
				return "request", out, err
			})
		})

		api.Post("/requests/{request_id}/respond", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			id, ok := pathID(w, r, "request_id")
			if !ok {
				return
			}
			var req struct {
				Accept bool `json:"accept"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			s.mutate(w, r, caller, "POST /insurance/requests/respond", 200, func() (string, any, error) {
				out, err := s.Ledger.RespondToOffer(r.Context(), caller, id, req.Accept)
				return "request", out, err
			})
		})

		api.Get("/policies", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "policies": s.Ledger.ViewPolicies(caller)})
		})

		api.Get("/balance", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "balance": s.Ledger.Balance(caller)})
		})

		// DEV helper to fund the caller's account for smoke tests.
		api.Post("/dev/faucet", func(w http.ResponseWriter, r *http.Request) {
			if !s.DevFaucet {
				httpx.WriteError(w, 404, "NOT_FOUND", "faucet disabled", nil)
				return
			}
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			var req struct {
				Amount uint64 `json:"amount"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			balance := s.Ledger.Deposit(r.Context(), caller, domain.Amount(req.Amount))
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "balance": balance})
		})

		api.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			caller, ok := s.caller(w, r)
			if !ok {
				return
			}
			if !s.Ledger.IsAdmin(caller) {
				httpx.WriteError(w, 403, "UNAUTHORIZED", "only admin may read the journal", nil)
				return
			}
			if s.Journal == nil {
				httpx.WriteError(w, 404, "NOT_FOUND", "journal not configured", nil)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			events, err := s.Journal.Recent(r.Context(), limit)
			if err != nil {
				httpx.WriteError(w, 500, "DB_ERROR", err.Error(), nil)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "events": events})
		})
	})

	return r
}

// mutate runs one ledger transition with Idempotency-Key replay: a retried
// key returns the first recorded response without re-executing.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, caller domain.Identity, endpoint string, okStatus int, op func() (string, any, error)) {
	key := r.Header.Get("Idempotency-Key")
	if status, body, found, err := idempotency.Replay(r.Context(), s.Idem, caller, key, endpoint); err == nil && found {
		httpx.WriteJSON(w, status, body)
		return
	}
	field, out, err := op()
	if err != nil {
		httpx.WriteDomainError(w, err)
		return
	}
	resp := map[string]any{"request_id": httpx.NewRequestID(), field: out}
	_ = idempotency.Save(r.Context(), s.Idem, caller, key, endpoint, okStatus, resp)
	httpx.WriteJSON(w, okStatus, resp)
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	caller, err := authn.CallerFromRequest(r)
	if err != nil {
		httpx.WriteError(w, 401, "UNAUTHORIZED", "missing or malformed bearer token", nil)
		return "", false
	}
	return caller, true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
	if err != nil {
		httpx.WriteError(w, 400, "INVALID_ARGUMENT", param+" must be a number", nil)
		return 0, false
	}
	return id, true
}
