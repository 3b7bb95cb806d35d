// Package idempotency lets callers replay a mutating request without
// re-executing the transition: the first response recorded under an
// Idempotency-Key is returned verbatim for every retry.
package idempotency

import (
	"context"
	"sync"

	"insurelane/pkg/domain"
)

type Store interface {
	Get(ctx context.Context, caller domain.Identity, key, endpoint string) (int, map[string]any, bool, error)
	Save(ctx context.Context, caller domain.Identity, key, endpoint string, responseStatus int, responseBody map[string]any) error
}

func Replay(ctx context.Context, st Store, caller domain.Identity, key, endpoint string) (int, map[string]any, bool, error) {
	if key == "" {
		return 0, nil, false, nil
	}
	return st.Get(ctx, caller, key, endpoint)
}

func Save(ctx context.Context, st Store, caller domain.Identity, key, endpoint string, status int, response map[string]any) error {
	if key == "" {
		return nil
	}
	return st.Save(ctx, caller, key, endpoint, status, response)
}

type record struct {
	status int
	body   map[string]any
}

// MemoryStore keeps records in process, matching the in-memory ledger's
// lifetime. Records are scoped per caller so keys cannot collide across
// identities.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]record)}
}

func (s *MemoryStore) Get(_ context.Context, caller domain.Identity, key, endpoint string) (int, map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[recordKey(caller, key, endpoint)]
	if !ok {
		return 0, nil, false, nil
	}
	return rec.status, rec.body, true, nil
}

func (s *MemoryStore) Save(_ context.Context, caller domain.Identity, key, endpoint string, responseStatus int, responseBody map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(caller, key, endpoint)] = record{status: responseStatus, body: responseBody}
	return nil
}

func recordKey(caller domain.Identity, key, endpoint string) string {
	return string(caller) + "\x00" + key + "\x00" + endpoint
}
