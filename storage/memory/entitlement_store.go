package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-rails/billingkit/entitlements"
)

type entKey struct {
	userID string
	name   string
}

// EntitlementStore is an in-memory core.EntitlementStore with the same
// absolute-state upsert semantics as the SQL procedures, so replayed events
// converge to the same end state.
type EntitlementStore struct {
	mu   sync.Mutex
	rows map[entKey]entitlements.Entitlement
	now  func() time.Time
}

func NewEntitlementStore() *EntitlementStore {
	return &EntitlementStore{
		rows: make(map[entKey]entitlements.Entitlement),
		now:  time.Now,
	}
}

func (s *EntitlementStore) Grant(ctx context.Context, p entitlements.GrantParams) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entKey{userID: p.UserID, name: p.Name}
	now := s.now()
	e, ok := s.rows[k]
	if !ok {
		e = entitlements.Entitlement{
			ID:        uuid.New(),
			UserID:    p.UserID,
			Name:      p.Name,
			CreatedAt: now,
		}
	}
	e.ProductID = p.ProductID
	e.Platform = p.Platform
	e.Source = p.Source
	e.ExpiresAt = p.ExpiresAt
	e.RevokedAt = nil
	e.RevokeReason = ""
	e.OriginalAppUserID = p.OriginalAppUserID
	e.OriginatingEventID = p.EventID
	e.UpdatedAt = now
	s.rows[k] = e
	return nil
}

func (s *EntitlementStore) Revoke(ctx context.Context, p entitlements.RevokeParams) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	k := entKey{userID: p.UserID, name: p.Name}
	e, ok := s.rows[k]
	if !ok {
		// Revoking an entitlement that was never granted is a no-op, matching
		// the SQL procedure.
		return nil
	}
	now := s.now()
	e.RevokedAt = &now
	e.RevokeReason = p.Reason
	e.OriginatingEventID = p.EventID
	e.UpdatedAt = now
	s.rows[k] = e
	return nil
}

func (s *EntitlementStore) ListByUser(ctx context.Context, userID string) ([]entitlements.Entitlement, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entitlements.Entitlement
	for k, e := range s.rows {
		if k.userID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
