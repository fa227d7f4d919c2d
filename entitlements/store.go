package entitlements

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store applies entitlement mutations through the grant/revoke procedures in
// the billing schema. The procedures are absolute-state upserts keyed on
// (user_id, name): replaying the same event converges to the same end state.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "billing"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) table() string { return s.schema + ".entitlements" }

func (s *Store) Grant(ctx context.Context, p GrantParams) error {
	if s.pg == nil {
		return nil
	}
	_, err := s.pg.Exec(ctx, `SELECT `+s.schema+`.grant_entitlement($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.UserID, p.Name, p.ProductID, p.Platform, p.Source, p.ExpiresAt, p.OriginalAppUserID, p.EventID)
	return err
}

func (s *Store) Revoke(ctx context.Context, p RevokeParams) error {
	if s.pg == nil {
		return nil
	}
	_, err := s.pg.Exec(ctx, `SELECT `+s.schema+`.revoke_entitlement($1, $2, $3, $4)`,
		p.UserID, p.Name, p.Reason, p.EventID)
	return err
}

// ListByUser returns every entitlement row for the user, active or not.
// Callers decide what "active" means via Entitlement.Active.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Entitlement, error) {
	if s.pg == nil || strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	rows, err := s.pg.Query(ctx, `SELECT id, user_id, name, product_id, platform, source,
		expires_at, revoked_at, COALESCE(revoke_reason, ''), COALESCE(original_app_user_id, ''),
		COALESCE(originating_event_id, ''), created_at, updated_at
		FROM `+s.table()+` WHERE user_id=$1 ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entitlement
	for rows.Next() {
		var e Entitlement
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &e.ProductID, &e.Platform, &e.Source,
			&e.ExpiresAt, &e.RevokedAt, &e.RevokeReason, &e.OriginalAppUserID,
			&e.OriginatingEventID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
