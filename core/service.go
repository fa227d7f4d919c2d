package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/open-rails/billingkit/entitlements"
	"github.com/open-rails/billingkit/events"
)

// EventStore is the append-only webhook event log. Insert reports false when
// the event_id already exists, which the reconciler treats as a replay.
type EventStore interface {
	Insert(ctx context.Context, ev events.WebhookEvent) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
	ListUnprocessed(ctx context.Context, minAge time.Duration, limit int) ([]events.WebhookEvent, error)
}

// EntitlementStore runs the grant/revoke procedures. Implementations must be
// idempotent per (user, entitlement name): the reconciler re-invokes them on
// replayed and concurrently delivered events.
type EntitlementStore interface {
	Grant(ctx context.Context, p entitlements.GrantParams) error
	Revoke(ctx context.Context, p entitlements.RevokeParams) error
}

// ChangeEvent describes one applied entitlement mutation.
type ChangeEvent struct {
	Action      string     `json:"action"` // "granted" or "revoked"
	UserID      string     `json:"user_id"`
	Entitlement string     `json:"entitlement"`
	ProductID   string     `json:"product_id,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	EventID     string     `json:"event_id"`
}

// Notifier fans applied changes out to interested systems (e.g., the app
// backend refreshing ad-gating tiers). Implementations should be non-blocking
// and best-effort; failures are logged, never surfaced to the webhook caller.
type Notifier interface {
	EntitlementChanged(ctx context.Context, change ChangeEvent) error
}

// EntitlementCache invalidation keeps the read API fresh after mutations.
type EntitlementCache interface {
	Del(ctx context.Context, userID string) error
}

// Outcome summarizes one processed delivery.
type Outcome struct {
	EventID   string
	Type      string
	Duplicate bool
	Grants    int
	Revokes   int
}

// Service reconciles provider webhook events into entitlement state. Each
// delivery is handled statelessly; same-event-id races fall on the event
// store's uniqueness constraint and on procedure idempotency.
type Service struct {
	cfg    Config
	events EventStore
	ents   EntitlementStore
	notify Notifier
	cache  EntitlementCache
	log    *logrus.Logger
}

func NewService(cfg Config, eventStore EventStore, entitlementStore EntitlementStore) *Service {
	return &Service{
		cfg:    cfg,
		events: eventStore,
		ents:   entitlementStore,
		log:    logrus.StandardLogger(),
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notify = n
	return s
}

func (s *Service) WithCache(c EntitlementCache) *Service {
	s.cache = c
	return s
}

func (s *Service) WithLogger(l *logrus.Logger) *Service {
	if l != nil {
		s.log = l
	}
	return s
}

func (s *Service) Config() Config { return s.cfg }

// Process handles one raw webhook body end to end: parse, log the event,
// apply grants/revokes per entitlement entry, mark processed.
func (s *Service) Process(ctx context.Context, body []byte) (Outcome, error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return Outcome{}, err
	}
	return s.process(ctx, env, body, false)
}

// Reprocess re-drives a stored event, used by the sweeper. The insert is
// skipped; the row already exists.
func (s *Service) Reprocess(ctx context.Context, ev events.WebhookEvent) (Outcome, error) {
	env, err := ParseEnvelope(ev.Payload)
	if err != nil {
		return Outcome{}, err
	}
	return s.process(ctx, env, ev.Payload, true)
}

func (s *Service) process(ctx context.Context, env Envelope, body []byte, replay bool) (Outcome, error) {
	ev := env.Event
	out := Outcome{EventID: ev.ID, Type: ev.Type}
	logger := s.log.WithFields(logrus.Fields{
		"event_id":    ev.ID,
		"event_type":  ev.Type,
		"app_user_id": ev.AppUserID,
		"environment": ev.Environment,
	})

	if !replay {
		inserted, err := s.events.Insert(ctx, events.WebhookEvent{
			EventID:     ev.ID,
			AppUserID:   ev.AppUserID,
			Type:        ev.Type,
			Environment: ev.Environment,
			Platform:    env.Platform,
			Payload:     body,
		})
		if err != nil {
			logger.WithError(err).Error("webhook event insert failed")
			return out, &StoreError{Op: "insert", Err: err}
		}
		out.Duplicate = !inserted
		if out.Duplicate {
			logger.Info("duplicate event_id, continuing as replay")
		}
	}

	entries, err := NormalizeEntitlements(ev.Entitlements)
	if err != nil {
		logger.WithError(err).Warn("unparseable entitlements field, treating as empty")
		entries = nil
	}

	switch Classify(ev.Type) {
	case CategoryGrant:
		for _, entry := range entries {
			name := entry.EntitlementName()
			p := entitlements.GrantParams{
				UserID:            ev.AppUserID,
				Name:              name,
				ProductID:         entry.ProductID,
				Platform:          env.Platform,
				Source:            s.cfg.source(),
				ExpiresAt:         entry.ExpiresAt(),
				OriginalAppUserID: ev.OriginalAppUserID,
				EventID:           ev.ID,
			}
			if p.OriginalAppUserID == "" {
				p.OriginalAppUserID = ev.AppUserID
			}
			if err := s.ents.Grant(ctx, p); err != nil {
				logger.WithError(err).WithField("entitlement", name).Error("grant procedure failed")
				return out, &ProcedureError{Proc: "grant", Name: name, Err: err}
			}
			out.Grants++
			s.changed(ctx, logger, ChangeEvent{
				Action:      "granted",
				UserID:      ev.AppUserID,
				Entitlement: name,
				ProductID:   entry.ProductID,
				ExpiresAt:   p.ExpiresAt,
				EventID:     ev.ID,
			})
		}
	case CategoryRevoke:
		for _, entry := range entries {
			name := entry.EntitlementName()
			p := entitlements.RevokeParams{
				UserID:  ev.AppUserID,
				Name:    name,
				Reason:  ev.Type,
				EventID: ev.ID,
			}
			if err := s.ents.Revoke(ctx, p); err != nil {
				logger.WithError(err).WithField("entitlement", name).Error("revoke procedure failed")
				return out, &ProcedureError{Proc: "revoke", Name: name, Err: err}
			}
			out.Revokes++
			s.changed(ctx, logger, ChangeEvent{
				Action:      "revoked",
				UserID:      ev.AppUserID,
				Entitlement: name,
				Reason:      ev.Type,
				EventID:     ev.ID,
			})
		}
	default:
		logger.Debug("event type outside grant/revoke sets, logging only")
	}

	if err := s.events.MarkProcessed(ctx, ev.ID); err != nil {
		logger.WithError(err).Error("mark processed failed")
		return out, &StoreError{Op: "mark_processed", Err: err}
	}
	logger.WithFields(logrus.Fields{"grants": out.Grants, "revokes": out.Revokes}).Info("webhook event processed")
	return out, nil
}

// changed invalidates the read cache and notifies downstream, both best-effort.
func (s *Service) changed(ctx context.Context, logger *logrus.Entry, change ChangeEvent) {
	if s.cache != nil {
		if err := s.cache.Del(ctx, change.UserID); err != nil {
			logger.WithError(err).Warn("entitlement cache invalidation failed")
		}
	}
	if s.notify != nil {
		if err := s.notify.EntitlementChanged(ctx, change); err != nil {
			logger.WithError(err).Warn("entitlement change notification failed")
		}
	}
}

// Sweep re-processes events that stayed unprocessed past the configured age,
// returning how many were re-driven to completion. Safe to run concurrently
// with live deliveries: procedures are idempotent.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	stuck, err := s.events.ListUnprocessed(ctx, s.cfg.sweepAge(), s.cfg.sweepLimit())
	if err != nil {
		return 0, &StoreError{Op: "list_unprocessed", Err: err}
	}
	done := 0
	for _, ev := range stuck {
		if _, err := s.Reprocess(ctx, ev); err != nil {
			s.log.WithError(err).WithField("event_id", ev.EventID).Warn("sweep reprocess failed")
			continue
		}
		done++
	}
	return done, nil
}
