package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"apotekku/backend/internal/dashboard"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/events"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

const (
	PriceValidationVerify = "verify"
	PriceValidationTrust  = "trust"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	PriceValidation string
	NearExpiryDays  int
}

type Service struct {
	repo            store.Repository
	dashboard       *dashboard.Engine
	publisher       events.Publisher
	priceValidation string
	nearExpiryDays  int
	now             func() time.Time
}

func New(repo store.Repository, dash *dashboard.Engine, publisher events.Publisher, opts Options) *Service {
	if dash == nil {
		dash = dashboard.NewEngine(repo, nil, 0, dashboard.Options{NearExpiryDays: opts.NearExpiryDays})
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if opts.PriceValidation != PriceValidationTrust {
		opts.PriceValidation = PriceValidationVerify
	}
	if opts.NearExpiryDays <= 0 {
		opts.NearExpiryDays = domain.DefaultNearExpiryDays
	}

	return &Service{
		repo:            repo,
		dashboard:       dash,
		publisher:       publisher,
		priceValidation: opts.PriceValidation,
		nearExpiryDays:  opts.NearExpiryDays,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	return s.dashboard.Build(ctx, s.now())
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = domain.DateOf(s.now())
	} else {
		parsed, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		from = parsed
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// parseDate reads a YYYY-MM-DD date as midnight UTC.
func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", store.ErrInvalidInput, raw)
	}
	return parsed.UTC(), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}
