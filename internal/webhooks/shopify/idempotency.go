package shopifywebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ksefonte/spicy-pickle/pkg/redis"
)

// ProvisionalTTL bounds how long a marker lives before the delivery is
// confirmed processed. If processing fails and the cleanup delete also
// fails, the retried delivery is only suppressed until this expires, not
// for the full dedup window.
const ProvisionalTTL = 10 * time.Minute

// IdempotencyGuard suppresses webhook redelivery using the platform's
// delivery id. It shares the redis store with the queue consumer's guard
// but lives in its own key scope so the two never collide.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark returns true when the webhook id was already seen. The
// marker is written with the provisional TTL; Confirm extends it to the
// full dedup window after successful processing.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, webhookID string) (bool, error) {
	if webhookID == "" {
		return false, errors.New("webhook id is required")
	}
	key := g.store.IdempotencyKey(g.scope, webhookID)
	set, err := g.store.SetNX(ctx, key, "1", g.provisionalTTL())
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Confirm extends a provisional marker to the guard's full TTL.
func (g *IdempotencyGuard) Confirm(ctx context.Context, webhookID string) error {
	if webhookID == "" {
		return errors.New("webhook id is required")
	}
	key := g.store.IdempotencyKey(g.scope, webhookID)
	return g.store.Set(ctx, key, "1", g.ttl)
}

func (g *IdempotencyGuard) provisionalTTL() time.Duration {
	if g.ttl > 0 && g.ttl < ProvisionalTTL {
		return g.ttl
	}
	return ProvisionalTTL
}

// Delete clears the marker so a redelivered webhook is processed again.
func (g *IdempotencyGuard) Delete(ctx context.Context, webhookID string) error {
	if webhookID == "" {
		return errors.New("webhook id is required")
	}
	key := g.store.IdempotencyKey(g.scope, webhookID)
	return g.store.Del(ctx, key)
}
