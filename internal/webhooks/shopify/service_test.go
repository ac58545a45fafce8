package shopifywebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	events []syncsvc.StockEvent
	result *syncsvc.Result
	err    error
}

func (s *stubProcessor) ProcessStockEvent(_ context.Context, event syncsvc.StockEvent) (*syncsvc.Result, error) {
	s.events = append(s.events, event)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &syncsvc.Result{Processed: true}, nil
}

type stubStore struct {
	seen    map[string]bool
	ttls    map[string]time.Duration
	setErr  error
	deleted []string
}

func newStubStore() *stubStore {
	return &stubStore{seen: map[string]bool{}, ttls: map[string]time.Duration{}}
}

func (s *stubStore) Get(_ context.Context, key string) (string, error) {
	if s.seen[key] {
		return "1", nil
	}
	return "", errors.New("not found")
}

func (s *stubStore) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	s.seen[key] = true
	s.ttls[key] = ttl
	return nil
}

func (s *stubStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	s.ttls[key] = ttl
	return true, nil
}

func (s *stubStore) IdempotencyKey(scope, id string) string {
	return "sp:idempotency:" + scope + ":" + id
}

func (s *stubStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.seen, key)
		s.deleted = append(s.deleted, key)
	}
	return nil
}

func newTestService(t *testing.T, processor *stubProcessor, store *stubStore) *Service {
	t.Helper()
	guard, err := NewIdempotencyGuard(store, time.Hour, DedupScope)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Processor: processor, Guard: guard})
	require.NoError(t, err)
	return svc
}

const validBody = `{"inventory_item_id":1200,"location_id":7,"available":48,"updated_at":"2024-02-12T09:30:00Z"}`

func TestHandleInventoryLevelUpdate(t *testing.T) {
	processor := &stubProcessor{result: &syncsvc.Result{Processed: true, BundlesAffected: 1, AdjustmentsMade: 1}}
	svc := newTestService(t, processor, newStubStore())

	result, err := svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(validBody))
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdjustmentsMade)

	require.Len(t, processor.events, 1)
	assert.Equal(t, syncsvc.StockEvent{
		ShopID:          "demo.myshopify.com",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	}, processor.events[0])
}

func TestHandleDuplicateDelivery(t *testing.T) {
	processor := &stubProcessor{}
	svc := newTestService(t, processor, newStubStore())

	_, err := svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(validBody))
	require.NoError(t, err)

	_, err = svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(validBody))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicateDelivery))
	assert.Len(t, processor.events, 1)
}

func TestHandleFailureClearsDedupMarker(t *testing.T) {
	processor := &stubProcessor{err: errors.New("adjust failed")}
	store := newStubStore()
	svc := newTestService(t, processor, store)

	_, err := svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(validBody))
	require.Error(t, err)
	assert.Contains(t, store.deleted, store.IdempotencyKey(DedupScope, "wh-1"))

	// Redelivery after the failure is processed, not treated as duplicate.
	processor.err = nil
	_, err = svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(validBody))
	require.NoError(t, err)
	assert.Len(t, processor.events, 2)
}

func TestDedupMarkerProvisionalUntilConfirmed(t *testing.T) {
	store := newStubStore()
	guard, err := NewIdempotencyGuard(store, 24*time.Hour, DedupScope)
	require.NoError(t, err)
	key := store.IdempotencyKey(DedupScope, "wh-1")

	dup, err := guard.CheckAndMark(context.Background(), "wh-1")
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, ProvisionalTTL, store.ttls[key])

	require.NoError(t, guard.Confirm(context.Background(), "wh-1"))
	assert.Equal(t, 24*time.Hour, store.ttls[key])
}

func TestHandleSuccessExtendsDedupMarker(t *testing.T) {
	store := newStubStore()
	svc := newTestService(t, &stubProcessor{}, store)

	_, err := svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(validBody))
	require.NoError(t, err)

	// The provisional marker is upgraded to the full dedup window once the
	// event is processed.
	key := store.IdempotencyKey(DedupScope, "wh-1")
	assert.Equal(t, time.Hour, store.ttls[key])
}

func TestHandleMissingHeaders(t *testing.T) {
	svc := newTestService(t, &stubProcessor{}, newStubStore())

	_, err := svc.HandleInventoryLevelUpdate(context.Background(), "", "wh-1", []byte(validBody))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "", []byte(validBody))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestHandleMalformedBody(t *testing.T) {
	svc := newTestService(t, &stubProcessor{}, newStubStore())

	_, err := svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(`{not json`))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestHandleUntrackedItemSkipped(t *testing.T) {
	processor := &stubProcessor{}
	store := newStubStore()
	svc := newTestService(t, processor, store)

	body := `{"inventory_item_id":1200,"location_id":7,"available":null}`
	result, err := svc.HandleInventoryLevelUpdate(context.Background(), "demo.myshopify.com", "wh-1", []byte(body))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "untracked_item", result.Skipped)
	assert.Empty(t, processor.events)
	assert.Empty(t, store.seen)
}
