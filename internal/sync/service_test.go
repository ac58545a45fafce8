package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ksefonte/spicy-pickle/internal/synclock"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/shopify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFinder struct {
	bundles []models.Bundle
	err     error
	calls   int
}

func (s *stubFinder) FindBundlesContaining(_ context.Context, _ string, _ int64) ([]models.Bundle, error) {
	s.calls++
	return s.bundles, s.err
}

// stubGateway plays the commerce platform. Variant->item mappings use
// itemFor, stock reads come from levels (keyed by inventory item id), and
// every adjustment is applied back onto levels so repeated events observe
// the corrected state.
type stubGateway struct {
	mu          sync.Mutex
	itemFor     map[int64]int64 // variant id -> inventory item id
	levels      map[int64]int   // inventory item id -> available
	omitItems   map[int64]bool  // variants dropped from bulk item reads
	resolveErr  error
	adjustErr   error
	adjustUser  []shopify.AdjustError
	adjustments []shopify.LevelAdjustment
}

func (s *stubGateway) VariantForInventoryItem(_ context.Context, inventoryItemID int64) (int64, bool, error) {
	if s.resolveErr != nil {
		return 0, false, s.resolveErr
	}
	for variantID, itemID := range s.itemFor {
		if itemID == inventoryItemID {
			return variantID, true, nil
		}
	}
	return 0, false, nil
}

func (s *stubGateway) InventoryItemsForVariants(_ context.Context, variantIDs []int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(variantIDs))
	for _, id := range variantIDs {
		if s.omitItems[id] {
			continue
		}
		if itemID, ok := s.itemFor[id]; ok {
			out[id] = itemID
		}
	}
	return out, nil
}

func (s *stubGateway) ReadLevels(_ context.Context, inventoryItemIDs []int64, _ int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int, len(inventoryItemIDs))
	for _, id := range inventoryItemIDs {
		if available, ok := s.levels[id]; ok {
			out[id] = available
		}
	}
	return out, nil
}

func (s *stubGateway) AdjustLevels(_ context.Context, changes []shopify.LevelAdjustment, _ string) (*shopify.AdjustReport, error) {
	if s.adjustErr != nil {
		return nil, s.adjustErr
	}
	if len(s.adjustUser) > 0 {
		return &shopify.AdjustReport{Errors: s.adjustUser}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, change := range changes {
		s.levels[change.InventoryItemID] += change.Delta
		s.adjustments = append(s.adjustments, change)
	}
	return &shopify.AdjustReport{Applied: len(changes)}, nil
}

type stubLocks struct {
	mu       sync.Mutex
	held     map[string]bool
	denyAll  bool
	err      error
	acquired []string
	released []string
}

func newStubLocks() *stubLocks {
	return &stubLocks{held: map[string]bool{}}
}

func (s *stubLocks) Acquire(_ context.Context, id string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.denyAll || s.held[id] {
		return false, nil
	}
	s.held[id] = true
	s.acquired = append(s.acquired, id)
	return true, nil
}

func (s *stubLocks) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, id)
	s.released = append(s.released, id)
	return nil
}

func testBundle(parentVariant int64, components ...models.BundleComponent) models.Bundle {
	return models.Bundle{
		ID:              uuid.New(),
		ShopID:          "shop-1",
		ParentVariantID: parentVariant,
		Title:           "Test Bundle",
		Components:      components,
	}
}

func component(childVariant int64, quantity int) models.BundleComponent {
	return models.BundleComponent{
		ID:             uuid.New(),
		ChildVariantID: childVariant,
		Quantity:       quantity,
	}
}

func newTestService(t *testing.T, finder BundleFinder, gateway InventoryGateway, locks LockManager) Service {
	t.Helper()
	svc, err := NewService(Params{
		Bundles:      finder,
		Gateway:      gateway,
		Locks:        locks,
		Logger:       logger.New(logger.Options{ServiceName: "sync-test"}),
		AdjustReason: "bundle sync",
	})
	require.NoError(t, err)
	return svc
}

func TestProcessStockEventSameProductCase(t *testing.T) {
	// 48 base units, carton of 24: parent should land at 2.
	bundle := testBundle(100, component(200, 24))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 200: 1200},
		levels:  map[int64]int{1100: 5, 1200: 48},
	}
	locks := newStubLocks()
	svc := newTestService(t, finder, gateway, locks)

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	})
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, 1, result.BundlesAffected)
	assert.Equal(t, 1, result.AdjustmentsMade)

	require.Len(t, gateway.adjustments, 1)
	assert.Equal(t, int64(1100), gateway.adjustments[0].InventoryItemID)
	assert.Equal(t, int64(7), gateway.adjustments[0].LocationID)
	assert.Equal(t, -3, gateway.adjustments[0].Delta)
	assert.Equal(t, 2, gateway.levels[1100])
}

func TestProcessStockEventMixedBundle(t *testing.T) {
	// min(100/6, 40/4, 10/2) = min(16, 10, 5) = 5.
	bundle := testBundle(100,
		component(201, 6),
		component(202, 4),
		component(203, 2),
	)
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 201: 1201, 202: 1202, 203: 1203},
		levels:  map[int64]int{1100: 0, 1201: 100, 1202: 40, 1203: 10},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1201,
		LocationID:      7,
		Available:       100,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Equal(t, 5, gateway.levels[1100])
}

func TestProcessStockEventIdempotent(t *testing.T) {
	bundle := testBundle(100, component(200, 24))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 200: 1200},
		levels:  map[int64]int{1100: 5, 1200: 48},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	event := StockEvent{ShopID: "shop-1", InventoryItemID: 1200, LocationID: 7, Available: 48}

	first, err := svc.ProcessStockEvent(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AdjustmentsMade)

	// Same event again: state already converged, so zero adjustments.
	second, err := svc.ProcessStockEvent(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, second.Processed)
	assert.Equal(t, 1, second.BundlesAffected)
	assert.Equal(t, 0, second.AdjustmentsMade)
	assert.Len(t, gateway.adjustments, 1)
}

func TestProcessStockEventEventValueSubstitution(t *testing.T) {
	// The platform read still returns the stale value 48 for the trigger
	// variant; the event says 24, and the event wins: floor(24/24) = 1.
	bundle := testBundle(100, component(200, 24))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 200: 1200},
		levels:  map[int64]int{1100: 2, 1200: 48},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       24,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Equal(t, 1, gateway.levels[1100])
}

func TestProcessStockEventZeroStockComponentForcesZero(t *testing.T) {
	bundle := testBundle(100, component(201, 6), component(202, 4))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 201: 1201, 202: 1202},
		levels:  map[int64]int{1100: 9, 1201: 100, 1202: 0},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1202,
		LocationID:      7,
		Available:       0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Equal(t, 0, gateway.levels[1100])
}

func TestProcessStockEventResolutionFailureIsSoft(t *testing.T) {
	finder := &stubFinder{}
	gateway := &stubGateway{resolveErr: errors.New("graphql unavailable")}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 9999,
		LocationID:      7,
	})
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, SkipResolutionFailed, result.Skipped)
	assert.NotEmpty(t, result.Err)
	assert.Zero(t, finder.calls)
}

func TestProcessStockEventUnknownInventoryItem(t *testing.T) {
	finder := &stubFinder{}
	gateway := &stubGateway{itemFor: map[int64]int64{}}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 9999,
		LocationID:      7,
	})
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, SkipResolutionFailed, result.Skipped)
	assert.Empty(t, result.Err)
}

func TestProcessStockEventNoBundlesAffected(t *testing.T) {
	finder := &stubFinder{}
	gateway := &stubGateway{
		itemFor: map[int64]int64{300: 1300},
		levels:  map[int64]int{1300: 10},
	}
	locks := newStubLocks()
	svc := newTestService(t, finder, gateway, locks)

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1300,
		LocationID:      7,
		Available:       10,
	})
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, SkipNoBundles, result.Skipped)
	assert.Empty(t, locks.acquired)
}

func TestProcessStockEventLockContentionSkipsBundle(t *testing.T) {
	bundle := testBundle(100, component(200, 24))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 200: 1200},
		levels:  map[int64]int{1100: 5, 1200: 48},
	}
	locks := newStubLocks()
	locks.held[synclock.SyncLockID(bundle.ID, 7)] = true
	svc := newTestService(t, finder, gateway, locks)

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	})
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, 1, result.BundlesAffected)
	assert.Equal(t, 0, result.AdjustmentsMade)
	assert.Empty(t, gateway.adjustments)
}

func TestProcessStockEventReleasesLockAfterFailure(t *testing.T) {
	bundle := testBundle(100, component(200, 24))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor:   map[int64]int64{100: 1100, 200: 1200},
		levels:    map[int64]int{1100: 5, 1200: 48},
		adjustErr: errors.New("rate limited"),
	}
	locks := newStubLocks()
	svc := newTestService(t, finder, gateway, locks)

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	})
	require.Error(t, err)
	assert.Equal(t, 0, result.AdjustmentsMade)
	assert.Contains(t, result.Err, "rate limited")

	lockID := synclock.SyncLockID(bundle.ID, 7)
	assert.Contains(t, locks.released, lockID)
	assert.False(t, locks.held[lockID])
}

func TestProcessStockEventPartialFailureContinues(t *testing.T) {
	// Two bundles share a component; the second bundle's parent has no
	// inventory item mapping and fails, but the first still adjusts.
	good := testBundle(100, component(200, 24))
	bad := testBundle(101, component(200, 12))
	finder := &stubFinder{bundles: []models.Bundle{bad, good}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 200: 1200},
		levels:  map[int64]int{1100: 5, 1200: 48},
	}
	locks := newStubLocks()
	svc := newTestService(t, finder, gateway, locks)

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	})
	require.Error(t, err)
	assert.Equal(t, 2, result.BundlesAffected)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Contains(t, result.Err, fmt.Sprintf("bundle %s", bad.ID))
	assert.Equal(t, 2, gateway.levels[1100])
	assert.False(t, locks.held[synclock.SyncLockID(bad.ID, 7)])
	assert.False(t, locks.held[synclock.SyncLockID(good.ID, 7)])
}

func TestProcessStockEventUnmappedComponentFailsBundle(t *testing.T) {
	// The component's variant is missing from the item mapping. That must
	// fail the bundle, not read as stock 0 and zero out the parent.
	bundle := testBundle(100, component(200, 6))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100},
		levels:  map[int64]int{1100: 12},
	}
	locks := newStubLocks()
	svc := newTestService(t, finder, gateway, locks)

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1100,
		LocationID:      7,
		Available:       12,
	})
	require.Error(t, err)
	assert.Contains(t, result.Err, "component variant 200 has no inventory item")
	assert.Equal(t, 0, result.AdjustmentsMade)
	assert.Empty(t, gateway.adjustments)
	assert.Equal(t, 12, gateway.levels[1100])
	assert.False(t, locks.held[synclock.SyncLockID(bundle.ID, 7)])
}

func TestProcessStockEventOverriddenComponentNeedsNoMapping(t *testing.T) {
	// When the event itself carries the component's value, the mapping for
	// that component is never consulted and the reconcile proceeds.
	bundle := testBundle(100, component(200, 6))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor:   map[int64]int64{100: 1100, 200: 1200},
		levels:    map[int64]int{1100: 3},
		omitItems: map[int64]bool{200: true},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Equal(t, 8, gateway.levels[1100])
}

func TestProcessStockEventAdjustUserErrors(t *testing.T) {
	bundle := testBundle(100, component(200, 24))
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor:    map[int64]int64{100: 1100, 200: 1200},
		levels:     map[int64]int{1100: 5, 1200: 48},
		adjustUser: []shopify.AdjustError{{InventoryItemID: 1100, Message: "item is untracked"}},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1200,
		LocationID:      7,
		Available:       48,
	})
	require.Error(t, err)
	assert.Equal(t, 0, result.AdjustmentsMade)
	assert.Contains(t, result.Err, "item is untracked")
}

func TestProcessStockEventEmptyMixedBundleForcesZero(t *testing.T) {
	bundle := testBundle(100)
	bundle.Components = nil
	finder := &stubFinder{bundles: []models.Bundle{bundle}}
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100},
		levels:  map[int64]int{1100: 12},
	}
	svc := newTestService(t, finder, gateway, newStubLocks())

	result, err := svc.ProcessStockEvent(context.Background(), StockEvent{
		ShopID:          "shop-1",
		InventoryItemID: 1100,
		LocationID:      7,
		Available:       12,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Equal(t, 0, gateway.levels[1100])
}

func TestResyncConvergesWithoutEvent(t *testing.T) {
	bundle := testBundle(100, component(200, 6))
	gateway := &stubGateway{
		itemFor: map[int64]int64{100: 1100, 200: 1200},
		levels:  map[int64]int{1100: 3, 1200: 48},
	}
	locks := newStubLocks()
	svc := newTestService(t, &stubFinder{}, gateway, locks)

	result, err := svc.Resync(context.Background(), bundle, 7)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, 1, result.AdjustmentsMade)
	assert.Equal(t, 8, gateway.levels[1100])

	// Second pass is a no-op.
	again, err := svc.Resync(context.Background(), bundle, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, again.AdjustmentsMade)
}
