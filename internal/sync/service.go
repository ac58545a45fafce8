// Package sync reconciles bundle parent availability against component
// stock whenever a stock-change event arrives from the commerce platform.
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ksefonte/spicy-pickle/internal/availability"
	"github.com/ksefonte/spicy-pickle/internal/synclock"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/metrics"
	"github.com/ksefonte/spicy-pickle/pkg/shopify"
	"go.uber.org/multierr"
)

// Skip reasons reported on Result when an event produced no work.
const (
	SkipResolutionFailed = "resolution_failed"
	SkipNoBundles        = "no_bundles_affected"

	skipLockContention = "lock_contention"
)

// StockEvent is the normalized four-field stock-change notification. The
// transport envelope (webhook body, queue message) is decoded at the ingress
// boundary before the event reaches this service.
type StockEvent struct {
	ShopID          string
	InventoryItemID int64
	LocationID      int64
	Available       int
}

// Result summarizes one reconciliation pass.
type Result struct {
	Processed       bool   `json:"processed"`
	BundlesAffected int    `json:"bundles_affected"`
	AdjustmentsMade int    `json:"adjustments_made"`
	Skipped         string `json:"skipped,omitempty"`
	Err             string `json:"error,omitempty"`
}

// BundleFinder looks up bundle definitions touched by a variant.
type BundleFinder interface {
	FindBundlesContaining(ctx context.Context, shopID string, variantID int64) ([]models.Bundle, error)
}

// InventoryGateway reads and mutates stock levels in the commerce platform.
type InventoryGateway interface {
	VariantForInventoryItem(ctx context.Context, inventoryItemID int64) (int64, bool, error)
	InventoryItemsForVariants(ctx context.Context, variantIDs []int64) (map[int64]int64, error)
	ReadLevels(ctx context.Context, inventoryItemIDs []int64, locationID int64) (map[int64]int, error)
	AdjustLevels(ctx context.Context, changes []shopify.LevelAdjustment, reason string) (*shopify.AdjustReport, error)
}

// LockManager serializes reconciliation of a single bundle.
type LockManager interface {
	Acquire(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}

// Service is the reconciliation engine.
type Service interface {
	// ProcessStockEvent finds every bundle affected by the event and
	// restores each parent variant's availability. Bundles are independent
	// units of work: a failure in one is reported but never aborts the
	// others, and repeating an event with no intervening state change
	// issues zero adjustments.
	ProcessStockEvent(ctx context.Context, event StockEvent) (*Result, error)
	// Resync reconciles a single bundle at a location without an external
	// trigger (manual resync).
	Resync(ctx context.Context, bundle models.Bundle, locationID int64) (*Result, error)
}

// Params collects the orchestrator's dependencies.
type Params struct {
	Bundles      BundleFinder
	Gateway      InventoryGateway
	Locks        LockManager
	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	LockTTL      time.Duration
	AdjustReason string
}

type service struct {
	bundles      BundleFinder
	gateway      InventoryGateway
	locks        LockManager
	logg         *logger.Logger
	metrics      *metrics.SyncMetrics
	lockTTL      time.Duration
	adjustReason string
	now          func() time.Time
}

// NewService builds the sync orchestrator.
func NewService(params Params) (Service, error) {
	if params.Bundles == nil {
		return nil, errors.New("bundle finder required")
	}
	if params.Gateway == nil {
		return nil, errors.New("inventory gateway required")
	}
	if params.Locks == nil {
		return nil, errors.New("lock manager required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	ttl := params.LockTTL
	if ttl <= 0 {
		ttl = synclock.DefaultSyncTTL
	}
	return &service{
		bundles:      params.Bundles,
		gateway:      params.Gateway,
		locks:        params.Locks,
		logg:         params.Logger,
		metrics:      params.Metrics,
		lockTTL:      ttl,
		adjustReason: params.AdjustReason,
		now:          time.Now,
	}, nil
}

// stockOverride substitutes the event's just-applied value for the variant
// that triggered it, avoiding a stale read-after-write race.
type stockOverride struct {
	variantID int64
	available int
}

func (s *service) ProcessStockEvent(ctx context.Context, event StockEvent) (*Result, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveDuration("stock_event", s.now().Sub(start))
	}()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"shop_id":           event.ShopID,
		"inventory_item_id": event.InventoryItemID,
		"location_id":       event.LocationID,
	})

	variantID, found, err := s.gateway.VariantForInventoryItem(ctx, event.InventoryItemID)
	if err != nil || !found {
		// Soft failure: the event is considered handled, no retry requested.
		if err != nil {
			s.logg.Error(ctx, "inventory item resolution failed", err)
		} else {
			s.logg.Warn(ctx, "inventory item has no variant")
		}
		s.metrics.IncSkip(SkipResolutionFailed)
		result := &Result{Processed: false, Skipped: SkipResolutionFailed}
		if err != nil {
			result.Err = err.Error()
		}
		return result, nil
	}

	bundles, err := s.bundles.FindBundlesContaining(ctx, event.ShopID, variantID)
	if err != nil {
		return &Result{Processed: false}, fmt.Errorf("find bundles for variant %d: %w", variantID, err)
	}
	if len(bundles) == 0 {
		s.metrics.IncSkip(SkipNoBundles)
		return &Result{Processed: true, Skipped: SkipNoBundles}, nil
	}

	override := &stockOverride{variantID: variantID, available: event.Available}
	result := &Result{Processed: true, BundlesAffected: len(bundles)}

	var errs error
	for _, bundle := range bundles {
		adjusted, err := s.reconcileBundle(ctx, bundle, event.LocationID, override)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("bundle %s: %w", bundle.ID, err))
			continue
		}
		if adjusted {
			result.AdjustmentsMade++
		}
	}
	s.metrics.AddAdjustments(result.AdjustmentsMade)

	if errs != nil {
		result.Err = errs.Error()
	}
	return result, errs
}

func (s *service) Resync(ctx context.Context, bundle models.Bundle, locationID int64) (*Result, error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveDuration("resync", s.now().Sub(start))
	}()

	ctx = s.logg.WithBundleID(s.logg.WithShopID(ctx, bundle.ShopID), bundle.ID.String())

	adjusted, err := s.reconcileBundle(ctx, bundle, locationID, nil)
	if err != nil {
		return &Result{Processed: false, BundlesAffected: 1, Err: err.Error()}, err
	}
	result := &Result{Processed: true, BundlesAffected: 1}
	if adjusted {
		result.AdjustmentsMade = 1
		s.metrics.AddAdjustments(1)
	}
	return result, nil
}

// reconcileBundle recomputes one bundle's parent availability under lock and
// issues a single delta adjustment when it drifted. The lock is released on
// every exit path so a failed bundle stays eligible for the next event.
func (s *service) reconcileBundle(ctx context.Context, bundle models.Bundle, locationID int64, override *stockOverride) (adjusted bool, err error) {
	ctx = s.logg.WithBundleID(ctx, bundle.ID.String())

	lockID := synclock.SyncLockID(bundle.ID, locationID)
	acquired, err := s.locks.Acquire(ctx, lockID, s.lockTTL)
	if err != nil {
		s.metrics.IncFailure("lock")
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		// Someone else is already reconciling this bundle; not an error.
		s.metrics.IncSkip(skipLockContention)
		s.logg.Info(ctx, "bundle sync lock contended, skipping")
		return false, nil
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, lockID); releaseErr != nil {
			s.logg.Error(ctx, "failed to release sync lock", releaseErr)
		}
	}()

	items, err := s.gateway.InventoryItemsForVariants(ctx, bundle.VariantIDs())
	if err != nil {
		s.metrics.IncFailure("resolve_items")
		return false, fmt.Errorf("resolve inventory items: %w", err)
	}
	parentItemID, ok := items[bundle.ParentVariantID]
	if !ok {
		s.metrics.IncFailure("resolve_items")
		return false, fmt.Errorf("parent variant %d has no inventory item", bundle.ParentVariantID)
	}
	// A component with no item mapping must fail the bundle, not read as
	// stock 0: a zero expectation here would issue a real negative
	// adjustment against the parent. An override for the component is the
	// one case where the mapping is not consulted.
	for _, c := range bundle.Components {
		if override != nil && c.ChildVariantID == override.variantID {
			continue
		}
		if _, ok := items[c.ChildVariantID]; !ok {
			s.metrics.IncFailure("resolve_items")
			return false, fmt.Errorf("component variant %d has no inventory item", c.ChildVariantID)
		}
	}

	itemIDs := make([]int64, 0, len(items))
	for _, itemID := range items {
		itemIDs = append(itemIDs, itemID)
	}
	levels, err := s.gateway.ReadLevels(ctx, itemIDs, locationID)
	if err != nil {
		s.metrics.IncFailure("read_levels")
		return false, fmt.Errorf("read levels: %w", err)
	}

	stockFor := func(variantID int64) int {
		if override != nil && variantID == override.variantID {
			return override.available
		}
		return levels[items[variantID]]
	}

	expected, err := expectedAvailability(bundle, stockFor)
	if err != nil {
		s.metrics.IncFailure("calculate")
		return false, err
	}

	parentStock := stockFor(bundle.ParentVariantID)
	delta := expected - parentStock
	if delta == 0 {
		return false, nil
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"expected":     expected,
		"parent_stock": parentStock,
		"delta":        delta,
	})

	report, err := s.gateway.AdjustLevels(ctx, []shopify.LevelAdjustment{{
		InventoryItemID: parentItemID,
		LocationID:      locationID,
		Delta:           delta,
	}}, s.adjustReason)
	if err != nil {
		s.metrics.IncFailure("adjust")
		return false, fmt.Errorf("adjust parent level: %w", err)
	}
	if len(report.Errors) > 0 {
		s.metrics.IncFailure("adjust")
		return false, fmt.Errorf("adjust parent level: %s", report.Errors[0].Message)
	}

	s.logg.Info(ctx, "bundle availability adjusted")
	return true, nil
}

// expectedAvailability computes the parent's target stock from component
// stock. Parents are synthetic: even when the parent variant triggered the
// event, the components alone drive the expectation.
func expectedAvailability(bundle models.Bundle, stockFor func(int64) int) (int, error) {
	if bundle.SameProduct() {
		component := bundle.Components[0]
		return availability.SameProduct(stockFor(component.ChildVariantID), component.Quantity)
	}
	components := make([]availability.Component, 0, len(bundle.Components))
	for _, c := range bundle.Components {
		components = append(components, availability.Component{
			Stock:    stockFor(c.ChildVariantID),
			Quantity: c.Quantity,
		})
	}
	return availability.Mixed(components)
}
