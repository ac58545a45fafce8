// Package shopifywebhook handles inventory_levels/update webhooks: verify,
// dedup, decode, and hand the normalized event to the sync orchestrator.
package shopifywebhook

import (
	"context"
	"encoding/json"

	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
)

// DedupScope namespaces webhook delivery ids in the idempotency store.
const DedupScope = "webhook"

type stockEventProcessor interface {
	ProcessStockEvent(ctx context.Context, event syncsvc.StockEvent) (*syncsvc.Result, error)
}

// InventoryLevelPayload is the body of an inventory_levels/update webhook.
type InventoryLevelPayload struct {
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Available       *int   `json:"available"`
	UpdatedAt       string `json:"updated_at"`
}

type ServiceParams struct {
	Processor stockEventProcessor
	Guard     *IdempotencyGuard
}

type Service struct {
	processor stockEventProcessor
	guard     *IdempotencyGuard
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Processor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock event processor required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	return &Service{
		processor: params.Processor,
		guard:     params.Guard,
	}, nil
}

// HandleInventoryLevelUpdate processes one verified webhook delivery.
// Duplicate deliveries return a CodeDuplicateDelivery error so the ingress
// can acknowledge without reprocessing; processing failures clear the dedup
// marker so the platform's retry is honored.
func (s *Service) HandleInventoryLevelUpdate(ctx context.Context, shopDomain, webhookID string, body []byte) (*syncsvc.Result, error) {
	if shopDomain == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop domain header missing")
	}
	if webhookID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook id header missing")
	}

	var payload InventoryLevelPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode inventory level payload")
	}
	if payload.InventoryItemID == 0 || payload.LocationID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory_item_id and location_id are required")
	}
	if payload.Available == nil {
		// Untracked items deliver a null available; nothing to sync.
		return &syncsvc.Result{Processed: true, Skipped: "untracked_item"}, nil
	}

	duplicate, err := s.guard.CheckAndMark(ctx, webhookID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook dedup check")
	}
	if duplicate {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateDelivery, "webhook already processed")
	}

	result, err := s.processor.ProcessStockEvent(ctx, syncsvc.StockEvent{
		ShopID:          shopDomain,
		InventoryItemID: payload.InventoryItemID,
		LocationID:      payload.LocationID,
		Available:       *payload.Available,
	})
	if err != nil {
		if delErr := s.guard.Delete(ctx, webhookID); delErr != nil {
			// The provisional marker expires on its own, so the retried
			// delivery is only deferred, not suppressed for the full window.
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "processing failed and dedup marker not cleared")
		}
		return result, err
	}
	// Best effort: a failed confirm leaves the provisional marker, which
	// still absorbs the platform's short-term redelivery burst.
	_ = s.guard.Confirm(ctx, webhookID)
	return result, nil
}
