// Package consumer drains the stock-events subscription and feeds each
// message into the sync orchestrator.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/ksefonte/spicy-pickle/internal/sync"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/redis"
)

const dedupScope = "queue"

// provisionalDedupTTL bounds a marker's life until processing is confirmed,
// so a failed delete after a processing failure cannot suppress the nacked
// message's redelivery for the full dedup window.
const provisionalDedupTTL = 10 * time.Minute

type processor interface {
	ProcessStockEvent(ctx context.Context, event sync.StockEvent) (*sync.Result, error)
}

// Consumer processes stock-change messages from Pub/Sub. Messages are
// deduplicated by message id so redelivery after an ack that never reached
// the broker does not re-run the sync.
type Consumer struct {
	processor    processor
	subscription *pubsub.Subscriber
	guard        redis.IdempotencyStore
	dedupTTL     time.Duration
	logg         *logger.Logger
}

type Params struct {
	Processor    processor
	Subscription *pubsub.Subscriber
	Guard        redis.IdempotencyStore
	DedupTTL     time.Duration
	Logger       *logger.Logger
}

func New(params Params) (*Consumer, error) {
	if params.Processor == nil {
		return nil, errors.New("stock event processor is required")
	}
	if params.Subscription == nil {
		return nil, errors.New("stock events subscription is required")
	}
	if params.Guard == nil {
		return nil, errors.New("idempotency guard is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	ttl := params.DedupTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Consumer{
		processor:    params.Processor,
		subscription: params.Subscription,
		guard:        params.Guard,
		dedupTTL:     ttl,
		logg:         params.Logger,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg.ID, msg.Data)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

// stockEventMessage is the queue envelope published by the webhook ingress.
type stockEventMessage struct {
	ShopID          string `json:"shop_id"`
	InventoryItemID int64  `json:"inventory_item_id"`
	LocationID      int64  `json:"location_id"`
	Available       int    `json:"available"`
}

func (c *Consumer) process(ctx context.Context, messageID string, data []byte) processResult {
	logCtx := c.logg.WithField(ctx, "message_id", messageID)

	var payload stockEventMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logg.Error(logCtx, "failed to unmarshal stock event", err)
		return processResult{ack: true}
	}
	if payload.ShopID == "" || payload.InventoryItemID == 0 || payload.LocationID == 0 {
		c.logg.Error(logCtx, "stock event missing identity fields", errors.New("incomplete payload"))
		return processResult{ack: true}
	}

	dedupKey := c.guard.IdempotencyKey(dedupScope, messageID)
	fresh, err := c.guard.SetNX(logCtx, dedupKey, "1", min(c.dedupTTL, provisionalDedupTTL))
	if err != nil {
		// Guard outage: proceed rather than stall; the orchestrator
		// converges on redelivery anyway.
		c.logg.Warn(logCtx, "dedup guard unavailable, processing without it")
	} else if !fresh {
		c.logg.Info(logCtx, "duplicate stock event message, skipping")
		return processResult{ack: true}
	}

	result, procErr := c.processor.ProcessStockEvent(logCtx, sync.StockEvent{
		ShopID:          payload.ShopID,
		InventoryItemID: payload.InventoryItemID,
		LocationID:      payload.LocationID,
		Available:       payload.Available,
	})
	if procErr != nil {
		// Clear the dedup marker so the redelivered message is processed.
		if err == nil {
			if delErr := c.guard.Del(logCtx, dedupKey); delErr != nil {
				c.logg.Error(logCtx, "failed to clear dedup marker", delErr)
			}
		}
		c.logg.Error(logCtx, "stock event processing failed", procErr)
		return processResult{nack: true}
	}

	if err == nil {
		// Upgrade the provisional marker to the full dedup window.
		if setErr := c.guard.Set(logCtx, dedupKey, "1", c.dedupTTL); setErr != nil {
			c.logg.Warn(logCtx, "failed to extend dedup marker")
		}
	}

	c.logg.Info(c.logg.WithFields(logCtx, map[string]any{
		"bundles_affected": result.BundlesAffected,
		"adjustments_made": result.AdjustmentsMade,
		"skipped":          result.Skipped,
	}), "stock event processed")
	return processResult{ack: true}
}
