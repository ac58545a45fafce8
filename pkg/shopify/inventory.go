package shopify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

const (
	// levelReadBatchSize caps inventory-item ids per REST read.
	levelReadBatchSize = 50
	// adjustBatchSize caps changes per adjustment mutation.
	adjustBatchSize = 10
)

// LevelAdjustment is a relative change to one inventory level.
type LevelAdjustment struct {
	InventoryItemID int64
	LocationID      int64
	Delta           int
}

// AdjustError is a per-change user error reported by the platform.
type AdjustError struct {
	InventoryItemID int64
	Message         string
}

// AdjustReport summarizes an AdjustLevels call.
type AdjustReport struct {
	Applied int
	Errors  []AdjustError
}

// VariantForInventoryItem resolves an inventory item id to its variant id.
// The boolean is false when the item has no variant (deleted or unknown).
func (c *Client) VariantForInventoryItem(ctx context.Context, inventoryItemID int64) (int64, bool, error) {
	const query = `
query($id: ID!) {
  inventoryItem(id: $id) {
    variant { legacyResourceId }
  }
}`
	var out struct {
		InventoryItem *struct {
			Variant *struct {
				LegacyResourceID string `json:"legacyResourceId"`
			} `json:"variant"`
		} `json:"inventoryItem"`
	}
	gid := fmt.Sprintf("gid://shopify/InventoryItem/%d", inventoryItemID)
	if err := c.graphql(ctx, query, map[string]any{"id": gid}, &out); err != nil {
		return 0, false, err
	}
	if out.InventoryItem == nil || out.InventoryItem.Variant == nil {
		return 0, false, nil
	}
	variantID, err := strconv.ParseInt(out.InventoryItem.Variant.LegacyResourceID, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse variant id %q: %w", out.InventoryItem.Variant.LegacyResourceID, err)
	}
	return variantID, true, nil
}

// InventoryItemsForVariants maps variant ids to inventory item ids, batching
// reads to the platform's limit. Variants missing from the response are
// absent from the map.
func (c *Client) InventoryItemsForVariants(ctx context.Context, variantIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(variantIDs))
	for _, chunk := range chunkInt64s(variantIDs, levelReadBatchSize) {
		var out struct {
			Variants []struct {
				ID              int64 `json:"id"`
				InventoryItemID int64 `json:"inventory_item_id"`
			} `json:"variants"`
		}
		query := url.Values{
			"ids":    {joinInt64s(chunk)},
			"fields": {"id,inventory_item_id"},
		}
		if _, err := c.get(ctx, "/variants.json", query, &out); err != nil {
			return nil, fmt.Errorf("read variants: %w", err)
		}
		for _, v := range out.Variants {
			result[v.ID] = v.InventoryItemID
		}
	}
	return result, nil
}

// ReadLevels returns available quantities for inventory items at a location,
// batching to the platform's limit. Items with no level row at the location
// are absent from the map.
func (c *Client) ReadLevels(ctx context.Context, inventoryItemIDs []int64, locationID int64) (map[int64]int, error) {
	result := make(map[int64]int, len(inventoryItemIDs))
	for _, chunk := range chunkInt64s(inventoryItemIDs, levelReadBatchSize) {
		var out struct {
			InventoryLevels []struct {
				InventoryItemID int64 `json:"inventory_item_id"`
				Available       *int  `json:"available"`
			} `json:"inventory_levels"`
		}
		query := url.Values{
			"inventory_item_ids": {joinInt64s(chunk)},
			"location_ids":       {strconv.FormatInt(locationID, 10)},
		}
		if _, err := c.get(ctx, "/inventory_levels.json", query, &out); err != nil {
			return nil, fmt.Errorf("read inventory levels: %w", err)
		}
		for _, level := range out.InventoryLevels {
			if level.Available == nil {
				continue
			}
			result[level.InventoryItemID] = *level.Available
		}
	}
	return result, nil
}

// AdjustLevels applies relative quantity changes. Zero deltas are filtered
// before any batch is sent. Chunks are independent: a transport failure in
// one chunk is reported alongside whatever earlier chunks applied.
func (c *Client) AdjustLevels(ctx context.Context, changes []LevelAdjustment, reason string) (*AdjustReport, error) {
	filtered := make([]LevelAdjustment, 0, len(changes))
	for _, change := range changes {
		if change.Delta == 0 {
			continue
		}
		filtered = append(filtered, change)
	}

	report := &AdjustReport{}
	if len(filtered) == 0 {
		return report, nil
	}

	var errs error
	for start := 0; start < len(filtered); start += adjustBatchSize {
		end := start + adjustBatchSize
		if end > len(filtered) {
			end = len(filtered)
		}
		if err := c.adjustBatch(ctx, filtered[start:end], reason, report); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return report, errs
}

func (c *Client) adjustBatch(ctx context.Context, batch []LevelAdjustment, reason string, report *AdjustReport) error {
	const mutation = `
mutation($input: InventoryAdjustQuantitiesInput!) {
  inventoryAdjustQuantities(input: $input) {
    inventoryAdjustmentGroup { createdAt }
    userErrors { field message }
  }
}`
	changes := make([]map[string]any, 0, len(batch))
	for _, change := range batch {
		changes = append(changes, map[string]any{
			"inventoryItemId": fmt.Sprintf("gid://shopify/InventoryItem/%d", change.InventoryItemID),
			"locationId":      fmt.Sprintf("gid://shopify/Location/%d", change.LocationID),
			"delta":           change.Delta,
		})
	}
	input := map[string]any{
		"reason":  normalizeReason(reason),
		"name":    "available",
		"changes": changes,
	}

	var out struct {
		InventoryAdjustQuantities struct {
			InventoryAdjustmentGroup *struct {
				CreatedAt string `json:"createdAt"`
			} `json:"inventoryAdjustmentGroup"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"inventoryAdjustQuantities"`
	}
	if err := c.graphql(ctx, mutation, map[string]any{"input": input}, &out); err != nil {
		return fmt.Errorf("adjust inventory: %w", err)
	}

	if len(out.InventoryAdjustQuantities.UserErrors) > 0 {
		for _, ue := range out.InventoryAdjustQuantities.UserErrors {
			itemID := int64(0)
			if idx, ok := changeIndexFromField(ue.Field); ok && idx < len(batch) {
				itemID = batch[idx].InventoryItemID
			} else if len(batch) == 1 {
				itemID = batch[0].InventoryItemID
			}
			report.Errors = append(report.Errors, AdjustError{
				InventoryItemID: itemID,
				Message:         ue.Message,
			})
		}
		return nil
	}

	report.Applied += len(batch)
	return nil
}

// changeIndexFromField pulls the changes-array index out of a userError
// field path like ["input","changes","1","delta"]. userErrors are not
// positionally aligned with the input, so the path is the only reliable
// attribution.
func changeIndexFromField(field []string) (int, bool) {
	for i, part := range field {
		if part != "changes" || i+1 >= len(field) {
			continue
		}
		idx, err := strconv.Atoi(field[i+1])
		if err != nil || idx < 0 {
			return 0, false
		}
		return idx, true
	}
	return 0, false
}

func normalizeReason(reason string) string {
	r := strings.TrimSpace(reason)
	if r == "" {
		return "correction"
	}
	return r
}
