// Package picklist turns a filtered batch of orders into a deduplicated,
// bin-sorted picking sheet.
package picklist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/shopify"
)

// Sort fields accepted by Generate.
const (
	SortByBin      = "bin_location"
	SortByProduct  = "product"
	SortByQuantity = "quantity"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Params filters and orders one pick list generation.
type Params struct {
	ShopID              string
	CreatedAtMin        *time.Time
	CreatedAtMax        *time.Time
	FulfillmentStatuses []string
	OrderIDs            []int64
	SortField           string
	SortDirection       string
}

// Item is one aggregated row of the pick sheet.
type Item struct {
	VariantID    int64   `json:"variant_id"`
	Title        string  `json:"title"`
	VariantTitle string  `json:"variant_title"`
	SKU          *string `json:"sku"`
	Quantity     int     `json:"quantity"`
	BinLocation  *string `json:"bin_location"`
}

// PickList is the generation result.
type PickList struct {
	Items         []Item    `json:"items"`
	OrderCount    int       `json:"order_count"`
	TotalQuantity int       `json:"total_quantity"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// OrderSource yields one page of orders per call.
type OrderSource interface {
	Orders(ctx context.Context, q shopify.OrderQuery) (*shopify.OrderPage, error)
}

// ExpandableBundleFinder returns expand-on-pick bundles keyed by parent variant id.
type ExpandableBundleFinder interface {
	FindExpandableByParentVariants(ctx context.Context, shopID string, variantIDs []int64) (map[int64]models.Bundle, error)
}

// BinLookup maps variant ids to bin locations; absent entries mean no bin.
type BinLookup interface {
	Lookup(ctx context.Context, shopID string, variantIDs []int64) (map[int64]string, error)
}

// Service generates pick lists.
type Service interface {
	Generate(ctx context.Context, params Params) (*PickList, error)
}

type service struct {
	orders  OrderSource
	bundles ExpandableBundleFinder
	bins    BinLookup
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the pick list generator.
func NewService(orders OrderSource, bundles ExpandableBundleFinder, bins BinLookup, logg *logger.Logger) (Service, error) {
	if orders == nil {
		return nil, errors.New("order source is required")
	}
	if bundles == nil {
		return nil, errors.New("bundle finder is required")
	}
	if bins == nil {
		return nil, errors.New("bin lookup is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		orders:  orders,
		bundles: bundles,
		bins:    bins,
		logg:    logg,
		now:     time.Now,
	}, nil
}

func (s *service) Generate(ctx context.Context, params Params) (*PickList, error) {
	if err := validateSort(params.SortField, params.SortDirection); err != nil {
		return nil, err
	}

	ctx = s.logg.WithShopID(ctx, params.ShopID)

	orders, err := s.fetchOrders(ctx, params)
	if err != nil {
		return nil, err
	}

	lines := flattenLineItems(orders)

	expanded, err := s.expandBundles(ctx, params.ShopID, lines)
	if err != nil {
		return nil, err
	}

	items := aggregate(expanded)

	if err := s.attachBins(ctx, params.ShopID, items); err != nil {
		return nil, err
	}

	sortItems(items, params.SortField, params.SortDirection)

	total := 0
	for _, item := range items {
		total += item.Quantity
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_count": len(orders),
		"item_count":  len(items),
	}), "pick list generated")

	return &PickList{
		Items:         items,
		OrderCount:    len(orders),
		TotalQuantity: total,
		GeneratedAt:   s.now().UTC(),
	}, nil
}

// fetchOrders walks the order source page by page until no next-page cursor
// is returned. The status filter is applied here because the order source
// only accepts a single status value per request.
func (s *service) fetchOrders(ctx context.Context, params Params) ([]shopify.Order, error) {
	wanted := statusSet(params.FulfillmentStatuses)

	var orders []shopify.Order
	query := shopify.OrderQuery{
		CreatedAtMin: params.CreatedAtMin,
		CreatedAtMax: params.CreatedAtMax,
		IDs:          params.OrderIDs,
	}
	for {
		page, err := s.orders.Orders(ctx, query)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching orders")
		}
		for _, order := range page.Orders {
			if wanted != nil {
				if _, ok := wanted[orderStatus(order)]; !ok {
					continue
				}
			}
			orders = append(orders, order)
		}
		if page.NextPageInfo == "" {
			return orders, nil
		}
		query = shopify.OrderQuery{PageInfo: page.NextPageInfo}
	}
}

func statusSet(statuses []string) map[string]struct{} {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		set[strings.ToLower(strings.TrimSpace(status))] = struct{}{}
	}
	return set
}

// orderStatus normalizes the nullable fulfillment status; the platform
// reports unfulfilled orders with a null status.
func orderStatus(order shopify.Order) string {
	if order.FulfillmentStatus == nil || *order.FulfillmentStatus == "" {
		return "unfulfilled"
	}
	return strings.ToLower(*order.FulfillmentStatus)
}

func flattenLineItems(orders []shopify.Order) []shopify.OrderLineItem {
	var lines []shopify.OrderLineItem
	for _, order := range orders {
		lines = append(lines, order.LineItems...)
	}
	return lines
}

// expandBundles replaces each line item whose variant is the parent of an
// expand-on-pick bundle with one derived line per component, quantities
// multiplied through. Expansion is one level deep: a component that is
// itself a bundle parent is not expanded further.
func (s *service) expandBundles(ctx context.Context, shopID string, lines []shopify.OrderLineItem) ([]shopify.OrderLineItem, error) {
	if len(lines) == 0 {
		return lines, nil
	}

	variantIDs := make([]int64, 0, len(lines))
	seen := map[int64]struct{}{}
	for _, line := range lines {
		if _, ok := seen[line.VariantID]; ok {
			continue
		}
		seen[line.VariantID] = struct{}{}
		variantIDs = append(variantIDs, line.VariantID)
	}

	expandable, err := s.bundles.FindExpandableByParentVariants(ctx, shopID, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("finding expandable bundles: %w", err)
	}
	if len(expandable) == 0 {
		return lines, nil
	}

	out := make([]shopify.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		bundle, ok := expandable[line.VariantID]
		if !ok {
			out = append(out, line)
			continue
		}
		for _, component := range bundle.Components {
			derived := shopify.OrderLineItem{
				VariantID:    component.ChildVariantID,
				Quantity:     line.Quantity * component.Quantity,
				Title:        component.Title,
				VariantTitle: component.VariantTitle,
			}
			if component.SKU != nil {
				derived.SKU = *component.SKU
			}
			out = append(out, derived)
		}
	}
	return out, nil
}

// aggregate groups line items by variant id, summing quantities. Descriptive
// metadata is taken from the first occurrence of each variant; later lines
// only contribute quantity.
func aggregate(lines []shopify.OrderLineItem) []Item {
	index := make(map[int64]int, len(lines))
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.VariantID]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		item := Item{
			VariantID:    line.VariantID,
			Title:        line.Title,
			VariantTitle: line.VariantTitle,
			Quantity:     line.Quantity,
		}
		if line.SKU != "" {
			sku := line.SKU
			item.SKU = &sku
		}
		index[line.VariantID] = len(items)
		items = append(items, item)
	}
	return items
}

func (s *service) attachBins(ctx context.Context, shopID string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	variantIDs := make([]int64, 0, len(items))
	for _, item := range items {
		variantIDs = append(variantIDs, item.VariantID)
	}
	bins, err := s.bins.Lookup(ctx, shopID, variantIDs)
	if err != nil {
		return fmt.Errorf("looking up bin locations: %w", err)
	}
	for i := range items {
		if bin, ok := bins[items[i].VariantID]; ok {
			items[i].BinLocation = &bin
		}
	}
	return nil
}

func validateSort(field, direction string) error {
	switch field {
	case "", SortByBin, SortByProduct, SortByQuantity:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown sort field %q", field))
	}
	switch direction {
	case "", SortAsc, SortDesc:
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown sort direction %q", direction))
	}
	return nil
}

// sortItems orders the sheet. Bin sort keeps unbinned items last regardless
// of direction; product sort breaks ties on variant title; quantity sort is
// stable with no secondary key.
func sortItems(items []Item, field, direction string) {
	if field == "" {
		field = SortByBin
	}
	desc := direction == SortDesc

	switch field {
	case SortByBin:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i].BinLocation, items[j].BinLocation
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			if desc {
				return *a > *b
			}
			return *a < *b
		})
	case SortByProduct:
		sort.SliceStable(items, func(i, j int) bool {
			a, b := items[i], items[j]
			if a.Title != b.Title {
				if desc {
					return a.Title > b.Title
				}
				return a.Title < b.Title
			}
			if desc {
				return a.VariantTitle > b.VariantTitle
			}
			return a.VariantTitle < b.VariantTitle
		})
	case SortByQuantity:
		sort.SliceStable(items, func(i, j int) bool {
			if desc {
				return items[i].Quantity > items[j].Quantity
			}
			return items[i].Quantity < items[j].Quantity
		})
	}
}
