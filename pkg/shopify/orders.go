package shopify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultOrderPageSize = 250

// OrderQuery filters one page of an order fetch. PageInfo is the cursor from
// a previous page's Link header; when set, Shopify rejects most other filters
// so only the page size is re-sent.
type OrderQuery struct {
	CreatedAtMin *time.Time
	CreatedAtMax *time.Time
	IDs          []int64
	PageSize     int
	PageInfo     string
}

// OrderLineItem is one purchasable row on an order.
type OrderLineItem struct {
	VariantID    int64  `json:"variant_id"`
	Quantity     int    `json:"quantity"`
	Title        string `json:"title"`
	VariantTitle string `json:"variant_title"`
	SKU          string `json:"sku"`
}

// Order is the subset of an order the pick list needs.
type Order struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	FulfillmentStatus *string         `json:"fulfillment_status"`
	LineItems         []OrderLineItem `json:"line_items"`
}

// OrderPage is one page of results plus the cursor for the next page, empty
// when no further page is indicated.
type OrderPage struct {
	Orders       []Order
	NextPageInfo string
}

// Orders fetches one page of orders.
func (c *Client) Orders(ctx context.Context, q OrderQuery) (*OrderPage, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}

	query := url.Values{
		"limit":  {strconv.Itoa(pageSize)},
		"status": {"any"},
		"fields": {"id,name,fulfillment_status,line_items"},
	}
	if q.PageInfo != "" {
		query = url.Values{
			"limit":     {strconv.Itoa(pageSize)},
			"page_info": {q.PageInfo},
			"fields":    {"id,name,fulfillment_status,line_items"},
		}
	} else {
		if q.CreatedAtMin != nil {
			query.Set("created_at_min", q.CreatedAtMin.UTC().Format(time.RFC3339))
		}
		if q.CreatedAtMax != nil {
			query.Set("created_at_max", q.CreatedAtMax.UTC().Format(time.RFC3339))
		}
		if len(q.IDs) > 0 {
			query.Set("ids", joinInt64s(q.IDs))
		}
	}

	var out struct {
		Orders []Order `json:"orders"`
	}
	headers, err := c.get(ctx, "/orders.json", query, &out)
	if err != nil {
		return nil, fmt.Errorf("read orders: %w", err)
	}

	return &OrderPage{
		Orders:       out.Orders,
		NextPageInfo: nextPageInfo(headers.Get("Link")),
	}, nil
}

// nextPageInfo extracts the page_info cursor from a Link header's rel="next"
// entry.
func nextPageInfo(link string) string {
	if link == "" {
		return ""
	}
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start < 0 || end < 0 || end <= start {
			continue
		}
		u, err := url.Parse(part[start+1 : end])
		if err != nil {
			continue
		}
		return u.Query().Get("page_info")
	}
	return ""
}
