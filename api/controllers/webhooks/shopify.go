package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/ksefonte/spicy-pickle/api/responses"
	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
)

const (
	hmacHeader       = "X-Shopify-Hmac-Sha256"
	topicHeader      = "X-Shopify-Topic"
	shopDomainHeader = "X-Shopify-Shop-Domain"
	webhookIDHeader  = "X-Shopify-Webhook-Id"

	maxWebhookBody = 1 << 20
)

type InventoryWebhookService interface {
	HandleInventoryLevelUpdate(ctx context.Context, shopDomain, webhookID string, body []byte) (*syncsvc.Result, error)
}

type shopifyClient interface {
	WebhookSecret() string
}

// ShopifyInventoryWebhook verifies and processes inventory_levels/update
// deliveries. Duplicates acknowledge with 200 so the platform stops
// redelivering; hard failures return 5xx so it retries with backoff.
func ShopifyInventoryWebhook(svc InventoryWebhookService, client shopifyClient, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shopify client unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := r.Header.Get(hmacHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shopify hmac missing"))
			return
		}
		if !validateShopifySignature(payload, client.WebhookSecret(), signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid shopify hmac"))
			return
		}

		webhookID := r.Header.Get(webhookIDHeader)
		shopDomain := r.Header.Get(shopDomainHeader)
		if logg != nil {
			ctx = logg.WithWebhookID(logg.WithShopID(ctx, shopDomain), webhookID)
			ctx = logg.WithField(ctx, "topic", r.Header.Get(topicHeader))
		}

		result, err := svc.HandleInventoryLevelUpdate(ctx, shopDomain, webhookID, payload)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeDuplicateDelivery) {
				if logg != nil {
					logg.Info(ctx, "duplicate webhook delivery acknowledged")
				}
				responses.WriteSuccess(w, map[string]bool{"duplicate": true})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "inventory webhook processed")
		}
		responses.WriteSuccess(w, result)
	}
}

func validateShopifySignature(payload []byte, secret, header string) bool {
	if header == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
