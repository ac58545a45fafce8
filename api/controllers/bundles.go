package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ksefonte/spicy-pickle/api/responses"
	"github.com/ksefonte/spicy-pickle/api/validators"
	"github.com/ksefonte/spicy-pickle/internal/bundles"
	syncsvc "github.com/ksefonte/spicy-pickle/internal/sync"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
	"github.com/ksefonte/spicy-pickle/pkg/pagination"
)

type bundleComponentRequest struct {
	ChildVariantID int64   `json:"child_variant_id" validate:"required,min=1"`
	Quantity       int     `json:"quantity" validate:"required,min=1"`
	Title          string  `json:"title"`
	VariantTitle   string  `json:"variant_title"`
	SKU            *string `json:"sku,omitempty"`
}

type bundleCreateRequest struct {
	ParentVariantID int64                    `json:"parent_variant_id" validate:"required,min=1"`
	Title           string                   `json:"title" validate:"required,min=1"`
	ExpandOnPick    bool                     `json:"expand_on_pick"`
	Components      []bundleComponentRequest `json:"components" validate:"required,min=1,dive"`
}

type bundleUpdateRequest struct {
	Title        string                   `json:"title" validate:"required,min=1"`
	ExpandOnPick bool                     `json:"expand_on_pick"`
	Components   []bundleComponentRequest `json:"components" validate:"required,min=1,dive"`
}

func toComponentInputs(reqs []bundleComponentRequest) []bundles.ComponentInput {
	out := make([]bundles.ComponentInput, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, bundles.ComponentInput{
			ChildVariantID: req.ChildVariantID,
			Quantity:       req.Quantity,
			Title:          req.Title,
			VariantTitle:   req.VariantTitle,
			SKU:            req.SKU,
		})
	}
	return out
}

func BundleCreate(svc bundles.Service, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bundleCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.Create(r.Context(), bundles.CreateInput{
			ShopID:          shopID,
			ParentVariantID: req.ParentVariantID,
			Title:           req.Title,
			ExpandOnPick:    req.ExpandOnPick,
			Components:      toComponentInputs(req.Components),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bundle)
	}
}

func BundleGet(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseBundleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundle, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func BundleList(svc bundles.Service, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), shopID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"bundles":     list.Bundles,
			"next_cursor": list.NextCursor,
		})
	}
}

func BundleUpdate(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseBundleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req bundleUpdateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.Update(r.Context(), id, bundles.UpdateInput{
			Title:        req.Title,
			ExpandOnPick: req.ExpandOnPick,
			Components:   toComponentInputs(req.Components),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func BundleDelete(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseBundleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusNoContent, nil)
	}
}

// BundleResync forces a reconciliation pass for one bundle at a location,
// without waiting for a stock event.
func BundleResync(bundleSvc bundles.Service, sync syncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseBundleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.ParseQueryInt64(r, "location_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if locationID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "location_id is required"))
			return
		}

		bundle, err := bundleSvc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := sync.Resync(r.Context(), *bundle, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resync failed"))
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseBundleID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "bundleId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bundle id")
	}
	return id, nil
}
