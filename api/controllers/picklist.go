package controllers

import (
	"net/http"

	"github.com/ksefonte/spicy-pickle/api/responses"
	"github.com/ksefonte/spicy-pickle/api/validators"
	"github.com/ksefonte/spicy-pickle/internal/picklist"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
)

func picklistParams(r *http.Request, shopID string) (picklist.Params, error) {
	createdMin, err := validators.ParseQueryTime(r, "created_at_min")
	if err != nil {
		return picklist.Params{}, err
	}
	createdMax, err := validators.ParseQueryTime(r, "created_at_max")
	if err != nil {
		return picklist.Params{}, err
	}
	orderIDs, err := validators.ParseQueryInt64List(r, "order_ids")
	if err != nil {
		return picklist.Params{}, err
	}

	return picklist.Params{
		ShopID:              shopID,
		CreatedAtMin:        createdMin,
		CreatedAtMax:        createdMax,
		FulfillmentStatuses: validators.ParseQueryStringList(r, "fulfillment_status"),
		OrderIDs:            orderIDs,
		SortField:           r.URL.Query().Get("sort"),
		SortDirection:       r.URL.Query().Get("direction"),
	}, nil
}

func PicklistGenerate(svc picklist.Service, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := picklistParams(r, shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Generate(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// PicklistCSV streams the pick list as a CSV attachment.
func PicklistCSV(svc picklist.Service, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := picklistParams(r, shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Generate(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="picklist.csv"`)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(picklist.WriteCSV(result.Items))); err != nil && logg != nil {
			logg.Error(r.Context(), "failed to write csv response", err)
		}
	}
}
