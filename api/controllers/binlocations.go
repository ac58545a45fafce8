package controllers

import (
	"net/http"

	"github.com/ksefonte/spicy-pickle/api/responses"
	"github.com/ksefonte/spicy-pickle/api/validators"
	"github.com/ksefonte/spicy-pickle/internal/binlocations"
	"github.com/ksefonte/spicy-pickle/pkg/db/models"
	pkgerrors "github.com/ksefonte/spicy-pickle/pkg/errors"
	"github.com/ksefonte/spicy-pickle/pkg/logger"
)

type binLocationRequest struct {
	VariantID int64  `json:"variant_id" validate:"required,min=1"`
	Location  string `json:"location" validate:"required,min=1"`
}

func BinLocationList(repo binlocations.Repository, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := repo.List(r.Context(), shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bin locations"))
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func BinLocationUpsert(repo binlocations.Repository, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req binLocationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row := &models.BinLocation{
			ShopID:    shopID,
			VariantID: req.VariantID,
			Location:  req.Location,
		}
		if err := repo.Upsert(r.Context(), row); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert bin location"))
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func BinLocationDelete(repo binlocations.Repository, shopID string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := validators.ParseQueryInt64(r, "variant_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if variantID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "variant_id is required"))
			return
		}
		if err := repo.Delete(r.Context(), shopID, variantID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bin location"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusNoContent, nil)
	}
}
