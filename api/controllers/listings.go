package controllers

import (
	"net/http"

	"github.com/gebeya-market/gebeya-backend/api/responses"
	"github.com/gebeya-market/gebeya-backend/api/validators"
	"github.com/gebeya-market/gebeya-backend/internal/listings"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

// GetListing returns the live price and stock of a listing for cart display.
func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		id, err := validators.PathUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}
