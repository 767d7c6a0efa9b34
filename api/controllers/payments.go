package controllers

import (
	"net/http"
	"strings"

	"github.com/gebeya-market/gebeya-backend/api/middleware"
	"github.com/gebeya-market/gebeya-backend/api/responses"
	"github.com/gebeya-market/gebeya-backend/api/validators"
	"github.com/gebeya-market/gebeya-backend/internal/payments"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

// ListPayments returns the caller's paid (buyer) or received (farmer) view.
func ListPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var perspective enums.Role
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			perspective = enums.Role(raw)
			if perspective != enums.RoleBuyer && perspective != enums.RoleFarmer {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer or farmer").WithDetails(map[string]any{"field": "role"}))
				return
			}
		}

		list, err := svc.GetPaymentsFor(r.Context(), actor, perspective, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
