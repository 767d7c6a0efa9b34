package controllers

import (
	"net/http"

	"github.com/gebeya-market/gebeya-backend/api/middleware"
	"github.com/gebeya-market/gebeya-backend/api/responses"
	"github.com/gebeya-market/gebeya-backend/api/validators"
	"github.com/gebeya-market/gebeya-backend/internal/payoutmethods"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

// Type specific field requirements are enforced by the service.
type addPayoutMethodRequest struct {
	Type          enums.PayoutMethodType    `json:"type" validate:"required,oneof=bank mobile"`
	Label         *string                   `json:"label,omitempty" validate:"omitempty,max=60"`
	BankName      string                    `json:"bankName,omitempty" validate:"max=100"`
	AccountNumber string                    `json:"accountNumber,omitempty" validate:"max=34"`
	AccountHolder string                    `json:"accountHolder,omitempty" validate:"max=120"`
	Provider      enums.MobileMoneyProvider `json:"provider,omitempty"`
	PhoneNumber   string                    `json:"phoneNumber,omitempty" validate:"omitempty,ethphone"`
}

type confirmVerificationRequest struct {
	Code string `json:"code" validate:"required,numeric,min=4,max=10"`
}

// ListPayoutMethods returns the caller's payout methods with masked numbers.
func ListPayoutMethods(svc payoutmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout methods service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methods, err := svc.List(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, methods)
	}
}

// ListPayoutMethodsForOwner is the admin view of another user's methods.
func ListPayoutMethodsForOwner(svc payoutmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout methods service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ownerID, err := validators.PathUUID(r, "ownerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methods, err := svc.ListForOwner(r.Context(), actor, ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, methods)
	}
}

func AddPayoutMethod(svc payoutmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout methods service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addPayoutMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := svc.Add(r.Context(), actor, payoutmethods.AddInput{
			Type:          payload.Type,
			Label:         payload.Label,
			BankName:      payload.BankName,
			AccountNumber: payload.AccountNumber,
			AccountHolder: payload.AccountHolder,
			Provider:      payload.Provider,
			PhoneNumber:   payload.PhoneNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, method)
	}
}

func RemovePayoutMethod(svc payoutmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout methods service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "methodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Remove(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// RequestPayoutVerification issues a fresh single-use code for the method.
func RequestPayoutVerification(svc payoutmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout methods service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "methodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ack, err := svc.RequestVerification(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, ack)
	}
}

// ConfirmPayoutVerification marks the method verified when the code matches.
func ConfirmPayoutVerification(svc payoutmethods.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payout methods service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(r, "methodId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload confirmVerificationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := svc.ConfirmVerification(r.Context(), actor, id, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, method)
	}
}
