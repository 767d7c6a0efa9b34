package orders

import (
	"net/http"
	"strings"

	"github.com/gebeya-market/gebeya-backend/api/middleware"
	"github.com/gebeya-market/gebeya-backend/api/responses"
	"github.com/gebeya-market/gebeya-backend/api/validators"
	"github.com/gebeya-market/gebeya-backend/internal/checkout"
	"github.com/gebeya-market/gebeya-backend/internal/checkout/helpers"
	internalorders "github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/internal/payments"
	pkgcheckout "github.com/gebeya-market/gebeya-backend/pkg/checkout"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

type createOrderRequest struct {
	Items           []pkgcheckout.LineInput `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string                  `json:"deliveryAddress" validate:"required,max=300"`
	DeliveryCity    *string                 `json:"deliveryCity,omitempty" validate:"omitempty,max=100"`
	ContactPhone    *string                 `json:"contactPhone,omitempty" validate:"omitempty,ethphone"`
	Notes           *string                 `json:"notes,omitempty" validate:"omitempty,max=500"`
	PaymentMethod   enums.PaymentMethod     `json:"paymentMethod,omitempty"`
}

type transitionRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
	Reason *string           `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type cancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// Create checks out a buyer's cart, splitting it into one order per farmer.
func Create(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), actor, checkout.CheckoutInput{
			Items: payload.Items,
			Delivery: helpers.DeliveryInput{
				Address:       payload.DeliveryAddress,
				City:          payload.DeliveryCity,
				ContactPhone:  payload.ContactPhone,
				Notes:         payload.Notes,
				PaymentMethod: payload.PaymentMethod,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// List returns orders from the buyer or farmer perspective selected by ?role.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), actor, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseListQuery(r *http.Request) (internalorders.ListQuery, error) {
	page, err := validators.ParsePage(r)
	if err != nil {
		return internalorders.ListQuery{}, err
	}
	query := internalorders.ListQuery{Page: page}

	if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
		role, err := enums.ParseRole(raw)
		if err != nil || (role != enums.RoleBuyer && role != enums.RoleFarmer) {
			return query, pkgerrors.New(pkgerrors.CodeValidation, "role must be buyer or farmer").WithDetails(map[string]any{"field": "role"})
		}
		query.Perspective = role
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter").WithDetails(map[string]any{"field": "status"})
		}
		query.Status = &status
	}
	return query, nil
}

// Detail returns one order visible to the caller.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateStatus applies a state machine transition requested by the caller.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Status.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown status %q", payload.Status))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderID(ctx, orderID.String())
		}
		order, err := svc.Transition(ctx, actor, internalorders.TransitionInput{
			OrderID: orderID,
			Status:  payload.Status,
			Reason:  validators.CleanOptional(payload.Reason),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel moves an order to cancelled on behalf of either party.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), actor, orderID, validators.CleanOptional(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// History lists an order's status transitions, oldest first.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		actor, err := middleware.RequestActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.History(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}

// PaymentEvents returns the ledger entries of one order.
func PaymentEvents(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
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
		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.EventsForOrder(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, events)
	}
}
