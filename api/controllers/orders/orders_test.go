package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/api/middleware"
	"github.com/gebeya-market/gebeya-backend/internal/checkout"
	internalorders "github.com/gebeya-market/gebeya-backend/internal/orders"
	"github.com/gebeya-market/gebeya-backend/pkg/auth"
	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	pkgerrors "github.com/gebeya-market/gebeya-backend/pkg/errors"
	"github.com/gebeya-market/gebeya-backend/pkg/pagination"
)

type stubOrdersService struct {
	listQuery   internalorders.ListQuery
	transition  internalorders.TransitionInput
	cancelID    uuid.UUID
	cancelNote  *string
	transitionE error
}

func (s *stubOrdersService) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	return &internalorders.OrderDTO{ID: id, BuyerID: actor.UserID, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) List(ctx context.Context, actor auth.Actor, query internalorders.ListQuery) (*internalorders.OrderList, error) {
	s.listQuery = query
	return &internalorders.OrderList{Orders: []internalorders.OrderDTO{}, Meta: pagination.MetaFor(query.Page, 0)}, nil
}

func (s *stubOrdersService) Transition(ctx context.Context, actor auth.Actor, input internalorders.TransitionInput) (*internalorders.OrderDTO, error) {
	s.transition = input
	if s.transitionE != nil {
		return nil, s.transitionE
	}
	return &internalorders.OrderDTO{ID: input.OrderID, Status: input.Status}, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID, reason *string) (*internalorders.OrderDTO, error) {
	s.cancelID = id
	s.cancelNote = reason
	return &internalorders.OrderDTO{ID: id, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrdersService) History(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]internalorders.StatusEventDTO, error) {
	return []internalorders.StatusEventDTO{{From: enums.OrderStatusPending, To: enums.OrderStatusConfirmed, ActorRole: enums.RoleFarmer, CreatedAt: time.Now()}}, nil
}

func (s *stubOrdersService) ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	return 0, nil
}

type stubCheckout struct {
	input checkout.CheckoutInput
}

func (s *stubCheckout) Execute(ctx context.Context, actor auth.Actor, input checkout.CheckoutInput) (*checkout.Result, error) {
	s.input = input
	return &checkout.Result{
		CheckoutGroupID: uuid.New(),
		Orders: []internalorders.OrderDTO{{
			ID:       uuid.New(),
			BuyerID:  actor.UserID,
			Status:   enums.OrderStatusPending,
			Subtotal: decimal.NewFromInt(120),
		}},
	}, nil
}

func newRouter(svc internalorders.Service, co checkout.Service, actor auth.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithActor(req.Context(), actor)))
		})
	})
	r.Post("/orders", Create(co, nil))
	r.Get("/orders", List(svc, nil))
	r.Get("/orders/{orderId}", Detail(svc, nil))
	r.Patch("/orders/{orderId}/status", UpdateStatus(svc, nil))
	r.Patch("/orders/{orderId}/cancel", Cancel(svc, nil))
	r.Get("/orders/{orderId}/history", History(svc, nil))
	return r
}

func buyer() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.RoleBuyer}
}

func TestCreateReturnsCheckoutGroup(t *testing.T) {
	co := &stubCheckout{}
	router := newRouter(&stubOrdersService{}, co, buyer())
	listing := uuid.New()

	body := `{"items":[{"listingId":"` + listing.String() + `","quantity":3}],"deliveryAddress":"Bole, Addis Ababa","contactPhone":"0911 234567","paymentMethod":"cash_on_delivery"}`
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var envelope struct {
		Data checkout.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	assert.NotEqual(t, uuid.Nil, envelope.Data.CheckoutGroupID)
	require.Len(t, envelope.Data.Orders, 1)
	assert.True(t, envelope.Data.Orders[0].Subtotal.Equal(decimal.NewFromInt(120)))

	require.Len(t, co.input.Items, 1)
	assert.Equal(t, listing, co.input.Items[0].ListingID)
	assert.Equal(t, 3, co.input.Items[0].Quantity)
	assert.Equal(t, "Bole, Addis Ababa", co.input.Delivery.Address)
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	router := newRouter(&stubOrdersService{}, &stubCheckout{}, buyer())

	cases := map[string]string{
		"empty items":   `{"items":[],"deliveryAddress":"Bole"}`,
		"no address":    `{"items":[{"listingId":"` + uuid.NewString() + `","quantity":1}]}`,
		"bad phone":     `{"items":[{"listingId":"` + uuid.NewString() + `","quantity":1}],"deliveryAddress":"Bole","contactPhone":"12345"}`,
		"unknown field": `{"items":[{"listingId":"` + uuid.NewString() + `","quantity":1}],"deliveryAddress":"Bole","coupon":"X"}`,
		"zero quantity": `{"items":[{"listingId":"` + uuid.NewString() + `","quantity":0}],"deliveryAddress":"Bole"}`,
		"over cap":      `{"items":[{"listingId":"` + uuid.NewString() + `","quantity":51}],"deliveryAddress":"Bole"}`,
	}
	for name, body := range cases {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, resp.Code, name)
	}
}

func TestListParsesFilters(t *testing.T) {
	svc := &stubOrdersService{}
	router := newRouter(svc, &stubCheckout{}, buyer())

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orders?role=buyer&status=shipped&page=2&limit=5", nil))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, enums.RoleBuyer, svc.listQuery.Perspective)
	require.NotNil(t, svc.listQuery.Status)
	assert.Equal(t, enums.OrderStatusShipped, *svc.listQuery.Status)
	assert.Equal(t, pagination.Page{Page: 2, Limit: 5}, svc.listQuery.Page)

	for _, bad := range []string{"?role=admin", "?status=lost", "?limit=0"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orders"+bad, nil))
		assert.Equal(t, http.StatusBadRequest, resp.Code, bad)
	}
}

func TestUpdateStatusMapsInvalidTransition(t *testing.T) {
	svc := &stubOrdersService{transitionE: pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move order from pending to completed")}
	router := newRouter(svc, &stubCheckout{}, auth.Actor{UserID: uuid.New(), Role: enums.RoleFarmer})
	orderID := uuid.New()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"completed"}`)))

	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeInvalidTransition))
	assert.Equal(t, orderID, svc.transition.OrderID)
	assert.Equal(t, enums.OrderStatusCompleted, svc.transition.Status)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	router := newRouter(&stubOrdersService{}, &stubCheckout{}, buyer())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/orders/"+uuid.NewString()+"/status", strings.NewReader(`{"status":"teleported"}`)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCancelAcceptsEmptyAndReasonBodies(t *testing.T) {
	svc := &stubOrdersService{}
	router := newRouter(svc, &stubCheckout{}, buyer())
	orderID := uuid.New()

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/cancel", nil))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, orderID, svc.cancelID)
	assert.Nil(t, svc.cancelNote)

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/orders/"+orderID.String()+"/cancel", strings.NewReader(`{"reason":"changed my mind"}`)))
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.cancelNote)
	assert.Equal(t, "changed my mind", *svc.cancelNote)
}

func TestDetailRejectsMalformedID(t *testing.T) {
	router := newRouter(&stubOrdersService{}, &stubCheckout{}, buyer())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandlersRequireActor(t *testing.T) {
	handler := Detail(&stubOrdersService{}, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/orders/x", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
