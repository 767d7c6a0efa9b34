package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebeya-market/gebeya-backend/pkg/localstore"
)

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api")
	require.Error(t, err)
}

func TestCheckoutSendsHeadersAndDecodesEnvelope(t *testing.T) {
	listing := uuid.New()
	group := uuid.New()
	var gotBody CheckoutRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/orders", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "am", r.Header.Get("Accept-Language"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"checkoutGroupId":"` + group.String() + `","orders":[{"id":"` + uuid.NewString() + `","status":"pending","subtotal":"240"}]}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithToken("tok"), WithLanguage("am"))
	require.NoError(t, err)

	result, err := c.Checkout(context.Background(), CheckoutRequest{
		Items:           []CheckoutLine{{ListingID: listing, Quantity: 2}},
		DeliveryAddress: "Bole",
	}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, group, result.CheckoutGroupID)
	require.Len(t, result.Orders, 1)
	assert.True(t, result.Orders[0].Subtotal.Equal(decimal.NewFromInt(240)))
	assert.Equal(t, listing, gotBody.Items[0].ListingID)
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_TRANSITION","message":"status transition not allowed"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.TransitionOrder(context.Background(), uuid.New(), "completed", nil, "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "INVALID_TRANSITION", apiErr.Code)
}

func TestListOrdersEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "farmer", r.URL.Query().Get("role"))
		assert.Equal(t, "shipped", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Empty(t, r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":{"orders":[],"meta":{"page":2,"limit":20,"total":0,"hasNext":false}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	list, err := c.ListOrders(context.Background(), ListOrdersParams{Role: "farmer", Status: "shipped", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Meta.Page)
}

func TestPrefsLanguageAndToken(t *testing.T) {
	prefs := NewPrefs(localstore.NewMemory())
	assert.Equal(t, LanguageEnglish, prefs.Language())

	require.Error(t, prefs.SetLanguage("fr"))
	require.NoError(t, prefs.SetLanguage(" AM "))
	assert.Equal(t, LanguageAmharic, prefs.Language())

	token, err := prefs.Token()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, prefs.SetToken("abc"))
	token, err = prefs.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	require.NoError(t, prefs.SetToken(""))
	token, err = prefs.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}
