// Package client is a small REST client for the marketplace API used by
// gebeyactl and by integration tooling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/types"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithLanguage sets Accept-Language so server messages come back localized.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

type Client struct {
	base  *url.URL
	http  *http.Client
	token string
	lang  string
}

func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url must be absolute, got %q", baseURL)
	}
	c := &Client{base: parsed, http: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type Listing struct {
	ID                uuid.UUID       `json:"id"`
	FarmerID          uuid.UUID       `json:"farmerId"`
	Name              string          `json:"name"`
	NameAm            *string         `json:"nameAm,omitempty"`
	Unit              string          `json:"unit"`
	PricePerUnit      decimal.Decimal `json:"pricePerUnit"`
	AvailableQuantity int             `json:"availableQuantity"`
	ImageRefs         []string        `json:"imageRefs"`
	IsActive          bool            `json:"isActive"`
}

type LineItem struct {
	ListingID    uuid.UUID       `json:"listingId"`
	ListingName  string          `json:"listingName"`
	Quantity     int             `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"pricePerUnit"`
	LineTotal    decimal.Decimal `json:"lineTotal"`
}

type Order struct {
	ID              uuid.UUID       `json:"id"`
	CheckoutGroupID uuid.UUID       `json:"checkoutGroupId"`
	BuyerID         uuid.UUID       `json:"buyerId"`
	FarmerID        uuid.UUID       `json:"farmerId"`
	FarmerName      string          `json:"farmerName,omitempty"`
	Status          string          `json:"status"`
	AllowedNext     []string        `json:"allowedNext"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	PaymentMethod   string          `json:"paymentMethod"`
	DeliveryAddress string          `json:"deliveryAddress"`
	CancelReason    *string         `json:"cancelReason,omitempty"`
	Items           []LineItem      `json:"items"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type PageMeta struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
}

type OrderList struct {
	Orders []Order  `json:"orders"`
	Meta   PageMeta `json:"meta"`
}

type CheckoutLine struct {
	ListingID uuid.UUID `json:"listingId"`
	Quantity  int       `json:"quantity"`
}

type CheckoutRequest struct {
	Items           []CheckoutLine `json:"items"`
	DeliveryAddress string         `json:"deliveryAddress"`
	DeliveryCity    *string        `json:"deliveryCity,omitempty"`
	ContactPhone    *string        `json:"contactPhone,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
	PaymentMethod   string         `json:"paymentMethod,omitempty"`
}

type CheckoutResult struct {
	CheckoutGroupID uuid.UUID `json:"checkoutGroupId"`
	Orders          []Order   `json:"orders"`
}

type ListOrdersParams struct {
	Role   string
	Status string
	Page   int
	Limit  int
}

func (c *Client) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var out Listing
	if err := c.do(ctx, http.MethodGet, "/api/v1/listings/"+id.String(), nil, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Checkout submits the cart. idempotencyKey is required by the server and
// must be reused when retrying the same submission.
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (*CheckoutResult, error) {
	var out CheckoutResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", nil, req, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListOrders(ctx context.Context, params ListOrdersParams) (*OrderList, error) {
	query := url.Values{}
	if params.Role != "" {
		query.Set("role", params.Role)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	var out OrderList
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders", query, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TransitionOrder(ctx context.Context, id uuid.UUID, status string, reason *string, idempotencyKey string) (*Order, error) {
	body := map[string]any{"status": status}
	if reason != nil {
		body["reason"] = *reason
	}
	var out Order
	if err := c.do(ctx, http.MethodPatch, "/api/v1/orders/"+id.String()+"/status", nil, body, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, id uuid.UUID, reason *string, idempotencyKey string) (*Order, error) {
	body := map[string]any{}
	if reason != nil {
		body["reason"] = *reason
	}
	var out Order
	if err := c.do(ctx, http.MethodPatch, "/api/v1/orders/"+id.String()+"/cancel", nil, body, idempotencyKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, idempotencyKey string, out any) error {
	target := *c.base
	target.Path = strings.TrimRight(c.base.Path, "/") + path
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope types.ErrorEnvelope
		if json.Unmarshal(payload, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
			apiErr.Details = envelope.Error.Details
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(payload) == 0 {
		return nil
	}

	envelope := types.SuccessEnvelope{Data: out}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
