// Package cart is the client-held shopping cart: an explicit store keyed per
// identity, persisted through a localstore.Storage and observable through
// subscriptions. The server re-validates everything at checkout.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gebeya-market/gebeya-backend/pkg/localstore"
	"github.com/gebeya-market/gebeya-backend/pkg/logger"
)

const (
	// MaxQuantity caps any single line regardless of farmer stock.
	MaxQuantity = 50

	GuestIdentity = "guest"
	LegacyKey     = "global_cart"
	keyPrefix     = "cart_"
	migratedKey   = "cart_legacy_migrated"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	ErrInvalidItem     = errors.New("cart: listing id is required")
	ErrEmpty           = errors.New("cart: cart is empty")
)

// Item is one cart line.
type Item struct {
	ListingID         uuid.UUID       `json:"listingId"`
	Name              string          `json:"name"`
	NameLocalized     string          `json:"nameLocalized,omitempty"`
	ImageRefs         []string        `json:"imageRefs,omitempty"`
	PricePerUnit      decimal.Decimal `json:"pricePerUnit"`
	AvailableQuantity int             `json:"availableQuantity"`
	Quantity          int             `json:"quantity"`
}

// LineTotal is quantity times unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) cap() int {
	if i.AvailableQuantity > 0 && i.AvailableQuantity < MaxQuantity {
		return i.AvailableQuantity
	}
	return MaxQuantity
}

// Snapshot is the state delivered to subscribers after each change.
type Snapshot struct {
	Identity   string
	Items      []Item
	TotalItems int
	TotalCost  decimal.Decimal
}

// Store owns the cart for the current identity.
type Store struct {
	mu       sync.Mutex
	storage  localstore.Storage
	logg     *logger.Logger
	identity string
	items    []Item
	subs     map[int]func(Snapshot)
	nextSub  int
}

// New returns a guest cart backed by storage. Call Load to switch identity.
func New(storage localstore.Storage, logg *logger.Logger) *Store {
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{
		storage: storage,
		logg:    logg,
		subs:    make(map[int]func(Snapshot)),
	}
	s.Load("")
	return s
}

// Key returns the storage key for an identity; blank identities map to guest.
func Key(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = GuestIdentity
	}
	return keyPrefix + identity
}

// Load switches the store to identity and reads its cart. The first time an
// authenticated identity loads without a saved cart, the legacy global cart
// is moved into it; this happens at most once per device.
func (s *Store) Load(identity string) {
	s.mu.Lock()
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = GuestIdentity
	}
	s.identity = identity
	s.items = s.read(Key(identity))
	if s.items == nil && identity != GuestIdentity {
		s.items = s.migrateLegacy(Key(identity))
	}
	if s.items == nil {
		s.items = []Item{}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Store) read(key string) []Item {
	raw, err := s.storage.Get(key)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			s.warn("cart storage read failed", key, err)
		}
		return nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		s.warn("cart storage decode failed", key, err)
		return nil
	}
	return sanitize(items)
}

func (s *Store) migrateLegacy(key string) []Item {
	if _, err := s.storage.Get(migratedKey); err == nil {
		return nil
	}
	legacy := s.read(LegacyKey)
	if legacy == nil {
		return nil
	}
	s.write(key, legacy)
	if err := s.storage.Delete(LegacyKey); err != nil {
		s.warn("legacy cart delete failed", LegacyKey, err)
	}
	if err := s.storage.Set(migratedKey, []byte(`true`)); err != nil {
		s.warn("legacy cart marker write failed", migratedKey, err)
	}
	return legacy
}

// sanitize drops unusable rows and re-applies the quantity cap.
func sanitize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ListingID == uuid.Nil || it.Quantity < 1 {
			continue
		}
		if it.Quantity > it.cap() {
			it.Quantity = it.cap()
		}
		out = append(out, it)
	}
	return out
}

func (s *Store) write(key string, items []Item) {
	raw, err := json.Marshal(items)
	if err != nil {
		s.warn("cart encode failed", key, err)
		return
	}
	if err := s.storage.Set(key, raw); err != nil {
		s.warn("cart storage write failed", key, err)
	}
}

func (s *Store) warn(msg, key string, err error) {
	ctx := s.logg.WithFields(context.Background(), map[string]any{"key": key, "error": err.Error()})
	s.logg.Warn(ctx, msg)
}

// Identity returns the identity whose cart is loaded.
func (s *Store) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// AddItem merges qty into an existing line for the same listing or appends a
// new line. The resulting quantity is capped at min(available, MaxQuantity).
func (s *Store) AddItem(item Item, qty int) error {
	if item.ListingID == uuid.Nil {
		return ErrInvalidItem
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	s.mutate(func(items []Item) []Item {
		for i := range items {
			if items[i].ListingID == item.ListingID {
				room := max(items[i].cap()-items[i].Quantity, 0)
				items[i].Quantity += min(qty, room)
				return items
			}
		}
		item.Quantity = min(qty, item.cap())
		return append(items, item)
	})
	return nil
}

// UpdateQuantity sets a line's quantity; zero or negative removes the line.
func (s *Store) UpdateQuantity(listingID uuid.UUID, qty int) {
	if qty <= 0 {
		s.RemoveItem(listingID)
		return
	}
	s.mutate(func(items []Item) []Item {
		for i := range items {
			if items[i].ListingID == listingID {
				items[i].Quantity = min(qty, items[i].cap())
			}
		}
		return items
	})
}

func (s *Store) RemoveItem(listingID uuid.UUID) {
	s.mutate(func(items []Item) []Item {
		out := items[:0]
		for _, it := range items {
			if it.ListingID != listingID {
				out = append(out, it)
			}
		}
		return out
	})
}

func (s *Store) Clear() {
	s.mutate(func([]Item) []Item { return []Item{} })
}

func (s *Store) mutate(fn func([]Item) []Item) {
	s.mu.Lock()
	s.items = fn(s.items)
	s.write(Key(s.identity), s.items)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

func (s *Store) TotalItems() int {
	return s.Snapshot().TotalItems
}

func (s *Store) TotalCost() decimal.Decimal {
	return s.Snapshot().TotalCost
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Identity:  s.identity,
		Items:     append([]Item(nil), s.items...),
		TotalCost: decimal.Zero,
	}
	for _, it := range s.items {
		snap.TotalItems += it.Quantity
		snap.TotalCost = snap.TotalCost.Add(it.LineTotal())
	}
	return snap
}

// Subscribe registers fn for every change and returns its cancel func.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) publish(snap Snapshot) {
	s.mu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// Checkout hands the current lines to submit and clears the cart only when
// submit succeeds, so a failed call never loses the cart.
func (s *Store) Checkout(ctx context.Context, submit func(ctx context.Context, items []Item) error) error {
	items := s.Items()
	if len(items) == 0 {
		return ErrEmpty
	}
	if err := submit(ctx, items); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	s.Clear()
	return nil
}
