// Package localcart persists the anonymous visitor's cart as a single JSON record.
package localcart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"

	"github.com/goccy/go-json"
)

// record is the persisted shape. Field names are part of the on-disk format.
type record struct {
	Items []domain.CartLine `json:"items"`
}

// Store is the Local Cart Store. Every mutation persists and publishes exactly one
// cart.changed event, even when it changes nothing.
type Store struct {
	mu      sync.Mutex
	records domain.RecordStore
	key     string
	events  domain.Publisher
	now     func() time.Time
}

type Option func(*Store)

// WithClock overrides time.Now for addedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(records domain.RecordStore, key string, events domain.Publisher, opts ...Option) *Store {
	s := &Store{
		records: records,
		key:     key,
		events:  events,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Get(ctx context.Context) domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// load never fails: missing or corrupt records read as an empty cart.
func (s *Store) load(ctx context.Context) domain.Cart {
	raw, err := s.records.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			logger.WithContext(ctx).Warn().Err(err).Str("key", s.key).Msg("Local cart unreadable, treating as empty")
		}
		return domain.Cart{}
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		logger.WithContext(ctx).Debug().Err(err).Str("key", s.key).Msg("Local cart corrupt, treating as empty")
		return domain.Cart{}
	}

	cart := domain.Cart{Lines: make([]domain.CartLine, 0, len(rec.Items))}
	for _, l := range rec.Items {
		if !l.Valid() {
			logger.WithContext(ctx).Debug().Str("product_id", l.ProductID).Int("quantity", l.Quantity).Msg("Dropping invalid local cart line")
			continue
		}
		// A hand-edited record may repeat a product; fold it into the first line.
		if i := cart.Find(l.ProductID); i >= 0 {
			cart.Lines[i].Quantity += l.Quantity
			continue
		}
		l.LineID = ""
		cart.Lines = append(cart.Lines, l)
	}
	return cart
}

func (s *Store) persist(ctx context.Context, cart domain.Cart) error {
	items := cart.Lines
	if items == nil {
		items = []domain.CartLine{}
	}
	raw, err := json.Marshal(record{Items: items})
	if err != nil {
		return fmt.Errorf("encode local cart: %w", err)
	}
	if err := s.records.Save(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save local cart: %w", err)
	}
	s.notify()
	return nil
}

func (s *Store) notify() {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.Event{
		Kind:   domain.EventCartChanged,
		Source: domain.SourceLocal,
		At:     s.now(),
	})
}

// Add increments an existing line or inserts a new one stamped with the current time.
func (s *Store) Add(ctx context.Context, productID string, quantity int, unitPrice float64) error {
	if productID == "" || quantity < 1 || unitPrice < 0 {
		return fmt.Errorf("%w: add %q x%d @%v", domain.ErrInvalidInput, productID, quantity, unitPrice)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.load(ctx)
	if i := cart.Find(productID); i >= 0 {
		cart.Lines[i].Quantity += quantity
		if unitPrice > 0 {
			cart.Lines[i].UnitPrice = unitPrice
		}
	} else {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: unitPrice,
			AddedAt:   s.now(),
		})
	}
	return s.persist(ctx, cart)
}

// SetQuantity overwrites the quantity, removing the line when quantity <= 0.
// A line that does not exist yet is created, priced at unitPrice or 0, so an update
// issued while the remote is down is not lost.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int, unitPrice *float64) error {
	if productID == "" {
		return fmt.Errorf("%w: empty product id", domain.ErrInvalidInput)
	}
	if unitPrice != nil && *unitPrice < 0 {
		return fmt.Errorf("%w: negative price", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.load(ctx)
	i := cart.Find(productID)
	switch {
	case quantity <= 0:
		cart = cart.Without(productID)
	case i >= 0:
		cart.Lines[i].Quantity = quantity
		if unitPrice != nil {
			cart.Lines[i].UnitPrice = *unitPrice
		}
	default:
		price := 0.0
		if unitPrice != nil {
			price = *unitPrice
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: productID,
			Quantity:  quantity,
			UnitPrice: price,
			AddedAt:   s.now(),
		})
	}
	return s.persist(ctx, cart)
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persist(ctx, s.load(ctx).Without(productID))
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(ctx, domain.Cart{})
}
