package domain

import (
	"context"
	"time"
)

// --- Cart Entities ---

// CartLine is one product held in a cart. Lines are keyed by ProductID.
type CartLine struct {
	ProductID string    `json:"productId"`
	LineID    string    `json:"lineId,omitempty"` // Remote line handle, empty for local lines
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unitPrice"` // Price snapshot at add/update time
	AddedAt   time.Time `json:"addedAt"`
}

// Subtotal is quantity x unit price.
func (l CartLine) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// Valid reports whether the line may be stored.
func (l CartLine) Valid() bool {
	return l.ProductID != "" && l.Quantity >= 1 && l.UnitPrice >= 0
}

type Cart struct {
	Lines []CartLine `json:"items"`
}

// Empty reports whether the cart holds no lines.
func (c Cart) Empty() bool {
	return len(c.Lines) == 0
}

// TotalItemCount is the sum of quantities. Always derived, never read from a remote aggregate.
func (c Cart) TotalItemCount() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice is the sum of quantity x unitPrice over all lines.
func (c Cart) TotalPrice() float64 {
	total := 0.0
	for _, l := range c.Lines {
		total += l.Subtotal()
	}
	return total
}

// Find returns the index of the line for productID, or -1.
func (c Cart) Find(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate without aliasing cached state.
func (c Cart) Clone() Cart {
	if c.Lines == nil {
		return Cart{}
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

// Without returns a copy of the cart minus the line for productID.
func (c Cart) Without(productID string) Cart {
	out := Cart{Lines: make([]CartLine, 0, len(c.Lines))}
	for _, l := range c.Lines {
		if l.ProductID != productID {
			out.Lines = append(out.Lines, l)
		}
	}
	return out
}

// MergeReport summarises one run of the merge routine.
type MergeReport struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
}

// Synced reports whether every attempted line reached the remote cart.
func (r MergeReport) Synced() bool {
	return r.Failed == 0
}

// --- Interfaces ---

// RecordStore is a durable key/value record, the browser-local storage analogue.
// Load returns ErrRecordNotFound when nothing is stored under key.
type RecordStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// LocalCartStore persists the anonymous cart. Get never fails on corrupt data.
type LocalCartStore interface {
	Get(ctx context.Context) Cart
	Add(ctx context.Context, productID string, quantity int, unitPrice float64) error
	SetQuantity(ctx context.Context, productID string, quantity int, unitPrice *float64) error
	Remove(ctx context.Context, productID string) error
	Clear(ctx context.Context) error
}

// RemoteCartClient maps cart CRUD onto the remote API. It never retries or falls back.
type RemoteCartClient interface {
	GetCart(ctx context.Context) (Cart, error)
	AddItem(ctx context.Context, productID string, quantity int) (CartLine, error)
	UpdateItem(ctx context.Context, lineID string, quantity int) (CartLine, error)
	RemoveItem(ctx context.Context, lineID string) error
	Clear(ctx context.Context) error
}

// SnapshotCache holds the last known remote cart read.
type SnapshotCache interface {
	Get(key string) (Cart, bool)
	Set(key string, cart Cart)
	Delete(key string)
}
