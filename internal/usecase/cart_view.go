package usecase

import (
	"context"

	"storefront-cart/internal/domain"
)

// CartView is the shape handed to the UI.
type CartView struct {
	Items      []domain.CartLine `json:"items"`
	ItemCount  int               `json:"itemCount"`
	TotalPrice float64           `json:"totalPrice"`
	Loading    bool              `json:"loading"`
	Source     string            `json:"source"`
	SignedIn   bool              `json:"signedIn"`
}

// BuildCartView picks the authoritative store for display: a non-empty local store wins,
// then the last remote snapshot. Count and total are always derived from the lines.
func BuildCartView(local domain.Cart, remote *domain.Cart, loading bool) CartView {
	src, cart := domain.SourceLocal, local
	if local.Empty() && remote != nil {
		src, cart = domain.SourceRemote, *remote
	}

	items := cart.Clone().Lines
	if items == nil {
		items = []domain.CartLine{}
	}
	return CartView{
		Items:      items,
		ItemCount:  cart.TotalItemCount(),
		TotalPrice: cart.TotalPrice(),
		Loading:    loading && local.Empty() && remote == nil,
		Source:     src,
	}
}

// View returns the current cart without touching the network. Loading is set when an
// authenticated user has no remote read cached yet.
func (e *CartEngine) View(ctx context.Context) CartView {
	id := e.identity(ctx)
	local := e.local.Get(ctx)

	var remote *domain.Cart
	if snap, ok := e.snapshot(id); ok {
		remote = &snap
	}
	v := BuildCartView(local, remote, id.Authenticated())
	v.SignedIn = id.Authenticated()
	return v
}

// Load is View after fetching the remote cart when none is cached. A failed fetch
// yields whatever the local store holds.
func (e *CartEngine) Load(ctx context.Context) CartView {
	id := e.identity(ctx)
	if id.Authenticated() {
		if _, ok := e.snapshot(id); !ok {
			if err := e.Refresh(ctx); err != nil {
				v := BuildCartView(e.local.Get(ctx), nil, false)
				v.SignedIn = e.identity(ctx).Authenticated()
				return v
			}
		}
	}
	return e.View(ctx)
}
