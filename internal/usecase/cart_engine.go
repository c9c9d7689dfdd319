package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"
)

// CartEngine presents one logical cart whichever store backs it. Anonymous visitors
// write to the local store; authenticated users write to the remote cart and fall back
// to the local store whenever the remote fails, so a user action is never dropped.
type CartEngine struct {
	local       domain.LocalCartStore
	remote      domain.RemoteCartClient
	credentials domain.CredentialStore
	snapshots   domain.SnapshotCache
	events      domain.Publisher
	cooldown    time.Duration
	now         func() time.Time

	mu            sync.Mutex
	degradedAt    time.Time // update cooldown marker, zero when healthy
	lastIdentity  domain.Identity
	identityKnown bool
	refreshGen    uint64
	storedGen     uint64

	mergeMu sync.Mutex
}

type EngineOption func(*CartEngine)

// WithCooldown sets how long update attempts bypass a remote that just failed.
func WithCooldown(d time.Duration) EngineOption {
	return func(e *CartEngine) { e.cooldown = d }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *CartEngine) { e.now = now }
}

func NewCartEngine(
	local domain.LocalCartStore,
	remote domain.RemoteCartClient,
	credentials domain.CredentialStore,
	snapshots domain.SnapshotCache,
	events domain.Publisher,
	opts ...EngineOption,
) *CartEngine {
	e := &CartEngine{
		local:       local,
		remote:      remote,
		credentials: credentials,
		snapshots:   snapshots,
		events:      events,
		cooldown:    domain.DefaultUpdateCooldown,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func snapshotKey(id domain.Identity) string {
	return "remote-cart:" + id.UserID
}

func (e *CartEngine) publish(ev domain.Event) {
	if e.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	e.events.Publish(ev)
}

// identity reads the current identity. The first observation becomes the baseline for
// transition detection, and seeing Anonymous is always recorded so a later sign-in of
// the same user (e.g. after the token expired) still counts as a transition.
// Authenticated observations are left for SyncIdentity to record.
func (e *CartEngine) identity(ctx context.Context) domain.Identity {
	id := e.credentials.Current(ctx)
	e.mu.Lock()
	if !e.identityKnown || !id.Authenticated() {
		e.lastIdentity = id
		e.identityKnown = true
	}
	e.mu.Unlock()
	return id
}

// --- Mutations ---

// AddToCart adds quantity of productID. unitPrice is the caller's current price and is
// only used for local totals.
func (e *CartEngine) AddToCart(ctx context.Context, productID string, quantity int, unitPrice float64) error {
	if productID == "" || quantity < 1 || unitPrice < 0 {
		return fmt.Errorf("%w: add %q x%d", domain.ErrInvalidInput, productID, quantity)
	}
	return e.mutate(ctx, e.identity(ctx), "add",
		func(ctx context.Context) error {
			_, err := e.remote.AddItem(ctx, productID, quantity)
			return err
		},
		func(ctx context.Context) error {
			return e.local.Add(ctx, productID, quantity, unitPrice)
		},
		nil,
	)
}

// UpdateCartItem sets the quantity of productID; quantity <= 0 removes the line.
// After a failed remote update, further updates go straight to the local store
// until the cooldown expires.
func (e *CartEngine) UpdateCartItem(ctx context.Context, productID string, quantity int, unitPrice *float64) error {
	if productID == "" || (unitPrice != nil && *unitPrice < 0) {
		return fmt.Errorf("%w: update %q", domain.ErrInvalidInput, productID)
	}
	id := e.identity(ctx)
	// resolved up front: a rejected session discards the snapshot before the fallback runs
	price := e.bestKnownPrice(id, productID, unitPrice)

	localUpdate := func(ctx context.Context) error {
		return e.local.SetQuantity(ctx, productID, quantity, price)
	}
	// A line held only remotely must leave the display too.
	patchRemoval := func() {
		if quantity <= 0 {
			e.patchSnapshot(id, func(c domain.Cart) domain.Cart { return c.Without(productID) })
		}
	}

	if id.Authenticated() && e.degraded() {
		logger.WithContext(ctx).Debug().Str("product_id", productID).Msg("Remote cart degraded, update served locally")
		patchRemoval()
		return localUpdate(ctx)
	}

	return e.mutate(ctx, id, "update",
		func(ctx context.Context) error {
			lineID := e.lineID(id, productID)
			var err error
			if quantity <= 0 {
				err = e.remote.RemoveItem(ctx, lineID)
			} else {
				_, err = e.remote.UpdateItem(ctx, lineID, quantity)
			}
			if err == nil {
				e.clearDegraded()
			}
			return err
		},
		localUpdate,
		func(kind error) {
			if kind == domain.ErrServerUnavailable || kind == domain.ErrValidation {
				e.markDegraded()
			}
			patchRemoval()
		},
	)
}

func (e *CartEngine) RemoveFromCart(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: empty product id", domain.ErrInvalidInput)
	}
	id := e.identity(ctx)
	return e.mutate(ctx, id, "remove",
		func(ctx context.Context) error {
			return e.remote.RemoveItem(ctx, e.lineID(id, productID))
		},
		func(ctx context.Context) error {
			return e.local.Remove(ctx, productID)
		},
		func(error) {
			e.patchSnapshot(id, func(c domain.Cart) domain.Cart { return c.Without(productID) })
		},
	)
}

func (e *CartEngine) ClearCart(ctx context.Context) error {
	id := e.identity(ctx)
	return e.mutate(ctx, id, "clear",
		e.remote.Clear,
		e.local.Clear,
		func(error) {
			e.patchSnapshot(id, func(domain.Cart) domain.Cart { return domain.Cart{} })
		},
	)
}

// mutate runs one logical mutation: local only when anonymous, otherwise remote with a
// local fallback. onFallback runs before the local write with the classified error.
func (e *CartEngine) mutate(
	ctx context.Context,
	id domain.Identity,
	op string,
	remoteOp func(context.Context) error,
	localOp func(context.Context) error,
	onFallback func(kind error),
) error {
	if !id.Authenticated() {
		return localOp(ctx)
	}

	err := remoteOp(ctx)
	if err == nil {
		e.refreshAfterWrite(ctx, id)
		return nil
	}

	kind := domain.KindOf(err)
	logger.Fallback(ctx, op, err)
	if kind == domain.ErrUnauthenticated {
		e.dropCredentials(ctx, id)
	}
	if onFallback != nil {
		onFallback(kind)
	}
	if lerr := localOp(ctx); lerr != nil {
		return fmt.Errorf("%s fallback: %w", op, lerr)
	}
	return nil
}

// refreshAfterWrite refetches the remote cart so reads are not stale, then publishes the
// single notification for the remote mutation. The mutation response itself is never
// used as the snapshot; only a full read is.
func (e *CartEngine) refreshAfterWrite(ctx context.Context, id domain.Identity) {
	if err := e.refresh(ctx, id); err != nil {
		logger.WithContext(ctx).Warn().Err(err).Msg("Remote cart refetch after write failed, keeping previous snapshot")
	}
	e.publish(domain.Event{Kind: domain.EventCartChanged, Source: domain.SourceRemote})
}

// dropCredentials handles a rejected session: the stored credential is cleared and the
// cached remote read discarded, leaving the visitor anonymous.
func (e *CartEngine) dropCredentials(ctx context.Context, id domain.Identity) {
	if err := e.credentials.Clear(ctx); err != nil {
		logger.WithContext(ctx).Error().Err(err).Msg("Failed to clear rejected credentials")
	}
	e.snapshots.Delete(snapshotKey(id))

	e.mu.Lock()
	e.lastIdentity = domain.Anonymous
	e.identityKnown = true
	e.mu.Unlock()

	e.publish(domain.Event{Kind: domain.EventIdentityChanged, Message: "Session expired"})
}

// --- Cooldown marker ---

func (e *CartEngine) markDegraded() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.degradedAt = e.now()
}

func (e *CartEngine) clearDegraded() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.degradedAt = time.Time{}
}

// degraded reports whether the marker is still fresh; an expired marker is reset.
func (e *CartEngine) degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.degradedAt.IsZero() {
		return false
	}
	if e.now().Sub(e.degradedAt) < e.cooldown {
		return true
	}
	e.degradedAt = time.Time{}
	return false
}

// --- Remote snapshot ---

// Refresh invalidates-then-refetches the cached remote cart. On failure the previous
// snapshot stays in place so counts never drop to zero while a read is pending.
func (e *CartEngine) Refresh(ctx context.Context) error {
	id := e.identity(ctx)
	if !id.Authenticated() {
		return nil
	}
	err := e.refresh(ctx, id)
	if errors.Is(err, domain.ErrUnauthenticated) {
		e.dropCredentials(ctx, id)
	}
	return err
}

func (e *CartEngine) refresh(ctx context.Context, id domain.Identity) error {
	e.mu.Lock()
	e.refreshGen++
	gen := e.refreshGen
	e.mu.Unlock()

	cart, err := e.remote.GetCart(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// A read that started later has already landed; this one is older state.
	if gen < e.storedGen {
		return nil
	}
	e.storedGen = gen
	e.snapshots.Set(snapshotKey(id), cart)
	return nil
}

func (e *CartEngine) snapshot(id domain.Identity) (domain.Cart, bool) {
	if !id.Authenticated() {
		return domain.Cart{}, false
	}
	return e.snapshots.Get(snapshotKey(id))
}

func (e *CartEngine) patchSnapshot(id domain.Identity, fn func(domain.Cart) domain.Cart) {
	if !id.Authenticated() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.snapshots.Get(snapshotKey(id)); ok {
		e.snapshots.Set(snapshotKey(id), fn(c))
	}
}

// lineID resolves the remote line handle for productID. The remote keys lines by
// product, so the product id is used when the snapshot has no better handle.
func (e *CartEngine) lineID(id domain.Identity, productID string) string {
	if c, ok := e.snapshot(id); ok {
		if i := c.Find(productID); i >= 0 && c.Lines[i].LineID != "" {
			return c.Lines[i].LineID
		}
	}
	return productID
}

// bestKnownPrice prefers the caller's price, then the last remote read.
func (e *CartEngine) bestKnownPrice(id domain.Identity, productID string, explicit *float64) *float64 {
	if explicit != nil {
		return explicit
	}
	if c, ok := e.snapshot(id); ok {
		if i := c.Find(productID); i >= 0 {
			p := c.Lines[i].UnitPrice
			return &p
		}
	}
	return nil
}
