package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"storefront-cart/internal/domain"
)

// fakeRemote is an in-memory remote cart. Lines get LineID "line-<productId>".
type fakeRemote struct {
	mu           sync.Mutex
	cart         domain.Cart
	prices       map[string]float64
	failAll      error
	failProducts map[string]error
	calls        map[string]int
	onGet        func(n int) // runs after GetCart has read the cart, with its 1-based call number
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		prices:       map[string]float64{},
		failProducts: map[string]error{},
		calls:        map[string]int{},
	}
}

func remoteErr(op string, kind error) error {
	return &domain.RemoteError{Op: op, Kind: kind, Err: kind}
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) mutations() int {
	return f.count("add") + f.count("update") + f.count("remove") + f.count("clear")
}

func (f *fakeRemote) fail(op, productID string) error {
	f.calls[op]++
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failProducts[productID]; ok {
		return err
	}
	return nil
}

func (f *fakeRemote) seed(lines ...domain.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		if l.LineID == "" {
			l.LineID = "line-" + l.ProductID
		}
		f.cart.Lines = append(f.cart.Lines, l)
	}
}

func (f *fakeRemote) setFailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

func (f *fakeRemote) snapshot() domain.Cart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone()
}

func (f *fakeRemote) GetCart(ctx context.Context) (domain.Cart, error) {
	f.mu.Lock()
	f.calls["get"]++
	n := f.calls["get"]
	hook := f.onGet
	err := f.failAll
	cart := f.cart.Clone()
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (f *fakeRemote) AddItem(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("add", productID); err != nil {
		return domain.CartLine{}, err
	}
	if i := f.cart.Find(productID); i >= 0 {
		f.cart.Lines[i].Quantity += quantity
		return f.cart.Lines[i], nil
	}
	l := domain.CartLine{ProductID: productID, LineID: "line-" + productID, Quantity: quantity, UnitPrice: f.prices[productID]}
	f.cart.Lines = append(f.cart.Lines, l)
	return l, nil
}

func (f *fakeRemote) UpdateItem(ctx context.Context, lineID string, quantity int) (domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	productID := strings.TrimPrefix(lineID, "line-")
	if err := f.fail("update", productID); err != nil {
		return domain.CartLine{}, err
	}
	i := f.cart.Find(productID)
	if i < 0 {
		return domain.CartLine{}, remoteErr("update", domain.ErrValidation)
	}
	f.cart.Lines[i].Quantity = quantity
	return f.cart.Lines[i], nil
}

func (f *fakeRemote) RemoveItem(ctx context.Context, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	productID := strings.TrimPrefix(lineID, "line-")
	if err := f.fail("remove", productID); err != nil {
		return err
	}
	f.cart = f.cart.Without(productID)
	return nil
}

func (f *fakeRemote) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("clear", ""); err != nil {
		return err
	}
	f.cart = domain.Cart{}
	return nil
}

// fakeCredentials treats any non-empty token as the user id it names.
type fakeCredentials struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (c *fakeCredentials) Current(context.Context) domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		return domain.Anonymous
	}
	return domain.Identity{UserID: c.token}
}

func (c *fakeCredentials) Token(context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != ""
}

func (c *fakeCredentials) Save(_ context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Anonymous, domain.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return domain.Identity{UserID: token}, nil
}

func (c *fakeCredentials) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.cleared++
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Publish(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind+"/"+e.Source)
	}
	return out
}

func (r *recorder) last(kind string) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
