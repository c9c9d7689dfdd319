// Package remotecart talks to the server-held cart over HTTP. It maps responses onto
// the domain error taxonomy and never retries or falls back on its own.
package remotecart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 1 << 20

// TokenSource supplies the bearer credential for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Client implements domain.RemoteCartClient against
//
//	GET    {base}               current cart
//	POST   {base}/items         add line
//	PUT    {base}/items/{line}  set line quantity
//	DELETE {base}/items/{line}  remove line
//	DELETE {base}               clear cart
type Client struct {
	base       string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outbound calls; rps <= 0 disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a remote cart client. apiURL is the API origin and cartPath the
// cart resource path, e.g. "https://shop.example" and "/api/v1/cart".
func NewClient(apiURL, cartPath string, tokens TokenSource, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(apiURL, "/") + "/" + strings.Trim(cartPath, "/"),
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type addItemReq struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	body, err := c.do(ctx, "get", http.MethodGet, "", nil)
	if err != nil {
		return domain.Cart{}, err
	}
	cart, err := decodeCart(body)
	if err != nil {
		return domain.Cart{}, &domain.RemoteError{Op: "get", Kind: domain.ErrServerUnavailable, Err: fmt.Errorf("decode cart: %w", err)}
	}
	return cart, nil
}

func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (domain.CartLine, error) {
	body, err := c.do(ctx, "add", http.MethodPost, "/items", addItemReq{ProductID: productID, Quantity: quantity})
	if err != nil {
		return domain.CartLine{}, err
	}
	return decodeLine(body, domain.CartLine{ProductID: productID, Quantity: quantity}), nil
}

func (c *Client) UpdateItem(ctx context.Context, lineID string, quantity int) (domain.CartLine, error) {
	body, err := c.do(ctx, "update", http.MethodPut, "/items/"+url.PathEscape(lineID), updateItemReq{Quantity: quantity})
	if err != nil {
		return domain.CartLine{}, err
	}
	return decodeLine(body, domain.CartLine{LineID: lineID, ProductID: lineID, Quantity: quantity}), nil
}

func (c *Client) RemoveItem(ctx context.Context, lineID string) error {
	_, err := c.do(ctx, "remove", http.MethodDelete, "/items/"+url.PathEscape(lineID), nil)
	return err
}

func (c *Client) Clear(ctx context.Context) error {
	_, err := c.do(ctx, "clear", http.MethodDelete, "", nil)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, payload interface{}) ([]byte, error) {
	start := time.Now()
	status := 0
	body, err := c.roundTrip(ctx, op, method, path, payload, &status)
	logger.RemoteCall(ctx, op, status, time.Since(start), err)
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload interface{}, status *int) ([]byte, error) {
	token, ok := c.tokens.Token(ctx)
	if !ok || token == "" {
		return nil, &domain.RemoteError{Op: op, Kind: domain.ErrUnauthenticated, Err: errors.New("no credentials")}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.RemoteError{Op: op, Kind: domain.ErrServerUnavailable, Err: fmt.Errorf("rate limit wait: %w", err)}
		}
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &domain.RemoteError{Op: op, Kind: domain.ErrValidation, Err: fmt.Errorf("encode request: %w", err)}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Kind: domain.ErrValidation, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// network failure, timeout or cancellation
		return nil, &domain.RemoteError{Op: op, Kind: domain.ErrServerUnavailable, Err: err}
	}
	defer resp.Body.Close()
	*status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.RemoteError{Op: op, Status: resp.StatusCode, Kind: domain.ErrServerUnavailable, Err: fmt.Errorf("read body: %w", err)}
	}

	if kind := classify(resp.StatusCode); kind != nil {
		return nil, &domain.RemoteError{Op: op, Status: resp.StatusCode, Kind: kind, Err: errors.New(errorMessage(body))}
	}
	return body, nil
}

// classify maps an HTTP status onto the remote error taxonomy; nil means success.
func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrUnauthenticated
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return domain.ErrServerUnavailable
	case status >= 400 && status < 500:
		return domain.ErrValidation
	default:
		return domain.ErrServerUnavailable
	}
}
