package v1

import (
	"context"
	"errors"
	"net/http"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/usecase"
	"storefront-cart/pkg/logger"
	"storefront-cart/pkg/utils"

	"github.com/goccy/go-json"
)

// CartService is the part of the cart engine the HTTP surface needs.
type CartService interface {
	View(ctx context.Context) usecase.CartView
	Load(ctx context.Context) usecase.CartView
	AddToCart(ctx context.Context, productID string, quantity int, unitPrice float64) error
	UpdateCartItem(ctx context.Context, productID string, quantity int, unitPrice *float64) error
	RemoveFromCart(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}

type CartHandler struct {
	cart            CartService
	maxCartQuantity int
}

func NewCartHandler(cart CartService, maxCartQuantity int) *CartHandler {
	return &CartHandler{
		cart:            cart,
		maxCartQuantity: maxCartQuantity,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.cart.Load(r.Context()))
}

type addToCartReq struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if req.ProductID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Product ID required")
		return
	}
	if req.Quantity <= 0 {
		utils.WriteError(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}
	if req.Quantity > h.maxCartQuantity {
		utils.WriteError(w, http.StatusBadRequest, "Quantity exceeds maximum limit")
		return
	}

	err := h.cart.AddToCart(r.Context(), req.ProductID, req.Quantity, req.UnitPrice)
	h.respond(w, r, "AddToCart", req.ProductID, err)
}

type updateCartReq struct {
	Quantity  *int     `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice"`
}

// UpdateCartItem sets a line's quantity. Zero or less removes the line.
func (h *CartHandler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Product ID required")
		return
	}
	var req updateCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if *req.Quantity > h.maxCartQuantity {
		utils.WriteError(w, http.StatusBadRequest, "Quantity exceeds maximum limit")
		return
	}

	err := h.cart.UpdateCartItem(r.Context(), productID, *req.Quantity, req.UnitPrice)
	h.respond(w, r, "UpdateCartItem", productID, err)
}

func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")
	if productID == "" {
		utils.WriteError(w, http.StatusBadRequest, "Product ID required")
		return
	}
	err := h.cart.RemoveFromCart(r.Context(), productID)
	h.respond(w, r, "RemoveFromCart", productID, err)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	err := h.cart.ClearCart(r.Context())
	h.respond(w, r, "ClearCart", "", err)
}

// respond writes the post-mutation view. Remote failures never reach here; they are
// absorbed by the local fallback.
func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, op, productID string, err error) {
	if err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Str("op", op).Str("product_id", productID).Msg("Cart mutation failed")
		if errors.Is(err, domain.ErrInvalidInput) {
			utils.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.WriteError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	utils.WriteJSON(w, http.StatusOK, h.cart.View(r.Context()))
}
