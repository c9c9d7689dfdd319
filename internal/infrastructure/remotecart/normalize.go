package remotecart

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"storefront-cart/internal/domain"

	"github.com/goccy/go-json"
)

// This file is the only place remote schema drift is absorbed. Everything past
// decodeCart/decodeLine deals in validated domain.CartLine values.

// flexNumber accepts 3, 3.5 or "3.5".
type flexNumber struct {
	v   float64
	set bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			// unparseable strings are treated as absent
			return nil
		}
		n.v, n.set = f, true
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	n.v, n.set = f, true
	return nil
}

type remoteProduct struct {
	ID        string     `json:"id"`
	Price     flexNumber `json:"price"`
	SalePrice flexNumber `json:"salePrice"`
	BasePrice flexNumber `json:"basePrice"`
}

type remoteLine struct {
	ID        string         `json:"id"`
	LineID    string         `json:"lineId"`
	ProductID string         `json:"productId"`
	Product   *remoteProduct `json:"product"`
	Quantity  flexNumber     `json:"quantity"`
	UnitPrice flexNumber     `json:"unitPrice"`
	SalePrice flexNumber     `json:"salePrice"`
	Price     flexNumber     `json:"price"`
	AddedAt   *time.Time     `json:"addedAt"`
	CreatedAt *time.Time     `json:"createdAt"`
}

type remoteCart struct {
	Data  json.RawMessage `json:"data"`
	Items []remoteLine    `json:"items"`
	Lines []remoteLine    `json:"lines"`
}

func firstSet(nums ...flexNumber) float64 {
	for _, n := range nums {
		if n.set && n.v > 0 {
			return n.v
		}
	}
	return 0
}

// toCartLine maps one remote line, reporting false when it cannot be trusted.
func (r remoteLine) toCartLine() (domain.CartLine, bool) {
	l := domain.CartLine{
		ProductID: r.ProductID,
		LineID:    r.LineID,
	}
	if l.LineID == "" {
		l.LineID = r.ID
	}

	var product remoteProduct
	if r.Product != nil {
		product = *r.Product
		if l.ProductID == "" {
			l.ProductID = product.ID
		}
	}

	if !r.Quantity.set || r.Quantity.v != float64(int(r.Quantity.v)) {
		return domain.CartLine{}, false
	}
	l.Quantity = int(r.Quantity.v)
	l.UnitPrice = firstSet(r.UnitPrice, r.SalePrice, r.Price, product.SalePrice, product.Price, product.BasePrice)

	switch {
	case r.AddedAt != nil:
		l.AddedAt = *r.AddedAt
	case r.CreatedAt != nil:
		l.AddedAt = *r.CreatedAt
	}

	return l, l.Valid()
}

func normalizeLines(in []remoteLine) domain.Cart {
	cart := domain.Cart{Lines: make([]domain.CartLine, 0, len(in))}
	for _, r := range in {
		l, ok := r.toCartLine()
		if !ok {
			continue
		}
		if i := cart.Find(l.ProductID); i >= 0 {
			cart.Lines[i].Quantity += l.Quantity
			continue
		}
		cart.Lines = append(cart.Lines, l)
	}
	return cart
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}

// decodeCart accepts a bare cart, a {"data": cart} envelope or a bare line array.
func decodeCart(raw []byte) (domain.Cart, error) {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return domain.Cart{}, nil
	}
	if raw[0] == '[' {
		var lines []remoteLine
		if err := json.Unmarshal(raw, &lines); err != nil {
			return domain.Cart{}, err
		}
		return normalizeLines(lines), nil
	}

	var rc remoteCart
	if err := json.Unmarshal(raw, &rc); err != nil {
		return domain.Cart{}, err
	}
	if !isNull(rc.Data) {
		return decodeCart(rc.Data)
	}
	return normalizeLines(append(rc.Items, rc.Lines...)), nil
}

// decodeLine picks the affected line out of whatever the remote answered with: the
// line itself, an envelope, or the whole cart. A body it cannot use yields fallback.
func decodeLine(raw []byte, fallback domain.CartLine) domain.CartLine {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return fallback
	}

	if cart, err := decodeCart(raw); err == nil {
		for _, l := range cart.Lines {
			if (fallback.LineID != "" && l.LineID == fallback.LineID) || l.ProductID == fallback.ProductID {
				return l
			}
		}
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && !isNull(env.Data) {
		raw = env.Data
	}
	var r remoteLine
	if err := json.Unmarshal(raw, &r); err == nil {
		if l, ok := r.toCartLine(); ok {
			return l
		}
	}
	return fallback
}

// errorMessage extracts a human message from an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
