package remotecart

import (
	"testing"

	"storefront-cart/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCart_Shapes(t *testing.T) {
	cases := map[string]string{
		"bare":     `{"items":[{"productId":"p1","quantity":1,"unitPrice":3}]}`,
		"envelope": `{"success":true,"data":{"items":[{"productId":"p1","quantity":1,"unitPrice":3}]}}`,
		"array":    `[{"productId":"p1","quantity":1,"unitPrice":3}]`,
		"lines":    `{"lines":[{"product":{"id":"p1","price":"3"},"quantity":1}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			cart, err := decodeCart([]byte(raw))
			require.NoError(t, err)
			require.Len(t, cart.Lines, 1)
			assert.Equal(t, "p1", cart.Lines[0].ProductID)
			assert.Equal(t, 3.0, cart.Lines[0].UnitPrice)
		})
	}
}

func TestDecodeCart_DropsUntrustedLines(t *testing.T) {
	raw := `{"items":[
		{"productId":"ok","quantity":2,"price":1},
		{"productId":"zero","quantity":0,"price":1},
		{"productId":"neg","quantity":-1,"price":1},
		{"productId":"frac","quantity":1.5,"price":1},
		{"quantity":1,"price":1},
		{"productId":"noqty","price":1},
		{"productId":"ok","quantity":1,"price":1}
	]}`
	cart, err := decodeCart([]byte(raw))
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
}

func TestDecodeCart_EmptyBodies(t *testing.T) {
	for _, raw := range []string{``, `null`, `{"data":null}`, `{}`} {
		cart, err := decodeCart([]byte(raw))
		require.NoError(t, err, raw)
		assert.True(t, cart.Empty(), raw)
	}
}

func TestDecodeLine_FallsBack(t *testing.T) {
	fallback := domain.CartLine{ProductID: "p1", Quantity: 2}
	assert.Equal(t, fallback, decodeLine(nil, fallback))
	assert.Equal(t, fallback, decodeLine([]byte(`{"message":"ok"}`), fallback))

	got := decodeLine([]byte(`{"id":"li-3","productId":"p1","quantity":2,"salePrice":8}`), fallback)
	assert.Equal(t, "li-3", got.LineID)
	assert.Equal(t, 8.0, got.UnitPrice)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "worse", errorMessage([]byte(`{"message":"worse"}`)))
	assert.Equal(t, "Unauthorized: Invalid token", errorMessage([]byte("Unauthorized: Invalid token\n")))
}
