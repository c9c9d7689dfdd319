package credentials

import (
	"context"
	"testing"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/infrastructure/record"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-42",
		"email": "ada@example.com",
		"iat":   now.Add(-time.Minute).Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
}

func TestStore_SaveAndCurrent(t *testing.T) {
	ctx := context.Background()
	s := New(record.NewMemoryStore(), "session", WithClock(func() time.Time { return now }))

	assert.Equal(t, domain.Anonymous, s.Current(ctx))

	id, err := s.Save(ctx, sign(t, "any", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)

	cur := s.Current(ctx)
	assert.True(t, cur.Authenticated())
	assert.Equal(t, "ada@example.com", cur.Email)

	tok, ok := s.Token(ctx)
	assert.True(t, ok)
	assert.NotEmpty(t, tok)

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.Current(ctx).Authenticated())
	_, ok = s.Token(ctx)
	assert.False(t, ok)
}

func TestStore_ExpiredTokenIsAnonymous(t *testing.T) {
	ctx := context.Background()
	clock := now
	s := New(record.NewMemoryStore(), "session", WithClock(func() time.Time { return clock }))

	_, err := s.Save(ctx, sign(t, "k", validClaims()))
	require.NoError(t, err)

	clock = now.Add(2 * time.Hour)
	assert.Equal(t, domain.Anonymous, s.Current(ctx))
}

func TestStore_RejectsUnusableTokens(t *testing.T) {
	ctx := context.Background()
	s := New(record.NewMemoryStore(), "session", WithClock(func() time.Time { return now }))

	_, err := s.Save(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	noSub := validClaims()
	delete(noSub, "sub")
	_, err = s.Save(ctx, sign(t, "k", noSub))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	expired := validClaims()
	expired["exp"] = now.Add(-time.Second).Unix()
	_, err = s.Save(ctx, sign(t, "k", expired))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStore_VerifiesSignatureWhenSecretSet(t *testing.T) {
	ctx := context.Background()
	s := New(record.NewMemoryStore(), "session",
		WithSecret("right"),
		WithClock(func() time.Time { return now }))

	_, err := s.Save(ctx, sign(t, "wrong", validClaims()))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	id, err := s.Save(ctx, sign(t, "right", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-42", id.UserID)
}

func TestStore_CorruptRecordIsAnonymous(t *testing.T) {
	ctx := context.Background()
	records := record.NewMemoryStore()
	require.NoError(t, records.Save(ctx, "session", []byte("{oops")))

	s := New(records, "session")
	assert.Equal(t, domain.Anonymous, s.Current(ctx))
}
