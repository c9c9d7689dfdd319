package domain

import (
	"context"
	"time"
)

// Identity is either anonymous or an authenticated user reference.
type Identity struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

var Anonymous = Identity{}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

func (i Identity) String() string {
	if !i.Authenticated() {
		return "anonymous"
	}
	return "user:" + i.UserID
}

// Session is the persisted bearer credential.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// IdentitySource reports who is currently signed in.
type IdentitySource interface {
	Current(ctx context.Context) Identity
}

// CredentialStore holds the bearer credential. Clear is called when the remote rejects it.
type CredentialStore interface {
	IdentitySource
	Token(ctx context.Context) (string, bool)
	Save(ctx context.Context, accessToken string) (Identity, error)
	Clear(ctx context.Context) error
}
