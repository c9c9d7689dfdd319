package domain

import "time"

// Event kinds
const (
	EventCartChanged     = "cart.changed"
	EventCartMerged      = "cart.merged"
	EventIdentityChanged = "identity.changed"
)

// Cart sources
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Local store backends
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Record keys
const (
	DefaultCartKey        = "storefront.cart"
	DefaultCredentialsKey = "storefront.session"
)

// DefaultUpdateCooldown is how long update attempts skip the remote after it failed.
const DefaultUpdateCooldown = 30 * time.Second

// LocalStores lists the accepted LOCAL_STORE values.
var LocalStores = []string{
	StoreMemory,
	StoreFile,
	StorePostgres,
}
