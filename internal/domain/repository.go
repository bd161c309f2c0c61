package domain

import (
	"context"
	"encoding/json"
)

// RawSettings is the undecoded settings object: top-level keys mapped to their
// raw JSON values. Decoding is left to the caller so a malformed field can be
// recovered without losing the others.
type RawSettings map[string]json.RawMessage

// SettingsRepository defines the port for settings persistence.
// Implementations live in infrastructure/postgres and infrastructure/filestore.
type SettingsRepository interface {
	// Get returns the settings object stored under name.
	// Returns ErrSettingsNotFound when nothing was stored yet.
	Get(ctx context.Context, name string) (RawSettings, error)

	// Put replaces the whole settings object stored under name.
	Put(ctx context.Context, name string, settings RawSettings) error
}

// IdentityStore defines the port to the external user/role store.
// The default implementation calls the Keycloak Admin REST API.
type IdentityStore interface {
	// ListRoles returns the IDs of every role known to the system.
	ListRoles(ctx context.Context) ([]string, error)

	// UserRoles returns the role IDs currently granted to the user.
	UserRoles(ctx context.Context, userID string) ([]string, error)

	// GrantRoles adds roles to the user.
	GrantRoles(ctx context.Context, userID string, roles []string) error

	// RevokeRoles removes roles from the user.
	RevokeRoles(ctx context.Context, userID string, roles []string) error
}
