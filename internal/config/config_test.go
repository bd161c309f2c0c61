package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Settings.Backend)
	assert.Equal(t, "permissions_from_file.settings", cfg.Settings.Name)
	assert.Equal(t, "line", cfg.Membership.Match)
	assert.Equal(t, 30*time.Second, cfg.Auth.Leeway)
	assert.Equal(t, []string{"offline_access", "uma_authorization", "default-roles-arda"}, cfg.Membership.ReservedRoles)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KEYCLOAK_REALM", "acme")
	t.Setenv("ARDA_ROLESYNC_SETTINGS_BACKEND", "file")
	t.Setenv("ARDA_ROLESYNC_SERVER_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.Keycloak.Realm)
	assert.Equal(t, "file", cfg.Settings.Backend)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Contains(t, cfg.Membership.ReservedRoles, "default-roles-acme")
}

func TestKeycloakURLs(t *testing.T) {
	k := KeycloakConfig{BaseURL: "http://keycloak:8080/", Realm: "arda"}

	assert.Equal(t, "http://keycloak:8080/realms/arda", k.Issuer())
	assert.Equal(t, "http://keycloak:8080/realms/arda/protocol/openid-connect/certs", k.JWKSURL())
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "rs", User: "u", Password: "p"}
	assert.Equal(t, "host=db port=5432 dbname=rs user=u password=p sslmode=disable", d.DSN())
}
