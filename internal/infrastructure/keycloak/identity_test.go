package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/rolesync/internal/domain"
)

type fakeKeycloak struct {
	tokenCalls atomic.Int32
	posted     []roleRepresentation
	deleted    []roleRepresentation
}

func (f *fakeKeycloak) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /realms/master/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rolesync", r.PostForm.Get("client_id"))
		f.tokenCalls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 300})
	})

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("GET /admin/realms/arda/roles", authed(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]roleRepresentation{
			{ID: "r-1", Name: "authenticated"},
			{ID: "r-2", Name: "editor"},
		})
	}))
	mux.HandleFunc("GET /admin/realms/arda/roles/{name}", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "administrator" {
			http.Error(w, `{"error":"Could not find role"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(roleRepresentation{ID: "r-3", Name: "administrator"})
	}))

	mux.HandleFunc("/admin/realms/arda/users/{id}/role-mappings/realm", authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "u-1" {
			http.Error(w, `{"error":"User not found"}`, http.StatusNotFound)
			return
		}
		var body []roleRepresentation
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]roleRepresentation{{ID: "r-1", Name: "authenticated"}})
			return
		case http.MethodPost:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.posted = append(f.posted, body...)
		case http.MethodDelete:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.deleted = append(f.deleted, body...)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

func newTestStore(t *testing.T) (*IdentityStore, *fakeKeycloak) {
	t.Helper()
	kc := &fakeKeycloak{}
	srv := httptest.NewServer(kc.handler(t))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "master", "arda", "rolesync", "secret"), kc
}

func TestListRoles(t *testing.T) {
	s, _ := newTestStore(t)

	roles, err := s.ListRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"authenticated", "editor"}, roles)
}

func TestUserRoles(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	roles, err := s.UserRoles(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"authenticated"}, roles)

	_, err = s.UserRoles(ctx, "u-404")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGrantAndRevokeRoles(t *testing.T) {
	s, kc := newTestStore(t)
	ctx := context.Background()

	_, err := s.ListRoles(ctx)
	require.NoError(t, err)

	require.NoError(t, s.GrantRoles(ctx, "u-1", []string{"editor", "administrator"}))
	require.NoError(t, s.RevokeRoles(ctx, "u-1", []string{"authenticated"}))

	assert.Equal(t, []roleRepresentation{{ID: "r-2", Name: "editor"}, {ID: "r-3", Name: "administrator"}}, kc.posted)
	assert.Equal(t, []roleRepresentation{{ID: "r-1", Name: "authenticated"}}, kc.deleted)
	assert.Equal(t, int32(1), kc.tokenCalls.Load(), "token is reused until it expires")
}

func TestGrantRoles_UnknownRole(t *testing.T) {
	s, kc := newTestStore(t)

	err := s.GrantRoles(context.Background(), "u-1", []string{"ghost"})
	assert.ErrorIs(t, err, domain.ErrRoleNotFound)
	assert.Empty(t, kc.posted)
}

func TestGrantRoles_UnknownUser(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.GrantRoles(context.Background(), "u-404", []string{"administrator"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGrantRoles_EmptyIsNoop(t *testing.T) {
	s, kc := newTestStore(t)

	require.NoError(t, s.GrantRoles(context.Background(), "u-1", nil))
	assert.Zero(t, kc.tokenCalls.Load())
}
