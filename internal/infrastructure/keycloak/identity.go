package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"vn.io.arda/rolesync/internal/domain"
)

// IdentityStore implements domain.IdentityStore on top of the Keycloak Admin
// REST API. Role IDs are Keycloak realm role names.
type IdentityStore struct {
	adminURL     string // e.g. "http://keycloak:8080"
	adminRealm   string // realm used for admin login, usually "master"
	realm        string // realm whose users and roles are managed
	clientID     string
	clientSecret string

	httpClient *http.Client

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
	cacheTTL    time.Duration
	roleCache   map[string]cacheEntry // role name -> representation
}

type cacheEntry struct {
	role      roleRepresentation
	expiresAt time.Time
}

// roleRepresentation is the subset of a Keycloak RoleRepresentation needed for
// role-mapping calls. Keycloak resolves mappings by id, so both fields are sent.
type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// New creates a Keycloak IdentityStore with a 30-second role cache TTL.
func New(adminURL, adminRealm, realm, clientID, clientSecret string) *IdentityStore {
	return &IdentityStore{
		adminURL:     strings.TrimSuffix(adminURL, "/"),
		adminRealm:   adminRealm,
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL:     30 * time.Second,
		roleCache:    make(map[string]cacheEntry),
	}
}

// Realm returns the managed realm name.
func (s *IdentityStore) Realm() string {
	return s.realm
}

// ListRoles returns the names of every realm role.
func (s *IdentityStore) ListRoles(ctx context.Context) ([]string, error) {
	var roles []roleRepresentation
	if err := s.do(ctx, http.MethodGet, s.realmPath("roles"), nil, &roles); err != nil {
		return nil, fmt.Errorf("keycloak list roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		s.toCache(r)
		names = append(names, r.Name)
	}
	return names, nil
}

// UserRoles returns the realm roles directly mapped to the user.
func (s *IdentityStore) UserRoles(ctx context.Context, userID string) ([]string, error) {
	var roles []roleRepresentation
	err := s.do(ctx, http.MethodGet, s.userRolesPath(userID), nil, &roles)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("keycloak user %s: %w", userID, domain.ErrUserNotFound)
		}
		return nil, fmt.Errorf("keycloak user %s role mappings: %w", userID, err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// GrantRoles adds realm role mappings to the user in one call.
func (s *IdentityStore) GrantRoles(ctx context.Context, userID string, roles []string) error {
	return s.mutate(ctx, http.MethodPost, userID, roles)
}

// RevokeRoles removes realm role mappings from the user in one call.
func (s *IdentityStore) RevokeRoles(ctx context.Context, userID string, roles []string) error {
	return s.mutate(ctx, http.MethodDelete, userID, roles)
}

func (s *IdentityStore) mutate(ctx context.Context, method, userID string, roles []string) error {
	if len(roles) == 0 {
		return nil
	}
	reps := make([]roleRepresentation, 0, len(roles))
	for _, name := range roles {
		rep, err := s.role(ctx, name)
		if err != nil {
			return err
		}
		reps = append(reps, rep)
	}

	err := s.do(ctx, method, s.userRolesPath(userID), reps, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return fmt.Errorf("keycloak user %s: %w", userID, domain.ErrUserNotFound)
		}
		return fmt.Errorf("keycloak %s role mappings of %s: %w", method, userID, err)
	}
	return nil
}

// role resolves a role name to its representation, using the cache first.
func (s *IdentityStore) role(ctx context.Context, name string) (roleRepresentation, error) {
	if rep, ok := s.fromCache(name); ok {
		return rep, nil
	}
	var rep roleRepresentation
	err := s.do(ctx, http.MethodGet, s.realmPath("roles", name), nil, &rep)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return rep, fmt.Errorf("keycloak role %s: %w", name, domain.ErrRoleNotFound)
		}
		return rep, fmt.Errorf("keycloak role %s: %w", name, err)
	}
	s.toCache(rep)
	return rep, nil
}

// --- internal helpers ---

// statusError carries an unexpected HTTP status from Keycloak.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("status %d", e.status)
	}
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func isStatus(err error, status int) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == status
}

func (s *IdentityStore) realmPath(segments ...string) string {
	escaped := make([]string, 0, len(segments))
	for _, seg := range segments {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return fmt.Sprintf("%s/admin/realms/%s/%s", s.adminURL, url.PathEscape(s.realm), strings.Join(escaped, "/"))
}

func (s *IdentityStore) userRolesPath(userID string) string {
	return s.realmPath("users", userID, "role-mappings", "realm")
}

// do sends an authorized JSON request. in is encoded as the body when non-nil,
// out is decoded from a 200 response when non-nil.
func (s *IdentityStore) do(ctx context.Context, method, target string, in, out any) error {
	token, err := s.adminToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// adminToken returns a client-credentials access token, reusing it until
// shortly before it expires.
func (s *IdentityStore) adminToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", s.adminURL, url.PathEscape(s.adminRealm))
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {s.clientID},
		"client_secret": {s.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("keycloak admin token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("keycloak admin token: status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("keycloak returned empty access_token")
	}

	// Refresh 10s early; tokens without expires_in are used once.
	ttl := time.Duration(tok.ExpiresIn)*time.Second - 10*time.Second
	s.mu.Lock()
	s.token = tok.AccessToken
	s.tokenExpiry = time.Now().Add(ttl)
	s.mu.Unlock()

	return tok.AccessToken, nil
}

// fromCache retrieves a cached role if not expired.
func (s *IdentityStore) fromCache(name string) (roleRepresentation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.roleCache[name]
	if !ok || time.Now().After(entry.expiresAt) {
		return roleRepresentation{}, false
	}
	return entry.role, true
}

// toCache stores a role with the configured TTL.
func (s *IdentityStore) toCache(rep roleRepresentation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleCache[rep.Name] = cacheEntry{role: rep, expiresAt: time.Now().Add(s.cacheTTL)}
}
