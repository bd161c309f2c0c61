package application

import (
	"context"
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
	"vn.io.arda/rolesync/internal/domain"
)

// memRepo is an in-memory domain.SettingsRepository.
type memRepo struct {
	data map[string]domain.RawSettings
	puts int
}

func newMemRepo() *memRepo {
	return &memRepo{data: map[string]domain.RawSettings{}}
}

func (r *memRepo) Get(_ context.Context, name string) (domain.RawSettings, error) {
	raw, ok := r.data[name]
	if !ok {
		return nil, domain.ErrSettingsNotFound
	}
	out := make(domain.RawSettings, len(raw))
	for k, v := range raw {
		out[k] = slices.Clone(v)
	}
	return out, nil
}

func (r *memRepo) Put(_ context.Context, name string, settings domain.RawSettings) error {
	r.puts++
	r.data[name] = settings
	return nil
}

// seed stores a raw JSON document as the settings object.
func (r *memRepo) seed(t *testing.T, doc string) {
	t.Helper()
	var raw domain.RawSettings
	require.NoError(t, json.Unmarshal([]byte(doc), &raw))
	r.data[domain.SettingsName] = raw
}

// fakeIdentity is an in-memory domain.IdentityStore.
type fakeIdentity struct {
	roles     []string
	userRoles map[string][]string

	grantErr  error
	revokeErr error
	listErr   error

	grants  [][]string
	revokes [][]string
	fetches int
}

func (f *fakeIdentity) ListRoles(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.roles), nil
}

func (f *fakeIdentity) UserRoles(_ context.Context, userID string) ([]string, error) {
	f.fetches++
	roles, ok := f.userRoles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return slices.Clone(roles), nil
}

func (f *fakeIdentity) GrantRoles(_ context.Context, _ string, roles []string) error {
	if f.grantErr != nil {
		return f.grantErr
	}
	f.grants = append(f.grants, roles)
	return nil
}

func (f *fakeIdentity) RevokeRoles(_ context.Context, _ string, roles []string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revokes = append(f.revokes, roles)
	return nil
}

// staticChecker answers membership from a path -> usernames table.
// Paths not in the table are unknown.
type staticChecker map[string][]string

func (s staticChecker) IsMember(identifier, filePath string) domain.Membership {
	users, ok := s[filePath]
	if !ok {
		return domain.MembershipUnknown
	}
	if slices.Contains(users, identifier) {
		return domain.MembershipTrue
	}
	return domain.MembershipFalse
}
