package application

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vn.io.arda/rolesync/internal/domain"
)

type serviceFixture struct {
	repo     *memRepo
	identity *fakeIdentity
	svc      *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	fs := newFs(t, map[string]string{
		"/srv/editors.txt": "alice\n",
		"/srv/admins.txt":  "bob\n",
	})

	repo := newMemRepo()
	repo.seed(t, `{
		"mappings": [
			{"file_path": "/srv/editors.txt", "roles": ["editor"]},
			{"file_path": "/srv/admins.txt", "roles": ["administrator"]}
		],
		"unmapped": ["authenticated"]
	}`)

	identity := &fakeIdentity{
		roles: []string{"authenticated", "editor", "administrator"},
		userRoles: map[string][]string{
			"id-alice": {"authenticated"},
			"id-carol": {"editor", "administrator"},
		},
	}

	store := NewMappingStore(repo, "")
	svc := NewService(store, NewChecker(fs, MatchLine), identity, NewMappingValidator(fs, []string{"offline_access"}))
	return &serviceFixture{repo: repo, identity: identity, svc: svc}
}

func TestSyncUser_GrantsMissingRoles(t *testing.T) {
	f := newServiceFixture(t)

	delta, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-alice", Username: "alice"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"editor"}, delta.ToAdd)
	assert.Empty(t, delta.ToRemove)
	assert.Equal(t, [][]string{{"editor"}}, f.identity.grants)
	assert.Empty(t, f.identity.revokes)
	assert.Equal(t, 1, f.identity.fetches)
}

func TestSyncUser_RevokesStaleRoles(t *testing.T) {
	f := newServiceFixture(t)

	delta, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-carol", Username: "carol"}, nil)
	require.NoError(t, err)

	assert.Empty(t, delta.ToAdd)
	assert.Equal(t, []string{"administrator", "editor"}, delta.ToRemove)
	assert.Empty(t, f.identity.grants)
	assert.Equal(t, [][]string{{"administrator", "editor"}}, f.identity.revokes)
}

func TestSyncUser_UsesRolesFromEvent(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-bob", Username: "bob"}, []string{"authenticated"})
	require.NoError(t, err)

	assert.Zero(t, f.identity.fetches)
	assert.Equal(t, [][]string{{"administrator"}}, f.identity.grants)
}

func TestSyncUser_NoWriteWhenUpToDate(t *testing.T) {
	f := newServiceFixture(t)

	delta, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-alice", Username: "alice"}, []string{"authenticated", "editor"})
	require.NoError(t, err)

	assert.True(t, delta.Empty())
	assert.Empty(t, f.identity.grants)
	assert.Empty(t, f.identity.revokes)
}

func TestSyncUser_MalformedUnmappedSkipsRevocation(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.seed(t, `{
		"mappings": [{"file_path": "/srv/editors.txt", "roles": ["editor"]}],
		"unmapped": "authenticated"
	}`)

	delta, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-alice", Username: "alice"}, []string{"authenticated", "administrator"})
	require.NoError(t, err)

	assert.Equal(t, []string{"editor"}, delta.ToAdd)
	assert.Empty(t, delta.ToRemove)
	assert.Empty(t, f.identity.revokes)
}

func TestSyncUser_GrantFailurePropagates(t *testing.T) {
	f := newServiceFixture(t)
	f.identity.grantErr = errors.New("keycloak down")

	_, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-alice", Username: "alice"}, []string{"authenticated", "administrator"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "keycloak down")
	assert.Empty(t, f.identity.revokes, "revocation must not run after a failed grant")
}

func TestSyncUser_UnknownUser(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SyncUser(context.Background(), domain.User{ID: "id-ghost", Username: "ghost"}, nil)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRoleDeleted_PurgesAndRecomputes(t *testing.T) {
	f := newServiceFixture(t)
	f.identity.roles = []string{"authenticated", "editor", "auditor"} // administrator is gone

	require.NoError(t, f.svc.Handle(context.Background(), Command{Kind: domain.CommandRoleDeleted, RoleID: "administrator"}))

	store := NewMappingStore(f.repo, "")
	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Mapping{
		{FilePath: "/srv/editors.txt", Roles: []string{"editor"}},
		{FilePath: "/srv/admins.txt", Roles: []string{}},
	}, snap.Mappings)
	assert.Equal(t, []string{"authenticated", "auditor"}, snap.Unmapped)
}

func TestRoleCreated_NewRoleIsUnmapped(t *testing.T) {
	f := newServiceFixture(t)
	f.identity.roles = append(f.identity.roles, "auditor")

	require.NoError(t, f.svc.Handle(context.Background(), Command{Kind: domain.CommandRoleCreated, RoleID: "auditor"}))

	unmapped, err := f.svc.UnmappedRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"authenticated", "auditor"}, unmapped)
}

func TestHandle_UnknownKind(t *testing.T) {
	f := newServiceFixture(t)
	assert.Error(t, f.svc.Handle(context.Background(), Command{Kind: "BOGUS"}))
}

func TestUpdateMappings_SavesAndRecomputes(t *testing.T) {
	f := newServiceFixture(t)

	saved, err := f.svc.UpdateMappings(context.Background(), []domain.Mapping{
		{FilePath: "", Roles: nil},
		{FilePath: " /srv/admins.txt ", Roles: []string{"administrator", "editor"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []domain.Mapping{{FilePath: "/srv/admins.txt", Roles: []string{"administrator", "editor"}}}, saved)
	unmapped, err := f.svc.UnmappedRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"authenticated"}, unmapped)
}

func TestUpdateMappings_RejectsInvalidInput(t *testing.T) {
	f := newServiceFixture(t)
	putsBefore := f.repo.puts

	_, err := f.svc.UpdateMappings(context.Background(), []domain.Mapping{
		{FilePath: "/srv/missing.txt", Roles: []string{"editor"}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 1)
	assert.Equal(t, putsBefore, f.repo.puts)
}

func TestUnmappedRoles_EmptyWhenNeverComputed(t *testing.T) {
	svc := NewService(NewMappingStore(newMemRepo(), ""), NewChecker(afero.NewMemMapFs(), MatchLine), &fakeIdentity{}, nil)

	roles, err := svc.UnmappedRoles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{}, roles)
}
