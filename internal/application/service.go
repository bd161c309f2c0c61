package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"vn.io.arda/rolesync/internal/domain"
	"vn.io.arda/rolesync/internal/metrics"
)

// Service holds all role-sync use-cases.
type Service struct {
	store     *MappingStore
	checker   MembershipChecker
	identity  domain.IdentityStore
	validator *MappingValidator
}

// NewService creates a new application Service.
func NewService(store *MappingStore, checker MembershipChecker, identity domain.IdentityStore, validator *MappingValidator) *Service {
	return &Service{store: store, checker: checker, identity: identity, validator: validator}
}

// Handle executes a command produced by a Kafka handler.
func (s *Service) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Kind {
	case domain.CommandSyncUser:
		_, err := s.SyncUser(ctx, cmd.User, cmd.CurrentRoles)
		return err
	case domain.CommandRoleDeleted:
		return s.RoleDeleted(ctx, cmd.RoleID)
	case domain.CommandRoleCreated:
		_, err := s.RefreshUnmapped(ctx)
		return err
	default:
		return fmt.Errorf("unknown command kind: %q", cmd.Kind)
	}
}

// SyncUser reconciles the user's roles against the usernames files and applies
// the delta: grants first, then revocations. currentRoles nil means "fetch from
// the identity store". An empty delta performs no write.
//
// A failed grant or revoke is returned as is; mutations already applied are kept.
func (s *Service) SyncUser(ctx context.Context, user domain.User, currentRoles []string) (domain.Delta, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("user", user.Username).Str("user_id", user.ID).Logger()

	if currentRoles == nil {
		roles, err := s.identity.UserRoles(ctx, user.ID)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("failed").Inc()
			return domain.Delta{}, fmt.Errorf("fetch roles of %s: %w", user.ID, err)
		}
		currentRoles = roles
	}

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("failed").Inc()
		return domain.Delta{}, err
	}

	delta := Reconcile(user.Username, currentRoles, snap.Mappings, snap.Unmapped, s.checker.IsMember)

	if !snap.UnmappedOK && len(delta.ToRemove) > 0 {
		// Without the unmapped list every unlisted role would look revocable.
		logger.Error().
			Strs("skipped", delta.ToRemove).
			Msg("roles could not be removed: unmapped roles setting is missing or malformed")
		delta.ToRemove = nil
	}

	if delta.Empty() {
		metrics.Reconciliations.WithLabelValues("unchanged").Inc()
		logger.Debug().Msg("roles up to date")
		return delta, nil
	}

	if len(delta.ToAdd) > 0 {
		if err := s.identity.GrantRoles(ctx, user.ID, delta.ToAdd); err != nil {
			metrics.Reconciliations.WithLabelValues("failed").Inc()
			return delta, fmt.Errorf("grant roles %v to %s: %w", delta.ToAdd, user.ID, err)
		}
		metrics.RoleChanges.WithLabelValues("grant").Add(float64(len(delta.ToAdd)))
	}
	if len(delta.ToRemove) > 0 {
		if err := s.identity.RevokeRoles(ctx, user.ID, delta.ToRemove); err != nil {
			metrics.Reconciliations.WithLabelValues("failed").Inc()
			return delta, fmt.Errorf("revoke roles %v from %s: %w", delta.ToRemove, user.ID, err)
		}
		metrics.RoleChanges.WithLabelValues("revoke").Add(float64(len(delta.ToRemove)))
	}

	metrics.Reconciliations.WithLabelValues("applied").Inc()
	logger.Info().
		Strs("to_add", delta.ToAdd).
		Strs("to_remove", delta.ToRemove).
		Msg("user roles reconciled")

	return delta, nil
}

// RoleDeleted purges a deleted role from every mapping, then refreshes the
// unmapped cache.
func (s *Service) RoleDeleted(ctx context.Context, roleID string) error {
	if roleID == "" {
		return fmt.Errorf("role deleted event without role id")
	}
	if err := s.store.RemoveRole(ctx, roleID); err != nil {
		return fmt.Errorf("remove role %s: %w", roleID, err)
	}
	_, err := s.RefreshUnmapped(ctx)
	return err
}

// RefreshUnmapped recomputes the unmapped cache from the identity store's role list.
func (s *Service) RefreshUnmapped(ctx context.Context) ([]string, error) {
	all, err := s.identity.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return s.store.RecomputeUnmapped(ctx, all)
}

// Mappings returns the configured mappings.
func (s *Service) Mappings(ctx context.Context) ([]domain.Mapping, error) {
	return s.store.Load(ctx)
}

// UnmappedRoles returns the cached unmapped roles, or an empty list when the
// cache was never computed.
func (s *Service) UnmappedRoles(ctx context.Context) ([]string, error) {
	roles, _, err := s.store.Unmapped(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

// UpdateMappings validates and replaces the mapping list, then refreshes the
// unmapped cache. It returns the normalized list as stored.
func (s *Service) UpdateMappings(ctx context.Context, mappings []domain.Mapping) ([]domain.Mapping, error) {
	known, err := s.identity.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	if s.validator != nil {
		if err := s.validator.Validate(mappings, known); err != nil {
			return nil, err
		}
	}

	if err := s.store.Save(ctx, mappings); err != nil {
		return nil, err
	}
	if _, err := s.store.RecomputeUnmapped(ctx, known); err != nil {
		return nil, err
	}

	saved, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	log.Info().Int("mappings", len(saved)).Msg("mappings updated")
	return saved, nil
}
