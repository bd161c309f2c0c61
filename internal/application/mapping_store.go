package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog/log"
	"vn.io.arda/rolesync/internal/domain"
)

const (
	keyMappings = "mappings"
	keyUnmapped = "unmapped"
)

// MappingStore reads and writes the mapping settings object.
// Every write replaces the whole object; unrelated keys are carried over untouched.
type MappingStore struct {
	repo domain.SettingsRepository
	name string
}

// Snapshot is a consistent view of the settings used for one reconciliation.
type Snapshot struct {
	Mappings []domain.Mapping
	Unmapped []string
	// UnmappedOK is false when the unmapped cache is missing or malformed.
	UnmappedOK bool
}

// NewMappingStore creates a MappingStore persisting under the given settings name.
func NewMappingStore(repo domain.SettingsRepository, name string) *MappingStore {
	if name == "" {
		name = domain.SettingsName
	}
	return &MappingStore{repo: repo, name: name}
}

// Load returns the persisted mappings, or an empty list if none are configured.
func (s *MappingStore) Load(ctx context.Context) ([]domain.Mapping, error) {
	raw, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	mappings, _ := decodeMappings(raw[keyMappings])
	return mappings, nil
}

// Snapshot loads mappings and the unmapped cache with a single read.
func (s *MappingStore) Snapshot(ctx context.Context) (Snapshot, error) {
	raw, err := s.read(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	mappings, _ := decodeMappings(raw[keyMappings])
	unmapped, ok := decodeUnmapped(raw[keyUnmapped])
	return Snapshot{Mappings: mappings, Unmapped: unmapped, UnmappedOK: ok}, nil
}

// Unmapped returns the cached unmapped roles. ok is false when the cache
// was never computed or is malformed.
func (s *MappingStore) Unmapped(ctx context.Context) (roles []string, ok bool, err error) {
	raw, err := s.read(ctx)
	if err != nil {
		return nil, false, err
	}
	roles, ok = decodeUnmapped(raw[keyUnmapped])
	return roles, ok, nil
}

// Save normalizes the mappings and persists them, replacing the previous list.
// Callers must run RecomputeUnmapped afterwards.
func (s *MappingStore) Save(ctx context.Context, mappings []domain.Mapping) error {
	raw, err := s.read(ctx)
	if err != nil {
		return err
	}
	if err := setKey(raw, keyMappings, NormalizeMappings(mappings)); err != nil {
		return err
	}
	return s.write(ctx, raw)
}

// RecomputeUnmapped stores allRoleIDs minus every role referenced by a mapping
// and returns the stored list. Input order is preserved.
func (s *MappingStore) RecomputeUnmapped(ctx context.Context, allRoleIDs []string) ([]string, error) {
	raw, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	mappings, _ := decodeMappings(raw[keyMappings])
	unmapped := unmappedRoles(allRoleIDs, mappings)

	if err := setKey(raw, keyUnmapped, unmapped); err != nil {
		return nil, err
	}
	if err := s.write(ctx, raw); err != nil {
		return nil, err
	}
	log.Info().Int("mappings", len(mappings)).Strs("unmapped", unmapped).Msg("unmapped roles recomputed")
	return unmapped, nil
}

// RemoveRole drops roleID from every mapping. Rows left without roles are kept.
// Does not recompute the unmapped cache.
func (s *MappingStore) RemoveRole(ctx context.Context, roleID string) error {
	raw, err := s.read(ctx)
	if err != nil {
		return err
	}
	mappings, ok := decodeMappings(raw[keyMappings])
	if !ok {
		// Nothing sane to rewrite.
		return nil
	}

	for i := range mappings {
		kept := mappings[i].Roles[:0]
		for _, r := range mappings[i].Roles {
			if r != roleID {
				kept = append(kept, r)
			}
		}
		mappings[i].Roles = kept
	}

	if err := setKey(raw, keyMappings, mappings); err != nil {
		return err
	}
	if err := s.write(ctx, raw); err != nil {
		return err
	}
	log.Info().Str("role", roleID).Msg("role removed from mappings")
	return nil
}

// NormalizeMappings trims paths, drops rows with neither path nor roles and
// removes duplicate or blank role IDs, keeping the first occurrence.
func NormalizeMappings(mappings []domain.Mapping) []domain.Mapping {
	out := make([]domain.Mapping, 0, len(mappings))
	for _, m := range mappings {
		path := strings.TrimSpace(m.FilePath)
		seen := mapset.NewThreadUnsafeSet[string]()
		roles := make([]string, 0, len(m.Roles))
		for _, r := range m.Roles {
			r = strings.TrimSpace(r)
			if r == "" || !seen.Add(r) {
				continue
			}
			roles = append(roles, r)
		}
		if path == "" && len(roles) == 0 {
			continue
		}
		out = append(out, domain.Mapping{FilePath: path, Roles: roles})
	}
	return out
}

func unmappedRoles(allRoleIDs []string, mappings []domain.Mapping) []string {
	mapped := mapset.NewThreadUnsafeSet[string]()
	for _, m := range mappings {
		mapped.Append(m.Roles...)
	}

	seen := mapset.NewThreadUnsafeSet[string]()
	unmapped := make([]string, 0, len(allRoleIDs))
	for _, id := range allRoleIDs {
		if mapped.Contains(id) || !seen.Add(id) {
			continue
		}
		unmapped = append(unmapped, id)
	}
	return unmapped
}

// --- persistence helpers ---

func (s *MappingStore) read(ctx context.Context) (domain.RawSettings, error) {
	raw, err := s.repo.Get(ctx, s.name)
	if errors.Is(err, domain.ErrSettingsNotFound) {
		return domain.RawSettings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", s.name, err)
	}
	if raw == nil {
		raw = domain.RawSettings{}
	}
	return raw, nil
}

func (s *MappingStore) write(ctx context.Context, raw domain.RawSettings) error {
	if err := s.repo.Put(ctx, s.name, raw); err != nil {
		return fmt.Errorf("save settings %s: %w", s.name, err)
	}
	return nil
}

func setKey(raw domain.RawSettings, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	raw[key] = b
	return nil
}

// decodeMappings tolerates malformed values: a non-list yields an empty result
// with ok=false, and rows lacking file_path or roles are skipped.
func decodeMappings(msg json.RawMessage) ([]domain.Mapping, bool) {
	mappings := []domain.Mapping{}
	if isAbsent(msg) {
		return mappings, true
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(msg, &rows); err != nil {
		log.Warn().Err(err).Msg("mappings setting is not a list, treating as empty")
		return mappings, false
	}

	for i, row := range rows {
		var m struct {
			FilePath *string  `json:"file_path"`
			Roles    []string `json:"roles"`
		}
		if err := json.Unmarshal(row, &m); err != nil || m.FilePath == nil || m.Roles == nil {
			log.Warn().Int("row", i).Msg("malformed mapping row skipped")
			continue
		}
		mappings = append(mappings, domain.Mapping{FilePath: *m.FilePath, Roles: m.Roles})
	}
	return mappings, true
}

func decodeUnmapped(msg json.RawMessage) ([]string, bool) {
	if isAbsent(msg) {
		return nil, false
	}
	var roles []string
	if err := json.Unmarshal(msg, &roles); err != nil {
		log.Warn().Err(err).Msg("unmapped setting is not a list of role IDs")
		return nil, false
	}
	return roles, true
}

func isAbsent(msg json.RawMessage) bool {
	s := strings.TrimSpace(string(msg))
	return s == "" || s == "null"
}
