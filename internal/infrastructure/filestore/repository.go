// Package filestore keeps settings objects as YAML documents in a directory,
// one file per settings name. Used when no database is configured.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
	"vn.io.arda/rolesync/internal/domain"
)

// Repository is the YAML-file implementation of domain.SettingsRepository.
type Repository struct {
	fs  afero.Fs
	dir string
}

// New creates a Repository storing files under dir.
func New(fsys afero.Fs, dir string) *Repository {
	return &Repository{fs: fsys, dir: dir}
}

func (r *Repository) path(name string) string {
	return filepath.Join(r.dir, name+".yaml")
}

// Get reads the settings object stored under name.
func (r *Repository) Get(_ context.Context, name string) (domain.RawSettings, error) {
	data, err := afero.ReadFile(r.fs, r.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("settings file is not a YAML mapping, treating as empty")
		return domain.RawSettings{}, nil
	}

	raw := make(domain.RawSettings, len(doc))
	for k, v := range doc {
		b, err := json.Marshal(v)
		if err != nil {
			log.Warn().Err(err).Str("name", name).Str("key", k).Msg("settings value skipped")
			continue
		}
		raw[k] = b
	}
	return raw, nil
}

// Put writes the settings object to a temporary file and renames it over the
// previous one, so readers never observe a partial document.
func (r *Repository) Put(_ context.Context, name string, settings domain.RawSettings) error {
	doc := make(map[string]any, len(settings))
	for k, v := range settings {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("decode settings key %s: %w", k, err)
		}
		doc[k] = val
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := r.fs.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp := r.path(name) + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path(name)); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
