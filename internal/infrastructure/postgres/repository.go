package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"vn.io.arda/rolesync/internal/domain"
)

// Repository is the PostgreSQL implementation of domain.SettingsRepository.
// Each settings object is one JSONB row keyed by name.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new postgres Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the settings table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			name       TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

// Get fetches the settings object stored under name.
func (r *Repository) Get(ctx context.Context, name string) (domain.RawSettings, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT data FROM settings WHERE name = $1`, name).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("select settings: %w", err)
	}
	return decodeSettings(name, data), nil
}

// Put replaces the settings object stored under name in a single upsert.
func (r *Repository) Put(ctx context.Context, name string, settings domain.RawSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, name, data)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

// decodeSettings treats a stored value that is not a JSON object as empty.
func decodeSettings(name string, data []byte) domain.RawSettings {
	raw := domain.RawSettings{}
	if len(data) == 0 {
		return raw
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("stored settings are not an object, treating as empty")
		return domain.RawSettings{}
	}
	return raw
}
