package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/houseprice/internal/database"
	"github.com/stwalsh4118/houseprice/internal/models"
)

// SchemaSQL creates the model snapshot table. Only one snapshot per key is
// active at a time.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS model_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	model_key   TEXT        NOT NULL,
	version     INTEGER     NOT NULL,
	active      BOOLEAN     NOT NULL DEFAULT FALSE,
	model_json  JSONB       NOT NULL,
	params_json JSONB       NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (model_key, version)
);
CREATE UNIQUE INDEX IF NOT EXISTS model_snapshots_one_active
	ON model_snapshots (model_key) WHERE active;
`

// SnapshotRepository defines the data access operations for model snapshots.
type SnapshotRepository interface {
	// FindActive returns the active snapshot for modelKey.
	// Returns nil, nil if none is active (not an error).
	FindActive(ctx context.Context, modelKey string) (*models.ModelSnapshot, error)

	// Publish stores a new version for modelKey and makes it the only active one.
	Publish(ctx context.Context, modelKey string, modelJSON []byte, params models.ParameterDescriptor) (*models.ModelSnapshot, error)

	// EnsureSchema creates the snapshot table if it does not exist.
	EnsureSchema(ctx context.Context) error
}

// snapshotRepository is the concrete implementation of SnapshotRepository.
type snapshotRepository struct {
	db *database.Database
}

// NewSnapshotRepository creates a new instance of SnapshotRepository.
func NewSnapshotRepository(db *database.Database) SnapshotRepository {
	return &snapshotRepository{
		db: db,
	}
}

// FindActive queries the active snapshot for a model key.
func (r *snapshotRepository) FindActive(ctx context.Context, modelKey string) (*models.ModelSnapshot, error) {
	query := `
		SELECT id, model_key, version, active, model_json, params_json, created_at
		FROM model_snapshots
		WHERE model_key = $1 AND active
		LIMIT 1
	`

	var snap models.ModelSnapshot
	err := r.db.Pool.QueryRow(ctx, query, modelKey).Scan(
		&snap.ID,
		&snap.ModelKey,
		&snap.Version,
		&snap.Active,
		&snap.ModelJSON,
		&snap.Params,
		&snap.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active snapshot (key=%s): %w", modelKey, err)
	}

	return &snap, nil
}

// Publish inserts the next version for modelKey inside a transaction that
// also deactivates the previous versions. An advisory lock on the key
// serializes concurrent publishers.
func (r *snapshotRepository) Publish(ctx context.Context, modelKey string, modelJSON []byte, params models.ParameterDescriptor) (*models.ModelSnapshot, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, modelKey); err != nil {
		return nil, fmt.Errorf("failed to lock model key %s: %w", modelKey, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE model_snapshots SET active = FALSE WHERE model_key = $1 AND active`, modelKey); err != nil {
		return nil, fmt.Errorf("failed to deactivate snapshots for %s: %w", modelKey, err)
	}

	insert := `
		INSERT INTO model_snapshots (model_key, version, active, model_json, params_json)
		SELECT $1, COALESCE(MAX(version), 0) + 1, TRUE, $2::jsonb, $3::jsonb
		FROM model_snapshots
		WHERE model_key = $1
		RETURNING id, version, created_at
	`

	snap := models.ModelSnapshot{
		ModelKey:  modelKey,
		ModelJSON: modelJSON,
		Params:    params,
		Active:    true,
	}
	err = tx.QueryRow(ctx, insert, modelKey, string(modelJSON), string(paramsJSON)).Scan(
		&snap.ID,
		&snap.Version,
		&snap.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot for %s: %w", modelKey, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot for %s: %w", modelKey, err)
	}

	return &snap, nil
}

// EnsureSchema runs SchemaSQL.
func (r *snapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("failed to create model_snapshots schema: %w", err)
	}
	return nil
}
