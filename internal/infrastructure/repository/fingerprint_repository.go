package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// fingerprintRepository implements entity.FingerprintStore on PostgreSQL.
type fingerprintRepository struct {
	pool *pgxpool.Pool
}

func NewFingerprintRepository(pool *pgxpool.Pool) entity.FingerprintStore {
	return &fingerprintRepository{pool: pool}
}

func (r *fingerprintRepository) Get(ctx context.Context, kind entity.Kind, key entity.NaturalKey) (*entity.FingerprintRecord, error) {
	query := `
		SELECT kind, natural_key, content_hash, sources, last_seen_at, state, missing_since, retired_at
		FROM fingerprints
		WHERE kind = $1 AND natural_key = $2
	`
	rec, err := scanFingerprint(r.pool.QueryRow(ctx, query, kind.String(), string(key)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fingerprint: %w", err)
	}
	return rec, nil
}

func (r *fingerprintRepository) List(ctx context.Context) ([]*entity.FingerprintRecord, error) {
	query := `
		SELECT kind, natural_key, content_hash, sources, last_seen_at, state, missing_since, retired_at
		FROM fingerprints
		ORDER BY kind, natural_key
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprints: %w", err)
	}
	defer rows.Close()

	var records []*entity.FingerprintRecord
	for rows.Next() {
		rec, err := scanFingerprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *fingerprintRepository) Put(ctx context.Context, rec *entity.FingerprintRecord) error {
	query := `
		INSERT INTO fingerprints (kind, natural_key, content_hash, sources, last_seen_at, state, missing_since, retired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kind, natural_key) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			sources = EXCLUDED.sources,
			last_seen_at = EXCLUDED.last_seen_at,
			state = EXCLUDED.state,
			missing_since = EXCLUDED.missing_since,
			retired_at = EXCLUDED.retired_at
	`
	_, err := r.pool.Exec(ctx, query,
		rec.Kind.String(), string(rec.Key), rec.ContentHash, rec.Sources,
		rec.LastSeenAt, rec.State.String(), rec.MissingSince, rec.RetiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert fingerprint: %w", err)
	}
	return nil
}

func (r *fingerprintRepository) Delete(ctx context.Context, kind entity.Kind, key entity.NaturalKey) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM fingerprints WHERE kind = $1 AND natural_key = $2`,
		kind.String(), string(key))
	if err != nil {
		return fmt.Errorf("failed to delete fingerprint: %w", err)
	}
	return nil
}

func scanFingerprint(row pgx.Row) (*entity.FingerprintRecord, error) {
	var (
		rec          entity.FingerprintRecord
		kindStr      string
		keyStr       string
		stateStr     string
		missingSince *time.Time
		retiredAt    *time.Time
	)
	err := row.Scan(&kindStr, &keyStr, &rec.ContentHash, &rec.Sources,
		&rec.LastSeenAt, &stateStr, &missingSince, &retiredAt)
	if err != nil {
		return nil, err
	}

	kind, err := entity.ParseKind(kindStr)
	if err != nil {
		return nil, err
	}
	state, err := entity.ParseLifecycleState(stateStr)
	if err != nil {
		return nil, err
	}
	rec.Kind = kind
	rec.Key = entity.NaturalKey(keyStr)
	rec.State = state
	rec.MissingSince = missingSince
	rec.RetiredAt = retiredAt
	return &rec, nil
}
