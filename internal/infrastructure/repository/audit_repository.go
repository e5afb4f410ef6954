package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakmere/regsync/internal/domain/entity"
)

// auditRepository implements entity.AuditLog on PostgreSQL. Rows are only
// ever inserted; the compliance trail has no update or delete path.
type auditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) entity.AuditLog {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, rec *entity.AuditRecord) error {
	query := `
		INSERT INTO audit_records (id, run_id, ts, kind, natural_key, operation, previous_hash, new_hash, result, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.RunID, rec.Timestamp, rec.Kind.String(), string(rec.Key),
		string(rec.Operation), rec.PreviousHash, rec.NewHash, string(rec.Result), rec.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

func (r *auditRepository) RecordRun(ctx context.Context, s *entity.RunSummary) error {
	query := `
		INSERT INTO sync_runs (run_id, started_at, completed_at, created_count, updated_count,
			retired_count, deleted_count, unchanged_count, failed_count, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		s.RunID, s.StartedAt, s.CompletedAt, s.Created, s.Updated,
		s.Retired, s.Deleted, s.Unchanged, s.Failed, s.Warnings,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (r *auditRepository) LastRun(ctx context.Context) (*entity.RunSummary, error) {
	query := `
		SELECT run_id, started_at, completed_at, created_count, updated_count,
			retired_count, deleted_count, unchanged_count, failed_count, warnings
		FROM sync_runs
		ORDER BY completed_at DESC
		LIMIT 1
	`
	var s entity.RunSummary
	err := r.pool.QueryRow(ctx, query).Scan(
		&s.RunID, &s.StartedAt, &s.CompletedAt, &s.Created, &s.Updated,
		&s.Retired, &s.Deleted, &s.Unchanged, &s.Failed, &s.Warnings,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last run: %w", err)
	}
	return &s, nil
}

func (r *auditRepository) RecordsForRun(ctx context.Context, runID uuid.UUID) ([]*entity.AuditRecord, error) {
	query := `
		SELECT id, run_id, ts, kind, natural_key, operation, previous_hash, new_hash, result, error_detail
		FROM audit_records
		WHERE run_id = $1
		ORDER BY ts
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var (
			rec     entity.AuditRecord
			kindStr string
			keyStr  string
			opStr   string
			resStr  string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Timestamp, &kindStr, &keyStr,
			&opStr, &rec.PreviousHash, &rec.NewHash, &resStr, &rec.ErrorDetail); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		kind, err := entity.ParseKind(kindStr)
		if err != nil {
			return nil, err
		}
		rec.Kind = kind
		rec.Key = entity.NaturalKey(keyStr)
		rec.Operation = entity.Operation(opStr)
		rec.Result = entity.Result(resStr)
		records = append(records, &rec)
	}
	return records, rows.Err()
}
