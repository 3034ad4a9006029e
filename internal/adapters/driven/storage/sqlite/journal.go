package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
)

// batchJournal implements driven.BatchJournal.
type batchJournal struct {
	store *Store
}

var _ driven.BatchJournal = (*batchJournal)(nil)

const journalColumns = `id, batch, started_at, ended_at, success, error,
	created, content_updated, references_updated, deleted, failed_propagations`

// Record appends a batch outcome and assigns its ID.
func (j *batchJournal) Record(ctx context.Context, rec *domain.BatchRecord) error {
	if rec == nil {
		return domain.ErrInvalidInput
	}
	batchJSON, err := json.Marshal(rec.Batch)
	if err != nil {
		return fmt.Errorf("marshalling batch: %w", err)
	}

	res, err := j.store.db.ExecContext(ctx, `
		INSERT INTO batch_journal (batch, started_at, ended_at, success, error,
			created, content_updated, references_updated, deleted, failed_propagations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, string(batchJSON),
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		boolToInt(rec.Success),
		nullString(rec.Error),
		rec.Created, rec.ContentUpdated, rec.ReferencesUpdated, rec.Deleted, rec.FailedPropagations)
	if err != nil {
		return fmt.Errorf("recording batch: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading batch record id: %w", err)
	}
	rec.ID = id
	return nil
}

// Recent returns up to limit records, most recent first.
func (j *batchJournal) Recent(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	rows, err := j.store.db.QueryContext(ctx,
		"SELECT "+journalColumns+" FROM batch_journal ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying batch journal: %w", err)
	}
	defer rows.Close()

	var records []domain.BatchRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanBatchRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batch journal: %w", err)
	}
	return records, nil
}

// Get returns a record by ID.
func (j *batchJournal) Get(ctx context.Context, id int64) (*domain.BatchRecord, error) {
	row := j.store.db.QueryRowContext(ctx,
		"SELECT "+journalColumns+" FROM batch_journal WHERE id = ?", id)
	return scanBatchRecord(row)
}

// LastFailed returns the most recent failed record.
func (j *batchJournal) LastFailed(ctx context.Context) (*domain.BatchRecord, error) {
	row := j.store.db.QueryRowContext(ctx,
		"SELECT "+journalColumns+" FROM batch_journal WHERE success = 0 ORDER BY id DESC LIMIT 1")
	return scanBatchRecord(row)
}

// Prune keeps only the most recent keep records.
func (j *batchJournal) Prune(ctx context.Context, keep int) error {
	_, err := j.store.db.ExecContext(ctx, `
		DELETE FROM batch_journal
		WHERE id NOT IN (
			SELECT id FROM batch_journal ORDER BY id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning batch journal: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBatchRecord scans a single journal row.
func scanBatchRecord(row rowScanner) (*domain.BatchRecord, error) {
	var rec domain.BatchRecord
	var batchJSON, startedAt, endedAt string
	var success int
	var errText sql.NullString

	if err := row.Scan(&rec.ID, &batchJSON, &startedAt, &endedAt, &success, &errText,
		&rec.Created, &rec.ContentUpdated, &rec.ReferencesUpdated, &rec.Deleted, &rec.FailedPropagations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning batch record: %w", err)
	}

	if err := json.Unmarshal([]byte(batchJSON), &rec.Batch); err != nil {
		return nil, fmt.Errorf("unmarshalling batch: %w", err)
	}
	rec.StartedAt = parseTime(startedAt)
	rec.EndedAt = parseTime(endedAt)
	rec.Success = success == 1
	if errText.Valid {
		rec.Error = errText.String
	}
	return &rec, nil
}
