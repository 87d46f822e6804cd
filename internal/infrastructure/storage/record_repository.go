package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NotesTagger/internal/domain"
	"NotesTagger/internal/ports"
)

const labelQueryChunk = 500

// RecordRepository persists records and their labels in SQLite or Postgres.
type RecordRepository struct {
	db         *DB
	sb         sq.StatementBuilderType
	auditScope string
	now        func() time.Time
}

var (
	_ ports.RecordSource = (*RecordRepository)(nil)
	_ ports.RecordStore  = (*RecordRepository)(nil)
	_ ports.RecordWriter = (*RecordRepository)(nil)
)

// NewRecordRepository wires an open DB. Records created through CreateRecord land in auditScope.
func NewRecordRepository(db *DB, auditScope string) *RecordRepository {
	if auditScope == "" {
		auditScope = "inbox"
	}
	return &RecordRepository{
		db:         db,
		sb:         sq.StatementBuilder.PlaceholderFormat(db.placeholder),
		auditScope: auditScope,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// QueryRecords returns the records of a scope, oldest first. An unknown scope yields no records.
func (r *RecordRepository) QueryRecords(ctx context.Context, scope string) ([]domain.Record, error) {
	query, args, err := r.sb.
		Select("id", "scope", "title", "body").
		From("records").
		Where(sq.Eq{"scope": scope}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build records query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var records []domain.Record
	index := map[string]int{}
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(&rec.ID, &rec.Scope, &rec.Title, &rec.Body); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	for start := 0; start < len(ids); start += labelQueryChunk {
		end := min(start+labelQueryChunk, len(ids))
		if err := r.loadLabels(ctx, ids[start:end], records, index); err != nil {
			return nil, err
		}
	}

	return records, nil
}

func (r *RecordRepository) loadLabels(ctx context.Context, ids []string, records []domain.Record, index map[string]int) error {
	query, args, err := r.sb.
		Select("record_id", "label").
		From("record_labels").
		Where(sq.Eq{"record_id": ids}).
		OrderBy("record_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("build labels query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		if i, ok := index[id]; ok {
			records[i].Labels = append(records[i].Labels, label)
		}
	}
	return rows.Err()
}

// Persist adds the record's labels that are not stored yet. Existing labels are never removed.
func (r *RecordRepository) Persist(ctx context.Context, record domain.Record) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := r.exec(ctx, tx, r.sb.
			Update("records").
			Set("updated_at", r.now()).
			Where(sq.Eq{"id": record.ID}))
		if err != nil {
			return fmt.Errorf("touch record %s: %w", record.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("record %s not found", record.ID)
		}
		return r.insertLabels(ctx, tx, record.ID, record.Labels)
	})
}

// Upsert inserts or refreshes a record's content and merges its labels.
func (r *RecordRepository) Upsert(ctx context.Context, record domain.Record) error {
	now := r.now()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := r.exec(ctx, tx, r.sb.
			Insert("records").
			Columns("id", "scope", "title", "body", "created_at", "updated_at").
			Values(record.ID, record.Scope, record.Title, record.Body, now, now).
			Suffix("ON CONFLICT (id) DO UPDATE SET scope = excluded.scope, title = excluded.title, body = excluded.body, updated_at = excluded.updated_at"))
		if err != nil {
			return fmt.Errorf("upsert record %s: %w", record.ID, err)
		}
		return r.insertLabels(ctx, tx, record.ID, record.Labels)
	})
}

// CreateRecord stores new content (the run log) with the given labels.
func (r *RecordRepository) CreateRecord(ctx context.Context, content string, labels []string) (domain.Record, error) {
	record := domain.Record{
		ID:    uuid.NewString(),
		Scope: r.auditScope,
		Body:  content,
	}
	record.Title = record.DisplayTitle()
	for _, l := range labels {
		record.AddLabel(l)
	}

	if err := r.Upsert(ctx, record); err != nil {
		return domain.Record{}, fmt.Errorf("create record: %w", err)
	}
	return record, nil
}

func (r *RecordRepository) insertLabels(ctx context.Context, tx *sql.Tx, id string, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	query, args, err := r.sb.Select("MAX(position)").From("record_labels").Where(sq.Eq{"record_id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build position query: %w", err)
	}
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&last); err != nil {
		return fmt.Errorf("read label position for %s: %w", id, err)
	}
	next := 0
	if last.Valid {
		next = int(last.Int64) + 1
	}

	// Positions of labels skipped by the conflict clause are simply left unused.
	insert := r.sb.Insert("record_labels").Columns("record_id", "label", "position")
	for i, label := range labels {
		insert = insert.Values(id, label, next+i)
	}
	if _, err := r.exec(ctx, tx, insert.Suffix("ON CONFLICT (record_id, label) DO NOTHING")); err != nil {
		return fmt.Errorf("insert labels for %s: %w", id, err)
	}
	return nil
}

func (r *RecordRepository) exec(ctx context.Context, tx *sql.Tx, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return tx.ExecContext(ctx, query, args...)
}

func (r *RecordRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
