// Package database journals directory mutations to PostgreSQL.
package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"phonebook/ldapdb/diff"
	"phonebook/ldapdb/directory"
	"phonebook/ldapdb/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Journal records every mutation a directory.Session sends.
type Journal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ directory.Recorder = (*Journal)(nil)

// Open connects to dsn and makes sure the journal tables exist.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach journal database: %w", err)
	}

	j := NewJournal(pool, logger)
	if err := j.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func NewJournal(pool *pgxpool.Pool, logger *slog.Logger) *Journal {
	return &Journal{
		pool:   pool,
		logger: logging.Default(logger).With("component", "journal"),
	}
}

// Migrate creates the journal tables if they are missing.
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (j *Journal) Close() {
	j.pool.Close()
}

// Record stores m and its attribute changes in a single transaction.
func (j *Journal) Record(ctx context.Context, m directory.Mutation) (err error) {
	changes, err := changeRecords(m)
	if err != nil {
		return err
	}
	if m.Time.IsZero() {
		m.Time = time.Now().UTC()
	}

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer j.rollbackOrCommit(ctx, tx, &err)

	mutationID := uuid.New()
	var newDN *string
	if m.NewDN != "" {
		newDN = &m.NewDN
	}
	if _, err = tx.Exec(ctx, InsertMutation,
		mutationID, string(m.Operation), m.Model, m.DN, newDN, m.Time,
	); err != nil {
		return fmt.Errorf("insert mutation query failed: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(InsertAttributeChange,
			c.ChangeID, mutationID, c.AttributeName, c.OldValue, c.NewValue, c.IsBinary)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert attribute changes failed: %w", err)
	}

	j.logger.DebugContext(ctx, "mutation recorded",
		"operation", m.Operation, "dn", m.DN, "changes", len(changes))
	return nil
}

// History returns the mutations recorded for dn, oldest first. Renames are
// found under both the old and the new DN.
func (j *Journal) History(ctx context.Context, dn string) ([]MutationRecord, error) {
	rows, err := j.pool.Query(ctx, SelectHistory, dn)
	if err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	defer rows.Close()

	var (
		records []MutationRecord
		current *MutationRecord
	)
	for rows.Next() {
		var (
			rec       MutationRecord
			attribute *string
			oldValue  []byte
			newValue  []byte
			binary    bool
		)
		if err := rows.Scan(&rec.MutationID, &rec.Operation, &rec.Model, &rec.DN, &rec.NewDN,
			&rec.RecordedAt, &attribute, &oldValue, &newValue, &binary); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if current == nil || current.MutationID != rec.MutationID {
			records = append(records, rec)
			current = &records[len(records)-1]
		}
		if attribute != nil {
			current.Changes = append(current.Changes, ChangeRecord{
				AttributeName: *attribute,
				OldValue:      oldValue,
				NewValue:      newValue,
				IsBinary:      binary,
			})
		}
	}
	return records, rows.Err()
}

// AttributeChanges decodes the attribute changes of a recorded mutation.
func (r MutationRecord) AttributeChanges() ([]diff.AttributeChange, error) {
	out := make([]diff.AttributeChange, 0, len(r.Changes))
	for _, c := range r.Changes {
		oldValues, err := decodeValues(c.OldValue, c.IsBinary)
		if err != nil {
			return nil, fmt.Errorf("decode old value of %s: %w", c.AttributeName, err)
		}
		newValues, err := decodeValues(c.NewValue, c.IsBinary)
		if err != nil {
			return nil, fmt.Errorf("decode new value of %s: %w", c.AttributeName, err)
		}
		out = append(out, diff.AttributeChange{Name: c.AttributeName, Old: oldValues, New: newValues})
	}
	return out, nil
}

func (j *Journal) rollbackOrCommit(ctx context.Context, tx pgx.Tx, err *error) {
	if *err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			j.logger.ErrorContext(ctx, "transaction rollback failed", "error", rbErr, "cause", *err)
		}
		return
	}
	if cmErr := tx.Commit(ctx); cmErr != nil {
		*err = fmt.Errorf("commit failed: %w", cmErr)
	}
}
