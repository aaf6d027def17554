package fields

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/binder/internal/templates"
	"github.com/JaimeStill/binder/pkg/repository"
)

// Store persists committed field values. Every successful write bumps the
// owning section's version. An expectedVersion of 0 skips the version check;
// any other mismatch returns ErrConflict and writes nothing.
type Store interface {
	Load(ctx context.Context, sectionID uuid.UUID) (*Snapshot, error)
	// Commit stores user edits and marks each written field overridden.
	Commit(ctx context.Context, sectionID uuid.UUID, writes []Write, expectedVersion int64) (int64, error)
	// Put stores complete rows, including auto-fill value and overridden flag.
	Put(ctx context.Context, sectionID uuid.UUID, rows []Value, expectedVersion int64) (int64, error)
}

type store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a PostgreSQL-backed Store.
func New(db *sql.DB, logger *slog.Logger) Store {
	return &store{
		db:     db,
		logger: logger.With("system", "fields"),
	}
}

// Seed inserts one row per schema field with the schema default.
// It runs on the caller's executor so binder creation stays in one transaction.
func Seed(ctx context.Context, e repository.Executor, sectionID uuid.UUID, schema []templates.Field) error {
	const q = `
		INSERT INTO field_values(section_id, name, type, value, page)
		VALUES ($1, $2, $3, $4, $5)`

	for _, f := range schema {
		if _, err := e.ExecContext(ctx, q, sectionID, f.Name, f.Type, f.Default, f.Page); err != nil {
			return fmt.Errorf("seed field %s: %w", f.Name, err)
		}
	}
	return nil
}

// Load reads the version and the rows in one snapshot, so the version
// always describes exactly the values returned with it.
func (s *store) Load(ctx context.Context, sectionID uuid.UUID) (*Snapshot, error) {
	const q = `
		SELECT section_id, name, type, value, page, autofill_value, overridden, updated_at
		FROM field_values
		WHERE section_id = $1
		ORDER BY name`

	return repository.WithTxOptions(ctx, s.db, repository.Snapshot, func(tx *sql.Tx) (*Snapshot, error) {
		var version int64
		err := tx.QueryRowContext(ctx, "SELECT version FROM sections WHERE id = $1", sectionID).Scan(&version)
		if err != nil {
			return nil, repository.MapError(err, ErrNotFound, ErrConflict)
		}

		rows, err := repository.QueryMany(ctx, tx, q, []any{sectionID}, scanValue)
		if err != nil {
			return nil, fmt.Errorf("query field values: %w", err)
		}

		snap := &Snapshot{
			SectionID: sectionID,
			Version:   version,
			Values:    make(map[string]Value, len(rows)),
		}
		for _, v := range rows {
			snap.Values[v.Name] = v
		}
		return snap, nil
	})
}

func (s *store) Commit(ctx context.Context, sectionID uuid.UUID, writes []Write, expectedVersion int64) (int64, error) {
	const q = `
		UPDATE field_values
		SET value = $3, overridden = true, updated_at = now()
		WHERE section_id = $1 AND name = $2`

	return s.write(ctx, sectionID, expectedVersion, func(tx *sql.Tx) error {
		for _, w := range writes {
			if err := repository.ExecExpectOne(ctx, tx, q, sectionID, w.Name, w.Value); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return unknownField(w.Name)
				}
				return err
			}
		}
		return nil
	})
}

func (s *store) Put(ctx context.Context, sectionID uuid.UUID, rows []Value, expectedVersion int64) (int64, error) {
	const q = `
		UPDATE field_values
		SET value = $3, autofill_value = $4, overridden = $5, updated_at = now()
		WHERE section_id = $1 AND name = $2`

	return s.write(ctx, sectionID, expectedVersion, func(tx *sql.Tx) error {
		for _, v := range rows {
			if err := repository.ExecExpectOne(ctx, tx, q, sectionID, v.Name, v.Value, v.AutoFillValue, v.Overridden); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return unknownField(v.Name)
				}
				return err
			}
		}
		return nil
	})
}

// write bumps the section version under the expected-version guard, then
// runs fn in the same transaction.
func (s *store) write(ctx context.Context, sectionID uuid.UUID, expectedVersion int64, fn func(tx *sql.Tx) error) (int64, error) {
	const bump = `
		UPDATE sections
		SET version = version + 1, updated_at = now()
		WHERE id = $1 AND ($2::bigint = 0 OR version = $2::bigint)
		RETURNING version`

	version, err := repository.WithTx(ctx, s.db, func(tx *sql.Tx) (int64, error) {
		var v int64
		if err := tx.QueryRowContext(ctx, bump, sectionID, expectedVersion).Scan(&v); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, s.missingOrConflict(ctx, tx, sectionID)
			}
			return 0, err
		}
		if err := fn(tx); err != nil {
			return 0, err
		}
		return v, nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("fields committed", "section", sectionID, "version", version)
	return version, nil
}

func (s *store) missingOrConflict(ctx context.Context, tx *sql.Tx, sectionID uuid.UUID) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sections WHERE id = $1)", sectionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanValue(sc repository.Scanner) (Value, error) {
	var (
		v        Value
		autofill sql.NullString
	)
	err := sc.Scan(
		&v.SectionID,
		&v.Name,
		&v.Type,
		&v.Value,
		&v.Page,
		&autofill,
		&v.Overridden,
		&v.UpdatedAt,
	)
	if autofill.Valid {
		v.AutoFillValue = &autofill.String
	}
	return v, err
}
