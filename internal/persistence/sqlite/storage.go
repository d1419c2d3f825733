// Package sqlite implements persistence.Store on top of modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/proof-of-ship/internal/persistence"
	"github.com/example/proof-of-ship/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// timestampLayout is fixed width so that text comparison orders instants.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Storage is a SQLite backed persistence.Store.
type Storage struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
	logger *slog.Logger
}

// Open opens the database at dsn with the default configuration.
func Open(dsn string, logger *slog.Logger) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(dsn), logger)
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
		logger: logger.With("component", "sqlite"),
	}, nil
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationFiles,
		"migrations",
		s.logger,
	)
	return manager.RunMigrations(ctx)
}

// --- CommitmentRepository implementation ---

// GetCommitment returns the stored commitment.
func (s *Storage) GetCommitment(ctx context.Context) (persistence.Commitment, error) {
	const query = `
		SELECT id, repository_owner, repository_name, day_of_week, cutoff_time, timezone, tag_pattern, created_at, updated_at
		FROM commitments
		WHERE singleton = 1`

	var (
		c                    persistence.Commitment
		tagPattern           sql.NullString
		createdAt, updatedAt string
	)
	err := s.pool.DB().QueryRowContext(ctx, query).Scan(
		&c.ID, &c.RepositoryOwner, &c.RepositoryName, &c.DayOfWeek, &c.CutoffTime, &c.Timezone,
		&tagPattern, &createdAt, &updatedAt,
	)
	if err != nil {
		return persistence.Commitment{}, s.mapper.MapError(err)
	}

	c.TagPattern = fromNullString(tagPattern)
	if c.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Commitment{}, err
	}
	if c.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Commitment{}, err
	}
	return c, nil
}

// SetCommitment replaces the stored commitment.
func (s *Storage) SetCommitment(ctx context.Context, c persistence.Commitment) error {
	const upsert = `
		INSERT INTO commitments (id, singleton, repository_owner, repository_name, day_of_week, cutoff_time, timezone, tag_pattern, created_at, updated_at)
		VALUES (?, 1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (singleton) DO UPDATE SET
			id = excluded.id,
			repository_owner = excluded.repository_owner,
			repository_name = excluded.repository_name,
			day_of_week = excluded.day_of_week,
			cutoff_time = excluded.cutoff_time,
			timezone = excluded.timezone,
			tag_pattern = excluded.tag_pattern,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`

	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, upsert,
			c.ID, c.RepositoryOwner, c.RepositoryName, c.DayOfWeek, c.CutoffTime, c.Timezone,
			toNullString(c.TagPattern), formatTimestamp(c.CreatedAt), formatTimestamp(c.UpdatedAt),
		)
		return err
	})
}

// --- WeekRepository implementation ---

const weekColumns = `week_start, week_end, status, proof, evidence_url, note, evaluated_at, updated_at`

// GetWeek returns the week stored for the exact window bounds.
func (s *Storage) GetWeek(ctx context.Context, start, end time.Time) (persistence.Week, error) {
	row := s.pool.DB().QueryRowContext(ctx,
		`SELECT `+weekColumns+` FROM weeks WHERE week_start = ? AND week_end = ?`,
		formatTimestamp(start), formatTimestamp(end),
	)
	week, err := scanWeek(row)
	if err != nil {
		return persistence.Week{}, s.mapper.MapError(err)
	}
	return week, nil
}

// PutWeek upserts week and evicts records beyond persistence.RetentionLimit in
// the same transaction.
func (s *Storage) PutWeek(ctx context.Context, week persistence.Week) error {
	proof, err := encodeProof(week.Proof)
	if err != nil {
		return err
	}

	const upsert = `
		INSERT INTO weeks (` + weekColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (week_start, week_end) DO UPDATE SET
			status = excluded.status,
			proof = excluded.proof,
			evidence_url = excluded.evidence_url,
			note = excluded.note,
			evaluated_at = excluded.evaluated_at,
			updated_at = excluded.updated_at`

	const evict = `
		DELETE FROM weeks
		WHERE (week_start, week_end) NOT IN (
			SELECT week_start, week_end FROM weeks ORDER BY week_end DESC, week_start DESC LIMIT ?
		)`

	return s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, upsert,
				formatTimestamp(week.WeekStart), formatTimestamp(week.WeekEnd), week.Status, proof,
				toNullString(week.EvidenceURL), toNullString(week.Note),
				formatTimestamp(week.EvaluatedAt), formatTimestamp(week.UpdatedAt),
			); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, evict, persistence.RetentionLimit)
			return err
		})
	})
}

// ListRecentWeeks returns up to limit weeks ordered by week end, newest first.
// A non-positive limit returns every stored week.
func (s *Storage) ListRecentWeeks(ctx context.Context, limit int) ([]persistence.Week, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.pool.DB().QueryContext(ctx,
		`SELECT `+weekColumns+` FROM weeks ORDER BY week_end DESC, week_start DESC LIMIT ?`, limit)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	var weeks []persistence.Week
	for rows.Next() {
		week, err := scanWeek(rows)
		if err != nil {
			return nil, err
		}
		weeks = append(weeks, week)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return weeks, nil
}

// DeleteAllWeeks removes every stored week.
func (s *Storage) DeleteAllWeeks(ctx context.Context) error {
	return s.retry.WithRetry(ctx, func() error {
		_, err := s.pool.DB().ExecContext(ctx, `DELETE FROM weeks`)
		return err
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWeek(row rowScanner) (persistence.Week, error) {
	var (
		week                               persistence.Week
		start, end, evaluatedAt, updatedAt string
		proof, evidenceURL, note           sql.NullString
	)
	if err := row.Scan(&start, &end, &week.Status, &proof, &evidenceURL, &note, &evaluatedAt, &updatedAt); err != nil {
		return persistence.Week{}, err
	}

	var err error
	if week.WeekStart, err = parseTimestamp(start); err != nil {
		return persistence.Week{}, err
	}
	if week.WeekEnd, err = parseTimestamp(end); err != nil {
		return persistence.Week{}, err
	}
	if week.EvaluatedAt, err = parseTimestamp(evaluatedAt); err != nil {
		return persistence.Week{}, err
	}
	if week.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Week{}, err
	}
	if week.Proof, err = decodeProof(proof); err != nil {
		return persistence.Week{}, err
	}
	week.EvidenceURL = fromNullString(evidenceURL)
	week.Note = fromNullString(note)
	return week, nil
}

func encodeProof(proof *persistence.Proof) (sql.NullString, error) {
	if proof == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(proof)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("sqlite: encode proof: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func decodeProof(value sql.NullString) (*persistence.Proof, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	var proof persistence.Proof
	if err := json.Unmarshal([]byte(value.String), &proof); err != nil {
		return nil, fmt.Errorf("sqlite: decode proof: %w", err)
	}
	return &proof, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
