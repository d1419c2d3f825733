// Package postgres implements persistence.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/example/proof-of-ship/internal/persistence"
)

//go:embed schema.sql
var schema string

// weeksLockKey serializes the upsert and eviction of week records.
const weeksLockKey = 0x70726f6f66

// Storage is a PostgreSQL backed persistence.Store.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to the database at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return New(db, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{db: db, logger: logger.With("component", "postgres")}
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", mapError(err))
	}
	s.logger.DebugContext(ctx, "schema ready")
	return nil
}

// GetCommitment returns the stored commitment.
func (s *Storage) GetCommitment(ctx context.Context) (persistence.Commitment, error) {
	var (
		c          persistence.Commitment
		tagPattern sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, repository_owner, repository_name, day_of_week, cutoff_time, timezone, tag_pattern, created_at, updated_at
		FROM commitments
		WHERE singleton = 1`,
	).Scan(&c.ID, &c.RepositoryOwner, &c.RepositoryName, &c.DayOfWeek, &c.CutoffTime, &c.Timezone, &tagPattern, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return persistence.Commitment{}, mapError(err)
	}
	c.TagPattern = fromNullString(tagPattern)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// SetCommitment replaces the stored commitment.
func (s *Storage) SetCommitment(ctx context.Context, c persistence.Commitment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commitments (id, singleton, repository_owner, repository_name, day_of_week, cutoff_time, timezone, tag_pattern, created_at, updated_at)
		VALUES ($1, 1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (singleton) DO UPDATE SET
			id = EXCLUDED.id,
			repository_owner = EXCLUDED.repository_owner,
			repository_name = EXCLUDED.repository_name,
			day_of_week = EXCLUDED.day_of_week,
			cutoff_time = EXCLUDED.cutoff_time,
			timezone = EXCLUDED.timezone,
			tag_pattern = EXCLUDED.tag_pattern,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at`,
		c.ID, c.RepositoryOwner, c.RepositoryName, c.DayOfWeek, c.CutoffTime, c.Timezone,
		toNullString(c.TagPattern), c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	return mapError(err)
}

const weekColumns = `week_start, week_end, status, proof, evidence_url, note, evaluated_at, updated_at`

// GetWeek returns the week stored for the exact window bounds.
func (s *Storage) GetWeek(ctx context.Context, start, end time.Time) (persistence.Week, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+weekColumns+` FROM weeks WHERE week_start = $1 AND week_end = $2`,
		start.UTC(), end.UTC(),
	)
	week, err := scanWeek(row)
	if err != nil {
		return persistence.Week{}, mapError(err)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, weeksLockKey); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO weeks (`+weekColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (week_start, week_end) DO UPDATE SET
			status = EXCLUDED.status,
			proof = EXCLUDED.proof,
			evidence_url = EXCLUDED.evidence_url,
			note = EXCLUDED.note,
			evaluated_at = EXCLUDED.evaluated_at,
			updated_at = EXCLUDED.updated_at`,
		week.WeekStart.UTC(), week.WeekEnd.UTC(), week.Status, proof,
		toNullString(week.EvidenceURL), toNullString(week.Note),
		week.EvaluatedAt.UTC(), week.UpdatedAt.UTC(),
	); err != nil {
		return mapError(err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM weeks
		WHERE (week_start, week_end) NOT IN (
			SELECT week_start, week_end FROM weeks ORDER BY week_end DESC, week_start DESC LIMIT $1
		)`, persistence.RetentionLimit,
	); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit())
}

// ListRecentWeeks returns up to limit weeks ordered by week end, newest first.
// A non-positive limit returns every stored week.
func (s *Storage) ListRecentWeeks(ctx context.Context, limit int) ([]persistence.Week, error) {
	var bound sql.NullInt64
	if limit > 0 {
		bound = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+weekColumns+` FROM weeks ORDER BY week_end DESC, week_start DESC LIMIT $1`, bound)
	if err != nil {
		return nil, mapError(err)
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
		return nil, mapError(err)
	}
	return weeks, nil
}

// DeleteAllWeeks removes every stored week.
func (s *Storage) DeleteAllWeeks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM weeks`)
	return mapError(err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWeek(row rowScanner) (persistence.Week, error) {
	var (
		week              persistence.Week
		proof             []byte
		evidenceURL, note sql.NullString
	)
	if err := row.Scan(&week.WeekStart, &week.WeekEnd, &week.Status, &proof, &evidenceURL, &note, &week.EvaluatedAt, &week.UpdatedAt); err != nil {
		return persistence.Week{}, err
	}
	week.WeekStart = week.WeekStart.UTC()
	week.WeekEnd = week.WeekEnd.UTC()
	week.EvaluatedAt = week.EvaluatedAt.UTC()
	week.UpdatedAt = week.UpdatedAt.UTC()
	week.EvidenceURL = fromNullString(evidenceURL)
	week.Note = fromNullString(note)

	if len(proof) > 0 {
		var p persistence.Proof
		if err := json.Unmarshal(proof, &p); err != nil {
			return persistence.Week{}, fmt.Errorf("postgres: decode proof: %w", err)
		}
		week.Proof = &p
	}
	return week, nil
}

func encodeProof(proof *persistence.Proof) (any, error) {
	if proof == nil {
		return nil, nil
	}
	raw, err := json.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode proof: %w", err)
	}
	return string(raw), nil
}

// mapError translates driver errors into persistence errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pqErr.Message)
	}
	return err
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
