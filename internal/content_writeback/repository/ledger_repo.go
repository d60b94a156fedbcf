package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

// ErrLedgerEntryNotFound is returned when no apply has been recorded for a session
var ErrLedgerEntryNotFound = errors.New("apply ledger entry not found")

const uniqueViolation = "23505"

// LedgerEntry is the durable record of one applied session
type LedgerEntry struct {
	SessionID   string    `json:"session_id"`
	SiteURL     string    `json:"site_url"`
	Destination string    `json:"destination"`
	CommitIDs   []string  `json:"commit_ids"`
	FilesCount  int       `json:"files_count"`
	AppliedAt   time.Time `json:"applied_at"`
}

// LedgerRepository handles PostgreSQL operations for the apply ledger.
// The session store expires records, the ledger keeps what was written and where.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS writeback_applies (
		session_id  TEXT PRIMARY KEY,
		site_url    TEXT NOT NULL,
		destination TEXT NOT NULL,
		commit_ids  TEXT[] NOT NULL DEFAULT '{}',
		files_count INTEGER NOT NULL DEFAULT 0,
		applied_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS writeback_applies_site_idx ON writeback_applies (site_url, applied_at DESC);
`

// EnsureSchema creates the ledger table if it does not exist
func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// Record inserts the apply of a session. Recording the same session twice is not an error and
// keeps the first entry.
func (r *LedgerRepository) Record(ctx context.Context, session *domain.ReviewSession) error {
	query := `
		INSERT INTO writeback_applies (
			session_id, site_url, destination, commit_ids, files_count, applied_at
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	appliedAt := time.Now().UTC()
	if session.AppliedAt != nil {
		appliedAt = session.AppliedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.SiteURL,
		session.DestinationRepository.String(),
		pq.Array(session.ResultingCommitIDs),
		len(session.AppliedFiles),
		appliedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil
		}
		return fmt.Errorf("failed to record apply: %w", err)
	}
	return nil
}

// GetBySessionID retrieves the ledger entry of a session
func (r *LedgerRepository) GetBySessionID(ctx context.Context, sessionID string) (*LedgerEntry, error) {
	query := `
		SELECT session_id, site_url, destination, commit_ids, files_count, applied_at
		FROM writeback_applies
		WHERE session_id = $1
	`

	var e LedgerEntry
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&e.SessionID,
		&e.SiteURL,
		&e.Destination,
		pq.Array(&e.CommitIDs),
		&e.FilesCount,
		&e.AppliedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLedgerEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	if e.CommitIDs == nil {
		e.CommitIDs = []string{}
	}
	return &e, nil
}

// ListBySite returns the most recent applies for a site, newest first
func (r *LedgerRepository) ListBySite(ctx context.Context, siteURL string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT session_id, site_url, destination, commit_ids, files_count, applied_at
		FROM writeback_applies
		WHERE site_url = $1
		ORDER BY applied_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, siteURL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]LedgerEntry, 0)
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(
			&e.SessionID,
			&e.SiteURL,
			&e.Destination,
			pq.Array(&e.CommitIDs),
			&e.FilesCount,
			&e.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
