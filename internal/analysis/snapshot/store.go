// Package snapshot persists analysis reports to PostgreSQL so a group's
// statistics can be compared over time.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/postgres"
)

// Schema creates the table Store writes to.
const Schema = `CREATE TABLE IF NOT EXISTS report_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    group_id    TEXT NOT NULL,
    messages    INTEGER NOT NULL,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS report_snapshots_group_idx
    ON report_snapshots (group_id, captured_at DESC);`

// Snapshot is a stored report.
type Snapshot struct {
	ID         int64           `json:"id"`
	CapturedAt time.Time       `json:"captured_at"`
	Report     analysis.Report `json:"report"`
}

// Store reads and writes report snapshots.
type Store struct {
	db     *postgres.Client
	keep   int
	logger *slog.Logger
}

// NewStore creates a Store that retains the newest keep snapshots per
// group; keep <= 0 keeps everything.
func NewStore(db *postgres.Client, keep int) *Store {
	return &Store{
		db:     db,
		keep:   keep,
		logger: slog.Default().With("component", "snapshot-store"),
	}
}

// Migrate creates the snapshot table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating snapshot schema: %w", err)
	}
	return nil
}

// Save stores report and prunes the group's older snapshots beyond the
// retention limit, in one transaction.
func (s *Store) Save(ctx context.Context, report analysis.Report) (int64, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("marshaling report: %w", err)
	}

	var id int64
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO report_snapshots (group_id, messages, data, captured_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			report.GroupID, report.Messages, data, report.GeneratedAt,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting snapshot: %w", err)
		}
		if s.keep <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM report_snapshots WHERE group_id = $1 AND id NOT IN (
			    SELECT id FROM report_snapshots WHERE group_id = $1 ORDER BY captured_at DESC LIMIT $2)`,
			report.GroupID, s.keep,
		)
		if err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("saving snapshot for group %s: %w", report.GroupID, err)
	}
	s.logger.Info("report snapshot saved", "group_id", report.GroupID, "id", id, "messages", report.Messages)
	return id, nil
}

// Latest returns the newest snapshot of groupID, or nil, nil when there is
// none.
func (s *Store) Latest(ctx context.Context, groupID string) (*Snapshot, error) {
	var snap Snapshot
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, captured_at, data FROM report_snapshots WHERE group_id = $1 ORDER BY captured_at DESC LIMIT 1`,
		groupID,
	).Scan(&snap.ID, &snap.CapturedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap.Report); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot %d: %w", snap.ID, err)
	}
	return &snap, nil
}

// List returns up to limit snapshots of groupID, newest first. Rows that
// fail to decode are skipped.
func (s *Store) List(ctx context.Context, groupID string, limit int) ([]Snapshot, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, captured_at, data FROM report_snapshots WHERE group_id = $1 ORDER BY captured_at DESC LIMIT $2`,
		groupID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var data []byte
		if err := rows.Scan(&snap.ID, &snap.CapturedAt, &data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Report); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "id", snap.ID, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
