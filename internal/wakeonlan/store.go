package wakeonlan

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/HerbHall/wolgate/pkg/models"
	"github.com/HerbHall/wolgate/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create wol_actions table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE wol_actions (
						id           TEXT PRIMARY KEY,
						device_id    TEXT NOT NULL,
						name         TEXT NOT NULL,
						source       TEXT NOT NULL,
						status       TEXT NOT NULL,
						error        TEXT NOT NULL DEFAULT '',
						requested_at DATETIME NOT NULL,
						completed_at DATETIME
					);
					CREATE INDEX idx_wol_actions_device ON wol_actions(device_id, requested_at);`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create wol_reachability table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE wol_reachability (
						id         INTEGER PRIMARY KEY AUTOINCREMENT,
						device_id  TEXT NOT NULL,
						from_state TEXT NOT NULL,
						to_state   TEXT NOT NULL,
						changed_at DATETIME NOT NULL
					);
					CREATE INDEX idx_wol_reachability_device ON wol_reachability(device_id, changed_at);`)
				return err
			},
		},
	}
}

// HistoryStore persists action records and reachability transitions.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a HistoryStore. The module migrations must
// already be applied.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// InsertAction stores a new action record.
func (s *HistoryStore) InsertAction(ctx context.Context, rec *models.ActionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wol_actions (id, device_id, name, source, status, error, requested_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.Name, rec.Source, string(rec.Status), rec.Error,
		rec.RequestedAt, nullTime(rec),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// UpdateAction records the outcome of an action.
func (s *HistoryStore) UpdateAction(ctx context.Context, rec *models.ActionRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE wol_actions SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(rec.Status), rec.Error, nullTime(rec), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update action: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update action %q: %w", rec.ID, sql.ErrNoRows)
	}
	return nil
}

// ListActions returns the newest action records for a device, newest first.
func (s *HistoryStore) ListActions(ctx context.Context, deviceID string, limit int) ([]models.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, name, source, status, error, requested_at, completed_at
		FROM wol_actions WHERE device_id = ?
		ORDER BY requested_at DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []models.ActionRecord
	for rows.Next() {
		var (
			rec       models.ActionRecord
			status    string
			completed sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.Name, &rec.Source, &status,
			&rec.Error, &rec.RequestedAt, &completed); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		rec.Status = models.ActionStatus(status)
		if completed.Valid {
			t := completed.Time
			rec.CompletedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InsertTransition stores one reachability change.
func (s *HistoryStore) InsertTransition(ctx context.Context, t models.Transition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wol_reachability (device_id, from_state, to_state, changed_at)
		VALUES (?, ?, ?, ?)`,
		t.DeviceID, string(t.From), string(t.To), t.ChangedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns the newest reachability changes for a device,
// newest first.
func (s *HistoryStore) ListTransitions(ctx context.Context, deviceID string, limit int) ([]models.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, from_state, to_state, changed_at
		FROM wol_reachability WHERE device_id = ?
		ORDER BY changed_at DESC, id DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		var (
			t        models.Transition
			from, to string
		)
		if err := rows.Scan(&t.DeviceID, &from, &to, &t.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.From = models.Reachability(from)
		t.To = models.Reachability(to)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune deletes action records requested and transitions recorded before
// cutoff, returning the number of rows removed.
func (s *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	for _, q := range []string{
		`DELETE FROM wol_actions WHERE requested_at < ?`,
		`DELETE FROM wol_reachability WHERE changed_at < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff.UTC())
		if err != nil {
			return removed, fmt.Errorf("prune history: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

func nullTime(rec *models.ActionRecord) sql.NullTime {
	if rec.CompletedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *rec.CompletedAt, Valid: true}
}
