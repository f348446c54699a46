package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/trackd/internal/fetch"
)

// Status is the lifecycle state of a tracker. Deletion removes the row;
// there is no soft-delete state.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Tracker is one monitored resource and its check state.
type Tracker struct {
	ID              int64      `json:"id"`
	URL             string     `json:"url"`
	OwnerID         int64      `json:"owner_id"`
	Mode            fetch.Mode `json:"mode"`
	Selector        string     `json:"selector,omitempty"`
	IntervalSeconds int64      `json:"interval_seconds"`
	LastFingerprint string     `json:"last_fingerprint,omitempty"`
	LastContent     string     `json:"-"`
	NextCheckAt     int64      `json:"next_check_at"` // unix ms
	Status          Status     `json:"status"`
	CreatedAt       int64      `json:"created_at"`
	UpdatedAt       int64      `json:"updated_at"`
}

const trackerCols = `id, url, owner_id, mode, selector, interval_secs,
	last_hash, last_content, next_check_at, status, created_at, updated_at`

// InsertTracker adds a tracker and returns its assigned id.
func (s *Store) InsertTracker(ctx context.Context, t *Tracker) (int64, error) {
	now := time.Now().UnixMilli()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = StatusActive
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO trackers (url, owner_id, mode, selector, interval_secs,
		last_hash, last_content, next_check_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.URL, t.OwnerID, string(t.Mode), t.Selector, t.IntervalSeconds,
		t.LastFingerprint, t.LastContent, t.NextCheckAt, string(t.Status),
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	t.ID = id
	return id, nil
}

// GetTracker retrieves a tracker by id. Returns (nil, nil) when absent.
func (s *Store) GetTracker(ctx context.Context, id int64) (*Tracker, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+trackerCols+` FROM trackers WHERE id = ?`, id)
	return scanTracker(row)
}

// ListByOwner returns all trackers belonging to an owner, in insertion order.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]*Tracker, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+trackerCols+` FROM trackers WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrackers(rows)
}

// CountByOwner returns the number of trackers an owner currently holds.
func (s *Store) CountByOwner(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trackers WHERE owner_id = ?`, ownerID).Scan(&count)
	return count, err
}

// ListDue returns active trackers whose next check time has passed, in
// insertion order.
func (s *Store) ListDue(ctx context.Context, now int64) ([]*Tracker, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+trackerCols+` FROM trackers
		WHERE status = ? AND next_check_at <= ?
		ORDER BY id`, string(StatusActive), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrackers(rows)
}

// DeleteTracker removes a tracker. Reports whether a row was deleted.
func (s *Store) DeleteTracker(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM trackers WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByURL removes all of an owner's trackers for a URL. Returns the
// number of rows deleted.
func (s *Store) DeleteByURL(ctx context.Context, ownerID int64, url string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM trackers WHERE owner_id = ? AND url = ?`, ownerID, url)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetStatus flips a tracker between active and paused. Reports whether the
// tracker still existed.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE trackers SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Reschedule advances only the next check time. The update is keyed to the
// tracker id, so a concurrent delete turns it into a no-op instead of a
// resurrection, and status is never touched.
func (s *Store) Reschedule(ctx context.Context, id, nextCheckAt int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE trackers SET next_check_at = ?, updated_at = ? WHERE id = ?`,
		nextCheckAt, time.Now().UnixMilli(), id)
	return err
}

// RecordChange persists the observed state after a detected change:
// fingerprint, retained content, and the advanced next check time. Same
// guarantees as Reschedule with respect to concurrent pause/delete.
func (s *Store) RecordChange(ctx context.Context, id int64, fingerprint, content string, nextCheckAt int64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE trackers SET last_hash = ?, last_content = ?, next_check_at = ?,
		updated_at = ? WHERE id = ?`,
		fingerprint, content, nextCheckAt, time.Now().UnixMilli(), id)
	return err
}

// Stats holds aggregate counters for the status report.
type Stats struct {
	Total      int        `json:"total"`
	Pending    int        `json:"pending"`
	UniqueURLs int        `json:"unique_urls"`
	Recent     []*Tracker `json:"recent"`
}

// TrackerStats returns aggregate counters plus the ten most recent trackers.
func (s *Store) TrackerStats(ctx context.Context, now int64) (*Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(id),
		COALESCE(SUM(CASE WHEN status = 'active' AND next_check_at <= ? THEN 1 ELSE 0 END), 0),
		COUNT(DISTINCT url)
		FROM trackers`, now).Scan(&st.Total, &st.Pending, &st.UniqueURLs)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+trackerCols+` FROM trackers ORDER BY id DESC LIMIT 10`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	st.Recent, err = collectTrackers(rows)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner, t *Tracker) error {
	var mode, status string
	err := sc.Scan(
		&t.ID, &t.URL, &t.OwnerID, &mode, &t.Selector, &t.IntervalSeconds,
		&t.LastFingerprint, &t.LastContent, &t.NextCheckAt, &status,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	t.Mode = fetch.Mode(mode)
	t.Status = Status(status)
	return nil
}

func scanTracker(row *sql.Row) (*Tracker, error) {
	var t Tracker
	if err := scanInto(row, &t); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan tracker: %w", err)
	}
	return &t, nil
}

func collectTrackers(rows *sql.Rows) ([]*Tracker, error) {
	var trackers []*Tracker
	for rows.Next() {
		var t Tracker
		if err := scanInto(rows, &t); err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		trackers = append(trackers, &t)
	}
	return trackers, rows.Err()
}
