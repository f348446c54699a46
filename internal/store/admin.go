package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Role is the privilege level of an admin.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// Admin is one entry of the authorization roster.
type Admin struct {
	UserID  int64 `json:"user_id"`
	Role    Role  `json:"role"`
	AddedBy int64 `json:"added_by"`
	AddedAt int64 `json:"added_at"`
}

// SeedOwner inserts the owner entry if the roster does not have one yet.
// Idempotent; the owner identity is immutable once seeded.
func (s *Store) SeedOwner(ctx context.Context, userID int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO admins (user_id, role, added_by, added_at)
		VALUES (?, ?, ?, ?)`,
		userID, string(RoleOwner), userID, time.Now().UnixMilli())
	return err
}

// AddAdmin grants admin role to a user.
func (s *Store) AddAdmin(ctx context.Context, userID, addedBy int64) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO admins (user_id, role, added_by, added_at) VALUES (?, ?, ?, ?)`,
		userID, string(RoleAdmin), addedBy, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("add admin %d: %w", userID, err)
	}
	return nil
}

// RemoveAdmin revokes admin role. The owner entry is never removable.
// Reports whether an entry was removed.
func (s *Store) RemoveAdmin(ctx context.Context, userID int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM admins WHERE user_id = ? AND role != ?`,
		userID, string(RoleOwner))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IsAdmin reports whether the user holds any roster entry (owner or admin).
func (s *Store) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsOwner reports whether the user is the seeded owner.
func (s *Store) IsOwner(ctx context.Context, userID int64) (bool, error) {
	var role string
	err := s.DB.QueryRowContext(ctx,
		`SELECT role FROM admins WHERE user_id = ?`, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return Role(role) == RoleOwner, nil
}

// ListAdmins returns the full roster, owner first.
func (s *Store) ListAdmins(ctx context.Context) ([]*Admin, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT user_id, role, added_by, added_at FROM admins
		ORDER BY role = 'owner' DESC, added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []*Admin
	for rows.Next() {
		var a Admin
		var role string
		if err := rows.Scan(&a.UserID, &role, &a.AddedBy, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		a.Role = Role(role)
		admins = append(admins, &a)
	}
	return admins, rows.Err()
}
