package store

import (
	"context"
	"fmt"

	"github.com/roach88/quark/internal/model"
)

const userSelect = `
	SELECT u.id, u.username, u.password, u.group_id, g.gid, u.enabled,
	       u.mt_credential, u.smpps_credential, u.created_at, u.updated_at
	FROM users u JOIN user_groups g ON g.id = u.group_id`

// CreateUser inserts u. GroupID must reference an existing group.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	password, mt, smpps, err := s.userColumns(u)
	if err != nil {
		return model.User{}, fmt.Errorf("create user %s: %w", u.Username, err)
	}

	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	id, err := s.insert(ctx, s.db, `
		INSERT INTO users (username, password, group_id, enabled, mt_credential, smpps_credential, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, password, u.GroupID, u.Enabled, mt, smpps, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("create user %s: %w", u.Username, err)
	}
	u.ID = id
	return u, nil
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	return s.scanUser(s.queryRow(ctx, s.db, userSelect+` WHERE u.id = ?`, id))
}

// GetUserByUsername returns the user with username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.scanUser(s.queryRow(ctx, s.db, userSelect+` WHERE u.username = ?`, username))
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.query(ctx, s.db, userSelect+` ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateUser writes every mutable field of u.
func (s *Store) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	password, mt, smpps, err := s.userColumns(u)
	if err != nil {
		return model.User{}, fmt.Errorf("update user %s: %w", u.Username, err)
	}

	u.UpdatedAt = s.now()
	res, err := s.exec(ctx, s.db, `
		UPDATE users SET password = ?, group_id = ?, enabled = ?, mt_credential = ?, smpps_credential = ?, updated_at = ?
		WHERE id = ?`,
		password, u.GroupID, u.Enabled, mt, smpps, u.UpdatedAt, u.ID)
	if err := affectedOne(res, err); err != nil {
		return model.User{}, fmt.Errorf("update user %s: %w", u.Username, err)
	}
	return u, nil
}

// DeleteUser removes the user with id.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM users WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

// CountUsers returns the number of users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (s *Store) userColumns(u model.User) (password, mt, smpps string, err error) {
	if password, err = s.sealer.Seal(u.Password); err != nil {
		return "", "", "", fmt.Errorf("seal password: %w", err)
	}
	if mt, err = marshalColumn("mt_credential", u.MTCredential); err != nil {
		return "", "", "", err
	}
	if smpps, err = marshalColumn("smpps_credential", u.SMPPCredential); err != nil {
		return "", "", "", err
	}
	return password, mt, smpps, nil
}

func (s *Store) scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var password, mt, smpps string
	err := row.Scan(&u.ID, &u.Username, &password, &u.GroupID, &u.GID, &u.Enabled,
		&mt, &smpps, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("scan user: %w", classify(err))
	}

	if u.Password, err = s.sealer.Unseal(password); err != nil {
		return model.User{}, fmt.Errorf("unseal password of %s: %w", u.Username, err)
	}
	if err := unmarshalColumn("mt_credential", mt, &u.MTCredential); err != nil {
		return model.User{}, err
	}
	if err := unmarshalColumn("smpps_credential", smpps, &u.SMPPCredential); err != nil {
		return model.User{}, err
	}
	return u, nil
}
