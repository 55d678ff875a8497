package store

import (
	"context"
	"fmt"

	"github.com/roach88/quark/internal/model"
)

const groupColumns = `id, gid, description, enabled, created_at, updated_at`

// CreateGroup inserts g and returns it with its id and timestamps set.
func (s *Store) CreateGroup(ctx context.Context, g model.Group) (model.Group, error) {
	now := s.now()
	g.CreatedAt, g.UpdatedAt = now, now

	id, err := s.insert(ctx, s.db, `
		INSERT INTO user_groups (gid, description, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		g.GID, g.Description, g.Enabled, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return model.Group{}, fmt.Errorf("create group %s: %w", g.GID, err)
	}
	g.ID = id
	return g, nil
}

// GetGroup returns the group with id.
func (s *Store) GetGroup(ctx context.Context, id int64) (model.Group, error) {
	return scanGroup(s.queryRow(ctx, s.db, `SELECT `+groupColumns+` FROM user_groups WHERE id = ?`, id))
}

// GetGroupByGID returns the group with gid.
func (s *Store) GetGroupByGID(ctx context.Context, gid string) (model.Group, error) {
	return scanGroup(s.queryRow(ctx, s.db, `SELECT `+groupColumns+` FROM user_groups WHERE gid = ?`, gid))
}

// ListGroups returns every group ordered by gid.
func (s *Store) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+groupColumns+` FROM user_groups ORDER BY gid`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	groups := []model.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// UpdateGroup writes g's description and enabled flag.
func (s *Store) UpdateGroup(ctx context.Context, g model.Group) (model.Group, error) {
	g.UpdatedAt = s.now()
	res, err := s.exec(ctx, s.db, `
		UPDATE user_groups SET description = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		g.Description, g.Enabled, g.UpdatedAt, g.ID)
	if err := affectedOne(res, err); err != nil {
		return model.Group{}, fmt.Errorf("update group %s: %w", g.GID, err)
	}
	return g, nil
}

// DeleteGroup removes the group with id. Groups with users are
// ErrReferenced.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM user_groups WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}
	return nil
}

// CountGroups returns the number of groups.
func (s *Store) CountGroups(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM user_groups`)
}

// CountUsersInGroup returns the number of users in the group with id.
func (s *Store) CountUsersInGroup(ctx context.Context, id int64) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM users WHERE group_id = ?`, id)
}

func scanGroup(row rowScanner) (model.Group, error) {
	var g model.Group
	err := row.Scan(&g.ID, &g.GID, &g.Description, &g.Enabled, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return model.Group{}, fmt.Errorf("scan group: %w", classify(err))
	}
	return g, nil
}
