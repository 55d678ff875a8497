package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

const interceptorColumns = `id, nature, "order", kind, script, digest, created_at, updated_at`

// CreateInterceptor inserts i with its filter links in one transaction.
func (s *Store) CreateInterceptor(ctx context.Context, i model.Interceptor) (model.Interceptor, error) {
	now := s.now()
	i.CreatedAt, i.UpdatedAt = now, now

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx, `
			INSERT INTO interceptors (nature, "order", kind, script, digest, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(i.Nature), i.Order, string(i.Kind), i.Script, i.Digest, i.CreatedAt, i.UpdatedAt)
		if err != nil {
			return err
		}
		i.ID = id
		return s.writeLinks(ctx, tx, "interceptor_filters", "interceptor_id", "filter_id", id, i.FilterIDs)
	})
	if err != nil {
		return model.Interceptor{}, fmt.Errorf("create %s interceptor %d: %w", i.Nature, i.Order, err)
	}
	return i, nil
}

// GetInterceptor returns the interceptor with id.
func (s *Store) GetInterceptor(ctx context.Context, id int64) (model.Interceptor, error) {
	return s.loadInterceptor(ctx, s.queryRow(ctx, s.db,
		`SELECT `+interceptorColumns+` FROM interceptors WHERE id = ?`, id))
}

// GetInterceptorByOrder returns the interceptor at order in the table of
// nature n.
func (s *Store) GetInterceptorByOrder(ctx context.Context, n jasmin.Nature, order int) (model.Interceptor, error) {
	return s.loadInterceptor(ctx, s.queryRow(ctx, s.db,
		`SELECT `+interceptorColumns+` FROM interceptors WHERE nature = ? AND "order" = ?`, string(n), order))
}

// ListInterceptors returns the interceptors of nature n by descending
// order. An empty n lists both natures.
func (s *Store) ListInterceptors(ctx context.Context, n jasmin.Nature) ([]model.Interceptor, error) {
	query := `SELECT ` + interceptorColumns + ` FROM interceptors`
	var args []any
	if n != "" {
		query += ` WHERE nature = ?`
		args = append(args, string(n))
	}
	query += ` ORDER BY nature, "order" DESC`

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interceptors: %w", err)
	}
	var list []model.Interceptor
	for rows.Next() {
		i, err := scanInterceptor(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, i)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interceptors: %w", err)
	}

	out := make([]model.Interceptor, 0, len(list))
	for _, i := range list {
		if i.FilterIDs, err = s.readLinks(ctx, "interceptor_filters", "interceptor_id", "filter_id", i.ID); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// UpdateInterceptor writes i's kind, script, digest and filter links.
func (s *Store) UpdateInterceptor(ctx context.Context, i model.Interceptor) (model.Interceptor, error) {
	i.UpdatedAt = s.now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `
			UPDATE interceptors SET kind = ?, script = ?, digest = ?, updated_at = ? WHERE id = ?`,
			string(i.Kind), i.Script, i.Digest, i.UpdatedAt, i.ID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		return s.replaceLinks(ctx, tx, "interceptor_filters", "interceptor_id", "filter_id", i.ID, i.FilterIDs)
	})
	if err != nil {
		return model.Interceptor{}, fmt.Errorf("update %s interceptor %d: %w", i.Nature, i.Order, err)
	}
	return i, nil
}

// DeleteInterceptor removes the interceptor with id and its links.
func (s *Store) DeleteInterceptor(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM interceptors WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete interceptor %d: %w", id, err)
	}
	return nil
}

// CountInterceptors returns the number of interceptors of both natures.
func (s *Store) CountInterceptors(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM interceptors`)
}

func (s *Store) loadInterceptor(ctx context.Context, row rowScanner) (model.Interceptor, error) {
	i, err := scanInterceptor(row)
	if err != nil {
		return model.Interceptor{}, err
	}
	if i.FilterIDs, err = s.readLinks(ctx, "interceptor_filters", "interceptor_id", "filter_id", i.ID); err != nil {
		return model.Interceptor{}, err
	}
	return i, nil
}

func scanInterceptor(row rowScanner) (model.Interceptor, error) {
	var i model.Interceptor
	var nature, kind string
	err := row.Scan(&i.ID, &nature, &i.Order, &kind, &i.Script, &i.Digest, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return model.Interceptor{}, fmt.Errorf("scan interceptor: %w", classify(err))
	}
	i.Nature = jasmin.Nature(nature)
	i.Kind = jasmin.InterceptorKind(kind)
	return i, nil
}
