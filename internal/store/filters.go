package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

const filterColumns = `id, fid, type, nature, param, created_at, updated_at`

// CreateFilter inserts f.
func (s *Store) CreateFilter(ctx context.Context, f model.Filter) (model.Filter, error) {
	param, err := filterParam(f)
	if err != nil {
		return model.Filter{}, fmt.Errorf("create filter %s: %w", f.FID, err)
	}

	now := s.now()
	f.CreatedAt, f.UpdatedAt = now, now
	id, err := s.insert(ctx, s.db, `
		INSERT INTO filters (fid, type, nature, param, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.FID, string(f.Type), string(f.Nature), param, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return model.Filter{}, fmt.Errorf("create filter %s: %w", f.FID, err)
	}
	f.ID = id
	return f, nil
}

// GetFilter returns the filter with id.
func (s *Store) GetFilter(ctx context.Context, id int64) (model.Filter, error) {
	return scanFilter(s.queryRow(ctx, s.db, `SELECT `+filterColumns+` FROM filters WHERE id = ?`, id))
}

// GetFilterByFID returns the filter with fid.
func (s *Store) GetFilterByFID(ctx context.Context, fid string) (model.Filter, error) {
	return scanFilter(s.queryRow(ctx, s.db, `SELECT `+filterColumns+` FROM filters WHERE fid = ?`, fid))
}

// ListFilters returns every filter ordered by fid.
func (s *Store) ListFilters(ctx context.Context) ([]model.Filter, error) {
	rows, err := s.query(ctx, s.db, `SELECT `+filterColumns+` FROM filters ORDER BY fid`)
	if err != nil {
		return nil, fmt.Errorf("query filters: %w", err)
	}
	defer rows.Close()

	out := []model.Filter{}
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filters: %w", err)
	}
	return out, nil
}

// UpdateFilter writes f's nature and parameter.
func (s *Store) UpdateFilter(ctx context.Context, f model.Filter) (model.Filter, error) {
	param, err := filterParam(f)
	if err != nil {
		return model.Filter{}, fmt.Errorf("update filter %s: %w", f.FID, err)
	}

	f.UpdatedAt = s.now()
	res, err := s.exec(ctx, s.db, `
		UPDATE filters SET nature = ?, param = ?, updated_at = ? WHERE id = ?`,
		string(f.Nature), param, f.UpdatedAt, f.ID)
	if err := affectedOne(res, err); err != nil {
		return model.Filter{}, fmt.Errorf("update filter %s: %w", f.FID, err)
	}
	return f, nil
}

// DeleteFilter removes the filter with id. Filters used by a rule are
// ErrReferenced.
func (s *Store) DeleteFilter(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM filters WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete filter %d: %w", id, err)
	}
	return nil
}

// CountFilters returns the number of filters.
func (s *Store) CountFilters(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM filters`)
}

// CountFilterReferences returns how many routes and interceptors use the
// filter.
func (s *Store) CountFilterReferences(ctx context.Context, id int64) (int, error) {
	return s.count(ctx, `
		SELECT (SELECT COUNT(DISTINCT route_id) FROM route_filters WHERE filter_id = ?)
		     + (SELECT COUNT(DISTINCT interceptor_id) FROM interceptor_filters WHERE filter_id = ?)`,
		id, id)
}

func filterParam(f model.Filter) (sql.NullString, error) {
	if f.Param == nil {
		return sql.NullString{}, nil
	}
	data, err := marshalColumn("param", f.Param)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: data, Valid: true}, nil
}

func scanFilter(row rowScanner) (model.Filter, error) {
	var f model.Filter
	var typ, nature string
	var param sql.NullString
	err := row.Scan(&f.ID, &f.FID, &typ, &nature, &param, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return model.Filter{}, fmt.Errorf("scan filter: %w", classify(err))
	}
	f.Type = jasmin.FilterType(typ)
	f.Nature = model.FilterNature(nature)
	if param.Valid {
		f.Param = &model.FilterParam{}
		if err := unmarshalColumn("param", param.String, f.Param); err != nil {
			return model.Filter{}, err
		}
	}
	return f, nil
}
