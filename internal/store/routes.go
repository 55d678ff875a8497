package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

const routeColumns = `id, nature, "order", kind, rate, digest, created_at, updated_at`

// CreateRoute inserts r with its connector and filter links in one
// transaction.
func (s *Store) CreateRoute(ctx context.Context, r model.Route) (model.Route, error) {
	now := s.now()
	r.CreatedAt, r.UpdatedAt = now, now

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insert(ctx, tx, `
			INSERT INTO routes (nature, "order", kind, rate, digest, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(r.Nature), r.Order, string(r.Kind), nullFloat(r.Rate), r.Digest, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return err
		}
		r.ID = id
		if err := s.writeLinks(ctx, tx, "route_connectors", "route_id", "connector_id", id, r.ConnectorIDs); err != nil {
			return err
		}
		return s.writeLinks(ctx, tx, "route_filters", "route_id", "filter_id", id, r.FilterIDs)
	})
	if err != nil {
		return model.Route{}, fmt.Errorf("create %s route %d: %w", r.Nature, r.Order, err)
	}
	return r, nil
}

// GetRoute returns the route with id.
func (s *Store) GetRoute(ctx context.Context, id int64) (model.Route, error) {
	return s.loadRoute(ctx, s.queryRow(ctx, s.db, `SELECT `+routeColumns+` FROM routes WHERE id = ?`, id))
}

// GetRouteByOrder returns the route at order in the table of nature n.
func (s *Store) GetRouteByOrder(ctx context.Context, n jasmin.Nature, order int) (model.Route, error) {
	return s.loadRoute(ctx, s.queryRow(ctx, s.db,
		`SELECT `+routeColumns+` FROM routes WHERE nature = ? AND "order" = ?`, string(n), order))
}

// ListRoutes returns the routes of nature n by descending order, the
// order the engine evaluates them in. An empty n lists both natures.
func (s *Store) ListRoutes(ctx context.Context, n jasmin.Nature) ([]model.Route, error) {
	query := `SELECT ` + routeColumns + ` FROM routes`
	var args []any
	if n != "" {
		query += ` WHERE nature = ?`
		args = append(args, string(n))
	}
	query += ` ORDER BY nature, "order" DESC`

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	var routes []model.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		routes = append(routes, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate routes: %w", err)
	}

	// Links are loaded after the cursor is closed: SQLite runs on a single
	// connection.
	out := make([]model.Route, 0, len(routes))
	for _, r := range routes {
		if err := s.loadRouteLinks(ctx, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// UpdateRoute writes r's kind, rate, digest and links.
func (s *Store) UpdateRoute(ctx context.Context, r model.Route) (model.Route, error) {
	r.UpdatedAt = s.now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `
			UPDATE routes SET kind = ?, rate = ?, digest = ?, updated_at = ? WHERE id = ?`,
			string(r.Kind), nullFloat(r.Rate), r.Digest, r.UpdatedAt, r.ID)
		if err := affectedOne(res, err); err != nil {
			return err
		}
		if err := s.replaceLinks(ctx, tx, "route_connectors", "route_id", "connector_id", r.ID, r.ConnectorIDs); err != nil {
			return err
		}
		return s.replaceLinks(ctx, tx, "route_filters", "route_id", "filter_id", r.ID, r.FilterIDs)
	})
	if err != nil {
		return model.Route{}, fmt.Errorf("update %s route %d: %w", r.Nature, r.Order, err)
	}
	return r, nil
}

// SetRouteDigest records the fingerprint of the route as last pushed.
func (s *Store) SetRouteDigest(ctx context.Context, id int64, digest string) error {
	res, err := s.exec(ctx, s.db, `UPDATE routes SET digest = ?, updated_at = ? WHERE id = ?`, digest, s.now(), id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("set digest of route %d: %w", id, err)
	}
	return nil
}

// DeleteRoute removes the route with id and its links.
func (s *Store) DeleteRoute(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, s.db, `DELETE FROM routes WHERE id = ?`, id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("delete route %d: %w", id, err)
	}
	return nil
}

// CountRoutes returns the number of routes of both natures.
func (s *Store) CountRoutes(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM routes`)
}

func (s *Store) loadRoute(ctx context.Context, row rowScanner) (model.Route, error) {
	r, err := scanRoute(row)
	if err != nil {
		return model.Route{}, err
	}
	if err := s.loadRouteLinks(ctx, &r); err != nil {
		return model.Route{}, err
	}
	return r, nil
}

func (s *Store) loadRouteLinks(ctx context.Context, r *model.Route) error {
	var err error
	if r.ConnectorIDs, err = s.readLinks(ctx, "route_connectors", "route_id", "connector_id", r.ID); err != nil {
		return err
	}
	r.FilterIDs, err = s.readLinks(ctx, "route_filters", "route_id", "filter_id", r.ID)
	return err
}

func scanRoute(row rowScanner) (model.Route, error) {
	var r model.Route
	var nature, kind string
	var rate sql.NullFloat64
	err := row.Scan(&r.ID, &nature, &r.Order, &kind, &rate, &r.Digest, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Route{}, fmt.Errorf("scan route: %w", classify(err))
	}
	r.Nature = jasmin.Nature(nature)
	r.Kind = jasmin.RouteKind(kind)
	if rate.Valid {
		v := rate.Float64
		r.Rate = &v
	}
	return r, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// Link tables hold (owner, target, position). Table and column names are
// constants of this package, never user input.

func (s *Store) writeLinks(ctx context.Context, q querier, table, ownerCol, targetCol string, owner int64, targets []int64) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, position) VALUES (?, ?, ?)`, table, ownerCol, targetCol)
	for pos, target := range targets {
		if _, err := s.exec(ctx, q, query, owner, target, pos); err != nil {
			return fmt.Errorf("link %s %d to %d: %w", table, owner, target, classify(err))
		}
	}
	return nil
}

func (s *Store) replaceLinks(ctx context.Context, q querier, table, ownerCol, targetCol string, owner int64, targets []int64) error {
	if _, err := s.exec(ctx, q, fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, ownerCol), owner); err != nil {
		return fmt.Errorf("clear %s of %d: %w", table, owner, err)
	}
	return s.writeLinks(ctx, q, table, ownerCol, targetCol, owner, targets)
}

func (s *Store) readLinks(ctx context.Context, table, ownerCol, targetCol string, owner int64) ([]int64, error) {
	rows, err := s.query(ctx, s.db,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY position`, targetCol, table, ownerCol), owner)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
