package coordinator

import (
	"context"
	"fmt"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// RouteRequest describes a route by the natural keys of what it
// references.
type RouteRequest struct {
	Order  int              `json:"order" yaml:"order"`
	Nature jasmin.Nature    `json:"nature" yaml:"nature"`
	Kind   jasmin.RouteKind `json:"kind" yaml:"kind"`
	Rate   *float64         `json:"rate,omitempty" yaml:"rate"`
	// Connectors are cids, in priority order.
	Connectors []string `json:"connectors" yaml:"connectors"`
	// Filters are fids.
	Filters []string `json:"filters,omitempty" yaml:"filters"`
}

// InterceptorRequest describes an interceptor by the natural keys of its
// filters.
type InterceptorRequest struct {
	Order   int                    `json:"order" yaml:"order"`
	Nature  jasmin.Nature          `json:"nature" yaml:"nature"`
	Kind    jasmin.InterceptorKind `json:"kind" yaml:"kind"`
	Script  string                 `json:"script" yaml:"script"`
	Filters []string               `json:"filters,omitempty" yaml:"filters"`
}

func (c *Coordinator) resolveConnectors(ctx context.Context, cids []string) ([]model.Connector, []int64, error) {
	conns := make([]model.Connector, 0, len(cids))
	ids := make([]int64, 0, len(cids))
	for i, cid := range cids {
		conn, err := c.store.GetConnectorByCID(ctx, cid)
		if err != nil {
			return nil, nil, lookupError(err, fmt.Sprintf("connectors[%d]", i), "connector", cid)
		}
		conns = append(conns, conn)
		ids = append(ids, conn.ID)
	}
	return conns, ids, nil
}

func (c *Coordinator) resolveFilters(ctx context.Context, fids []string) ([]model.Filter, []int64, error) {
	filters := make([]model.Filter, 0, len(fids))
	ids := make([]int64, 0, len(fids))
	for i, fid := range fids {
		f, err := c.store.GetFilterByFID(ctx, fid)
		if err != nil {
			return nil, nil, lookupError(err, fmt.Sprintf("filters[%d]", i), "filter", fid)
		}
		filters = append(filters, f)
		ids = append(ids, f.ID)
	}
	return filters, ids, nil
}

func checkOrder(order int) error {
	if order < 0 {
		return compiler.Invalid(compiler.CodeInvalidIdentifier, "order", nil, "order %d is negative", order)
	}
	return nil
}

func ruleKey(n jasmin.Nature, order int) string {
	return fmt.Sprintf("%s:%d", n, order)
}

// AddRoute compiles and installs a route. The order must be free in the
// route table of its nature.
func (c *Coordinator) AddRoute(ctx context.Context, req RouteRequest) (model.Route, error) {
	if err := checkOrder(req.Order); err != nil {
		return model.Route{}, err
	}
	conns, connIDs, err := c.resolveConnectors(ctx, req.Connectors)
	if err != nil {
		return model.Route{}, err
	}
	filters, filterIDs, err := c.resolveFilters(ctx, req.Filters)
	if err != nil {
		return model.Route{}, err
	}

	r := model.Route{
		Order:        req.Order,
		Nature:       req.Nature,
		Kind:         req.Kind,
		Rate:         req.Rate,
		ConnectorIDs: connIDs,
		FilterIDs:    filterIDs,
	}
	compiled, err := compiler.CompileRoute(r, filters, conns)
	if err != nil {
		return model.Route{}, err
	}
	if r.Digest, err = compiler.RouteFingerprint(compiled); err != nil {
		return model.Route{}, fmt.Errorf("fingerprint route: %w", err)
	}
	if _, err := c.store.GetRouteByOrder(ctx, r.Nature, r.Order); err == nil {
		return model.Route{}, compiler.Duplicate("order", "%s route at order %d already exists", r.Nature, r.Order)
	}

	key := ruleKey(r.Nature, r.Order)
	m := c.begin("add_route", "route", key)
	var created model.Route
	err = m.localFirst(ctx,
		func(ctx context.Context) error {
			created, err = c.store.CreateRoute(ctx, r)
			return createError(err, "order", "%s route at order %d already exists", r.Nature, r.Order)
		},
		func(ctx context.Context) error {
			return c.router.AddRoute(ctx, r.Order, compiled, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteRoute(ctx, created.ID)
		},
	)
	if err != nil {
		return model.Route{}, err
	}
	return created, nil
}

// RemoveRoute removes the route at order from the table of nature n.
func (c *Coordinator) RemoveRoute(ctx context.Context, n jasmin.Nature, order int) error {
	key := ruleKey(n, order)
	r, err := c.store.GetRouteByOrder(ctx, n, order)
	if err != nil {
		return lookupError(err, "order", "route", key)
	}

	m := c.begin("remove_route", "route", key)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.router.RemoveRoute(ctx, n, order, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteRoute(ctx, r.ID)
		},
	)
}

// ListRoutes returns the local routes of nature n, or of both natures when
// n is empty.
func (c *Coordinator) ListRoutes(ctx context.Context, n jasmin.Nature) ([]model.Route, error) {
	return c.store.ListRoutes(ctx, n)
}

// compileStored recompiles a stored route from its current references.
func (c *Coordinator) compileStored(ctx context.Context, r model.Route) (jasmin.Route, error) {
	conns := make([]model.Connector, 0, len(r.ConnectorIDs))
	for _, id := range r.ConnectorIDs {
		conn, err := c.store.GetConnector(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load connector %d: %w", id, err)
		}
		conns = append(conns, conn)
	}
	filters := make([]model.Filter, 0, len(r.FilterIDs))
	for _, id := range r.FilterIDs {
		f, err := c.store.GetFilter(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load filter %d: %w", id, err)
		}
		filters = append(filters, f)
	}
	return compiler.CompileRoute(r, filters, conns)
}

// AddInterceptor compiles and installs an interceptor.
func (c *Coordinator) AddInterceptor(ctx context.Context, req InterceptorRequest) (model.Interceptor, error) {
	if err := checkOrder(req.Order); err != nil {
		return model.Interceptor{}, err
	}
	filters, filterIDs, err := c.resolveFilters(ctx, req.Filters)
	if err != nil {
		return model.Interceptor{}, err
	}

	i := model.Interceptor{
		Order:     req.Order,
		Nature:    req.Nature,
		Kind:      req.Kind,
		Script:    req.Script,
		FilterIDs: filterIDs,
	}
	compiled, err := compiler.CompileInterceptor(i, filters)
	if err != nil {
		return model.Interceptor{}, err
	}
	if i.Digest, err = compiler.InterceptorFingerprint(compiled); err != nil {
		return model.Interceptor{}, fmt.Errorf("fingerprint interceptor: %w", err)
	}
	if _, err := c.store.GetInterceptorByOrder(ctx, i.Nature, i.Order); err == nil {
		return model.Interceptor{}, compiler.Duplicate("order", "%s interceptor at order %d already exists", i.Nature, i.Order)
	}

	key := ruleKey(i.Nature, i.Order)
	m := c.begin("add_interceptor", "interceptor", key)
	var created model.Interceptor
	err = m.localFirst(ctx,
		func(ctx context.Context) error {
			created, err = c.store.CreateInterceptor(ctx, i)
			return createError(err, "order", "%s interceptor at order %d already exists", i.Nature, i.Order)
		},
		func(ctx context.Context) error {
			return c.router.AddInterceptor(ctx, i.Order, compiled, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteInterceptor(ctx, created.ID)
		},
	)
	if err != nil {
		return model.Interceptor{}, err
	}
	return created, nil
}

// RemoveInterceptor removes the interceptor at order from the table of
// nature n.
func (c *Coordinator) RemoveInterceptor(ctx context.Context, n jasmin.Nature, order int) error {
	key := ruleKey(n, order)
	i, err := c.store.GetInterceptorByOrder(ctx, n, order)
	if err != nil {
		return lookupError(err, "order", "interceptor", key)
	}

	m := c.begin("remove_interceptor", "interceptor", key)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.router.RemoveInterceptor(ctx, n, order, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteInterceptor(ctx, i.ID)
		},
	)
}

// ListInterceptors returns the local interceptors of nature n, or of both
// natures when n is empty.
func (c *Coordinator) ListInterceptors(ctx context.Context, n jasmin.Nature) ([]model.Interceptor, error) {
	return c.store.ListInterceptors(ctx, n)
}
