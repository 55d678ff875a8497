package pb

import (
	"context"
	"fmt"

	"github.com/roach88/quark/internal/jasmin"
)

// Router operation names.
const (
	OpGroupAdd     = "group_add"
	OpGroupRemove  = "group_remove"
	OpGroupEnable  = "group_enable"
	OpGroupDisable = "group_disable"
	OpGroupGetAll  = "group_get_all"

	OpUserAdd     = "user_add"
	OpUserRemove  = "user_remove"
	OpUserEnable  = "user_enable"
	OpUserDisable = "user_disable"
	OpUserGetAll  = "user_get_all"
)

// RouteOp returns the route operation name for a nature, e.g.
// RouteOp(jasmin.MT, "add") is "mtroute_add".
func RouteOp(n jasmin.Nature, verb string) string {
	return fmt.Sprintf("%sroute_%s", natureLower(n), verb)
}

// InterceptorOp returns the interceptor operation name for a nature.
func InterceptorOp(n jasmin.Nature, verb string) string {
	return fmt.Sprintf("%sinterceptor_%s", natureLower(n), verb)
}

func natureLower(n jasmin.Nature) string {
	if n == jasmin.MO {
		return "mo"
	}
	return "mt"
}

// RouterClient manages the engine's users, groups, routes and
// interceptors.
type RouterClient struct {
	controlClient
}

// NewRouterClient creates a client for the router endpoint.
func NewRouterClient(d Dialer, ep Endpoint, opts ...ClientOption) *RouterClient {
	return &RouterClient{controlClient: newControlClient(d, ep, opts)}
}

// AddGroup creates a group.
func (c *RouterClient) AddGroup(ctx context.Context, g jasmin.Group, persist bool) error {
	return c.invoke(ctx, OpGroupAdd, persist, g)
}

// RemoveGroup deletes a group.
func (c *RouterClient) RemoveGroup(ctx context.Context, gid string, persist bool) error {
	return c.invoke(ctx, OpGroupRemove, persist, gid)
}

// EnableGroup enables a group.
func (c *RouterClient) EnableGroup(ctx context.Context, gid string, persist bool) error {
	return c.invoke(ctx, OpGroupEnable, persist, gid)
}

// DisableGroup disables a group.
func (c *RouterClient) DisableGroup(ctx context.Context, gid string, persist bool) error {
	return c.invoke(ctx, OpGroupDisable, persist, gid)
}

// GetAllGroups lists the groups known to the engine.
func (c *RouterClient) GetAllGroups(ctx context.Context) ([]jasmin.Group, error) {
	var out []jasmin.Group
	if err := c.read(ctx, OpGroupGetAll, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddUser creates a user, or replaces the user with the same uid.
func (c *RouterClient) AddUser(ctx context.Context, u jasmin.User, persist bool) error {
	return c.invoke(ctx, OpUserAdd, persist, u)
}

// RemoveUser deletes a user.
func (c *RouterClient) RemoveUser(ctx context.Context, uid string, persist bool) error {
	return c.invoke(ctx, OpUserRemove, persist, uid)
}

// EnableUser enables a user.
func (c *RouterClient) EnableUser(ctx context.Context, uid string, persist bool) error {
	return c.invoke(ctx, OpUserEnable, persist, uid)
}

// DisableUser disables a user.
func (c *RouterClient) DisableUser(ctx context.Context, uid string, persist bool) error {
	return c.invoke(ctx, OpUserDisable, persist, uid)
}

// GetAllUsers lists the users known to the engine.
func (c *RouterClient) GetAllUsers(ctx context.Context) ([]jasmin.User, error) {
	var out []jasmin.User
	if err := c.read(ctx, OpUserGetAll, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddRoute installs a route at order in the table of its nature.
func (c *RouterClient) AddRoute(ctx context.Context, order int, r jasmin.Route, persist bool) error {
	return c.invoke(ctx, RouteOp(r.Nature(), "add"), persist, order, r.Wire())
}

// RemoveRoute removes the route at order.
func (c *RouterClient) RemoveRoute(ctx context.Context, n jasmin.Nature, order int, persist bool) error {
	return c.invoke(ctx, RouteOp(n, "remove"), persist, order)
}

// GetAllRoutes lists the route table of a nature.
func (c *RouterClient) GetAllRoutes(ctx context.Context, n jasmin.Nature) ([]jasmin.OrderedRoute, error) {
	var out []jasmin.OrderedRoute
	if err := c.read(ctx, RouteOp(n, "get_all"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddInterceptor installs an interceptor at order.
func (c *RouterClient) AddInterceptor(ctx context.Context, order int, i jasmin.Interceptor, persist bool) error {
	return c.invoke(ctx, InterceptorOp(i.Nature(), "add"), persist, order, i.Wire())
}

// RemoveInterceptor removes the interceptor at order.
func (c *RouterClient) RemoveInterceptor(ctx context.Context, n jasmin.Nature, order int, persist bool) error {
	return c.invoke(ctx, InterceptorOp(n, "remove"), persist, order)
}
