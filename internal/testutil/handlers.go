package testutil

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/quark/internal/codec"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/pb"
)

// Handlers run with e.mu held.

func (e *FakeEngine) buildHandlers() map[string]pb.HandlerFunc {
	h := map[string]pb.HandlerFunc{
		pb.OpPersist: e.persist,

		pb.OpGroupAdd:     e.groupAdd,
		pb.OpGroupRemove:  e.groupRemove,
		pb.OpGroupEnable:  e.groupSetEnabled(true),
		pb.OpGroupDisable: e.groupSetEnabled(false),
		pb.OpGroupGetAll: func(context.Context, []codec.RawMessage) (any, error) {
			return e.sortedGroups(), nil
		},

		pb.OpUserAdd:     e.userAdd,
		pb.OpUserRemove:  e.userRemove,
		pb.OpUserEnable:  e.userSetEnabled(true),
		pb.OpUserDisable: e.userSetEnabled(false),
		pb.OpUserGetAll: func(context.Context, []codec.RawMessage) (any, error) {
			return e.sortedUsers(), nil
		},

		pb.OpConnectorAdd:     e.connectorAdd,
		pb.OpConnectorRemove:  e.connectorRemove,
		pb.OpConnectorStart:   e.connectorSetStarted(true),
		pb.OpConnectorStop:    e.connectorSetStarted(false),
		pb.OpConnectorDetails: e.connectorDetails,
		pb.OpServiceStatus:    e.serviceStatus,
		pb.OpSessionState:     e.sessionState,
	}
	for _, n := range []jasmin.Nature{jasmin.MT, jasmin.MO} {
		h[pb.RouteOp(n, "add")] = e.routeAdd(n)
		h[pb.RouteOp(n, "remove")] = e.routeRemove(n)
		h[pb.RouteOp(n, "get_all")] = func(context.Context, []codec.RawMessage) (any, error) {
			return e.sortedRoutes(n), nil
		}
		h[pb.InterceptorOp(n, "add")] = e.interceptorAdd(n)
		h[pb.InterceptorOp(n, "remove")] = e.interceptorRemove(n)
	}
	return h
}

func (e *FakeEngine) persist(_ context.Context, args []codec.RawMessage) (any, error) {
	var profile string
	if err := pb.DecodeArgs(args, &profile); err != nil {
		return nil, err
	}
	if profile == "" {
		return nil, fmt.Errorf("empty profile")
	}
	e.persists++
	return true, nil
}

func (e *FakeEngine) groupAdd(_ context.Context, args []codec.RawMessage) (any, error) {
	var g jasmin.Group
	if err := pb.DecodeArgs(args, &g); err != nil {
		return nil, err
	}
	if g.GID == "" {
		return nil, fmt.Errorf("group has no gid")
	}
	if _, exists := e.groups[g.GID]; exists {
		return nil, fmt.Errorf("group %s already exists", g.GID)
	}
	e.groups[g.GID] = g
	return true, nil
}

func (e *FakeEngine) groupRemove(_ context.Context, args []codec.RawMessage) (any, error) {
	var gid string
	if err := pb.DecodeArgs(args, &gid); err != nil {
		return nil, err
	}
	if _, exists := e.groups[gid]; !exists {
		return nil, fmt.Errorf("unknown group %s", gid)
	}
	delete(e.groups, gid)
	// Removing a group removes its users.
	for uid, u := range e.users {
		if u.GID == gid {
			delete(e.users, uid)
		}
	}
	return true, nil
}

func (e *FakeEngine) groupSetEnabled(enabled bool) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		var gid string
		if err := pb.DecodeArgs(args, &gid); err != nil {
			return nil, err
		}
		g, exists := e.groups[gid]
		if !exists {
			return nil, fmt.Errorf("unknown group %s", gid)
		}
		g.Enabled = enabled
		e.groups[gid] = g
		return true, nil
	}
}

func (e *FakeEngine) userAdd(_ context.Context, args []codec.RawMessage) (any, error) {
	var u jasmin.User
	if err := pb.DecodeArgs(args, &u); err != nil {
		return nil, err
	}
	if u.UID == "" {
		return nil, fmt.Errorf("user has no uid")
	}
	if _, exists := e.groups[u.GID]; !exists {
		return nil, fmt.Errorf("unknown group %s", u.GID)
	}
	e.users[u.UID] = u
	return true, nil
}

func (e *FakeEngine) userRemove(_ context.Context, args []codec.RawMessage) (any, error) {
	var uid string
	if err := pb.DecodeArgs(args, &uid); err != nil {
		return nil, err
	}
	if _, exists := e.users[uid]; !exists {
		return nil, fmt.Errorf("unknown user %s", uid)
	}
	delete(e.users, uid)
	return true, nil
}

func (e *FakeEngine) userSetEnabled(enabled bool) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		var uid string
		if err := pb.DecodeArgs(args, &uid); err != nil {
			return nil, err
		}
		u, exists := e.users[uid]
		if !exists {
			return nil, fmt.Errorf("unknown user %s", uid)
		}
		u.Enabled = enabled
		e.users[uid] = u
		return true, nil
	}
}

func (e *FakeEngine) routeAdd(n jasmin.Nature) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		var order int
		var r jasmin.RouteWire
		if err := pb.DecodeArgs(args, &order, &r); err != nil {
			return nil, err
		}
		if order < 0 {
			return nil, fmt.Errorf("route order %d is negative", order)
		}
		if len(r.Connectors) == 0 {
			return nil, fmt.Errorf("route %s has no connectors", r.Class)
		}
		e.routes[n][order] = r
		return true, nil
	}
}

func (e *FakeEngine) routeRemove(n jasmin.Nature) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		var order int
		if err := pb.DecodeArgs(args, &order); err != nil {
			return nil, err
		}
		if _, exists := e.routes[n][order]; !exists {
			return nil, fmt.Errorf("no %s route at order %d", n, order)
		}
		delete(e.routes[n], order)
		return true, nil
	}
}

func (e *FakeEngine) interceptorAdd(n jasmin.Nature) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		var order int
		var i jasmin.InterceptorWire
		if err := pb.DecodeArgs(args, &order, &i); err != nil {
			return nil, err
		}
		if i.Script == "" {
			return nil, fmt.Errorf("interceptor %s has no script", i.Class)
		}
		e.interceptors[n][order] = i
		return true, nil
	}
}

func (e *FakeEngine) interceptorRemove(n jasmin.Nature) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		var order int
		if err := pb.DecodeArgs(args, &order); err != nil {
			return nil, err
		}
		if _, exists := e.interceptors[n][order]; !exists {
			return nil, fmt.Errorf("no %s interceptor at order %d", n, order)
		}
		delete(e.interceptors[n], order)
		return true, nil
	}
}

func (e *FakeEngine) connectorAdd(_ context.Context, args []codec.RawMessage) (any, error) {
	var cfg map[string]any
	if err := pb.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	cid, _ := cfg["id"].(string)
	if cid == "" {
		return nil, fmt.Errorf("connector config has no id")
	}
	if _, exists := e.connectors[cid]; exists {
		return nil, fmt.Errorf("connector %s already exists", cid)
	}
	e.connectors[cid] = &fakeConnector{config: cfg}
	return true, nil
}

func (e *FakeEngine) connectorRemove(_ context.Context, args []codec.RawMessage) (any, error) {
	c, cid, err := e.lookupConnector(args)
	if err != nil {
		return nil, err
	}
	if c.started {
		return nil, fmt.Errorf("connector %s is started", cid)
	}
	delete(e.connectors, cid)
	return true, nil
}

func (e *FakeEngine) connectorSetStarted(started bool) pb.HandlerFunc {
	return func(_ context.Context, args []codec.RawMessage) (any, error) {
		c, cid, err := e.lookupConnector(args)
		if err != nil {
			return nil, err
		}
		if c.started == started {
			if started {
				return nil, fmt.Errorf("connector %s is already started", cid)
			}
			return nil, fmt.Errorf("connector %s is already stopped", cid)
		}
		c.started = started
		return true, nil
	}
}

func (e *FakeEngine) connectorDetails(_ context.Context, args []codec.RawMessage) (any, error) {
	c, _, err := e.lookupConnector(args)
	if err != nil {
		return nil, err
	}
	return c.config, nil
}

func (e *FakeEngine) serviceStatus(_ context.Context, args []codec.RawMessage) (any, error) {
	c, _, err := e.lookupConnector(args)
	if err != nil {
		return nil, err
	}
	if c.started {
		return pb.ServiceStarted, nil
	}
	return 0, nil
}

func (e *FakeEngine) sessionState(_ context.Context, args []codec.RawMessage) (any, error) {
	c, _, err := e.lookupConnector(args)
	if err != nil {
		return nil, err
	}
	if c.started {
		return "BOUND_TRX", nil
	}
	return "NONE", nil
}

func (e *FakeEngine) lookupConnector(args []codec.RawMessage) (*fakeConnector, string, error) {
	var cid string
	if err := pb.DecodeArgs(args, &cid); err != nil {
		return nil, "", err
	}
	c, exists := e.connectors[cid]
	if !exists {
		return nil, cid, fmt.Errorf("unknown connector %s", cid)
	}
	return c, cid, nil
}

func (e *FakeEngine) sortedGroups() []jasmin.Group {
	out := make([]jasmin.Group, 0, len(e.groups))
	for _, g := range e.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GID < out[j].GID })
	return out
}

func (e *FakeEngine) sortedUsers() []jasmin.User {
	out := make([]jasmin.User, 0, len(e.users))
	for _, u := range e.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

func (e *FakeEngine) sortedRoutes(n jasmin.Nature) []jasmin.OrderedRoute {
	out := make([]jasmin.OrderedRoute, 0, len(e.routes[n]))
	for order, r := range e.routes[n] {
		out = append(out, jasmin.OrderedRoute{Order: order, Route: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order > out[j].Order })
	return out
}
