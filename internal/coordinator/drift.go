package coordinator

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/engine"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/model"
)

// DriftKind classifies a difference between the local store and the
// engine.
type DriftKind string

const (
	// DriftMissingRemote is a local entity the engine does not have.
	DriftMissingRemote DriftKind = "missing_remote"
	// DriftExtraRemote is an engine entity with no local record.
	DriftExtraRemote DriftKind = "extra_remote"
	// DriftMismatch is an entity present on both sides with different
	// content.
	DriftMismatch DriftKind = "mismatch"
)

// DriftItem is one difference.
type DriftItem struct {
	Entity string    `json:"entity"`
	Key    string    `json:"key"`
	Kind   DriftKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// DriftReport lists every difference found by CheckDrift.
type DriftReport struct {
	Items []DriftItem `json:"items"`
}

// InSync reports whether no difference was found.
func (r DriftReport) InSync() bool { return len(r.Items) == 0 }

func (r *DriftReport) add(entity, key string, kind DriftKind, detail string) {
	r.Items = append(r.Items, DriftItem{Entity: entity, Key: key, Kind: kind, Detail: detail})
}

// remoteState is the part of the engine's configuration drift is checked
// against.
type remoteState struct {
	groups []jasmin.Group
	users  []jasmin.User
	routes map[jasmin.Nature]map[int]string
}

func (c *Coordinator) readRemoteState(ctx context.Context) (remoteState, error) {
	return engine.Do(ctx, c.loop, "read remote state", func(ctx context.Context) (remoteState, error) {
		var st remoteState
		var err error
		if st.groups, err = c.router.GetAllGroups(ctx); err != nil {
			return st, err
		}
		if st.users, err = c.router.GetAllUsers(ctx); err != nil {
			return st, err
		}
		st.routes = make(map[jasmin.Nature]map[int]string, 2)
		for _, n := range []jasmin.Nature{jasmin.MT, jasmin.MO} {
			routes, err := c.router.GetAllRoutes(ctx, n)
			if err != nil {
				return st, err
			}
			st.routes[n] = make(map[int]string, len(routes))
			for _, r := range routes {
				fp, err := jasmin.Fingerprint(r.Route)
				if err != nil {
					return st, fmt.Errorf("fingerprint %s route %d: %w", n, r.Order, err)
				}
				st.routes[n][r.Order] = fp
			}
		}
		return st, nil
	})
}

// CheckDrift compares local groups, users and routes with the engine.
// Routes are compared by the fingerprint of their compiled form.
func (c *Coordinator) CheckDrift(ctx context.Context) (DriftReport, error) {
	remote, err := c.readRemoteState(ctx)
	if err != nil {
		return DriftReport{}, fmt.Errorf("read remote state: %w", err)
	}
	var report DriftReport

	groups, err := c.store.ListGroups(ctx)
	if err != nil {
		return DriftReport{}, err
	}
	remoteGroups := make(map[string]jasmin.Group, len(remote.groups))
	for _, g := range remote.groups {
		remoteGroups[g.GID] = g
	}
	for _, g := range groups {
		rg, ok := remoteGroups[g.GID]
		delete(remoteGroups, g.GID)
		switch {
		case !ok:
			report.add("group", g.GID, DriftMissingRemote, "")
		case rg.Enabled != g.Enabled:
			report.add("group", g.GID, DriftMismatch, fmt.Sprintf("enabled: local %t, remote %t", g.Enabled, rg.Enabled))
		}
	}
	for _, gid := range sortedKeys(remoteGroups) {
		report.add("group", gid, DriftExtraRemote, "")
	}

	users, err := c.store.ListUsers(ctx)
	if err != nil {
		return DriftReport{}, err
	}
	remoteUsers := make(map[string]jasmin.User, len(remote.users))
	for _, u := range remote.users {
		remoteUsers[u.UID] = u
	}
	for _, u := range users {
		ru, ok := remoteUsers[u.Username]
		delete(remoteUsers, u.Username)
		switch {
		case !ok:
			report.add("user", u.Username, DriftMissingRemote, "")
		case ru.GID != u.GID:
			report.add("user", u.Username, DriftMismatch, fmt.Sprintf("group: local %s, remote %s", u.GID, ru.GID))
		case ru.Enabled != u.Enabled:
			report.add("user", u.Username, DriftMismatch, fmt.Sprintf("enabled: local %t, remote %t", u.Enabled, ru.Enabled))
		}
	}
	for _, uid := range sortedKeys(remoteUsers) {
		report.add("user", uid, DriftExtraRemote, "")
	}

	for _, n := range []jasmin.Nature{jasmin.MT, jasmin.MO} {
		if err := c.routeDrift(ctx, n, remote.routes[n], &report); err != nil {
			return DriftReport{}, err
		}
	}
	return report, nil
}

func (c *Coordinator) routeDrift(ctx context.Context, n jasmin.Nature, remote map[int]string, report *DriftReport) error {
	routes, err := c.store.ListRoutes(ctx, n)
	if err != nil {
		return err
	}
	seen := make(map[int]bool, len(routes))
	for _, r := range routes {
		seen[r.Order] = true
		key := ruleKey(n, r.Order)
		fp, ok := remote[r.Order]
		if !ok {
			report.add("route", key, DriftMissingRemote, "")
			continue
		}
		local, err := c.localFingerprint(ctx, r)
		if err != nil {
			report.add("route", key, DriftMismatch, err.Error())
			continue
		}
		if local != fp {
			report.add("route", key, DriftMismatch, "fingerprint differs")
		}
	}

	orders := make([]int, 0, len(remote))
	for order := range remote {
		if !seen[order] {
			orders = append(orders, order)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(orders)))
	for _, order := range orders {
		report.add("route", ruleKey(n, order), DriftExtraRemote, "")
	}
	return nil
}

// localFingerprint recompiles r so changes to referenced connectors and
// filters show up.
func (c *Coordinator) localFingerprint(ctx context.Context, r model.Route) (string, error) {
	compiled, err := c.compileStored(ctx, r)
	if err != nil {
		return "", err
	}
	return compiler.RouteFingerprint(compiled)
}

// ResyncRoutes re-installs every local route that is missing on the engine
// or whose compiled form differs from the engine's copy, and returns how
// many were pushed. The first failure stops the resync.
func (c *Coordinator) ResyncRoutes(ctx context.Context) (int, error) {
	remote, err := c.readRemoteState(ctx)
	if err != nil {
		return 0, fmt.Errorf("read remote state: %w", err)
	}
	routes, err := c.store.ListRoutes(ctx, "")
	if err != nil {
		return 0, err
	}

	pushed := 0
	for _, r := range routes {
		compiled, err := c.compileStored(ctx, r)
		if err != nil {
			return pushed, fmt.Errorf("compile %s: %w", ruleKey(r.Nature, r.Order), err)
		}
		fp, err := compiler.RouteFingerprint(compiled)
		if err != nil {
			return pushed, err
		}
		if remote.routes[r.Nature][r.Order] == fp {
			continue
		}

		m := c.begin("resync_route", "route", ruleKey(r.Nature, r.Order))
		err = m.remoteFirst(ctx,
			func(ctx context.Context) error {
				return c.router.AddRoute(ctx, r.Order, compiled, c.persist)
			},
			func(ctx context.Context) error {
				return c.store.SetRouteDigest(ctx, r.ID, fp)
			},
		)
		if err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
