package coordinator

import (
	"context"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/model"
)

// AddGroup creates a group locally and on the engine. The gid is
// normalized first.
func (c *Coordinator) AddGroup(ctx context.Context, g model.Group) (model.Group, error) {
	gid, err := model.GroupID(g.GID)
	if err != nil {
		return model.Group{}, compiler.Invalid(compiler.CodeInvalidIdentifier, "gid", nil, "%v", err)
	}
	g.GID = gid

	remote, err := compiler.CompileGroup(g)
	if err != nil {
		return model.Group{}, err
	}
	if _, err := c.store.GetGroupByGID(ctx, gid); err == nil {
		return model.Group{}, compiler.Duplicate("gid", "group %q already exists", gid)
	}

	m := c.begin("add_group", "group", gid)
	var created model.Group
	err = m.localFirst(ctx,
		func(ctx context.Context) error {
			created, err = c.store.CreateGroup(ctx, g)
			return createError(err, "gid", "group %q already exists", gid)
		},
		func(ctx context.Context) error {
			return c.router.AddGroup(ctx, remote, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteGroup(ctx, created.ID)
		},
	)
	if err != nil {
		return model.Group{}, err
	}
	return created, nil
}

// RemoveGroup removes a group that has no users.
func (c *Coordinator) RemoveGroup(ctx context.Context, gid string) error {
	g, err := c.store.GetGroupByGID(ctx, gid)
	if err != nil {
		return lookupError(err, "gid", "group", gid)
	}
	n, err := c.store.CountUsersInGroup(ctx, g.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return compiler.Referenced("gid", "group %q still has %d users", gid, n)
	}

	m := c.begin("remove_group", "group", gid)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.router.RemoveGroup(ctx, gid, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteGroup(ctx, g.ID)
		},
	)
}

// EnableGroup enables a group.
func (c *Coordinator) EnableGroup(ctx context.Context, gid string) error {
	g, err := c.store.GetGroupByGID(ctx, gid)
	if err != nil {
		return lookupError(err, "gid", "group", gid)
	}
	before := g

	m := c.begin("enable_group", "group", gid)
	return m.localFirst(ctx,
		func(ctx context.Context) error {
			g.Enabled = true
			_, err := c.store.UpdateGroup(ctx, g)
			return err
		},
		func(ctx context.Context) error {
			return c.router.EnableGroup(ctx, gid, c.persist)
		},
		func(ctx context.Context) error {
			_, err := c.store.UpdateGroup(ctx, before)
			return err
		},
	)
}

// DisableGroup disables a group.
func (c *Coordinator) DisableGroup(ctx context.Context, gid string) error {
	g, err := c.store.GetGroupByGID(ctx, gid)
	if err != nil {
		return lookupError(err, "gid", "group", gid)
	}

	m := c.begin("disable_group", "group", gid)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.router.DisableGroup(ctx, gid, c.persist)
		},
		func(ctx context.Context) error {
			g.Enabled = false
			_, err := c.store.UpdateGroup(ctx, g)
			return err
		},
	)
}

// ListGroups returns the local groups.
func (c *Coordinator) ListGroups(ctx context.Context) ([]model.Group, error) {
	return c.store.ListGroups(ctx)
}
