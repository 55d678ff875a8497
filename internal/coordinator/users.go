package coordinator

import (
	"context"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/model"
)

// AddUser creates a user in an existing group. Empty credential bundles
// get the defaults.
func (c *Coordinator) AddUser(ctx context.Context, u model.User) (model.User, error) {
	g, err := c.store.GetGroupByGID(ctx, u.GID)
	if err != nil {
		return model.User{}, lookupError(err, "group", "group", u.GID)
	}
	u.GroupID = g.ID
	model.ApplyUserDefaults(&u)

	remote, err := compiler.CompileUser(u, true)
	if err != nil {
		return model.User{}, err
	}
	if _, err := c.store.GetUserByUsername(ctx, u.Username); err == nil {
		return model.User{}, compiler.Duplicate("username", "user %q already exists", u.Username)
	}

	m := c.begin("add_user", "user", u.Username)
	var created model.User
	err = m.localFirst(ctx,
		func(ctx context.Context) error {
			created, err = c.store.CreateUser(ctx, u)
			return createError(err, "username", "user %q already exists", u.Username)
		},
		func(ctx context.Context) error {
			return c.router.AddUser(ctx, remote, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteUser(ctx, created.ID)
		},
	)
	if err != nil {
		return model.User{}, err
	}
	created.GID = g.GID
	return created, nil
}

// RemoveUser removes a user.
func (c *Coordinator) RemoveUser(ctx context.Context, username string) error {
	u, err := c.store.GetUserByUsername(ctx, username)
	if err != nil {
		return lookupError(err, "username", "user", username)
	}

	m := c.begin("remove_user", "user", username)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.router.RemoveUser(ctx, username, c.persist)
		},
		func(ctx context.Context) error {
			return c.store.DeleteUser(ctx, u.ID)
		},
	)
}

// EnableUser enables a user.
func (c *Coordinator) EnableUser(ctx context.Context, username string) error {
	u, err := c.store.GetUserByUsername(ctx, username)
	if err != nil {
		return lookupError(err, "username", "user", username)
	}
	before := u

	m := c.begin("enable_user", "user", username)
	return m.localFirst(ctx,
		func(ctx context.Context) error {
			u.Enabled = true
			_, err := c.store.UpdateUser(ctx, u)
			return err
		},
		func(ctx context.Context) error {
			return c.router.EnableUser(ctx, username, c.persist)
		},
		func(ctx context.Context) error {
			_, err := c.store.UpdateUser(ctx, before)
			return err
		},
	)
}

// DisableUser disables a user.
func (c *Coordinator) DisableUser(ctx context.Context, username string) error {
	u, err := c.store.GetUserByUsername(ctx, username)
	if err != nil {
		return lookupError(err, "username", "user", username)
	}

	m := c.begin("disable_user", "user", username)
	return m.remoteFirst(ctx,
		func(ctx context.Context) error {
			return c.router.DisableUser(ctx, username, c.persist)
		},
		func(ctx context.Context) error {
			u.Enabled = false
			_, err := c.store.UpdateUser(ctx, u)
			return err
		},
	)
}

// CredentialUpdate changes a user's password or credential bundles. Nil
// fields are left as they are.
type CredentialUpdate struct {
	Password       *string
	MTCredential   *model.CredentialBundle
	SMPPCredential *model.CredentialBundle
}

// UpdateUserCredentials rewrites a user on the engine with new
// credentials. Quotas are sent as updates since the user already exists.
func (c *Coordinator) UpdateUserCredentials(ctx context.Context, username string, upd CredentialUpdate) (model.User, error) {
	before, err := c.store.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, lookupError(err, "username", "user", username)
	}

	u := before
	if upd.Password != nil {
		u.Password = *upd.Password
	}
	if upd.MTCredential != nil {
		u.MTCredential = *upd.MTCredential
	}
	if upd.SMPPCredential != nil {
		u.SMPPCredential = *upd.SMPPCredential
	}
	remote, err := compiler.CompileUser(u, false)
	if err != nil {
		return model.User{}, err
	}

	m := c.begin("update_user_credentials", "user", username)
	var updated model.User
	err = m.localFirst(ctx,
		func(ctx context.Context) error {
			updated, err = c.store.UpdateUser(ctx, u)
			return err
		},
		func(ctx context.Context) error {
			return c.router.AddUser(ctx, remote, c.persist)
		},
		func(ctx context.Context) error {
			_, err := c.store.UpdateUser(ctx, before)
			return err
		},
	)
	if err != nil {
		return model.User{}, err
	}
	return updated, nil
}

// ListUsers returns the local users.
func (c *Coordinator) ListUsers(ctx context.Context) ([]model.User, error) {
	return c.store.ListUsers(ctx)
}
