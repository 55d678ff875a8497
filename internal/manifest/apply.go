package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/coordinator"
	"github.com/roach88/quark/internal/model"
)

// Target receives the entities of a manifest. *coordinator.Coordinator
// implements it.
type Target interface {
	AddGroup(ctx context.Context, g model.Group) (model.Group, error)
	AddUser(ctx context.Context, u model.User) (model.User, error)
	AddConnector(ctx context.Context, c model.Connector) (model.Connector, error)
	AddFilter(ctx context.Context, f model.Filter) (model.Filter, error)
	AddRoute(ctx context.Context, r coordinator.RouteRequest) (model.Route, error)
	AddInterceptor(ctx context.Context, i coordinator.InterceptorRequest) (model.Interceptor, error)
}

// Result counts what Apply did.
type Result struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// step is one entity to create.
type step struct {
	entity string
	key    string
	add    func(ctx context.Context) error
}

func (m *Manifest) steps(t Target) []step {
	var steps []step
	for _, g := range m.Groups {
		steps = append(steps, step{"group", g.GID, func(ctx context.Context) error {
			_, err := t.AddGroup(ctx, g.model())
			return err
		}})
	}
	for _, u := range m.Users {
		steps = append(steps, step{"user", u.Username, func(ctx context.Context) error {
			_, err := t.AddUser(ctx, u.model())
			return err
		}})
	}
	for _, c := range m.Connectors {
		steps = append(steps, step{"connector", c.CID(), func(ctx context.Context) error {
			_, err := t.AddConnector(ctx, c.model())
			return err
		}})
	}
	for _, f := range m.Filters {
		steps = append(steps, step{"filter", f.FID, func(ctx context.Context) error {
			_, err := t.AddFilter(ctx, f.model())
			return err
		}})
	}
	for _, r := range m.Routes {
		steps = append(steps, step{"route", fmt.Sprintf("%s:%d", r.Nature, r.Order), func(ctx context.Context) error {
			_, err := t.AddRoute(ctx, r)
			return err
		}})
	}
	for _, i := range m.Interceptors {
		steps = append(steps, step{"interceptor", fmt.Sprintf("%s:%d", i.Nature, i.Order), func(ctx context.Context) error {
			_, err := t.AddInterceptor(ctx, i)
			return err
		}})
	}
	return steps
}

// Apply creates every entity of m through t. Entities that already exist
// are skipped. The first other failure stops the run; the result counts
// what was done before it.
func (m *Manifest) Apply(ctx context.Context, t Target, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res Result
	for _, s := range m.steps(t) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := s.add(ctx)
		switch {
		case err == nil:
			res.Applied++
			logger.Info("manifest entity applied", "entity", s.entity, "key", s.key)
		case errors.Is(err, compiler.ErrDuplicate):
			res.Skipped++
			logger.Debug("manifest entity exists, skipping", "entity", s.entity, "key", s.key)
		default:
			return res, fmt.Errorf("%s %s: %w", s.entity, s.key, err)
		}
	}
	return res, nil
}
