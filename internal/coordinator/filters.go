package coordinator

import (
	"context"

	"github.com/roach88/quark/internal/compiler"
	"github.com/roach88/quark/internal/model"
)

// AddFilter validates and stores a filter. Filters have no remote
// counterpart of their own; they travel inside the routes and interceptors
// that reference them. An empty nature defaults to every direction the
// filter type supports.
func (c *Coordinator) AddFilter(ctx context.Context, f model.Filter) (model.Filter, error) {
	f.FID = model.NormalizeID(f.FID)
	if f.FID == "" {
		return model.Filter{}, compiler.Invalid(compiler.CodeInvalidIdentifier, "fid", nil, "filter id is empty")
	}
	if f.Nature == "" {
		natures, err := compiler.FilterNatures(f.Type)
		if err != nil {
			return model.Filter{}, err
		}
		f.Nature = model.FilterAll
		if len(natures) == 1 {
			f.Nature = model.FilterNature(natures[0])
		}
	}

	compiled, err := compiler.CompileFilter(f)
	if err != nil {
		return model.Filter{}, err
	}
	if compiled.Key != "" {
		f.Param = &model.FilterParam{Key: compiled.Key, Value: compiled.Value}
	}
	if _, err := c.store.GetFilterByFID(ctx, f.FID); err == nil {
		return model.Filter{}, compiler.Duplicate("fid", "filter %q already exists", f.FID)
	}

	m := c.begin("add_filter", "filter", f.FID)
	var created model.Filter
	err = m.localOnly(ctx, func(ctx context.Context) error {
		created, err = c.store.CreateFilter(ctx, f)
		return createError(err, "fid", "filter %q already exists", f.FID)
	})
	if err != nil {
		return model.Filter{}, err
	}
	return created, nil
}

// RemoveFilter deletes a filter no route or interceptor references.
func (c *Coordinator) RemoveFilter(ctx context.Context, fid string) error {
	f, err := c.store.GetFilterByFID(ctx, fid)
	if err != nil {
		return lookupError(err, "fid", "filter", fid)
	}
	refs, err := c.store.CountFilterReferences(ctx, f.ID)
	if err != nil {
		return err
	}
	if refs > 0 {
		return compiler.Referenced("fid", "filter %q is used by %d rules", fid, refs)
	}

	m := c.begin("remove_filter", "filter", fid)
	return m.localOnly(ctx, func(ctx context.Context) error {
		return c.store.DeleteFilter(ctx, f.ID)
	})
}

// ListFilters returns the local filters.
func (c *Coordinator) ListFilters(ctx context.Context) ([]model.Filter, error) {
	return c.store.ListFilters(ctx)
}
