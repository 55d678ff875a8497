package coordinator

import (
	"context"

	"github.com/roach88/quark/internal/engine"
	"github.com/roach88/quark/internal/jasmin"
	"github.com/roach88/quark/internal/snapshot"
)

// Source tells where a bulk read came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceEmpty  Source = "empty"
)

// Listing is the result of a bulk read. When the engine cannot be read the
// last cached snapshot is served instead, or nothing.
type Listing[T any] struct {
	Items  []T    `json:"items"`
	Source Source `json:"source"`
	// Err is the remote failure behind a cache or empty listing.
	Err error `json:"-"`
}

// GetAllGroups reads every group from the engine.
func (c *Coordinator) GetAllGroups(ctx context.Context) Listing[jasmin.Group] {
	return bulkRead(ctx, c, snapshot.KeyGroups, c.router.GetAllGroups)
}

// GetAllUsers reads every user from the engine.
func (c *Coordinator) GetAllUsers(ctx context.Context) Listing[jasmin.User] {
	return bulkRead(ctx, c, snapshot.KeyUsers, c.router.GetAllUsers)
}

func bulkRead[T any](ctx context.Context, c *Coordinator, key string, read func(context.Context) ([]T, error)) Listing[T] {
	items, err := engine.Do(ctx, c.loop, "read "+key, read)
	if err == nil {
		if items == nil {
			items = []T{}
		}
		if c.cache != nil {
			if serr := c.cache.Save(ctx, key, items); serr != nil {
				c.logger.Warn("snapshot save failed", "key", key, "error", serr)
			}
		}
		return Listing[T]{Items: items, Source: SourceRemote}
	}

	if c.cache != nil {
		var cached []T
		found, lerr := c.cache.Load(ctx, key, &cached)
		if lerr != nil {
			c.logger.Warn("snapshot load failed", "key", key, "error", lerr)
		}
		if found {
			c.logger.Warn("remote read failed, serving cached snapshot",
				"key", key,
				"items", len(cached),
				"error", err,
			)
			return Listing[T]{Items: cached, Source: SourceCache, Err: err}
		}
	}
	c.logger.Warn("remote read failed, returning empty result", "key", key, "error", err)
	return Listing[T]{Items: []T{}, Source: SourceEmpty, Err: err}
}
