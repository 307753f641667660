package persist

import (
	"context"
	"errors"

	"pagetree-cli/internal/model"
)

// Fanout writes to every backend in order. All backends are attempted; the errors are joined.
type Fanout []Persister

func (f Fanout) each(fn func(p Persister) error) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := fn(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) PersistInsert(ctx context.Context, n model.Node) error {
	return f.each(func(p Persister) error { return p.PersistInsert(ctx, n) })
}

func (f Fanout) PersistUpdate(ctx context.Context, n model.Node) error {
	return f.each(func(p Persister) error { return p.PersistUpdate(ctx, n) })
}

func (f Fanout) PersistRemove(ctx context.Context, ids []string) error {
	return f.each(func(p Persister) error { return p.PersistRemove(ctx, ids) })
}

func (f Fanout) PersistReorder(ctx context.Context, nodes []model.Node) error {
	return f.each(func(p Persister) error { return p.PersistReorder(ctx, nodes) })
}
