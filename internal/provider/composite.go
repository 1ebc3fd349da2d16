package provider

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/value"
)

// composite runs every member concurrently. A required member failure fails
// the whole fetch and cancels the rest; an optional one is logged and left
// empty. Merged composites concatenate member rows in declaration order,
// otherwise the members are keyed by id in a single object.
func (p *Pipeline) composite(ctx context.Context, ds config.DataSource, s config.CompositeSource) (value.Dataset, error) {
	results := make([]value.Dataset, len(s.Sources))
	failed := make([]bool, len(s.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range s.Sources {
		member := m.Data
		if member.Timeout <= 0 {
			member.Timeout = ds.Timeout
		}
		g.Go(func() error {
			rows, err := p.rows(gctx, member)
			if err == nil {
				results[i] = rows
				return nil
			}
			if m.Optional && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				p.logger.Warn("optional source failed", "source", m.ID, "error", err)
				failed[i] = true
				return nil
			}
			var fe *FetchError
			if errors.As(err, &fe) {
				return &FetchError{Kind: fe.Kind, Source: m.ID, Detail: fe.Error(), Err: err}
			}
			return fmt.Errorf("source %s: %w", m.ID, err)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var doc value.Value
	if s.Merge {
		var merged []value.Value
		for _, rows := range results {
			merged = append(merged, rows...)
		}
		doc = value.Array(merged...)
	} else {
		fields := make([]value.Field, len(s.Sources))
		for i, m := range s.Sources {
			v := value.Null()
			if !failed[i] {
				v = value.Array(results[i]...)
			}
			fields[i] = value.Field{Key: m.ID, Value: v}
		}
		doc = value.Object(fields...)
	}
	return Items(doc, ds.Items)
}
