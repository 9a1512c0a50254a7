// Package poll runs the fetch-until-terminal loops behind the strategy and
// content pages. A Poller fetches once immediately and then once per tick,
// never overlapping two fetches, until the value is terminal, a fetch fails or
// its context is cancelled.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrNoFetch is returned by Run when the Poller has no Fetch function.
var ErrNoFetch = errors.New("poll: fetch function is required")

// Poller repeatedly fetches a value of type T.
type Poller[T any] struct {
	// Interval is the wait between the end of one fetch and the next.
	Interval time.Duration
	// Fetch loads the current value.
	Fetch func(ctx context.Context) (T, error)
	// Terminal reports whether polling should stop after v. Nil means never.
	Terminal func(v T) bool
	// Observe is called with every successfully fetched value, terminal included.
	Observe func(v T)
}

// Run polls until a terminal value (returns nil), a fetch error (returns it) or
// ctx cancellation (returns ctx.Err()).
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.Fetch == nil {
		return ErrNoFetch
	}
	interval := p.Interval
	if interval <= 0 {
		interval = time.Second
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if p.Observe != nil {
			p.Observe(v)
		}
		if p.Terminal != nil && p.Terminal(v) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
