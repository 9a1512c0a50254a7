package poll

import (
	"context"
	"sync"
	"time"
)

// State is a snapshot of one watched job.
type State[T any] struct {
	Value   T
	Err     error
	Fetches int
	Done    bool
}

// Ready reports whether at least one fetch succeeded.
func (s State[T]) Ready() bool {
	return s.Fetches > 0
}

type watcher[T any] struct {
	cancel context.CancelFunc
	// ready is closed after the first observation or when the poller ends.
	ready     chan struct{}
	readyOnce sync.Once

	mu    sync.RWMutex
	state State[T]
	seen  time.Time
}

func (w *watcher[T]) markReady() {
	w.readyOnce.Do(func() { close(w.ready) })
}

func (w *watcher[T]) snapshot() State[T] {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Registry owns the pollers started on behalf of pages. Each watcher holds a
// lease renewed by Snapshot; once a page stops reading, the lease lapses and
// the janitor cancels the watcher.
type Registry[T any] struct {
	interval time.Duration
	lease    time.Duration
	terminal func(T) bool

	base  context.Context
	close context.CancelFunc

	mu       sync.Mutex
	watchers map[string]*watcher[T]
}

// NewRegistry creates a Registry whose pollers fetch every interval and stop
// on terminal values. Watchers not read for lease are cancelled.
func NewRegistry[T any](interval, lease time.Duration, terminal func(T) bool) *Registry[T] {
	base, cancel := context.WithCancel(context.Background())
	r := &Registry[T]{
		interval: interval,
		lease:    lease,
		terminal: terminal,
		base:     base,
		close:    cancel,
		watchers: make(map[string]*watcher[T]),
	}
	go r.janitor()
	return r
}

func (r *Registry[T]) janitor() {
	every := r.lease / 2
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-r.base.Done():
			return
		case <-ticker.C:
			r.Sweep(time.Now())
		}
	}
}

// Sweep cancels and forgets watchers whose lease had lapsed at now. It returns
// how many were removed.
func (r *Registry[T]) Sweep(now time.Time) int {
	cutoff := now.Add(-r.lease)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, w := range r.watchers {
		w.mu.RLock()
		stale := w.seen.Before(cutoff)
		w.mu.RUnlock()
		if stale {
			w.cancel()
			delete(r.watchers, key)
			n++
		}
	}
	return n
}

// Start begins polling fetch under key, replacing any watcher already there.
func (r *Registry[T]) Start(key string, fetch func(ctx context.Context) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startLocked(key, fetch)
}

func (r *Registry[T]) startLocked(key string, fetch func(ctx context.Context) (T, error)) {
	ctx, cancel := context.WithCancel(r.base)
	w := &watcher[T]{cancel: cancel, ready: make(chan struct{}), seen: time.Now()}
	if old, ok := r.watchers[key]; ok {
		old.cancel()
	}
	r.watchers[key] = w

	p := &Poller[T]{
		Interval: r.interval,
		Fetch:    fetch,
		Terminal: r.terminal,
		Observe: func(v T) {
			w.mu.Lock()
			w.state.Value = v
			w.state.Fetches++
			w.mu.Unlock()
			w.markReady()
		},
	}
	go func() {
		err := p.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		w.mu.Lock()
		w.state.Err = err
		w.state.Done = true
		w.mu.Unlock()
		w.markReady()
	}()
}

// Ensure starts a watcher under key unless one exists. It reports whether a
// new watcher was started.
func (r *Registry[T]) Ensure(key string, fetch func(ctx context.Context) (T, error)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.watchers[key]; ok {
		return false
	}
	r.startLocked(key, fetch)
	return true
}

// Snapshot returns the current state under key and renews its lease.
func (r *Registry[T]) Snapshot(key string) (State[T], bool) {
	r.mu.Lock()
	w, ok := r.watchers[key]
	r.mu.Unlock()
	if !ok {
		return State[T]{}, false
	}
	w.mu.Lock()
	w.seen = time.Now()
	w.mu.Unlock()
	return w.snapshot(), true
}

// Await blocks until the watcher under key has observed a value or finished,
// then returns its snapshot. It returns early with the current snapshot when
// ctx is done. The bool is false when no watcher exists under key.
func (r *Registry[T]) Await(ctx context.Context, key string) (State[T], bool) {
	r.mu.Lock()
	w, ok := r.watchers[key]
	r.mu.Unlock()
	if !ok {
		return State[T]{}, false
	}
	select {
	case <-w.ready:
	case <-ctx.Done():
	}
	return r.Snapshot(key)
}

// Stop cancels and forgets the watcher under key.
func (r *Registry[T]) Stop(key string) {
	r.mu.Lock()
	w, ok := r.watchers[key]
	delete(r.watchers, key)
	r.mu.Unlock()
	if ok {
		w.cancel()
	}
}

// Len returns the number of live watchers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}

// Close cancels every watcher and the janitor.
func (r *Registry[T]) Close() {
	r.close()
	r.mu.Lock()
	r.watchers = make(map[string]*watcher[T])
	r.mu.Unlock()
}
