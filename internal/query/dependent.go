package query

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Billy-Davies-2/pokemon-teams-ui/internal/errors"
	"github.com/Billy-Davies-2/pokemon-teams-ui/internal/logger"
)

// Status is the lifecycle state of a dependent query
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusNotFound
	StatusCreating
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusNotFound:
		return "not_found"
	case StatusCreating:
		return "creating"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ChildError reports a failed child fetch during the join step
type ChildError struct {
	Index int
	ID    any
	Err   error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("child %v: %v", e.ID, e.Err)
}

func (e *ChildError) Unwrap() error {
	return e.Err
}

// Result is a snapshot of a dependent query
type Result[R, C any] struct {
	Status     Status
	RootID     string
	Root       R
	HasRoot    bool
	Children   []C
	Refreshing bool
	// Created is set when the root record was synthesized during the load
	Created  bool
	RootErr  error
	ChildErr error
}

// Loading reports whether the query has nothing to show yet
func (r Result[R, C]) Loading() bool {
	switch r.Status {
	case StatusLoading, StatusNotFound, StatusCreating:
		return true
	}
	return false
}

// Err returns the root error if any, otherwise the child error
func (r Result[R, C]) Err() error {
	if r.RootErr != nil {
		return r.RootErr
	}
	return r.ChildErr
}

// Config describes how a dependent query reaches its root record and the
// children the root references.
type Config[R, C any, ID comparable] struct {
	Name      string
	RootKey   func(rootID string) Key
	FetchRoot func(ctx context.Context, rootID string) (R, error)
	// CreateRoot, when set, synthesizes a missing root record. It is only used
	// when FetchRoot fails with a NotFoundError.
	CreateRoot func(ctx context.Context, rootID string) (R, error)
	ChildIDs   func(root R) []ID
	ChildKey   func(rootID string, ids []ID) Key
	FetchChild func(ctx context.Context, id ID) (C, error)
	// SkipMissing drops children whose fetch fails with a NotFoundError
	// instead of failing the join.
	SkipMissing bool
	// Concurrency limits parallel child fetches. Zero means unlimited.
	Concurrency int
}

// Dependent fetches a root record, then fans out to the children it
// references and joins them in reference order.
type Dependent[R, C any, ID comparable] struct {
	cfg   Config[R, C, ID]
	cache *Cache

	mu       sync.Mutex
	rootID   string
	gen      uint64
	childKey Key
	result   Result[R, C]
}

// NewDependent creates a dependent query over cache
func NewDependent[R, C any, ID comparable](cache *Cache, cfg Config[R, C, ID]) *Dependent[R, C, ID] {
	if cfg.Name == "" {
		cfg.Name = "query"
	}
	return &Dependent[R, C, ID]{
		cfg:   cfg,
		cache: cache,
	}
}

// SetRoot switches the query to a new root. Results still in flight for the
// previous root are discarded when they resolve.
func (d *Dependent[R, C, ID]) SetRoot(rootID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rootID == d.rootID {
		return
	}
	d.rootID = rootID
	d.gen++
	d.childKey = nil
	d.result = Result[R, C]{Status: StatusIdle, RootID: rootID}
}

// RootID returns the current root
func (d *Dependent[R, C, ID]) RootID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rootID
}

// Result returns the last committed snapshot
func (d *Dependent[R, C, ID]) Result() Result[R, C] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// Load evaluates the query for the current root and returns the resulting
// snapshot. If the root changed while loading, the stale result is dropped
// and the current snapshot is returned instead.
func (d *Dependent[R, C, ID]) Load(ctx context.Context) Result[R, C] {
	d.mu.Lock()
	gen, rootID := d.gen, d.rootID
	if rootID == "" {
		d.result = Result[R, C]{Status: StatusIdle}
		res := d.result
		d.mu.Unlock()
		return res
	}
	if d.result.HasRoot {
		d.result.Refreshing = true
	} else {
		d.result.Status = StatusLoading
	}
	d.mu.Unlock()

	res := d.run(ctx, gen, rootID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.gen {
		logger.Debug("Discarding result for previous root", "query", d.cfg.Name, "root", rootID, "current", d.rootID)
		return d.result
	}
	d.result = res
	return res
}

func (d *Dependent[R, C, ID]) run(ctx context.Context, gen uint64, rootID string) Result[R, C] {
	rootKey := d.cfg.RootKey(rootID)
	fetchRoot := func(ctx context.Context) (R, error) {
		return d.cfg.FetchRoot(ctx, rootID)
	}

	res := Result[R, C]{RootID: rootID}

	root, err := Fetch(ctx, d.cache, rootKey, fetchRoot)
	if err != nil && d.cfg.CreateRoot != nil && apperrors.IsNotFound(err) {
		d.setStatus(gen, StatusNotFound)
		root, res.Created, err = d.createRoot(ctx, gen, rootID, rootKey, fetchRoot)
	}
	if err != nil {
		logger.Warn("Root fetch failed", "query", d.cfg.Name, "root", rootID, "error", err)
		res.Status = StatusError
		res.RootErr = err
		return res
	}

	res.Root = root
	res.HasRoot = true

	ids := d.cfg.ChildIDs(root)
	if len(ids) == 0 {
		res.Status = StatusReady
		res.Children = []C{}
		return res
	}

	// Don't fan out for a root that is no longer current
	if !d.current(gen) {
		return res
	}

	childKey := d.cfg.ChildKey(rootID, ids)
	d.mu.Lock()
	if gen == d.gen {
		d.childKey = childKey
	}
	d.mu.Unlock()

	children, err := Fetch(ctx, d.cache, childKey, func(ctx context.Context) ([]C, error) {
		return d.fanOut(ctx, rootID, ids)
	})
	if err != nil {
		logger.Warn("Child fetch failed", "query", d.cfg.Name, "root", rootID, "error", err)
		res.Status = StatusError
		res.ChildErr = err
		return res
	}

	res.Status = StatusReady
	res.Children = children
	return res
}

// createRoot drives NotFound -> Creating -> Created. Loads of the same root
// share one flight, and the flight checks the service again before creating,
// so a load that saw NotFound just before another load's create finished
// does not create twice. A conflict from the service means some other
// writer created the record first. created is false in both cases.
func (d *Dependent[R, C, ID]) createRoot(ctx context.Context, gen uint64, rootID string, rootKey Key, fetchRoot func(context.Context) (R, error)) (root R, created bool, err error) {
	v, err, _ := d.cache.share(ctx, "create\x1f"+rootKey.String(), func(ctx context.Context) (any, error) {
		_, err := d.cfg.FetchRoot(ctx, rootID)
		if err == nil {
			logger.Debug("Root appeared before create", "query", d.cfg.Name, "root", rootID)
			return false, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, err
		}

		d.setStatus(gen, StatusCreating)
		logger.Info("Creating missing root record", "query", d.cfg.Name, "root", rootID)
		if _, err = d.cfg.CreateRoot(ctx, rootID); err != nil {
			if apperrors.IsConflict(err) {
				logger.Info("Root created concurrently", "query", d.cfg.Name, "root", rootID)
				return false, nil
			}
			return nil, fmt.Errorf("create %s %s: %w", d.cfg.Name, rootID, err)
		}
		return true, nil
	})
	if err != nil {
		return root, false, err
	}
	created, _ = v.(bool)

	// Not-found results are never cached, so this goes back to the service
	root, err = Fetch(ctx, d.cache, rootKey, fetchRoot)
	return root, created && err == nil, err
}

func (d *Dependent[R, C, ID]) fanOut(ctx context.Context, rootID string, ids []ID) ([]C, error) {
	results := make([]C, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if d.cfg.Concurrency > 0 {
		g.SetLimit(d.cfg.Concurrency)
	}

	for i, id := range ids {
		g.Go(func() error {
			child, err := d.cfg.FetchChild(gctx, id)
			if err != nil {
				if d.cfg.SkipMissing && apperrors.IsNotFound(err) {
					logger.Warn("Skipping missing child", "query", d.cfg.Name, "root", rootID, "id", id)
					return nil
				}
				return &ChildError{Index: i, ID: id, Err: err}
			}
			results[i] = child
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Join in reference order, not completion order
	out := make([]C, 0, len(ids))
	for i := range results {
		if found[i] {
			out = append(out, results[i])
		}
	}
	return out, nil
}

func (d *Dependent[R, C, ID]) current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen
}

func (d *Dependent[R, C, ID]) setStatus(gen uint64, s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen == d.gen && !d.result.HasRoot {
		d.result.Status = s
	}
}

// affectedBy reports whether an invalidation of prefix touches this query
func (d *Dependent[R, C, ID]) affectedBy(prefix Key) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rootID == "" {
		return false
	}
	if prefix.Overlaps(d.cfg.RootKey(d.rootID)) {
		return true
	}
	return d.childKey != nil && prefix.Overlaps(d.childKey)
}

// Watch re-runs Load whenever the cache invalidates the root key or the
// current child key. onLoad, if not nil, receives every reloaded snapshot.
// The subscription is in place when Watch returns; the returned channel is
// closed once ctx is done and the watcher has stopped.
func (d *Dependent[R, C, ID]) Watch(ctx context.Context, onLoad func(Result[R, C])) <-chan struct{} {
	ch := d.cache.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer d.cache.Unsubscribe(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case prefix, ok := <-ch:
				if !ok {
					return
				}
				if !d.affectedBy(prefix) {
					continue
				}
				logger.Debug("Reloading after invalidation", "query", d.cfg.Name, "prefix", prefix)
				res := d.Load(ctx)
				if onLoad != nil {
					onLoad(res)
				}
			}
		}
	}()

	return done
}
