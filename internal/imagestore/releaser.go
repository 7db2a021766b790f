package imagestore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Releaser is a fire-and-forget deletion queue for image payloads. Editing
// operations that orphan an image enqueue its ref here; the deletion happens
// off the request path and failures are logged, never surfaced. The document
// itself is never blocked or rolled back by a failed release.
type Releaser struct {
	store  Store
	logger *slog.Logger

	queue chan string

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewReleaser creates a releaser draining into the given store.
func NewReleaser(store Store, logger *slog.Logger) *Releaser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Releaser{
		store:  store,
		logger: logger,
		queue:  make(chan string, 256),
	}
}

// Start begins processing queued releases.
func (r *Releaser) Start(ctx context.Context) {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run()
}

// Stop drains the remaining queue and shuts the worker down.
func (r *Releaser) Stop() {
	r.stopOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
		r.cancel()
	})
}

// Enqueue queues a ref for deletion. Never blocks the caller: if the queue
// is full or already closed the ref is dropped with a warning.
func (r *Releaser) Enqueue(ref string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("releaser closed, dropping image release", "ref", ref)
		}
	}()

	select {
	case r.queue <- ref:
	default:
		r.logger.Warn("release queue full, dropping image release", "ref", ref)
	}
}

func (r *Releaser) run() {
	defer r.wg.Done()
	for ref := range r.queue {
		err := r.store.Release(r.ctx, ref)
		switch {
		case err == nil:
			r.logger.Debug("released image", "ref", ref)
		case errors.Is(err, ErrNotReleasable):
			// Remote-hosted payload, nothing to delete.
		default:
			r.logger.Warn("failed to release image", "ref", ref, "error", err)
		}
	}
}
