package streaming

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/termstream/internal/app"
)

// AsyncStreamingProblem is the context-driven variant of StreamingProblem.
// Its worker waits on a cooperative queue, and Upload can be abandoned by
// cancelling its context.
type AsyncStreamingProblem struct {
	core  *core
	group *errgroup.Group
}

// NewAsync creates an AsyncStreamingProblem that writes to store.
//
// ctx scopes destination resolution for any WithTerms terms. Its
// cancellation does not stop the worker.
func NewAsync(ctx context.Context, store BlobStore, cfg Config, opts ...Option) (*AsyncStreamingProblem, error) {
	p := &AsyncStreamingProblem{group: &errgroup.Group{}}
	workerCtx := context.WithoutCancel(ctx)
	launch := func(u *app.Uploader, q app.Queue) {
		p.group.Go(func() error {
			_, err := u.Run(workerCtx, q)
			return err
		})
	}
	newQueue := func() app.Queue { return app.NewAsyncQueue() }

	c, err := newCore(store, cfg, opts, newQueue, launch)
	if err != nil {
		return nil, err
	}
	p.core = c
	if err := c.addInitial(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the problem ID, which is also the default blob name.
func (p *AsyncStreamingProblem) ID() string {
	return p.core.id
}

// SetUploadTarget fixes the container and blob the problem is written to.
// It must be called before the first term is added.
func (p *AsyncStreamingProblem) SetUploadTarget(container, blob string) error {
	return p.core.setUploadTarget(container, blob)
}

// AddTerm adds the term c * x[indices[0]] * x[indices[1]] * ...
func (p *AsyncStreamingProblem) AddTerm(ctx context.Context, c float64, indices ...int) error {
	return p.AddTerms(ctx, []Term{NewTerm(c, indices...)})
}

// AddTerms queues terms for upload and updates the statistics. ctx scopes
// destination resolution on the first call.
func (p *AsyncStreamingProblem) AddTerms(ctx context.Context, terms []Term) error {
	return p.core.addTerms(ctx, terms)
}

// Upload seals the problem and waits for the commit, returning its URI.
// If ctx ends first, Upload returns ctx.Err() and the worker keeps going; a
// later Upload picks up the result.
func (p *AsyncStreamingProblem) Upload(ctx context.Context) (string, error) {
	u, done, uri, err := p.core.prepareSeal(ctx)
	if done {
		return uri, err
	}
	select {
	case <-u.Done():
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return p.core.finishSeal(ctx)
}

// Wait blocks until the worker goroutine has returned and reports its
// error, if any. It returns nil immediately if the worker never started.
func (p *AsyncStreamingProblem) Wait() error {
	return p.group.Wait()
}

// Download fetches the committed object and decodes it.
// It returns ErrInvalidState before Upload has succeeded.
func (p *AsyncStreamingProblem) Download(ctx context.Context) (*Problem, error) {
	return p.core.download(ctx)
}

// Stats returns a copy of the coupling statistics.
func (p *AsyncStreamingProblem) Stats() ProblemStats {
	return p.core.snapshot()
}

// State returns the worker's state.
func (p *AsyncStreamingProblem) State() State {
	return p.core.state()
}
