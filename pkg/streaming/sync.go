package streaming

import (
	"context"

	"github.com/bft-labs/termstream/internal/app"
)

// StreamingProblem is an append-only problem builder whose terms are
// uploaded in the background while it is being built. Upload blocks until
// the object is committed.
type StreamingProblem struct {
	core *core
}

// New creates a StreamingProblem that writes to store.
//
// The destination is resolved and the worker started on the first
// AddTerms call, or on Upload when no terms are added.
func New(store BlobStore, cfg Config, opts ...Option) (*StreamingProblem, error) {
	launch := func(u *app.Uploader, q app.Queue) {
		go func() {
			_, _ = u.Run(context.Background(), q)
		}()
	}
	newQueue := func() app.Queue { return app.NewBlockingQueue() }

	c, err := newCore(store, cfg, opts, newQueue, launch)
	if err != nil {
		return nil, err
	}
	if err := c.addInitial(context.Background()); err != nil {
		return nil, err
	}
	return &StreamingProblem{core: c}, nil
}

// ID returns the problem ID, which is also the default blob name.
func (p *StreamingProblem) ID() string {
	return p.core.id
}

// SetUploadTarget fixes the container and blob the problem is written to.
// It must be called before the first term is added.
func (p *StreamingProblem) SetUploadTarget(container, blob string) error {
	return p.core.setUploadTarget(container, blob)
}

// AddTerm adds the term c * x[indices[0]] * x[indices[1]] * ...
func (p *StreamingProblem) AddTerm(c float64, indices ...int) error {
	return p.AddTerms([]Term{NewTerm(c, indices...)})
}

// AddTerms queues terms for upload and updates the statistics.
// It returns ErrAlreadyUploaded once Upload has been called.
func (p *StreamingProblem) AddTerms(terms []Term) error {
	return p.core.addTerms(context.Background(), terms)
}

// Upload seals the problem and blocks until the object is committed,
// returning its URI. Later calls return the same URI, or the same error if
// the upload failed.
func (p *StreamingProblem) Upload() (string, error) {
	u, done, uri, err := p.core.prepareSeal(context.Background())
	if done {
		return uri, err
	}
	<-u.Done()
	return p.core.finishSeal(context.Background())
}

// Download fetches the committed object and decodes it.
// It returns ErrInvalidState before Upload has succeeded.
func (p *StreamingProblem) Download() (*Problem, error) {
	return p.core.download(context.Background())
}

// Stats returns a copy of the coupling statistics.
func (p *StreamingProblem) Stats() ProblemStats {
	return p.core.snapshot()
}

// State returns the worker's state.
func (p *StreamingProblem) State() State {
	return p.core.state()
}
