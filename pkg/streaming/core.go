package streaming

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bft-labs/termstream/internal/app"
	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// launchFunc starts the worker goroutine for u, draining q.
type launchFunc func(u *app.Uploader, q app.Queue)

// core is the state shared by the blocking and the async problem. It owns
// the statistics, the queue and the uploader; the two variants differ only
// in the queue flavour and in how they wait.
type core struct {
	store    ports.BlobStore
	cfg      Config
	id       string
	logger   ports.Logger
	resolver ports.DestinationResolver
	emitter  *eventEmitterWrapper
	newQueue func() app.Queue
	launch   launchFunc
	initial  []Term

	mu       sync.Mutex
	stats    domain.ProblemStats
	target   *ports.Destination
	dst      ports.Destination
	uploader *app.Uploader
	queue    app.Queue
	startErr error
	sealing  bool
	handle   ports.ObjectHandle
	uri      string
	err      error
}

func newCore(store ports.BlobStore, cfg Config, opts []Option, newQueue func() app.Queue, launch launchFunc) (*core, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil blob store", domain.ErrInvalidConfig)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.resolver == nil {
		o.resolver = LinkedStorage(fixedContainer(cfg.ContainerName))
	}

	c := &core{
		store:    store,
		cfg:      cfg,
		id:       o.id,
		logger:   o.logger,
		resolver: o.resolver,
		emitter:  &eventEmitterWrapper{problemID: o.id, handler: o.eventHandler},
		newQueue: newQueue,
		launch:   launch,
		initial:  o.terms,
		stats:    domain.NewProblemStats(cfg.ProblemType),
	}
	return c, nil
}

// setUploadTarget overrides the resolved container and blob. Whether the
// URI carries a token still follows the resolver.
func (c *core) setUploadTarget(container, blob string) error {
	if container == "" || blob == "" {
		return fmt.Errorf("%w: container and blob must be set", domain.ErrInvalidConfig)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploader != nil || c.startErr != nil {
		return fmt.Errorf("%w: upload target set after the upload started", domain.ErrInvalidState)
	}
	c.target = &ports.Destination{Container: container, Blob: blob}
	return nil
}

// ensureStarted resolves the destination and launches the worker on first
// use. A resolution failure is sticky. Must be called with mu held.
func (c *core) ensureStarted(ctx context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	if c.uploader != nil {
		return nil
	}

	dst, err := resolve(ctx, c.resolver, c.id, c.target)
	if err != nil {
		c.startErr = fmt.Errorf("resolve destination for problem %s: %w", c.id, err)
		c.logger.Error("destination resolution failed",
			ports.String("problem_id", c.id),
			ports.Err(err),
		)
		return c.startErr
	}
	c.dst = dst

	c.uploader = app.NewUploader(c.store, app.UploaderConfig{
		ProblemID:            c.id,
		Destination:          dst,
		ProblemType:          c.cfg.ProblemType,
		InitialConfiguration: c.cfg.InitialConfiguration,
		Compress:             c.cfg.Compress,
		Policy:               c.cfg.policy(),
		QueueWaitTimeout:     c.cfg.QueueWaitTimeout,
	}, c.logger, c.emitter)
	c.queue = c.newQueue()
	c.launch(c.uploader, c.queue)
	return nil
}

// addTerms records statistics and enqueues a copy of terms.
func (c *core) addTerms(ctx context.Context, terms []Term) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil || c.sealing {
		return domain.ErrAlreadyUploaded
	}
	if err := c.ensureStarted(ctx); err != nil {
		return err
	}
	if c.uploader.State() == app.StateFailed {
		_, err := c.uploader.Result()
		return err
	}
	if len(terms) == 0 {
		return nil
	}

	batch := make([]Term, len(terms))
	copy(batch, terms)
	c.stats.Observe(batch)
	return c.queue.Push(domain.NewTermBatch(batch))
}

// prepareSeal pushes the end-of-stream marker once. done reports that the
// object was already sealed, or had failed, and uri/err are final.
func (c *core) prepareSeal(ctx context.Context) (u *app.Uploader, done bool, uri string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uri != "" || c.err != nil {
		return nil, true, c.uri, c.err
	}
	if c.sealing {
		return c.uploader, false, "", nil
	}
	if err := c.ensureStarted(ctx); err != nil {
		return nil, true, "", err
	}

	c.uploader.SetMetadata(c.stats.MergeMetadata(c.cfg.Metadata))
	if err := c.queue.Push(domain.EndOfStream); err != nil {
		return nil, true, "", err
	}
	c.sealing = true
	return c.uploader, false, "", nil
}

// finishSeal records the worker's outcome. It must run after the worker
// is done.
func (c *core) finishSeal(ctx context.Context) (string, error) {
	handle, err := c.uploader.Result()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uri != "" || c.err != nil {
		return c.uri, c.err
	}
	if err != nil {
		c.err = err
		return "", err
	}

	uri, err := handle.URI(ctx, c.dst.Explicit)
	if err != nil {
		return "", fmt.Errorf("uri for problem %s: %w", c.id, err)
	}
	c.handle = handle
	c.uri = uri
	c.logger.Info("problem uploaded",
		ports.String("problem_id", c.id),
		ports.String("destination", c.dst.String()),
		ports.Int("terms", c.stats.NumTerms),
	)
	return uri, nil
}

// download reads the committed object back.
func (c *core) download(ctx context.Context) (*Problem, error) {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	if handle == nil {
		return nil, fmt.Errorf("%w: download before upload", domain.ErrInvalidState)
	}

	data, err := c.store.Download(ctx, handle.Destination())
	if err != nil {
		return nil, fmt.Errorf("download problem %s: %w", c.id, err)
	}
	return domain.Deserialize(data, c.cfg.Name)
}

func (c *core) snapshot() domain.ProblemStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *core) state() State {
	c.mu.Lock()
	u := c.uploader
	c.mu.Unlock()
	if u == nil {
		return StateIdle
	}
	return convertState(u.State())
}

// addInitial adds the terms given with WithTerms.
func (c *core) addInitial(ctx context.Context) error {
	if len(c.initial) == 0 {
		return nil
	}
	terms := c.initial
	c.initial = nil
	return c.addTerms(ctx, terms)
}
