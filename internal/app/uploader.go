package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// DefaultQueueWaitTimeout bounds each wait for the next batch.
const DefaultQueueWaitTimeout = time.Second

// Error stages reported to UploadEventEmitter.OnUploadError.
const (
	StageCreate    = "create"
	StageSerialize = "serialize"
	StageAppend    = "append"
	StageCommit    = "commit"
	StageQueue     = "queue"
)

// UploaderConfig holds the settings of one upload.
type UploaderConfig struct {
	ProblemID            string
	Destination          ports.Destination
	ProblemType          domain.ProblemType
	InitialConfiguration map[string]int
	Compress             bool
	Policy               ThresholdPolicy
	QueueWaitTimeout     time.Duration
}

// UploadEventEmitter is called for chunk, commit and failure events.
type UploadEventEmitter interface {
	EventEmitter
	OnChunkUploaded(index, bytes, terms int, elapsed time.Duration)
	OnCommitted(totalBytes int64, chunks, terms int, elapsed time.Duration)
	OnUploadError(err error, stage string)
}

// Uploader drains a batch source into one object. It owns the assembler,
// the compression stage and the sink; nothing else touches them once Run
// has started.
type Uploader struct {
	cfg       UploaderConfig
	store     ports.BlobStore
	logger    ports.Logger
	emitter   UploadEventEmitter
	lifecycle *Lifecycle

	mu       sync.Mutex
	started  bool
	metadata map[string]string
	handle   ports.ObjectHandle
	err      error

	sink      ports.BlobSink
	stage     Stage
	assembler *ChunkAssembler
	chunks    int
	appended  int64
	began     time.Time
}

// NewUploader creates an idle uploader. emitter may be nil.
func NewUploader(store ports.BlobStore, cfg UploaderConfig, logger ports.Logger, emitter UploadEventEmitter) *Uploader {
	if cfg.Policy == (ThresholdPolicy{}) {
		cfg.Policy = DefaultThresholdPolicy()
	}
	if cfg.QueueWaitTimeout <= 0 {
		cfg.QueueWaitTimeout = DefaultQueueWaitTimeout
	}
	var lifecycleEmitter EventEmitter
	if emitter != nil {
		lifecycleEmitter = emitter
	}
	return &Uploader{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		emitter:   emitter,
		lifecycle: NewLifecycle(logger, lifecycleEmitter),
	}
}

// SetMetadata sets the metadata the object is committed with. It must be
// called before the end-of-stream marker is pushed.
func (u *Uploader) SetMetadata(md map[string]string) {
	cp := make(map[string]string, len(md))
	for k, v := range md {
		cp[k] = v
	}
	u.mu.Lock()
	u.metadata = cp
	u.mu.Unlock()
}

// State returns the worker's lifecycle state.
func (u *Uploader) State() State {
	return u.lifecycle.State()
}

// Done is closed when the worker has committed the object or failed.
func (u *Uploader) Done() <-chan struct{} {
	return u.lifecycle.Done()
}

// Wait blocks until Done is closed or ctx ends, then returns Result.
func (u *Uploader) Wait(ctx context.Context) (ports.ObjectHandle, error) {
	if err := u.lifecycle.Wait(ctx); err != nil {
		return nil, err
	}
	return u.Result()
}

// Result returns the committed handle or the first failure. It is only
// meaningful after Done is closed.
func (u *Uploader) Result() (ports.ObjectHandle, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.handle, u.err
}

// Run drains src until the end-of-stream marker and commits the object.
// It may be called once.
func (u *Uploader) Run(ctx context.Context, src BatchSource) (handle ports.ObjectHandle, err error) {
	u.mu.Lock()
	if u.started {
		u.mu.Unlock()
		return nil, fmt.Errorf("%w: uploader already running", domain.ErrInvalidState)
	}
	u.started = true
	u.mu.Unlock()

	defer func() {
		u.release(ctx, handle, err)
	}()

	u.logger.Info("upload worker started",
		ports.String("problem_id", u.cfg.ProblemID),
		ports.String("destination", u.cfg.Destination.String()),
		ports.Bool("compress", u.cfg.Compress),
	)

	for {
		b, ok, err := src.Pop(ctx, u.cfg.QueueWaitTimeout)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if u.lifecycle.State() == StateIdle {
			if err := u.open(ctx); err != nil {
				return nil, err
			}
		}
		if b.IsEnd() {
			return u.seal(ctx)
		}
		if err := u.fold(ctx, b); err != nil {
			return nil, err
		}
	}
}

// open creates the sink and the document pipeline on the first batch.
func (u *Uploader) open(ctx context.Context) error {
	if err := u.lifecycle.TransitionTo(StateActive, "first batch"); err != nil {
		return err
	}
	u.began = time.Now()
	u.stage = NewStage(u.cfg.Compress)

	assembler, err := NewChunkAssembler(u.stage, u.cfg.ProblemType, u.cfg.InitialConfiguration)
	if err != nil {
		return err
	}
	u.assembler = assembler

	settings := ports.ContentSettings{
		ContentType:     ports.ContentTypeJSON,
		ContentEncoding: u.stage.ContentEncoding(),
	}
	sink, err := u.store.Create(ctx, u.cfg.Destination, settings)
	if err != nil {
		return u.transportError(StageCreate, err)
	}
	u.sink = sink
	return nil
}

func (u *Uploader) fold(ctx context.Context, b domain.TermBatch) error {
	if err := u.assembler.Fold(b.Terms()); err != nil {
		return err
	}
	if u.cfg.Policy.ShouldFlush(u.assembler.PendingTerms(), u.stage.Buffered()) {
		return u.flush(ctx)
	}
	return nil
}

// flush appends everything buffered by the stage as one chunk.
func (u *Uploader) flush(ctx context.Context) error {
	chunk, err := u.stage.Flush()
	if err != nil {
		return fmt.Errorf("flush compressor: %w", err)
	}
	return u.appendChunk(ctx, chunk)
}

func (u *Uploader) appendChunk(ctx context.Context, chunk []byte) error {
	terms := u.assembler.PendingTerms()
	u.assembler.ResetPending()
	if len(chunk) == 0 {
		return nil
	}

	start := time.Now()
	if err := u.sink.Append(ctx, chunk); err != nil {
		return u.transportError(StageAppend, err)
	}
	elapsed := time.Since(start)

	index := u.chunks
	u.chunks++
	u.appended += int64(len(chunk))

	u.logger.Debug("chunk appended",
		ports.String("problem_id", u.cfg.ProblemID),
		ports.Int("chunk", index),
		ports.Int("bytes", len(chunk)),
		ports.Int("terms", terms),
		ports.Duration("took", elapsed),
	)
	if u.emitter != nil {
		u.emitter.OnChunkUploaded(index, len(chunk), terms, elapsed)
	}
	return nil
}

// seal writes the trailer, finishes the stage and commits the object.
func (u *Uploader) seal(ctx context.Context) (ports.ObjectHandle, error) {
	if err := u.lifecycle.TransitionTo(StateFinishing, "end of stream"); err != nil {
		return nil, err
	}
	if err := u.assembler.Close(); err != nil {
		return nil, err
	}
	final, err := u.stage.Finish()
	if err != nil {
		return nil, fmt.Errorf("finish compressor: %w", err)
	}
	if err := u.appendChunk(ctx, final); err != nil {
		return nil, err
	}

	u.mu.Lock()
	md := u.metadata
	u.mu.Unlock()

	handle, err := u.sink.Commit(ctx, md)
	if err != nil {
		return nil, u.transportError(StageCommit, err)
	}

	elapsed := time.Since(u.began)
	u.logger.Info("object committed",
		ports.String("problem_id", u.cfg.ProblemID),
		ports.String("container", u.cfg.Destination.Container),
		ports.String("blob", u.cfg.Destination.Blob),
		ports.Int64("bytes", u.appended),
		ports.Int("chunks", u.chunks),
		ports.Int("terms", u.assembler.TermsWritten()),
		ports.Duration("took", elapsed),
	)
	if u.emitter != nil {
		u.emitter.OnCommitted(u.appended, u.chunks, u.assembler.TermsWritten(), elapsed)
	}
	return handle, nil
}

// release records the outcome and frees the stage. On failure the sink is
// aborted so no partial object is left behind.
func (u *Uploader) release(ctx context.Context, handle ports.ObjectHandle, err error) {
	if u.stage != nil {
		_ = u.stage.Close()
	}

	if err != nil && u.sink != nil {
		if abortErr := u.sink.Abort(ctx); abortErr != nil {
			u.logger.Warn("abort failed",
				ports.String("problem_id", u.cfg.ProblemID),
				ports.Err(abortErr),
			)
		}
	}

	u.mu.Lock()
	u.handle = handle
	u.err = err
	u.mu.Unlock()

	if err != nil {
		u.logger.Error("upload failed",
			ports.String("problem_id", u.cfg.ProblemID),
			ports.String("destination", u.cfg.Destination.String()),
			ports.Err(err),
		)
		if u.emitter != nil {
			u.emitter.OnUploadError(err, errorStage(err))
		}
		_ = u.lifecycle.TransitionTo(StateFailed, err.Error())
		return
	}
	_ = u.lifecycle.TransitionTo(StateDone, "committed")
}

func (u *Uploader) transportError(op string, err error) error {
	return &domain.TransportError{
		Op:        op,
		Container: u.cfg.Destination.Container,
		Blob:      u.cfg.Destination.Blob,
		Err:       err,
	}
}

func errorStage(err error) string {
	var te *domain.TransportError
	switch {
	case errors.As(err, &te):
		return te.Op
	case errors.Is(err, domain.ErrSerialization):
		return StageSerialize
	default:
		return StageQueue
	}
}
