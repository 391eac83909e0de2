package streaming

import (
	"time"

	"github.com/bft-labs/termstream/internal/app"
)

// State is the lifecycle state of the upload worker.
type State int

const (
	// StateIdle means no batch has reached the worker yet.
	StateIdle State = iota
	// StateActive means chunks are being folded and appended.
	StateActive
	// StateFinishing means the end-of-stream marker arrived and the object
	// is being sealed.
	StateFinishing
	// StateDone means the object was committed.
	StateDone
	// StateFailed means the worker stopped on an error.
	StateFailed
)

func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent is emitted on every worker state transition.
type StateChangeEvent struct {
	ProblemID string
	Previous  State
	Current   State
	Reason    string
}

// ChunkUploadedEvent is emitted after each chunk is appended to the sink.
type ChunkUploadedEvent struct {
	ProblemID string
	Index     int
	Bytes     int
	Terms     int
	Duration  time.Duration
}

// CommittedEvent is emitted once the object is sealed.
type CommittedEvent struct {
	ProblemID  string
	TotalBytes int64
	Chunks     int
	Terms      int
	Duration   time.Duration
}

// UploadErrorEvent is emitted when the worker fails. Stage is one of
// "create", "serialize", "append", "commit" or "queue".
type UploadErrorEvent struct {
	ProblemID string
	Error     error
	Stage     string
}

// EventHandler receives upload events.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnChunkUploaded(ChunkUploadedEvent)
	OnCommitted(CommittedEvent)
	OnUploadError(UploadErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)     {}
func (BaseEventHandler) OnChunkUploaded(ChunkUploadedEvent) {}
func (BaseEventHandler) OnCommitted(CommittedEvent)         {}
func (BaseEventHandler) OnUploadError(UploadErrorEvent)     {}

// eventEmitterWrapper adapts EventHandler to app.UploadEventEmitter.
type eventEmitterWrapper struct {
	problemID string
	handler   EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		ProblemID: e.problemID,
		Previous:  convertState(previous),
		Current:   convertState(current),
		Reason:    reason,
	})
}

func (e *eventEmitterWrapper) OnChunkUploaded(index, bytes, terms int, elapsed time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnChunkUploaded(ChunkUploadedEvent{
		ProblemID: e.problemID,
		Index:     index,
		Bytes:     bytes,
		Terms:     terms,
		Duration:  elapsed,
	})
}

func (e *eventEmitterWrapper) OnCommitted(totalBytes int64, chunks, terms int, elapsed time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnCommitted(CommittedEvent{
		ProblemID:  e.problemID,
		TotalBytes: totalBytes,
		Chunks:     chunks,
		Terms:      terms,
		Duration:   elapsed,
	})
}

func (e *eventEmitterWrapper) OnUploadError(err error, stage string) {
	if e.handler == nil {
		return
	}
	e.handler.OnUploadError(UploadErrorEvent{
		ProblemID: e.problemID,
		Error:     err,
		Stage:     stage,
	})
}

func convertState(s app.State) State {
	switch s {
	case app.StateIdle:
		return StateIdle
	case app.StateActive:
		return StateActive
	case app.StateFinishing:
		return StateFinishing
	case app.StateDone:
		return StateDone
	case app.StateFailed:
		return StateFailed
	default:
		return StateIdle
	}
}
