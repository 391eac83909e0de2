package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/termstream/internal/ports"
)

// ErrFileGone is returned when a followed file is removed or renamed
// before the end marker.
var ErrFileGone = errors.New("source: followed file removed")

// Follower tails a JSONL file that another process is still writing,
// delivering terms as lines are completed.
type Follower struct {
	path      string
	batchSize int
	logger    ports.Logger
}

// NewFollower creates a follower for path.
func NewFollower(path string, batchSize int, logger ports.Logger) *Follower {
	return &Follower{path: path, batchSize: batchSize, logger: logger}
}

// Run delivers terms to sink until the end marker is read or ctx ends.
// Whatever has been batched is flushed each time the reader catches up with
// the writer. It returns the number of terms delivered.
func (f *Follower) Run(ctx context.Context, sink Sink) (int, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return 0, fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch before the first read so no write between EOF and Add is missed.
	if err := watcher.Add(f.path); err != nil {
		return 0, fmt.Errorf("watch %s: %w", f.path, err)
	}

	file, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer file.Close()

	f.logger.Info("following terms", ports.String("path", f.path))

	d := newDecoder(f.batchSize)
	buf := make([]byte, readSize)
	for {
		end, err := f.drain(file, d, buf, sink)
		if err != nil {
			return d.total, err
		}
		if end {
			return d.total, d.flush(sink)
		}
		if err := d.flush(sink); err != nil {
			return d.total, err
		}

		if err := f.wait(ctx, watcher); err != nil {
			return d.total, err
		}
	}
}

// drain reads file up to its current end.
func (f *Follower) drain(file *os.File, d *decoder, buf []byte, sink Sink) (bool, error) {
	for {
		n, err := file.Read(buf)
		if n > 0 {
			end, ferr := d.feed(buf[:n], sink)
			if ferr != nil || end {
				return end, ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("read %s: %w", f.path, err)
		}
	}
}

// wait blocks until the file is written again.
func (f *Follower) wait(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("source: watcher closed")
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return fmt.Errorf("%w: %s", ErrFileGone, f.path)
			}
			if event.Op&fsnotify.Write != 0 {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("source: watcher closed")
			}
			f.logger.Warn("watcher error", ports.String("path", f.path), ports.Err(err))
		}
	}
}
