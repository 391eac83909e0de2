package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/pkg/log"
)

type collector struct {
	mu    sync.Mutex
	terms []domain.Term
}

func (c *collector) sink(b []domain.Term) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terms = append(c.terms, b...)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.terms)
}

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFollower_UntilEndMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.jsonl")
	if err := os.WriteFile(path, []byte("{\"c\":1,\"ids\":[0]}\n{\"c\":2,"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := &collector{}
	f := NewFollower(path, 100, log.NewNoopLogger())

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := f.Run(context.Background(), c.sink)
		done <- result{n, err}
	}()

	// The complete line is delivered while the partial one is held.
	waitFor(t, func() bool { return c.len() == 1 })

	appendFile(t, path, "\"ids\":[1]}\n")
	waitFor(t, func() bool { return c.len() == 2 })

	appendFile(t, path, "{\"c\":3,\"ids\":[2]}\n{\"end\":true}\n")

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Run: %v", r.err)
		}
		if r.n != 3 {
			t.Errorf("n = %d, want 3", r.n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follower did not stop at end marker")
	}

	if !c.terms[1].Equal(domain.NewTerm(2, 1)) {
		t.Errorf("split line decoded as %v", c.terms[1])
	}
}

func TestFollower_ContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewFollower(path, 10, log.NewNoopLogger())
	_, err := f.Run(ctx, (&collector{}).sink)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want DeadlineExceeded", err)
	}
}

func TestFollower_MissingFile(t *testing.T) {
	f := NewFollower(filepath.Join(t.TempDir(), "missing.jsonl"), 10, log.NewNoopLogger())
	if _, err := f.Run(context.Background(), (&collector{}).sink); err == nil {
		t.Error("Run on a missing file succeeded")
	}
}
