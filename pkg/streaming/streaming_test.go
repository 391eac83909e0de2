package streaming_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/bft-labs/termstream/internal/adapters/memory"
	"github.com/bft-labs/termstream/pkg/streaming"
)

func makeTerms(n int) []streaming.Term {
	terms := make([]streaming.Term, n)
	for i := range terms {
		terms[i] = streaming.NewTerm(float64(i)+0.5, i, i+1)
	}
	return terms
}

func testConfig(compress bool, termThreshold int) streaming.Config {
	cfg := streaming.DefaultConfig()
	cfg.Compress = compress
	cfg.UploadTermCountThreshold = termThreshold
	cfg.QueueWaitTimeout = 10 * time.Millisecond
	return cfg
}

func object(t *testing.T, store *memory.Store, id string) memory.Object {
	t.Helper()
	obj, ok := store.Object(streaming.Destination{Container: id, Blob: id})
	if !ok {
		t.Fatalf("no object committed for %s", id)
	}
	return obj
}

func TestStreamingProblem_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		compress bool
	}{
		{"empty", 0, false},
		{"empty compressed", 0, true},
		{"below threshold", 9, false},
		{"several chunks", 35, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			p, err := streaming.New(store, testConfig(tt.compress, 10))
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			want := makeTerms(tt.n)
			for _, term := range want {
				if err := p.AddTerm(term.Coefficient(), term.Indices()...); err != nil {
					t.Fatalf("AddTerm: %v", err)
				}
			}

			uri, err := p.Upload()
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if !strings.HasPrefix(uri, "mem://"+p.ID()+"/"+p.ID()) {
				t.Errorf("uri = %q", uri)
			}

			got, err := p.Download()
			if err != nil {
				t.Fatalf("Download: %v", err)
			}
			if got.Name != streaming.DefaultName {
				t.Errorf("Name = %q, want %q", got.Name, streaming.DefaultName)
			}
			if got.Type != streaming.Ising {
				t.Errorf("Type = %v, want ising", got.Type)
			}
			if diff := cmp.Diff(want, got.Terms, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("terms mismatch (-want +got):\n%s", diff)
			}
			if p.State() != streaming.StateDone {
				t.Errorf("State = %v, want Done", p.State())
			}
		})
	}
}

func TestStreamingProblem_ChunkCount(t *testing.T) {
	tests := []struct {
		name       string
		batches    []int
		wantChunks int
	}{
		{"zero terms", nil, 1},
		{"threshold minus one", []int{9}, 1},
		{"exactly threshold", []int{10}, 2},
		{"three thresholds", []int{10, 10, 10}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			p, err := streaming.New(store, testConfig(false, 10))
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			for _, n := range tt.batches {
				if err := p.AddTerms(makeTerms(n)); err != nil {
					t.Fatalf("AddTerms: %v", err)
				}
			}
			if _, err := p.Upload(); err != nil {
				t.Fatalf("Upload: %v", err)
			}
			if got := len(object(t, store, p.ID()).Chunks); got != tt.wantChunks {
				t.Errorf("chunks = %d, want %d", got, tt.wantChunks)
			}
		})
	}
}

func TestStreamingProblem_UploadIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	p, err := streaming.New(store, testConfig(true, 10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.AddTerms(makeTerms(25)); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}

	first, err := p.Upload()
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	chunks := len(object(t, store, p.ID()).Chunks)

	second, err := p.Upload()
	if err != nil {
		t.Fatalf("second Upload: %v", err)
	}
	if first != second {
		t.Errorf("second Upload = %q, want %q", second, first)
	}
	if got := len(object(t, store, p.ID()).Chunks); got != chunks {
		t.Errorf("chunks after second Upload = %d, want %d", got, chunks)
	}
}

func TestStreamingProblem_RejectsMutationAfterUpload(t *testing.T) {
	store := memory.NewStore()
	p, err := streaming.New(store, testConfig(false, 10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.AddTerm(1, 0, 1); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if _, err := p.Upload(); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	before := object(t, store, p.ID()).Data

	if err := p.AddTerm(2, 3); !errors.Is(err, streaming.ErrAlreadyUploaded) {
		t.Errorf("AddTerm after Upload = %v, want ErrAlreadyUploaded", err)
	}
	after := object(t, store, p.ID()).Data
	if string(before) != string(after) {
		t.Error("sealed object changed after rejected AddTerm")
	}
}

func TestStreamingProblem_DownloadBeforeUpload(t *testing.T) {
	p, err := streaming.New(memory.NewStore(), testConfig(false, 10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Download(); !errors.Is(err, streaming.ErrInvalidState) {
		t.Errorf("Download = %v, want ErrInvalidState", err)
	}
}

func TestStreamingProblem_StatsAndMetadata(t *testing.T) {
	store := memory.NewStore()
	cfg := testConfig(false, 10)
	cfg.ProblemType = streaming.PUBO
	cfg.Metadata = map[string]string{"owner": "qa", "num_terms": "override"}

	p, err := streaming.New(store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.AddTerms([]streaming.Term{
		streaming.NewTerm(1, 0, 1),
		streaming.NewTerm(1, 0, 1, 2, 3, 4),
	}); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}
	if err := p.AddTerms([]streaming.Term{
		streaming.NewTerm(1, 7),
		streaming.NewTerm(1, 0, 1, 2),
	}); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}

	stats := p.Stats()
	if stats.NumTerms != 4 || stats.MinCoupling != 1 || stats.MaxCoupling != 5 || stats.AvgCoupling != 2.75 {
		t.Errorf("stats = %+v", stats)
	}

	if _, err := p.Upload(); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	want := map[string]string{
		"type":         "pubo",
		"max_coupling": "5",
		"avg_coupling": "2.75",
		"min_coupling": "1",
		"num_terms":    "override",
		"owner":        "qa",
	}
	if diff := cmp.Diff(want, object(t, store, p.ID()).Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamingProblem_InitialTermsAndConfiguration(t *testing.T) {
	store := memory.NewStore()
	cfg := testConfig(false, 10)
	cfg.InitialConfiguration = map[string]int{"0": 1, "1": -1}

	p, err := streaming.New(store, cfg, streaming.WithID("fixed"), streaming.WithTerms(makeTerms(3)...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ID() != "fixed" {
		t.Errorf("ID = %q, want fixed", p.ID())
	}
	if p.Stats().NumTerms != 3 {
		t.Errorf("NumTerms = %d, want 3", p.Stats().NumTerms)
	}
	if _, err := p.Upload(); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	data := string(object(t, store, "fixed").Data)
	if !strings.HasPrefix(data, `{"cost_function":{"version":"1.1","type":"ising","initial_configuration":{"0":1,"1":-1},"terms":[`) {
		t.Errorf("document header = %q", data)
	}
	got, err := p.Download()
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if diff := cmp.Diff(cfg.InitialConfiguration, got.InitialConfiguration); diff != "" {
		t.Errorf("initial configuration mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamingProblem_Destinations(t *testing.T) {
	tests := []struct {
		name      string
		opts      []streaming.Option
		container string
		target    [2]string
		wantURI   string
		wantToken bool
	}{
		{
			name:    "default linked",
			opts:    []streaming.Option{streaming.WithID("p1")},
			wantURI: "mem://p1/p1",
		},
		{
			name:      "container name",
			opts:      []streaming.Option{streaming.WithID("p1")},
			container: "jobs",
			wantURI:   "mem://jobs/p1",
		},
		{
			name:      "explicit storage",
			opts:      []streaming.Option{streaming.WithID("p1"), streaming.WithResolver(streaming.ExplicitStorage("mine"))},
			wantURI:   "mem://mine/p1",
			wantToken: true,
		},
		{
			name:    "upload target keeps linked token policy",
			opts:    []streaming.Option{streaming.WithID("p1")},
			target:  [2]string{"other", "blob.json"},
			wantURI: "mem://other/blob.json",
		},
		{
			name:      "upload target keeps explicit token policy",
			opts:      []streaming.Option{streaming.WithID("p1"), streaming.WithResolver(streaming.ExplicitStorage(""))},
			target:    [2]string{"other", "blob.json"},
			wantURI:   "mem://other/blob.json",
			wantToken: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(false, 10)
			cfg.ContainerName = tt.container
			p, err := streaming.New(memory.NewStore(), cfg, tt.opts...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if tt.target[0] != "" {
				if err := p.SetUploadTarget(tt.target[0], tt.target[1]); err != nil {
					t.Fatalf("SetUploadTarget: %v", err)
				}
			}
			if err := p.AddTerm(1, 0); err != nil {
				t.Fatalf("AddTerm: %v", err)
			}
			uri, err := p.Upload()
			if err != nil {
				t.Fatalf("Upload: %v", err)
			}

			base, query, hasQuery := strings.Cut(uri, "?")
			if base != tt.wantURI {
				t.Errorf("uri = %q, want %q", base, tt.wantURI)
			}
			if hasQuery != tt.wantToken {
				t.Errorf("uri token = %v (%q), want %v", hasQuery, query, tt.wantToken)
			}
		})
	}
}

func TestStreamingProblem_SetUploadTargetAfterStart(t *testing.T) {
	p, err := streaming.New(memory.NewStore(), testConfig(false, 10))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.AddTerm(1, 0); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if err := p.SetUploadTarget("c", "b"); !errors.Is(err, streaming.ErrInvalidState) {
		t.Errorf("SetUploadTarget = %v, want ErrInvalidState", err)
	}
	if _, err := p.Upload(); err != nil {
		t.Fatalf("Upload: %v", err)
	}
}

func TestStreamingProblem_ResolutionFailureIsSticky(t *testing.T) {
	lookupErr := errors.New("workspace unreachable")
	resolver := streaming.LinkedStorage(func(context.Context, string) (string, error) {
		return "", lookupErr
	})
	p, err := streaming.New(memory.NewStore(), testConfig(false, 10), streaming.WithResolver(resolver))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.AddTerm(1, 0); !errors.Is(err, lookupErr) {
		t.Errorf("AddTerm = %v, want %v", err, lookupErr)
	}
	if _, err := p.Upload(); !errors.Is(err, lookupErr) {
		t.Errorf("Upload = %v, want %v", err, lookupErr)
	}
}

// failingStore wraps the memory store and fails appends past a limit.
type failingStore struct {
	*memory.Store
	failAfter int
	err       error
}

func (s *failingStore) Create(ctx context.Context, dst streaming.Destination, settings streaming.ContentSettings) (streaming.BlobSink, error) {
	inner, err := s.Store.Create(ctx, dst, settings)
	if err != nil {
		return nil, err
	}
	return &failingSink{BlobSink: inner, store: s}, nil
}

type failingSink struct {
	streaming.BlobSink
	store   *failingStore
	appends int
}

func (s *failingSink) Append(ctx context.Context, p []byte) error {
	s.appends++
	if s.appends > s.store.failAfter {
		return s.store.err
	}
	return s.BlobSink.Append(ctx, p)
}

func TestStreamingProblem_TransportFailureIsSticky(t *testing.T) {
	sinkErr := errors.New("connection reset")
	store := &failingStore{Store: memory.NewStore(), failAfter: 1, err: sinkErr}

	handler := &recordingHandler{}
	p, err := streaming.New(store, testConfig(false, 10), streaming.WithEventHandler(handler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.AddTerms(makeTerms(25)); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}

	_, err = p.Upload()
	if !errors.Is(err, sinkErr) || !errors.Is(err, streaming.ErrTransport) {
		t.Fatalf("Upload = %v, want transport error wrapping %v", err, sinkErr)
	}
	var te *streaming.TransportError
	if !errors.As(err, &te) || te.Op != "append" {
		t.Errorf("TransportError = %+v, want op append", te)
	}

	if _, again := p.Upload(); !errors.Is(again, sinkErr) {
		t.Errorf("second Upload = %v, want the same error", again)
	}
	if p.State() != streaming.StateFailed {
		t.Errorf("State = %v, want Failed", p.State())
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d objects, want 0", store.Len())
	}
	if store.Aborted() != 1 {
		t.Errorf("aborted = %d, want 1", store.Aborted())
	}
	if handler.errors() != 1 {
		t.Errorf("error events = %d, want 1", handler.errors())
	}
}

type recordingHandler struct {
	streaming.BaseEventHandler

	mu        sync.Mutex
	states    []streaming.State
	chunks    []streaming.ChunkUploadedEvent
	committed []streaming.CommittedEvent
	errs      []streaming.UploadErrorEvent
}

func (h *recordingHandler) OnStateChange(e streaming.StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e.Current)
}

func (h *recordingHandler) OnChunkUploaded(e streaming.ChunkUploadedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, e)
}

func (h *recordingHandler) OnCommitted(e streaming.CommittedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.committed = append(h.committed, e)
}

func (h *recordingHandler) OnUploadError(e streaming.UploadErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, e)
}

func (h *recordingHandler) errors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.errs)
}

func TestStreamingProblem_Events(t *testing.T) {
	handler := &recordingHandler{}
	p, err := streaming.New(memory.NewStore(), testConfig(false, 10),
		streaming.WithID("ev"), streaming.WithEventHandler(handler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, n := range []int{10, 5} {
		if err := p.AddTerms(makeTerms(n)); err != nil {
			t.Fatalf("AddTerms: %v", err)
		}
	}
	if _, err := p.Upload(); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	wantStates := []streaming.State{streaming.StateActive, streaming.StateFinishing, streaming.StateDone}
	if diff := cmp.Diff(wantStates, handler.states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if len(handler.chunks) != 2 {
		t.Fatalf("chunk events = %d, want 2", len(handler.chunks))
	}
	if handler.chunks[0].ProblemID != "ev" || handler.chunks[0].Terms != 10 || handler.chunks[1].Terms != 5 {
		t.Errorf("chunk events = %+v", handler.chunks)
	}
	if len(handler.committed) != 1 || handler.committed[0].Terms != 15 || handler.committed[0].Chunks != 2 {
		t.Errorf("committed events = %+v", handler.committed)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*streaming.Config)
		wantErr bool
	}{
		{"default", func(*streaming.Config) {}, false},
		{"unknown type", func(c *streaming.Config) { c.ProblemType = 42 }, true},
		{"negative size threshold", func(c *streaming.Config) { c.UploadSizeThresholdBytes = -1 }, true},
		{"negative term threshold", func(c *streaming.Config) { c.UploadTermCountThreshold = -1 }, true},
		{"negative wait", func(c *streaming.Config) { c.QueueWaitTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := streaming.DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, streaming.ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg streaming.Config
	cfg.SetDefaults()
	want := streaming.DefaultConfig()
	want.Compress = false
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("SetDefaults mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_NilStore(t *testing.T) {
	if _, err := streaming.New(nil, streaming.DefaultConfig()); !errors.Is(err, streaming.ErrInvalidConfig) {
		t.Errorf("New(nil) = %v, want ErrInvalidConfig", err)
	}
}
