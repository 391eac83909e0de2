// Package streaming builds optimization problems that upload themselves
// while terms are still being added.
//
// Terms are handed to a background worker that renders the cost function
// document, optionally gzips it, and appends it to object storage in chunks.
// The whole serialized problem is never held in memory.
//
// # Basic Usage
//
//	store := termstream.NewMemoryStore()
//	p, err := streaming.New(store, streaming.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < n; i++ {
//	    if err := p.AddTerm(1.5, i, i+1); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
//	uri, err := p.Upload()
//
// # Asynchronous Use
//
// [AsyncStreamingProblem] offers the same pipeline with context-aware
// methods. Cancelling the context passed to [AsyncStreamingProblem.Upload]
// only abandons the wait; the worker still completes the object.
//
// # Chunking
//
// A chunk is flushed once [Config.UploadTermCountThreshold] terms are
// pending or [Config.UploadSizeThresholdBytes] bytes are buffered, measured
// after compression. A final chunk closes the document on upload.
//
// # Concurrency
//
// A problem has a single producer: AddTerm, AddTerms and Upload must not be
// called concurrently with each other.
//
// # Event Handling
//
// Implement [EventHandler] and pass it via [WithEventHandler] to observe
// chunk uploads, the commit, failures and worker state changes. Events are
// called synchronously from the worker goroutine.
package streaming
