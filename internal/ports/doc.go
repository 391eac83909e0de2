// Package ports defines the interfaces (ports) that connect the uploader core
// to infrastructure adapters.
//
// Ports are the boundaries between the streaming core and the outside world.
// They define what the core needs from object storage and destination
// discovery without specifying how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [BlobStore]: Opens append/commit sinks and downloads sealed objects
//   - [BlobSink]: Ordered append of byte chunks, sealed by a single commit
//   - [ObjectHandle]: A committed object and its addressable location
//   - [DestinationResolver]: Picks the container and blob for a new problem
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them for the local
// file system, memory, S3-compatible stores and Google Cloud Storage.
package ports
