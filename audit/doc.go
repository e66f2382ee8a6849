// Package audit implements async event dispatching for admission decisions.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher] — buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] — structured record with timestamp, type, user, identifier, IP, metadata.
//   - [Redact] — masks credential-bearing metadata values before delivery.
//
// # Architecture boundaries
//
// This package owns event buffering, redaction, and sink delivery. It does NOT
// decide which events to emit — that responsibility belongs to the Engine and
// the middleware.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authcore or any sibling package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
