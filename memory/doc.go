// Package memory provides MemoryStore implementations backing the pipeline's
// append-only conversation log: a process-local in-memory store for tests and
// ephemeral demo servers, and a durable SQLite store for production use.
package memory
