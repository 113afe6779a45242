// Package dispatch serializes execution per session and drives the single
// model invocation of an exchange: at-most-one in-flight invocation per
// session, a global concurrency bound, a hard per-invocation timeout and
// bounded retries with exponential backoff for transient invoker failures.
package dispatch
