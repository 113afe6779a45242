// Package core defines the shared data model and collaborator interfaces of
// the invocation pipeline: sessions, turns, guardrail verdicts, the
// transient invocation request/result pair, the narrow interfaces to the
// external memory store, guardrail evaluator and agent invoker, and the
// error taxonomy used across package boundaries.
//
// Nothing in this package performs I/O; it exists so that every other
// package can depend on a single, stable vocabulary.
package core
