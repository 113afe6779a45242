// Package pipeline composes the session resolver, context assembler,
// guardrail gate, invocation dispatcher and turn persister into the single
// request lifecycle behind InvokeTurn: resolve the session, assemble bounded
// context, check the input, invoke the agent once, check the output, persist
// the exchange. Turns are persisted synchronously before the response is
// returned, so a successful return means the exchange is on record.
package pipeline
