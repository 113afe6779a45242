// Package session maps an (actor, optional session name) pair to a canonical
// session record, generating opaque session ids when the caller supplies
// none and creating sessions idempotently through the memory store.
package session
