// Package testutil provides shared fakes and builders for package tests:
// a memory store wrapper with switchable failure injection and a scripted
// agent invoker.
package testutil
