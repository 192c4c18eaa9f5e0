// Package signer produces signatures for release artifacts.
//
// The Signer interface is the capability the updater depends on. Exec runs
// an external signing helper as `helper <artifact> <key>` and returns what it
// prints; the signature itself is treated as an opaque string.
package signer
