// Package manifest implements persistence for the appcast Document.
//
// The FileRepository loads the manifest from disk and writes it back in a
// single atomic replace, so an interrupted or failed run leaves the previous
// file untouched. It exposes a Repository interface that the updater depends on.
package manifest
