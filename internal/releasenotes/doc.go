// Package releasenotes renders per-version markdown changelogs into the
// single-line HTML block embedded in manifest descriptions.
package releasenotes
