// Package updater rewrites the appcast in a single pass.
//
// For every release entry it points the download URL at the canonical host,
// signs the artifact when a key is given and no signature is present, and
// attaches rendered release notes when the entry has no description. Delta
// entries get the same URL and signing treatment. The manifest is written
// once at the end, so any failure leaves the file on disk unchanged.
package updater
