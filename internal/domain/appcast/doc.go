// Package appcast models a Sparkle-style update manifest.
//
// A Document wraps the parsed XML tree and exposes its release entries
// (<item> elements) and the delta entries nested in them. Entries are views
// over the tree: setters mutate attributes in place, so serializing the
// Document after a pass yields the updated manifest with its comments,
// CDATA sections and namespace prefixes intact.
package appcast
