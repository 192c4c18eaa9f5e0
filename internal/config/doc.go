// Package config defines the settings of the appcast updater and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the canonical download host, the update namespace,
// the signer location and the filename conventions of release artifacts.
// Empty fields are filled with built-in defaults during validation.
package config
