// Package common holds helpers shared by several services.
//
// It detects the current system actor (hostname/username), which the updater
// records in its run marker so a blocked operator can see who holds the lock.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
