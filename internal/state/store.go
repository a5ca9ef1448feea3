// Package state implements [INSTALLSTATE]: a per-session-key record of
// the last bundle hash installed into that session's VM, checked before
// re-uploading into a VM the pool reused. Two backends are
// provided: a filesystem store for local development and a Postgres
// store for production, the same dev/prod split the teacher draws
// between its in-process state and its pgx-backed database.
package state

import "context"

// Store is the persistence boundary [POOL] consults before installing
// a bundle into a session's VM.
type Store interface {
	GetInstalledHash(ctx context.Context, sessionKey string) (hash string, found bool, err error)
	SetInstalledHash(ctx context.Context, sessionKey, hash string) error
}
