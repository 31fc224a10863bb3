// Package store keeps a SQLite history of keymap snapshots.
package store

import (
	"errors"
	"time"

	"nativekeymap/internal/keymap"
)

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("store: snapshot not found")

// Record is one stored keymap snapshot with the layout identity it was
// taken under.
type Record struct {
	ID      int64
	TakenAt time.Time

	Platform  string
	Layout    string
	HasLayout bool
	Language  string
	Installed []string

	Digest   [32]byte
	Snapshot keymap.Snapshot
}

// Summary is a Record without its snapshot, for listings.
type Summary struct {
	ID       int64
	TakenAt  time.Time
	Platform string
	Layout   string
	Language string
	Digest   [32]byte
	Keys     int
}
