package store

import "sync"

// gate is the single reader/writer lock arbitrating between per-row
// operations (shared mode, may interleave freely) and whole-database
// snapshot replace/backup (exclusive mode). Exclusive mode closes and
// reopens the SQLite handle, so it must not begin until every in-flight
// shared operation has finished, and no shared operation may begin until
// it ends. Isolation between concurrent shared-mode transactions is the
// engine's job, not the gate's.
type gate struct {
	sync.RWMutex
}
