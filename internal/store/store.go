// Package store implements a versioned record store: a key-value view of
// a table in which every record carries an opaque concurrency stamp that
// changes on each successful write. Writes are conditional on the caller
// presenting the stamp it last read; a stale stamp produces a Conflict
// carrying the record's current state so the caller can show what
// changed. The check-and-write is atomic with respect to all other
// conditional operations on the same record; it is never split into a
// read followed by an unguarded write.
package store

import (
	"context"

	"github.com/google/uuid"
)

// VersionToken is the opaque concurrency stamp attached to a record. It
// is equality-comparable only; callers must never interpret its content
// or assume any ordering between tokens.
type VersionToken string

// NewVersion returns a fresh token. Every committed mutation of a record
// stamps it with a new token, so two reads that observe equal tokens are
// guaranteed to have observed the same committed state.
func NewVersion() VersionToken { return VersionToken(uuid.NewString()) }

// Record is a snapshot of one stored entity. The store owns the live
// state; a Record handed to a caller is always a copy, so mutating it
// has no effect until the copy is submitted through ConditionalUpdate.
type Record struct {
	ID      uint64
	Version VersionToken
	Fields  map[string]any
}

// Clone returns a deep copy of the record's field map so that callers
// and the store never alias the same map.
func (r Record) Clone() Record {
	fields := make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Record{ID: r.ID, Version: r.Version, Fields: fields}
}

// Mutator edits a record's fields in place. It receives a private copy;
// returning an error abandons the attempt and leaves the stored record
// untouched. Mutators must not retain the map after returning.
type Mutator func(fields map[string]any) error

// Store is the conditional read/write contract shared by the in-memory
// and MySQL implementations.
//
// ConditionalUpdate applies the mutator only when the record's current
// version equals expected, and returns the new version on success. On a
// stale version it returns a *ConflictError carrying the current record;
// on a missing record it returns ErrNotFound. ConditionalDelete follows
// the same contract without a mutator.
type Store interface {
	Get(ctx context.Context, id uint64) (Record, error)
	ConditionalUpdate(ctx context.Context, id uint64, expected VersionToken, mutate Mutator) (VersionToken, error)
	ConditionalDelete(ctx context.Context, id uint64, expected VersionToken) error
}
