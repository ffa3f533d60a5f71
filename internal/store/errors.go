package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested record does not exist,
// including the case where it was deleted by another actor between the
// caller's read and its conditional write. Handlers should translate
// this into an HTTP 404 response.
var ErrNotFound = errors.New("record not found")

// ConflictError reports a conditional write rejected because the record
// changed since the caller read it. Current is a copy of the record as
// it exists now, so the caller can present "what changed" and let the
// user decide whether to retry. Producing a ConflictError never mutates
// the store.
type ConflictError struct {
	Attempted VersionToken
	Current   Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: attempted %s, current %s", e.Attempted, e.Current.Version)
}

// AsConflict unwraps err into a *ConflictError when it is one.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
