// Package conflict turns rejected conditional writes into data a caller
// can act on. Presenting a conflict is a pure transformation: it never
// touches storage and never retries on the caller's behalf; whether to
// resubmit against the latest state is always a user decision, so that
// a legitimate concurrent edit is reviewed rather than silently masked.
package conflict

import (
	"github.com/arashfz/cinebook/internal/store"
)

// Report is the caller-facing shape of a version conflict. LatestFields
// and LatestVersion describe the record as it exists now; resubmitting
// with LatestVersion after reviewing the fields is the supported retry
// path.
type Report struct {
	Message       string         `json:"message"`
	LatestFields  map[string]any `json:"latest_fields"`
	LatestVersion string         `json:"latest_version"`
}

// Present maps a *store.ConflictError to a Report. Calling it any number
// of times on the same error yields identical output.
func Present(ce *store.ConflictError) Report {
	fields := make(map[string]any, len(ce.Current.Fields))
	for k, v := range ce.Current.Fields {
		fields[k] = v
	}
	return Report{
		Message:       "the record was modified by someone else; review the current values and retry",
		LatestFields:  fields,
		LatestVersion: string(ce.Current.Version),
	}
}
