package conflict_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arashfz/cinebook/internal/conflict"
	"github.com/arashfz/cinebook/internal/store"
)

func TestPresentCarriesLatestState(t *testing.T) {
	ce := &store.ConflictError{
		Attempted: "stale-token",
		Current: store.Record{
			ID:      7,
			Version: "current-token",
			Fields:  map[string]any{"email": "a@b.c", "full_name": "New Name"},
		},
	}

	rep := conflict.Present(ce)
	assert.Equal(t, "current-token", rep.LatestVersion)
	assert.Equal(t, "New Name", rep.LatestFields["full_name"])
	assert.NotEmpty(t, rep.Message)
}

func TestPresentIsIdempotent(t *testing.T) {
	ce := &store.ConflictError{
		Attempted: "v1",
		Current:   store.Record{ID: 1, Version: "v2", Fields: map[string]any{"k": "v"}},
	}

	first := conflict.Present(ce)
	second := conflict.Present(ce)
	assert.Equal(t, first, second)

	// Mutating a returned report must not leak into later calls.
	first.LatestFields["k"] = "tampered"
	third := conflict.Present(ce)
	assert.Equal(t, "v", third.LatestFields["k"])
}
