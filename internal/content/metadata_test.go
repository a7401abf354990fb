package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMetadata() map[string]any {
	return map[string]any{
		"name":           "Alpha",
		"description":    "Alpha pack",
		"support":        "xsoar",
		"currentVersion": "1.0.0",
		"author":         "Tester",
		"categories":     []any{"Utilities"},
	}
}

func TestValidatePackMetadata(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msgs, err := ValidatePackMetadata(validMetadata())
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("missing required fields", func(t *testing.T) {
		meta := validMetadata()
		delete(meta, "author")
		delete(meta, "description")
		msgs, err := ValidatePackMetadata(meta)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
		// Messages come back sorted for deterministic reporting.
		assert.True(t, msgs[0] <= msgs[1])
	})

	t.Run("bad support and version", func(t *testing.T) {
		meta := validMetadata()
		meta["support"] = "vendor"
		meta["currentVersion"] = "1.0"
		msgs, err := ValidatePackMetadata(meta)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("bad marketplace enum", func(t *testing.T) {
		meta := validMetadata()
		meta["marketplaces"] = []any{"xsoar", "nope"}
		msgs, err := ValidatePackMetadata(meta)
		require.NoError(t, err)
		assert.NotEmpty(t, msgs)
	})
}
