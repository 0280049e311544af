package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternsEmptySession(t *testing.T) {
	store := newTestStore(t, 0)

	patterns, err := store.Patterns("nothing-here")
	require.NoError(t, err)

	assert.Equal(t, 0, patterns.TotalQueries)
	assert.Equal(t, "N/A", patterns.SessionDuration)
	assert.Empty(t, patterns.Patterns)
	assert.Equal(t, "No data available", patterns.Insights)
}

func TestPatternsRecurringTopics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0)

	queries := []string{
		"analyze BRCA1 mutation impact",
		"compare BRCA1 expression in tumors",
		"BRCA1 structural domains",
		"unrelated question entirely",
	}
	for _, q := range queries {
		_, err := store.Store(ctx, "session-1", record(q, "answer"))
		require.NoError(t, err)
	}

	patterns, err := store.Patterns("session-1")
	require.NoError(t, err)

	assert.Equal(t, 4, patterns.TotalQueries)
	assert.Contains(t, patterns.Patterns, "brca1", "words recurring across queries surface as patterns")
	assert.NotContains(t, patterns.Patterns, "unrelated", "one-off words are not patterns")
	assert.Equal(t, "Session contains 4 memory items.", patterns.Insights)
}
