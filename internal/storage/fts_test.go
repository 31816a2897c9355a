package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/engram-ai/engram-go/internal/graph"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "SingleWord",
			input:    "alice",
			expected: []string{"alice"},
		},
		{
			name:     "SnakeCase",
			input:    "relation_type",
			expected: []string{"relation_type", "relation", "type"},
		},
		{
			name:     "CamelCase",
			input:    "UserService",
			expected: []string{"userservice", "user", "service"},
		},
		{
			name:     "DotNotation",
			input:    "user.validate",
			expected: []string{"user.validate", "user", "validate"},
		},
		{
			name:     "NumberBoundary",
			input:    "HTTP2",
			expected: []string{"http2", "http"},
		},
		{
			name:     "Sentence",
			input:    "Alice presented the roadmap",
			expected: []string{"alice", "presented", "roadmap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tokens := tokenize(tt.input)
			for _, expected := range tt.expected {
				assert.Contains(t, tokens, expected)
			}
		})
	}

	t.Run("ShortTokensDropped", func(t *testing.T) {
		t.Parallel()
		tokens := tokenize("a b go")

		assert.Equal(t, []string{"go"}, tokens)
	})

	t.Run("MultiWordTextIsNotOneToken", func(t *testing.T) {
		t.Parallel()
		tokens := tokenize("Alice presented")

		assert.NotContains(t, tokens, "alice presented")
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, tokenize(""))
	})
}

func TestEntityText(t *testing.T) {
	t.Parallel()

	t.Run("CombinesSearchableFields", func(t *testing.T) {
		t.Parallel()
		entity := &graph.Entity{
			Name:    "Alice",
			Content: "platform engineer",
			Tags:    []string{"team"},
		}
		entity.SetObservations([]string{"likes hiking"})

		text := entityText(entity)

		assert.Contains(t, text, "Alice")
		assert.Contains(t, text, "platform engineer")
		assert.Contains(t, text, "team")
		assert.Contains(t, text, "likes hiking")
	})

	t.Run("LongContentCapped", func(t *testing.T) {
		t.Parallel()
		entity := &graph.Entity{
			Name:    "big",
			Content: strings.Repeat("x", indexedContentCap+100) + " needle",
		}

		assert.NotContains(t, entityText(entity), "needle")
	})
}

func TestEntityTokenFreqs(t *testing.T) {
	t.Parallel()

	entity := &graph.Entity{Name: "Alice", Content: "alice works with Bob"}

	freqs := entityTokenFreqs(entity)

	assert.Contains(t, freqs, "alice")
	assert.Contains(t, freqs, "works")
	assert.Contains(t, freqs, "bob")
}
