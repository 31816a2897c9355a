package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/internal/graph"
)

func TestNormalizeEntity(t *testing.T) {
	t.Parallel()

	t.Run("CanonicalPassthrough", func(t *testing.T) {
		in := &graph.Entity{Type: graph.EntityPerson, Name: "Alice"}

		out, err := normalizeEntity(in)

		require.NoError(t, err)
		assert.Same(t, in, out)
	})

	t.Run("CanonicalDefaultsType", func(t *testing.T) {
		out, err := normalizeEntity(&graph.Entity{Name: "untyped"})

		require.NoError(t, err)
		assert.Equal(t, graph.EntityNote, out.Type)
	})

	t.Run("MapPayload", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{
			"name":     "Roadmap",
			"type":     "project",
			"content":  "Q3 planning",
			"tags":     []string{"planning", "q3"},
			"metadata": map[string]any{"owner": "alice"},
		})

		require.NoError(t, err)
		assert.Equal(t, "Roadmap", out.Name)
		assert.Equal(t, graph.EntityProject, out.Type)
		assert.Equal(t, "Q3 planning", out.Content)
		assert.Equal(t, []string{"planning", "q3"}, out.Tags)
		assert.Equal(t, "alice", out.Metadata["owner"])
	})

	t.Run("AlternateTypeKeys", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{"name": "a", "entity_type": "task"})
		require.NoError(t, err)
		assert.Equal(t, graph.EntityTask, out.Type)

		out, err = normalizeEntity(map[string]any{"name": "b", "entityType": "person"})
		require.NoError(t, err)
		assert.Equal(t, graph.EntityPerson, out.Type)
	})

	t.Run("TypeDefaultsToNote", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{"name": "plain"})

		require.NoError(t, err)
		assert.Equal(t, graph.EntityNote, out.Type)
		assert.Nil(t, out.Metadata)
	})

	t.Run("IntegerIDBecomesLegacyMetadata", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{"name": "old", "id": 7})

		require.NoError(t, err)
		legacy, ok := out.LegacyID()
		assert.True(t, ok)
		assert.Equal(t, 7, legacy)
	})

	t.Run("JSONNumberIDBecomesLegacyMetadata", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{"name": "old", "id": float64(12)})

		require.NoError(t, err)
		legacy, ok := out.LegacyID()
		assert.True(t, ok)
		assert.Equal(t, 12, legacy)
	})

	t.Run("StringIDIsNotLegacy", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{"name": "new", "id": "stable-uuid"})

		require.NoError(t, err)
		_, ok := out.LegacyID()
		assert.False(t, ok)
	})

	t.Run("ObservationsFoldedIntoMetadata", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{
			"name":         "Alice",
			"observations": []any{"likes go", "dislikes yaml"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"likes go", "dislikes yaml"}, out.Observations())
	})

	t.Run("TagsDropNonStrings", func(t *testing.T) {
		out, err := normalizeEntity(map[string]any{
			"name": "mixed",
			"tags": []any{"keep", 3, "also"},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"keep", "also"}, out.Tags)
	})

	t.Run("UnsupportedPayload", func(t *testing.T) {
		_, err := normalizeEntity(42)

		assert.Error(t, err)
	})
}

func TestParseRelation(t *testing.T) {
	t.Parallel()

	t.Run("CamelCaseKeys", func(t *testing.T) {
		parsed, err := parseRelation(map[string]any{
			"from":         "src",
			"to":           "dst",
			"relationType": "depends_on",
		})

		require.NoError(t, err)
		assert.Equal(t, "src", parsed.Source)
		assert.Equal(t, "dst", parsed.Target)
		assert.Equal(t, "depends_on", parsed.Type)
		assert.Equal(t, graph.DefaultStrength, parsed.Strength)
	})

	t.Run("SnakeCaseKeys", func(t *testing.T) {
		parsed, err := parseRelation(map[string]any{
			"source_id":     "src",
			"target_id":     "dst",
			"relation_type": "mentions",
		})

		require.NoError(t, err)
		assert.Equal(t, "src", parsed.Source)
		assert.Equal(t, "dst", parsed.Target)
		assert.Equal(t, "mentions", parsed.Type)
	})

	t.Run("IntegerEndpointsPassThrough", func(t *testing.T) {
		parsed, err := parseRelation(map[string]any{
			"from":         1,
			"to":           2,
			"relationType": "relates_to",
		})

		require.NoError(t, err)
		assert.Equal(t, 1, parsed.Source)
		assert.Equal(t, 2, parsed.Target)
	})

	t.Run("MissingTypeFails", func(t *testing.T) {
		_, err := parseRelation(map[string]any{"from": "a", "to": "b"})

		assert.ErrorContains(t, err, "relation type is required")
	})

	t.Run("StrengthOverride", func(t *testing.T) {
		parsed, err := parseRelation(map[string]any{
			"from":         "a",
			"to":           "b",
			"relationType": "similar_to",
			"strength":     0.25,
		})

		require.NoError(t, err)
		assert.Equal(t, 0.25, parsed.Strength)
	})

	t.Run("MetadataCarried", func(t *testing.T) {
		parsed, err := parseRelation(map[string]any{
			"from":         "a",
			"to":           "b",
			"relationType": "references",
			"metadata":     map[string]any{"line": 42},
		})

		require.NoError(t, err)
		assert.Equal(t, 42, parsed.Metadata["line"])
	})
}

func TestIntValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		want int
		ok   bool
	}{
		{"Int", 5, 5, true},
		{"Int64", int64(9), 9, true},
		{"WholeFloat", float64(3), 3, true},
		{"FractionalFloat", 3.5, 0, false},
		{"String", "7", 0, false},
		{"Nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := intValue(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStringList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, stringList([]string{"a", "b"}))
	assert.Equal(t, []string{"x"}, stringList([]any{"x", 1, true}))
	assert.Nil(t, stringList("not a list"))
	assert.Nil(t, stringList(nil))
}
