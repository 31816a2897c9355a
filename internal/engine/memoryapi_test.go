package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-ai/engram-go/internal/graph"
)

func TestEngine_CreateEntities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("CreatesNewEntities", func(t *testing.T) {
		eng := setupTestEngine(t)

		created, err := eng.CreateEntities(ctx, []map[string]any{
			{"name": "Alice", "type": "person"},
			{"name": "Roadmap", "type": "project"},
		})

		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "Alice", created[0].Name)
		assert.Equal(t, graph.EntityProject, created[1].Type)
	})

	t.Run("ExistingNameSkipped", func(t *testing.T) {
		eng := setupTestEngine(t)
		_, err := eng.CreateEntity(ctx, map[string]any{"name": "Alice", "type": "person"})
		require.NoError(t, err)

		created, err := eng.CreateEntities(ctx, []map[string]any{
			{"name": "Alice", "type": "person"},
			{"name": "Charlie", "type": "person"},
		})

		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "Charlie", created[0].Name)

		all, err := eng.Repository().GetAllEntities(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("DuplicateWithinBatchSkipped", func(t *testing.T) {
		eng := setupTestEngine(t)

		created, err := eng.CreateEntities(ctx, []map[string]any{
			{"name": "Alice"},
			{"name": "Alice"},
		})

		require.NoError(t, err)
		assert.Len(t, created, 1)
	})

	t.Run("NameMatchIsCaseInsensitive", func(t *testing.T) {
		eng := setupTestEngine(t)
		_, err := eng.CreateEntity(ctx, map[string]any{"name": "Alice"})
		require.NoError(t, err)

		created, err := eng.CreateEntities(ctx, []map[string]any{{"name": "alice"}})

		require.NoError(t, err)
		assert.Empty(t, created)
	})
}

func TestEngine_CreateRelations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("CreatesNewRelations", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, bob, project, _, _ := seedTeamGraph(t, eng)

		created, err := eng.CreateRelations(ctx, []map[string]any{
			{"from": alice.ID, "to": bob.ID, "relationType": "relates_to"},
			{"from": bob.ID, "to": project.ID, "relationType": "part_of"},
		})

		require.NoError(t, err)
		assert.Len(t, created, 2)
	})

	t.Run("DuplicateTripleSkipped", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, bob, _, _, _ := seedTeamGraph(t, eng)
		payload := []map[string]any{
			{"from": alice.ID, "to": bob.ID, "relationType": "relates_to"},
		}

		first, err := eng.CreateRelations(ctx, payload)
		require.NoError(t, err)
		require.Len(t, first, 1)

		// The second identical call stores nothing and reports nothing new.
		second, err := eng.CreateRelations(ctx, payload)
		require.NoError(t, err)
		assert.Empty(t, second)

		related, err := eng.RelatedEntities(ctx, alice.ID, "relates_to")
		require.NoError(t, err)
		assert.Len(t, related, 1)
	})

	t.Run("SamePairDifferentTypeIsNew", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, _, project, _, _ := seedTeamGraph(t, eng)

		created, err := eng.CreateRelations(ctx, []map[string]any{
			{"from": alice.ID, "to": project.ID, "relationType": "mentions"},
		})

		require.NoError(t, err)
		assert.Len(t, created, 1)
	})

	t.Run("NumericEndpoints", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, bob, _, _, _ := seedTeamGraph(t, eng)

		created, err := eng.CreateRelations(ctx, []map[string]any{
			{
				"from":         eng.NumericID(alice.ID),
				"to":           eng.NumericID(bob.ID),
				"relationType": "relates_to",
			},
		})

		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, alice.ID, created[0].SourceID)
	})

	t.Run("UnmappedNumericFails", func(t *testing.T) {
		eng := setupTestEngine(t)

		_, err := eng.CreateRelations(ctx, []map[string]any{
			{"from": 404, "to": 405, "relationType": "relates_to"},
		})

		assert.ErrorContains(t, err, "invalid source or target id")
	})
}

func TestEngine_AddObservations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("AppendsAndDeduplicates", func(t *testing.T) {
		eng := setupTestEngine(t)
		_, err := eng.CreateEntity(ctx, map[string]any{
			"name":         "Alice",
			"observations": []string{"likes go"},
		})
		require.NoError(t, err)

		updated, err := eng.AddObservations(ctx, []ObservationAdd{
			{EntityName: "Alice", Contents: []string{"likes go", "plays chess"}},
		})

		require.NoError(t, err)
		require.Len(t, updated, 1)
		assert.Equal(t, []string{"likes go", "plays chess"}, updated[0].Observations())
	})

	t.Run("Persisted", func(t *testing.T) {
		eng := setupTestEngine(t)
		created, err := eng.CreateEntity(ctx, map[string]any{"name": "Bob"})
		require.NoError(t, err)

		_, err = eng.AddObservations(ctx, []ObservationAdd{
			{EntityName: "Bob", Contents: []string{"speaks spanish"}},
		})
		require.NoError(t, err)

		got, err := eng.GetEntity(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"speaks spanish"}, got.Observations())
	})

	t.Run("UnknownNameSkipped", func(t *testing.T) {
		eng := setupTestEngine(t)

		updated, err := eng.AddObservations(ctx, []ObservationAdd{
			{EntityName: "Nobody", Contents: []string{"anything"}},
		})

		require.NoError(t, err)
		assert.Empty(t, updated)
	})
}

func TestEngine_DeleteEntities(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("DeletesByNameAndCascades", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, _, _, _, _ := seedTeamGraph(t, eng)

		deleted, err := eng.DeleteEntities(ctx, []string{"Project"})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		related, err := eng.RelatedEntities(ctx, alice.ID, "")
		require.NoError(t, err)
		assert.Empty(t, related)
	})

	t.Run("UnknownNamesSkipped", func(t *testing.T) {
		eng := setupTestEngine(t)
		seedTeamGraph(t, eng)

		deleted, err := eng.DeleteEntities(ctx, []string{"Nobody", "Bob"})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})
}

func TestEngine_DeleteObservations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)

	created, err := eng.CreateEntity(ctx, map[string]any{
		"name":         "Alice",
		"observations": []string{"likes go", "plays chess", "lives in berlin"},
	})
	require.NoError(t, err)

	err = eng.DeleteObservations(ctx, []ObservationDelete{
		{EntityName: "Alice", Observations: []string{"plays chess"}},
	})
	require.NoError(t, err)

	got, err := eng.GetEntity(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"likes go", "lives in berlin"}, got.Observations())
}

func TestEngine_DeleteRelations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("DeletesByTriple", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, _, project, _, _ := seedTeamGraph(t, eng)

		deleted, err := eng.DeleteRelations(ctx, []map[string]any{
			{"from": alice.ID, "to": project.ID, "relationType": "assigned_to"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		related, err := eng.RelatedEntities(ctx, project.ID, "")
		require.NoError(t, err)
		assert.Len(t, related, 1)
	})

	t.Run("NumericEndpoints", func(t *testing.T) {
		eng := setupTestEngine(t)
		_, bob, project, _, _ := seedTeamGraph(t, eng)

		deleted, err := eng.DeleteRelations(ctx, []map[string]any{
			{
				"from":         eng.NumericID(bob.ID),
				"to":           eng.NumericID(project.ID),
				"relationType": "created_by",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)
	})

	t.Run("UnresolvedEndpointsSkipped", func(t *testing.T) {
		eng := setupTestEngine(t)
		seedTeamGraph(t, eng)

		deleted, err := eng.DeleteRelations(ctx, []map[string]any{
			{"from": 808, "to": 809, "relationType": "relates_to"},
		})
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("WrongTypeDoesNotMatch", func(t *testing.T) {
		eng := setupTestEngine(t)
		alice, _, project, _, _ := seedTeamGraph(t, eng)

		deleted, err := eng.DeleteRelations(ctx, []map[string]any{
			{"from": alice.ID, "to": project.ID, "relationType": "mentions"},
		})
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestEngine_ReadGraph(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)
	alice, _, project, _, _ := seedTeamGraph(t, eng)

	feed, err := eng.ReadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 5)

	var entities, relations []FeedRecord
	for _, record := range feed {
		switch record.Type {
		case "entity":
			entities = append(entities, record)
		case "relation":
			relations = append(relations, record)
		}
	}
	require.Len(t, entities, 3)
	require.Len(t, relations, 2)

	// Entity records precede relation records.
	assert.Equal(t, "entity", feed[0].Type)
	assert.Equal(t, "relation", feed[4].Type)

	for _, record := range entities {
		assert.Positive(t, record.ID)
		assert.NotEmpty(t, record.Name)
	}

	aliceNumeric := eng.NumericID(alice.ID)
	projectNumeric := eng.NumericID(project.ID)
	assert.Contains(t, relations, FeedRecord{
		Type:         "relation",
		From:         aliceNumeric,
		To:           projectNumeric,
		RelationType: "assigned_to",
	})
}

func TestEngine_SearchNodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)
	alice, _, _, _, _ := seedTeamGraph(t, eng)

	records, err := eng.SearchNodes(ctx, "Alice")
	require.NoError(t, err)
	require.NotEmpty(t, records)

	record := records[0]
	assert.Equal(t, eng.NumericID(alice.ID), record.ID)
	assert.Equal(t, "person", record.Type)
	assert.Equal(t, "Alice", record.Name)
	assert.Positive(t, record.Score)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestEngine_OpenNodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)
	alice, bob, _, _, _ := seedTeamGraph(t, eng)

	t.Run("ExactNames", func(t *testing.T) {
		records, err := eng.OpenNodes(ctx, []string{"Alice", "Bob"})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, eng.NumericID(alice.ID), records[0].ID)
		assert.Equal(t, eng.NumericID(bob.ID), records[1].ID)
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		records, err := eng.OpenNodes(ctx, []string{"alice"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Alice", records[0].Name)
	})

	t.Run("UnknownNamesSkipped", func(t *testing.T) {
		records, err := eng.OpenNodes(ctx, []string{"Nobody", "Alice"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Alice", records[0].Name)
	})
}
