package engine

import (
	"context"
	"testing"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_RegisterCodebase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("CreatesAndReturns", func(t *testing.T) {
		eng := setupTestEngine(t)

		codebase, err := eng.RegisterCodebase(ctx, "engram", "Engram", "/src/engram", "graph memory engine")
		require.NoError(t, err)

		assert.Equal(t, "engram", codebase.ID)
		assert.Equal(t, "Engram", codebase.Name)
		assert.Equal(t, "/src/engram", codebase.RootPath)
		assert.Equal(t, "graph memory engine", codebase.Description)
		assert.False(t, codebase.CreatedAt.IsZero())
	})

	t.Run("Idempotent", func(t *testing.T) {
		eng := setupTestEngine(t)

		first, err := eng.RegisterCodebase(ctx, "engram", "Engram", "/src/engram", "")
		require.NoError(t, err)

		// Re-registering the same id returns the original record unchanged.
		second, err := eng.RegisterCodebase(ctx, "engram", "Renamed", "/elsewhere", "")
		require.NoError(t, err)

		assert.Equal(t, first.Name, second.Name)
		assert.Equal(t, first.RootPath, second.RootPath)

		codebases, err := eng.ListCodebases(ctx)
		require.NoError(t, err)
		assert.Len(t, codebases, 1)
	})

	t.Run("EmptyIDFails", func(t *testing.T) {
		eng := setupTestEngine(t)

		_, err := eng.RegisterCodebase(ctx, "", "nameless", "/tmp", "")
		assert.ErrorContains(t, err, "codebase id is required")
	})

	t.Run("GitRemoteCaptured", func(t *testing.T) {
		eng := setupTestEngine(t)
		dir := t.TempDir()

		repo, err := git.PlainInit(dir, false)
		require.NoError(t, err)
		_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: "origin",
			URLs: []string{"https://github.com/engram-ai/engram-go.git"},
		})
		require.NoError(t, err)

		codebase, err := eng.RegisterCodebase(ctx, "engram", "Engram", dir, "")
		require.NoError(t, err)

		assert.Equal(t, "https://github.com/engram-ai/engram-go.git", codebase.Remote)
		// No commits yet, so no HEAD to record.
		assert.Empty(t, codebase.Commit)
	})

	t.Run("NonGitPathHasNoRemote", func(t *testing.T) {
		eng := setupTestEngine(t)

		codebase, err := eng.RegisterCodebase(ctx, "plain", "Plain", t.TempDir(), "")
		require.NoError(t, err)

		assert.Empty(t, codebase.Remote)
		assert.Empty(t, codebase.Commit)
	})
}

func TestEngine_ListCodebases(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)
	seedTeamGraph(t, eng)

	_, err := eng.RegisterCodebase(ctx, "alpha", "Alpha", "/src/alpha", "")
	require.NoError(t, err)
	_, err = eng.RegisterCodebase(ctx, "beta", "Beta", "/src/beta", "")
	require.NoError(t, err)

	codebases, err := eng.ListCodebases(ctx)
	require.NoError(t, err)

	require.Len(t, codebases, 2)
	ids := []string{codebases[0].ID, codebases[1].ID}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, ids)
}

func TestEngine_GetCodebase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)
	alice, _, _, _, _ := seedTeamGraph(t, eng)

	_, err := eng.RegisterCodebase(ctx, "engram", "Engram", "/src/engram", "")
	require.NoError(t, err)

	t.Run("Found", func(t *testing.T) {
		codebase, err := eng.GetCodebase(ctx, "engram")
		require.NoError(t, err)
		require.NotNil(t, codebase)
		assert.Equal(t, "Engram", codebase.Name)
	})

	t.Run("Absent", func(t *testing.T) {
		codebase, err := eng.GetCodebase(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, codebase)
	})

	t.Run("NonCodebaseEntity", func(t *testing.T) {
		codebase, err := eng.GetCodebase(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, codebase)
	})
}

func TestEngine_AddKnowledgeNode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)

	node, err := eng.AddKnowledgeNode(ctx, "engram", "function", "ParseConfig",
		"parses the engine configuration", "internal/config/config.go",
		map[string]any{"lines": 42})
	require.NoError(t, err)

	assert.Positive(t, node.ID)
	assert.Equal(t, "engram", node.CodebaseID)
	assert.Equal(t, "function", node.NodeType)
	assert.Equal(t, "ParseConfig", node.Name)
	assert.Equal(t, "internal/config/config.go", node.Path)
	assert.Equal(t, 42, node.Metadata["lines"])
	assert.NotContains(t, node.Metadata, "codebase_id")

	got, err := eng.GetKnowledgeNode(ctx, node.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, node.Name, got.Name)
	assert.Equal(t, node.CodebaseID, got.CodebaseID)
}

func TestEngine_GetKnowledgeNodeAbsent(t *testing.T) {
	t.Parallel()

	eng := setupTestEngine(t)

	node, err := eng.GetKnowledgeNode(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestEngine_AddKnowledgeRelation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("RelatesByNumericID", func(t *testing.T) {
		eng := setupTestEngine(t)

		caller, err := eng.AddKnowledgeNode(ctx, "engram", "function", "main", "", "main.go", nil)
		require.NoError(t, err)
		callee, err := eng.AddKnowledgeNode(ctx, "engram", "function", "run", "", "main.go", nil)
		require.NoError(t, err)

		relation, err := eng.AddKnowledgeRelation(ctx, caller.ID, callee.ID, "calls", nil)
		require.NoError(t, err)

		source, ok := eng.StableID(caller.ID)
		require.True(t, ok)
		assert.Equal(t, source, relation.SourceID)
		assert.Equal(t, "calls", string(relation.Type))
	})

	t.Run("UnmappedNodeFails", func(t *testing.T) {
		eng := setupTestEngine(t)

		_, err := eng.AddKnowledgeRelation(ctx, 700, 701, "calls", nil)
		assert.ErrorContains(t, err, "invalid source or target id")
	})
}

func TestEngine_SearchKnowledge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)

	_, err := eng.AddKnowledgeNode(ctx, "alpha", "function", "ParseConfig", "reads config", "a.go", nil)
	require.NoError(t, err)
	_, err = eng.AddKnowledgeNode(ctx, "beta", "function", "LoadConfig", "loads config", "b.go", nil)
	require.NoError(t, err)
	_, err = eng.AddKnowledgeNode(ctx, "alpha", "class", "ConfigStore", "holds config", "c.go", nil)
	require.NoError(t, err)

	t.Run("Unfiltered", func(t *testing.T) {
		nodes, err := eng.SearchKnowledge(ctx, "config", "", "", 0)
		require.NoError(t, err)
		assert.Len(t, nodes, 3)
	})

	t.Run("CodebaseFilter", func(t *testing.T) {
		nodes, err := eng.SearchKnowledge(ctx, "config", "alpha", "", 0)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		for _, node := range nodes {
			assert.Equal(t, "alpha", node.CodebaseID)
		}
	})

	t.Run("TypeFilter", func(t *testing.T) {
		nodes, err := eng.SearchKnowledge(ctx, "config", "", "class", 0)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, "ConfigStore", nodes[0].Name)
	})

	t.Run("LimitApplies", func(t *testing.T) {
		nodes, err := eng.SearchKnowledge(ctx, "config", "", "", 2)
		require.NoError(t, err)
		assert.Len(t, nodes, 2)
	})
}

func TestEngine_RelatedKnowledgeNodes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)

	main, err := eng.AddKnowledgeNode(ctx, "engram", "function", "main", "", "main.go", nil)
	require.NoError(t, err)
	run, err := eng.AddKnowledgeNode(ctx, "engram", "function", "run", "", "main.go", nil)
	require.NoError(t, err)
	serve, err := eng.AddKnowledgeNode(ctx, "engram", "function", "serve", "", "serve.go", nil)
	require.NoError(t, err)

	_, err = eng.AddKnowledgeRelation(ctx, main.ID, run.ID, "calls", nil)
	require.NoError(t, err)
	_, err = eng.AddKnowledgeRelation(ctx, main.ID, serve.ID, "calls", nil)
	require.NoError(t, err)
	_, err = eng.AddKnowledgeRelation(ctx, run.ID, serve.ID, "imports", nil)
	require.NoError(t, err)

	nodeIDs := func(nodes []*KnowledgeNode) []int {
		ids := make([]int, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		return ids
	}

	t.Run("Outgoing", func(t *testing.T) {
		nodes, err := eng.RelatedKnowledgeNodes(ctx, main.ID, "", "out")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{run.ID, serve.ID}, nodeIDs(nodes))
	})

	t.Run("Incoming", func(t *testing.T) {
		nodes, err := eng.RelatedKnowledgeNodes(ctx, serve.ID, "", "in")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{main.ID, run.ID}, nodeIDs(nodes))
	})

	t.Run("Both", func(t *testing.T) {
		nodes, err := eng.RelatedKnowledgeNodes(ctx, run.ID, "", "both")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{main.ID, serve.ID}, nodeIDs(nodes))
	})

	t.Run("RelationTypeFilter", func(t *testing.T) {
		nodes, err := eng.RelatedKnowledgeNodes(ctx, serve.ID, "imports", "in")
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{run.ID}, nodeIDs(nodes))
	})

	t.Run("UnmappedNode", func(t *testing.T) {
		nodes, err := eng.RelatedKnowledgeNodes(ctx, 31337, "", "both")
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})
}

func TestEngine_QueryKnowledgeGraph(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	eng := setupTestEngine(t)

	_, err := eng.AddKnowledgeNode(ctx, "engram", "function", "tokenize", "splits identifiers", "fts.go", nil)
	require.NoError(t, err)

	result, err := eng.QueryKnowledgeGraph(ctx, "tokenize", "engram")
	require.NoError(t, err)

	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "tokenize", result.Nodes[0].Name)
}
