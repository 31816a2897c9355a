package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: cmd tests do not use t.Parallel() because they share the package
// data directory variable.

// withDataDir points the CLI at a scratch data directory and initializes
// an empty knowledge graph there.
func withDataDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	old := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = old })

	require.NoError(t, (&InitCmd{}).Run())
	return dir
}

// withEmptyDataDir points the CLI at a scratch directory without running
// init, for the no-graph error paths.
func withEmptyDataDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	old := dataDir
	dataDir = dir
	t.Cleanup(func() { dataDir = old })
	return dir
}

const testFeed = `{"type":"entity","id":1,"entity_type":"person","name":"Alice","content":"Team lead"}
{"type":"entity","id":2,"entity_type":"person","name":"Bob","content":"Engineer"}
{"type":"relation","from":1,"to":2,"relationType":"relates_to"}
`

func TestInitCmd_Run(t *testing.T) {
	t.Run("CreatesGraph", func(t *testing.T) {
		dir := withEmptyDataDir(t)

		err := (&InitCmd{}).Run()
		assert.NoError(t, err)

		_, err = os.Stat(filepath.Join(dir, "badger"))
		assert.NoError(t, err)
	})

	t.Run("AlreadyInitialized", func(t *testing.T) {
		withDataDir(t)

		err := (&InitCmd{}).Run()
		assert.NoError(t, err)
	})
}

func TestAddCmd_Run(t *testing.T) {
	t.Run("AddEntity", func(t *testing.T) {
		withDataDir(t)

		cmd := &AddCmd{
			Name:    "Alice",
			Type:    "person",
			Content: "Team lead",
			Tags:    []string{"team"},
			Meta:    map[string]string{"role": "lead"},
		}
		require.NoError(t, cmd.Run())

		ctx := context.Background()
		eng, done, err := openEngine(ctx, true)
		require.NoError(t, err)
		defer done()

		// The exposed numeric id survives the process boundary.
		entity, err := eng.GetEntity(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, "Alice", entity.Name)
		assert.Equal(t, "person", string(entity.Type))
		assert.Equal(t, "lead", entity.Metadata["role"])
	})

	t.Run("DuplicateName", func(t *testing.T) {
		withDataDir(t)

		require.NoError(t, (&AddCmd{Name: "Alice", Type: "person"}).Run())
		require.NoError(t, (&AddCmd{Name: "Alice", Type: "person"}).Run())

		ctx := context.Background()
		eng, done, err := openEngine(ctx, true)
		require.NoError(t, err)
		defer done()

		entities, err := eng.Repository().GetAllEntities(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, entities, 1)
	})

	t.Run("NoGraph", func(t *testing.T) {
		withEmptyDataDir(t)

		err := (&AddCmd{Name: "Alice"}).Run()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "engram init")
	})
}

func TestRelateCmd_Run(t *testing.T) {
	t.Run("CreateRelation", func(t *testing.T) {
		withDataDir(t)

		require.NoError(t, (&AddCmd{Name: "Alice", Type: "person"}).Run())
		require.NoError(t, (&AddCmd{Name: "Bob", Type: "person"}).Run())

		cmd := &RelateCmd{From: "1", To: "2", Type: "relates_to"}
		require.NoError(t, cmd.Run())

		ctx := context.Background()
		eng, done, err := openEngine(ctx, true)
		require.NoError(t, err)
		defer done()

		related, err := eng.RelatedEntities(ctx, 1, "relates_to")
		require.NoError(t, err)
		require.Len(t, related, 1)
		assert.Equal(t, "Bob", related[0].Entity.Name)
	})

	t.Run("DuplicateRelation", func(t *testing.T) {
		withDataDir(t)

		require.NoError(t, (&AddCmd{Name: "Alice"}).Run())
		require.NoError(t, (&AddCmd{Name: "Bob"}).Run())
		require.NoError(t, (&RelateCmd{From: "1", To: "2", Type: "relates_to"}).Run())

		err := (&RelateCmd{From: "1", To: "2", Type: "relates_to"}).Run()
		assert.NoError(t, err)
	})

	t.Run("UnknownEndpoint", func(t *testing.T) {
		withDataDir(t)

		require.NoError(t, (&AddCmd{Name: "Alice"}).Run())

		err := (&RelateCmd{From: "9", To: "1", Type: "relates_to"}).Run()
		assert.Error(t, err)
	})
}

func TestGetCmd_Run(t *testing.T) {
	t.Run("ExistingEntity", func(t *testing.T) {
		withDataDir(t)

		require.NoError(t, (&AddCmd{Name: "Alice", Type: "person", Content: "Team lead"}).Run())

		err := (&GetCmd{ID: "1"}).Run()
		assert.NoError(t, err)
	})

	t.Run("MissingEntity", func(t *testing.T) {
		withDataDir(t)

		err := (&GetCmd{ID: "99"}).Run()
		assert.NoError(t, err)
	})
}

func TestImportCmd_Run(t *testing.T) {
	t.Run("ImportFeed", func(t *testing.T) {
		withDataDir(t)

		feedPath := filepath.Join(t.TempDir(), "memory.jsonl")
		require.NoError(t, os.WriteFile(feedPath, []byte(testFeed), 0o644))

		cmd := &ImportCmd{Path: feedPath}
		require.NoError(t, cmd.Run())

		ctx := context.Background()
		eng, done, err := openEngine(ctx, true)
		require.NoError(t, err)
		defer done()

		entity, err := eng.GetEntity(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, entity)
		assert.Equal(t, "Alice", entity.Name)

		related, err := eng.RelatedEntities(ctx, 1, "relates_to")
		require.NoError(t, err)
		assert.Len(t, related, 1)
	})

	t.Run("MissingFeed", func(t *testing.T) {
		withDataDir(t)

		err := (&ImportCmd{Path: filepath.Join(t.TempDir(), "absent.jsonl")}).Run()
		assert.Error(t, err)
	})
}

func TestExportCmd_Run(t *testing.T) {
	t.Run("ExportToFile", func(t *testing.T) {
		withDataDir(t)

		feedPath := filepath.Join(t.TempDir(), "memory.jsonl")
		require.NoError(t, os.WriteFile(feedPath, []byte(testFeed), 0o644))
		require.NoError(t, (&ImportCmd{Path: feedPath}).Run())

		outPath := filepath.Join(t.TempDir(), "export.jsonl")
		require.NoError(t, (&ExportCmd{Path: outPath}).Run())

		content, err := os.ReadFile(outPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		assert.Len(t, lines, 3)
	})
}

func TestScanCmd_Run(t *testing.T) {
	t.Run("ScanTree", func(t *testing.T) {
		withDataDir(t)

		root := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# proj\n"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main\n"), 0o644))

		cmd := &ScanCmd{Path: root, ID: "proj"}
		require.NoError(t, cmd.Run())

		ctx := context.Background()
		eng, done, err := openEngine(ctx, true)
		require.NoError(t, err)
		defer done()

		codebase, err := eng.GetCodebase(ctx, "proj")
		require.NoError(t, err)
		require.NotNil(t, codebase)
		assert.Equal(t, root, codebase.RootPath)

		files, err := eng.Repository().GetAllEntities(ctx, "file", 0)
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("NotADirectory", func(t *testing.T) {
		withDataDir(t)

		tmpFile := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0o644))

		err := (&ScanCmd{Path: tmpFile, ID: "proj"}).Run()
		assert.Error(t, err)
	})

	t.Run("InvalidPath", func(t *testing.T) {
		withDataDir(t)

		err := (&ScanCmd{Path: "/nonexistent/path", ID: "proj"}).Run()
		assert.Error(t, err)
	})
}

func TestStatsCmd_Run(t *testing.T) {
	t.Run("StatsOnSeededGraph", func(t *testing.T) {
		withDataDir(t)

		require.NoError(t, (&AddCmd{Name: "Alice"}).Run())
		require.NoError(t, (&AddCmd{Name: "Bob"}).Run())
		require.NoError(t, (&RelateCmd{From: "1", To: "2", Type: "relates_to"}).Run())

		err := (&StatsCmd{}).Run()
		assert.NoError(t, err)
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Run("StatusWithGraph", func(t *testing.T) {
		withDataDir(t)

		err := (&StatusCmd{}).Run()
		assert.NoError(t, err)
	})

	t.Run("StatusWithNoGraph", func(t *testing.T) {
		withEmptyDataDir(t)

		err := (&StatusCmd{}).Run()
		assert.Error(t, err)
	})
}

func TestCleanCmd_Run(t *testing.T) {
	t.Run("CleanWithGraph", func(t *testing.T) {
		dir := withDataDir(t)

		cmd := &CleanCmd{Force: true}
		require.NoError(t, cmd.Run())

		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("CleanWithNoGraph", func(t *testing.T) {
		withEmptyDataDir(t)

		err := (&CleanCmd{Force: true}).Run()
		assert.Error(t, err)
	})
}

func TestOpenEngine(t *testing.T) {
	t.Run("NoGraph", func(t *testing.T) {
		withEmptyDataDir(t)

		eng, done, err := openEngine(context.Background(), true)
		assert.Error(t, err)
		assert.Nil(t, eng)
		assert.Nil(t, done)
	})

	t.Run("WithGraph", func(t *testing.T) {
		withDataDir(t)

		eng, done, err := openEngine(context.Background(), true)
		require.NoError(t, err)
		require.NotNil(t, eng)
		done()
	})
}

func TestCliID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{name: "Numeric", input: "42", want: 42},
		{name: "Stable", input: "a1b2c3", want: "a1b2c3"},
		{name: "Negative", input: "-1", want: -1},
		{name: "Empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cliID(tt.input))
		})
	}
}
