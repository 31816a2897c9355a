package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/engram-ai/engram-go/internal/engine"
	"github.com/engram-ai/engram-go/internal/graph"
)

// Languages detected from file extensions. Other files still become
// entities, just without a language tag.
var knownLanguages = map[string]string{
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".go":   "go",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".md":   "markdown",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
}

// Patterns always ignored, in addition to the repository's .gitignore.
var defaultIgnorePatterns = []string{
	".git/",
	"node_modules/",
	".engram/",
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".eggs/",
	"*.egg-info/",
	".pytest_cache/",
	".mypy_cache/",
	"coverage/",
	"htmlcov/",
	".coverage",
	"*.pyc",
	"*.pyo",
	"*.pyd",
	".DS_Store",
	"Thumbs.db",
}

// ScanStats reports what a codebase scan did. Files and Folders count the
// tree entries visited; Relations counts only contains links created by
// this run, so a repeat scan of an unchanged tree reports zero.
type ScanStats struct {
	Files     int `json:"files"`
	Folders   int `json:"folders"`
	Relations int `json:"relations"`
}

// ScanCodebase walks rootPath and mirrors its tree into the graph: a file
// or folder entity per visited entry, named by its path relative to the
// root, and a contains relation from each parent to its children. The
// registered codebase entity is the parent of the top-level entries.
// Entries matching .gitignore or the default ignore patterns are skipped.
// Rescans are idempotent: entities are matched by their path metadata and
// relations by the usual triple dedup.
func ScanCodebase(ctx context.Context, eng *engine.Engine, codebaseID, rootPath string) (*ScanStats, error) {
	codebase, err := eng.GetCodebase(ctx, codebaseID)
	if err != nil {
		return nil, err
	}
	if codebase == nil {
		return nil, fmt.Errorf("codebase %q is not registered", codebaseID)
	}

	rootPath, err = filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}

	matcher, err := ignoreMatcher(rootPath)
	if err != nil {
		return nil, err
	}

	// Stable ids of entities from earlier scans, keyed by relative path.
	index, err := pathIndex(ctx, eng, codebaseID)
	if err != nil {
		return nil, err
	}

	stats := &ScanStats{}
	var links []map[string]any

	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == rootPath {
			return nil
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		parts := strings.Split(relPath, string(filepath.Separator))

		if d.IsDir() {
			if d.Name() == ".git" || matcher.Match(parts, true) {
				return filepath.SkipDir
			}
			if _, err := ensureTreeEntity(ctx, eng, codebaseID, graph.EntityFolder, relPath, "", index); err != nil {
				return err
			}
			stats.Folders++
		} else {
			if matcher.Match(parts, false) {
				return nil
			}
			language := knownLanguages[strings.ToLower(filepath.Ext(d.Name()))]
			if _, err := ensureTreeEntity(ctx, eng, codebaseID, graph.EntityFile, relPath, language, index); err != nil {
				return err
			}
			stats.Files++
		}

		links = append(links, map[string]any{
			"from":         parentStableID(codebase.ID, relPath, index),
			"to":           index[relPath],
			"relationType": string(graph.RelContains),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(links) > 0 {
		created, err := eng.CreateRelations(ctx, links)
		if err != nil {
			return nil, err
		}
		stats.Relations = len(created)
	}

	if err := touchCodebase(ctx, eng, codebase.ID); err != nil {
		return nil, err
	}
	return stats, nil
}

// ignoreMatcher combines the default ignore patterns with the .gitignore
// at the root, when one exists.
func ignoreMatcher(rootPath string) (gitignore.Matcher, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultIgnorePatterns))
	for _, p := range defaultIgnorePatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	content, err := os.ReadFile(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return gitignore.NewMatcher(patterns), nil
		}
		return nil, err
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns), nil
}

// pathIndex maps the relative path of every file and folder entity already
// recorded for the codebase to its stable id.
func pathIndex(ctx context.Context, eng *engine.Engine, codebaseID string) (map[string]string, error) {
	index := make(map[string]string)
	for _, entityType := range []string{string(graph.EntityFile), string(graph.EntityFolder)} {
		entities, err := eng.Repository().GetAllEntities(ctx, entityType, 0)
		if err != nil {
			return nil, err
		}
		for _, entity := range entities {
			if entity.Metadata[graph.MetaCodebaseID] != codebaseID {
				continue
			}
			if path, ok := entity.Metadata[graph.MetaPath].(string); ok && path != "" {
				index[path] = entity.ID
			}
		}
	}
	return index, nil
}

// ensureTreeEntity records relPath in the index, creating the entity when
// no earlier scan produced one.
func ensureTreeEntity(ctx context.Context, eng *engine.Engine, codebaseID string, entityType graph.EntityType, relPath, language string, index map[string]string) (string, error) {
	if stable, ok := index[relPath]; ok {
		return stable, nil
	}

	metadata := map[string]any{
		graph.MetaCodebaseID: codebaseID,
		graph.MetaPath:       relPath,
	}
	if language != "" {
		metadata["language"] = language
	}
	entity, err := eng.CreateEntity(ctx, &graph.Entity{
		Type:     entityType,
		Name:     relPath,
		Metadata: metadata,
	})
	if err != nil {
		return "", err
	}
	index[relPath] = entity.ID
	return entity.ID, nil
}

// parentStableID returns the containing folder's stable id, or the
// codebase entity's for top-level entries. Folders are visited before
// their children, so the parent is always indexed by the time a child
// needs it.
func parentStableID(codebaseStableID, relPath string, index map[string]string) string {
	parent := filepath.Dir(relPath)
	if parent == "." {
		return codebaseStableID
	}
	return index[parent]
}

// touchCodebase stamps the codebase entity with the scan time.
func touchCodebase(ctx context.Context, eng *engine.Engine, codebaseStableID string) error {
	entity, err := eng.GetEntity(ctx, codebaseStableID)
	if err != nil || entity == nil {
		return err
	}
	if entity.Metadata == nil {
		entity.Metadata = map[string]any{}
	}
	entity.Metadata["last_indexed"] = time.Now().UTC().Format(time.RFC3339)
	_, err = eng.Repository().UpdateEntity(ctx, entity)
	return err
}
