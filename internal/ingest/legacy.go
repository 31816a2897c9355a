// Package ingest moves graph data in and out of the engine: legacy JSONL
// memory feeds, codebase scans, and file watching.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/engram-ai/engram-go/internal/engine"
)

// maxLineSize bounds a single feed record (16 MiB).
const maxLineSize = 16 << 20

// ImportStats reports what an import run did.
type ImportStats struct {
	Entities  int `json:"entities"`
	Relations int `json:"relations"`
	Skipped   int `json:"skipped"`
}

// Import reads a flat JSONL graph feed and applies it through the legacy
// adapter. Entity records come first in the feed; name dedup applies, and
// a record whose integer id survives into metadata restores that id on a
// fresh store. Relation records follow; their integer endpoints resolve
// against the entities of this run first, then the store's mapping, and
// the triple dedup applies. Malformed lines, records of unknown kind, and
// relations with unresolvable endpoints are counted as skipped, never
// treated as errors.
func Import(ctx context.Context, eng *engine.Engine, r io.Reader) (*ImportStats, error) {
	stats := &ImportStats{}

	// Feed numeric id -> stable id for entities seen in this run,
	// including ones dedup skipped. Relations in the same feed reference
	// these numerics even when the store assigned different ones.
	local := make(map[int]string)

	var relations []map[string]any

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Skipped++
			continue
		}

		kind, _ := record["type"].(string)
		switch kind {
		case "entity":
			if err := importEntity(ctx, eng, record, local, stats); err != nil {
				return stats, err
			}
		case "relation":
			relations = append(relations, record)
		default:
			stats.Skipped++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading feed: %w", err)
	}

	for _, record := range relations {
		if err := importRelation(ctx, eng, record, local, stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ImportFile imports the JSONL feed at path.
func ImportFile(ctx context.Context, eng *engine.Engine, path string) (*ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening feed: %w", err)
	}
	defer f.Close()
	return Import(ctx, eng, f)
}

func importEntity(ctx context.Context, eng *engine.Engine, record map[string]any, local map[int]string, stats *ImportStats) error {
	payload := map[string]any{}
	if name, ok := record["name"].(string); ok {
		payload["name"] = name
	}
	// The record kind occupies the "type" key, so the entity's own type
	// travels in entity_type.
	if entityType, ok := record["entity_type"].(string); ok && entityType != "" {
		payload["type"] = entityType
	}
	if content, ok := record["content"].(string); ok {
		payload["content"] = content
	}
	if metadata, ok := record["metadata"].(map[string]any); ok {
		payload["metadata"] = metadata
	}
	if tags, ok := record["tags"]; ok {
		payload["tags"] = tags
	}
	if id, ok := record["id"]; ok {
		payload["id"] = id
	}

	created, err := eng.CreateEntities(ctx, []map[string]any{payload})
	if err != nil {
		return err
	}

	feedID, hasFeedID := feedInt(record["id"])
	if len(created) == 1 {
		stats.Entities++
		if hasFeedID {
			local[feedID] = created[0].ID
		}
		return nil
	}

	// Name dedup kept an existing entity. Resolve its stable id so
	// relations referencing the feed numeric still attach to it.
	stats.Skipped++
	if !hasFeedID {
		return nil
	}
	name, _ := record["name"].(string)
	existing, err := eng.OpenNodes(ctx, []string{name})
	if err != nil {
		return err
	}
	if len(existing) == 1 {
		if stable, ok := eng.StableID(existing[0].ID); ok {
			local[feedID] = stable
		}
	}
	return nil
}

func importRelation(ctx context.Context, eng *engine.Engine, record map[string]any, local map[int]string, stats *ImportStats) error {
	from, ok := resolveFeedID(eng, record["from"], local)
	if !ok {
		stats.Skipped++
		return nil
	}
	to, ok := resolveFeedID(eng, record["to"], local)
	if !ok {
		stats.Skipped++
		return nil
	}
	relationType, _ := record["relationType"].(string)
	if relationType == "" {
		stats.Skipped++
		return nil
	}

	payload := map[string]any{
		"from":         from,
		"to":           to,
		"relationType": relationType,
	}
	if metadata, ok := record["metadata"].(map[string]any); ok {
		payload["metadata"] = metadata
	}

	created, err := eng.CreateRelations(ctx, []map[string]any{payload})
	if err != nil {
		return err
	}
	if len(created) == 1 {
		stats.Relations++
	} else {
		stats.Skipped++
	}
	return nil
}

// resolveFeedID turns a feed endpoint into a stable id: entities of this
// run first, then the store's legacy mapping.
func resolveFeedID(eng *engine.Engine, raw any, local map[int]string) (string, bool) {
	numeric, ok := feedInt(raw)
	if !ok {
		return "", false
	}
	if stable, ok := local[numeric]; ok {
		return stable, true
	}
	return eng.StableID(numeric)
}

func feedInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
	}
	return 0, false
}

// Export writes the current graph feed as JSONL: entity records first,
// relation records after, one object per line. Returns the record count.
func Export(ctx context.Context, eng *engine.Engine, w io.Writer) (int, error) {
	feed, err := eng.ReadGraph(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, record := range feed {
		if err := enc.Encode(record); err != nil {
			return i, fmt.Errorf("writing feed: %w", err)
		}
	}
	return len(feed), nil
}

// ExportFile writes the current graph feed to path, replacing it.
func ExportFile(ctx context.Context, eng *engine.Engine, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating feed: %w", err)
	}
	n, err := Export(ctx, eng, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}
