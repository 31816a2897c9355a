package engine

import (
	"fmt"

	"github.com/engram-ai/engram-go/internal/graph"
)

// relationPayload is a parsed relation payload whose endpoints have not
// been resolved yet. Source and Target may be stable string ids or legacy
// integer ids.
type relationPayload struct {
	Source   any
	Target   any
	Type     string
	Strength float64
	Metadata map[string]any
}

// normalizeEntity converts a caller payload into a canonical entity.
//
// Accepts *graph.Entity, or map[string]any in the legacy field layout
// ({name, type|entity_type|entityType, content, metadata, tags,
// observations}; an integer id is folded into legacy_id metadata).
// The entity type defaults to note.
func normalizeEntity(payload any) (*graph.Entity, error) {
	switch p := payload.(type) {
	case *graph.Entity:
		if p.Type == "" {
			p.Type = graph.EntityNote
		}
		return p, nil

	case map[string]any:
		entity := &graph.Entity{
			Type:    graph.EntityType(firstString(p, "type", "entity_type", "entityType")),
			Name:    firstString(p, "name"),
			Content: firstString(p, "content"),
			Tags:    stringList(p["tags"]),
		}
		if entity.Type == "" {
			entity.Type = graph.EntityNote
		}

		metadata := make(map[string]any)
		if raw, ok := p["metadata"].(map[string]any); ok {
			for k, v := range raw {
				metadata[k] = v
			}
		}
		if legacy, ok := intValue(p["id"]); ok {
			metadata[graph.MetaLegacyID] = legacy
		}
		if obs := stringList(p["observations"]); obs != nil {
			metadata[graph.MetaObservations] = obs
		}
		if len(metadata) > 0 {
			entity.Metadata = metadata
		}
		return entity, nil

	default:
		return nil, fmt.Errorf("unsupported entity payload type %T", payload)
	}
}

// parseRelation extracts the fields of a legacy relation payload,
// accepting {from, to, relationType} as well as {source_id, target_id,
// relation_type}. Endpoint resolution is the engine's job.
func parseRelation(p map[string]any) (relationPayload, error) {
	parsed := relationPayload{
		Source:   firstValue(p, "from", "source_id"),
		Target:   firstValue(p, "to", "target_id"),
		Type:     firstString(p, "relationType", "relation_type"),
		Strength: graph.DefaultStrength,
	}
	if parsed.Type == "" {
		return relationPayload{}, fmt.Errorf("relation type is required")
	}
	if strength, ok := floatValue(p["strength"]); ok {
		parsed.Strength = strength
	}
	if metadata, ok := p["metadata"].(map[string]any); ok {
		parsed.Metadata = metadata
	}
	return parsed, nil
}

// firstString returns the first non-empty string among the given keys.
func firstString(p map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := p[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstValue returns the first non-nil value among the given keys.
func firstValue(p map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := p[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// intValue extracts an integer from the numeric types JSON decoding and
// direct calls produce. Fractional floats do not count.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	case float32:
		if float64(n) == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

// floatValue extracts a float from the numeric types JSON decoding and
// direct calls produce.
func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// stringList converts []string or []any payload values to a string
// slice, dropping non-string elements. Returns nil for anything else.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}
