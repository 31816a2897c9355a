// Package graph provides the knowledge graph data model for Engram.
//
// It defines the entity and relation types that represent memory-level
// records (people, projects, tasks, files, concepts, etc.) and the typed
// directed edges between them, plus the pure traversal and analysis
// algorithms that operate on adjacency views of that graph.
package graph

import (
	"time"

	"github.com/google/uuid"
)

// EntityType categorizes an entity. The vocabulary is open: these constants
// cover the common cases, but any non-empty string is a valid type.
type EntityType string

const (
	EntityNote         EntityType = "note"
	EntityTask         EntityType = "task"
	EntityPerson       EntityType = "person"
	EntityProject      EntityType = "project"
	EntityFile         EntityType = "file"
	EntityFolder       EntityType = "folder"
	EntityArea         EntityType = "area"
	EntityMeeting      EntityType = "meeting"
	EntityTechnology   EntityType = "technology"
	EntityConversation EntityType = "conversation"
	EntityCodebase     EntityType = "codebase"
)

// RelationType categorizes a relation. Open vocabulary, same as EntityType.
type RelationType string

const (
	RelRelatesTo   RelationType = "relates_to"
	RelContains    RelationType = "contains"
	RelFollowsFrom RelationType = "follows_from"
	RelDependsOn   RelationType = "depends_on"
	RelMentions    RelationType = "mentions"
	RelImplements  RelationType = "implements"
	RelReferences  RelationType = "references"
	RelAssignedTo  RelationType = "assigned_to"
	RelCreatedBy   RelationType = "created_by"
	RelPartOf      RelationType = "part_of"
	RelSimilarTo   RelationType = "similar_to"
)

// Reserved metadata keys. Everything else in Entity.Metadata is caller-owned.
const (
	// MetaLegacyID holds the integer id issued to this entity for callers of
	// the numeric-id APIs. Unique across all entities at any point in time.
	MetaLegacyID = "legacy_id"

	// MetaObservations holds the append-only, de-duplicated list of
	// free-text observation strings attached through the legacy memory API.
	MetaObservations = "observations"

	// MetaCodebaseID ties a knowledge node to its registered codebase.
	MetaCodebaseID = "codebase_id"

	// MetaPath holds the filesystem path of file, folder, and knowledge
	// node entities produced by codebase scans.
	MetaPath = "path"
)

// DefaultStrength is the relation strength used when a caller supplies none.
const DefaultStrength = 1.0

// Entity represents a node in the knowledge graph.
type Entity struct {
	// ID is the stable identifier, immutable once assigned.
	ID string `json:"id"`

	// Type is the open-vocabulary category tag. Never empty; defaults to "note".
	Type EntityType `json:"type"`

	// Name is the display label.
	Name string `json:"name"`

	// Content is the free-text body. May be empty.
	Content string `json:"content,omitempty"`

	// Metadata is an open string-keyed map. See the reserved Meta* keys.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Tags is a set of free-form labels.
	Tags []string `json:"tags,omitempty"`

	// CreatedAt is when the entity was first saved.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the entity was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Relation represents a typed directed edge between two entities.
// Endpoint existence is not enforced: a relation may outlive a deleted
// endpoint unless the engine's cascade removes it.
type Relation struct {
	// ID is the stable identifier for the relation.
	ID string `json:"id"`

	// SourceID is the entity id the edge starts from.
	SourceID string `json:"source_id"`

	// TargetID is the entity id the edge points to.
	TargetID string `json:"target_id"`

	// Type is the open-vocabulary relation type.
	Type RelationType `json:"relation_type"`

	// Strength is an informational weight in [0,1], default 1.0.
	// The traversal algorithms are unweighted and ignore it.
	Strength float64 `json:"strength"`

	// Metadata is an open string-keyed map.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the relation was saved.
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a fresh stable identifier for an entity or relation.
func NewID() string {
	return uuid.NewString()
}

// Observations returns the observation strings stored in the entity's
// metadata, or nil when none have been recorded.
func (e *Entity) Observations() []string {
	raw, ok := e.Metadata[MetaObservations]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// SetObservations replaces the observation list in the entity's metadata.
func (e *Entity) SetObservations(obs []string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[MetaObservations] = obs
}

// LegacyID returns the integer id stored in the entity's metadata, if any.
// JSON round-trips turn ints into float64, so both encodings are accepted.
func (e *Entity) LegacyID() (int, bool) {
	raw, ok := e.Metadata[MetaLegacyID]
	if !ok {
		return 0, false
	}

	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
