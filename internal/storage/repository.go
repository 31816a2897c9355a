// Package storage provides persistence for the Engram knowledge graph.
//
// It defines the Repository contract the engine is written against, along
// with an in-memory implementation and a Badger-backed one.
package storage

import (
	"context"

	"github.com/engram-ai/engram-go/internal/graph"
)

// SearchResult represents one ranked hit from Repository.Search.
type SearchResult struct {
	// Entity is the matching entity.
	Entity *graph.Entity

	// Score is the relevance score (higher is better). Ranking is an
	// implementation detail of the repository.
	Score float64
}

// RelatedEntity is a neighbor of an entity, flattened together with the
// relation that connects them. Both directions of a relation produce a
// RelatedEntity for the opposite endpoint.
type RelatedEntity struct {
	// Entity is the neighboring entity.
	Entity *graph.Entity

	// RelationID is the id of the connecting relation.
	RelationID string

	// RelationType is the type of the connecting relation.
	RelationType graph.RelationType

	// Direction is "out" when the relation leaves the queried entity
	// and "in" when it arrives at it.
	Direction string

	// Strength is the relation strength.
	Strength float64

	// RelationMetadata is the relation's metadata map.
	RelationMetadata map[string]any
}

// Repository defines the persistence contract for entities and relations.
//
// Implementations must be safe for concurrent use. Lookups for ids that do
// not exist return nil (or false for deletes) rather than an error.
type Repository interface {
	// Lifecycle

	// Close releases all resources held by the repository.
	Close() error

	// Entity operations

	// SaveEntity persists a new entity. An empty ID is assigned before
	// the write. Returns the stored entity.
	SaveEntity(ctx context.Context, entity *graph.Entity) (*graph.Entity, error)

	// GetEntity returns the entity with the given id, or nil if absent.
	GetEntity(ctx context.Context, id string) (*graph.Entity, error)

	// UpdateEntity rewrites an existing entity in place and refreshes
	// its updated_at timestamp. Returns the stored entity.
	UpdateEntity(ctx context.Context, entity *graph.Entity) (*graph.Entity, error)

	// DeleteEntity removes the entity with the given id. Returns false
	// when no such entity exists. Relations are not touched; cascade is
	// the engine's job.
	DeleteEntity(ctx context.Context, id string) (bool, error)

	// GetAllEntities returns up to limit entities, optionally filtered
	// by type. An empty entityType matches all.
	GetAllEntities(ctx context.Context, entityType string, limit int) ([]*graph.Entity, error)

	// Relation operations

	// SaveRelation persists a new relation. An empty ID is assigned
	// before the write. Endpoint existence is not checked here.
	SaveRelation(ctx context.Context, relation *graph.Relation) (*graph.Relation, error)

	// GetRelationByID returns the relation with the given id, or nil if
	// absent.
	GetRelationByID(ctx context.Context, id string) (*graph.Relation, error)

	// DeleteRelation removes the relation with the given id. Returns
	// false when no such relation exists.
	DeleteRelation(ctx context.Context, id string) (bool, error)

	// GetRelationsByType returns up to limit relations, optionally
	// filtered by type. An empty relationType matches all.
	GetRelationsByType(ctx context.Context, relationType string, limit int) ([]*graph.Relation, error)

	// Traversal

	// GetRelated returns the neighbors of the entity in both directions,
	// optionally restricted to the given relation types.
	GetRelated(ctx context.Context, entityID string, relationTypes []string) ([]RelatedEntity, error)

	// Search

	// Search performs ranked text search over entity names, content,
	// tags and observations. Supported filters: "type" (entity type).
	// An empty query lists entities instead of ranking them.
	Search(ctx context.Context, query string, filters map[string]any, limit int) ([]SearchResult, error)
}
