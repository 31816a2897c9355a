package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/engram-ai/engram-go/internal/graph"
	"github.com/engram-ai/engram-go/internal/storage"
)

// scanLimit bounds how many entities full-graph operations (cluster,
// community, metrics, orphan scans) and the id-mapping restore pull from
// the repository.
const scanLimit = 1000

// Engine is the knowledge graph engine.
//
// It accepts canonical and legacy payloads, delegates persistence to a
// storage.Repository, maintains the legacy integer-id mapping, and caches
// centrality scores and relation counts. The caches are invalidated in
// full by any relation creation or deletion and by any entity deletion.
type Engine struct {
	repo storage.Repository

	// mu guards the id mapping and both caches. Repository calls are
	// made without holding it.
	mu         sync.Mutex
	ids        *IDMap
	centrality map[string]float64
	relCounts  map[string]int
}

// New creates an engine on top of the repository and restores the legacy
// id mapping from stored legacy_id metadata.
func New(ctx context.Context, repo storage.Repository) (*Engine, error) {
	e := &Engine{
		repo:       repo,
		ids:        NewIDMap(),
		centrality: make(map[string]float64),
		relCounts:  make(map[string]int),
	}

	entities, err := repo.GetAllEntities(ctx, "", scanLimit)
	if err != nil {
		return nil, fmt.Errorf("restoring id mapping: %w", err)
	}
	for _, entity := range entities {
		if legacy, ok := entity.LegacyID(); ok {
			e.ids.Record(legacy, entity.ID)
		}
	}
	return e, nil
}

// Repository returns the underlying repository.
func (e *Engine) Repository() storage.Repository {
	return e.repo
}

// CreateEntity persists an entity from a canonical *graph.Entity or a
// legacy map payload. When the payload carried a legacy integer id, the
// mapping is recorded.
func (e *Engine) CreateEntity(ctx context.Context, payload any) (*graph.Entity, error) {
	entity, err := normalizeEntity(payload)
	if err != nil {
		return nil, err
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now().UTC()
	}

	saved, err := e.repo.SaveEntity(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("saving entity: %w", err)
	}

	if legacy, ok := saved.LegacyID(); ok {
		e.mu.Lock()
		e.ids.Record(legacy, saved.ID)
		e.mu.Unlock()
	}
	return saved, nil
}

// CreateRelation persists a relation from a canonical *graph.Relation or
// a legacy map payload. Integer endpoints are resolved through the id
// mapping; an endpoint that does not resolve aborts with an error. Both
// caches are invalidated.
func (e *Engine) CreateRelation(ctx context.Context, payload any) (*graph.Relation, error) {
	var relation *graph.Relation

	switch p := payload.(type) {
	case *graph.Relation:
		if p.SourceID == "" || p.TargetID == "" {
			return nil, fmt.Errorf("invalid source or target id")
		}
		if p.Type == "" {
			return nil, fmt.Errorf("relation type is required")
		}
		if p.Strength == 0 {
			p.Strength = graph.DefaultStrength
		}
		relation = p

	case map[string]any:
		parsed, err := parseRelation(p)
		if err != nil {
			return nil, err
		}
		sourceID, ok := e.resolveID(parsed.Source)
		if !ok {
			return nil, fmt.Errorf("invalid source or target id")
		}
		targetID, ok := e.resolveID(parsed.Target)
		if !ok {
			return nil, fmt.Errorf("invalid source or target id")
		}
		relation = &graph.Relation{
			SourceID: sourceID,
			TargetID: targetID,
			Type:     graph.RelationType(parsed.Type),
			Strength: parsed.Strength,
			Metadata: parsed.Metadata,
		}

	default:
		return nil, fmt.Errorf("unsupported relation payload type %T", payload)
	}

	if relation.CreatedAt.IsZero() {
		relation.CreatedAt = time.Now().UTC()
	}

	saved, err := e.repo.SaveRelation(ctx, relation)
	if err != nil {
		return nil, fmt.Errorf("saving relation: %w", err)
	}
	e.invalidateCaches()
	return saved, nil
}

// GetEntity returns the entity for a stable or legacy integer id, or nil
// when the id does not resolve or the entity is absent.
func (e *Engine) GetEntity(ctx context.Context, id any) (*graph.Entity, error) {
	stable, ok := e.resolveID(id)
	if !ok {
		return nil, nil
	}
	return e.repo.GetEntity(ctx, stable)
}

// DeleteEntity removes an entity together with every relation that
// references it, cleans its id mapping, and invalidates both caches.
// Returns false when the id does not resolve or nothing was stored.
func (e *Engine) DeleteEntity(ctx context.Context, id any) (bool, error) {
	stable, ok := e.resolveID(id)
	if !ok {
		return false, nil
	}

	entity, err := e.repo.GetEntity(ctx, stable)
	if err != nil {
		return false, err
	}
	if entity == nil {
		return false, nil
	}

	related, err := e.repo.GetRelated(ctx, stable, nil)
	if err != nil {
		return false, fmt.Errorf("collecting relations: %w", err)
	}
	for _, r := range related {
		if _, err := e.repo.DeleteRelation(ctx, r.RelationID); err != nil {
			return false, fmt.Errorf("cascading relation delete: %w", err)
		}
	}

	deleted, err := e.repo.DeleteEntity(ctx, stable)
	if err != nil {
		return false, err
	}
	if deleted {
		e.mu.Lock()
		e.ids.Remove(stable)
		e.mu.Unlock()
		e.invalidateCaches()
	}
	return deleted, nil
}

// DeleteRelation removes a relation by id and invalidates both caches.
func (e *Engine) DeleteRelation(ctx context.Context, id string) (bool, error) {
	deleted, err := e.repo.DeleteRelation(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		e.invalidateCaches()
	}
	return deleted, nil
}

// RelatedEntities returns the neighbors of an entity, optionally
// restricted to one relation type. Empty when the id does not resolve.
func (e *Engine) RelatedEntities(ctx context.Context, id any, relationType string) ([]storage.RelatedEntity, error) {
	stable, ok := e.resolveID(id)
	if !ok {
		return nil, nil
	}

	var types []string
	if relationType != "" {
		types = []string{relationType}
	}
	return e.repo.GetRelated(ctx, stable, types)
}

// Search performs ranked text search, optionally filtered by entity type.
func (e *Engine) Search(ctx context.Context, query, entityType string, limit int) ([]storage.SearchResult, error) {
	var filters map[string]any
	if entityType != "" {
		filters = map[string]any{"type": entityType}
	}
	return e.repo.Search(ctx, query, filters, limit)
}

// EntityCentrality returns the cached degree of an entity: the number of
// relations touching it. Recomputed on cache miss; the whole cache is
// dropped by any relation mutation.
func (e *Engine) EntityCentrality(ctx context.Context, id any) (float64, error) {
	stable, ok := e.resolveID(id)
	if !ok {
		return 0, nil
	}

	e.mu.Lock()
	if score, ok := e.centrality[stable]; ok {
		e.mu.Unlock()
		return score, nil
	}
	e.mu.Unlock()

	related, err := e.repo.GetRelated(ctx, stable, nil)
	if err != nil {
		return 0, fmt.Errorf("computing centrality: %w", err)
	}
	score := float64(len(related))

	e.mu.Lock()
	e.centrality[stable] = score
	e.mu.Unlock()
	return score, nil
}

// relationCount returns the cached number of relations touching an
// entity, for orphan detection.
func (e *Engine) relationCount(ctx context.Context, stable string) (int, error) {
	e.mu.Lock()
	if count, ok := e.relCounts[stable]; ok {
		e.mu.Unlock()
		return count, nil
	}
	e.mu.Unlock()

	related, err := e.repo.GetRelated(ctx, stable, nil)
	if err != nil {
		return 0, fmt.Errorf("counting relations: %w", err)
	}

	e.mu.Lock()
	e.relCounts[stable] = len(related)
	e.mu.Unlock()
	return len(related), nil
}

// NumericID returns the legacy integer id for a stable id, allocating
// one on first exposure.
func (e *Engine) NumericID(stable string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ids.ToNumeric(stable)
}

// StableID returns the stable id behind a legacy integer id.
func (e *Engine) StableID(numeric int) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ids.ToStable(numeric)
}

// PersistNumericID exposes an entity's numeric id and writes it into the
// entity's legacy_id metadata, so the mapping survives restarts. Entities
// that already carry a legacy id keep it.
func (e *Engine) PersistNumericID(ctx context.Context, stable string) (int, error) {
	numeric := e.NumericID(stable)

	entity, err := e.repo.GetEntity(ctx, stable)
	if err != nil {
		return numeric, fmt.Errorf("loading entity: %w", err)
	}
	if entity == nil {
		return numeric, nil
	}
	if _, ok := entity.LegacyID(); ok {
		return numeric, nil
	}

	if entity.Metadata == nil {
		entity.Metadata = make(map[string]any, 1)
	}
	entity.Metadata[graph.MetaLegacyID] = numeric
	if _, err := e.repo.UpdateEntity(ctx, entity); err != nil {
		return numeric, fmt.Errorf("persisting numeric id: %w", err)
	}
	return numeric, nil
}

// resolveID maps a caller-supplied id to a stable id. Strings pass
// through unchanged; integers go through the legacy mapping; anything
// else does not resolve.
func (e *Engine) resolveID(id any) (string, bool) {
	if s, ok := id.(string); ok {
		return s, s != ""
	}
	if numeric, ok := intValue(id); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.ids.ToStable(numeric)
	}
	return "", false
}

// invalidateCaches drops both result caches in full.
func (e *Engine) invalidateCaches() {
	e.mu.Lock()
	e.centrality = make(map[string]float64)
	e.relCounts = make(map[string]int)
	e.mu.Unlock()
}
