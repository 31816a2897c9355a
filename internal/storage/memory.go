package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/engram-ai/engram-go/internal/graph"
)

// nameMatchBoost lifts exact name hits above content-only hits when
// ranking search results.
const nameMatchBoost = 10.0

// MemoryRepository is a map-backed Repository with O(1) lookups by id.
//
// Secondary indexes on entity type, lowercased name, adjacency, and
// search tokens keep queries proportional to the result set rather than
// the store size. Useful for tests and for short-lived commands that
// never touch disk.
type MemoryRepository struct {
	mu        sync.RWMutex
	entities  map[string]*graph.Entity
	relations map[string]*graph.Relation

	// Secondary indexes, kept in sync by the write methods.
	byType     map[graph.EntityType]map[string]*graph.Entity
	byName     map[string]map[string]bool
	outgoing   map[string]map[string]*graph.Relation
	incoming   map[string]map[string]*graph.Relation
	tokens     map[string]map[string]int
	tokensByID map[string][]string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entities:   make(map[string]*graph.Entity),
		relations:  make(map[string]*graph.Relation),
		byType:     make(map[graph.EntityType]map[string]*graph.Entity),
		byName:     make(map[string]map[string]bool),
		outgoing:   make(map[string]map[string]*graph.Relation),
		incoming:   make(map[string]map[string]*graph.Relation),
		tokens:     make(map[string]map[string]int),
		tokensByID: make(map[string][]string),
	}
}

// Close releases no resources; it exists to satisfy Repository.
func (m *MemoryRepository) Close() error {
	return nil
}

// SaveEntity persists a new entity, assigning an id when empty.
func (m *MemoryRepository) SaveEntity(ctx context.Context, entity *graph.Entity) (*graph.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entity.ID == "" {
		entity.ID = graph.NewID()
	}
	m.storeEntity(entity)
	return entity, nil
}

// GetEntity returns the entity with the given id, or nil if absent.
func (m *MemoryRepository) GetEntity(ctx context.Context, id string) (*graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities[id], nil
}

// UpdateEntity rewrites an existing entity and refreshes updated_at.
func (m *MemoryRepository) UpdateEntity(ctx context.Context, entity *graph.Entity) (*graph.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity.UpdatedAt = time.Now().UTC()
	m.storeEntity(entity)
	return entity, nil
}

// storeEntity writes the entity and its index entries. Write lock held.
func (m *MemoryRepository) storeEntity(entity *graph.Entity) {
	if old, ok := m.entities[entity.ID]; ok {
		m.unindexEntity(old)
	}

	m.entities[entity.ID] = entity

	if m.byType[entity.Type] == nil {
		m.byType[entity.Type] = make(map[string]*graph.Entity)
	}
	m.byType[entity.Type][entity.ID] = entity

	name := strings.ToLower(entity.Name)
	if m.byName[name] == nil {
		m.byName[name] = make(map[string]bool)
	}
	m.byName[name][entity.ID] = true

	freqs := entityTokenFreqs(entity)
	indexed := make([]string, 0, len(freqs))
	for token, freq := range freqs {
		if m.tokens[token] == nil {
			m.tokens[token] = make(map[string]int)
		}
		m.tokens[token][entity.ID] = freq
		indexed = append(indexed, token)
	}
	m.tokensByID[entity.ID] = indexed
}

// unindexEntity removes the entity's index entries. Write lock held.
func (m *MemoryRepository) unindexEntity(entity *graph.Entity) {
	delete(m.byType[entity.Type], entity.ID)
	delete(m.byName[strings.ToLower(entity.Name)], entity.ID)
	for _, token := range m.tokensByID[entity.ID] {
		delete(m.tokens[token], entity.ID)
	}
	delete(m.tokensByID, entity.ID)
}

// DeleteEntity removes the entity with the given id. Relations are left
// in place; cascading is the engine's responsibility.
func (m *MemoryRepository) DeleteEntity(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, ok := m.entities[id]
	if !ok {
		return false, nil
	}

	m.unindexEntity(entity)
	delete(m.entities, id)
	return true, nil
}

// GetAllEntities returns entities ordered by creation time, optionally
// filtered by type. A non-positive limit means no limit.
func (m *MemoryRepository) GetAllEntities(ctx context.Context, entityType string, limit int) ([]*graph.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*graph.Entity
	if entityType != "" {
		typed := m.byType[graph.EntityType(entityType)]
		result = make([]*graph.Entity, 0, len(typed))
		for _, entity := range typed {
			result = append(result, entity)
		}
	} else {
		result = make([]*graph.Entity, 0, len(m.entities))
		for _, entity := range m.entities {
			result = append(result, entity)
		}
	}

	sortEntities(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SaveRelation persists a new relation, assigning an id when empty.
// Endpoint existence is not checked.
func (m *MemoryRepository) SaveRelation(ctx context.Context, relation *graph.Relation) (*graph.Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if relation.ID == "" {
		relation.ID = graph.NewID()
	}

	if old, ok := m.relations[relation.ID]; ok {
		delete(m.outgoing[old.SourceID], old.ID)
		delete(m.incoming[old.TargetID], old.ID)
	}

	m.relations[relation.ID] = relation

	if m.outgoing[relation.SourceID] == nil {
		m.outgoing[relation.SourceID] = make(map[string]*graph.Relation)
	}
	m.outgoing[relation.SourceID][relation.ID] = relation

	if m.incoming[relation.TargetID] == nil {
		m.incoming[relation.TargetID] = make(map[string]*graph.Relation)
	}
	m.incoming[relation.TargetID][relation.ID] = relation

	return relation, nil
}

// GetRelationByID returns the relation with the given id, or nil if absent.
func (m *MemoryRepository) GetRelationByID(ctx context.Context, id string) (*graph.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relations[id], nil
}

// DeleteRelation removes the relation with the given id.
func (m *MemoryRepository) DeleteRelation(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	relation, ok := m.relations[id]
	if !ok {
		return false, nil
	}

	delete(m.relations, id)
	delete(m.outgoing[relation.SourceID], id)
	delete(m.incoming[relation.TargetID], id)
	return true, nil
}

// GetRelationsByType returns relations ordered by creation time,
// optionally filtered by type. A non-positive limit means no limit.
func (m *MemoryRepository) GetRelationsByType(ctx context.Context, relationType string, limit int) ([]*graph.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*graph.Relation, 0, len(m.relations))
	for _, relation := range m.relations {
		if relationType != "" && string(relation.Type) != relationType {
			continue
		}
		result = append(result, relation)
	}

	sortRelations(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// GetRelated returns the neighbors of the entity in both directions,
// ordered by relation creation time.
func (m *MemoryRepository) GetRelated(ctx context.Context, entityID string, relationTypes []string) ([]RelatedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	typeFilter := make(map[string]bool, len(relationTypes))
	for _, t := range relationTypes {
		typeFilter[t] = true
	}

	seen := make(map[string]bool)
	var connecting []*graph.Relation
	for _, relation := range m.outgoing[entityID] {
		if !seen[relation.ID] {
			seen[relation.ID] = true
			connecting = append(connecting, relation)
		}
	}
	for _, relation := range m.incoming[entityID] {
		if !seen[relation.ID] {
			seen[relation.ID] = true
			connecting = append(connecting, relation)
		}
	}
	sortRelations(connecting)

	var result []RelatedEntity
	for _, relation := range connecting {
		if len(typeFilter) > 0 && !typeFilter[string(relation.Type)] {
			continue
		}

		neighborID := relation.TargetID
		direction := "out"
		if relation.TargetID == entityID && relation.SourceID != entityID {
			neighborID = relation.SourceID
			direction = "in"
		}

		neighbor, ok := m.entities[neighborID]
		if !ok {
			continue
		}

		result = append(result, RelatedEntity{
			Entity:           neighbor,
			RelationID:       relation.ID,
			RelationType:     relation.Type,
			Direction:        direction,
			Strength:         relation.Strength,
			RelationMetadata: relation.Metadata,
		})
	}
	return result, nil
}

// Search ranks entities by summed term frequency over the query tokens,
// with an extra boost for exact name matches. An empty query lists
// entities instead.
func (m *MemoryRepository) Search(ctx context.Context, query string, filters map[string]any, limit int) ([]SearchResult, error) {
	entityType, _ := filters["type"].(string)

	if strings.TrimSpace(query) == "" {
		entities, err := m.GetAllEntities(ctx, entityType, limit)
		if err != nil {
			return nil, err
		}
		results := make([]SearchResult, 0, len(entities))
		for _, entity := range entities {
			results = append(results, SearchResult{Entity: entity})
		}
		return results, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make(map[string]float64)
	for _, token := range tokenize(query) {
		for entityID, freq := range m.tokens[token] {
			scores[entityID] += float64(freq)
		}
	}
	for entityID := range m.byName[strings.ToLower(query)] {
		scores[entityID] += nameMatchBoost
	}

	results := make([]SearchResult, 0, len(scores))
	for entityID, score := range scores {
		entity, ok := m.entities[entityID]
		if !ok {
			continue
		}
		if entityType != "" && string(entity.Type) != entityType {
			continue
		}
		results = append(results, SearchResult{Entity: entity, Score: score})
	}

	sortSearchResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// sortEntities orders entities by creation time, then id.
func sortEntities(entities []*graph.Entity) {
	sort.Slice(entities, func(i, j int) bool {
		if !entities[i].CreatedAt.Equal(entities[j].CreatedAt) {
			return entities[i].CreatedAt.Before(entities[j].CreatedAt)
		}
		return entities[i].ID < entities[j].ID
	})
}

// sortRelations orders relations by creation time, then id.
func sortRelations(relations []*graph.Relation) {
	sort.Slice(relations, func(i, j int) bool {
		if !relations[i].CreatedAt.Equal(relations[j].CreatedAt) {
			return relations[i].CreatedAt.Before(relations[j].CreatedAt)
		}
		return relations[i].ID < relations[j].ID
	})
}

// sortSearchResults orders results by score descending, then entity id.
func sortSearchResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.ID < results[j].Entity.ID
	})
}
