package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/engram-ai/engram-go/internal/graph"
	"github.com/engram-ai/engram-go/internal/storage"
)

// legacySearchLimit is the default result count for legacy search calls.
const legacySearchLimit = 20

// LegacyEntity is the numeric-id entity record older memory-graph
// clients consume.
type LegacyEntity struct {
	ID        int            `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Score     float64        `json:"score"`
}

// FeedRecord is one record of the flat graph feed: either an entity
// ({type:"entity", id, name, content, metadata, tags}) or a relation
// ({type:"relation", from, to, relationType, metadata}), with entity ids
// in the legacy integer space. The record kind occupies the "type" key,
// so the entity's own type travels in entity_type; legacy consumers
// ignore it.
type FeedRecord struct {
	Type         string         `json:"type"`
	ID           int            `json:"id,omitempty"`
	EntityType   string         `json:"entity_type,omitempty"`
	Name         string         `json:"name,omitempty"`
	Content      string         `json:"content,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	From         int            `json:"from,omitempty"`
	To           int            `json:"to,omitempty"`
	RelationType string         `json:"relationType,omitempty"`
}

// ObservationAdd names an entity and the observations to append to it.
type ObservationAdd struct {
	EntityName string   `json:"entityName"`
	Contents   []string `json:"contents"`
}

// ObservationDelete names an entity and the observations to remove.
type ObservationDelete struct {
	EntityName   string   `json:"entityName"`
	Observations []string `json:"observations"`
}

// CreateEntities creates the entities whose names are not already taken
// and returns only the genuinely new ones. Duplicate names within the
// store or the batch are skipped.
func (e *Engine) CreateEntities(ctx context.Context, payloads []map[string]any) ([]*graph.Entity, error) {
	var created []*graph.Entity
	for _, payload := range payloads {
		name := firstString(payload, "name")
		existing, err := e.findEntityByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		entity, err := e.CreateEntity(ctx, payload)
		if err != nil {
			return nil, fmt.Errorf("creating entity %q: %w", name, err)
		}
		created = append(created, entity)
	}
	return created, nil
}

// CreateRelations creates the relations that do not already exist and
// returns only the genuinely new ones. A relation duplicates another
// when source, target, and type all match.
func (e *Engine) CreateRelations(ctx context.Context, payloads []map[string]any) ([]*graph.Relation, error) {
	var created []*graph.Relation
	for _, payload := range payloads {
		parsed, err := parseRelation(payload)
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

		exists, err := e.relationExists(ctx, sourceID, targetID, parsed.Type)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}

		relation, err := e.CreateRelation(ctx, &graph.Relation{
			SourceID: sourceID,
			TargetID: targetID,
			Type:     graph.RelationType(parsed.Type),
			Strength: parsed.Strength,
			Metadata: parsed.Metadata,
		})
		if err != nil {
			return nil, err
		}
		created = append(created, relation)
	}
	return created, nil
}

// relationExists reports whether a source->target relation of the given
// type is already stored.
func (e *Engine) relationExists(ctx context.Context, sourceID, targetID, relationType string) (bool, error) {
	related, err := e.repo.GetRelated(ctx, sourceID, nil)
	if err != nil {
		return false, fmt.Errorf("checking for duplicate relation: %w", err)
	}
	for _, r := range related {
		if r.Direction == "out" && r.Entity.ID == targetID && string(r.RelationType) == relationType {
			return true, nil
		}
	}
	return false, nil
}

// AddObservations appends observations to entities found by name,
// skipping duplicates and unknown names. Returns the updated entities.
func (e *Engine) AddObservations(ctx context.Context, additions []ObservationAdd) ([]*graph.Entity, error) {
	var updated []*graph.Entity
	for _, addition := range additions {
		entity, err := e.findEntityByName(ctx, addition.EntityName)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}

		observations := entity.Observations()
		present := make(map[string]bool, len(observations))
		for _, obs := range observations {
			present[obs] = true
		}
		for _, content := range addition.Contents {
			if !present[content] {
				present[content] = true
				observations = append(observations, content)
			}
		}
		entity.SetObservations(observations)

		saved, err := e.repo.UpdateEntity(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("updating observations: %w", err)
		}
		updated = append(updated, saved)
	}
	return updated, nil
}

// DeleteEntities removes entities by name, cascading to their relations.
// Unknown names are skipped. Returns the number of entities deleted.
func (e *Engine) DeleteEntities(ctx context.Context, names []string) (int, error) {
	deleted := 0
	for _, name := range names {
		entity, err := e.findEntityByName(ctx, name)
		if err != nil {
			return deleted, err
		}
		if entity == nil {
			continue
		}

		ok, err := e.DeleteEntity(ctx, entity.ID)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// DeleteObservations removes the named observations from entities found
// by name. Unknown names are skipped.
func (e *Engine) DeleteObservations(ctx context.Context, deletions []ObservationDelete) error {
	for _, deletion := range deletions {
		entity, err := e.findEntityByName(ctx, deletion.EntityName)
		if err != nil {
			return err
		}
		if entity == nil {
			continue
		}

		remove := make(map[string]bool, len(deletion.Observations))
		for _, obs := range deletion.Observations {
			remove[obs] = true
		}

		var kept []string
		for _, obs := range entity.Observations() {
			if !remove[obs] {
				kept = append(kept, obs)
			}
		}
		entity.SetObservations(kept)

		if _, err := e.repo.UpdateEntity(ctx, entity); err != nil {
			return fmt.Errorf("updating observations: %w", err)
		}
	}
	return nil
}

// DeleteRelations removes relations matched by (from, to, relationType).
// Endpoints that do not resolve are skipped. Returns the number of
// relations deleted.
func (e *Engine) DeleteRelations(ctx context.Context, payloads []map[string]any) (int, error) {
	deleted := 0
	for _, payload := range payloads {
		parsed, err := parseRelation(payload)
		if err != nil {
			return deleted, err
		}
		sourceID, ok := e.resolveID(parsed.Source)
		if !ok {
			continue
		}
		targetID, ok := e.resolveID(parsed.Target)
		if !ok {
			continue
		}

		related, err := e.repo.GetRelated(ctx, sourceID, nil)
		if err != nil {
			return deleted, fmt.Errorf("finding relation: %w", err)
		}
		for _, r := range related {
			if r.Direction == "out" && r.Entity.ID == targetID && string(r.RelationType) == parsed.Type {
				ok, err := e.DeleteRelation(ctx, r.RelationID)
				if err != nil {
					return deleted, err
				}
				if ok {
					deleted++
				}
				break
			}
		}
	}
	return deleted, nil
}

// ReadGraph returns the whole graph as a flat feed: entity records
// first, then relation records, with legacy integer ids throughout.
func (e *Engine) ReadGraph(ctx context.Context) ([]FeedRecord, error) {
	entities, err := e.repo.GetAllEntities(ctx, "", scanLimit)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	relations, err := e.repo.GetRelationsByType(ctx, "", scanLimit)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}

	feed := make([]FeedRecord, 0, len(entities)+len(relations))
	for _, entity := range entities {
		feed = append(feed, FeedRecord{
			Type:       "entity",
			ID:         e.NumericID(entity.ID),
			EntityType: string(entity.Type),
			Name:       entity.Name,
			Content:    entity.Content,
			Metadata:   entity.Metadata,
			Tags:       entity.Tags,
		})
	}
	for _, relation := range relations {
		feed = append(feed, FeedRecord{
			Type:         "relation",
			From:         e.NumericID(relation.SourceID),
			To:           e.NumericID(relation.TargetID),
			RelationType: string(relation.Type),
			Metadata:     relation.Metadata,
		})
	}
	return feed, nil
}

// SearchNodes performs a legacy search returning numeric-id records.
func (e *Engine) SearchNodes(ctx context.Context, query string) ([]LegacyEntity, error) {
	results, err := e.Search(ctx, query, "", legacySearchLimit)
	if err != nil {
		return nil, err
	}

	records := make([]LegacyEntity, 0, len(results))
	for _, result := range results {
		records = append(records, e.legacyEntity(result.Entity, result.Score))
	}
	return records, nil
}

// OpenNodes looks up entities by exact name and returns numeric-id
// records for the ones that exist.
func (e *Engine) OpenNodes(ctx context.Context, names []string) ([]LegacyEntity, error) {
	var records []LegacyEntity
	for _, name := range names {
		entity, err := e.findEntityByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			continue
		}
		records = append(records, e.legacyEntity(entity, 0))
	}
	return records, nil
}

// legacyEntity shapes an entity into the numeric-id record format.
func (e *Engine) legacyEntity(entity *graph.Entity, score float64) LegacyEntity {
	return LegacyEntity{
		ID:        e.NumericID(entity.ID),
		Type:      string(entity.Type),
		Name:      entity.Name,
		Content:   entity.Content,
		Metadata:  entity.Metadata,
		Tags:      entity.Tags,
		CreatedAt: entity.CreatedAt,
		UpdatedAt: entity.UpdatedAt,
		Score:     score,
	}
}

// LegacySearchResults shapes engine search results into numeric-id
// records, for surfaces that still speak the legacy format.
func (e *Engine) LegacySearchResults(results []storage.SearchResult) []LegacyEntity {
	records := make([]LegacyEntity, 0, len(results))
	for _, result := range results {
		records = append(records, e.legacyEntity(result.Entity, result.Score))
	}
	return records
}

// LegacyEntities shapes canonical entities into numeric-id records.
func (e *Engine) LegacyEntities(entities []*graph.Entity) []LegacyEntity {
	records := make([]LegacyEntity, 0, len(entities))
	for _, entity := range entities {
		records = append(records, e.legacyEntity(entity, 0))
	}
	return records
}

// LegacyRelations shapes canonical relations into numeric-endpoint feed
// records.
func (e *Engine) LegacyRelations(relations []*graph.Relation) []FeedRecord {
	records := make([]FeedRecord, 0, len(relations))
	for _, relation := range relations {
		records = append(records, FeedRecord{
			Type:         "relation",
			From:         e.NumericID(relation.SourceID),
			To:           e.NumericID(relation.TargetID),
			RelationType: string(relation.Type),
			Metadata:     relation.Metadata,
		})
	}
	return records
}

// findEntityByName returns the entity whose name matches exactly
// (case-insensitive), or nil when no such entity exists. Only the top
// search hit is considered.
func (e *Engine) findEntityByName(ctx context.Context, name string) (*graph.Entity, error) {
	if name == "" {
		return nil, nil
	}
	hits, err := e.repo.Search(ctx, name, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("looking up entity by name: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}
	if !strings.EqualFold(hits[0].Entity.Name, name) {
		return nil, nil
	}
	return hits[0].Entity, nil
}
