package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/engram-ai/engram-go/internal/graph"
)

// Key prefixes for the Badger key space.
const (
	prefixEntity   = "e:"     // entity data
	prefixRelation = "r:"     // relation data
	prefixOutgoing = "i:out:" // i:out:entityID:relID -> relID
	prefixIncoming = "i:in:"  // i:in:entityID:relID -> relID
	prefixName     = "n:"     // n:lowercased-name:entityID -> entityID
)

// BadgerRepository is a BadgerDB-backed Repository.
//
// Entities and relations are stored as JSON values; adjacency, name, and
// full-text indexes are maintained transactionally alongside each write.
type BadgerRepository struct {
	mu  sync.RWMutex
	db  *badger.DB
	fts *ftsIndex
}

// NewBadgerRepository opens or creates the database at the given path.
func NewBadgerRepository(path string, readOnly bool) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}

	return &BadgerRepository{db: db, fts: &ftsIndex{db: db}}, nil
}

// Close releases all resources held by the repository.
func (b *BadgerRepository) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// SaveEntity persists a new entity, assigning an id when empty.
func (b *BadgerRepository) SaveEntity(ctx context.Context, entity *graph.Entity) (*graph.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entity.ID == "" {
		entity.ID = graph.NewID()
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := b.writeEntity(txn, entity); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("committing entity: %w", err)
	}
	return entity, nil
}

// writeEntity stores the entity and its index entries within txn,
// clearing stale name index entries on rename.
func (b *BadgerRepository) writeEntity(txn *badger.Txn, entity *graph.Entity) error {
	old, err := b.readEntity(txn, entity.ID)
	if err != nil {
		return err
	}
	if old != nil && !strings.EqualFold(old.Name, entity.Name) {
		if err := txn.Delete(b.nameKey(old.Name, old.ID)); err != nil {
			return fmt.Errorf("deleting name index: %w", err)
		}
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}
	if err := txn.Set(b.entityKey(entity.ID), data); err != nil {
		return fmt.Errorf("setting entity: %w", err)
	}
	if err := txn.Set(b.nameKey(entity.Name, entity.ID), []byte(entity.ID)); err != nil {
		return fmt.Errorf("setting name index: %w", err)
	}
	return b.fts.indexEntity(txn, entity)
}

// GetEntity returns the entity with the given id, or nil if absent.
func (b *BadgerRepository) GetEntity(ctx context.Context, id string) (*graph.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	return b.readEntity(txn, id)
}

// readEntity loads an entity within txn, nil when absent.
func (b *BadgerRepository) readEntity(txn *badger.Txn, id string) (*graph.Entity, error) {
	item, err := txn.Get(b.entityKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity: %w", err)
	}

	var entity graph.Entity
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &entity)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling entity: %w", err)
	}
	return &entity, nil
}

// UpdateEntity rewrites an existing entity and refreshes updated_at.
func (b *BadgerRepository) UpdateEntity(ctx context.Context, entity *graph.Entity) (*graph.Entity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entity.UpdatedAt = time.Now().UTC()

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := b.writeEntity(txn, entity); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("committing entity: %w", err)
	}
	return entity, nil
}

// DeleteEntity removes the entity with the given id. Relations are left
// in place; cascading is the engine's responsibility.
func (b *BadgerRepository) DeleteEntity(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	entity, err := b.readEntity(txn, id)
	if err != nil {
		return false, err
	}
	if entity == nil {
		return false, nil
	}

	if err := txn.Delete(b.entityKey(id)); err != nil {
		return false, fmt.Errorf("deleting entity: %w", err)
	}
	if err := txn.Delete(b.nameKey(entity.Name, id)); err != nil {
		return false, fmt.Errorf("deleting name index: %w", err)
	}
	if err := b.fts.removeEntity(txn, id); err != nil {
		return false, err
	}
	if err := txn.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}
	return true, nil
}

// GetAllEntities returns entities in key order, optionally filtered by
// type. A non-positive limit means no limit.
func (b *BadgerRepository) GetAllEntities(ctx context.Context, entityType string, limit int) ([]*graph.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixEntity)
	it := txn.NewIterator(opts)
	defer it.Close()

	var result []*graph.Entity
	for it.Rewind(); it.Valid(); it.Next() {
		var entity graph.Entity
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling entity: %w", err)
		}
		if entityType != "" && string(entity.Type) != entityType {
			continue
		}
		result = append(result, &entity)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// SaveRelation persists a new relation and its adjacency index entries,
// assigning an id when empty. Endpoint existence is not checked.
func (b *BadgerRepository) SaveRelation(ctx context.Context, relation *graph.Relation) (*graph.Relation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if relation.ID == "" {
		relation.ID = graph.NewID()
	}

	data, err := json.Marshal(relation)
	if err != nil {
		return nil, fmt.Errorf("marshaling relation: %w", err)
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := txn.Set(b.relationKey(relation.ID), data); err != nil {
		return nil, fmt.Errorf("setting relation: %w", err)
	}
	outKey := fmt.Sprintf("%s%s:%s", prefixOutgoing, relation.SourceID, relation.ID)
	if err := txn.Set([]byte(outKey), []byte(relation.ID)); err != nil {
		return nil, fmt.Errorf("setting outgoing index: %w", err)
	}
	inKey := fmt.Sprintf("%s%s:%s", prefixIncoming, relation.TargetID, relation.ID)
	if err := txn.Set([]byte(inKey), []byte(relation.ID)); err != nil {
		return nil, fmt.Errorf("setting incoming index: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("committing relation: %w", err)
	}
	return relation, nil
}

// GetRelationByID returns the relation with the given id, or nil if absent.
func (b *BadgerRepository) GetRelationByID(ctx context.Context, id string) (*graph.Relation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	return b.readRelation(txn, id)
}

// readRelation loads a relation within txn, nil when absent.
func (b *BadgerRepository) readRelation(txn *badger.Txn, id string) (*graph.Relation, error) {
	item, err := txn.Get(b.relationKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting relation: %w", err)
	}

	var relation graph.Relation
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &relation)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling relation: %w", err)
	}
	return &relation, nil
}

// DeleteRelation removes the relation and its adjacency index entries.
func (b *BadgerRepository) DeleteRelation(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	relation, err := b.readRelation(txn, id)
	if err != nil {
		return false, err
	}
	if relation == nil {
		return false, nil
	}

	if err := txn.Delete(b.relationKey(id)); err != nil {
		return false, fmt.Errorf("deleting relation: %w", err)
	}
	outKey := fmt.Sprintf("%s%s:%s", prefixOutgoing, relation.SourceID, id)
	if err := txn.Delete([]byte(outKey)); err != nil {
		return false, fmt.Errorf("deleting outgoing index: %w", err)
	}
	inKey := fmt.Sprintf("%s%s:%s", prefixIncoming, relation.TargetID, id)
	if err := txn.Delete([]byte(inKey)); err != nil {
		return false, fmt.Errorf("deleting incoming index: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}
	return true, nil
}

// GetRelationsByType returns relations in key order, optionally filtered
// by type. A non-positive limit means no limit.
func (b *BadgerRepository) GetRelationsByType(ctx context.Context, relationType string, limit int) ([]*graph.Relation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixRelation)
	it := txn.NewIterator(opts)
	defer it.Close()

	var result []*graph.Relation
	for it.Rewind(); it.Valid(); it.Next() {
		var relation graph.Relation
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &relation)
		}); err != nil {
			return nil, fmt.Errorf("unmarshaling relation: %w", err)
		}
		if relationType != "" && string(relation.Type) != relationType {
			continue
		}
		result = append(result, &relation)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// GetRelated returns the neighbors of the entity in both directions,
// in adjacency key order.
func (b *BadgerRepository) GetRelated(ctx context.Context, entityID string, relationTypes []string) ([]RelatedEntity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typeFilter := make(map[string]bool, len(relationTypes))
	for _, t := range relationTypes {
		typeFilter[t] = true
	}

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	var result []RelatedEntity
	seen := make(map[string]bool)

	collect := func(prefix string, direction string) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var relID string
			if err := it.Item().Value(func(val []byte) error {
				relID = string(val)
				return nil
			}); err != nil {
				return fmt.Errorf("reading relation id: %w", err)
			}
			if seen[relID] {
				continue
			}
			seen[relID] = true

			relation, err := b.readRelation(txn, relID)
			if err != nil {
				return err
			}
			if relation == nil {
				continue
			}
			if len(typeFilter) > 0 && !typeFilter[string(relation.Type)] {
				continue
			}

			neighborID := relation.TargetID
			if direction == "in" {
				neighborID = relation.SourceID
			}
			neighbor, err := b.readEntity(txn, neighborID)
			if err != nil {
				return err
			}
			if neighbor == nil {
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
		return nil
	}

	if err := collect(prefixOutgoing+entityID+":", "out"); err != nil {
		return nil, err
	}
	if err := collect(prefixIncoming+entityID+":", "in"); err != nil {
		return nil, err
	}
	return result, nil
}

// Search ranks entities by summed term frequency over the query tokens,
// with an extra boost for exact name matches. An empty query lists
// entities instead.
func (b *BadgerRepository) Search(ctx context.Context, query string, filters map[string]any, limit int) ([]SearchResult, error) {
	entityType, _ := filters["type"].(string)

	if strings.TrimSpace(query) == "" {
		entities, err := b.GetAllEntities(ctx, entityType, limit)
		if err != nil {
			return nil, err
		}
		results := make([]SearchResult, 0, len(entities))
		for _, entity := range entities {
			results = append(results, SearchResult{Entity: entity})
		}
		return results, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	scores := b.fts.scores(txn, query)

	namePrefix := prefixName + strings.ToLower(query) + ":"
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(namePrefix)
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		entityID := strings.TrimPrefix(string(it.Item().Key()), namePrefix)
		scores[entityID] += nameMatchBoost
	}
	it.Close()

	results := make([]SearchResult, 0, len(scores))
	for entityID, score := range scores {
		entity, err := b.readEntity(txn, entityID)
		if err != nil {
			return nil, err
		}
		if entity == nil {
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

// entityKey returns the Badger key for an entity.
func (b *BadgerRepository) entityKey(id string) []byte {
	return []byte(prefixEntity + id)
}

// relationKey returns the Badger key for a relation.
func (b *BadgerRepository) relationKey(id string) []byte {
	return []byte(prefixRelation + id)
}

// nameKey returns the Badger key for a name index entry.
func (b *BadgerRepository) nameKey(name, id string) []byte {
	return []byte(prefixName + strings.ToLower(name) + ":" + id)
}
