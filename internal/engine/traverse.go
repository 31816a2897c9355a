package engine

import (
	"context"
	"fmt"

	"github.com/engram-ai/engram-go/internal/graph"
)

// Subgraph is the bounded neighborhood of a root entity: every entity
// reachable within the depth bound, plus the distinct relations among the
// visited entities.
type Subgraph struct {
	Entities  []*graph.Entity   `json:"entities"`
	Relations []*graph.Relation `json:"relations"`
	RootID    string            `json:"root_id"`
	Depth     int               `json:"depth"`
}

// Subgraph collects the neighborhood of the root via breadth-first
// expansion. Relations are deduplicated by (source, target, type);
// neighbors are expanded only while the current depth is below the bound.
// An id that does not resolve yields an empty subgraph.
func (e *Engine) Subgraph(ctx context.Context, root any, depth int) (*Subgraph, error) {
	result := &Subgraph{
		Entities:  []*graph.Entity{},
		Relations: []*graph.Relation{},
		Depth:     depth,
	}

	rootID, ok := e.resolveID(root)
	if !ok {
		return result, nil
	}
	result.RootID = rootID

	type queueItem struct {
		id    string
		depth int
	}

	visited := make(map[string]bool)
	seenRelations := make(map[string]bool)
	queue := []queueItem{{id: rootID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current.id] || current.depth > depth {
			continue
		}
		visited[current.id] = true

		entity, err := e.repo.GetEntity(ctx, current.id)
		if err != nil {
			return nil, fmt.Errorf("loading subgraph entity: %w", err)
		}
		if entity != nil {
			result.Entities = append(result.Entities, entity)
		}

		if current.depth >= depth {
			continue
		}

		related, err := e.repo.GetRelated(ctx, current.id, nil)
		if err != nil {
			return nil, fmt.Errorf("expanding subgraph: %w", err)
		}
		for _, r := range related {
			relation, err := e.repo.GetRelationByID(ctx, r.RelationID)
			if err != nil {
				return nil, fmt.Errorf("loading subgraph relation: %w", err)
			}
			if relation == nil {
				// Index entry without a backing relation: fall back to
				// treating the current entity as the source.
				relation = &graph.Relation{
					ID:       r.RelationID,
					SourceID: current.id,
					TargetID: r.Entity.ID,
					Type:     r.RelationType,
					Strength: r.Strength,
					Metadata: r.RelationMetadata,
				}
			}

			key := fmt.Sprintf("%s:%s:%s", relation.SourceID, relation.TargetID, relation.Type)
			if !seenRelations[key] {
				seenRelations[key] = true
				result.Relations = append(result.Relations, relation)
			}

			if !visited[r.Entity.ID] {
				queue = append(queue, queueItem{id: r.Entity.ID, depth: current.depth + 1})
			}
		}
	}

	return result, nil
}

// ShortestPath finds a fewest-hop path between two entities, expanding
// the adjacency lazily one node at a time so the cost is proportional to
// the explored region. Returns the inclusive path of stable ids,
// [source] when both ids resolve to the same entity, and an empty path
// when either id does not resolve or no path exists.
func (e *Engine) ShortestPath(ctx context.Context, source, target any) ([]string, error) {
	sourceID, ok := e.resolveID(source)
	if !ok {
		return []string{}, nil
	}
	targetID, ok := e.resolveID(target)
	if !ok {
		return []string{}, nil
	}
	if sourceID == targetID {
		return []string{sourceID}, nil
	}

	parent := make(map[string]string)
	visited := map[string]bool{sourceID: true}
	queue := []string{sourceID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		related, err := e.repo.GetRelated(ctx, current, nil)
		if err != nil {
			return nil, fmt.Errorf("expanding path search: %w", err)
		}
		for _, r := range related {
			neighbor := r.Entity.ID
			if neighbor == targetID {
				parent[neighbor] = current
				return reconstruct(parent, sourceID, targetID), nil
			}
			if !visited[neighbor] {
				visited[neighbor] = true
				parent[neighbor] = current
				queue = append(queue, neighbor)
			}
		}
	}

	return []string{}, nil
}

// reconstruct walks parent pointers from target back to source.
func reconstruct(parent map[string]string, sourceID, targetID string) []string {
	path := []string{targetID}
	for current := targetID; current != sourceID; {
		current = parent[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// buildAdjacency constructs an adjacency view over stored entities,
// optionally restricted to one entity type, together with the type of
// every node it mentions. At most scanLimit entities seed the view.
func (e *Engine) buildAdjacency(ctx context.Context, entityType string) (graph.Adjacency, map[string]string, error) {
	entities, err := e.repo.GetAllEntities(ctx, entityType, scanLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("listing entities: %w", err)
	}

	adj := make(graph.Adjacency, len(entities))
	nodeTypes := make(map[string]string, len(entities))
	for _, entity := range entities {
		adj.AddNode(entity.ID)
		nodeTypes[entity.ID] = string(entity.Type)
	}

	for _, entity := range entities {
		related, err := e.repo.GetRelated(ctx, entity.ID, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("expanding adjacency: %w", err)
		}
		for _, r := range related {
			// One-way append: the reverse direction is covered when the
			// neighbor's own relations are expanded.
			adj[entity.ID] = append(adj[entity.ID], r.Entity.ID)
			nodeTypes[r.Entity.ID] = string(r.Entity.Type)
		}
	}
	return adj, nodeTypes, nil
}

// FindClusters groups connected entities, optionally restricted to one
// entity type (edges then count only between entities of that type).
// Single-entity clusters are omitted.
func (e *Engine) FindClusters(ctx context.Context, entityType string) ([][]string, error) {
	adj, nodeTypes, err := e.buildAdjacency(ctx, entityType)
	if err != nil {
		return nil, err
	}
	return graph.ClustersByType(adj, nodeTypes, entityType), nil
}

// Communities assigns every stored entity to a community via local
// modularity search over the full adjacency view.
func (e *Engine) Communities(ctx context.Context, resolution float64) (map[string]int, error) {
	adj, _, err := e.buildAdjacency(ctx, "")
	if err != nil {
		return nil, err
	}
	return graph.DetectCommunities(adj, resolution), nil
}

// CentralityAll computes normalized degree centrality for every stored
// entity over the full adjacency view.
func (e *Engine) CentralityAll(ctx context.Context) (map[string]float64, error) {
	adj, _, err := e.buildAdjacency(ctx, "")
	if err != nil {
		return nil, err
	}
	return graph.DegreeCentrality(adj), nil
}

// Betweenness computes approximate betweenness centrality over the full
// adjacency view, sampling sampleSize nodes when positive and smaller
// than the node count.
func (e *Engine) Betweenness(ctx context.Context, sampleSize int) (map[string]float64, error) {
	adj, _, err := e.buildAdjacency(ctx, "")
	if err != nil {
		return nil, err
	}
	return graph.BetweennessCentrality(adj, sampleSize), nil
}

// Metrics summarizes the stored graph: size, degree, density, component
// structure, and approximate average path length.
func (e *Engine) Metrics(ctx context.Context) (graph.Metrics, error) {
	adj, _, err := e.buildAdjacency(ctx, "")
	if err != nil {
		return graph.Metrics{}, err
	}
	return graph.CalculateMetrics(adj), nil
}

// Orphans returns stored entities with no relations in either direction.
func (e *Engine) Orphans(ctx context.Context) ([]*graph.Entity, error) {
	entities, err := e.repo.GetAllEntities(ctx, "", scanLimit)
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}

	var orphans []*graph.Entity
	for _, entity := range entities {
		count, err := e.relationCount(ctx, entity.ID)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			orphans = append(orphans, entity)
		}
	}
	return orphans, nil
}
