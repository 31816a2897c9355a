package engine

import (
	"context"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"

	"github.com/engram-ai/engram-go/internal/graph"
)

// knowledgeSearchLimit is the default result count for knowledge searches.
const knowledgeSearchLimit = 50

// Codebase describes a registered codebase.
type Codebase struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RootPath    string    `json:"root_path"`
	Description string    `json:"description,omitempty"`
	Remote      string    `json:"remote,omitempty"`
	Commit      string    `json:"commit,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// KnowledgeNode is the numeric-id record shape for codebase knowledge.
type KnowledgeNode struct {
	ID         int            `json:"id"`
	CodebaseID string         `json:"codebase_id"`
	NodeType   string         `json:"node_type"`
	Name       string         `json:"name"`
	Content    string         `json:"content"`
	Path       string         `json:"path,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// KnowledgeQueryResult wraps the nodes matched by a knowledge query.
type KnowledgeQueryResult struct {
	Nodes []*KnowledgeNode `json:"nodes"`
}

// RegisterCodebase records a codebase as an entity whose stable id is the
// codebase id. Registering an already known id returns the existing record
// unchanged. When rootPath is a git repository, the origin remote URL and
// HEAD commit are captured into the entity metadata.
func (e *Engine) RegisterCodebase(ctx context.Context, id, name, rootPath, description string) (*Codebase, error) {
	if id == "" {
		return nil, fmt.Errorf("codebase id is required")
	}

	existing, err := e.repo.GetEntity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up codebase: %w", err)
	}
	if existing != nil {
		return codebaseFromEntity(existing), nil
	}

	metadata := map[string]any{"root_path": rootPath}
	if remote, commit, ok := gitInfo(rootPath); ok {
		if remote != "" {
			metadata["remote"] = remote
		}
		if commit != "" {
			metadata["commit"] = commit
		}
	}

	entity, err := e.CreateEntity(ctx, &graph.Entity{
		ID:       id,
		Type:     graph.EntityCodebase,
		Name:     name,
		Content:  description,
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("registering codebase: %w", err)
	}
	return codebaseFromEntity(entity), nil
}

// ListCodebases returns every registered codebase.
func (e *Engine) ListCodebases(ctx context.Context) ([]*Codebase, error) {
	entities, err := e.repo.GetAllEntities(ctx, string(graph.EntityCodebase), scanLimit)
	if err != nil {
		return nil, fmt.Errorf("listing codebases: %w", err)
	}

	codebases := make([]*Codebase, 0, len(entities))
	for _, entity := range entities {
		codebases = append(codebases, codebaseFromEntity(entity))
	}
	return codebases, nil
}

// GetCodebase returns the codebase registered under id, or nil.
func (e *Engine) GetCodebase(ctx context.Context, id string) (*Codebase, error) {
	entity, err := e.repo.GetEntity(ctx, id)
	if err != nil || entity == nil {
		return nil, err
	}
	if entity.Type != graph.EntityCodebase {
		return nil, nil
	}
	return codebaseFromEntity(entity), nil
}

// AddKnowledgeNode stores a knowledge node tied to a codebase and returns
// it with its numeric id.
func (e *Engine) AddKnowledgeNode(ctx context.Context, codebaseID, nodeType, name, content, path string, metadata map[string]any) (*KnowledgeNode, error) {
	md := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md[graph.MetaCodebaseID] = codebaseID
	if path != "" {
		md[graph.MetaPath] = path
	}

	entity, err := e.CreateEntity(ctx, &graph.Entity{
		Type:     graph.EntityType(nodeType),
		Name:     name,
		Content:  content,
		Metadata: md,
	})
	if err != nil {
		return nil, fmt.Errorf("adding knowledge node: %w", err)
	}
	return e.knowledgeNode(entity), nil
}

// AddKnowledgeRelation relates two knowledge nodes by their numeric ids.
func (e *Engine) AddKnowledgeRelation(ctx context.Context, sourceID, targetID int, relationType string, metadata map[string]any) (*graph.Relation, error) {
	payload := map[string]any{
		"from":         sourceID,
		"to":           targetID,
		"relationType": relationType,
	}
	if metadata != nil {
		payload["metadata"] = metadata
	}
	return e.CreateRelation(ctx, payload)
}

// GetKnowledgeNode returns the knowledge node with the numeric id, or nil.
func (e *Engine) GetKnowledgeNode(ctx context.Context, nodeID int) (*KnowledgeNode, error) {
	entity, err := e.GetEntity(ctx, nodeID)
	if err != nil || entity == nil {
		return nil, err
	}
	return e.knowledgeNode(entity), nil
}

// SearchKnowledge searches knowledge nodes, optionally restricted to one
// codebase and one node type. A non-positive limit uses the default.
func (e *Engine) SearchKnowledge(ctx context.Context, query, codebaseID, nodeType string, limit int) ([]*KnowledgeNode, error) {
	if limit <= 0 {
		limit = knowledgeSearchLimit
	}

	results, err := e.Search(ctx, query, nodeType, 0)
	if err != nil {
		return nil, err
	}

	nodes := make([]*KnowledgeNode, 0, limit)
	for _, result := range results {
		if codebaseID != "" && metaString(result.Entity.Metadata, graph.MetaCodebaseID) != codebaseID {
			continue
		}
		nodes = append(nodes, e.knowledgeNode(result.Entity))
		if len(nodes) == limit {
			break
		}
	}
	return nodes, nil
}

// RelatedKnowledgeNodes returns the distinct nodes connected to nodeID,
// optionally filtered by relation type and direction ("in", "out", or
// anything else for both).
func (e *Engine) RelatedKnowledgeNodes(ctx context.Context, nodeID int, relationType, direction string) ([]*KnowledgeNode, error) {
	stableID, ok := e.resolveID(nodeID)
	if !ok {
		return []*KnowledgeNode{}, nil
	}

	var types []string
	if relationType != "" {
		types = []string{relationType}
	}
	related, err := e.repo.GetRelated(ctx, stableID, types)
	if err != nil {
		return nil, fmt.Errorf("finding related nodes: %w", err)
	}

	nodes := make([]*KnowledgeNode, 0, len(related))
	seen := make(map[string]bool, len(related))
	for _, r := range related {
		if direction == "in" || direction == "out" {
			if r.Direction != direction {
				continue
			}
		}
		if seen[r.Entity.ID] {
			continue
		}
		seen[r.Entity.ID] = true
		nodes = append(nodes, e.knowledgeNode(r.Entity))
	}
	return nodes, nil
}

// QueryKnowledgeGraph answers a free-text query over knowledge nodes.
func (e *Engine) QueryKnowledgeGraph(ctx context.Context, query, codebaseID string) (*KnowledgeQueryResult, error) {
	nodes, err := e.SearchKnowledge(ctx, query, codebaseID, "", knowledgeSearchLimit)
	if err != nil {
		return nil, err
	}
	return &KnowledgeQueryResult{Nodes: nodes}, nil
}

// knowledgeNode shapes an entity into the numeric-id node record. The
// codebase id and path move from metadata to their own fields.
func (e *Engine) knowledgeNode(entity *graph.Entity) *KnowledgeNode {
	node := &KnowledgeNode{
		ID:         e.NumericID(entity.ID),
		CodebaseID: metaString(entity.Metadata, graph.MetaCodebaseID),
		NodeType:   string(entity.Type),
		Name:       entity.Name,
		Content:    entity.Content,
		Path:       metaString(entity.Metadata, graph.MetaPath),
		CreatedAt:  entity.CreatedAt,
		UpdatedAt:  entity.UpdatedAt,
	}

	for k, v := range entity.Metadata {
		if k == graph.MetaCodebaseID || k == graph.MetaPath {
			continue
		}
		if node.Metadata == nil {
			node.Metadata = make(map[string]any)
		}
		node.Metadata[k] = v
	}
	return node
}

func codebaseFromEntity(entity *graph.Entity) *Codebase {
	return &Codebase{
		ID:          entity.ID,
		Name:        entity.Name,
		RootPath:    metaString(entity.Metadata, "root_path"),
		Description: entity.Content,
		Remote:      metaString(entity.Metadata, "remote"),
		Commit:      metaString(entity.Metadata, "commit"),
		CreatedAt:   entity.CreatedAt,
	}
}

// gitInfo reads the origin remote URL and HEAD commit of the repository
// at path. ok is false when path is not a git repository.
func gitInfo(path string) (remote, commit string, ok bool) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", "", false
	}
	if r, err := repo.Remote("origin"); err == nil && len(r.Config().URLs) > 0 {
		remote = r.Config().URLs[0]
	}
	if head, err := repo.Head(); err == nil {
		commit = head.Hash().String()
	}
	return remote, commit, true
}

// metaString reads a string-valued metadata key, returning "" when the
// key is absent or not a string.
func metaString(metadata map[string]any, key string) string {
	if s, ok := metadata[key].(string); ok {
		return s
	}
	return ""
}
