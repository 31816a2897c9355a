// Package mcp provides the MCP (Model Context Protocol) server for Engram.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/engram-ai/engram-go/internal/engine"
	"github.com/engram-ai/engram-go/internal/graph"
)

const (
	serverName    = "engram-go"
	serverVersion = "0.1.0"

	// defaultSearchLimit bounds search tools when the caller gives none.
	defaultSearchLimit = 20

	// defaultDepth is the neighborhood radius for graph_subgraph.
	defaultDepth = 2
)

// Server represents the MCP server.
type Server struct {
	engine *engine.Engine
	server *mcp.Server
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server on top of the engine.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{engine: eng}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	entityList := &jsonschema.Schema{
		Type:        "array",
		Items:       &jsonschema.Schema{Type: "object"},
		Description: "Entity payloads: name, type, content, metadata, tags, optional integer id",
	}
	relationList := &jsonschema.Schema{
		Type:        "array",
		Items:       &jsonschema.Schema{Type: "object"},
		Description: "Relation payloads: from, to (integer or stable ids), relationType, metadata",
	}
	nameList := &jsonschema.Schema{
		Type:  "array",
		Items: &jsonschema.Schema{Type: "string"},
	}
	entityID := &jsonschema.Schema{
		Description: "Entity id: stable string id or legacy integer id",
	}

	return []Tool{
		{
			Name:        "memory_create_entities",
			Description: "Create entities in the knowledge graph. Entities whose name already exists are skipped; returns only the newly created records.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entities": entityList,
				},
				Required: []string{"entities"},
			},
		},
		{
			Name:        "memory_create_relations",
			Description: "Create relations between entities. A (from, to, relationType) triple that already exists is skipped; returns only the newly created records.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"relations": relationList,
				},
				Required: []string{"relations"},
			},
		},
		{
			Name:        "memory_add_observations",
			Description: "Append observations to named entities, skipping observations the entity already has. Returns the updated records.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"observations": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "object"},
						Description: "Each item: entityName plus a contents list of observation strings",
					},
				},
				Required: []string{"observations"},
			},
		},
		{
			Name:        "memory_delete_entities",
			Description: "Delete entities by name, cascading to every relation that references them.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_names": nameList,
				},
				Required: []string{"entity_names"},
			},
		},
		{
			Name:        "memory_delete_observations",
			Description: "Remove specific observations from named entities.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"deletions": {
						Type:        "array",
						Items:       &jsonschema.Schema{Type: "object"},
						Description: "Each item: entityName plus an observations list to remove",
					},
				},
				Required: []string{"deletions"},
			},
		},
		{
			Name:        "memory_delete_relations",
			Description: "Delete relations matching the given (from, to, relationType) triples.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"relations": relationList,
				},
				Required: []string{"relations"},
			},
		},
		{
			Name:        "memory_read_graph",
			Description: "Read the entire graph as a flat feed: entity records first, then relation records, with legacy integer ids.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "memory_search_nodes",
			Description: "Search entities by text query and return matching records with legacy integer ids.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query": {Type: "string", Description: "Search query text"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "memory_open_nodes",
			Description: "Fetch entities by exact name (case-insensitive). Unknown names are skipped.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"names": nameList,
				},
				Required: []string{"names"},
			},
		},
		{
			Name:        "graph_subgraph",
			Description: "Collect the neighborhood of an entity: every entity reachable within the depth bound plus the relations among them.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_id": entityID,
					"depth":     {Type: "integer", Description: "Maximum traversal depth (default 2)"},
				},
				Required: []string{"entity_id"},
			},
		},
		{
			Name:        "graph_shortest_path",
			Description: "Find the shortest undirected path between two entities.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"source_id": entityID,
					"target_id": entityID,
				},
				Required: []string{"source_id", "target_id"},
			},
		},
		{
			Name:        "graph_clusters",
			Description: "Find connected clusters of entities, optionally restricted to one entity type.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_type": {Type: "string", Description: "Restrict clustering to this entity type"},
				},
			},
		},
		{
			Name:        "graph_centrality",
			Description: "Degree centrality: a single entity's score when entity_id is given, otherwise scores for every entity.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_id": entityID,
				},
			},
		},
		{
			Name:        "graph_communities",
			Description: "Detect communities by modularity maximization and return the entity-to-community assignment.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"resolution": {Type: "number", Description: "Resolution parameter; higher values produce smaller communities (default 1.0)"},
				},
			},
		},
		{
			Name:        "graph_metrics",
			Description: "Summary statistics for the whole graph: entity and relation counts, average degree, density, and component structure.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
		{
			Name:        "graph_search",
			Description: "Search the knowledge graph. Returns ranked entities matching the query, optionally filtered by type.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"query":       {Type: "string", Description: "Search query text"},
					"entity_type": {Type: "string", Description: "Restrict results to this entity type"},
					"limit":       {Type: "integer", Description: "Maximum number of results"},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        "graph_related",
			Description: "List entities directly related to the given entity, optionally filtered by relation type.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"entity_id":     entityID,
					"relation_type": {Type: "string", Description: "Restrict to this relation type"},
				},
				Required: []string{"entity_id"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "engram://overview",
			Name:        "Graph Overview",
			Description: "High-level statistics about the knowledge graph",
			MimeType:    "text/plain",
		},
		{
			URI:         "engram://schema",
			Name:        "Graph Schema",
			Description: "Entity and relation record shapes, including reserved metadata keys",
			MimeType:    "text/plain",
		},
		{
			URI:         "engram://types",
			Name:        "Type Vocabularies",
			Description: "Advisory entity and relation type vocabularies",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "memory_create_entities":
		created, err := s.engine.CreateEntities(ctx, mapList(args, "entities"))
		if err != nil {
			return "", err
		}
		return jsonText(s.engine.LegacyEntities(created))

	case "memory_create_relations":
		created, err := s.engine.CreateRelations(ctx, mapList(args, "relations"))
		if err != nil {
			return "", err
		}
		return jsonText(s.engine.LegacyRelations(created))

	case "memory_add_observations":
		updated, err := s.engine.AddObservations(ctx, observationAdds(args))
		if err != nil {
			return "", err
		}
		return jsonText(s.engine.LegacyEntities(updated))

	case "memory_delete_entities":
		deleted, err := s.engine.DeleteEntities(ctx, stringList(args, "entity_names"))
		if err != nil {
			return "", err
		}
		return jsonText(map[string]any{"deleted": deleted})

	case "memory_delete_observations":
		if err := s.engine.DeleteObservations(ctx, observationDeletes(args)); err != nil {
			return "", err
		}
		return jsonText(map[string]any{"ok": true})

	case "memory_delete_relations":
		deleted, err := s.engine.DeleteRelations(ctx, mapList(args, "relations"))
		if err != nil {
			return "", err
		}
		return jsonText(map[string]any{"deleted": deleted})

	case "memory_read_graph":
		feed, err := s.engine.ReadGraph(ctx)
		if err != nil {
			return "", err
		}
		return jsonText(feed)

	case "memory_search_nodes":
		query, _ := args["query"].(string)
		records, err := s.engine.SearchNodes(ctx, query)
		if err != nil {
			return "", err
		}
		return jsonText(records)

	case "memory_open_nodes":
		records, err := s.engine.OpenNodes(ctx, stringList(args, "names"))
		if err != nil {
			return "", err
		}
		return jsonText(records)

	case "graph_subgraph":
		sub, err := s.engine.Subgraph(ctx, args["entity_id"], intArg(args, "depth", defaultDepth))
		if err != nil {
			return "", err
		}
		return jsonText(sub)

	case "graph_shortest_path":
		return handleShortestPath(ctx, s.engine, args["source_id"], args["target_id"])

	case "graph_clusters":
		entityType, _ := args["entity_type"].(string)
		clusters, err := s.engine.FindClusters(ctx, entityType)
		if err != nil {
			return "", err
		}
		return jsonText(map[string]any{"clusters": clusters, "count": len(clusters)})

	case "graph_centrality":
		return handleCentrality(ctx, s.engine, args["entity_id"])

	case "graph_communities":
		communities, err := s.engine.Communities(ctx, floatArg(args, "resolution", 1.0))
		if err != nil {
			return "", err
		}
		return jsonText(communities)

	case "graph_metrics":
		metrics, err := s.engine.Metrics(ctx)
		if err != nil {
			return "", err
		}
		return formatMetrics(metrics), nil

	case "graph_search":
		query, _ := args["query"].(string)
		entityType, _ := args["entity_type"].(string)
		return handleSearch(ctx, s.engine, query, entityType, intArg(args, "limit", defaultSearchLimit))

	case "graph_related":
		relationType, _ := args["relation_type"].(string)
		return handleRelated(ctx, s.engine, args["entity_id"], relationType)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "engram://overview":
		return s.overview(ctx)
	case "engram://schema":
		return getSchema(), nil
	case "engram://types":
		return getTypes(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handleShortestPath(ctx context.Context, eng *engine.Engine, source, target any) (string, error) {
	path, err := eng.ShortestPath(ctx, source, target)
	if err != nil {
		return "", err
	}
	if len(path) == 0 {
		return "No path found", nil
	}
	return jsonText(map[string]any{"path": path, "length": len(path) - 1})
}

func handleCentrality(ctx context.Context, eng *engine.Engine, entityID any) (string, error) {
	if entityID == nil {
		scores, err := eng.CentralityAll(ctx)
		if err != nil {
			return "", err
		}
		return jsonText(scores)
	}

	score, err := eng.EntityCentrality(ctx, entityID)
	if err != nil {
		return "", err
	}
	return jsonText(map[string]any{"entity_id": entityID, "centrality": score})
}

func handleSearch(ctx context.Context, eng *engine.Engine, query, entityType string, limit int) (string, error) {
	if query == "" {
		return "No query provided", nil
	}

	results, err := eng.Search(ctx, query, entityType, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d results for '%s':\n\n", len(results), query))
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", i+1, r.Entity.Name, r.Entity.Type))
		sb.WriteString(fmt.Sprintf("   ID: %s\n", r.Entity.ID))
		sb.WriteString(fmt.Sprintf("   Score: %.3f\n", r.Score))
		if r.Entity.Content != "" {
			snippet := r.Entity.Content
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			sb.WriteString(fmt.Sprintf("   %s\n", snippet))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Next: Use `graph_related` on a specific entity for its connections.")

	return sb.String(), nil
}

func handleRelated(ctx context.Context, eng *engine.Engine, entityID any, relationType string) (string, error) {
	related, err := eng.RelatedEntities(ctx, entityID, relationType)
	if err != nil {
		return "", err
	}
	if len(related) == 0 {
		return "No related entities found", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d related entities:\n\n", len(related)))
	for _, r := range related {
		arrow := "->"
		if r.Direction == "in" {
			arrow = "<-"
		}
		sb.WriteString(fmt.Sprintf("- **%s** (%s) %s %s\n", r.Entity.Name, r.Entity.Type, arrow, r.RelationType))
	}

	return sb.String(), nil
}

// formatMetrics formats graph metrics as markdown.
func formatMetrics(m graph.Metrics) string {
	var sb strings.Builder
	sb.WriteString("## Graph Metrics\n\n")
	sb.WriteString(fmt.Sprintf("**Entities:** %d\n", m.Nodes))
	sb.WriteString(fmt.Sprintf("**Relations:** %d\n", m.Edges))
	sb.WriteString(fmt.Sprintf("**Average degree:** %.2f\n", m.AvgDegree))
	sb.WriteString(fmt.Sprintf("**Density:** %.4f\n", m.Density))
	sb.WriteString(fmt.Sprintf("**Connected components:** %d\n", m.Components))
	sb.WriteString(fmt.Sprintf("**Largest component:** %d entities\n", m.LargestComponentSize))
	if m.AvgPathLength > 0 {
		sb.WriteString(fmt.Sprintf("**Average path length:** %.2f\n", m.AvgPathLength))
	}
	return sb.String()
}

// Resource Handlers

func (s *Server) overview(ctx context.Context) (string, error) {
	metrics, err := s.engine.Metrics(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# Engram Knowledge Graph Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Entities:** %d\n", metrics.Nodes))
	sb.WriteString(fmt.Sprintf("**Relations:** %d\n", metrics.Edges))
	sb.WriteString(fmt.Sprintf("**Connected components:** %d\n", metrics.Components))
	sb.WriteString("\n## Surfaces\n\n")
	sb.WriteString("- memory_* tools: legacy record API with integer entity ids\n")
	sb.WriteString("- graph_* tools: traversal, paths, clusters, communities, centrality, metrics\n")
	sb.WriteString("- engram://schema describes the record shapes\n")
	return sb.String(), nil
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Engram Knowledge Graph Schema\n\n")
	sb.WriteString("## Entity\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `id` | Stable opaque id, immutable once assigned |\n")
	sb.WriteString("| `type` | Open-vocabulary category tag |\n")
	sb.WriteString("| `name` | Display label |\n")
	sb.WriteString("| `content` | Free-text body |\n")
	sb.WriteString("| `metadata` | Open string-keyed map |\n")
	sb.WriteString("| `tags` | Set of strings |\n")
	sb.WriteString("\n## Relation\n\n")
	sb.WriteString("| Field | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	sb.WriteString("| `id` | Stable opaque id |\n")
	sb.WriteString("| `source_id` / `target_id` | Entity endpoints |\n")
	sb.WriteString("| `relation_type` | Open-vocabulary type |\n")
	sb.WriteString("| `strength` | Weight, defaults to 1.0 |\n")
	sb.WriteString("| `metadata` | Open string-keyed map |\n")
	sb.WriteString("\n## Reserved metadata keys\n\n")
	sb.WriteString("| Key | Holds |\n")
	sb.WriteString("|-----|-------|\n")
	sb.WriteString("| `legacy_id` | Previously issued integer id (unique across entities) |\n")
	sb.WriteString("| `observations` | Observation strings of the legacy memory API |\n")
	sb.WriteString("| `codebase_id` | Owning codebase of a knowledge node |\n")
	sb.WriteString("| `path` | Filesystem path of scanned file and folder entities |\n")
	return sb.String()
}

func getTypes() string {
	var sb strings.Builder
	sb.WriteString("# Type Vocabularies\n\n")
	sb.WriteString("Both vocabularies are advisory: any non-empty string is accepted.\n")
	sb.WriteString("\n## Entity types\n\n")
	for _, t := range []graph.EntityType{
		graph.EntityNote, graph.EntityTask, graph.EntityPerson, graph.EntityProject,
		graph.EntityFile, graph.EntityFolder, graph.EntityArea, graph.EntityMeeting,
		graph.EntityTechnology, graph.EntityConversation, graph.EntityCodebase,
	} {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}
	sb.WriteString("\n## Relation types\n\n")
	for _, t := range []graph.RelationType{
		graph.RelRelatesTo, graph.RelContains, graph.RelFollowsFrom, graph.RelDependsOn,
		graph.RelMentions, graph.RelImplements, graph.RelReferences, graph.RelAssignedTo,
		graph.RelCreatedBy, graph.RelPartOf, graph.RelSimilarTo,
	} {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}
	return sb.String()
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

// jsonText renders a tool result as compact JSON.
func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// mapList extracts a list of object arguments.
func mapList(args map[string]any, key string) []map[string]any {
	raw, _ := args[key].([]any)
	list := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			list = append(list, m)
		}
	}
	return list
}

// stringList extracts a list of string arguments.
func stringList(args map[string]any, key string) []string {
	raw, _ := args[key].([]any)
	list := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list
}

func observationAdds(args map[string]any) []engine.ObservationAdd {
	items := mapList(args, "observations")
	adds := make([]engine.ObservationAdd, 0, len(items))
	for _, item := range items {
		name, _ := item["entityName"].(string)
		adds = append(adds, engine.ObservationAdd{
			EntityName: name,
			Contents:   anyStrings(item["contents"]),
		})
	}
	return adds
}

func observationDeletes(args map[string]any) []engine.ObservationDelete {
	items := mapList(args, "deletions")
	deletes := make([]engine.ObservationDelete, 0, len(items))
	for _, item := range items {
		name, _ := item["entityName"].(string)
		deletes = append(deletes, engine.ObservationDelete{
			EntityName:   name,
			Observations: anyStrings(item["observations"]),
		})
	}
	return deletes
}

func anyStrings(raw any) []string {
	items, _ := raw.([]any)
	list := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			list = append(list, s)
		}
	}
	return list
}

func intArg(args map[string]any, key string, def int) int {
	v, _ := args[key].(float64)
	if v == 0 {
		return def
	}
	return int(v)
}

func floatArg(args map[string]any, key string, def float64) float64 {
	v, _ := args[key].(float64)
	if v == 0 {
		return def
	}
	return v
}
