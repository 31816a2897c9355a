// Package cmd provides CLI command implementations for Engram.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/engram-ai/engram-go/internal/engine"
	"github.com/engram-ai/engram-go/internal/graph"
	"github.com/engram-ai/engram-go/internal/ingest"
	"github.com/engram-ai/engram-go/internal/storage"
	"github.com/engram-ai/engram-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// dataDir overrides the default data directory when the --data flag or
// ENGRAM_DATA is set. Resolved by resolveDataDir.
var dataDir string

// InitCmd creates an empty knowledge graph.
type InitCmd struct{}

// Run executes the init command.
func (c *InitCmd) Run() error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	dbPath := filepath.Join(dir, "badger")
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Printf("Knowledge graph already initialized at %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	repo, err := storage.NewBadgerRepository(dbPath, false)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	if err := repo.Close(); err != nil {
		return fmt.Errorf("closing storage: %w", err)
	}

	color.Green("✓ Initialized knowledge graph at %s", dir)
	return nil
}

// AddCmd creates an entity.
type AddCmd struct {
	Name    string            `arg:"" help:"Entity name"`
	Type    string            `short:"t" default:"note" help:"Entity type"`
	Content string            `short:"c" help:"Free-text content"`
	Tags    []string          `help:"Tags to attach"`
	Meta    map[string]string `help:"Metadata key=value pairs"`
}

// Run executes the add command.
func (c *AddCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	payload := map[string]any{
		"name":    c.Name,
		"type":    c.Type,
		"content": c.Content,
	}
	if len(c.Tags) > 0 {
		payload["tags"] = c.Tags
	}
	if len(c.Meta) > 0 {
		metadata := make(map[string]any, len(c.Meta))
		for k, v := range c.Meta {
			metadata[k] = v
		}
		payload["metadata"] = metadata
	}

	created, err := eng.CreateEntities(ctx, []map[string]any{payload})
	if err != nil {
		return fmt.Errorf("creating entity: %w", err)
	}
	if len(created) == 0 {
		fmt.Printf("Entity '%s' already exists\n", c.Name)
		return nil
	}

	entity := created[0]
	numeric, err := eng.PersistNumericID(ctx, entity.ID)
	if err != nil {
		return err
	}

	color.Green("✓ Created %s (%s)", entity.Name, entity.Type)
	fmt.Printf("  ID:         %s\n", entity.ID)
	fmt.Printf("  Numeric ID: %d\n", numeric)
	return nil
}

// RelateCmd creates a relation between two entities.
type RelateCmd struct {
	From string `arg:"" help:"Source entity id (numeric or stable)"`
	To   string `arg:"" help:"Target entity id (numeric or stable)"`
	Type string `short:"t" default:"relates_to" help:"Relation type"`
}

// Run executes the relate command.
func (c *RelateCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	created, err := eng.CreateRelations(ctx, []map[string]any{{
		"from":         cliID(c.From),
		"to":           cliID(c.To),
		"relationType": c.Type,
	}})
	if err != nil {
		return fmt.Errorf("creating relation: %w", err)
	}
	if len(created) == 0 {
		fmt.Printf("Relation %s -[%s]-> %s already exists\n", c.From, c.Type, c.To)
		return nil
	}

	relation := created[0]
	color.Green("✓ Related %s -[%s]-> %s", c.From, relation.Type, c.To)
	fmt.Printf("  Relation ID: %s\n", relation.ID)
	return nil
}

// GetCmd shows one entity in full.
type GetCmd struct {
	ID string `arg:"" help:"Entity id (numeric or stable)"`
}

// Run executes the get command.
func (c *GetCmd) Run() error {
	ctx := context.Background()
	// Read-write: exposing the numeric id persists the mapping.
	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	entity, err := eng.GetEntity(ctx, cliID(c.ID))
	if err != nil {
		return fmt.Errorf("loading entity: %w", err)
	}
	if entity == nil {
		fmt.Printf("Entity '%s' not found\n", c.ID)
		return nil
	}

	numeric, err := eng.PersistNumericID(ctx, entity.ID)
	if err != nil {
		return err
	}

	fmt.Printf("## %s (%s)\n\n", entity.Name, entity.Type)
	fmt.Printf("**ID:** %s\n", entity.ID)
	fmt.Printf("**Numeric ID:** %d\n", numeric)
	if entity.Content != "" {
		fmt.Printf("**Content:** %s\n", entity.Content)
	}
	if len(entity.Tags) > 0 {
		fmt.Printf("**Tags:** %s\n", strings.Join(entity.Tags, ", "))
	}
	if len(entity.Metadata) > 0 {
		fmt.Println("**Metadata:**")
		keys := make([]string, 0, len(entity.Metadata))
		for k := range entity.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s: %s\n", k, toJSON(entity.Metadata[k]))
		}
	}
	fmt.Printf("**Created:** %s\n", entity.CreatedAt.Format("2006-01-02 15:04:05"))

	related, err := eng.RelatedEntities(ctx, entity.ID, "")
	if err != nil {
		return err
	}
	if len(related) > 0 {
		fmt.Printf("\n### Relations (%d)\n", len(related))
		for _, r := range related {
			arrow := "->"
			if r.Direction == "in" {
				arrow = "<-"
			}
			fmt.Printf("- %s %s %s (%s)\n", arrow, r.RelationType, r.Entity.Name, r.Entity.Type)
		}
	}

	return nil
}

// SearchCmd searches the knowledge graph.
type SearchCmd struct {
	Query string `arg:"" help:"Search query"`
	Type  string `short:"t" help:"Restrict results to this entity type"`
	Limit int    `short:"n" default:"20" help:"Maximum results"`
}

// Run executes the search command.
func (c *SearchCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	results, err := eng.Search(ctx, c.Query, c.Type, c.Limit)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found")
		return nil
	}

	for i, r := range results {
		fmt.Printf("\n%d. %s (%s)\n", i+1, r.Entity.Name, r.Entity.Type)
		fmt.Printf("   ID: %s\n", r.Entity.ID)
		fmt.Printf("   Score: %.3f\n", r.Score)
		if r.Entity.Content != "" {
			fmt.Printf("   %s\n", r.Entity.Content[:min(200, len(r.Entity.Content))])
		}
	}

	return nil
}

// RelatedCmd lists the direct neighbors of an entity.
type RelatedCmd struct {
	ID   string `arg:"" help:"Entity id (numeric or stable)"`
	Type string `short:"t" help:"Restrict to this relation type"`
}

// Run executes the related command.
func (c *RelatedCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	related, err := eng.RelatedEntities(ctx, cliID(c.ID), c.Type)
	if err != nil {
		return fmt.Errorf("finding related entities: %w", err)
	}

	if len(related) == 0 {
		fmt.Println("No related entities found")
		return nil
	}

	fmt.Printf("Related entities (%d):\n", len(related))
	for _, r := range related {
		arrow := "->"
		if r.Direction == "in" {
			arrow = "<-"
		}
		fmt.Printf("- %s %s %s (%s)\n", arrow, r.RelationType, r.Entity.Name, r.Entity.Type)
	}

	return nil
}

// SubgraphCmd collects the bounded neighborhood of an entity.
type SubgraphCmd struct {
	ID    string `arg:"" help:"Root entity id (numeric or stable)"`
	Depth int    `short:"d" default:"2" help:"Traversal depth"`
	JSON  bool   `help:"Emit the subgraph as JSON"`
}

// Run executes the subgraph command.
func (c *SubgraphCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	sub, err := eng.Subgraph(ctx, cliID(c.ID), c.Depth)
	if err != nil {
		return fmt.Errorf("collecting subgraph: %w", err)
	}

	if c.JSON {
		out, err := json.MarshalIndent(sub, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(sub.Entities) == 0 {
		fmt.Printf("Entity '%s' not found\n", c.ID)
		return nil
	}

	fmt.Printf("## Subgraph of %s (depth %d)\n\n", c.ID, c.Depth)
	fmt.Printf("**Entities:** %d\n", len(sub.Entities))
	fmt.Printf("**Relations:** %d\n\n", len(sub.Relations))
	for _, entity := range sub.Entities {
		fmt.Printf("- %s (%s)\n", entity.Name, entity.Type)
	}

	return nil
}

// PathCmd finds the shortest path between two entities.
type PathCmd struct {
	Source string `arg:"" help:"Source entity id (numeric or stable)"`
	Target string `arg:"" help:"Target entity id (numeric or stable)"`
}

// Run executes the path command.
func (c *PathCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	path, err := eng.ShortestPath(ctx, cliID(c.Source), cliID(c.Target))
	if err != nil {
		return fmt.Errorf("finding path: %w", err)
	}

	if len(path) == 0 {
		fmt.Println("No path found")
		return nil
	}

	labels := make([]string, len(path))
	for i, id := range path {
		labels[i] = entityLabel(ctx, eng, id)
	}

	fmt.Printf("Path (%d hops):\n", len(path)-1)
	fmt.Printf("  %s\n", strings.Join(labels, " -> "))
	return nil
}

// ClustersCmd groups connected entities.
type ClustersCmd struct {
	Type string `short:"t" help:"Restrict clustering to this entity type"`
}

// Run executes the clusters command.
func (c *ClustersCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	clusters, err := eng.FindClusters(ctx, c.Type)
	if err != nil {
		return fmt.Errorf("finding clusters: %w", err)
	}

	if len(clusters) == 0 {
		fmt.Println("No clusters found")
		return nil
	}

	fmt.Printf("Found %d clusters:\n", len(clusters))
	for i, cluster := range clusters {
		fmt.Printf("\n### Cluster %d (%d entities)\n", i+1, len(cluster))
		for _, id := range cluster {
			fmt.Printf("- %s\n", entityLabel(ctx, eng, id))
		}
	}

	return nil
}

// CommunitiesCmd detects communities by modularity.
type CommunitiesCmd struct {
	Resolution float64 `default:"1.0" help:"Resolution parameter; higher values produce smaller communities"`
}

// Run executes the communities command.
func (c *CommunitiesCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	assignment, err := eng.Communities(ctx, c.Resolution)
	if err != nil {
		return fmt.Errorf("detecting communities: %w", err)
	}

	if len(assignment) == 0 {
		fmt.Println("No communities found")
		return nil
	}

	groups := graph.CommunityGroups(assignment)
	fmt.Printf("Found %d communities:\n", len(groups))
	for community, members := range groups {
		fmt.Printf("\n### Community %d (%d entities)\n", community, len(members))
		for _, id := range members {
			fmt.Printf("- %s\n", entityLabel(ctx, eng, id))
		}
	}

	return nil
}

// CentralityCmd scores entities by connectedness.
type CentralityCmd struct {
	ID          string `arg:"" optional:"" help:"Score a single entity (numeric or stable id)"`
	Top         int    `default:"10" help:"Number of top entities to list"`
	Betweenness bool   `help:"Rank by approximate betweenness instead of degree"`
	Sample      int    `default:"32" help:"Betweenness sample size (0 for exact)"`
}

// Run executes the centrality command.
func (c *CentralityCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	if c.ID != "" {
		score, err := eng.EntityCentrality(ctx, cliID(c.ID))
		if err != nil {
			return fmt.Errorf("computing centrality: %w", err)
		}
		fmt.Printf("%s: %.0f relations\n", entityLabel(ctx, eng, c.ID), score)
		return nil
	}

	var scores map[string]float64
	if c.Betweenness {
		scores, err = eng.Betweenness(ctx, c.Sample)
	} else {
		scores, err = eng.CentralityAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("computing centrality: %w", err)
	}

	if len(scores) == 0 {
		fmt.Println("Graph is empty")
		return nil
	}

	type ranked struct {
		id    string
		score float64
	}
	ranking := make([]ranked, 0, len(scores))
	for id, score := range scores {
		ranking = append(ranking, ranked{id, score})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].score != ranking[j].score {
			return ranking[i].score > ranking[j].score
		}
		return ranking[i].id < ranking[j].id
	})

	measure := "degree"
	if c.Betweenness {
		measure = "betweenness"
	}
	fmt.Printf("Top entities by %s centrality:\n", measure)
	for i, r := range ranking {
		if i == c.Top {
			break
		}
		fmt.Printf("%2d. %-40s %.4f\n", i+1, entityLabel(ctx, eng, r.id), r.score)
	}

	return nil
}

// StatsCmd shows summary statistics for the whole graph.
type StatsCmd struct{}

// Run executes the stats command.
func (c *StatsCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	metrics, err := eng.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("computing metrics: %w", err)
	}

	fmt.Println("Knowledge graph statistics")
	fmt.Printf("  Entities:             %d\n", metrics.Nodes)
	fmt.Printf("  Relations:            %d\n", metrics.Edges)
	fmt.Printf("  Average degree:       %.2f\n", metrics.AvgDegree)
	fmt.Printf("  Density:              %.4f\n", metrics.Density)
	fmt.Printf("  Connected components: %d\n", metrics.Components)
	fmt.Printf("  Largest component:    %d\n", metrics.LargestComponentSize)
	if metrics.AvgPathLength > 0 {
		fmt.Printf("  Average path length:  %.2f\n", metrics.AvgPathLength)
	}

	codebases, err := eng.ListCodebases(ctx)
	if err != nil {
		return err
	}
	if len(codebases) > 0 {
		fmt.Printf("  Codebases:            %d\n", len(codebases))
	}

	return nil
}

// OrphansCmd lists entities with no relations.
type OrphansCmd struct{}

// Run executes the orphans command.
func (c *OrphansCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	orphans, err := eng.Orphans(ctx)
	if err != nil {
		return fmt.Errorf("finding orphans: %w", err)
	}

	fmt.Println("## Orphan Report")
	if len(orphans) == 0 {
		fmt.Println("No orphaned entities. Every entity has at least one relation.")
		return nil
	}

	fmt.Printf("Found %d entities with no relations:\n\n", len(orphans))

	byType := make(map[string][]*graph.Entity)
	for _, entity := range orphans {
		byType[string(entity.Type)] = append(byType[string(entity.Type)], entity)
	}
	types := make([]string, 0, len(byType))
	for entityType := range byType {
		types = append(types, entityType)
	}
	sort.Strings(types)

	for _, entityType := range types {
		entities := byType[entityType]
		fmt.Printf("### %s (%d)\n", entityType, len(entities))
		for _, entity := range entities {
			fmt.Printf("- %s (%s)\n", entity.Name, entity.ID)
		}
		fmt.Println()
	}

	fmt.Println("Next: Use `engram relate` to connect them, or delete the stale ones.")
	return nil
}

// ImportCmd imports a legacy JSONL memory feed.
type ImportCmd struct {
	Path  string `arg:"" help:"Path to JSONL feed" type:"path"`
	Watch bool   `short:"w" help:"Keep watching the feed and re-import on change"`
}

// Run executes the import command.
func (c *ImportCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	stats, err := ingest.ImportFile(ctx, eng, c.Path)
	if err != nil {
		return fmt.Errorf("importing feed: %w", err)
	}

	color.Green("✓ Imported %s", c.Path)
	fmt.Printf("  Entities:  %d\n", stats.Entities)
	fmt.Printf("  Relations: %d\n", stats.Relations)
	fmt.Printf("  Skipped:   %d\n", stats.Skipped)

	if !c.Watch {
		return nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	if err := ingest.WatchFile(watchCtx, eng, c.Path); err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// ExportCmd writes the graph as a legacy JSONL memory feed.
type ExportCmd struct {
	Path string `arg:"" optional:"" help:"Output path (stdout when omitted)" type:"path"`
}

// Run executes the export command.
func (c *ExportCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	if c.Path == "" || c.Path == "-" {
		count, err := ingest.Export(ctx, eng, os.Stdout)
		if err != nil {
			return fmt.Errorf("exporting feed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Exported %d records\n", count)
		return nil
	}

	count, err := ingest.ExportFile(ctx, eng, c.Path)
	if err != nil {
		return fmt.Errorf("exporting feed: %w", err)
	}

	color.Green("✓ Exported %d records to %s", count, c.Path)
	return nil
}

// ScanCmd indexes a codebase tree into file and folder entities.
type ScanCmd struct {
	Path        string `arg:"" optional:"" default:"." help:"Path to codebase root" type:"path"`
	ID          string `help:"Codebase id (default: folder name)"`
	Name        string `help:"Codebase display name (default: the id)"`
	Description string `help:"Codebase description"`
}

// Run executes the scan command.
func (c *ScanCmd) Run() error {
	ctx := context.Background()

	rootPath, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(rootPath)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", rootPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", rootPath)
	}

	id := c.ID
	if id == "" {
		id = filepath.Base(rootPath)
	}
	name := c.Name
	if name == "" {
		name = id
	}

	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	codebase, err := eng.RegisterCodebase(ctx, id, name, rootPath, c.Description)
	if err != nil {
		return fmt.Errorf("registering codebase: %w", err)
	}

	color.Green("Scanning %s", rootPath)
	stats, err := ingest.ScanCodebase(ctx, eng, codebase.ID, rootPath)
	if err != nil {
		return fmt.Errorf("scanning codebase: %w", err)
	}

	color.Green("\n✓ Scan complete")
	fmt.Printf("  Codebase:  %s\n", codebase.ID)
	fmt.Printf("  Files:     %d\n", stats.Files)
	fmt.Printf("  Folders:   %d\n", stats.Folders)
	fmt.Printf("  Relations: %d new\n", stats.Relations)
	if codebase.Remote != "" {
		fmt.Printf("  Remote:    %s\n", codebase.Remote)
	}

	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	server := mcp.NewServer(eng)

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server, optionally re-importing a feed on change.
type ServeCmd struct {
	Watch string `short:"w" help:"Watch a JSONL feed file and re-import on change" type:"path"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx := context.Background()
	eng, done, err := openEngine(ctx, false)
	if err != nil {
		return err
	}
	defer done()

	server := mcp.NewServer(eng)

	if c.Watch != "" {
		fmt.Fprintln(os.Stderr, "Starting MCP server with feed watching...")

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			err := ingest.WatchFile(watchCtx, eng, c.Watch)
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()

		fmt.Fprintf(os.Stderr, "Feed watching enabled for %s\n", c.Watch)
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// SetupCmd configures MCP for various AI clients.
type SetupCmd struct {
	Qwen     bool   `help:"Configure for Qwen CLI"`
	Claude   bool   `help:"Configure for Claude Code"`
	Cursor   bool   `help:"Configure for Cursor"`
	Local    bool   `help:"Create project-local configuration"`
	Global   bool   `help:"Create global configuration"`
	Format   string `help:"Output format (json|text)" enum:"json,text" default:"json"`
	FilePath string `help:"Custom file path for configuration"`
}

// Run executes the setup command.
func (c *SetupCmd) Run() error {
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("invalid format: %s (must be json or text)", c.Format)
	}

	// If no specific client is specified, output config to stdout
	if !c.Qwen && !c.Claude && !c.Cursor {
		return c.outputDefaultConfig()
	}

	// If neither local nor global is specified, default to local
	if !c.Local && !c.Global {
		c.Local = true
	}

	clients := map[string]bool{
		"qwen":   c.Qwen,
		"claude": c.Claude,
		"cursor": c.Cursor,
	}
	for _, client := range []string{"qwen", "claude", "cursor"} {
		if !clients[client] {
			continue
		}
		if err := c.setupClient(client); err != nil {
			return err
		}
	}

	return nil
}

func (c *SetupCmd) outputDefaultConfig() error {
	config := generateServerConfig()

	if c.Format == "json" {
		jsonBytes, err := json.MarshalIndent(config, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Println("# Add this to your MCP client configuration:")
		fmt.Println()
		for key, value := range config {
			fmt.Printf("%s: %s\n", key, toJSON(value))
		}
	}

	return nil
}

func (c *SetupCmd) setupClient(client string) error {
	config := generateServerConfig()

	if c.Global {
		globalPath := getGlobalConfigPath(client)
		if err := writeConfig(globalPath, config, c.Format); err != nil {
			return err
		}
		color.Green("✓ Created global %s MCP config at %s", client, globalPath)
	}

	if c.Local {
		var localPath string
		if c.FilePath != "" {
			localPath = filepath.Join(c.FilePath, configFileName(client))
		} else {
			localPath = getLocalConfigPath(".", client)
		}
		if err := writeConfig(localPath, config, c.Format); err != nil {
			return err
		}
		color.Green("✓ Created local %s MCP config at %s", client, localPath)
	}

	return nil
}

// generateServerConfig builds the MCP server block all clients share.
func generateServerConfig() map[string]any {
	return map[string]any{
		"mcpServers": map[string]any{
			"engram-go": map[string]any{
				"command": "engram",
				"args":    []string{"serve"},
			},
		},
	}
}

// Path helpers

func configFileName(client string) string {
	if client == "claude" {
		return "settings.json"
	}
	return "mcp.json"
}

func getLocalConfigPath(basePath, client string) string {
	configDir := getClientConfigDir(client)
	return filepath.Join(basePath, configDir, "mcp.json")
}

func getGlobalConfigPath(client string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}

	configDir := getClientConfigDir(client)
	return filepath.Join(homeDir, configDir, "global", "mcp.json")
}

func getClientConfigDir(client string) string {
	switch client {
	case "qwen":
		return ".qwen"
	case "claude":
		return ".claude"
	case "cursor":
		return ".cursor"
	default:
		return ".qwen"
	}
}

// Config writers

func writeConfig(configPath string, config map[string]any, format string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	var content []byte
	var err error

	if format == "json" {
		content, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		content = append(content, '\n')
	} else {
		var sb strings.Builder
		sb.WriteString("# MCP Configuration for Engram\n")
		sb.WriteString("# Generated by engram setup\n\n")

		for key, value := range config {
			sb.WriteString(fmt.Sprintf("%s: %s\n", key, toJSON(value)))
		}
		content = []byte(sb.String())
	}

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// StatusCmd shows the state of the knowledge graph store.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	ctx := context.Background()
	eng, done, err := openEngine(ctx, true)
	if err != nil {
		return err
	}
	defer done()

	metrics, err := eng.Metrics(ctx)
	if err != nil {
		return fmt.Errorf("computing metrics: %w", err)
	}

	fmt.Printf("Knowledge graph at %s\n", dir)
	fmt.Printf("  Version:   %s\n", Version)
	fmt.Printf("  Entities:  %d\n", metrics.Nodes)
	fmt.Printf("  Relations: %d\n", metrics.Edges)

	codebases, err := eng.ListCodebases(ctx)
	if err != nil {
		return err
	}
	if len(codebases) > 0 {
		fmt.Printf("\nCodebases (%d):\n", len(codebases))
		for _, cb := range codebases {
			fmt.Printf("  %s\n", cb.ID)
			fmt.Printf("    Path:    %s\n", cb.RootPath)
			if stamp := lastIndexed(ctx, eng, cb.ID); stamp != "" {
				fmt.Printf("    Indexed: %s\n", stamp)
			}
		}
	}

	return nil
}

// CleanCmd deletes the knowledge graph store.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no knowledge graph found at %s. Nothing to clean", dir)
	}

	if !c.Force {
		fmt.Printf("Delete knowledge graph at %s? [y/N] ", dir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting knowledge graph: %w", err)
	}

	color.Green("Deleted %s", dir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// resolveDataDir returns the data directory: the --data flag or ENGRAM_DATA
// when set, otherwise ~/.engram.
func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".engram"), nil
}

// openEngine opens the Badger-backed engine over the data directory. The
// returned cleanup function closes the repository.
func openEngine(ctx context.Context, readOnly bool) (*engine.Engine, func(), error) {
	dir, err := resolveDataDir()
	if err != nil {
		return nil, nil, err
	}

	dbPath := filepath.Join(dir, "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("no knowledge graph found at %s. Run 'engram init' first", dir)
	}

	repo, err := storage.NewBadgerRepository(dbPath, readOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}

	eng, err := engine.New(ctx, repo)
	if err != nil {
		_ = repo.Close()
		return nil, nil, fmt.Errorf("starting engine: %w", err)
	}

	return eng, func() { _ = repo.Close() }, nil
}

// cliID turns a command-line id into the value the engine resolves: numeric
// strings become legacy integer ids, everything else passes through as a
// stable id.
func cliID(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// entityLabel renders an entity id as "name (type)", falling back to the id
// when the entity cannot be loaded.
func entityLabel(ctx context.Context, eng *engine.Engine, id any) string {
	entity, err := eng.GetEntity(ctx, id)
	if err != nil || entity == nil {
		return fmt.Sprintf("%v", id)
	}
	return fmt.Sprintf("%s (%s)", entity.Name, entity.Type)
}

// lastIndexed reads the last_indexed stamp of a codebase entity.
func lastIndexed(ctx context.Context, eng *engine.Engine, codebaseID string) string {
	entity, err := eng.GetEntity(ctx, codebaseID)
	if err != nil || entity == nil {
		return ""
	}
	if stamp, ok := entity.Metadata["last_indexed"].(string); ok {
		return stamp
	}
	return ""
}

func toJSON(v any) string {
	bytes, _ := json.Marshal(v)
	return string(bytes)
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Data    string           `env:"ENGRAM_DATA" help:"Data directory (default ~/.engram)" type:"path"`

	// Commands
	Init        InitCmd        `cmd:"" help:"Create an empty knowledge graph"`
	Add         AddCmd         `cmd:"" help:"Create an entity"`
	Relate      RelateCmd      `cmd:"" help:"Create a relation between two entities"`
	Get         GetCmd         `cmd:"" help:"Show one entity in full"`
	Search      SearchCmd      `cmd:"" help:"Search the knowledge graph"`
	Related     RelatedCmd     `cmd:"" help:"List the direct neighbors of an entity"`
	Subgraph    SubgraphCmd    `cmd:"" help:"Collect the bounded neighborhood of an entity"`
	Path        PathCmd        `cmd:"" help:"Find the shortest path between two entities"`
	Clusters    ClustersCmd    `cmd:"" help:"Group connected entities"`
	Communities CommunitiesCmd `cmd:"" help:"Detect communities by modularity"`
	Centrality  CentralityCmd  `cmd:"" help:"Score entities by connectedness"`
	Stats       StatsCmd       `cmd:"" help:"Show graph statistics"`
	Orphans     OrphansCmd     `cmd:"" help:"List entities with no relations"`
	Import      ImportCmd      `cmd:"" help:"Import a legacy JSONL memory feed"`
	Export      ExportCmd      `cmd:"" help:"Export the graph as a JSONL memory feed"`
	Scan        ScanCmd        `cmd:"" help:"Index a codebase tree into the graph"`
	MCP         MCPCmd         `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve       ServeCmd       `cmd:"" help:"Start MCP server with optional feed watching"`
	Setup       SetupCmd       `cmd:"" help:"Configure MCP for Claude Code / Cursor / Qwen"`
	Status      StatusCmd      `cmd:"" help:"Show the state of the knowledge graph store"`
	Clean       CleanCmd       `cmd:"" help:"Delete the knowledge graph store"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("engram"),
		kong.Description("Knowledge graph memory engine with MCP and legacy memory-feed surfaces"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	dataDir = c.Data
	return kongCtx.Run()
}
