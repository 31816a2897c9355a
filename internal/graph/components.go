package graph

// ConnectedComponents returns the connected components of the view, one node
// id list per component, discovered by depth-first traversal. Components of
// size 1 are excluded: the callers treat components as clusters, and an
// isolated node is not a cluster. Nodes are seeded in sorted order so the
// output is deterministic for a given view.
func ConnectedComponents(adj Adjacency) [][]string {
	visited := make(map[string]bool, len(adj))
	var components [][]string

	for _, start := range adj.Nodes() {
		if visited[start] {
			continue
		}

		var component []string
		stack := []string{start}

		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if visited[node] {
				continue
			}
			visited[node] = true
			component = append(component, node)

			for _, neighbor := range adj[node] {
				if !visited[neighbor] {
					stack = append(stack, neighbor)
				}
			}
		}

		if len(component) > 1 {
			components = append(components, component)
		}
	}

	return components
}

// ClustersByType returns connected components after restricting the view to
// nodes of targetType, keeping only edges whose both endpoints match. An
// empty targetType passes the view through unfiltered.
func ClustersByType(adj Adjacency, nodeTypes map[string]string, targetType string) [][]string {
	if targetType == "" {
		return ConnectedComponents(adj)
	}

	filtered := make(Adjacency)
	for node, neighbors := range adj {
		if nodeTypes[node] != targetType {
			continue
		}
		kept := make([]string, 0, len(neighbors))
		for _, neighbor := range neighbors {
			if nodeTypes[neighbor] == targetType {
				kept = append(kept, neighbor)
			}
		}
		filtered[node] = kept
	}

	return ConnectedComponents(filtered)
}
