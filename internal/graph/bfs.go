package graph

// BreadthFirstSearch explores the view level by level from start and returns
// every reachable node mapped to its discovered depth. Nodes deeper than
// maxDepth are absent. Returns an empty map when start is not in the view.
func BreadthFirstSearch(adj Adjacency, start string, maxDepth int) map[string]int {
	if _, ok := adj[start]; !ok {
		return map[string]int{}
	}

	type item struct {
		id    string
		depth int
	}

	visited := map[string]int{start: 0}
	queue := []item{{id: start, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}

		for _, neighbor := range adj[current.id] {
			if _, seen := visited[neighbor]; seen {
				continue
			}
			visited[neighbor] = current.depth + 1
			queue = append(queue, item{id: neighbor, depth: current.depth + 1})
		}
	}

	return visited
}

// ShortestPathBFS returns the node ids of a shortest path from source to
// target, inclusive. Returns [source] when source == target and an empty
// slice when either endpoint is absent or no path exists. Among equal-length
// paths the winner follows neighbor enumeration order, so the result is
// stable for a given view but carries no global tie-break.
func ShortestPathBFS(adj Adjacency, source, target string) []string {
	if source == target {
		return []string{source}
	}

	if _, ok := adj[source]; !ok {
		return nil
	}
	if _, ok := adj[target]; !ok {
		return nil
	}

	parent := map[string]string{source: ""}
	queue := []string{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adj[current] {
			if _, seen := parent[neighbor]; seen {
				continue
			}
			parent[neighbor] = current

			if neighbor == target {
				return reconstructPath(parent, source, target)
			}
			queue = append(queue, neighbor)
		}
	}

	return nil
}

// reconstructPath walks parent pointers from target back to source.
func reconstructPath(parent map[string]string, source, target string) []string {
	var reversed []string
	for node := target; node != ""; node = parent[node] {
		reversed = append(reversed, node)
		if node == source {
			break
		}
	}

	path := make([]string, len(reversed))
	for i, node := range reversed {
		path[len(reversed)-1-i] = node
	}
	return path
}
