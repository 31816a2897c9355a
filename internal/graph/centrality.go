package graph

import "math/rand"

// DegreeCentrality scores every node as degree/(N-1), where N is the node
// count of the view. All scores are zero when the view holds one node or
// fewer, since no other node exists to connect to.
func DegreeCentrality(adj Adjacency) map[string]float64 {
	centrality := make(map[string]float64, len(adj))

	if len(adj) <= 1 {
		for node := range adj {
			centrality[node] = 0
		}
		return centrality
	}

	denominator := float64(len(adj) - 1)
	for node, neighbors := range adj {
		centrality[node] = float64(len(neighbors)) / denominator
	}

	return centrality
}

// BetweennessCentrality scores every node by the fraction of shortest paths
// passing through it. For each unordered pair of (optionally sampled) nodes,
// every shortest path between them is enumerated and each intermediate node
// credited 1/numPaths; scores are then normalized by the ordered pair count
// of the sample. Enumerating all shortest paths is expensive, so callers on
// large views should pass a sampleSize; zero disables sampling.
func BetweennessCentrality(adj Adjacency, sampleSize int) map[string]float64 {
	nodes := adj.Nodes()
	if sampleSize > 0 && sampleSize < len(nodes) {
		perm := rand.Perm(len(nodes))
		sampled := make([]string, sampleSize)
		for i := 0; i < sampleSize; i++ {
			sampled[i] = nodes[perm[i]]
		}
		nodes = sampled
	}

	centrality := make(map[string]float64, len(adj))
	for node := range adj {
		centrality[node] = 0
	}

	totalPairs := len(nodes) * (len(nodes) - 1)
	if totalPairs == 0 {
		return centrality
	}

	for i, source := range nodes {
		for _, target := range nodes[i+1:] {
			paths := allShortestPaths(adj, source, target)
			if len(paths) == 0 {
				continue
			}

			credit := 1.0 / float64(len(paths))
			for _, path := range paths {
				for _, node := range path[1 : len(path)-1] {
					centrality[node] += credit
				}
			}
		}
	}

	for node := range centrality {
		centrality[node] /= float64(totalPairs)
	}

	return centrality
}

// allShortestPaths enumerates every shortest path from source to target.
// A BFS pass records the distance of each node from source; the DFS then
// only follows edges that advance distance by exactly one, which restricts
// it to the shortest-path DAG, so every emitted path has minimal length.
func allShortestPaths(adj Adjacency, source, target string) [][]string {
	if source == target {
		return [][]string{{source}}
	}

	dist := map[string]int{source: 0}
	queue := []string{source}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range adj[current] {
			if _, seen := dist[neighbor]; seen {
				continue
			}
			dist[neighbor] = dist[current] + 1
			queue = append(queue, neighbor)
		}
	}

	if _, reachable := dist[target]; !reachable {
		return nil
	}

	var paths [][]string
	path := []string{source}

	var dfs func(current string)
	dfs = func(current string) {
		if current == target {
			paths = append(paths, append([]string(nil), path...))
			return
		}

		for _, neighbor := range adj[current] {
			if dist[neighbor] != dist[current]+1 {
				continue
			}
			path = append(path, neighbor)
			dfs(neighbor)
			path = path[:len(path)-1]
		}
	}

	dfs(source)
	return paths
}
