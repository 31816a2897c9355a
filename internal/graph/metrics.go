package graph

import "math/rand"

// metricsPathSample caps the number of nodes whose pairwise paths feed the
// average path length estimate.
const metricsPathSample = 100

// Metrics summarizes the shape of an adjacency view.
type Metrics struct {
	Nodes                int     `json:"num_nodes"`
	Edges                int     `json:"num_edges"`
	AvgDegree            float64 `json:"avg_degree"`
	Density              float64 `json:"density"`
	Components           int     `json:"num_components"`
	LargestComponentSize int     `json:"largest_component_size"`
	AvgPathLength        float64 `json:"avg_path_length"`
}

// CalculateMetrics computes node/edge counts, average degree, density,
// component statistics (singletons excluded, matching ConnectedComponents),
// and an approximate average path length. Path length averages over the
// connected pairs of a random sample of at most metricsPathSample nodes, so
// the figure is an estimate on large views. Returns the zero value for an
// empty view.
func CalculateMetrics(adj Adjacency) Metrics {
	if len(adj) == 0 {
		return Metrics{}
	}

	m := Metrics{
		Nodes: len(adj),
		Edges: adj.EdgeCount(),
	}

	m.AvgDegree = 2 * float64(m.Edges) / float64(m.Nodes)

	if maxEdges := m.Nodes * (m.Nodes - 1) / 2; maxEdges > 0 {
		m.Density = float64(m.Edges) / float64(maxEdges)
	}

	components := ConnectedComponents(adj)
	m.Components = len(components)
	for _, component := range components {
		if len(component) > m.LargestComponentSize {
			m.LargestComponentSize = len(component)
		}
	}

	m.AvgPathLength = approximateAvgPathLength(adj)

	return m
}

// approximateAvgPathLength averages shortest-path lengths over the connected
// pairs of a bounded node sample.
func approximateAvgPathLength(adj Adjacency) float64 {
	nodes := adj.Nodes()
	if len(nodes) > metricsPathSample {
		perm := rand.Perm(len(nodes))
		sampled := make([]string, metricsPathSample)
		for i := 0; i < metricsPathSample; i++ {
			sampled[i] = nodes[perm[i]]
		}
		nodes = sampled
	}

	totalLength := 0
	pairs := 0

	for i, source := range nodes {
		for _, target := range nodes[i+1:] {
			path := ShortestPathBFS(adj, source, target)
			if len(path) == 0 {
				continue
			}
			totalLength += len(path) - 1
			pairs++
		}
	}

	if pairs == 0 {
		return 0
	}
	return float64(totalLength) / float64(pairs)
}
