package graph

import "sort"

// maxCommunityPasses bounds the local-search sweeps of DetectCommunities.
const maxCommunityPasses = 10

// DetectCommunities groups nodes into communities with a Louvain-inspired
// local search. Every node starts in its own community; each pass visits the
// nodes in sorted order and moves a node to the neighboring community with
// the largest positive gain, where gain is the change in the node's
// same-community edge fraction scaled by resolution. The search stops when a
// pass moves nothing or after maxCommunityPasses. This is a best-effort
// approximation, not an exact modularity optimizer.
//
// The result maps each node id to a community id; ids are renumbered to be
// consecutive from zero.
func DetectCommunities(adj Adjacency, resolution float64) map[string]int {
	if len(adj) == 0 {
		return map[string]int{}
	}

	nodes := adj.Nodes()

	communities := make(map[string]int, len(nodes))
	for i, node := range nodes {
		communities[node] = i
	}

	gain := func(node string, candidate int) float64 {
		current := communities[node]
		if current == candidate {
			return 0
		}

		degree := len(adj[node])
		if degree == 0 {
			return 0
		}

		currentEdges, candidateEdges := 0, 0
		for _, neighbor := range adj[node] {
			switch communities[neighbor] {
			case current:
				currentEdges++
			case candidate:
				candidateEdges++
			}
		}

		return float64(candidateEdges-currentEdges) / float64(degree) * resolution
	}

	improved := true
	for pass := 0; improved && pass < maxCommunityPasses; pass++ {
		improved = false

		for _, node := range nodes {
			bestCommunity := communities[node]
			bestGain := 0.0

			seen := make(map[int]bool)
			var candidates []int
			for _, neighbor := range adj[node] {
				if id := communities[neighbor]; !seen[id] {
					seen[id] = true
					candidates = append(candidates, id)
				}
			}
			sort.Ints(candidates)

			for _, candidate := range candidates {
				if g := gain(node, candidate); g > bestGain {
					bestGain = g
					bestCommunity = candidate
				}
			}

			if bestGain > 0 && bestCommunity != communities[node] {
				communities[node] = bestCommunity
				improved = true
			}
		}
	}

	// Renumber community ids to be consecutive, in sorted node order.
	renumbered := make(map[int]int)
	next := 0
	for _, node := range nodes {
		id := communities[node]
		if _, ok := renumbered[id]; !ok {
			renumbered[id] = next
			next++
		}
		communities[node] = renumbered[id]
	}

	return communities
}

// CommunityGroups inverts a DetectCommunities result into member lists,
// indexed by community id.
func CommunityGroups(communities map[string]int) [][]string {
	if len(communities) == 0 {
		return nil
	}

	maxID := 0
	for _, id := range communities {
		if id > maxID {
			maxID = id
		}
	}

	nodes := make([]string, 0, len(communities))
	for node := range communities {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	groups := make([][]string, maxID+1)
	for _, node := range nodes {
		groups[communities[node]] = append(groups[communities[node]], node)
	}

	return groups
}
