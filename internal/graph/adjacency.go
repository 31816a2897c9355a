package graph

import "sort"

// Adjacency is an in-memory neighbor view of the graph: node id to the ids
// it touches. Views are built on demand for a bounded traversal and treated
// as undirected (builders append both directions), so memory stays
// proportional to the explored region, never the whole graph.
type Adjacency map[string][]string

// AddEdge records an undirected edge between a and b.
func (a Adjacency) AddEdge(from, to string) {
	a[from] = append(a[from], to)
	a[to] = append(a[to], from)
}

// AddNode ensures the node exists in the view, with no neighbors yet.
func (a Adjacency) AddNode(id string) {
	if _, ok := a[id]; !ok {
		a[id] = nil
	}
}

// Nodes returns the node ids of the view in sorted order. Sorting gives
// the traversal algorithms a stable seed order.
func (a Adjacency) Nodes() []string {
	nodes := make([]string, 0, len(a))
	for id := range a {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	return nodes
}

// EdgeCount returns the number of undirected edges in the view.
func (a Adjacency) EdgeCount() int {
	total := 0
	for _, neighbors := range a {
		total += len(neighbors)
	}
	return total / 2
}
