package graph

// unionFind is a disjoint-set over dense indices with path halving and
// union by rank.
type unionFind struct {
	parent []int32
	rank   []byte
	size   []int32
}

func newUnionFind(n int) *unionFind {
	parent := make([]int32, n)
	size := make([]int32, n)
	for i := range parent {
		parent[i] = int32(i)
		size[i] = 1
	}
	return &unionFind{parent: parent, rank: make([]byte, n), size: size}
}

func (uf *unionFind) find(x int32) int32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(x, y int32) {
	rx := uf.find(x)
	ry := uf.find(y)
	if rx == ry {
		return
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
}

// LargestComponent returns a new graph containing only the largest weakly
// connected component (edges treated as undirected). Corridor downloads can
// include disconnected fragments (parking lots, gated roads) that would
// otherwise swallow snapped endpoints.
func LargestComponent(g *Graph) *Graph {
	if g.NumNodes() == 0 {
		return g
	}

	ids := g.NodeIDs()
	index := make(map[int64]int32, len(ids))
	for i, id := range ids {
		index[id] = int32(i)
	}

	uf := newUnionFind(len(ids))
	for _, id := range ids {
		for _, e := range g.out[id] {
			uf.union(index[e.From], index[e.To])
		}
	}

	bestRoot := int32(0)
	bestSize := int32(0)
	for i := range ids {
		root := uf.find(int32(i))
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	keep := make(map[int64]bool, bestSize)
	for i, id := range ids {
		if uf.find(int32(i)) == bestRoot {
			keep[id] = true
		}
	}

	out := New()
	for id, n := range g.nodes {
		if keep[id] {
			out.nodes[id] = n
		}
	}
	for u, edges := range g.out {
		if !keep[u] {
			continue
		}
		for _, e := range edges {
			if keep[e.To] {
				out.out[u] = append(out.out[u], e)
				out.numEdges++
			}
		}
	}
	return out
}
