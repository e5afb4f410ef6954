package resolve

// UnionFind is a disjoint-set structure over integer element indices, with
// path compression and union by rank. It backs the transitive alias merge:
// if A shares a key with B and B with C, all three land in one set even when
// A and C share nothing directly.
type UnionFind struct {
	parent []int
	rank   []int
}

// NewUnionFind creates n singleton sets.
func NewUnionFind(n int) *UnionFind {
	u := &UnionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

// Find returns the representative of x's set.
func (u *UnionFind) Find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// Union merges the sets containing a and b and returns the representative of
// the merged set.
func (u *UnionFind) Union(a, b int) int {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return ra
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
	return ra
}

// Groups returns the member indices of every set, each group sorted ascending.
func (u *UnionFind) Groups() map[int][]int {
	groups := make(map[int][]int)
	for i := range u.parent {
		root := u.Find(i)
		groups[root] = append(groups[root], i)
	}
	return groups
}
