package astx

import "sort"

// DependencyGraph is a directed multigraph over function/class entity
// names, built from the "calls" edges of one or more FileAnalysis
// results. It records no "inherits" edges: type embedding is not turned
// into graph edges. It may contain cycles (mutual recursion).
type DependencyGraph struct {
	nodes map[string]bool
	calls map[string][]string // caller -> callees
	rev    map[string][]string // callee -> callers; Dependencies walks only the calls edges
}

// NewDependencyGraph builds a graph from a set of file analyses.
func NewDependencyGraph(files []FileAnalysis) *DependencyGraph {
	g := &DependencyGraph{
		nodes: map[string]bool{},
		calls: map[string][]string{},
		rev:   map[string][]string{},
	}
	for _, fa := range files {
		for _, fn := range fa.Functions {
			g.nodes[fn.Name] = true
		}
		for _, ce := range fa.Classes {
			g.nodes[ce.Name] = true
		}
		for _, edge := range fa.Calls {
			g.nodes[edge.Caller] = true
			g.nodes[edge.Callee] = true
			g.calls[edge.Caller] = append(g.calls[edge.Caller], edge.Callee)
			g.rev[edge.Callee] = append(g.rev[edge.Callee], edge.Caller)
		}
	}
	return g
}

// RankedEntity is one entity's computed centrality score.
type RankedEntity struct {
	Name  string
	Score float64
}

// ImportantEntities returns the topN entities by PageRank-style centrality
// over the call graph, damping factor 0.85, handling cycles correctly.
func (g *DependencyGraph) ImportantEntities(topN int) []RankedEntity {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names) // deterministic iteration order

	n := len(names)
	if n == 0 {
		return nil
	}
	index := make(map[string]int, n)
	for i, name := range names {
		index[name] = i
	}

	const damping = 0.85
	const iterations = 50
	rank := make([]float64, n)
	for i := range rank {
		rank[i] = 1.0 / float64(n)
	}

	outDegree := make([]int, n)
	for i, name := range names {
		outDegree[i] = len(g.calls[name])
	}

	for iter := 0; iter < iterations; iter++ {
		next := make([]float64, n)
		danglingSum := 0.0
		for i := range names {
			if outDegree[i] == 0 {
				danglingSum += rank[i]
			}
		}
		for i := range next {
			next[i] = (1-damping)/float64(n) + damping*danglingSum/float64(n)
		}
		for i, name := range names {
			if outDegree[i] == 0 {
				continue
			}
			share := damping * rank[i] / float64(outDegree[i])
			for _, callee := range g.calls[name] {
				j, ok := index[callee]
				if !ok {
					continue
				}
				next[j] += share
			}
		}
		rank = next
	}

	ranked := make([]RankedEntity, n)
	for i, name := range names {
		ranked[i] = RankedEntity{Name: name, Score: rank[i]}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name // stable tie-break
	})
	if topN > 0 && topN < len(ranked) {
		ranked = ranked[:topN]
	}
	return ranked
}

// Dependencies returns the names reachable from name within maxDepth call
// hops (default 2), via breadth-first search over the calls edges.
func (g *DependencyGraph) Dependencies(name string, maxDepth int) []string {
	if maxDepth <= 0 {
		maxDepth = 2
	}
	visited := map[string]bool{name: true}
	queue := []struct {
		name  string
		depth int
	}{{name, 0}}
	var result []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, callee := range g.calls[cur.name] {
			if visited[callee] {
				continue
			}
			visited[callee] = true
			result = append(result, callee)
			queue = append(queue, struct {
				name  string
				depth int
			}{callee, cur.depth + 1})
		}
	}
	sort.Strings(result)
	return result
}
