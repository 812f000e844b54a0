package astx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filesFromCalls(edges ...CallEdge) []FileAnalysis {
	names := map[string]bool{}
	var calls []CallEdge
	for _, e := range edges {
		names[e.Caller] = true
		names[e.Callee] = true
		calls = append(calls, e)
	}
	var functions []FunctionEntity
	for name := range names {
		functions = append(functions, FunctionEntity{Name: name})
	}
	return []FileAnalysis{{Functions: functions, Calls: calls}}
}

func TestImportantEntities_EmptyGraph(t *testing.T) {
	g := NewDependencyGraph(nil)
	assert.Nil(t, g.ImportantEntities(5))
}

func TestImportantEntities_HubReceivesHigherRankThanLeaf(t *testing.T) {
	// a, b, and c all call hub; hub calls nothing (dangling node).
	g := NewDependencyGraph(filesFromCalls(
		CallEdge{Caller: "a", Callee: "hub"},
		CallEdge{Caller: "b", Callee: "hub"},
		CallEdge{Caller: "c", Callee: "hub"},
	))

	ranked := g.ImportantEntities(0)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "hub", ranked[0].Name)

	var hubScore float64
	for _, r := range ranked {
		if r.Name == "hub" {
			hubScore = r.Score
		} else {
			assert.Greater(t, hubScore, r.Score)
		}
	}
}

func TestImportantEntities_ScoresSumToApproximatelyOne(t *testing.T) {
	g := NewDependencyGraph(filesFromCalls(
		CallEdge{Caller: "a", Callee: "b"},
		CallEdge{Caller: "b", Callee: "c"},
		CallEdge{Caller: "c", Callee: "a"},
	))
	ranked := g.ImportantEntities(0)
	require.Len(t, ranked, 3)

	var sum float64
	for _, r := range ranked {
		sum += r.Score
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestImportantEntities_HandlesCycleWithoutPanicking(t *testing.T) {
	g := NewDependencyGraph(filesFromCalls(
		CallEdge{Caller: "a", Callee: "b"},
		CallEdge{Caller: "b", Callee: "a"},
	))
	ranked := g.ImportantEntities(0)
	require.Len(t, ranked, 2)
	// A symmetric two-node cycle converges to equal rank for both nodes.
	assert.InDelta(t, ranked[0].Score, ranked[1].Score, 1e-9)
}

func TestImportantEntities_TopNTruncates(t *testing.T) {
	g := NewDependencyGraph(filesFromCalls(
		CallEdge{Caller: "a", Callee: "hub"},
		CallEdge{Caller: "b", Callee: "hub"},
		CallEdge{Caller: "c", Callee: "hub"},
	))
	ranked := g.ImportantEntities(2)
	assert.Len(t, ranked, 2)
}

func TestImportantEntities_RankingIsDeterministic(t *testing.T) {
	g := NewDependencyGraph(filesFromCalls(
		CallEdge{Caller: "a", Callee: "hub"},
		CallEdge{Caller: "b", Callee: "hub"},
		CallEdge{Caller: "hub", Callee: "c"},
	))
	first := g.ImportantEntities(0)
	second := g.ImportantEntities(0)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.InDelta(t, first[i].Score, second[i].Score, 1e-15)
	}
}

func TestDependencies_BFSRespectsMaxDepth(t *testing.T) {
	g := NewDependencyGraph(filesFromCalls(
		CallEdge{Caller: "a", Callee: "b"},
		CallEdge{Caller: "b", Callee: "c"},
		CallEdge{Caller: "c", Callee: "d"},
	))

	oneHop := g.Dependencies("a", 1)
	assert.Equal(t, []string{"b"}, oneHop)

	twoHop := g.Dependencies("a", 2)
	assert.Equal(t, []string{"b", "c"}, twoHop)

	defaultDepth := g.Dependencies("a", 0)
	assert.Equal(t, twoHop, defaultDepth)
}
