package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kforge/codeforge/pkg/vector"
)

func TestSourceBonus(t *testing.T) {
	assert.Equal(t, 1.0, sourceBonus(SourceLocal))
	assert.Equal(t, 0.5, sourceBonus(SourceHistory))
	assert.Equal(t, 0.5, sourceBonus(SourceExternal))
}

func TestCombinedScore(t *testing.T) {
	c := CodeExample{RelevanceScore: 0.8, QualityScore: 0.6, Source: SourceLocal}
	want := 0.6*0.8 + 0.3*0.6 + 0.1*1.0
	assert.InDelta(t, want, combinedScore(c), 1e-9)

	c.Source = SourceExternal
	want = 0.6*0.8 + 0.3*0.6 + 0.1*0.5
	assert.InDelta(t, want, combinedScore(c), 1e-9)
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	idx, err := New(Config{Provider: provider, Embedder: NewHashEmbedder(64)})
	require.NoError(t, err)
	return idx
}

const wellFormedFunc = `// Divide returns a divided by b.
func Divide(a, b int) int {
	return a / b
}`

func TestIndex_FindSimilar_RoundTrip(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.GreaterOrEqual(t, ScoreQuality(wellFormedFunc), 0.5)
	require.NoError(t, idx.upsert(ctx, wellFormedFunc, "divide two integers", SourceLocal, "math.go", "go"))

	id := canonicalHash(wellFormedFunc)
	results, err := idx.FindSimilar(ctx, "divide two integers", 5, nil, "go")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	var found *CodeExample
	for i := range results {
		if results[i].ID == id {
			found = &results[i]
			break
		}
	}
	require.NotNil(t, found, "expected the inserted example's id to round-trip through FindSimilar")
	assert.Equal(t, id, found.ID)
	assert.Equal(t, "go", found.Language)
	assert.Equal(t, SourceLocal, found.Source)
}

func TestIndex_FindSimilar_LowQualityExampleNotIndexed(t *testing.T) {
	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)
	idx, err := New(Config{Provider: provider, Embedder: NewHashEmbedder(64), MinQuality: 0.5})
	require.NoError(t, err)
	ctx := context.Background()

	lowQuality := "x"
	require.Less(t, ScoreQuality(lowQuality), 0.5)
	require.NoError(t, idx.upsert(ctx, lowQuality, "", SourceLocal, "", "go"))

	results, err := idx.FindSimilar(ctx, "x", 5, nil, "go")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndex_FindSimilar_RankingIsStable(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	examples := []struct {
		code, desc string
	}{
		{wellFormedFunc, "divide two integers"},
		{`// Multiply returns a times b.
func Multiply(a, b int) int {
	return a * b
}`, "multiply two integers"},
		{`// Subtract returns a minus b.
func Subtract(a, b int) int {
	return a - b
}`, "subtract two integers"},
	}
	for _, e := range examples {
		require.NoError(t, idx.upsert(ctx, e.code, e.desc, SourceLocal, "", "go"))
	}

	first, err := idx.FindSimilar(ctx, "arithmetic on two integers", 10, nil, "go")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	for i := 0; i < 5; i++ {
		again, err := idx.FindSimilar(ctx, "arithmetic on two integers", 10, nil, "go")
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].ID, again[j].ID, "ranking order changed on rerun %d at position %d", i, j)
		}
	}
}

func TestIndex_FindSimilar_FiltersBySourceAndLanguage(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	historyFunc := `// DivideFloat returns a divided by b as a float64.
func DivideFloat(a, b int) float64 {
	return float64(a) / float64(b)
}`

	require.NoError(t, idx.upsert(ctx, wellFormedFunc, "divide two integers", SourceLocal, "math.go", "go"))
	require.NoError(t, idx.AddFromHistory(ctx, "divide two integers please", historyFunc))

	onlyHistory, err := idx.FindSimilar(ctx, "divide two integers", 10, []Source{SourceHistory}, "go")
	require.NoError(t, err)
	for _, c := range onlyHistory {
		assert.Equal(t, SourceHistory, c.Source)
	}

	noneMatchLanguage, err := idx.FindSimilar(ctx, "divide two integers", 10, nil, "python")
	require.NoError(t, err)
	assert.Empty(t, noneMatchLanguage)
}
