package astx

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"
)

func complexityOf(t *testing.T, src string) int {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "test.go", "package p\n"+src, parser.ParseComments)
	require.NoError(t, err)
	require.Len(t, file.Decls, 1)
	decl, ok := file.Decls[0].(*ast.FuncDecl)
	require.True(t, ok)
	fn := extractFunction(fset, decl)
	return fn.Complexity
}

func TestCyclomaticComplexity_StraightLineIsOne(t *testing.T) {
	got := complexityOf(t, `
func F(a int) int {
	b := a + 1
	return b
}`)
	require.Equal(t, 1, got)
}

func TestCyclomaticComplexity_SingleIfIsTwo(t *testing.T) {
	got := complexityOf(t, `
func F(a int) int {
	if a > 0 {
		return a
	}
	return -a
}`)
	require.Equal(t, 2, got)
}

func TestCyclomaticComplexity_ForAndRangeEachAddOne(t *testing.T) {
	got := complexityOf(t, `
func F(items []int) int {
	sum := 0
	for i := 0; i < len(items); i++ {
		sum += items[i]
	}
	for range items {
		sum++
	}
	return sum
}`)
	require.Equal(t, 3, got) // base 1 + for + range
}

func TestCyclomaticComplexity_SwitchCasesCountBareDefaultDoesNot(t *testing.T) {
	got := complexityOf(t, `
func F(a int) string {
	switch a {
	case 1:
		return "one"
	case 2:
		return "two"
	default:
		return "other"
	}
}`)
	require.Equal(t, 3, got) // base 1 + 2 non-default cases
}

func TestCyclomaticComplexity_SelectCommClauseCounts(t *testing.T) {
	got := complexityOf(t, `
func F(ch chan int, done chan struct{}) int {
	select {
	case v := <-ch:
		return v
	case <-done:
		return 0
	}
}`)
	require.Equal(t, 3, got) // base 1 + 2 comm clauses
}

func TestCyclomaticComplexity_BooleanOperatorsAddOnePerOperand(t *testing.T) {
	got := complexityOf(t, `
func F(a, b, c bool) bool {
	if a && b || c {
		return true
	}
	return false
}`)
	require.Equal(t, 4, got) // base 1 + if + && + ||
}

func TestCyclomaticComplexity_NilBodyIsZero(t *testing.T) {
	require.Equal(t, 0, cyclomaticBody(nil))
}
