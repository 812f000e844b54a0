package astx

import (
	"go/ast"
	"go/token"
)

// cyclomaticBody counts decision points within a function body: one per
// conditional branch (if/for/range/switch case/select case), plus one per
// additional boolean operand in a short-circuit (&&/||) expression. The
// caller adds the base complexity of 1.
func cyclomaticBody(body *ast.BlockStmt) int {
	if body == nil {
		return 0
	}
	count := 0
	ast.Inspect(body, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.IfStmt:
			count++
		case *ast.ForStmt:
			count++
		case *ast.RangeStmt:
			count++
		case *ast.CaseClause:
			if len(s.List) > 0 { // a bare default case adds no branch
				count++
			}
		case *ast.CommClause:
			if s.Comm != nil {
				count++
			}
		case *ast.BinaryExpr:
			if s.Op == token.LAND || s.Op == token.LOR {
				count++
			}
		}
		return true
	})
	return count
}
