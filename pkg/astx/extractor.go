// Package astx implements the AST Analyzer: a structural-facts extractor
// presently backed by a single language (Go), producing per-file entities,
// a cross-file dependency graph, and complexity metrics.
package astx

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// FunctionEntity describes one function or method.
type FunctionEntity struct {
	Name       string
	Signature  string
	StartLine  int
	EndLine    int
	Docstring  string
	Complexity int
	LOC        int
	Calls      []string
	Receiver   string
	Exported   bool
}

// ClassEntity describes one type declaration (Go's analogue of a class):
// structs and interfaces, with their methods.
type ClassEntity struct {
	Name      string
	StartLine int
	EndLine   int
	Docstring string
	Kind      string // "struct", "interface", or "alias" for any other type
	Fields    []string
	Methods   []string
	Exported  bool
}

// FileAnalysis is the per-file output of the analyzer.
type FileAnalysis struct {
	Path      string
	Imports   []string
	Functions []FunctionEntity
	Classes   []ClassEntity
	Calls     []CallEdge
	Error     string // set on parse failure; callers continue with degraded context
}

// CallEdge records that caller invokes callee (by best-effort name
// resolution; unresolved/method calls on unknown receivers are recorded by
// their selector name only).
type CallEdge struct {
	Caller string
	Callee string
}

// AnalyzeFile parses one Go source file and extracts its structural facts.
// A parse failure never returns an error; it returns a FileAnalysis with
// Error set so callers can continue with degraded context, per spec.
func AnalyzeFile(path string, src []byte) FileAnalysis {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return FileAnalysis{Path: path, Error: err.Error()}
	}

	fa := FileAnalysis{Path: path}
	for _, imp := range file.Imports {
		fa.Imports = append(fa.Imports, strings.Trim(imp.Path.Value, `"`))
	}

	typeDecls := map[string]*ClassEntity{}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			fn := extractFunction(fset, d)
			fa.Functions = append(fa.Functions, fn)
			for _, callee := range fn.Calls {
				fa.Calls = append(fa.Calls, CallEdge{Caller: fn.Name, Callee: callee})
			}
			if d.Recv != nil && len(d.Recv.List) > 0 {
				recvName := recvTypeName(d.Recv.List[0].Type)
				if recvName != "" {
					if ce, ok := typeDecls[recvName]; ok {
						ce.Methods = append(ce.Methods, d.Name.Name)
					}
				}
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				ce := extractType(fset, d, ts)
				typeDecls[ce.Name] = &ce
			}
		}
	}

	for _, ce := range typeDecls {
		fa.Classes = append(fa.Classes, *ce)
	}
	return fa
}

func extractFunction(fset *token.FileSet, d *ast.FuncDecl) FunctionEntity {
	start := fset.Position(d.Pos())
	end := fset.Position(d.End())
	fn := FunctionEntity{
		Name:      d.Name.Name,
		Signature: formatFuncSignature(d),
		StartLine: start.Line,
		EndLine:   end.Line,
		LOC:       end.Line - start.Line + 1,
		Docstring: docText(d.Doc),
		Exported:  d.Name.IsExported(),
	}
	if d.Recv != nil && len(d.Recv.List) > 0 {
		fn.Receiver = formatType(d.Recv.List[0].Type)
	}
	fn.Complexity = 1 + cyclomaticBody(d.Body)
	fn.Calls = collectCalls(d.Body)
	return fn
}

func extractType(fset *token.FileSet, d *ast.GenDecl, ts *ast.TypeSpec) ClassEntity {
	start := fset.Position(d.Pos())
	end := fset.Position(ts.End())
	ce := ClassEntity{
		Name:      ts.Name.Name,
		StartLine: start.Line,
		EndLine:   end.Line,
		Docstring: docText(d.Doc),
		Exported:  ts.Name.IsExported(),
	}
	switch t := ts.Type.(type) {
	case *ast.StructType:
		ce.Kind = "struct"
		if t.Fields != nil {
			for _, f := range t.Fields.List {
				ce.Fields = append(ce.Fields, fieldNames(f)...)
			}
		}
	case *ast.InterfaceType:
		ce.Kind = "interface"
		if t.Methods != nil {
			for _, m := range t.Methods.List {
				ce.Fields = append(ce.Fields, fieldNames(m)...)
			}
		}
	default:
		ce.Kind = "alias"
	}
	return ce
}

func fieldNames(f *ast.Field) []string {
	if len(f.Names) == 0 {
		return []string{formatType(f.Type)}
	}
	names := make([]string, 0, len(f.Names))
	for _, n := range f.Names {
		names = append(names, n.Name)
	}
	return names
}

func docText(g *ast.CommentGroup) string {
	if g == nil {
		return ""
	}
	return strings.TrimSpace(g.Text())
}

func recvTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return recvTypeName(t.X)
	default:
		return ""
	}
}

func collectCalls(body *ast.BlockStmt) []string {
	if body == nil {
		return nil
	}
	var calls []string
	seen := map[string]bool{}
	ast.Inspect(body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		name := calleeName(call.Fun)
		if name != "" && !seen[name] {
			seen[name] = true
			calls = append(calls, name)
		}
		return true
	})
	return calls
}

func calleeName(expr ast.Expr) string {
	switch f := expr.(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	default:
		return ""
	}
}

// formatFuncSignature renders a function declaration's signature as a
// readable string, e.g. "func (*Reader) Read(p []byte) (n int, err error)";
// the receiver is rendered by its type only.
func formatFuncSignature(d *ast.FuncDecl) string {
	var b strings.Builder
	b.WriteString("func ")
	if d.Recv != nil && len(d.Recv.List) > 0 {
		b.WriteString("(")
		b.WriteString(formatType(d.Recv.List[0].Type))
		b.WriteString(") ")
	}
	b.WriteString(d.Name.Name)
	b.WriteString(formatFieldList(d.Type.Params, true))
	if d.Type.Results != nil {
		results := formatFieldList(d.Type.Results, false)
		if len(d.Type.Results.List) == 1 && len(d.Type.Results.List[0].Names) == 0 {
			b.WriteString(" " + strings.Trim(results, "()"))
		} else {
			b.WriteString(" " + results)
		}
	}
	return b.String()
}

func formatFieldList(fl *ast.FieldList, parens bool) string {
	if fl == nil {
		if parens {
			return "()"
		}
		return ""
	}
	parts := make([]string, 0, len(fl.List))
	for _, f := range fl.List {
		t := formatType(f.Type)
		if len(f.Names) == 0 {
			parts = append(parts, t)
			continue
		}
		names := make([]string, 0, len(f.Names))
		for _, n := range f.Names {
			names = append(names, n.Name)
		}
		parts = append(parts, strings.Join(names, ", ")+" "+t)
	}
	joined := strings.Join(parts, ", ")
	if parens {
		return "(" + joined + ")"
	}
	return "(" + joined + ")"
}

// formatType renders a type expression recursively.
func formatType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + formatType(t.X)
	case *ast.ArrayType:
		if t.Len == nil {
			return "[]" + formatType(t.Elt)
		}
		return "[...]" + formatType(t.Elt)
	case *ast.SelectorExpr:
		return formatType(t.X) + "." + t.Sel.Name
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", formatType(t.Key), formatType(t.Value))
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.StructType:
		return "struct{}"
	case *ast.FuncType:
		return "func" + formatFieldList(t.Params, true)
	case *ast.Ellipsis:
		return "..." + formatType(t.Elt)
	case *ast.ChanType:
		return "chan " + formatType(t.Value)
	default:
		return "any"
	}
}
