// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stageagents

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/kforge/codeforge/pkg/stage"
)

// weakHashFuncs are crypto package selectors flagged by gosec's G401/G505
// rules (use of MD5 or SHA1 for anything security-sensitive).
var weakHashFuncs = map[string]bool{"md5.New": true, "md5.Sum": true, "sha1.New": true, "sha1.Sum": true}

// runSecurityLintPass scans code for a handful of gosec-style findings:
// shell-outs with variable input (G204), weak hashes (G401/G505), and
// hardcoded-looking credential assignments (G101).
func runSecurityLintPass(code string) stage.ToolReport {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", code, parser.AllErrors)
	if err != nil {
		// A syntax error here was already reported by the pytest-analogue
		// pass; the lint pass has nothing to scan.
		return stage.ToolReport{Success: true}
	}

	var issues []string
	ast.Inspect(file, func(n ast.Node) bool {
		switch v := n.(type) {
		case *ast.CallExpr:
			if sel, ok := v.Fun.(*ast.SelectorExpr); ok {
				name := selectorName(sel)
				if weakHashFuncs[name] {
					issues = append(issues, "use of weak hash function "+name)
				}
				if isExecCommand(sel) && len(v.Args) > 0 {
					if _, isLit := v.Args[0].(*ast.BasicLit); !isLit {
						issues = append(issues, "subprocess launched with variable command, possible injection")
					}
				}
			}
		case *ast.AssignStmt:
			for _, lhs := range v.Lhs {
				ident, ok := lhs.(*ast.Ident)
				if !ok {
					continue
				}
				if looksLikeCredentialName(ident.Name) {
					issues = append(issues, "possible hardcoded credential in variable "+ident.Name)
				}
			}
		}
		return true
	})

	if len(issues) == 0 {
		return stage.ToolReport{Success: true}
	}
	return stage.ToolReport{Success: false, Issues: truncate(strings.Join(issues, "; "), maxReportChars)}
}

func selectorName(sel *ast.SelectorExpr) string {
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return sel.Sel.Name
	}
	return ident.Name + "." + sel.Sel.Name
}

func isExecCommand(sel *ast.SelectorExpr) bool {
	ident, ok := sel.X.(*ast.Ident)
	return ok && ident.Name == "exec" && (sel.Sel.Name == "Command" || sel.Sel.Name == "CommandContext")
}

func looksLikeCredentialName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"password", "secret", "apikey", "api_key", "token"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
