// Package validate implements the Quick Validator: a fast, embeddable
// verdict over generated Go code from in-process syntax and type checks,
// plus `go test` in a subprocess only when tests are supplied, time-boxed
// so it never blocks the workflow scheduler past its budget.
package validate

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Result is the Quick Validator's verdict.
type Result struct {
	Passed bool
	Error  string // empty when Passed
}

// DefaultTimeout is the default time-box for a full validate call (5s, per
// spec.md §4.9).
const DefaultTimeout = 5 * time.Second

// Validate runs the three-step check in order, stopping at the first
// failure: syntax, compile-check, and (if tests are non-empty) test
// execution in a subprocess. It never blocks past timeout; on timeout it
// returns {Passed: false, Error: "timeout"}.
func Validate(ctx context.Context, code, tests string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- validateSync(code, tests)
	}()

	select {
	case r := <-resultCh:
		return r
	case <-time.After(timeout):
		return Result{Passed: false, Error: "timeout"}
	case <-ctx.Done():
		return Result{Passed: false, Error: "timeout"}
	}
}

func validateSync(code, tests string) Result {
	if r := checkSyntax(code); !r.Passed {
		return r
	}
	if r := checkCompile(code); !r.Passed {
		return r
	}
	if strings.TrimSpace(tests) == "" {
		// Empty tests: passed=true after compile-check, per spec boundary.
		return Result{Passed: true}
	}
	return runTests(code, tests)
}

func checkSyntax(code string) Result {
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "generated.go", code, parser.AllErrors); err != nil {
		return Result{Passed: false, Error: "syntax error: " + err.Error()}
	}
	return Result{Passed: true}
}

// checkCompile approximates a compile check for a single generated file:
// it type-checks the file's own package in isolation, resolving only
// standard-library imports (see newBestEffortImporter), which is what a
// generated single-file snippet needs.
func checkCompile(code string) Result {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "generated.go", code, parser.AllErrors)
	if err != nil {
		return Result{Passed: false, Error: "syntax error: " + err.Error()}
	}

	conf := types.Config{Importer: newBestEffortImporter()}
	info := &types.Info{}
	_, err = conf.Check(file.Name.Name, fset, []*ast.File{file}, info)
	if err != nil {
		return Result{Passed: false, Error: "compile error: " + err.Error()}
	}
	return Result{Passed: true}
}

func runTests(code, tests string) Result {
	dir, err := os.MkdirTemp("", "codeforge-validate-*")
	if err != nil {
		return Result{Passed: false, Error: "failed to create scratch dir: " + err.Error()}
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "generated.go"), []byte(code), 0644); err != nil {
		return Result{Passed: false, Error: "failed to write generated code: " + err.Error()}
	}
	if err := os.WriteFile(filepath.Join(dir, "generated_test.go"), []byte(tests), 0644); err != nil {
		return Result{Passed: false, Error: "failed to write tests: " + err.Error()}
	}
	goMod := "module codeforgevalidate\n\ngo 1.24\n"
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte(goMod), 0644); err != nil {
		return Result{Passed: false, Error: "failed to write go.mod: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "test", "./...")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		_ = cmd.Process.Kill()
		return Result{Passed: false, Error: "timeout"}
	}
	if err != nil {
		return Result{Passed: false, Error: classifyFailure(string(out))}
	}
	return Result{Passed: true}
}

func classifyFailure(output string) string {
	switch {
	case strings.Contains(output, "panic:"):
		return "panic: " + firstLine(output, "panic:")
	case strings.Contains(output, "FAIL"):
		return "test failure: " + firstLine(output, "--- FAIL")
	default:
		return "test failure: " + strings.TrimSpace(output)
	}
}

func firstLine(output, marker string) string {
	idx := strings.Index(output, marker)
	if idx < 0 {
		return strings.TrimSpace(output)
	}
	rest := output[idx:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		return strings.TrimSpace(rest[:nl])
	}
	return strings.TrimSpace(rest)
}
