package astx

import (
	"os"
	"path/filepath"
	"strings"
)

// ProjectAnalysis is the aggregated result of analyzing every Go source
// file under a project root.
type ProjectAnalysis struct {
	Files []FileAnalysis
	Graph *DependencyGraph
}

// AnalyzeProject walks root, parsing every *.go file except _test.go files
// (skipping vendor/ and hidden directories) and builds the aggregate dependency graph. A file
// that fails to parse contributes a FileAnalysis with Error set and is
// otherwise skipped from the graph; AnalyzeProject itself never fails.
func AnalyzeProject(root string) (*ProjectAnalysis, error) {
	var files []FileAnalysis
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // degrade gracefully, keep walking
		}
		if d.IsDir() {
			base := d.Name()
			if base == "vendor" || (strings.HasPrefix(base, ".") && path != root) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		src, rerr := os.ReadFile(path)
		if rerr != nil {
			files = append(files, FileAnalysis{Path: path, Error: rerr.Error()})
			return nil
		}
		files = append(files, AnalyzeFile(path, src))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ProjectAnalysis{
		Files: files,
		Graph: NewDependencyGraph(files),
	}, nil
}
