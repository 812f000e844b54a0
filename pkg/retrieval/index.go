package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kforge/codeforge/pkg/astx"
	"github.com/kforge/codeforge/pkg/vector"
)

// Source identifies where a CodeExample originated.
type Source string

const (
	SourceLocal    Source = "local"
	SourceHistory  Source = "history"
	SourceExternal Source = "external"
)

func sourceBonus(s Source) float64 {
	if s == SourceLocal {
		return 1.0
	}
	return 0.5
}

// CodeExample is one indexed few-shot example.
type CodeExample struct {
	ID             string
	Code           string
	Description    string
	Source         Source
	FilePath       string
	Language       string
	RelevanceScore float64
	QualityScore   float64
}

const collectionName = "code_examples"

// Index is the Code Retrieval Index: an embedding index of example
// functions with combined-score re-ranking.
type Index struct {
	provider  vector.Provider
	embedder  Embedder
	minQuality float64

	mu sync.Mutex // serializes writes; reads are lock-free per spec.md §4.7
}

// Config configures a new Index.
type Config struct {
	Provider   vector.Provider
	Embedder   Embedder
	MinQuality float64 // examples below this quality are not indexed
}

// New creates a Code Retrieval Index.
func New(cfg Config) (*Index, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("retrieval: a vector.Provider is required")
	}
	if cfg.Embedder == nil {
		cfg.Embedder = NewHashEmbedder(256)
	}
	idx := &Index{provider: cfg.Provider, embedder: cfg.Embedder, minQuality: cfg.MinQuality}
	if err := idx.provider.CreateCollection(context.Background(), collectionName, cfg.Embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("retrieval: create collection: %w", err)
	}
	return idx, nil
}

func canonicalHash(code string) string {
	canonical := strings.Join(strings.Fields(code), " ")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// IndexProject walks root, parses every Go source file's AST, and upserts
// each qualifying top-level function/method: one with a non-empty doc
// comment or a name longer than two characters. Returns the count indexed.
func (idx *Index) IndexProject(ctx context.Context, root string) (int, error) {
	analysis, err := astx.AnalyzeProject(root)
	if err != nil {
		return 0, fmt.Errorf("retrieval: analyze project: %w", err)
	}

	count := 0
	for _, fa := range analysis.Files {
		if fa.Error != "" {
			continue
		}
		src, err := os.ReadFile(fa.Path)
		if err != nil {
			continue
		}
		for _, fn := range fa.Functions {
			if fn.Docstring == "" && len(fn.Name) <= 2 {
				continue
			}
			snippet := extractSnippet(string(src), fn.StartLine, fn.EndLine)
			if snippet == "" {
				continue
			}
			desc := fn.Docstring
			if desc == "" {
				desc = fn.Signature
			}
			rel, _ := filepath.Rel(root, fa.Path)
			if err := idx.upsert(ctx, snippet, desc, SourceLocal, rel, "go"); err != nil {
				continue
			}
			count++
		}
	}
	return count, nil
}

func extractSnippet(src string, startLine, endLine int) string {
	lines := strings.Split(src, "\n")
	if startLine < 1 || endLine > len(lines) || startLine > endLine {
		return ""
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}

// AddFromHistory records a successful generation's (task_text, code) pair
// under source "history", as the Conversation & Memory component does when
// a task ends with all_passed=true.
func (idx *Index) AddFromHistory(ctx context.Context, taskText, code string) error {
	return idx.upsert(ctx, code, taskText, SourceHistory, "", "go")
}

func (idx *Index) upsert(ctx context.Context, code, description string, source Source, filePath, language string) error {
	quality := ScoreQuality(code)
	if quality < idx.minQuality {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := canonicalHash(code)
	embedding, err := idx.embedder.Embed(ctx, description+"\n"+code)
	if err != nil {
		return fmt.Errorf("retrieval: embed: %w", err)
	}
	metadata := map[string]any{
		vector.MetaContent:     code,
		vector.MetaDescription: description,
		vector.MetaSource:      string(source),
		vector.MetaFilePath:    filePath,
		vector.MetaLanguage:    language,
		vector.MetaQuality:     quality,
	}
	return idx.provider.Upsert(ctx, collectionName, id, embedding, metadata)
}

// FindSimilar queries the index for the top n examples matching query,
// filtered by language and sources, re-ranked by the combined score
// 0.6*relevance + 0.3*quality + 0.1*source_bonus.
func (idx *Index) FindSimilar(ctx context.Context, query string, n int, sources []Source, language string) ([]CodeExample, error) {
	if n <= 0 {
		n = 5
	}
	embedding, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	// Over-fetch so filtering by language/source still leaves n candidates.
	raw, err := idx.provider.Search(ctx, collectionName, embedding, n*4+10)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search: %w", err)
	}

	allowed := map[Source]bool{}
	for _, s := range sources {
		allowed[s] = true
	}

	candidates := make([]CodeExample, 0, len(raw))
	for _, r := range raw {
		lang, _ := r.Metadata[vector.MetaLanguage].(string)
		if language != "" && lang != language {
			continue
		}
		src := Source(fmt.Sprint(r.Metadata[vector.MetaSource]))
		if len(allowed) > 0 && !allowed[src] {
			continue
		}
		quality := 0.0
		switch v := r.Metadata[vector.MetaQuality].(type) {
		case float64:
			quality = v
		case string:
			fmt.Sscanf(v, "%f", &quality)
		}
		relevance := 1 - (1 - r.Score) // Score is already a similarity in [0,1]
		candidates = append(candidates, CodeExample{
			ID:             r.ID,
			Code:           r.Content,
			Description:    fmt.Sprint(r.Metadata[vector.MetaDescription]),
			Source:         src,
			FilePath:       fmt.Sprint(r.Metadata[vector.MetaFilePath]),
			Language:       lang,
			RelevanceScore: relevance,
			QualityScore:   quality,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return combinedScore(candidates[i]) > combinedScore(candidates[j])
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

func combinedScore(c CodeExample) float64 {
	return 0.6*c.RelevanceScore + 0.3*c.QualityScore + 0.1*sourceBonus(c.Source)
}
