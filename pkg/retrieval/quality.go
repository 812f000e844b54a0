package retrieval

import "strings"

// ScoreQuality implements the §4.7 quality heuristic over Go source.
// Starts at 0.5; +0.1 if func/type present, +0.1 if a doc comment is
// present, +0.1 if a return type is present, +0.05 if a return statement
// is present, -0.1 for each of {TODO/FIXME marker, excessive blank
// `return`s, length < 50 chars}. Clamped to [0,1].
func ScoreQuality(code string) float64 {
	score := 0.5
	trimmed := strings.TrimSpace(code)

	if strings.Contains(trimmed, "func ") || strings.Contains(trimmed, "type ") {
		score += 0.1
	}
	if hasDocComment(trimmed) {
		score += 0.1
	}
	if hasReturnType(trimmed) {
		score += 0.1
	}
	if strings.Contains(trimmed, "return") {
		score += 0.05
	}
	if strings.Contains(trimmed, "TODO") || strings.Contains(trimmed, "FIXME") {
		score -= 0.1
	}
	if excessiveBareReturns(trimmed) {
		score -= 0.1
	}
	if len(trimmed) < 50 {
		score -= 0.1
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func hasDocComment(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "//") || strings.HasPrefix(t, "/*") {
			return true
		}
	}
	return false
}

func hasReturnType(code string) bool {
	idx := strings.Index(code, "func ")
	if idx < 0 {
		return false
	}
	closeParen := strings.Index(code[idx:], ")")
	if closeParen < 0 {
		return false
	}
	rest := code[idx+closeParen+1:]
	brace := strings.Index(rest, "{")
	if brace < 0 {
		brace = len(rest)
	}
	signatureTail := strings.TrimSpace(rest[:brace])
	return signatureTail != ""
}

func excessiveBareReturns(code string) bool {
	count := strings.Count(code, "\n\treturn\n") + strings.Count(code, "\n    return\n")
	return count >= 3
}
