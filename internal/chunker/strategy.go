package chunker

import (
	"path/filepath"
	"strings"
)

// Strategy is the language-aware splitting policy used by the Extractor.
// A strategy only customizes how doc comments are recognized; the level
// policy itself (SIG/SECTION/FILE) is shared.
type Strategy interface {
	// Name returns the strategy's language tag.
	Name() string

	// IsDocLine reports whether a line continues a doc-comment block that
	// immediately follows a definition head.
	IsDocLine(line string) bool
}

// commentStrategy recognizes doc comments by line prefix.
type commentStrategy struct {
	name     string
	prefixes []string
}

func (s *commentStrategy) Name() string { return s.name }

func (s *commentStrategy) IsDocLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

// strategies maps language tags to their splitting strategy. Languages
// not present here fall back to plain-text handling (FILE level only).
var strategies = map[string]Strategy{
	"go":         &commentStrategy{name: "go", prefixes: []string{"//", "/*", "*"}},
	"python":     &commentStrategy{name: "python", prefixes: []string{"#", `"""`, "'''"}},
	"javascript": &commentStrategy{name: "javascript", prefixes: []string{"//", "/*", "*"}},
	"typescript": &commentStrategy{name: "typescript", prefixes: []string{"//", "/*", "*"}},
	"rust":       &commentStrategy{name: "rust", prefixes: []string{"//", "///", "/*", "*"}},
	"java":       &commentStrategy{name: "java", prefixes: []string{"//", "/*", "*"}},
	"c":          &commentStrategy{name: "c", prefixes: []string{"//", "/*", "*"}},
	"cpp":        &commentStrategy{name: "cpp", prefixes: []string{"//", "/*", "*"}},
	"ruby":       &commentStrategy{name: "ruby", prefixes: []string{"#", "=begin"}},
	"shell":      &commentStrategy{name: "shell", prefixes: []string{"#"}},
}

// StrategyFor returns the strategy for a language tag, or nil when the
// language is unrecognized and the plain-text fallback applies.
func StrategyFor(language string) Strategy {
	return strategies[strings.ToLower(strings.TrimSpace(language))]
}

// extensions maps file extensions to language tags.
var extensions = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".rs":   "rust",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".rb":   "ruby",
	".sh":   "shell",
	".bash": "shell",
}

// LanguageFor infers the language tag from a file path. Unknown
// extensions return "" and get the plain-text fallback.
func LanguageFor(repoPath string) string {
	return extensions[strings.ToLower(filepath.Ext(repoPath))]
}
