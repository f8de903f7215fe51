package walker

import (
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// typeExtensions maps the user-facing --type names to file extensions, the
// same surface grep users expect.
var typeExtensions = map[string][]string{
	"rust": {"rs"}, "rs": {"rs"},
	"go": {"go"},
	"js": {"js"}, "javascript": {"js"},
	"ts": {"ts"}, "typescript": {"ts"},
	"jsx": {"jsx"}, "tsx": {"tsx"},
	"py": {"py"}, "python": {"py"},
	"java":   {"java"},
	"c":      {"c"},
	"cpp":    {"cpp", "cxx", "cc", "hpp"},
	"cxx":    {"cpp", "cxx", "cc", "hpp"},
	"cc":     {"cpp", "cxx", "cc", "hpp"},
	"h":      {"h"},
	"csharp": {"cs"}, "cs": {"cs"},
	"ruby": {"rb"}, "rb": {"rb"},
	"sh": {"sh"}, "shell": {"sh", "bash"},
	"json": {"json"},
	"yaml": {"yaml", "yml"}, "yml": {"yaml", "yml"},
	"toml": {"toml"},
	"md":   {"md", "markdown"}, "markdown": {"md", "markdown"},
	"txt": {"txt"}, "text": {"txt"},
}

// extLanguage maps common extensions straight to a scope language family.
var extLanguage = map[string]string{
	"go":   "go",
	"rs":   "rust",
	"py":   "python",
	"js":   "javascript",
	"jsx":  "javascript",
	"mjs":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"java": "java",
	"c":    "c",
	"h":    "c",
	"cpp":  "cpp",
	"cxx":  "cpp",
	"cc":   "cpp",
	"hpp":  "cpp",
	"cs":   "csharp",
	"rb":   "ruby",
	"sh":   "shell",
	"bash": "shell",
}

// chromaFamily folds chroma lexer names onto our family keys for the
// extensions the table above misses.
var chromaFamily = map[string]string{
	"Go":         "go",
	"Rust":       "rust",
	"Python":     "python",
	"JavaScript": "javascript",
	"TypeScript": "typescript",
	"Java":       "java",
	"C":          "c",
	"C++":        "cpp",
	"C#":         "csharp",
	"Ruby":       "ruby",
	"Bash":       "shell",
}

// DetectLanguage resolves a file path to a language family key, empty when
// nothing recognizes it. The extension table answers the common cases; the
// chroma lexer registry covers the long tail of filenames (Makefile,
// Rakefile, odd extensions).
func DetectLanguage(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if lang, ok := extLanguage[ext]; ok {
		return lang
	}
	lexer := lexers.Match(filepath.Base(path))
	if lexer == nil {
		return ""
	}
	return chromaFamily[lexer.Config().Name]
}
