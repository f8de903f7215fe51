package scope

// stringDelim describes one string-literal syntax of a language family.
type stringDelim struct {
	open      string
	close     string
	escape    bool // backslash escapes the closer
	multiline bool // the literal may span lines
}

// importPrefix marks the leading token of an import-statement line. When
// requires is set the line must also contain it, so a javascript
// "const total = price" is not an import while "const fs = require(..)" is.
type importPrefix struct {
	prefix   string
	requires string
}

// imports builds unconditional import prefixes.
func imports(prefixes ...string) []importPrefix {
	out := make([]importPrefix, len(prefixes))
	for i, p := range prefixes {
		out[i] = importPrefix{prefix: p}
	}
	return out
}

// family is the per-language syntax table the resolver scans with. It is a
// heuristic delimiter table, not a grammar: just enough to keep braces and
// keywords inside strings and comments from opening scopes.
type family struct {
	indentBased    bool
	lineComments   []string
	blockComments  [][2]string
	strings        []stringDelim
	funcKeywords   []string
	classKeywords  []string
	importPrefixes []importPrefix
}

// modifiers are visibility/async qualifiers stripped before keyword
// detection, so "pub async fn run" and "export default class App" resolve
// to their fn/class keywords.
var modifiers = []string{
	"pub(crate)", "pub", "public", "private", "protected", "internal",
	"export", "default", "static", "abstract", "final", "async", "unsafe",
}

var cLikeStrings = []stringDelim{
	{open: `"`, close: `"`, escape: true},
	{open: `'`, close: `'`, escape: true},
}

var jsStrings = []stringDelim{
	{open: "`", close: "`", escape: true, multiline: true},
	{open: `"`, close: `"`, escape: true},
	{open: `'`, close: `'`, escape: true},
}

var families = map[string]family{
	"go": {
		lineComments:  []string{"//"},
		blockComments: [][2]string{{"/*", "*/"}},
		strings: []stringDelim{
			{open: "`", close: "`", multiline: true},
			{open: `"`, close: `"`, escape: true},
			{open: `'`, close: `'`, escape: true},
		},
		funcKeywords:   []string{"func"},
		classKeywords:  []string{"type"},
		importPrefixes: imports("import "),
	},
	"rust": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        cLikeStrings,
		funcKeywords:   []string{"fn"},
		classKeywords:  []string{"struct", "enum", "trait", "impl"},
		importPrefixes: imports("use ", "extern crate ", "mod "),
	},
	"c": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        cLikeStrings,
		classKeywords:  []string{"struct", "enum", "union"},
		importPrefixes: imports("#include "),
	},
	"cpp": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        cLikeStrings,
		classKeywords:  []string{"class", "struct", "enum", "namespace"},
		importPrefixes: imports("#include ", "using namespace "),
	},
	"java": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        cLikeStrings,
		classKeywords:  []string{"class", "interface", "enum", "record"},
		importPrefixes: imports("import "),
	},
	"csharp": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        cLikeStrings,
		classKeywords:  []string{"class", "interface", "struct", "enum", "namespace"},
		importPrefixes: imports("using "),
	},
	"javascript": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        jsStrings,
		funcKeywords:   []string{"function"},
		classKeywords:  []string{"class"},
		importPrefixes: append(imports("import ", "require("), importPrefix{prefix: "const ", requires: "require("}),
	},
	"typescript": {
		lineComments:   []string{"//"},
		blockComments:  [][2]string{{"/*", "*/"}},
		strings:        jsStrings,
		funcKeywords:   []string{"function"},
		classKeywords:  []string{"class", "interface", "enum"},
		importPrefixes: append(imports("import ", "require("), importPrefix{prefix: "const ", requires: "require("}),
	},
	"python": {
		indentBased:  true,
		lineComments: []string{"#"},
		strings: []stringDelim{
			{open: `"""`, close: `"""`, multiline: true},
			{open: `'''`, close: `'''`, multiline: true},
			{open: `"`, close: `"`, escape: true},
			{open: `'`, close: `'`, escape: true},
		},
		funcKeywords:   []string{"def"},
		classKeywords:  []string{"class"},
		importPrefixes: imports("import ", "from "),
	},
	"ruby": {
		lineComments: []string{"#"},
		strings: []stringDelim{
			{open: `"`, close: `"`, escape: true},
			{open: `'`, close: `'`},
		},
		importPrefixes: imports("require ", "require_relative ", "load "),
	},
	"shell": {
		lineComments: []string{"#"},
		strings: []stringDelim{
			{open: `"`, close: `"`, escape: true},
			{open: `'`, close: `'`},
		},
		importPrefixes: imports("source "),
	},
}

// genericFamily covers files with no recognized language. It still knows
// the common function keywords so plain-text fixtures and exotic sources
// get usable scopes, matching what a reader of mixed trees expects.
var genericFamily = family{
	lineComments:  []string{"//", "#"},
	strings:       cLikeStrings,
	funcKeywords:  []string{"fn", "func", "def", "function"},
	classKeywords: []string{"class"},
}

// familyFor returns the syntax table for a language key, falling back to a
// comments-only generic table for unknown languages.
func familyFor(language string) family {
	if f, ok := families[language]; ok {
		return f
	}
	return genericFamily
}
