package walker

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ignoreFileNames are the per-directory rule files the walker layers, in
// load order. Later files override earlier ones at the same level.
var ignoreFileNames = []string{".gitignore", ".codegrepignore"}

// defaultSkipDirs are never descended into, independent of ignore rules.
var defaultSkipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
}

// Rule is a single ignore pattern with gitignore-flavored semantics.
type Rule struct {
	Pattern  string
	Negate   bool // "!pattern" re-includes a previously excluded path
	DirOnly  bool // "pattern/" applies to directories only
	Anchored bool // pattern with an inner slash matches from the layer root
}

// ParseRule parses one ignore-file line, returning ok=false for blanks and
// comments.
func ParseRule(line string) (Rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false
	}

	var r Rule
	if strings.HasPrefix(line, "!") {
		r.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.DirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.Anchored = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") {
		r.Anchored = true
	}
	r.Pattern = line
	return r, r.Pattern != ""
}

// Matches reports whether the rule applies to rel, a slash-separated path
// relative to the rule's layer directory.
func (r Rule) Matches(rel string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}
	if r.Anchored {
		if ok, _ := path.Match(r.Pattern, rel); ok {
			return true
		}
		// An anchored directory pattern covers everything under it.
		return strings.HasPrefix(rel, r.Pattern+"/")
	}
	// Unanchored patterns match the base name or any path segment.
	if ok, _ := path.Match(r.Pattern, path.Base(rel)); ok {
		return true
	}
	for _, seg := range strings.Split(rel, "/") {
		if ok, _ := path.Match(r.Pattern, seg); ok {
			return true
		}
	}
	return false
}

// ruleLayer is the parsed rule set of one directory level.
type ruleLayer struct {
	dir   string // absolute directory the rules are relative to
	rules []Rule
}

// RuleSet is the layered view a traversal position sees: extra session-wide
// patterns at the bottom, then one layer per ancestor directory, closest
// last.
type RuleSet struct {
	layers []ruleLayer
}

// NewRuleSet seeds a set with session-wide patterns anchored at root.
func NewRuleSet(root string, patterns []string) *RuleSet {
	rs := &RuleSet{}
	if len(patterns) > 0 {
		layer := ruleLayer{dir: root}
		for _, p := range patterns {
			if r, ok := ParseRule(p); ok {
				layer.rules = append(layer.rules, r)
			}
		}
		rs.layers = append(rs.layers, layer)
	}
	return rs
}

// Push returns a new set with dir's rules stacked on top. The receiver is
// left untouched so sibling subtrees never see each other's layers.
func (rs *RuleSet) Push(dir string, rules []Rule) *RuleSet {
	if len(rules) == 0 {
		return rs
	}
	next := &RuleSet{layers: make([]ruleLayer, len(rs.layers), len(rs.layers)+1)}
	copy(next.layers, rs.layers)
	next.layers = append(next.layers, ruleLayer{dir: dir, rules: rules})
	return next
}

// Ignored resolves absPath against the layered rules. The closest layer
// wins, and within a layer the last matching rule wins, so a deeper or
// later negation re-includes a previously excluded path.
func (rs *RuleSet) Ignored(absPath string, isDir bool) bool {
	for i := len(rs.layers) - 1; i >= 0; i-- {
		layer := rs.layers[i]
		rel, err := filepath.Rel(layer.dir, absPath)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		for j := len(layer.rules) - 1; j >= 0; j-- {
			if layer.rules[j].Matches(rel, isDir) {
				return !layer.rules[j].Negate
			}
		}
	}
	return false
}

// ruleCacheEntry caches one parsed ignore file keyed by its mod time, so
// repeated traversals do not reparse unchanged files.
type ruleCacheEntry struct {
	rules   []Rule
	modTime time.Time
}

type ruleCache struct {
	mu      sync.RWMutex
	entries map[string]*ruleCacheEntry
}

func newRuleCache() *ruleCache {
	return &ruleCache{entries: make(map[string]*ruleCacheEntry)}
}

// load reads and parses the ignore files present in dir, consulting the
// cache first. Missing files are simply absent layers.
func (c *ruleCache) load(dir string) []Rule {
	var rules []Rule
	for _, name := range ignoreFileNames {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}

		c.mu.RLock()
		cached, ok := c.entries[p]
		c.mu.RUnlock()
		if ok && cached.modTime.Equal(info.ModTime()) {
			rules = append(rules, cached.rules...)
			continue
		}

		parsed := parseRuleFile(p)
		c.mu.Lock()
		c.entries[p] = &ruleCacheEntry{rules: parsed, modTime: info.ModTime()}
		c.mu.Unlock()
		rules = append(rules, parsed...)
	}
	return rules
}

func parseRuleFile(path string) []Rule {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var rules []Rule
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if r, ok := ParseRule(sc.Text()); ok {
			rules = append(rules, r)
		}
	}
	return rules
}
