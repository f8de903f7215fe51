// Package walker turns root directories into a lazy stream of file
// candidates, applying layered ignore rules, hidden/binary policies and the
// session's traversal bounds as it goes.
package walker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meysamhadeli/codegrep/models"
)

// sniffLen is how much of a file the binary heuristic samples.
const sniffLen = 8 * 1024

// binaryTolerance is the fraction of invalid UTF-8 bytes the sample may
// contain before the file is classified binary.
const binaryTolerance = 0.10

// errStopped aborts a traversal early on cancellation. It never escapes
// Walk: stopping is a normal outcome, not a failure.
var errStopped = errors.New("traversal stopped")

// Options wire the walker to its session: a cancellation probe and a
// recorder for non-fatal per-path errors.
type Options struct {
	Cancelled func() bool
	OnError   func(err error)
}

// Walker produces FileCandidates for the coordinator. A Walker is reusable;
// each Walk call is an independent traversal.
type Walker struct {
	filter models.TraversalFilter
	opts   Options
	cache  *ruleCache
	exts   map[string]bool // allowed extensions, nil = all
}

// New builds a walker for the request's traversal filter.
func New(filter models.TraversalFilter, opts Options) *Walker {
	if opts.Cancelled == nil {
		opts.Cancelled = func() bool { return false }
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}

	var exts map[string]bool
	if len(filter.Extensions) > 0 || len(filter.Types) > 0 {
		exts = make(map[string]bool)
		for _, e := range filter.Extensions {
			exts[strings.ToLower(strings.TrimPrefix(e, "."))] = true
		}
		for _, t := range filter.Types {
			for _, e := range typeExtensions[strings.ToLower(t)] {
				exts[e] = true
			}
		}
	}

	return &Walker{filter: filter, opts: opts, cache: newRuleCache(), exts: exts}
}

// Walk traverses every root in order and sends candidates into out. The
// send blocks when out is full, which is the backpressure that throttles
// traversal to match consumption. Walk returns once all roots finish, the
// context is done, or the session is cancelled.
func (w *Walker) Walk(ctx context.Context, out chan<- models.FileCandidate) error {
	for _, root := range w.filter.Roots {
		if w.stopped(ctx) {
			return nil
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			w.opts.OnError(&models.IoError{Path: root, Cause: err})
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			w.opts.OnError(&models.IoError{Path: abs, Cause: err})
			continue
		}

		if !info.IsDir() {
			// Explicit file roots bypass ignore rules and hidden policy;
			// naming a file is opting in.
			if cand, ok := w.classify(abs, info); ok {
				if !w.send(ctx, out, cand) {
					return nil
				}
			}
			continue
		}

		visited := make(map[inodeKey]bool)
		markVisited(visited, abs, info)
		rules := NewRuleSet(abs, w.filter.IgnorePatterns)
		if err := w.walkDir(ctx, out, abs, rules, visited, 0); err != nil {
			if errors.Is(err, errStopped) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (w *Walker) walkDir(ctx context.Context, out chan<- models.FileCandidate, dir string, rules *RuleSet, visited map[inodeKey]bool, depth int) error {
	if w.filter.RespectIgnores {
		rules = rules.Push(dir, w.cache.load(dir))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Permission denied and friends: record, skip the subtree.
		w.opts.OnError(&models.IoError{Path: dir, Cause: err})
		return nil
	}

	for _, entry := range entries {
		if w.stopped(ctx) {
			return errStopped
		}

		name := entry.Name()
		full := filepath.Join(dir, name)

		if !w.filter.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		isDir := entry.IsDir()
		target := full
		var info fs.FileInfo

		if entry.Type()&fs.ModeSymlink != 0 {
			// Follow the link but guard against cycles below.
			info, err = os.Stat(full)
			if err != nil {
				w.opts.OnError(&models.IoError{Path: full, Cause: err})
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			if defaultSkipDirs[name] {
				continue
			}
			if w.filter.RespectIgnores && rules.Ignored(full, true) {
				continue
			}
			if w.filter.MaxDepth > 0 && depth+1 >= w.filter.MaxDepth {
				continue
			}
			if info == nil {
				info, err = entry.Info()
				if err != nil {
					w.opts.OnError(&models.IoError{Path: full, Cause: err})
					continue
				}
			}
			if wasVisited(visited, target, info) {
				// Symlink cycle (or a hard-linked repeat): skip silently.
				continue
			}
			markVisited(visited, target, info)
			if err := w.walkDir(ctx, out, full, rules, visited, depth+1); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() && info == nil {
			continue
		}
		if w.filter.RespectIgnores && rules.Ignored(full, false) {
			continue
		}
		if info == nil {
			info, err = entry.Info()
			if err != nil {
				w.opts.OnError(&models.IoError{Path: full, Cause: err})
				continue
			}
		}
		if !w.keepByStat(full, info) {
			continue
		}

		cand, ok := w.classify(full, info)
		if !ok {
			continue
		}
		if !w.send(ctx, out, cand) {
			return errStopped
		}
	}
	return nil
}

// keepByStat applies the extension/type, size and mtime bounds.
func (w *Walker) keepByStat(path string, info fs.FileInfo) bool {
	if w.exts != nil {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if !w.exts[ext] {
			return false
		}
	}
	if w.filter.MaxFileSize > 0 && info.Size() > w.filter.MaxFileSize {
		return false
	}
	if w.filter.ModifiedWithin > 0 && time.Since(info.ModTime()) > w.filter.ModifiedWithin {
		return false
	}
	return true
}

// classify samples the file's head to decide text vs binary and detects the
// language family. Binary files are dropped unless binary search is on.
func (w *Walker) classify(path string, info fs.FileInfo) (models.FileCandidate, bool) {
	kind := w.sniff(path)
	if kind == models.KindBinary && !w.filter.IncludeBinary {
		return models.FileCandidate{}, false
	}
	return models.FileCandidate{
		Path:     path,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Kind:     kind,
		Language: DetectLanguage(path),
	}, true
}

// sniff reads the first sniffLen bytes and classifies them: a NUL byte or
// too many invalid UTF-8 bytes means binary.
func (w *Walker) sniff(path string) models.ContentKind {
	f, err := os.Open(path)
	if err != nil {
		w.opts.OnError(&models.IoError{Path: path, Cause: err})
		return models.KindUnknown
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		w.opts.OnError(&models.IoError{Path: path, Cause: err})
		return models.KindUnknown
	}
	buf = buf[:n]
	if n == 0 {
		return models.KindText
	}

	if bytes.IndexByte(buf, 0) >= 0 {
		return models.KindBinary
	}

	// Ignore a rune truncated by the sample boundary.
	end := len(buf)
	if end == sniffLen {
		for end > 0 && end > len(buf)-utf8.UTFMax && !utf8.RuneStart(buf[end-1]) {
			end--
		}
	}
	invalid := 0
	for i := 0; i < end; {
		r, size := utf8.DecodeRune(buf[i:end])
		if r == utf8.RuneError && size == 1 {
			invalid++
		}
		i += size
	}
	if float64(invalid) > float64(end)*binaryTolerance {
		return models.KindBinary
	}
	return models.KindText
}

func (w *Walker) send(ctx context.Context, out chan<- models.FileCandidate, cand models.FileCandidate) bool {
	select {
	case out <- cand:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Walker) stopped(ctx context.Context) bool {
	if w.opts.Cancelled() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
