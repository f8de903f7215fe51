//go:build !unix

package walker

import (
	"io/fs"
	"path/filepath"
)

// inodeKey degrades to the symlink-resolved path on platforms without a
// usable stat structure.
type inodeKey struct {
	path string
}

func keyFor(path string, _ fs.FileInfo) inodeKey {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return inodeKey{path: resolved}
	}
	return inodeKey{path: path}
}

func markVisited(visited map[inodeKey]bool, path string, info fs.FileInfo) {
	visited[keyFor(path, info)] = true
}

func wasVisited(visited map[inodeKey]bool, path string, info fs.FileInfo) bool {
	return visited[keyFor(path, info)]
}
