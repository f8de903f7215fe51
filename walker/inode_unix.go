//go:build unix

package walker

import (
	"io/fs"
	"syscall"
)

// inodeKey identifies a directory across symlinks: device plus inode on
// unix, falling back to the path when the stat shape is unavailable.
type inodeKey struct {
	dev  uint64
	ino  uint64
	path string
}

func keyFor(path string, info fs.FileInfo) inodeKey {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return inodeKey{dev: uint64(st.Dev), ino: uint64(st.Ino)}
	}
	return inodeKey{path: path}
}

func markVisited(visited map[inodeKey]bool, path string, info fs.FileInfo) {
	visited[keyFor(path, info)] = true
}

func wasVisited(visited map[inodeKey]bool, path string, info fs.FileInfo) bool {
	return visited[keyFor(path, info)]
}
