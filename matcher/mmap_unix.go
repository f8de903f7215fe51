//go:build unix

package matcher

import (
	"os"
	"syscall"
)

// mmapThreshold is the file size at which matching switches from a full
// read to a memory map.
const mmapThreshold = 4 << 20

// readContent loads a file for matching. Files at or above the threshold
// are mapped read-only; the returned closer must be called once all data
// derived from the content has been copied out.
func readContent(path string, size int64) ([]byte, func(), error) {
	if size < mmapThreshold || size == 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		return data, func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	// Re-stat through the open handle: the walk-time size may be stale, and
	// mapping past a shrunken file's EOF faults on access.
	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	size = info.Size()
	if size < mmapThreshold || size == 0 {
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, nil, rerr
		}
		return data, func() {}, nil
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_PRIVATE)
	if err != nil {
		// Mapping can fail on filesystems without mmap support.
		fallback, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, nil, rerr
		}
		return fallback, func() {}, nil
	}
	return data, func() { _ = syscall.Munmap(data) }, nil
}
