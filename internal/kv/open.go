package kv

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendBolt   = "bolt"
)

// Backends lists every supported backend name.
var Backends = []string{BackendMemory, BackendFile, BackendSQLite, BackendBadger, BackendBolt}

// Options selects and locates a backend. Dir is the data directory; each
// backend derives its own file or sub-directory below it.
type Options struct {
	Backend string
	Dir     string
}

// Open returns the Storage for opts.
func Open(ctx context.Context, opts Options) (Storage, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendFile
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" && backend != BackendMemory {
		return nil, fmt.Errorf("storage dir required for backend %s", backend)
	}

	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFileStore(filepath.Join(dir, "state"))
	case BackendSQLite:
		return NewSQLiteStore(ctx, filepath.Join(dir, "tribe.db"))
	case BackendBadger:
		return NewBadgerStore(filepath.Join(dir, "badger"))
	case BackendBolt:
		return NewBoltStore(filepath.Join(dir, "tribe.bolt"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want one of %s)", opts.Backend, strings.Join(Backends, ", "))
	}
}
