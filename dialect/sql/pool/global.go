package pool

import (
	"context"
	"errors"
	"sync"
)

// ErrNotInitialized is returned by Default before Initialize was called.
var ErrNotInitialized = errors.New("pool: not initialized")

var (
	globalMu sync.Mutex
	global   *Pool
)

// Initialize creates the process-wide pool. A second call tears down the
// previous pool and replaces it. The returned handle should be passed to
// the components that need it; Default exists for entry points only.
func Initialize(ctx context.Context, cfg Config, open Opener, opts ...Option) (*Pool, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	var err error
	if global != nil {
		err = global.Close()
		global = nil
	}
	p, nerr := New(ctx, cfg, open, opts...)
	if nerr != nil {
		return nil, errors.Join(err, nerr)
	}
	if err != nil {
		p.log.Warn("pool: closing previous pool", "error", err)
	}
	global = p
	return p, nil
}

// Default returns the process-wide pool.
func Default() (*Pool, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil, ErrNotInitialized
	}
	return global, nil
}

// ShutdownPool closes p and clears it as the process-wide pool if it still
// is one. Pools replaced by a later Initialize are closed without touching
// their successor.
func ShutdownPool(p *Pool) error {
	globalMu.Lock()
	if global == p {
		global = nil
	}
	globalMu.Unlock()
	return p.Close()
}

// Shutdown closes the process-wide pool. It is a no-op when no pool exists.
func Shutdown() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		return nil
	}
	err := global.Close()
	global = nil
	return err
}
