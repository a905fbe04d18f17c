package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// AcquireTimeout bounds how long a request waits for a free model instance.
	AcquireTimeout = 30 * time.Second
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available model instance")
)

// Pool hands out a fixed number of backend instances.
type Pool struct {
	backends chan Backend
	size     int
	mu       sync.Mutex
	closed   bool
	metrics  *poolMetrics
}

type poolMetrics struct {
	mu sync.RWMutex
	PoolStats
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	InUse           int
	TotalAcquired   int64
	TotalReleased   int64
	AcquireFailures int64
	WaitTime        time.Duration
}

// NewPool builds size instances with factory. Any failure destroys what was built.
func NewPool(factory Factory, size int) (*Pool, error) {
	if size <= 0 {
		size = 1
	}

	pool := &Pool{
		backends: make(chan Backend, size),
		size:     size,
		metrics:  &poolMetrics{},
	}

	for i := 0; i < size; i++ {
		backend, err := factory()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to initialize model instance %d: %w", i, err)
		}
		pool.backends <- backend
	}

	return pool, nil
}

// Acquire waits for a free instance, the context, or AcquireTimeout.
func (p *Pool) Acquire(ctx context.Context) (Backend, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.WaitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()

	select {
	case backend, ok := <-p.backends:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.InUse++
		p.metrics.TotalAcquired++
		p.metrics.mu.Unlock()
		return backend, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.AcquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns an instance. After Close the instance is destroyed instead.
func (p *Pool) Release(backend Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.InUse--
	p.metrics.TotalReleased++
	p.metrics.mu.Unlock()

	if p.closed {
		backend.Close()
		return
	}
	p.backends <- backend
}

// Close destroys idle instances; busy ones are destroyed on Release.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.backends)

	for backend := range p.backends {
		backend.Close()
	}
}

func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) GetMetrics() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return p.metrics.PoolStats
}
