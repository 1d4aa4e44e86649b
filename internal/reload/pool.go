package reload

import (
	"io"
	"sync"
)

// Pool holds the open live-reload connections
type Pool struct {
	mu    sync.Mutex
	conns []io.Closer
}

// Add a connection to the pool
func (p *Pool) Add(conn io.Closer) {
	p.mu.Lock()
	p.conns = append(p.conns, conn)
	p.mu.Unlock()
}

// Len returns the number of pooled connections
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Invalidate empties the pool and then closes every connection that was in
// it. Returns the number of connections closed.
func (p *Pool) Invalidate() int {
	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.mu.Unlock()
	for _, conn := range conns {
		// The browser may already be gone
		conn.Close()
	}
	return len(conns)
}
