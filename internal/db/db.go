package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiForms/internal/oxidb"
)

// KeepaliveInterval is how often idle connections are pinged.
const KeepaliveInterval = 10 * time.Second

// Pool is a round-robin connection pool for OxiDB with auto-reconnect.
// Every caller leases a connection exclusively through With, since an open
// transaction belongs to the connection it was started on.
type Pool struct {
	host        string
	port        int
	dialTimeout time.Duration
	log         *zap.SugaredLogger

	clients []*oxidb.Client
	mu      []sync.Mutex
	idx     uint64
	stop    chan struct{}
	once    sync.Once
}

// NewPool creates a pool of size OxiDB connections.
func NewPool(ctx context.Context, host string, port, size int, dialTimeout time.Duration, log *zap.SugaredLogger) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool: size must be positive, got %d", size)
	}
	p := &Pool{
		host:        host,
		port:        port,
		dialTimeout: dialTimeout,
		log:         log,
		clients:     make([]*oxidb.Client, size),
		mu:          make([]sync.Mutex, size),
		stop:        make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		c, err := oxidb.Connect(ctx, host, port, dialTimeout)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("pool: connect client %d: %w", i, err)
		}
		p.clients[i] = c
	}
	go p.keepalive()
	return p, nil
}

// Size is the number of connections.
func (p *Pool) Size() int { return len(p.clients) }

// With leases the next connection in round-robin order for the duration of
// fn, reconnecting first if the previous user left it broken.
func (p *Pool) With(ctx context.Context, fn func(c *oxidb.Client) error) error {
	n := atomic.AddUint64(&p.idx, 1)
	i := int(n % uint64(len(p.clients)))

	p.mu[i].Lock()
	defer p.mu[i].Unlock()

	if p.clients[i] == nil || p.clients[i].Broken() {
		if err := p.reconnect(ctx, i); err != nil {
			return err
		}
	}
	return fn(p.clients[i])
}

// reconnect replaces the client at index i. Callers hold p.mu[i].
func (p *Pool) reconnect(ctx context.Context, i int) error {
	if p.clients[i] != nil {
		p.clients[i].Close()
		p.clients[i] = nil
	}
	c, err := oxidb.Connect(ctx, p.host, p.port, p.dialTimeout)
	if err != nil {
		p.log.Warnw("pool: reconnect failed", "client", i, "error", err)
		return fmt.Errorf("pool: reconnect client %d: %w", i, err)
	}
	p.clients[i] = c
	p.log.Infow("pool: reconnected", "client", i)
	return nil
}

func (p *Pool) keepalive() {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			for i := range p.clients {
				// Busy connections are alive by definition.
				if !p.mu[i].TryLock() {
					continue
				}
				p.ping(i)
				p.mu[i].Unlock()
			}
		}
	}
}

// ping must be called with p.mu[i] held.
func (p *Pool) ping(i int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.dialTimeout)
	defer cancel()
	if p.clients[i] != nil {
		_, err := p.clients[i].Ping(ctx)
		if err == nil {
			return
		}
		p.log.Warnw("pool: ping failed, reconnecting", "client", i, "error", err)
	}
	_ = p.reconnect(ctx, i)
}

// Close closes all connections.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.stop) })
	for i := range p.clients {
		p.mu[i].Lock()
		if p.clients[i] != nil {
			p.clients[i].Close()
			p.clients[i] = nil
		}
		p.mu[i].Unlock()
	}
}
