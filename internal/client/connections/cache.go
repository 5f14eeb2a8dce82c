// Package connections keeps at most one open TCP connection per server role
// for the client, closing it after a period without use. A connection
// handed out by Get is never closed by the idle timer before Release.
package connections

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultDialTimeout = 5 * time.Second
)

// Role names the server a connection belongs to.
type Role int

const (
	RoleAuth Role = iota
	RoleMessage
)

func (r Role) String() string {
	switch r {
	case RoleAuth:
		return "auth"
	case RoleMessage:
		return "message"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

type entry struct {
	addr  string
	conn  net.Conn
	busy  bool
	gen   uint64
	timer *time.Timer
}

// Cache hands out connections keyed by role. A connection is busy from Get
// until Release; the idle timer only runs while it is not busy.
type Cache struct {
	mu      sync.Mutex
	entries map[Role]*entry
	idle    time.Duration
	dialer  func(ctx context.Context, network, addr string) (net.Conn, error)
}

// New builds a cache. Zero durations select the defaults.
func New(idle, dialTimeout time.Duration) *Cache {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	d := &net.Dialer{Timeout: dialTimeout}
	return &Cache{
		entries: make(map[Role]*entry),
		idle:    idle,
		dialer:  d.DialContext,
	}
}

// Get returns the open connection for role when it points at addr, or
// dials a new one. A connection to a different address is closed first.
// The connection is busy until the caller hands it back with Release or
// drops it with Evict.
func (c *Cache) Get(ctx context.Context, role Role, addr string) (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[role]; ok {
		if e.addr == addr {
			e.acquire()
			return e.conn, nil
		}
		c.dropLocked(role, e)
	}

	conn, err := c.dialer(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s server at %s: %w", role, addr, err)
	}
	e := &entry{addr: addr, conn: conn}
	e.acquire()
	c.entries[role] = e
	return conn, nil
}

// Release marks conn idle again and starts its idle timer. A conn that is
// no longer cached for role is ignored.
func (c *Cache) Release(role Role, conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[role]
	if !ok || e.conn != conn {
		return
	}
	e.busy = false
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(c.idle, func() { c.expire(role, e, gen) })
}

// Evict closes the connection for role, for example after an I/O error.
func (c *Cache) Evict(role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[role]; ok {
		c.dropLocked(role, e)
	}
}

// acquire stops the idle timer. A timer that already fired sees the new
// generation in expire and leaves the entry alone.
func (e *entry) acquire() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.busy = true
	e.gen++
}

func (c *Cache) expire(role Role, e *entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[role]; ok && cur == e && !e.busy && e.gen == gen {
		c.dropLocked(role, e)
	}
}

func (c *Cache) dropLocked(role Role, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	_ = e.conn.Close()
	delete(c.entries, role)
}

// Len is the number of open connections.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes every connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for role, e := range c.entries {
		c.dropLocked(role, e)
	}
	return nil
}
