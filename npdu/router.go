package npdu

import (
	"sync"
	"time"
)

// Route is a learned path to a remote network: the port it was heard on
// and the MAC address of the router that announced it.
type Route struct {
	PortID    uint8
	RouterMAC []byte
	LearnedAt time.Time
}

// pendingEntry holds an APDU waiting on route resolution for a network
// number, capped per network to bound memory under route-discovery storms.
type pendingEntry struct {
	payload []byte
	dest    Address
}

const maxPendingPerNetwork = 64

// RouteCache tracks learned routes to remote networks and queues traffic
// awaiting Who-Is-Router-To-Network resolution, mirroring the router-mode
// behavior a BACnet router or a routing-capable BACnet device performs
// against its directly connected ports (Clause 6.5).
type RouteCache struct {
	mu      sync.RWMutex
	routes  map[uint16]Route
	pending map[uint16][]pendingEntry
}

// NewRouteCache creates an empty route cache.
func NewRouteCache() *RouteCache {
	return &RouteCache{
		routes:  make(map[uint16]Route),
		pending: make(map[uint16][]pendingEntry),
	}
}

// Learn records or refreshes a route to network via portID/routerMAC.
func (c *RouteCache) Learn(network uint16, portID uint8, routerMAC []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mac := make([]byte, len(routerMAC))
	copy(mac, routerMAC)
	c.routes[network] = Route{PortID: portID, RouterMAC: mac, LearnedAt: time.Now()}
}

// Lookup returns the learned route to network, if any.
func (c *RouteCache) Lookup(network uint16) (Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routes[network]
	return r, ok
}

// Forget removes a learned route, e.g. after Router-Busy or a Reject.
func (c *RouteCache) Forget(network uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.routes, network)
}

// Enqueue buffers an outbound payload awaiting route resolution for
// network, dropping the oldest entry if the per-network queue is full.
func (c *RouteCache) Enqueue(network uint16, dest Address, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.pending[network]
	if len(q) >= maxPendingPerNetwork {
		q = q[1:]
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	c.pending[network] = append(q, pendingEntry{payload: buf, dest: dest})
}

// Drain removes and returns all payloads queued for network, typically
// called once a route is learned so they can be sent.
func (c *RouteCache) Drain(network uint16) []pendingEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.pending[network]
	delete(c.pending, network)
	return q
}

// Payload returns the queued bytes of a drained pending entry.
func (p pendingEntry) Payload() []byte { return p.payload }

// Dest returns the destination address of a drained pending entry.
func (p pendingEntry) Dest() Address { return p.dest }

// Networks lists every network number currently reachable via a learned
// route, used to answer Who-Is-Router-To-Network with no network number
// (meaning "list every network this router knows").
func (c *RouteCache) Networks() []uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]uint16, 0, len(c.routes))
	for n := range c.routes {
		out = append(out, n)
	}
	return out
}
