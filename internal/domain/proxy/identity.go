package proxy

import (
	"fmt"
	"sync"
)

// AgentIdentifier maps a transport connection to a stable agent id. The
// mapping must be deterministic per connection for the lifetime of the
// process.
type AgentIdentifier interface {
	// AgentID returns the agent id for the given connection key.
	AgentID(connKey string) string
}

// CounterIdentifier assigns "agent_1", "agent_2", ... in first-seen order.
// Over a single stdio transport there is one connection, so every caller
// sees "agent_1".
type CounterIdentifier struct {
	mu   sync.Mutex
	next int64
	byID map[string]string
}

// NewCounterIdentifier returns an empty identifier.
func NewCounterIdentifier() *CounterIdentifier {
	return &CounterIdentifier{byID: make(map[string]string)}
}

// AgentID implements AgentIdentifier.
func (c *CounterIdentifier) AgentID(connKey string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.byID[connKey]; ok {
		return id
	}
	c.next++
	id := fmt.Sprintf("agent_%d", c.next)
	c.byID[connKey] = id
	return id
}

var _ AgentIdentifier = (*CounterIdentifier)(nil)
