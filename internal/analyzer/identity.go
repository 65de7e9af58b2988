package analyzer

import "sync"

// Identity issues monotonic flow-node identities. It is explicitly owned and
// resettable so test fixtures get deterministic numbering; concurrent runs
// sharing one counter tolerate interleaved numbering.
type Identity struct {
	mu   sync.Mutex
	next int
}

// NewIdentity returns an independent counter starting at 1.
func NewIdentity() *Identity { return &Identity{} }

// Next returns the next identity.
func (c *Identity) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}

// Reset restarts numbering at 1.
func (c *Identity) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = 0
}

// processIdentity is the default counter used by analyzers that do not
// inject their own.
var processIdentity = NewIdentity()

// ResetIdentityCounter resets the process-default counter. Analyzing
// identical text after a reset yields deep-equal forests.
func ResetIdentityCounter() { processIdentity.Reset() }
