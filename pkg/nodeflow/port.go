package nodeflow

import (
	"slices"
	"sync"
)

// Ports is an ordered list of pipes owned by one side of a node.
// It is safe for concurrent use. A nil *Ports is an absent port list:
// it reports zero pipes and ignores Add.
type Ports struct {
	mu    sync.RWMutex
	pipes []*Pipe
}

// Add appends a pipe. Adding a pipe that is already present is a no-op.
func (p *Ports) Add(pipe *Pipe) {
	if p == nil || pipe == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Contains(p.pipes, pipe) {
		return
	}
	p.pipes = append(p.pipes, pipe)
}

// Remove deletes a pipe, preserving the order of the rest.
// It reports whether the pipe was present.
func (p *Ports) Remove(pipe *Pipe) bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.pipes, pipe)
	if i < 0 {
		return false
	}
	p.pipes = slices.Delete(p.pipes, i, i+1)
	return true
}

// Len returns the number of pipes.
func (p *Ports) Len() int {
	if p == nil {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pipes)
}

// At returns the pipe at index i, or nil when i is out of range.
func (p *Ports) At(i int) *Pipe {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i < 0 || i >= len(p.pipes) {
		return nil
	}
	return p.pipes[i]
}

// Pipes returns a snapshot of the pipe list.
func (p *Ports) Pipes() []*Pipe {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.pipes)
}
