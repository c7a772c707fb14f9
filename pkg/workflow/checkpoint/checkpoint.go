package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Status describes where a run stood when the checkpoint was written.
type Status string

const (
	// StatusRunning means more nodes were scheduled after this one.
	StatusRunning Status = "running"
	// StatusSuspended means the run stopped at an interrupt node and waits for input.
	StatusSuspended Status = "suspended"
	// StatusCompleted means the run reached END.
	StatusCompleted Status = "completed"
)

// Pending is the continuation of a suspended run: the interrupt node it
// stopped at, the prompt it asked, and the single-use token that must be
// presented to continue. Inner is set when the suspension happened inside a
// subgraph; NodeID then names the subgraph node of the enclosing graph.
type Pending struct {
	Token  string   `json:"token"`
	NodeID string   `json:"node_id"`
	Prompt string   `json:"prompt,omitempty"`
	Inner  *Pending `json:"inner,omitempty"`
}

// Leaf returns the innermost pending point.
func (p *Pending) Leaf() *Pending {
	for p != nil && p.Inner != nil {
		p = p.Inner
	}
	return p
}

// Path returns the node path from the outermost graph to the interrupt node,
// e.g. "calculate/request_missing".
func (p *Pending) Path() string {
	if p == nil {
		return ""
	}
	if p.Inner == nil {
		return p.NodeID
	}
	return p.NodeID + "/" + p.Inner.Path()
}

// Checkpoint is the persisted snapshot of execution state.
// It contains all information needed to resume execution.
type Checkpoint struct {
	Version   int       `json:"version"`
	Key       string    `json:"key"`
	NodeID    string    `json:"node_id"`
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	State    json.RawMessage `json:"state"`
	NextNode string          `json:"next_node"`
	Status   Status          `json:"status"`
	Pending  *Pending        `json:"pending,omitempty"`

	PrevNodeID string `json:"prev_node_id,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON and rejects unknown versions.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Version != Version {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrVersionMismatch, c.Version, Version)
	}
	return &c, nil
}

// New creates a running checkpoint. State must already be JSON-serialized.
func New(key, nodeID string, sequence int, state []byte, nextNode string) *Checkpoint {
	return &Checkpoint{
		Version:   Version,
		Key:       key,
		NodeID:    nodeID,
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
		State:     state,
		NextNode:  nextNode,
		Status:    StatusRunning,
	}
}

// WithPrevNode sets the previous node ID for debugging.
func (c *Checkpoint) WithPrevNode(prevNodeID string) *Checkpoint {
	c.PrevNodeID = prevNodeID
	return c
}

// WithPending marks the checkpoint as suspended at p.
func (c *Checkpoint) WithPending(p *Pending) *Checkpoint {
	c.Pending = p
	if p != nil {
		c.Status = StatusSuspended
	}
	return c
}

// WithStatus overrides the status.
func (c *Checkpoint) WithStatus(s Status) *Checkpoint {
	c.Status = s
	return c
}

// Suspended reports whether the checkpoint holds an unconsumed pending point.
func (c *Checkpoint) Suspended() bool {
	return c.Status == StatusSuspended && c.Pending != nil
}
