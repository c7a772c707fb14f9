// Package checkpoint provides durable storage for run snapshots: crash
// recovery between nodes and the pending point of a suspended conversation.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store persists checkpoints keyed by (key, node).
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a checkpoint for a key at a specific node.
	// Overwrites the previous checkpoint for (key, nodeID) and assigns it
	// the next sequence number of the key.
	Save(ctx context.Context, key, nodeID string, data []byte) error

	// Load retrieves a checkpoint.
	// Returns ErrNotFound if checkpoint doesn't exist.
	Load(ctx context.Context, key, nodeID string) ([]byte, error)

	// List returns all checkpoints for a key, ordered by sequence.
	// Returns empty slice (not error) if the key has no checkpoints.
	List(ctx context.Context, key string) ([]Info, error)

	// Keys returns every key with at least one checkpoint.
	Keys(ctx context.Context) ([]string, error)

	// Delete removes a specific checkpoint.
	// Returns nil if checkpoint doesn't exist.
	Delete(ctx context.Context, key, nodeID string) error

	// DeleteKey removes all checkpoints for a key.
	// Returns nil if the key has no checkpoints.
	DeleteKey(ctx context.Context, key string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	Key       string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrVersionMismatch indicates the checkpoint version is incompatible.
	ErrVersionMismatch = errors.New("checkpoint version mismatch")
)

// Latest loads and decodes the checkpoint with the highest sequence for key.
// Returns ErrNotFound if the key has no checkpoints.
func Latest(ctx context.Context, store Store, key string) (*Checkpoint, error) {
	infos, err := store.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return nil, ErrNotFound
	}

	latest := infos[len(infos)-1]
	data, err := store.Load(ctx, key, latest.NodeID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode checkpoint %s/%s: %w", key, latest.NodeID, err)
	}
	cp.Sequence = latest.Sequence
	return cp, nil
}
