package client

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Registry resolves client ids to their registered metadata.
// GetClient returns ErrClientNotFound for unknown ids.
type Registry interface {
	GetClient(ctx context.Context, clientID string) (*Client, error)
}

// MemoryStore is a Registry held in process memory, seeded from configuration.
type MemoryStore struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewMemoryStore returns a registry containing clients.
func NewMemoryStore(clients ...*Client) *MemoryStore {
	s := &MemoryStore{clients: make(map[string]*Client, len(clients))}
	for _, c := range clients {
		s.Put(c)
	}

	return s
}

// Put registers or replaces a client.
func (s *MemoryStore) Put(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[c.ID] = cloneClient(c)
}

// GetClient implements Registry.
func (s *MemoryStore) GetClient(ctx context.Context, clientID string) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}

	return cloneClient(c), nil
}

func cloneClient(c *Client) *Client {
	cp := *c
	cp.AllowedScopes = slices.Clone(c.AllowedScopes)
	cp.AllowedGrantTypes = slices.Clone(c.AllowedGrantTypes)
	cp.AdditionalInformation = maps.Clone(c.AdditionalInformation)

	return &cp
}
