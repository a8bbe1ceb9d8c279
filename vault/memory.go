package vault

import (
	"context"
	"sync"
)

// Memory is a thread-safe in-memory TokenVault. The credential is lost on
// process exit. Suitable for testing and ephemeral sessions.
type Memory struct {
	mu    sync.RWMutex
	token string
}

var _ TokenVault = (*Memory)(nil)

// NewMemory creates an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
