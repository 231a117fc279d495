package llm

import (
	"context"
	"sync"
)

// Adapter is the interface for LLM vendor backends
type Adapter interface {
	// Init stores the credentials used by later calls. It performs no I/O
	// and may be called any number of times.
	Init(apiKey string)

	// Generate issues one request to the vendor and normalizes the reply.
	// It never returns a Go error: every failure is reported in Result.Err.
	Generate(ctx context.Context, req Request) Result
}

// ProviderConfig is the model/key pair bound to a coordinator
type ProviderConfig struct {
	ModelID string
	APIKey  string
}

// credentials guards an adapter's API key so Init can race an in-flight call
type credentials struct {
	mu     sync.RWMutex
	apiKey string
}

func (c *credentials) Init(apiKey string) {
	c.mu.Lock()
	c.apiKey = apiKey
	c.mu.Unlock()
}

func (c *credentials) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}
