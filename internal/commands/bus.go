package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrHandlerNotFound   = errors.New("command handler not found")
	ErrUnexpectedCommand = errors.New("unexpected command type")
)

type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	proxy    Proxy
}

func NewBus(proxies ...Proxy) *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
		proxy:    NewProxyChain(proxies...),
	}
}

func (b *Bus) Register(commandType string, handler Handler) {
	b.mu.Lock()
	b.handlers[commandType] = handler
	b.mu.Unlock()
}

// Execute validates cmd, runs the proxy chain and dispatches to the handler
// registered for its type.
func (b *Bus) Execute(ctx context.Context, cmd Command) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, fmt.Errorf("%s: %w", cmd.CommandType(), err)
	}
	if err := b.proxy.Authorize(ctx, cmd); err != nil {
		return Result{}, err
	}

	b.mu.RLock()
	h, ok := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", cmd.CommandType(), ErrHandlerNotFound)
	}
	return h.Handle(ctx, cmd)
}
