package main

import (
	"context"
	"sync"
	"time"

	"unimarket/internal/usecase"
	"unimarket/pkg/logger"
)

const pollInterval = 30 * time.Second

// fallbackPoller refreshes the conversation list periodically while the
// realtime channel is degraded.
type fallbackPoller struct {
	directory *usecase.DirectoryUseCase

	mu   sync.Mutex
	done chan struct{}
}

func newFallbackPoller(directory *usecase.DirectoryUseCase) *fallbackPoller {
	return &fallbackPoller{directory: directory}
}

func (p *fallbackPoller) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	done := make(chan struct{})
	p.done = done

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := p.directory.Refresh(context.Background()); err != nil {
					logger.Warn("fallback refresh failed: %v", err)
				}
			case <-done:
				return
			}
		}
	}()
}

func (p *fallbackPoller) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		close(p.done)
		p.done = nil
	}
}
