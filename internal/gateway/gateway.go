// Package gateway is the boundary to external tool providers.
//
// Providers are connected eagerly by Connect. A provider whose connection
// fails is marked unavailable for the life of the process; invoking it fails
// immediately with ErrProviderUnavailable instead of blocking. Every call is
// at-most-once and bounded by the gateway timeout. Calls run on a context
// detached from the caller's, so once issued they are never cancelled from
// outside; only the timeout ends them early.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/float/internal/ir"
)

// DefaultTimeout bounds each provider call when none is configured.
const DefaultTimeout = 30 * time.Second

// Provider is one named external tool host.
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	CallTool(ctx context.Context, tool string, args ir.IRObject) (ir.IRValue, error)
	Close() error
}

// Gateway routes tool calls to connected providers.
//
// Thread-safety: all methods are safe for concurrent use.
type Gateway struct {
	mu        sync.RWMutex
	providers map[string]Provider
	available map[string]bool
	timeout   time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTimeout sets the per-call timeout. Non-positive values keep the
// default.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// New creates a gateway over providers. Nothing is connected until Connect;
// until then every provider is unavailable.
func New(providers []Provider, opts ...Option) *Gateway {
	g := &Gateway{
		providers: make(map[string]Provider, len(providers)),
		available: make(map[string]bool, len(providers)),
		timeout:   DefaultTimeout,
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Connect establishes every provider concurrently. A failed provider is
// logged and left unavailable; that is degraded mode, not an error. Connect
// returns an error only if ctx ends first.
func (g *Gateway) Connect(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)
	for _, name := range g.Providers() {
		p := g.providers[name]
		eg.Go(func() error {
			cctx, cancel := context.WithTimeout(egctx, g.timeout)
			defer cancel()

			if err := p.Connect(cctx); err != nil {
				slog.Warn("provider unavailable, continuing in degraded mode",
					"provider", name,
					"error", err,
					"event", "provider_connect_failed",
				)
				return nil
			}

			g.mu.Lock()
			g.available[name] = true
			g.mu.Unlock()
			slog.Info("provider connected", "provider", name)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// IsAvailable reports whether provider connected successfully.
func (g *Gateway) IsAvailable(provider string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.available[provider]
}

// Providers returns configured provider names in sorted order.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Invoke calls tool on provider once. An unavailable provider fails with
// ErrProviderUnavailable without issuing a call; any other failure is a
// *GatewayError.
func (g *Gateway) Invoke(ctx context.Context, provider, tool string, args ir.IRObject) (ir.IRValue, error) {
	g.mu.RLock()
	p, ok := g.providers[provider]
	up := g.available[provider]
	g.mu.RUnlock()

	if !ok || !up {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, provider)
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.CallTool(cctx, tool, args)
	if err != nil {
		gerr := &GatewayError{
			Provider: provider,
			Tool:     tool,
			Timeout:  errors.Is(cctx.Err(), context.DeadlineExceeded),
			Err:      err,
		}
		slog.Error("tool call failed",
			"provider", provider,
			"tool", tool,
			"timeout", gerr.Timeout,
			"error", err,
			"event", "tool_call_failed",
		)
		return nil, gerr
	}

	slog.Debug("tool call completed",
		"provider", provider,
		"tool", tool,
		"duration", time.Since(start),
	)
	return result, nil
}

// Close closes every provider, connected or not, and marks all unavailable.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	for name, p := range g.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		g.available[name] = false
	}
	return errors.Join(errs...)
}
