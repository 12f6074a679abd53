package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// ContextProvider returns the attributes to stamp on every record.
type ContextProvider func() []slog.Attr

// ContextHandler stamps the provider's attributes on each record. A key the
// call site already set wins over the provided one.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.inner.Handle(ctx, r)
	}
	extra := h.provider()
	if len(extra) == 0 {
		return h.inner.Handle(ctx, r)
	}
	set := make(map[string]bool, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		set[a.Key] = true
		return true
	})
	for _, a := range extra {
		if !set[a.Key] {
			r.AddAttrs(a)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}

// EpisodeContext tracks the episode and tick being simulated so log records
// can be correlated with recorded steps. It is safe for concurrent use.
type EpisodeContext struct {
	episode atomic.Pointer[string]
	tick    atomic.Uint64
}

// Set records the current episode and tick.
func (c *EpisodeContext) Set(episodeID string, tick uint64) {
	c.episode.Store(&episodeID)
	c.tick.Store(tick)
}

// Attrs is a ContextProvider. It returns nothing before the first Set.
func (c *EpisodeContext) Attrs() []slog.Attr {
	id := c.episode.Load()
	if id == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("episode", *id),
		slog.Uint64("tick", c.tick.Load()),
	}
}
