package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes evaluated at the time of each record.
type ContextProvider func() []slog.Attr

// ContextHandler stamps every record with the attributes of its provider
// before passing it on.
type ContextHandler struct {
	next     slog.Handler
	provider ContextProvider
}

// NewContextHandler wraps next. A nil provider adds nothing.
func NewContextHandler(next slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{next: next, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.next.Handle(ctx, r)
	}
	stamped := r.Clone()
	stamped.AddAttrs(h.provider()...)
	return h.next.Handle(ctx, stamped)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.next.WithAttrs(attrs), h.provider)
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewContextHandler(h.next.WithGroup(name), h.provider)
}

// StateReader is implemented by the orchestrator.
type StateReader interface {
	StateName() string
	SessionID() string
}

// StateContext stamps records with the system state and, while a session
// runs, its ID.
func StateContext(r StateReader) ContextProvider {
	return func() []slog.Attr {
		attrs := []slog.Attr{slog.String("state", r.StateName())}
		if id := r.SessionID(); id != "" {
			attrs = append(attrs, slog.String("session", id))
		}
		return attrs
	}
}
