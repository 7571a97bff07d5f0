package policy

import (
	"log/slog"

	"github.com/plughost-dev/plughost/domain/ports"
)

// NopDenialHandler ignores denials. The audit trail still records them.
type NopDenialHandler struct{}

func (NopDenialHandler) OnDenial(kind, resource, reason string) {}

// SlogDenialHandler logs denials through a structured logger.
type SlogDenialHandler struct {
	Logger *slog.Logger
}

// NewSlogDenialHandler creates a handler logging to the given logger, or
// slog.Default() when nil.
func NewSlogDenialHandler(logger *slog.Logger) *SlogDenialHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogDenialHandler{Logger: logger}
}

func (h *SlogDenialHandler) OnDenial(kind, resource, reason string) {
	h.Logger.Warn("sandbox denial",
		slog.String("kind", kind),
		slog.String("resource", resource),
		slog.String("reason", reason),
	)
}

var (
	_ ports.DenialHandler = NopDenialHandler{}
	_ ports.DenialHandler = (*SlogDenialHandler)(nil)
)
