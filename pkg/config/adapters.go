package config

import (
	"strings"

	"github.com/marmos91/dittolink/internal/protocol/link"
	"github.com/marmos91/dittolink/internal/protocol/link/handlers"
	"github.com/marmos91/dittolink/internal/ratelimiter"
	"github.com/marmos91/dittolink/pkg/metrics"
	"github.com/marmos91/dittolink/pkg/registry"
)

// CreateRateLimiter builds the admission limiter described by cfg.
//
// Returns nil when neither a global nor any procedure limit is set, which
// the dispatcher treats as "admit everything".
func CreateRateLimiter(cfg *RateLimitConfig) *ratelimiter.RateLimiter {
	if cfg.Global.Unlimited() && len(cfg.Procedures) == 0 {
		return nil
	}

	limiter := ratelimiter.New(cfg.Global)
	for name, limit := range cfg.Procedures {
		limiter.SetProcedureLimit(strings.ToUpper(name), limit)
	}
	return limiter
}

// CreateDispatcher wires the link procedure handlers over reg.
//
// Parameters:
//   - cfg: The complete DittoLink configuration
//   - reg: Registry holding the served container
//   - linkMetrics: Link metrics collector (nil = no metrics)
//
// Returns:
//   - *link.Dispatcher: Dispatcher routing requests to the default handler
func CreateDispatcher(cfg *Config, reg *registry.Registry, linkMetrics metrics.LinkMetrics) *link.Dispatcher {
	h := handlers.NewDefaultHandler(reg, handlers.Options{
		MaxValueLength: cfg.Links.MaxValueLength,
		Metrics:        linkMetrics,
	})
	return link.NewDispatcher(h, linkMetrics, CreateRateLimiter(&cfg.RateLimit))
}
