package api

import (
	"github.com/gofiber/fiber/v2"
)

// StatsFunc returns a JSON-serialisable snapshot of process counters.
type StatsFunc func() interface{}

// StatsHandler serves the counters of one process.
type StatsHandler struct {
	service string
	stats   StatsFunc
}

// NewStatsHandler creates a new stats handler. Service names the process,
// for example "emitter" or "listener".
func NewStatsHandler(service string, stats StatsFunc) *StatsHandler {
	return &StatsHandler{
		service: service,
		stats:   stats,
	}
}

// Get handles GET /v1/stats.
func (h *StatsHandler) Get(c *fiber.Ctx) error {
	return reply(c, h.service, h.stats())
}
