package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// MetricsSource returns a named group of runtime figures.
type MetricsSource func() any

// MetricsHandler serves GET /metrics as one JSON object with a key per source.
type MetricsHandler struct {
	sources map[string]MetricsSource
}

func NewMetricsHandler(sources map[string]MetricsSource) *MetricsHandler {
	return &MetricsHandler{sources: sources}
}

func (h *MetricsHandler) Register(router fiber.Router) {
	router.Get("/metrics", h.Metrics)
}

func (h *MetricsHandler) Metrics(c *fiber.Ctx) error {
	body := make(fiber.Map, len(h.sources)+1)
	for name, source := range h.sources {
		body[name] = source()
	}
	body["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(body)
}
