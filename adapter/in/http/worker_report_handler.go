package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"report_worker/core/domain"
	"report_worker/core/port/in"
	"report_worker/pkg/apperr"
	"report_worker/pkg/response"
)

const maxReportLimit = 100

// ReportHandler serves stored reports.
type ReportHandler struct {
	runs in.RunService
}

// NewReportHandler creates a new report handler.
func NewReportHandler(runs in.RunService) *ReportHandler {
	return &ReportHandler{runs: runs}
}

// Register registers report routes.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/reports", h.ListReports)
}

// ListReports returns stored reports. agency may repeat or be comma separated.
func (h *ReportHandler) ListReports(c *fiber.Ctx) error {
	query := domain.ReportQuery{
		Agencies: queryAgencies(c),
		Month:    c.QueryInt("month", 0),
		Year:     c.QueryInt("year", 0),
		Limit:    c.QueryInt("limit", 0),
	}
	if query.Month < 0 || query.Month > 12 {
		return apperr.InvalidInput("month", "must be between 1 and 12")
	}
	if query.Year < 0 {
		return apperr.InvalidInput("year", "must be positive")
	}
	if query.Limit <= 0 || query.Limit > maxReportLimit {
		query.Limit = maxReportLimit
	}

	records, err := h.runs.Reports(c.UserContext(), query)
	if err != nil {
		return err
	}

	return response.OKWithMeta(c, records, &response.Meta{
		Total:    len(records),
		PageSize: query.Limit,
		HasMore:  len(records) == query.Limit,
	})
}

func queryAgencies(c *fiber.Ctx) []string {
	var agencies []string
	for _, raw := range c.Context().QueryArgs().PeekMulti("agency") {
		for _, part := range strings.Split(string(raw), ",") {
			if part = strings.TrimSpace(part); part != "" {
				agencies = append(agencies, part)
			}
		}
	}
	return agencies
}
