// Package http exposes report runs, tasks and stored reports over fiber.
package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"report_worker/core/domain"
	"report_worker/core/port/in"
	"report_worker/pkg/apperr"
)

// RunHandler queues report runs and reports their progress.
type RunHandler struct {
	tasks  in.TaskService
	submit []fiber.Handler
}

// NewRunHandler creates a new run handler. submitMiddleware runs ahead of
// POST /runs only.
func NewRunHandler(tasks in.TaskService, submitMiddleware ...fiber.Handler) *RunHandler {
	return &RunHandler{tasks: tasks, submit: submitMiddleware}
}

// Register registers run and task routes.
func (h *RunHandler) Register(router fiber.Router) {
	router.Get("/", h.Root)

	runs := router.Group("/runs")
	runs.Post("/", append(h.submit, h.Submit)...)
	runs.Get("/:id/status", h.Status)
	runs.Get("/:id/result", h.Result)

	router.Get("/tasks", h.List)
}

// RunRequest is the body of POST /runs.
type RunRequest struct {
	Agency string `json:"agency"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	Limit  int    `json:"limit,omitempty"`
}

// Root returns the service banner.
func (h *RunHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Citizen feedback report API",
		"version": "1.0.0",
	})
}

// Submit queues a run and answers 202 with the task id.
func (h *RunHandler) Submit(c *fiber.Ctx) error {
	var req RunRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest("invalid request body")
	}

	req.Agency = strings.TrimSpace(req.Agency)
	if req.Agency == "" {
		return apperr.MissingField("agency")
	}
	if req.Month < 1 || req.Month > 12 {
		return apperr.InvalidInput("month", "must be between 1 and 12")
	}
	if req.Year == 0 {
		return apperr.MissingField("year")
	}
	if minYear, maxYear := domain.YearRange(time.Now()); req.Year < minYear || req.Year > maxYear {
		return apperr.InvalidInput("year", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
	if req.Limit < 0 {
		return apperr.InvalidInput("limit", "must not be negative")
	}

	task, err := h.tasks.Submit(c.UserContext(), domain.RunRequest{
		Agency: req.Agency,
		Month:  req.Month,
		Year:   req.Year,
		Limit:  req.Limit,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id": task.ID,
		"status":  task.Status,
		"message": "Report run has been queued and will start shortly",
	})
}

// Status returns the task state, with the result or error once finished.
func (h *RunHandler) Status(c *fiber.Ctx) error {
	task, err := h.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	resp := fiber.Map{
		"task_id":    task.ID,
		"status":     task.Status,
		"request":    task.Request,
		"created_at": task.CreatedAt,
		"updated_at": task.UpdatedAt,
	}
	switch task.Status {
	case domain.TaskCompleted:
		resp["result"] = task.Result
	case domain.TaskFailed:
		resp["error"] = task.Error
	}
	return c.JSON(resp)
}

// Result returns the run result of a completed task.
func (h *RunHandler) Result(c *fiber.Ctx) error {
	task, err := h.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	if task.Status != domain.TaskCompleted {
		return apperr.Conflict("task is not completed, current status: " + string(task.Status)).
			WithDetail("status", task.Status)
	}
	if task.Result == nil {
		return apperr.NotFound("task result")
	}
	return c.JSON(task.Result)
}

type taskSummary struct {
	TaskID    string            `json:"task_id"`
	Status    domain.TaskStatus `json:"status"`
	HasResult bool              `json:"has_result"`
}

// List returns every task with its status.
func (h *RunHandler) List(c *fiber.Ctx) error {
	tasks, err := h.tasks.List(c.UserContext())
	if err != nil {
		return err
	}

	summaries := make([]taskSummary, 0, len(tasks))
	for _, t := range tasks {
		summaries = append(summaries, taskSummary{
			TaskID:    t.ID,
			Status:    t.Status,
			HasResult: t.HasResult(),
		})
	}
	return c.JSON(fiber.Map{"tasks": summaries})
}
