package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/scheduler"
)

// SchedulerHandler exposes the background task list and manual triggers.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulerHandler creates a new scheduler handler.
func NewSchedulerHandler(sched *scheduler.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: sched}
}

// RegisterRoutes registers the scheduler routes.
func (h *SchedulerHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/tasks", h.ListTasks)
	g.GET("/tasks/:id", h.GetTask)
	g.POST("/tasks/:id/run", h.RunTask)
}

// ListTasks returns all scheduled tasks.
// GET /api/v1/scheduler/tasks
func (h *SchedulerHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scheduler.ListTasks())
}

// GetTask returns a single task.
// GET /api/v1/scheduler/tasks/:id
func (h *SchedulerHandler) GetTask(c echo.Context) error {
	task, err := h.scheduler.GetTask(c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask triggers a task immediately, e.g. the exhausted-file sweep.
// POST /api/v1/scheduler/tasks/:id/run
func (h *SchedulerHandler) RunTask(c echo.Context) error {
	taskID := c.Param("id")
	if err := h.scheduler.RunNow(taskID); err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Task started",
		"taskId":  taskID,
	})
}

func taskError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrTaskRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
