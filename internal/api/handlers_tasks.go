package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apimw "github.com/slipstream/aria2d/internal/api/middleware"
	"github.com/slipstream/aria2d/internal/scheduler"
)

// TaskRunner exposes scheduled background tasks. *scheduler.Scheduler implements it.
type TaskRunner interface {
	ListTasks() []scheduler.TaskInfo
	GetTask(taskID string) (*scheduler.TaskInfo, error)
	RunNow(taskID string) error
}

var _ TaskRunner = (*scheduler.Scheduler)(nil)

// RegisterTasks mounts the task routes under /api/v1/tasks.
func (s *Server) RegisterTasks(tasks TaskRunner) {
	s.tasks = tasks

	g := s.echo.Group("/api/v1/tasks", apimw.APIHeaders())
	g.GET("", s.listTasks)
	g.GET("/:id", s.getTask)
	g.POST("/:id/run", s.runTask)
}

// GET /api/v1/tasks
func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tasks.ListTasks())
}

// GET /api/v1/tasks/:id
func (s *Server) getTask(c echo.Context) error {
	task, err := s.tasks.GetTask(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, task)
}

// POST /api/v1/tasks/:id/run runs the task synchronously and reports the
// refreshed task record.
func (s *Server) runTask(c echo.Context) error {
	taskID := c.Param("id")
	if err := s.tasks.RunNow(taskID); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	task, err := s.tasks.GetTask(taskID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, task)
}
