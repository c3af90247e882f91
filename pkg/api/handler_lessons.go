package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listLessonsHandler handles GET /api/lessons.
func (s *Server) listLessonsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.store.GetLessons())
}

// deleteLessonHandler handles DELETE /api/lessons/:timestamp.
func (s *Server) deleteLessonHandler(c *echo.Context) error {
	ts := c.Param("timestamp")
	if err := s.store.DeleteLesson(ts); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "deleted"})
}
