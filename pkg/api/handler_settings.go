package api

import (
	"encoding/json"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ralph-build/orchestrator/pkg/store"
)

// getSettingsHandler handles GET /api/settings.
func (s *Server) getSettingsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.store.GetSettings())
}

// updateSettingsHandler handles POST /api/settings — a full replacement
// of the global settings object. Re-initialising the chat bridge
// transport itself happens out-of-process (the transport is external);
// this handler persists the new settings, which is what the next
// chat-bridge construction at startup or reload will read.
func (s *Server) updateSettingsHandler(c *echo.Context) error {
	var full store.Settings
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&full); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.store.UpdateSettings(full); err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, full)
}
