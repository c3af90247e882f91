package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ralph-build/orchestrator/pkg/config"
	"github.com/ralph-build/orchestrator/pkg/registry"
)

// mapServiceError maps domain-layer errors to HTTP error responses by
// dispatching on errors.As.
func mapServiceError(err error) *echo.HTTPError {
	var notFound *registry.ErrProjectNotFound
	if errors.As(err, &notFound) {
		return echo.NewHTTPError(http.StatusNotFound, notFound.Error())
	}

	var validErr *config.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}

	slog.Error("unexpected error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
