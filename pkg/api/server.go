// Package api implements the HTTP/WebSocket external adapter: project
// CRUD and lifecycle, lessons, settings, and the broadcast websocket.
// An Echo v5 router is built in NewServer, with graceful
// net/http.Server Start/Shutdown; there is no dashboard static-file
// serving (no dashboard build artifact exists in this system) and no
// optional-service Set*/ValidateWiring scaffolding — every Server
// dependency here is required up front, not wired in after
// construction.
package api

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/ralph-build/orchestrator/pkg/broadcast"
	"github.com/ralph-build/orchestrator/pkg/chatbridge"
	"github.com/ralph-build/orchestrator/pkg/llmclient"
	"github.com/ralph-build/orchestrator/pkg/registry"
	"github.com/ralph-build/orchestrator/pkg/store"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	store     *store.Store
	registry  *registry.Registry
	broadcast *broadcast.Manager
	llm       *llmclient.Client
	chat      *chatbridge.Bridge // nil if chat bridge not configured

	projectRootFn func(name string) string
}

// NewServer builds the Server and registers all routes. chat may be nil.
func NewServer(st *store.Store, reg *registry.Registry, bc *broadcast.Manager, llm *llmclient.Client, chat *chatbridge.Bridge, projectRootFn func(name string) string) *Server {
	e := echo.New()
	e.Use(securityHeaders())
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))

	s := &Server{
		echo:          e,
		store:         st,
		registry:      reg,
		broadcast:     bc,
		llm:           llm,
		chat:          chat,
		projectRootFn: projectRootFn,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/api/projects", s.listProjectsHandler)
	s.echo.POST("/api/projects", s.createProjectHandler)
	s.echo.POST("/api/projects/:id/start", s.startProjectHandler)
	s.echo.POST("/api/projects/:id/stop", s.stopProjectHandler)
	s.echo.POST("/api/projects/:id/init", s.initProjectHandler)
	s.echo.POST("/api/projects/:id/generate-prd", s.generatePRDHandler)
	s.echo.POST("/api/projects/:id/update-prd", s.updatePRDHandler)
	s.echo.POST("/api/projects/:id/update-settings", s.updateProjectSettingsHandler)

	s.echo.GET("/api/lessons", s.listLessonsHandler)
	s.echo.DELETE("/api/lessons/:timestamp", s.deleteLessonHandler)

	s.echo.GET("/api/settings", s.getSettingsHandler)
	s.echo.POST("/api/settings", s.updateSettingsHandler)

	s.echo.GET("/", s.wsHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
