package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and delegates to the
// broadcast Manager.
func (s *Server) wsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		// Origin checking is out of scope — this is a local dashboard
		// tool, not an internet-facing multi-tenant service.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}

	s.broadcast.HandleConnection(c.Request().Context(), conn)
	return nil
}
