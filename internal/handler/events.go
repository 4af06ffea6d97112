package handler

import (
	"context"
	"net/http"

	"gowa-gateway/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin dibatasi oleh CORS/JWT di level route
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /events - stream QR dan status sesi via WebSocket
func WebSocketHandler(ctx context.Context, hub *ws.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade sudah menulis response error ke client
			return nil
		}
		hub.Serve(ctx, conn)
		return nil
	}
}
