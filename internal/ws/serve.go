package ws

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// Non-browser clients (staff terminals, tests) send no Origin.
			return true
		}

		allowed := []string{
			"http://localhost:3000",
			"https://localhost:3000",
			"http://127.0.0.1:3000",
		}
		if custom := os.Getenv("ALLOWED_ORIGINS"); custom != "" {
			for _, o := range strings.Split(custom, ",") {
				allowed = append(allowed, strings.TrimSpace(o))
			}
		}
		for _, o := range allowed {
			if origin == o {
				return true
			}
		}
		return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
	},
}

// ServeWS upgrades the request at /ws and starts the connection's pumps.
// All traffic for every restaurant and table shares this single path; the
// client announces its identity with register messages after connecting.
func ServeWS(hub *Hub, dispatcher *Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := NewClient(hub, conn)
		hub.Register(client)

		go client.writePump()
		go client.readPump(dispatcher)
	}
}
