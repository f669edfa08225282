package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const sseKeepAlive = 10 * time.Second

// registerEventRoutes mounts GET /events: an SSE stream of every EventBus
// message, per the wire format "event: <kind>\ndata: <json>\n\n" with a
// keep-alive comment every 10s, per §6.
func registerEventRoutes(g *echo.Group, deps *Deps) {
	g.GET("", func(c echo.Context) error {
		w := c.Response()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		_, msgs, cancel := deps.Bus.Subscribe()
		defer cancel()

		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return nil
				}
				w.Flush()
			case msg, ok := <-msgs:
				if !ok {
					return nil
				}
				body, err := json.Marshal(msg.Payload)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, body); err != nil {
					return nil
				}
				w.Flush()
			}
		}
	})
}
