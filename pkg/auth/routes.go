package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes wires the /auth/* group: login (password + OIDC begin
// share one path, split by method), callback, token issuance, logout.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	group := e.Group("/auth")
	group.POST("/login", h.Login)
	group.GET("/login", h.Login)
	group.GET("/callback", h.Callback)
	group.GET("/token", h.Token)
	group.POST("/logout", h.Logout)
}
