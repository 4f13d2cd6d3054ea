package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"maragu.dev/gomponents"
)

// render writes a gomponents node as the full HTML response.
func render(c echo.Context, component gomponents.Node) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/html; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return component.Render(c.Response().Writer)
}
