package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	cs "github.com/lidofinance/qvault/client/api/http_api/context_service"
)

func (a *HTTPApp) GetSigners(c echo.Context) error {
	stx := c.(*cs.ContextService)

	return stx.Json(
		http.StatusOK,
		a.node.GetSigners(),
	)
}

func (a *HTTPApp) GetAddress(c echo.Context) error {
	stx := c.(*cs.ContextService)

	return stx.Json(
		http.StatusOK,
		a.node.GetAddress(),
	)
}
