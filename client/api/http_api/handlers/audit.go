package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	. "github.com/lidofinance/qvault/client/api/dto"
	cs "github.com/lidofinance/qvault/client/api/http_api/context_service"
	req "github.com/lidofinance/qvault/client/api/http_api/requests"
)

func (a *HTTPApp) GetAuditLog(c echo.Context) error {
	stx := c.(*cs.ContextService)
	records, err := a.node.GetAuditLog()
	if err != nil {
		return stx.JsonError(http.StatusInternalServerError, fmt.Errorf("failed to get audit log: %v", err))
	}
	return stx.Json(http.StatusOK, records)
}

func (a *HTTPApp) GetActionAuditLog(c echo.Context) error {
	stx := c.(*cs.ContextService)
	formDTO := &ActionIdDTO{}
	if err := stx.BindToDTO(&req.ActionIdForm{}, formDTO); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	records, err := a.node.GetActionAuditLog(formDTO)
	if err != nil {
		return stx.JsonError(http.StatusInternalServerError, fmt.Errorf("failed to get audit log: %v", err))
	}
	return stx.Json(http.StatusOK, records)
}
