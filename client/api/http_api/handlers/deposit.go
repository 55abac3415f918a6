package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	. "github.com/lidofinance/qvault/client/api/dto"
	cs "github.com/lidofinance/qvault/client/api/http_api/context_service"
	req "github.com/lidofinance/qvault/client/api/http_api/requests"
)

func (a *HTTPApp) NotifyDeposit(c echo.Context) error {
	stx := c.(*cs.ContextService)
	request := &req.NotifyDepositForm{}
	if err := stx.BindToRequest(request); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	from, err := parseAddress("from", request.From)
	if err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}
	value, err := parseValue(request.Value)
	if err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	formDTO := &NotifyDepositDTO{
		From:  from,
		Value: value,
	}

	if err := a.node.NotifyDeposit(formDTO); err != nil {
		return stx.JsonError(http.StatusInternalServerError, err)
	}
	return stx.Json(http.StatusOK, "ok")
}
