package handlers

import (
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"

	. "github.com/lidofinance/qvault/client/api/dto"
	cs "github.com/lidofinance/qvault/client/api/http_api/context_service"
	req "github.com/lidofinance/qvault/client/api/http_api/requests"
)

// parseAddress sanitizes a 0x-hex form field into an address.
func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s is not a valid hex address: %q", field, value)
	}
	return common.HexToAddress(value), nil
}

// parseValue sanitizes a decimal wei form field. Negative values never reach
// the service layer.
func parseValue(value string) (*big.Int, error) {
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("value is not a valid decimal number: %q", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("value must not be negative: %q", value)
	}
	return parsed, nil
}

func (a *HTTPApp) ProposeAction(c echo.Context) error {
	stx := c.(*cs.ContextService)
	request := &req.ProposeActionForm{}
	if err := stx.BindToRequest(request); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	target, err := parseAddress("target", request.Target)
	if err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}
	value, err := parseValue(request.Value)
	if err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	formDTO := &ProposeActionDTO{
		Target:  target,
		Value:   value,
		Payload: request.Payload,
	}

	if err := a.node.ProposeAction(formDTO); err != nil {
		return stx.JsonError(http.StatusInternalServerError, err)
	}
	return stx.Json(http.StatusOK, "ok")
}

func (a *HTTPApp) ConfirmAction(c echo.Context) error {
	stx := c.(*cs.ContextService)
	formDTO := &ActionIdDTO{}
	if err := stx.BindToDTO(&req.ActionIdForm{}, formDTO); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	if err := a.node.ConfirmAction(formDTO); err != nil {
		return stx.JsonError(http.StatusInternalServerError, err)
	}
	return stx.Json(http.StatusOK, "ok")
}

func (a *HTTPApp) RevokeConfirmation(c echo.Context) error {
	stx := c.(*cs.ContextService)
	formDTO := &ActionIdDTO{}
	if err := stx.BindToDTO(&req.ActionIdForm{}, formDTO); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	if err := a.node.RevokeConfirmation(formDTO); err != nil {
		return stx.JsonError(http.StatusInternalServerError, err)
	}
	return stx.Json(http.StatusOK, "ok")
}

func (a *HTTPApp) GetActions(c echo.Context) error {
	stx := c.(*cs.ContextService)
	return stx.Json(http.StatusOK, a.node.GetActions())
}

func (a *HTTPApp) GetAction(c echo.Context) error {
	stx := c.(*cs.ContextService)
	formDTO := &ActionIdDTO{}
	if err := stx.BindToDTO(&req.ActionIdForm{}, formDTO); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	act, err := a.node.GetActionByID(formDTO)
	if err != nil {
		return stx.JsonError(http.StatusInternalServerError, fmt.Errorf("failed to get action: %v", err))
	}
	return stx.Json(http.StatusOK, act)
}

func (a *HTTPApp) GetConfirmations(c echo.Context) error {
	stx := c.(*cs.ContextService)
	formDTO := &ActionIdDTO{}
	if err := stx.BindToDTO(&req.ActionIdForm{}, formDTO); err != nil {
		return stx.JsonError(http.StatusBadRequest, err)
	}

	confirmations, err := a.node.GetConfirmations(formDTO)
	if err != nil {
		return stx.JsonError(http.StatusInternalServerError, fmt.Errorf("failed to get confirmations: %v", err))
	}
	return stx.Json(http.StatusOK, confirmations)
}
