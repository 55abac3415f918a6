package router

import (
	"github.com/labstack/echo/v4"
	"github.com/lidofinance/qvault/client/api/http_api/handlers"
	"github.com/lidofinance/qvault/client/services/node"
)

func SetRouter(e *echo.Echo, authHandler echo.MiddlewareFunc, node node.NodeService) {
	h := handlers.NewHTTPApp(node)

	e.GET("/getAddress", h.GetAddress)
	e.GET("/getSigners", h.GetSigners)

	e.POST("/propose", h.ProposeAction)
	e.POST("/confirm", h.ConfirmAction)
	e.POST("/revoke", h.RevokeConfirmation)
	e.POST("/deposit", h.NotifyDeposit)

	e.GET("/getActions", h.GetActions)
	e.GET("/getAction", h.GetAction)
	e.GET("/getConfirmations", h.GetConfirmations)

	e.GET("/getAuditLog", h.GetAuditLog)
	e.GET("/getActionAuditLog", h.GetActionAuditLog)

	e.POST("/saveOffset", h.SaveStateOffset)
	e.GET("/getOffset", h.GetStateOffset)

	e.POST("/resetState", h.ResetState)
}
