package handlers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"bank-accounts/internal/middleware"
)

// NewRouter wires the account API. Every route goes through the request
// logging middleware.
func NewRouter(accounts *AccountHandler, movements *MovementHandler) fasthttp.RequestHandler {
	r := router.New()

	api := r.Group("/api")
	api.GET("/findAll", accounts.FindAll)
	api.GET("/findAccountsByCustomer/{idCustomer}", accounts.FindByCustomer)
	api.GET("/findById/{id}", accounts.FindByID)
	api.POST("/saveAccount", accounts.SaveAccount)
	api.PUT("/updateAccountById/{idAccount}", accounts.UpdateAccount)
	api.DELETE("/deleteCustomerById/{idAccount}", accounts.DeleteAccount)
	api.POST("/addOperationToAccount/{idAccount}", movements.AddOperation)

	r.NotFound = func(ctx *fasthttp.RequestCtx) {
		writeJSON(ctx, fasthttp.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "route not found"})
	}

	return middleware.Recover(middleware.RequestLogger(r.Handler))
}
