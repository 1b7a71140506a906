package handlers

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"bank-accounts/internal/models"
	"bank-accounts/internal/services"
	"bank-accounts/internal/utils"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// FindAll handles GET /api/findAll.
func (h *AccountHandler) FindAll(ctx *fasthttp.RequestCtx) {
	accounts, err := h.accountService.ListAccounts(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, accounts)
}

// FindByCustomer handles GET /api/findAccountsByCustomer/{idCustomer}.
func (h *AccountHandler) FindByCustomer(ctx *fasthttp.RequestCtx) {
	idCustomer := pathParam(ctx, "idCustomer")

	accounts, err := h.accountService.ListCustomerAccounts(ctx, idCustomer)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, accounts)
}

// FindByID handles GET /api/findById/{id}.
func (h *AccountHandler) FindByID(ctx *fasthttp.RequestCtx) {
	account, err := h.accountService.GetAccount(ctx, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, account)
}

// SaveAccount handles POST /api/saveAccount.
func (h *AccountHandler) SaveAccount(ctx *fasthttp.RequestCtx) {
	var req models.CreateAccountRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogWarning("AccountHandler", "Malformed account body: %v", err)
		writeValidationError(ctx, []ValidationError{{Message: "invalid request body", Type: "json"}})
		return
	}
	if details := validateRequest(req); details != nil {
		writeValidationError(ctx, details)
		return
	}

	account, err := h.accountService.OpenAccount(ctx, req.ToAccount())
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, account)
}

// UpdateAccount handles PUT /api/updateAccountById/{idAccount}.
func (h *AccountHandler) UpdateAccount(ctx *fasthttp.RequestCtx) {
	var req models.UpdateAccountRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogWarning("AccountHandler", "Malformed update body: %v", err)
		writeValidationError(ctx, []ValidationError{{Message: "invalid request body", Type: "json"}})
		return
	}
	if details := validateRequest(req); details != nil {
		writeValidationError(ctx, details)
		return
	}

	account, err := h.accountService.UpdateAccount(ctx, pathParam(ctx, "idAccount"), req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, account)
}

// DeleteAccount handles DELETE /api/deleteCustomerById/{idAccount}. The
// route name is historical; it deletes one account.
func (h *AccountHandler) DeleteAccount(ctx *fasthttp.RequestCtx) {
	account, err := h.accountService.DeleteAccount(ctx, pathParam(ctx, "idAccount"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, account)
}
