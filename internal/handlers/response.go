package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"bank-accounts/internal/services"
	"bank-accounts/internal/utils"
)

const (
	CodeAccountNotFound          = "ACCOUNT_NOT_FOUND"
	CodeDestinationNotFound      = "DESTINATION_NOT_FOUND"
	CodePersonalAccountDuplicate = "PERSONAL_ACCOUNT_DUPLICATE"
	CodeAccountNumberDuplicate   = "ACCOUNT_NUMBER_DUPLICATE"
	CodeBusinessAccountInvalid   = "BUSINESS_ACCOUNT_INVALID"
	CodeInvalidOperation         = "INVALID_OPERATION"
	CodeUnsupportedOperation     = "UNSUPPORTED_OPERATION"
	CodeInsufficientFunds        = "INSUFFICIENT_FUNDS"
	CodeInvalidAmount            = "INVALID_AMOUNT"
	CodeSelfTransfer             = "SELF_TRANSFER"
	CodeStoreUnavailable         = "STORE_UNAVAILABLE"
	CodeValidationFailed         = "VALIDATION_FAILED"
	CodeInternalError            = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []ValidationError `json:"details,omitempty"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrAccountNotFound, fasthttp.StatusNotFound, CodeAccountNotFound},
	{services.ErrDestinationNotFound, fasthttp.StatusNotFound, CodeDestinationNotFound},
	{services.ErrDuplicateAccountType, fasthttp.StatusConflict, CodePersonalAccountDuplicate},
	{services.ErrDuplicateAccountNumber, fasthttp.StatusConflict, CodeAccountNumberDuplicate},
	{services.ErrMissingHolder, fasthttp.StatusBadRequest, CodeBusinessAccountInvalid},
	{services.ErrTooManySigners, fasthttp.StatusBadRequest, CodeBusinessAccountInvalid},
	{services.ErrInvalidProductForBusiness, fasthttp.StatusBadRequest, CodeBusinessAccountInvalid},
	{services.ErrInvalidOperation, fasthttp.StatusBadRequest, CodeInvalidOperation},
	{services.ErrUnsupportedOperation, fasthttp.StatusUnprocessableEntity, CodeUnsupportedOperation},
	{services.ErrInsufficientFunds, fasthttp.StatusUnprocessableEntity, CodeInsufficientFunds},
	{services.ErrInvalidAmount, fasthttp.StatusBadRequest, CodeInvalidAmount},
	{services.ErrSelfTransfer, fasthttp.StatusBadRequest, CodeSelfTransfer},
	{services.ErrStoreUnavailable, fasthttp.StatusServiceUnavailable, CodeStoreUnavailable},
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		utils.LogError("Handler", "Encoding response failed", err)
	}
}

func writeValidationError(ctx *fasthttp.RequestCtx, details []ValidationError) {
	writeJSON(ctx, fasthttp.StatusBadRequest, ErrorResponse{
		Code:    CodeValidationFailed,
		Message: "Invalid request data",
		Details: details,
	})
}

// writeError maps a service error onto its HTTP status and code. Store
// failures and unknown errors are reported without their internals.
func writeError(ctx *fasthttp.RequestCtx, err error) {
	for _, e := range errorCodes {
		if !errors.Is(err, e.err) {
			continue
		}
		message := err.Error()
		if e.code == CodeStoreUnavailable {
			message = "account store unavailable"
		}
		writeJSON(ctx, e.status, ErrorResponse{Code: e.code, Message: message})
		return
	}

	utils.LogError("Handler", "Unexpected error", err)
	writeJSON(ctx, fasthttp.StatusInternalServerError, ErrorResponse{
		Code:    CodeInternalError,
		Message: "internal error",
	})
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}
