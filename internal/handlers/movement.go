package handlers

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	"bank-accounts/internal/models"
	"bank-accounts/internal/services"
	"bank-accounts/internal/utils"
)

type MovementHandler struct {
	movementService *services.MovementService
}

func NewMovementHandler(movementService *services.MovementService) *MovementHandler {
	return &MovementHandler{movementService: movementService}
}

// AddOperation handles POST /api/addOperationToAccount/{idAccount}. A
// replayed idempotency key answers 200 with the original movement.
func (h *MovementHandler) AddOperation(ctx *fasthttp.RequestCtx) {
	var req models.MovementRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		utils.LogWarning("MovementHandler", "Malformed movement body: %v", err)
		writeValidationError(ctx, []ValidationError{{Message: "invalid request body", Type: "json"}})
		return
	}
	if details := validateRequest(req); details != nil {
		writeValidationError(ctx, details)
		return
	}

	movement, replayed, err := h.movementService.Dispatch(ctx, pathParam(ctx, "idAccount"), req.ToMovement())
	if err != nil {
		writeError(ctx, err)
		return
	}

	status := fasthttp.StatusCreated
	if replayed {
		status = fasthttp.StatusOK
	}
	writeJSON(ctx, status, movement)
}
