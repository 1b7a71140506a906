package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for balances and
// movement amounts.
const MoneyScale = 2

// FitsMoneyScale reports whether d can be stored without rounding.
func FitsMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// Operation is the closed set of movement kinds the dispatcher understands.
type Operation string

const (
	OperationTransferMoney Operation = "TRANSFER_MONEY"
	OperationPayService    Operation = "PAY_SERVICE"
	OperationDeposit       Operation = "DEPOSIT"
	OperationCollectDraft  Operation = "COLLECT_DRAFT"
)

var operations = map[Operation]struct{}{
	OperationTransferMoney: {},
	OperationPayService:    {},
	OperationDeposit:       {},
	OperationCollectDraft:  {},
}

// ParseOperation matches name case-insensitively against the operation set.
func ParseOperation(name string) (Operation, bool) {
	op := Operation(strings.ToUpper(strings.TrimSpace(name)))
	_, ok := operations[op]
	return op, ok
}

type Movement struct {
	IDMovement       string          `json:"idMovement"`
	Operation        string          `json:"operation"`
	MovementType     string          `json:"movementType,omitempty"`
	Currency         string          `json:"moneda,omitempty"`
	Amount           decimal.Decimal `json:"monto"`
	SourceAccount    string          `json:"sourceAccount,omitempty"`
	TargetAccount    string          `json:"targetAccount,omitempty"`
	IdempotencyKey   string          `json:"idempotencyKey,omitempty"`
	CreationDatetime time.Time       `json:"creationDatetime"`
}

type MovementRequest struct {
	Operation      string          `json:"operation" validate:"required"`
	MovementType   string          `json:"movementType"`
	Currency       string          `json:"moneda"`
	Amount         decimal.Decimal `json:"monto"`
	SourceAccount  string          `json:"sourceAccount"`
	TargetAccount  string          `json:"targetAccount"`
	IdempotencyKey string          `json:"idempotencyKey" validate:"omitempty,max=64"`
}

func (r MovementRequest) ToMovement() Movement {
	return Movement{
		Operation:      r.Operation,
		MovementType:   r.MovementType,
		Currency:       r.Currency,
		Amount:         r.Amount,
		SourceAccount:  r.SourceAccount,
		TargetAccount:  r.TargetAccount,
		IdempotencyKey: r.IdempotencyKey,
	}
}
