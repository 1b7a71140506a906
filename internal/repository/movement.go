package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"bank-accounts/internal/models"
	"bank-accounts/internal/utils"
)

const movementColumns = `id_account, id_movement, operation, movement_type, moneda, monto::text,
	source_account, target_account, COALESCE(idempotency_key, ''), creation_datetime`

// loadMovements returns the stored history of each account in insertion order.
func loadMovements(ctx context.Context, q querier, accountIDs []string) (map[string][]models.Movement, error) {
	rows, err := q.Query(ctx,
		`SELECT `+movementColumns+` FROM bank_movements WHERE id_account = ANY($1) ORDER BY seq`,
		accountIDs,
	)
	if err != nil {
		return nil, unavailable("load movements", err)
	}
	defer rows.Close()

	history := make(map[string][]models.Movement, len(accountIDs))
	for rows.Next() {
		var owner string
		movement, err := scanMovement(rows, &owner)
		if err != nil {
			return nil, unavailable("scan movement", err)
		}
		history[owner] = append(history[owner], *movement)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load movements", err)
	}
	return history, nil
}

func insertMovement(ctx context.Context, q querier, accountID string, movement models.Movement) error {
	query := `
		INSERT INTO bank_movements (
			id_movement, id_account, operation, movement_type, moneda, monto,
			source_account, target_account, idempotency_key, creation_datetime
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, NULLIF($9, ''), $10)
	`

	utils.LogDB("INSERT MOVEMENT", "id=%s account=%s amount=%s", movement.IDMovement, accountID, movement.Amount)

	_, err := q.Exec(ctx, query,
		movement.IDMovement,
		accountID,
		movement.Operation,
		movement.MovementType,
		movement.Currency,
		movement.Amount.String(),
		movement.SourceAccount,
		movement.TargetAccount,
		movement.IdempotencyKey,
		movement.CreationDatetime,
	)
	if err != nil {
		return classify(fmt.Sprintf("insert movement %s", movement.IDMovement), err)
	}
	return nil
}

func scanMovement(row pgx.Row, owner *string) (*models.Movement, error) {
	var (
		movement models.Movement
		amount   string
	)
	err := row.Scan(
		owner,
		&movement.IDMovement,
		&movement.Operation,
		&movement.MovementType,
		&movement.Currency,
		&amount,
		&movement.SourceAccount,
		&movement.TargetAccount,
		&movement.IdempotencyKey,
		&movement.CreationDatetime,
	)
	if err != nil {
		return nil, err
	}

	movement.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &movement, nil
}
