package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bank-accounts/internal/events"
	"bank-accounts/internal/metrics"
	"bank-accounts/internal/models"
	"bank-accounts/internal/repository"
	"bank-accounts/internal/utils"
)

// MovementService applies movements to accounts. Every decision and write
// of one movement runs in a single store transaction over row-locked
// accounts, so concurrent movements on an account serialize and a transfer
// lands on both accounts or on neither.
type MovementService struct {
	store   AccountStore
	emitter events.Emitter
	topic   string
	cache   accountCache
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
	log     utils.Logger
}

func NewMovementService(store AccountStore, emitter events.Emitter, topic string, m *metrics.Metrics) *MovementService {
	if emitter == nil {
		emitter = events.LogEmitter{}
	}
	if topic == "" {
		topic = events.DefaultMovementsTopic
	}
	return &MovementService{
		store:   store,
		emitter: emitter,
		topic:   topic,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
		log:     utils.NewLogger("MovementService"),
	}
}

func NewMovementServiceWithCache(store AccountStore, emitter events.Emitter, topic string, c AccountCache, m *metrics.Metrics) *MovementService {
	s := NewMovementService(store, emitter, topic, m)
	s.cache = accountCache{cache: c}
	return s
}

// Dispatch applies movement to the account identified by accountID and
// returns the movement recorded on it. replayed is true when the
// idempotency key matched an earlier movement, which is returned as is.
func (s *MovementService) Dispatch(ctx context.Context, accountID string, movement models.Movement) (result models.Movement, replayed bool, err error) {
	movement.IDMovement = s.newID()
	movement.MovementType = strings.ToUpper(movement.MovementType)
	movement.CreationDatetime = s.now()

	label := "UNKNOWN"
	if op, ok := models.ParseOperation(movement.Operation); ok {
		label = string(op)
	}

	s.log.Info("Dispatching %s of %s on account %s", movement.Operation, movement.Amount, accountID)

	var touched []*models.Account
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		source, err := tx.FindByID(ctx, accountID)
		if err != nil {
			return accountErr(err, accountID)
		}

		op, ok := models.ParseOperation(movement.Operation)
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidOperation, movement.Operation)
		}
		movement.Operation = string(op)

		switch op {
		case models.OperationTransferMoney:
			result, touched, replayed, err = s.transfer(ctx, tx, source, movement)
		case models.OperationCollectDraft:
			result, touched, replayed, err = s.withdraw(ctx, tx, source, movement)
		case models.OperationDeposit:
			result, touched, replayed, err = s.deposit(ctx, tx, source, movement)
		case models.OperationPayService:
			return fmt.Errorf("%w: %s", ErrUnsupportedOperation, op)
		default:
			return fmt.Errorf("%w: %s", ErrInvalidOperation, op)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			s.log.Error("Movement on account "+accountID+" failed", err)
		} else {
			s.log.Warning("Movement on account %s rejected: %v", accountID, err)
		}
		s.metrics.Movement(label, metrics.OutcomeRejected)
		return models.Movement{}, false, err
	}

	if replayed {
		s.log.Info("Idempotency key %q on account %s already applied as %s", movement.IdempotencyKey, accountID, result.IDMovement)
		s.metrics.Movement(label, metrics.OutcomeReplayed)
		return result, true, nil
	}

	s.cache.invalidate(ctx, touched...)
	if err := s.emitter.Publish(ctx, s.topic, result); err != nil {
		s.log.Error("Publishing movement "+result.IDMovement+" failed", err)
		s.metrics.PublishFailed(err)
	}

	s.metrics.Movement(label, metrics.OutcomeAccepted)
	s.log.Success("Movement %s applied to account %s (%s %s)", result.IDMovement, accountID, result.Operation, result.Amount)

	return result, false, nil
}

func (s *MovementService) withdraw(ctx context.Context, tx repository.Tx, source *models.Account, movement models.Movement) (models.Movement, []*models.Account, bool, error) {
	account, err := s.lockOne(ctx, tx, source.IDAccount)
	if err != nil {
		return models.Movement{}, nil, false, err
	}
	if prior, ok, err := replay(ctx, tx, account.IDAccount, movement.IdempotencyKey); err != nil || ok {
		return prior, nil, ok, err
	}
	if err := checkAmount(movement); err != nil {
		return models.Movement{}, nil, false, err
	}

	debit, err := applyWithdrawal(account, movement, s.now())
	if err != nil {
		return models.Movement{}, nil, false, err
	}
	if err := tx.ApplyMovement(ctx, account, debit); err != nil {
		return models.Movement{}, nil, false, err
	}
	return debit, []*models.Account{account}, false, nil
}

func (s *MovementService) deposit(ctx context.Context, tx repository.Tx, source *models.Account, movement models.Movement) (models.Movement, []*models.Account, bool, error) {
	account, err := s.lockOne(ctx, tx, source.IDAccount)
	if err != nil {
		return models.Movement{}, nil, false, err
	}
	if prior, ok, err := replay(ctx, tx, account.IDAccount, movement.IdempotencyKey); err != nil || ok {
		return prior, nil, ok, err
	}
	if err := checkAmount(movement); err != nil {
		return models.Movement{}, nil, false, err
	}

	credit := applyDeposit(account, movement, s.now())
	if err := tx.ApplyMovement(ctx, account, credit); err != nil {
		return models.Movement{}, nil, false, err
	}
	return credit, []*models.Account{account}, false, nil
}

// transfer resolves the destination before taking any lock so that both
// rows can be locked in one ordered statement.
func (s *MovementService) transfer(ctx context.Context, tx repository.Tx, source *models.Account, movement models.Movement) (models.Movement, []*models.Account, bool, error) {
	dest, err := tx.FindByAccountNumber(ctx, movement.TargetAccount)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Movement{}, nil, false, fmt.Errorf("%w: %s", ErrDestinationNotFound, movement.TargetAccount)
		}
		return models.Movement{}, nil, false, err
	}
	if dest.IDAccount == source.IDAccount {
		return models.Movement{}, nil, false, fmt.Errorf("%w: %s", ErrSelfTransfer, source.IDAccount)
	}

	locked, err := tx.LockAccounts(ctx, source.IDAccount, dest.IDAccount)
	if err != nil {
		return models.Movement{}, nil, false, s.lockErr(ctx, tx, err, source.IDAccount, movement.TargetAccount)
	}
	from, to := locked[source.IDAccount], locked[dest.IDAccount]

	if prior, ok, err := replay(ctx, tx, from.IDAccount, movement.IdempotencyKey); err != nil || ok {
		return prior, nil, ok, err
	}
	if err := checkAmount(movement); err != nil {
		return models.Movement{}, nil, false, err
	}

	debit, credit, err := applyTransfer(from, to, movement, s.newID(), s.now())
	if err != nil {
		return models.Movement{}, nil, false, err
	}
	if err := tx.ApplyMovement(ctx, from, debit); err != nil {
		return models.Movement{}, nil, false, err
	}
	if err := tx.ApplyMovement(ctx, to, credit); err != nil {
		return models.Movement{}, nil, false, err
	}
	return debit, []*models.Account{from, to}, false, nil
}

func (s *MovementService) lockOne(ctx context.Context, tx repository.Tx, id string) (*models.Account, error) {
	locked, err := tx.LockAccounts(ctx, id)
	if err != nil {
		return nil, accountErr(err, id)
	}
	return locked[id], nil
}

// lockErr reports an account deleted between lookup and lock.
func (s *MovementService) lockErr(ctx context.Context, tx repository.Tx, err error, sourceID, target string) error {
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return err
	}
	if _, findErr := tx.FindByID(ctx, sourceID); findErr != nil {
		return accountErr(findErr, sourceID)
	}
	return fmt.Errorf("%w: %s", ErrDestinationNotFound, target)
}

func replay(ctx context.Context, tx repository.Tx, accountID, key string) (models.Movement, bool, error) {
	if key == "" {
		return models.Movement{}, false, nil
	}
	prior, err := tx.FindMovementByIdempotencyKey(ctx, accountID, key)
	if err != nil {
		if errors.Is(err, repository.ErrMovementNotFound) {
			return models.Movement{}, false, nil
		}
		return models.Movement{}, false, err
	}
	return *prior, true, nil
}

func checkAmount(movement models.Movement) error {
	if !movement.Amount.IsPositive() || !models.FitsMoneyScale(movement.Amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, movement.Amount)
	}
	return nil
}

// applyWithdrawal debits account and returns the movement to record, with
// a negative amount.
func applyWithdrawal(account *models.Account, movement models.Movement, at time.Time) (models.Movement, error) {
	if account.AvailableBalance.LessThan(movement.Amount) {
		return models.Movement{}, fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientFunds, account.IDAccount, account.AvailableBalance, movement.Amount)
	}
	account.AvailableBalance = account.AvailableBalance.Sub(movement.Amount)
	account.UpdateDatetime = &at

	movement.Amount = movement.Amount.Neg()
	return movement, nil
}

func applyDeposit(account *models.Account, movement models.Movement, at time.Time) models.Movement {
	account.AvailableBalance = account.AvailableBalance.Add(movement.Amount)
	account.UpdateDatetime = &at
	return movement
}

// applyTransfer moves the amount from source to dest. The credit side is a
// copy of the movement with its own id and timestamp.
func applyTransfer(source, dest *models.Account, movement models.Movement, creditID string, at time.Time) (debit, credit models.Movement, err error) {
	if source.AvailableBalance.LessThan(movement.Amount) {
		return debit, credit, fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientFunds, source.IDAccount, source.AvailableBalance, movement.Amount)
	}

	credit = movement
	credit.IDMovement = creditID
	credit.IdempotencyKey = ""
	credit.CreationDatetime = at

	debit = movement
	debit.Amount = movement.Amount.Neg()

	source.AvailableBalance = source.AvailableBalance.Sub(movement.Amount)
	dest.AvailableBalance = dest.AvailableBalance.Add(movement.Amount)
	source.UpdateDatetime = &at
	dest.UpdateDatetime = &at

	return debit, credit, nil
}
