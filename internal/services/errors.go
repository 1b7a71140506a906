package services

import (
	"errors"
	"fmt"

	"bank-accounts/internal/repository"
)

var (
	ErrAccountNotFound           = errors.New("account not found")
	ErrDestinationNotFound       = errors.New("destination account not found")
	ErrDuplicateAccountType      = errors.New("a personal customer may hold only one account per product")
	ErrDuplicateAccountNumber    = errors.New("account number already in use")
	ErrMissingHolder             = errors.New("a business account needs at least one holder")
	ErrTooManySigners            = errors.New("a business account allows at most 4 authorized signers")
	ErrInvalidProductForBusiness = errors.New("a business customer cannot hold a savings or fixed-term account")
	ErrInvalidOperation          = errors.New("invalid operation")
	ErrUnsupportedOperation      = errors.New("operation not supported")
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrInvalidAmount             = errors.New("amount must be positive with at most two decimals")
	ErrSelfTransfer              = errors.New("source and destination accounts are the same")

	// ErrStoreUnavailable is surfaced unchanged from the store.
	ErrStoreUnavailable = repository.ErrStoreUnavailable
)

// accountErr maps a store lookup failure for id to the service taxonomy.
func accountErr(err error, id string) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return err
}
