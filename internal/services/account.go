package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-accounts/internal/cache"
	"bank-accounts/internal/metrics"
	"bank-accounts/internal/models"
	"bank-accounts/internal/repository"
	"bank-accounts/internal/utils"
)

type AccountService struct {
	store   AccountStore
	ids     *IdentifierGenerator
	cache   accountCache
	metrics *metrics.Metrics
	now     func() time.Time
	log     utils.Logger
}

func NewAccountService(store AccountStore, m *metrics.Metrics) *AccountService {
	return &AccountService{
		store:   store,
		ids:     NewIdentifierGenerator(store),
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		log:     utils.NewLogger("AccountService"),
	}
}

func NewAccountServiceWithCache(store AccountStore, c AccountCache, m *metrics.Metrics) *AccountService {
	s := NewAccountService(store, m)
	s.cache = accountCache{cache: c}
	return s
}

// OpenAccount validates account against the opening rules, assigns it an
// identifier and persists it with an empty movement history.
func (s *AccountService) OpenAccount(ctx context.Context, account models.Account) (*models.Account, error) {
	s.log.Info("Opening %s account for customer %s (product %s)", account.AccountType, account.IDCustomer, account.IDProduct)

	if err := s.validateOpening(ctx, &account); err != nil {
		s.reject(account, err)
		return nil, err
	}

	id, err := s.ids.Next(ctx)
	if err != nil {
		s.log.Error("Could not reserve an account id", err)
		return nil, err
	}

	account.IDAccount = id
	account.CreationDatetime = s.now()
	account.UpdateDatetime = nil
	account.BankMovements = []models.Movement{}
	account.HolderAccount = persons(account.HolderAccount)
	account.AuthorizedSigner = persons(account.AuthorizedSigner)

	if err := s.store.Create(ctx, &account); err != nil {
		err = createErr(err, account)
		s.reject(account, err)
		return nil, err
	}

	s.cache.invalidate(ctx, &account)
	s.metrics.AccountOpened(account.AccountType)
	s.log.Success("Account %s opened for customer %s (balance %s)", account.IDAccount, account.IDCustomer, account.AvailableBalance)

	return &account, nil
}

func (s *AccountService) validateOpening(ctx context.Context, account *models.Account) error {
	if account.AvailableBalance.IsNegative() || !models.FitsMoneyScale(account.AvailableBalance) {
		return fmt.Errorf("%w: opening balance %s", ErrInvalidAmount, account.AvailableBalance)
	}

	if account.IsBusiness() {
		if err := validateBusinessParties(account.HolderAccount, account.AuthorizedSigner); err != nil {
			return err
		}
		if account.IDProduct == models.ProductSavings || account.IDProduct == models.ProductFixedTerm {
			return fmt.Errorf("%w: %s", ErrInvalidProductForBusiness, account.IDProduct)
		}
		return nil
	}

	exists, err := s.store.ExistsByCustomerAndProduct(ctx, account.IDCustomer, account.IDProduct)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: customer %s already has product %s", ErrDuplicateAccountType, account.IDCustomer, account.IDProduct)
	}
	return nil
}

func validateBusinessParties(holders, signers []models.Person) error {
	if len(holders) == 0 {
		return ErrMissingHolder
	}
	if len(signers) > models.MaxBusinessSigners {
		return fmt.Errorf("%w: got %d", ErrTooManySigners, len(signers))
	}
	return nil
}

func (s *AccountService) reject(account models.Account, err error) {
	if errors.Is(err, ErrStoreUnavailable) {
		s.log.Error("Opening for customer "+account.IDCustomer+" failed", err)
		return
	}
	s.log.Warning("Opening rejected for customer %s: %v", account.IDCustomer, err)
	s.metrics.OpeningRejected(rejectionReason(err))
}

func createErr(err error, account models.Account) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateCustomerProduct):
		return fmt.Errorf("%w: customer %s already has product %s", ErrDuplicateAccountType, account.IDCustomer, account.IDProduct)
	case errors.Is(err, repository.ErrDuplicateAccountNumber):
		return fmt.Errorf("%w: %s", ErrDuplicateAccountNumber, account.AccountNumber)
	}
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingHolder):
		return "missing_holder"
	case errors.Is(err, ErrTooManySigners):
		return "too_many_signers"
	case errors.Is(err, ErrInvalidProductForBusiness):
		return "invalid_product_for_business"
	case errors.Is(err, ErrDuplicateAccountType):
		return "duplicate_account_type"
	case errors.Is(err, ErrDuplicateAccountNumber):
		return "duplicate_account_number"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	}
	return "other"
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	key := cache.AccountKey(id)

	var cached models.Account
	if s.cache.get(ctx, key, &cached) {
		cached.SortMovements()
		return &cached, nil
	}

	since := s.cache.generation()
	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, accountErr(err, id)
	}
	account.SortMovements()

	s.cache.set(ctx, key, account, cache.AccountTTL, since)
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.store.FindAll(ctx)
	if err != nil {
		s.log.Error("Listing accounts failed", err)
		return nil, err
	}
	for i := range accounts {
		accounts[i].SortMovements()
	}
	s.log.Debug("Listed %d accounts", len(accounts))
	return accounts, nil
}

func (s *AccountService) ListCustomerAccounts(ctx context.Context, idCustomer string) ([]models.Account, error) {
	key := cache.CustomerAccountsKey(idCustomer)

	var accounts []models.Account
	if !s.cache.get(ctx, key, &accounts) {
		since := s.cache.generation()
		var err error
		accounts, err = s.store.FindByCustomer(ctx, idCustomer)
		if err != nil {
			s.log.Error("Listing accounts of customer "+idCustomer+" failed", err)
			return nil, err
		}
		s.cache.set(ctx, key, accounts, cache.CustomerAccountsTTL, since)
	}

	for i := range accounts {
		accounts[i].SortMovements()
	}
	return accounts, nil
}

// CountAccounts reports how many accounts the store holds.
func (s *AccountService) CountAccounts(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// UpdateAccount replaces the balance and the parties of an account. The
// type, product, customer and numbers are fixed at opening.
func (s *AccountService) UpdateAccount(ctx context.Context, id string, req models.UpdateAccountRequest) (*models.Account, error) {
	s.log.Info("Updating account %s", id)

	if req.AvailableBalance.IsNegative() || !models.FitsMoneyScale(req.AvailableBalance) {
		return nil, fmt.Errorf("%w: balance %s", ErrInvalidAmount, req.AvailableBalance)
	}

	var updated *models.Account
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockAccounts(ctx, id)
		if err != nil {
			return accountErr(err, id)
		}
		account := locked[id]

		if account.IsBusiness() {
			if err := validateBusinessParties(req.HolderAccount, req.AuthorizedSigner); err != nil {
				return err
			}
		}

		at := s.now()
		account.AvailableBalance = req.AvailableBalance
		account.HolderAccount = persons(req.HolderAccount)
		account.AuthorizedSigner = persons(req.AuthorizedSigner)
		account.UpdateDatetime = &at

		if err := tx.UpdateAccount(ctx, account); err != nil {
			return err
		}

		updated, err = tx.FindByID(ctx, id)
		return err
	})
	if err != nil {
		s.log.Warning("Update of account %s rejected: %v", id, err)
		return nil, err
	}

	updated.SortMovements()
	s.cache.invalidate(ctx, updated)
	s.log.Success("Account %s updated (balance %s)", id, updated.AvailableBalance)

	return updated, nil
}

// DeleteAccount removes the account together with its movements and
// returns what was deleted.
func (s *AccountService) DeleteAccount(ctx context.Context, id string) (*models.Account, error) {
	s.log.Info("Deleting account %s", id)

	account, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, accountErr(err, id)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Error("Deleting account "+id+" failed", err)
		return nil, accountErr(err, id)
	}

	account.SortMovements()
	s.cache.invalidate(ctx, account)
	s.log.Success("Account %s deleted", id)

	return account, nil
}

func persons(p []models.Person) []models.Person {
	if p == nil {
		return []models.Person{}
	}
	return p
}
