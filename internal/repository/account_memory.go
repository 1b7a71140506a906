package repository

import (
	"context"
	"fmt"
	"sync"

	"bank-accounts/internal/models"
)

// MemoryAccountRepository keeps accounts in process memory. WithinTx holds
// the store mutex for the whole callback and publishes staged copies only
// on success, which gives the same all-or-nothing behaviour as the
// PostgreSQL store.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	order    []string
	seq      int64
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		accounts: make(map[string]*models.Account),
	}
}

func (r *MemoryAccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account.Clone(), nil
}

func (r *MemoryAccountRepository) FindAll(ctx context.Context) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]models.Account, 0, len(r.order))
	for _, id := range r.order {
		accounts = append(accounts, *r.accounts[id].Clone())
	}
	return accounts, nil
}

func (r *MemoryAccountRepository) FindByCustomer(ctx context.Context, idCustomer string) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := []models.Account{}
	for _, id := range r.order {
		if account := r.accounts[id]; account.IDCustomer == idCustomer {
			accounts = append(accounts, *account.Clone())
		}
	}
	return accounts, nil
}

func (r *MemoryAccountRepository) FindByAccountNumber(ctx context.Context, number string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account := r.byNumber(number, nil)
	if account == nil {
		return nil, fmt.Errorf("%w: account number %s", ErrAccountNotFound, number)
	}
	return account.Clone(), nil
}

func (r *MemoryAccountRepository) ExistsByCustomerAndProduct(ctx context.Context, idCustomer, idProduct string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, account := range r.accounts {
		if account.IDCustomer == idCustomer && account.IDProduct == idProduct {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAccountRepository) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return int64(len(r.accounts)), nil
}

// NextSequence never goes below the number of stored accounts, so a store
// seeded through Create keeps handing out fresh numbers.
func (r *MemoryAccountRepository) NextSequence(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if count := int64(len(r.accounts)); r.seq < count {
		r.seq = count
	}
	r.seq++
	return r.seq, nil
}

func (r *MemoryAccountRepository) Create(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.IDAccount]; ok {
		return ErrDuplicateAccount
	}
	if r.byNumber(account.AccountNumber, nil) != nil {
		return ErrDuplicateAccountNumber
	}
	if !account.IsBusiness() {
		for _, existing := range r.accounts {
			if !existing.IsBusiness() && existing.IDCustomer == account.IDCustomer && existing.IDProduct == account.IDProduct {
				return ErrDuplicateCustomerProduct
			}
		}
	}

	stored := account.Clone()
	stored.BankMovements = []models.Movement{}
	stored.HolderAccount = nonNilPersons(stored.HolderAccount)
	stored.AuthorizedSigner = nonNilPersons(stored.AuthorizedSigner)
	r.accounts[account.IDAccount] = stored
	r.order = append(r.order, account.IDAccount)
	return nil
}

func (r *MemoryAccountRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	delete(r.accounts, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryAccountRepository) WithinTx(ctx context.Context, fn func(Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{repo: r, staged: make(map[string]*models.Account)}
	if err := fn(tx); err != nil {
		return err
	}

	for id, account := range tx.staged {
		r.accounts[id] = account
	}
	return nil
}

// byNumber must be called with r.mu held.
func (r *MemoryAccountRepository) byNumber(number string, staged map[string]*models.Account) *models.Account {
	for id, account := range r.accounts {
		if s, ok := staged[id]; ok {
			account = s
		}
		if account.AccountNumber == number {
			return account
		}
	}
	return nil
}

type memTx struct {
	repo   *MemoryAccountRepository
	staged map[string]*models.Account
}

func (t *memTx) current(id string) (*models.Account, bool) {
	if account, ok := t.staged[id]; ok {
		return account, true
	}
	account, ok := t.repo.accounts[id]
	return account, ok
}

func (t *memTx) FindByID(ctx context.Context, id string) (*models.Account, error) {
	account, ok := t.current(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return account.Clone(), nil
}

func (t *memTx) FindByAccountNumber(ctx context.Context, number string) (*models.Account, error) {
	account := t.repo.byNumber(number, t.staged)
	if account == nil {
		return nil, fmt.Errorf("%w: account number %s", ErrAccountNotFound, number)
	}
	return account.Clone(), nil
}

func (t *memTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	locked := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		account, ok := t.current(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		c := account.Clone()
		c.BankMovements = nil
		locked[id] = c
	}
	return locked, nil
}

func (t *memTx) FindMovementByIdempotencyKey(ctx context.Context, accountID, key string) (*models.Movement, error) {
	account, ok := t.current(accountID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	for _, movement := range account.BankMovements {
		if movement.IdempotencyKey != "" && movement.IdempotencyKey == key {
			m := movement
			return &m, nil
		}
	}
	return nil, ErrMovementNotFound
}

func (t *memTx) UpdateAccount(ctx context.Context, account *models.Account) error {
	current, ok := t.current(account.IDAccount)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account.IDAccount)
	}
	next := current.Clone()
	next.AvailableBalance = account.AvailableBalance
	next.HolderAccount = nonNilPersons(append([]models.Person(nil), account.HolderAccount...))
	next.AuthorizedSigner = nonNilPersons(append([]models.Person(nil), account.AuthorizedSigner...))
	next.UpdateDatetime = account.UpdateDatetime
	t.staged[account.IDAccount] = next
	return nil
}

func (t *memTx) ApplyMovement(ctx context.Context, account *models.Account, movement models.Movement) error {
	current, ok := t.current(account.IDAccount)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account.IDAccount)
	}
	if account.AvailableBalance.IsNegative() {
		return fmt.Errorf("%w: negative balance on %s", ErrConstraintViolation, account.IDAccount)
	}
	next := current.Clone()
	next.AvailableBalance = account.AvailableBalance
	next.UpdateDatetime = account.UpdateDatetime
	next.BankMovements = append(next.BankMovements, movement)
	t.staged[account.IDAccount] = next
	return nil
}
