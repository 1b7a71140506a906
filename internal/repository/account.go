package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"bank-accounts/internal/models"
	"bank-accounts/internal/utils"
)

var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrMovementNotFound         = errors.New("movement not found")
	ErrDuplicateAccount         = errors.New("account id already exists")
	ErrDuplicateAccountNumber   = errors.New("account number already exists")
	ErrDuplicateCustomerProduct = errors.New("customer already holds an account for this product")
	ErrConstraintViolation      = errors.New("constraint violation")
	ErrStoreUnavailable         = errors.New("account store unavailable")
)

const (
	constraintAccountPK       = "accounts_pkey"
	constraintAccountNumber   = "accounts_account_number_key"
	constraintCustomerProduct = "accounts_personal_customer_product_idx"
	pgUniqueViolation         = "23505"
	pgCheckViolation          = "23514"
)

const accountColumns = `id_account, account_type, id_product, id_customer, account_number, cci,
	available_balance::text, holder_account, authorized_signer, creation_datetime, update_datetime`

// Tx is the view of the store handed to code running inside WithinTx.
// Every read and write goes through the same transaction; LockAccounts
// holds row locks until commit or rollback.
type Tx interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByAccountNumber(ctx context.Context, number string) (*models.Account, error)
	// LockAccounts locks the given accounts in id order and returns them
	// keyed by id, without their movement history.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)
	FindMovementByIdempotencyKey(ctx context.Context, accountID, key string) (*models.Movement, error)
	UpdateAccount(ctx context.Context, account *models.Account) error
	// ApplyMovement stores the account's new balance and appends movement
	// to its history.
	ApplyMovement(ctx context.Context, account *models.Account, movement models.Movement) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	utils.LogSuccess("AccountRepo", "PostgreSQL account store initialised")
	return &AccountRepository{db: db}
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return findByID(ctx, r.db, id)
}

func (r *AccountRepository) FindAll(ctx context.Context) ([]models.Account, error) {
	return queryAccounts(ctx, r.db, `SELECT `+accountColumns+` FROM accounts ORDER BY creation_datetime, id_account`)
}

func (r *AccountRepository) FindByCustomer(ctx context.Context, idCustomer string) ([]models.Account, error) {
	return queryAccounts(ctx, r.db,
		`SELECT `+accountColumns+` FROM accounts WHERE id_customer = $1 ORDER BY creation_datetime, id_account`,
		idCustomer)
}

func (r *AccountRepository) FindByAccountNumber(ctx context.Context, number string) (*models.Account, error) {
	return findByAccountNumber(ctx, r.db, number)
}

func (r *AccountRepository) ExistsByCustomerAndProduct(ctx context.Context, idCustomer, idProduct string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM accounts WHERE id_customer = $1 AND id_product = $2)",
		idCustomer, idProduct,
	).Scan(&exists)
	if err != nil {
		return false, unavailable("check customer product", err)
	}
	return exists, nil
}

func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return 0, unavailable("count accounts", err)
	}
	return count, nil
}

// NextSequence draws from a database sequence, so concurrent openings
// never receive the same number.
func (r *AccountRepository) NextSequence(ctx context.Context) (int64, error) {
	var next int64
	if err := r.db.QueryRow(ctx, "SELECT nextval('account_id_seq')").Scan(&next); err != nil {
		return 0, unavailable("next account sequence", err)
	}
	return next, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (
			id_account, account_type, id_product, id_customer, account_number, cci,
			available_balance, holder_account, authorized_signer, creation_datetime
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)
	`

	utils.LogDB("CREATE ACCOUNT", "id=%s customer=%s product=%s", account.IDAccount, account.IDCustomer, account.IDProduct)

	_, err := r.db.Exec(ctx, query,
		account.IDAccount,
		account.AccountType,
		account.IDProduct,
		account.IDCustomer,
		account.AccountNumber,
		account.CCI,
		account.AvailableBalance.String(),
		nonNilPersons(account.HolderAccount),
		nonNilPersons(account.AuthorizedSigner),
		account.CreationDatetime,
	)
	if err != nil {
		return classify("create account", err)
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	utils.LogDB("DELETE ACCOUNT", "id=%s", id)

	result, err := r.db.Exec(ctx, "DELETE FROM accounts WHERE id_account = $1", id)
	if err != nil {
		return unavailable("delete account", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return nil
}

// WithinTx runs fn in a single database transaction. The transaction is
// committed only when fn returns nil.
func (r *AccountRepository) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

func (t *pgTx) FindByID(ctx context.Context, id string) (*models.Account, error) {
	return findByID(ctx, t.q, id)
}

func (t *pgTx) FindByAccountNumber(ctx context.Context, number string) (*models.Account, error) {
	return findByAccountNumber(ctx, t.q, number)
}

func (t *pgTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	rows, err := t.q.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id_account = ANY($1) ORDER BY id_account FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, unavailable("lock accounts", err)
	}
	defer rows.Close()

	locked := make(map[string]*models.Account, len(ids))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, unavailable("scan locked account", err)
		}
		locked[account.IDAccount] = account
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("lock accounts", err)
	}

	for _, id := range ids {
		if _, ok := locked[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
	}
	return locked, nil
}

func (t *pgTx) FindMovementByIdempotencyKey(ctx context.Context, accountID, key string) (*models.Movement, error) {
	row := t.q.QueryRow(ctx,
		`SELECT `+movementColumns+` FROM bank_movements WHERE id_account = $1 AND idempotency_key = $2`,
		accountID, key,
	)

	var owner string
	movement, err := scanMovement(row, &owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMovementNotFound
		}
		return nil, unavailable("find movement by idempotency key", err)
	}
	return movement, nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, account *models.Account) error {
	utils.LogDB("UPDATE ACCOUNT", "id=%s balance=%s", account.IDAccount, account.AvailableBalance)

	result, err := t.q.Exec(ctx, `
		UPDATE accounts
		SET available_balance = $2::numeric, holder_account = $3, authorized_signer = $4, update_datetime = $5
		WHERE id_account = $1
	`,
		account.IDAccount,
		account.AvailableBalance.String(),
		nonNilPersons(account.HolderAccount),
		nonNilPersons(account.AuthorizedSigner),
		account.UpdateDatetime,
	)
	if err != nil {
		return classify("update account", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account.IDAccount)
	}
	return nil
}

func (t *pgTx) ApplyMovement(ctx context.Context, account *models.Account, movement models.Movement) error {
	result, err := t.q.Exec(ctx,
		"UPDATE accounts SET available_balance = $2::numeric, update_datetime = $3 WHERE id_account = $1",
		account.IDAccount, account.AvailableBalance.String(), account.UpdateDatetime,
	)
	if err != nil {
		return classify("update balance", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, account.IDAccount)
	}

	return insertMovement(ctx, t.q, account.IDAccount, movement)
}

func findByID(ctx context.Context, q querier, id string) (*models.Account, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id_account = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return nil, unavailable("find account", err)
	}
	if err := attachMovements(ctx, q, account); err != nil {
		return nil, err
	}
	return account, nil
}

func findByAccountNumber(ctx context.Context, q querier, number string) (*models.Account, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account number %s", ErrAccountNotFound, number)
		}
		return nil, unavailable("find account by number", err)
	}
	if err := attachMovements(ctx, q, account); err != nil {
		return nil, err
	}
	return account, nil
}

func queryAccounts(ctx context.Context, q querier, query string, args ...any) ([]models.Account, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list accounts", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, unavailable("scan account", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list accounts", err)
	}

	if len(accounts) == 0 {
		return accounts, nil
	}

	ids := make([]string, len(accounts))
	for i := range accounts {
		ids[i] = accounts[i].IDAccount
	}
	history, err := loadMovements(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		accounts[i].BankMovements = nonNilMovements(history[accounts[i].IDAccount])
	}
	return accounts, nil
}

func attachMovements(ctx context.Context, q querier, account *models.Account) error {
	history, err := loadMovements(ctx, q, []string{account.IDAccount})
	if err != nil {
		return err
	}
	account.BankMovements = nonNilMovements(history[account.IDAccount])
	return nil
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account models.Account
		balance string
		updated *time.Time
	)
	err := row.Scan(
		&account.IDAccount,
		&account.AccountType,
		&account.IDProduct,
		&account.IDCustomer,
		&account.AccountNumber,
		&account.CCI,
		&balance,
		&account.HolderAccount,
		&account.AuthorizedSigner,
		&account.CreationDatetime,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	account.AvailableBalance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	account.UpdateDatetime = updated
	account.HolderAccount = nonNilPersons(account.HolderAccount)
	account.AuthorizedSigner = nonNilPersons(account.AuthorizedSigner)
	return &account, nil
}

// classify turns driver errors into the package's sentinel errors.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintAccountNumber:
				return ErrDuplicateAccountNumber
			case constraintCustomerProduct:
				return ErrDuplicateCustomerProduct
			case constraintAccountPK:
				return ErrDuplicateAccount
			}
			return fmt.Errorf("%w: %s: %s", ErrConstraintViolation, op, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s: %s", ErrConstraintViolation, op, pgErr.ConstraintName)
		}
	}
	return unavailable(op, err)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func nonNilPersons(p []models.Person) []models.Person {
	if p == nil {
		return []models.Person{}
	}
	return p
}

func nonNilMovements(m []models.Movement) []models.Movement {
	if m == nil {
		return []models.Movement{}
	}
	return m
}
