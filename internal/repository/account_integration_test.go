//go:build integration

package repository_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"bank-accounts/internal/models"
	"bank-accounts/internal/repository"
	"bank-accounts/internal/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *repository.AccountRepository
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = repository.NewAccountRepository(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Reset(s.ctx))
}

func newAccount(id, accountType, customer, product, number string, balance int64) *models.Account {
	return &models.Account{
		IDAccount:        id,
		AccountType:      accountType,
		IDProduct:        product,
		IDCustomer:       customer,
		AccountNumber:    number,
		CCI:              "000" + number + "000",
		AvailableBalance: decimal.NewFromInt(balance),
		HolderAccount:    []models.Person{{Name: "Ana", DocumentID: "12345678"}},
		CreationDatetime: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	account := newAccount("A0001", models.AccountTypePersonal, "C1", "P001", "00000000000001", 100)
	account.AvailableBalance = decimal.RequireFromString("100.25")
	s.Require().NoError(s.store.Create(s.ctx, account))

	got, err := s.store.FindByID(s.ctx, "A0001")
	s.Require().NoError(err)
	s.Equal("C1", got.IDCustomer)
	s.True(got.AvailableBalance.Equal(decimal.RequireFromString("100.25")))
	s.Equal(account.HolderAccount, got.HolderAccount)
	s.NotNil(got.AuthorizedSigner)
	s.NotNil(got.BankMovements)
	s.Nil(got.UpdateDatetime)

	byNumber, err := s.store.FindByAccountNumber(s.ctx, "00000000000001")
	s.Require().NoError(err)
	s.Equal("A0001", byNumber.IDAccount)

	_, err = s.store.FindByID(s.ctx, "A0404")
	s.ErrorIs(err, repository.ErrAccountNotFound)
}

func (s *PostgresStoreSuite) TestUniqueConstraintsAreClassified() {
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0001", models.AccountTypePersonal, "C1", "P001", "00000000000001", 0)))

	err := s.store.Create(s.ctx, newAccount("A0002", models.AccountTypePersonal, "C2", "P001", "00000000000001", 0))
	s.ErrorIs(err, repository.ErrDuplicateAccountNumber)

	err = s.store.Create(s.ctx, newAccount("A0003", models.AccountTypePersonal, "C1", "P001", "00000000000003", 0))
	s.ErrorIs(err, repository.ErrDuplicateCustomerProduct)

	err = s.store.Create(s.ctx, newAccount("A0001", models.AccountTypePersonal, "C9", "P002", "00000000000009", 0))
	s.ErrorIs(err, repository.ErrDuplicateAccount)

	s.NoError(s.store.Create(s.ctx, newAccount("A0004", models.AccountTypeBusiness, "B1", "P002", "00000000000004", 0)))
	s.NoError(s.store.Create(s.ctx, newAccount("A0005", models.AccountTypeBusiness, "B1", "P002", "00000000000005", 0)))
}

func (s *PostgresStoreSuite) TestNextSequenceIsUniqueUnderConcurrency() {
	const callers = 20
	seen := sync.Map{}
	var dupes atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.store.NextSequence(s.ctx)
			s.NoError(err)
			if _, loaded := seen.LoadOrStore(n, true); loaded {
				dupes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Zero(dupes.Load())
}

func (s *PostgresStoreSuite) TestMovementsPersistWithinTx() {
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0001", models.AccountTypePersonal, "C1", "P001", "00000000000001", 100)))
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0002", models.AccountTypePersonal, "C2", "P001", "00000000000002", 50)))
	at := time.Now().UTC().Truncate(time.Microsecond)

	err := s.store.WithinTx(s.ctx, func(tx repository.Tx) error {
		locked, err := tx.LockAccounts(s.ctx, "A0002", "A0001")
		if err != nil {
			return err
		}
		from, to := locked["A0001"], locked["A0002"]
		from.AvailableBalance = decimal.NewFromInt(70)
		to.AvailableBalance = decimal.NewFromInt(80)
		from.UpdateDatetime, to.UpdateDatetime = &at, &at

		if err := tx.ApplyMovement(s.ctx, from, models.Movement{
			IDMovement: "m-debit", Operation: "TRANSFER_MONEY", Amount: decimal.NewFromInt(-30),
			TargetAccount: "00000000000002", IdempotencyKey: "idem-1", CreationDatetime: at,
		}); err != nil {
			return err
		}
		return tx.ApplyMovement(s.ctx, to, models.Movement{
			IDMovement: "m-credit", Operation: "TRANSFER_MONEY", Amount: decimal.NewFromInt(30),
			TargetAccount: "00000000000002", CreationDatetime: at,
		})
	})
	s.Require().NoError(err)

	from, err := s.store.FindByID(s.ctx, "A0001")
	s.Require().NoError(err)
	s.True(from.AvailableBalance.Equal(decimal.NewFromInt(70)))
	s.Require().Len(from.BankMovements, 1)
	s.True(from.BankMovements[0].Amount.Equal(decimal.NewFromInt(-30)))
	s.Equal("idem-1", from.BankMovements[0].IdempotencyKey)

	to, err := s.store.FindByID(s.ctx, "A0002")
	s.Require().NoError(err)
	s.True(to.AvailableBalance.Equal(decimal.NewFromInt(80)))
	s.Require().Len(to.BankMovements, 1)
	s.Empty(to.BankMovements[0].IdempotencyKey)

	err = s.store.WithinTx(s.ctx, func(tx repository.Tx) error {
		m, err := tx.FindMovementByIdempotencyKey(s.ctx, "A0001", "idem-1")
		s.Require().NoError(err)
		s.Equal("m-debit", m.IDMovement)

		_, err = tx.FindMovementByIdempotencyKey(s.ctx, "A0001", "idem-2")
		s.ErrorIs(err, repository.ErrMovementNotFound)
		return nil
	})
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestNegativeBalanceIsRejectedByTheSchema() {
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0001", models.AccountTypePersonal, "C1", "P001", "00000000000001", 10)))

	err := s.store.WithinTx(s.ctx, func(tx repository.Tx) error {
		locked, err := tx.LockAccounts(s.ctx, "A0001")
		if err != nil {
			return err
		}
		account := locked["A0001"]
		account.AvailableBalance = decimal.NewFromInt(-1)
		return tx.ApplyMovement(s.ctx, account, models.Movement{IDMovement: "m1", Amount: decimal.NewFromInt(-11)})
	})
	s.ErrorIs(err, repository.ErrConstraintViolation)

	got, err := s.store.FindByID(s.ctx, "A0001")
	s.Require().NoError(err)
	s.True(got.AvailableBalance.Equal(decimal.NewFromInt(10)))
	s.Empty(got.BankMovements)
}

func (s *PostgresStoreSuite) TestDeleteCascadesMovements() {
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0001", models.AccountTypePersonal, "C1", "P001", "00000000000001", 10)))
	s.Require().NoError(s.store.WithinTx(s.ctx, func(tx repository.Tx) error {
		locked, err := tx.LockAccounts(s.ctx, "A0001")
		if err != nil {
			return err
		}
		return tx.ApplyMovement(s.ctx, locked["A0001"], models.Movement{IDMovement: "m1", Amount: decimal.NewFromInt(5)})
	}))

	s.Require().NoError(s.store.Delete(s.ctx, "A0001"))
	s.ErrorIs(s.store.Delete(s.ctx, "A0001"), repository.ErrAccountNotFound)

	var left int
	s.Require().NoError(s.postgres.Pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM bank_movements").Scan(&left))
	s.Zero(left)
}

func (s *PostgresStoreSuite) TestFindByCustomerAndCount() {
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0001", models.AccountTypePersonal, "C1", "P001", "00000000000001", 0)))
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0002", models.AccountTypePersonal, "C1", "P002", "00000000000002", 0)))
	s.Require().NoError(s.store.Create(s.ctx, newAccount("A0003", models.AccountTypePersonal, "C2", "P001", "00000000000003", 0)))

	accounts, err := s.store.FindByCustomer(s.ctx, "C1")
	s.Require().NoError(err)
	s.Len(accounts, 2)

	all, err := s.store.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)

	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	exists, err := s.store.ExistsByCustomerAndProduct(s.ctx, "C2", "P001")
	s.Require().NoError(err)
	s.True(exists)
}
