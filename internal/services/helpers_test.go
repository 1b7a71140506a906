package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bank-accounts/internal/metrics"
	"bank-accounts/internal/models"
	"bank-accounts/internal/repository"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// tickingClock returns a strictly increasing time on every call.
func tickingClock() func() time.Time {
	var ticks atomic.Int64
	return func() time.Time {
		return epoch.Add(time.Duration(ticks.Add(1)) * time.Second)
	}
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

type recordingEmitter struct {
	mu        sync.Mutex
	topics    []string
	published []models.Movement
	err       error
}

func (e *recordingEmitter) Publish(ctx context.Context, topic string, movement models.Movement) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.topics = append(e.topics, topic)
	e.published = append(e.published, movement)
	return nil
}

func (e *recordingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.published)
}

// fakeCache mimics RedisCache on a map, including redis.Nil on a miss.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
	failGet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return errors.New("connection refused")
	}
	data, ok := c.entries[key]
	if !ok {
		return redis.Nil
	}
	return json.Unmarshal(data, dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type fixture struct {
	ctx       context.Context
	store     *repository.MemoryAccountRepository
	accounts  *AccountService
	movements *MovementService
	emitter   *recordingEmitter
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryAccountRepository()
	emitter := &recordingEmitter{}
	m := metrics.New(prometheus.NewRegistry())
	clock := tickingClock()

	accounts := NewAccountService(store, m)
	accounts.now = clock

	movements := NewMovementService(store, emitter, "", m)
	movements.now = clock
	movements.newID = sequentialIDs("mov")

	return &fixture{
		ctx:       context.Background(),
		store:     store,
		accounts:  accounts,
		movements: movements,
		emitter:   emitter,
		metrics:   m,
	}
}

func personalAccount(customer, product, number string, balance string) models.Account {
	return models.Account{
		AccountType:      models.AccountTypePersonal,
		IDProduct:        product,
		IDCustomer:       customer,
		AccountNumber:    number,
		CCI:              "002" + number + "123",
		AvailableBalance: decimal.RequireFromString(balance),
		HolderAccount:    []models.Person{{Name: "Ana Torres", DocumentID: "40123456"}},
	}
}

func businessAccount(customer, product, number string, holders, signers int) models.Account {
	account := models.Account{
		AccountType:      models.AccountTypeBusiness,
		IDProduct:        product,
		IDCustomer:       customer,
		AccountNumber:    number,
		CCI:              "002" + number + "123",
		AvailableBalance: decimal.Zero,
	}
	for i := 0; i < holders; i++ {
		account.HolderAccount = append(account.HolderAccount, models.Person{Name: fmt.Sprintf("Holder %d", i), DocumentID: fmt.Sprint(i)})
	}
	for i := 0; i < signers; i++ {
		account.AuthorizedSigner = append(account.AuthorizedSigner, models.Person{Name: fmt.Sprintf("Signer %d", i), DocumentID: fmt.Sprint(100 + i)})
	}
	return account
}

func (f *fixture) open(t *testing.T, account models.Account) *models.Account {
	t.Helper()
	opened, err := f.accounts.OpenAccount(f.ctx, account)
	require.NoError(t, err)
	return opened
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := f.store.FindByID(f.ctx, id)
	require.NoError(t, err)
	return account.AvailableBalance
}

func movement(op string, amount string) models.Movement {
	return models.Movement{
		Operation:    op,
		MovementType: "debit",
		Currency:     "PEN",
		Amount:       decimal.RequireFromString(amount),
	}
}
