package services

import (
	"context"
	"time"

	"bank-accounts/internal/models"
	"bank-accounts/internal/repository"
)

// AccountStore is the persistence the engine needs. Both
// repository.AccountRepository and repository.MemoryAccountRepository
// satisfy it.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindAll(ctx context.Context) ([]models.Account, error)
	FindByCustomer(ctx context.Context, idCustomer string) ([]models.Account, error)
	ExistsByCustomerAndProduct(ctx context.Context, idCustomer, idProduct string) (bool, error)
	Count(ctx context.Context) (int64, error)
	NextSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id string) error
	WithinTx(ctx context.Context, fn func(repository.Tx) error) error
}

// AccountCache is satisfied by cache.RedisCache.
type AccountCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
