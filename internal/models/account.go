package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountTypePersonal = "personal"
	AccountTypeBusiness = "empresarial"
)

const (
	ProductSavings   = "P001"
	ProductChecking  = "P002"
	ProductFixedTerm = "P003"
)

// MaxBusinessSigners caps the authorized signers of an empresarial account.
const MaxBusinessSigners = 4

type Person struct {
	Name       string `json:"nombre" validate:"required"`
	DocumentID string `json:"dni" validate:"required"`
	Role       string `json:"rol,omitempty"`
}

type Account struct {
	IDAccount        string          `json:"idAccount"`
	AccountType      string          `json:"accountType"`
	IDProduct        string          `json:"idProduct"`
	IDCustomer       string          `json:"idCustomer"`
	AccountNumber    string          `json:"accountNumber"`
	CCI              string          `json:"cci"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	HolderAccount    []Person        `json:"holderAccount"`
	AuthorizedSigner []Person        `json:"authorizedSigner"`
	BankMovements    []Movement      `json:"bankMovements"`
	CreationDatetime time.Time       `json:"creationDatetime"`
	UpdateDatetime   *time.Time      `json:"updateDatetime,omitempty"`
}

func (a *Account) IsBusiness() bool {
	return a.AccountType == AccountTypeBusiness
}

// SortMovements orders the movement history newest first. Storage keeps
// insertion order, so this has to run on every read path.
func (a *Account) SortMovements() {
	sort.SliceStable(a.BankMovements, func(i, j int) bool {
		return a.BankMovements[i].CreationDatetime.After(a.BankMovements[j].CreationDatetime)
	})
}

// Clone returns a deep copy so callers can mutate balances and histories
// without touching the original record.
func (a *Account) Clone() *Account {
	c := *a
	c.HolderAccount = append([]Person(nil), a.HolderAccount...)
	c.AuthorizedSigner = append([]Person(nil), a.AuthorizedSigner...)
	c.BankMovements = append([]Movement(nil), a.BankMovements...)
	if a.UpdateDatetime != nil {
		t := *a.UpdateDatetime
		c.UpdateDatetime = &t
	}
	return &c
}

type CreateAccountRequest struct {
	AccountType      string          `json:"accountType" validate:"required,oneof=personal empresarial"`
	IDProduct        string          `json:"idProduct" validate:"required"`
	IDCustomer       string          `json:"idCustomer" validate:"required"`
	AccountNumber    string          `json:"accountNumber" validate:"required,len=14,numeric"`
	CCI              string          `json:"cci" validate:"required,len=20,numeric"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	HolderAccount    []Person        `json:"holderAccount" validate:"omitempty,dive"`
	AuthorizedSigner []Person        `json:"authorizedSigner" validate:"omitempty,dive"`
}

func (r CreateAccountRequest) ToAccount() Account {
	return Account{
		AccountType:      r.AccountType,
		IDProduct:        r.IDProduct,
		IDCustomer:       r.IDCustomer,
		AccountNumber:    r.AccountNumber,
		CCI:              r.CCI,
		AvailableBalance: r.AvailableBalance,
		HolderAccount:    r.HolderAccount,
		AuthorizedSigner: r.AuthorizedSigner,
	}
}

// UpdateAccountRequest carries the editable fields; composite keys such as
// type, product, customer and account number stay fixed after opening.
type UpdateAccountRequest struct {
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	HolderAccount    []Person        `json:"holderAccount" validate:"omitempty,dive"`
	AuthorizedSigner []Person        `json:"authorizedSigner" validate:"omitempty,dive"`
}
