package account

import (
	"errors"

	"github.com/google/uuid"

	"github.com/aneshas/streamstore/aggregate"
)

var (
	// ErrInvalidAmount is returned for non positive amounts
	ErrInvalidAmount = errors.New("amount needs to be positive")

	// ErrInsufficientFunds is returned when withdrawing more than the balance
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// NewID generates a new account ID
func NewID() ID { return ID(uuid.NewString()) }

// ID represents an account ID
type ID string

// String implements fmt.Stringer
func (id ID) String() string { return string(id) }

// New creates new Account
func New(id ID, holder string) (*Account, error) {
	var acc Account

	acc.Rehydrate(&acc)

	acc.Apply(
		NewAccountOpened{
			AccountID: id.String(),
			Holder:    holder,
		},
	)

	return &acc, nil
}

// Account represents an account aggregate
type Account struct {
	aggregate.Root[ID]

	Holder  string
	Balance int
}

// Deposit money
func (a *Account) Deposit(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	a.Apply(
		DepositMade{
			Amount: amount,
		},
	)

	return nil
}

// Withdraw money
func (a *Account) Withdraw(amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if amount > a.Balance {
		return ErrInsufficientFunds
	}

	a.Apply(
		WithdrawalMade{
			Amount: amount,
		},
	)

	return nil
}

// OnNewAccountOpened handler
func (a *Account) OnNewAccountOpened(evt NewAccountOpened) {
	a.SetID(ID(evt.AccountID))
	a.Holder = evt.Holder
}

// OnDepositMade handler
func (a *Account) OnDepositMade(evt DepositMade) {
	a.Balance += evt.Amount
}

// OnWithdrawalMade handler
func (a *Account) OnWithdrawalMade(evt WithdrawalMade) {
	a.Balance -= evt.Amount
}
