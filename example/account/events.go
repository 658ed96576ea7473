package account

// NewAccountOpened domain event indicates that new
// account has been opened
type NewAccountOpened struct {
	AccountID string `json:"account_id"`
	Holder    string `json:"holder"`
}

// DepositMade domain event indicates that deposit has been made
type DepositMade struct {
	Amount int `json:"amount"`
}

// WithdrawalMade domain event indicates that money has been withdrawn
type WithdrawalMade struct {
	Amount int `json:"amount"`
}

// EventType stores withdrawals under a versioned name
func (WithdrawalMade) EventType() string { return "WithdrawalMade.v1" }
