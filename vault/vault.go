// Package vault holds the spend executor: a guarded balance that pays
// merchants only after the policy engine has allowed the spend. The vault
// enforces its own transaction-level guards (merchant allowlist, per-
// transaction limit, sufficient funds); it encodes no delegation logic.
package vault

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrMerchantNotAllowed reports a merchant outside the allowlist.
	ErrMerchantNotAllowed = errors.New("merchant is not authorized")
	// ErrOverTransactionLimit reports an amount above the per-transaction safety limit.
	ErrOverTransactionLimit = errors.New("amount exceeds per-transaction safety limit")
	// ErrInsufficientFunds reports an amount above the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Config configures a vault instance.
type Config struct {
	InitialBalance    float64
	MaxPerTransaction float64
	AllowedMerchants  []string
}

// Receipt records one successful payment.
type Receipt struct {
	Merchant  string    `json:"merchant"`
	Amount    float64   `json:"amount"`
	Balance   float64   `json:"balance"` // balance after the payment
	Timestamp time.Time `json:"timestamp"`
}

// Message renders the receipt the way it is surfaced to callers.
func (r Receipt) Message() string {
	return fmt.Sprintf("SUCCESS: Paid ₹%g to %s. New Balance: ₹%g", r.Amount, r.Merchant, r.Balance)
}

// Vault is one account's balance plus its transaction guards. Each vault
// owns its state; there is no process-wide balance.
type Vault struct {
	mu       sync.Mutex
	balance  float64
	maxPerTx float64
	allowed  []string
	history  []Receipt
}

// New creates a vault from the config.
func New(cfg Config) *Vault {
	return &Vault{
		balance:  cfg.InitialBalance,
		maxPerTx: cfg.MaxPerTransaction,
		allowed:  append([]string(nil), cfg.AllowedMerchants...),
	}
}

// Pay debits the balance and records a receipt. Guards run in fixed order:
// merchant allowlist, per-transaction limit, sufficient funds. The balance
// changes only when every guard passes.
func (v *Vault) Pay(merchant string, amount float64) (Receipt, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.merchantAllowed(merchant) {
		return Receipt{}, fmt.Errorf("merchant %q: %w", merchant, ErrMerchantNotAllowed)
	}
	if amount > v.maxPerTx {
		return Receipt{}, fmt.Errorf("amount ₹%g over limit ₹%g: %w", amount, v.maxPerTx, ErrOverTransactionLimit)
	}
	if amount > v.balance {
		return Receipt{}, fmt.Errorf("amount ₹%g with balance ₹%g: %w", amount, v.balance, ErrInsufficientFunds)
	}

	v.balance -= amount
	receipt := Receipt{
		Merchant:  merchant,
		Amount:    amount,
		Balance:   v.balance,
		Timestamp: time.Now().UTC(),
	}
	v.history = append(v.history, receipt)
	return receipt, nil
}

func (v *Vault) merchantAllowed(merchant string) bool {
	for _, m := range v.allowed {
		if m == merchant {
			return true
		}
	}
	return false
}

// Balance returns the current balance.
func (v *Vault) Balance() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

// History returns a copy of all successful payments in order.
func (v *Vault) History() []Receipt {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Receipt, len(v.history))
	copy(out, v.history)
	return out
}
