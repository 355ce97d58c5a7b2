package economy

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"bonkers-airdrop/models"
)

// ValidateWithdrawal checks raw input against the snapshot in a fixed order:
// invalid amount, below minimum, insufficient balance, wallet not connected.
func (p Params) ValidateWithdrawal(raw string, u *models.User) (decimal.Decimal, error) {
	amount, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if err := CheckPrecision(amount, p.USDTPrecision); err != nil {
		return decimal.Zero, err
	}
	if amount.LessThan(p.MinWithdrawal) {
		return decimal.Zero, newRuleError(CodeBelowMinimum, "Minimum withdrawal amount is %s", FormatUSDT(p.MinWithdrawal))
	}
	if amount.GreaterThan(u.USDTBalance) {
		return decimal.Zero, newRuleError(CodeInsufficientBalance, "Insufficient USDT balance")
	}
	if !u.WalletConnected || strings.TrimSpace(u.WalletAddress) == "" {
		return decimal.Zero, ErrWalletNotConnected
	}
	return amount, nil
}

// ApplyWithdrawal debits the USDT balance of the snapshot.
func ApplyWithdrawal(u *models.User, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(u.USDTBalance) {
		return newRuleError(CodeInsufficientBalance, "Insufficient USDT balance")
	}
	u.USDTBalance = u.USDTBalance.Sub(amount)
	return nil
}

// WithdrawalTransaction builds the ledger entry for an applied withdrawal.
// Settlement happens elsewhere; the hash is a placeholder identifier.
func (p Params) WithdrawalTransaction(u *models.User, amount decimal.Decimal, hash string) *models.Transaction {
	return &models.Transaction{
		UserEmail:       u.Email,
		TransactionType: models.TransactionTypeWithdrawal,
		FromCurrency:    models.CurrencyUSDT,
		ToCurrency:      models.CurrencyUSDT,
		AmountFrom:      amount,
		AmountTo:        amount,
		WalletAddress:   u.WalletAddress,
		TransactionHash: hash,
		Status:          models.TransactionStatusCompleted,
		ParamsVersion:   p.Version,
	}
}

// NewTransactionHash returns a random 32-byte hex identifier.
func NewTransactionHash() (string, error) {
	var h common.Hash
	if _, err := rand.Read(h[:]); err != nil {
		return "", fmt.Errorf("generate transaction hash: %w", err)
	}
	return h.Hex(), nil
}

// ValidateWalletAddress accepts EVM hex addresses and returns the checksummed
// 0x form.
func ValidateWalletAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", ErrInvalidWalletAddress
	}
	return common.HexToAddress(addr).Hex(), nil
}
