package economy

import (
	"github.com/shopspring/decimal"

	"bonkers-airdrop/models"
)

// SwapBreakdown is the result of converting BONK to USDT.
type SwapBreakdown struct {
	Amount int64           `json:"amount"`
	Gross  decimal.Decimal `json:"gross"`
	Fee    decimal.Decimal `json:"fee"`
	Net    decimal.Decimal `json:"net"`
	Rate   decimal.Decimal `json:"exchange_rate"`
}

// ComputeSwap converts a BONK amount. Fee is rounded to the ledger precision
// and net is derived from it, so gross = fee + net always holds.
func (p Params) ComputeSwap(amount int64) (SwapBreakdown, error) {
	if amount < 0 {
		return SwapBreakdown{}, ErrInvalidAmount
	}
	gross := decimal.NewFromInt(amount).Mul(p.ExchangeRate).Round(p.USDTPrecision)
	fee := gross.Mul(p.FeePercentage).Round(p.USDTPrecision)
	return SwapBreakdown{
		Amount: amount,
		Gross:  gross,
		Fee:    fee,
		Net:    gross.Sub(fee),
		Rate:   p.ExchangeRate,
	}, nil
}

// QuoteSwap parses raw input and computes the breakdown without checking any
// balance; zero is a valid quote.
func (p Params) QuoteSwap(raw string) (SwapBreakdown, error) {
	parsed, err := ParseAmount(raw)
	if err != nil {
		return SwapBreakdown{}, err
	}
	amount, err := WholeBONK(parsed)
	if err != nil {
		return SwapBreakdown{}, err
	}
	return p.ComputeSwap(amount)
}

// ValidateSwap checks raw input against the snapshot. Checks run in a fixed
// order and the first failure wins: invalid amount, below minimum,
// insufficient balance.
func (p Params) ValidateSwap(raw string, u *models.User) (int64, error) {
	parsed, err := ParseAmount(raw)
	if err != nil {
		return 0, err
	}
	amount, err := WholeBONK(parsed)
	if err != nil {
		return 0, err
	}
	if amount < p.MinSwap {
		return 0, newRuleError(CodeBelowMinimum, "Minimum swap amount is %d BONK", p.MinSwap)
	}
	if amount > u.AirdropBalance {
		return 0, newRuleError(CodeInsufficientBalance, "Insufficient BONK balance")
	}
	return amount, nil
}

// ApplySwap debits amount BONK and credits exactly the net USDT. No other
// field of the snapshot changes.
func (p Params) ApplySwap(u *models.User, amount int64) (SwapBreakdown, error) {
	breakdown, err := p.ComputeSwap(amount)
	if err != nil {
		return SwapBreakdown{}, err
	}
	if amount > u.AirdropBalance {
		return SwapBreakdown{}, newRuleError(CodeInsufficientBalance, "Insufficient BONK balance")
	}
	u.AirdropBalance -= amount
	u.USDTBalance = u.USDTBalance.Add(breakdown.Net)
	return breakdown, nil
}

// SwapTransaction builds the ledger entry for an applied swap.
func (p Params) SwapTransaction(email string, b SwapBreakdown) *models.Transaction {
	fee, rate := b.Fee, b.Rate
	return &models.Transaction{
		UserEmail:       email,
		TransactionType: models.TransactionTypeSwap,
		FromCurrency:    models.CurrencyBONK,
		ToCurrency:      models.CurrencyUSDT,
		AmountFrom:      decimal.NewFromInt(b.Amount),
		AmountTo:        b.Net,
		FeeAmount:       &fee,
		ExchangeRate:    &rate,
		Status:          models.TransactionStatusCompleted,
		ParamsVersion:   p.Version,
	}
}
