package economy

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses raw user input into a decimal. Empty, malformed and
// negative input is rejected with ErrInvalidAmount. Zero parses; callers that
// debit a balance reject it themselves.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// WholeBONK converts a parsed amount to whole BONK units.
func WholeBONK(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() || !amount.Equal(amount.Truncate(0)) {
		return 0, ErrInvalidAmount
	}
	if amount.GreaterThan(decimal.NewFromInt(maxBONK)) {
		return 0, ErrInvalidAmount
	}
	return amount.IntPart(), nil
}

// maxBONK bounds a single operation well below int64 overflow.
const maxBONK = 1_000_000_000_000

// CheckPrecision rejects USDT amounts with more fractional digits than the
// ledger stores.
func CheckPrecision(amount decimal.Decimal, places int32) error {
	if !amount.Equal(amount.Truncate(places)) {
		return ErrInvalidAmount
	}
	return nil
}

// FormatBONK renders a BONK amount with thousands separators, e.g. "1,000".
func FormatBONK(amount int64) string {
	return printer.Sprintf("%d", amount)
}

// FormatUSDT renders a USDT amount with a dollar sign and no trailing zeros.
func FormatUSDT(amount decimal.Decimal) string {
	return "$" + amount.String()
}
