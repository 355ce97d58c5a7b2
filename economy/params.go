package economy

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"bonkers-airdrop/models"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Params holds every economic parameter of the airdrop. Services receive a
// Params value at construction; nothing else in the repo hardcodes these numbers.
type Params struct {
	Version string `yaml:"version"`

	// Account ledger
	StartingBalance    int64    `yaml:"starting_balance"`
	DailyClaimReward   int64    `yaml:"daily_claim_reward"`
	ReferralClaimBonus int64    `yaml:"referral_claim_bonus"`
	ClaimCooldown      Duration `yaml:"claim_cooldown"`
	ReferralBonus      int64    `yaml:"referral_bonus"`

	// Swap engine
	ExchangeRate  decimal.Decimal `yaml:"exchange_rate"`
	FeePercentage decimal.Decimal `yaml:"fee_percentage"`
	MinSwap       int64           `yaml:"min_swap"`

	// Withdrawals
	MinWithdrawal decimal.Decimal `yaml:"min_withdrawal"`
	USDTPrecision int32           `yaml:"usdt_precision"`

	TaskRewards map[models.TaskType]int64 `yaml:"task_rewards"`
}

// DefaultParams returns the launch parameters of the promotion.
func DefaultParams() Params {
	return Params{
		Version:            "2024-01",
		StartingBalance:    100,
		DailyClaimReward:   100,
		ReferralClaimBonus: 10,
		ClaimCooldown:      Duration{24 * time.Hour},
		ReferralBonus:      50,
		ExchangeRate:       decimal.RequireFromString("0.01"),
		FeePercentage:      decimal.RequireFromString("0.10"),
		MinSwap:            1000,
		MinWithdrawal:      decimal.NewFromInt(5),
		USDTPrecision:      4,
		TaskRewards: map[models.TaskType]int64{
			models.TaskTypeTwitterConnect: 20,
			models.TaskTypeWhatsAppVerify: 30,
			models.TaskTypeTelegramJoin:   15,
		},
	}
}

// LoadParams reads a YAML params file and overlays it on DefaultParams.
// An empty path returns the defaults.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	if path == "" {
		return params, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return params, fmt.Errorf("open economy params: %w", err)
	}
	defer file.Close()
	if err := yaml.NewDecoder(file).Decode(&params); err != nil {
		return params, fmt.Errorf("decode economy params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// Validate rejects parameter sets that would break the ledger invariants.
func (p Params) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("economy params: version must be set")
	}
	if p.StartingBalance < 0 || p.DailyClaimReward < 0 || p.ReferralClaimBonus < 0 || p.ReferralBonus < 0 {
		return fmt.Errorf("economy params: rewards and balances must not be negative")
	}
	if p.ClaimCooldown.Duration <= 0 {
		return fmt.Errorf("economy params: claim_cooldown must be positive")
	}
	if !p.ExchangeRate.IsPositive() {
		return fmt.Errorf("economy params: exchange_rate must be positive")
	}
	if p.FeePercentage.IsNegative() || p.FeePercentage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("economy params: fee_percentage must be in [0, 1)")
	}
	if p.MinSwap < 0 || p.MinWithdrawal.IsNegative() {
		return fmt.Errorf("economy params: minimums must not be negative")
	}
	if p.USDTPrecision < 0 || p.USDTPrecision > 8 {
		return fmt.Errorf("economy params: usdt_precision must be between 0 and 8")
	}
	for _, taskType := range models.TaskTypes {
		if p.TaskRewards[taskType] <= 0 {
			return fmt.Errorf("economy params: task reward for %s must be positive", taskType)
		}
	}
	return nil
}
