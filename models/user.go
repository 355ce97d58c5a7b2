package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is one airdrop account. Economy fields change only through the
// store's single-writer mutation; Version guards every such write.
type User struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	FullName string `json:"full_name"`

	AirdropBalance int64           `json:"airdrop_balance" gorm:"not null;default:0"`
	USDTBalance    decimal.Decimal `json:"usdt_balance" gorm:"type:numeric(20,4);not null;default:0"`
	TotalReferrals int64           `json:"total_referrals" gorm:"not null;default:0;index"`
	TotalEarned    int64           `json:"total_earned" gorm:"not null;default:0;index"`
	LastClaimDate  *time.Time      `json:"last_claim_date,omitempty"`

	// ReferralCode is nil until the account is initialized; unique once set.
	ReferralCode *string `gorm:"uniqueIndex" json:"referral_code,omitempty"`

	WalletAddress   string `json:"wallet_address,omitempty"`
	WalletConnected bool   `json:"wallet_connected" gorm:"not null;default:false"`

	Initialized bool   `json:"initialized" gorm:"not null;default:false"`
	Version     int64  `json:"version" gorm:"not null;default:0"`
	Roles       string `json:"-"`

	Timestamps
}

func (User) Collection() Collection { return CollectionUser }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	newID(&u.ID)
	return nil
}

// HasRole reports whether the comma separated Roles list contains role.
func (u *User) HasRole(role string) bool {
	for _, r := range strings.Split(u.Roles, ",") {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}

// Code returns the referral code or "" when none was generated yet.
func (u *User) Code() string {
	if u.ReferralCode == nil {
		return ""
	}
	return *u.ReferralCode
}

// LedgerFields returns every column a ledger mutation may write.
func (u *User) LedgerFields() map[string]any {
	return map[string]any{
		"full_name":        u.FullName,
		"airdrop_balance":  u.AirdropBalance,
		"usdt_balance":     u.USDTBalance,
		"total_referrals":  u.TotalReferrals,
		"total_earned":     u.TotalEarned,
		"last_claim_date":  u.LastClaimDate,
		"referral_code":    u.ReferralCode,
		"wallet_address":   u.WalletAddress,
		"wallet_connected": u.WalletConnected,
		"initialized":      u.Initialized,
		"version":          u.Version,
	}
}

// ProfileColumns are the only user columns a caller may merge directly.
var ProfileColumns = []string{
	"full_name",
	"wallet_address",
	"wallet_connected",
}
