package models

import (
	"time"

	"gorm.io/gorm"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConfirmed ReferralStatus = "confirmed"
	ReferralStatusRewarded  ReferralStatus = "rewarded"
)

// Referral links an inviting user to the user who signed up with their code.
// A user can be referred at most once.
type Referral struct {
	ID            string `gorm:"primaryKey;size:36" json:"id"`
	ReferrerEmail string `gorm:"index;not null" json:"referrer_email"`
	ReferredEmail string `gorm:"uniqueIndex;not null" json:"referred_email"`

	ReferralCodeUsed string         `gorm:"not null" json:"referral_code_used"`
	BonusTokens      int64          `json:"bonus_tokens" gorm:"not null"`
	Status           ReferralStatus `json:"status" gorm:"not null;default:'pending';index"`
	ConfirmedAt      *time.Time     `json:"confirmed_at,omitempty"`
	RewardedAt       *time.Time     `json:"rewarded_at,omitempty"` // set in the same tx as the referrer credit

	Timestamps
}

func (Referral) Collection() Collection { return CollectionReferral }

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}
