package economy

import (
	"time"

	"github.com/shopspring/decimal"

	"bonkers-airdrop/models"
)

// CanClaim reports whether the user may claim at now. Eligibility uses real
// elapsed time, not calendar days.
func (p Params) CanClaim(u *models.User, now time.Time) bool {
	if u.LastClaimDate == nil {
		return true
	}
	return now.Sub(*u.LastClaimDate) >= p.ClaimCooldown.Duration
}

// NextClaimAt returns when the next claim opens. The zero time means the user
// has never claimed.
func (p Params) NextClaimAt(u *models.User) time.Time {
	if u.LastClaimDate == nil {
		return time.Time{}
	}
	return u.LastClaimDate.Add(p.ClaimCooldown.Duration)
}

// TimeUntilNextClaim is zero when the user is eligible.
func (p Params) TimeUntilNextClaim(u *models.User, now time.Time) time.Duration {
	if p.CanClaim(u, now) {
		return 0
	}
	return p.NextClaimAt(u).Sub(now)
}

// ClaimProgress is the fraction of the cooldown already elapsed, in [0, 1].
func (p Params) ClaimProgress(u *models.User, now time.Time) float64 {
	if p.CanClaim(u, now) {
		return 1
	}
	elapsed := now.Sub(*u.LastClaimDate)
	if elapsed < 0 {
		return 0
	}
	return float64(elapsed) / float64(p.ClaimCooldown.Duration)
}

// ComputeDailyReward is the flat daily grant plus the recurring referral bonus.
func (p Params) ComputeDailyReward(u *models.User) int64 {
	return p.DailyClaimReward + p.ReferralClaimBonus*u.TotalReferrals
}

// ApplyClaim credits the daily reward to the snapshot and stamps the claim
// time. An ineligible user gets a *ClaimTooEarlyError and an unchanged snapshot.
func (p Params) ApplyClaim(u *models.User, now time.Time) (int64, error) {
	if !p.CanClaim(u, now) {
		return 0, &ClaimTooEarlyError{
			NextClaimAt: p.NextClaimAt(u),
			Remaining:   p.TimeUntilNextClaim(u, now),
		}
	}
	reward := p.ComputeDailyReward(u)
	u.AirdropBalance += reward
	claimedAt := now.UTC()
	u.LastClaimDate = &claimedAt
	return reward, nil
}

// InitializeAccount applies the one-time economy defaults. It returns false
// and leaves the snapshot alone once the account has been initialized.
func (p Params) InitializeAccount(u *models.User, referralCode string) bool {
	if u.Initialized {
		return false
	}
	u.AirdropBalance = p.StartingBalance
	u.USDTBalance = decimal.Zero
	u.TotalReferrals = 0
	u.TotalEarned = 0
	if u.ReferralCode == nil {
		u.ReferralCode = &referralCode
	}
	u.Initialized = true
	return true
}

// CheckBalances enforces that no economy counter is negative.
func CheckBalances(u *models.User) error {
	if u.AirdropBalance < 0 || u.USDTBalance.IsNegative() || u.TotalReferrals < 0 || u.TotalEarned < 0 {
		return ErrNegativeBalance
	}
	return nil
}

// CreditReward adds a task or referral reward to balance and earnings.
func CreditReward(u *models.User, amount int64) {
	u.AirdropBalance += amount
	u.TotalEarned += amount
}
