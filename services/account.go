package services

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

const (
	recentReferralsLimit = 5
	transactionsLimit    = 100
	maxNameLength        = 80
)

var ErrInvalidName = &economy.RuleError{Code: "invalid_name", Message: "Please enter your name"}

// ClaimStatus describes daily-claim eligibility at a point in time.
type ClaimStatus struct {
	CanClaim         bool       `json:"can_claim"`
	Reward           int64      `json:"reward"`
	NextClaimAt      *time.Time `json:"next_claim_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	Remaining        string     `json:"remaining"`
	Progress         float64    `json:"progress"`
}

type Overview struct {
	User            *models.User      `json:"user"`
	Claim           ClaimStatus       `json:"claim"`
	RecentReferrals []models.Referral `json:"recent_referrals"`
}

type ClaimResult struct {
	Reward int64        `json:"reward"`
	User   *models.User `json:"user"`
	Claim  ClaimStatus  `json:"claim"`
}

type AccountService struct {
	*Ledger
}

func NewAccountService(l *Ledger) *AccountService {
	return &AccountService{Ledger: l}
}

// StatusFor computes the claim status of a snapshot without touching the
// store.
func (s *AccountService) StatusFor(u *models.User, now time.Time) ClaimStatus {
	status := ClaimStatus{
		CanClaim: s.Params.CanClaim(u, now),
		Reward:   s.Params.ComputeDailyReward(u),
		Progress: s.Params.ClaimProgress(u, now),
	}
	if next := s.Params.NextClaimAt(u); !next.IsZero() {
		status.NextClaimAt = &next
	}
	wait := s.Params.TimeUntilNextClaim(u, now)
	status.RemainingSeconds = int64(wait / time.Second)
	status.Remaining = economy.FormatWait(wait)
	return status
}

// Overview is the dashboard: account, claim status and the latest referrals.
func (s *AccountService) Overview(ctx context.Context) (*Overview, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	var referrals []models.Referral
	if err := s.Store.ListRecords(ctx, models.CollectionReferral, store.Query{
		Filter: map[string]any{"referrer_email": user.Email},
		Sort:   "-created_date",
		Limit:  recentReferralsLimit,
	}, &referrals); err != nil {
		return nil, err
	}
	return &Overview{
		User:            user,
		Claim:           s.StatusFor(user, s.now()),
		RecentReferrals: referrals,
	}, nil
}

func (s *AccountService) ClaimStatus(ctx context.Context) (*models.User, ClaimStatus, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, ClaimStatus{}, err
	}
	return user, s.StatusFor(user, s.now()), nil
}

// Claim grants the daily reward against a fresh snapshot in one write.
func (s *AccountService) Claim(ctx context.Context) (*ClaimResult, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var reward int64
	updated, err := s.Store.MutateUser(ctx, user.Email, func(u *models.User, _ store.Tx) error {
		r, err := s.Params.ApplyClaim(u, now)
		reward = r
		return err
	})
	if err != nil {
		return nil, s.Metrics.observe("claim", err)
	}
	s.Metrics.claimed(reward)
	log.Printf("🎁 Daily claim: %s +%d BONK", updated.Email, reward)
	return &ClaimResult{
		Reward: reward,
		User:   updated,
		Claim:  s.StatusFor(updated, now),
	}, nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, fullName string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || utf8.RuneCountInString(fullName) > maxNameLength {
		return nil, ErrInvalidName
	}
	if _, err := s.EnsureAccount(ctx); err != nil {
		return nil, err
	}
	return s.Store.UpdateUser(ctx, map[string]any{"full_name": fullName})
}

// ConnectWallet records a validated wallet address for withdrawals.
func (s *AccountService) ConnectWallet(ctx context.Context, address string) (*models.User, error) {
	normalized, err := economy.ValidateWalletAddress(address)
	if err != nil {
		return nil, err
	}
	if _, err := s.EnsureAccount(ctx); err != nil {
		return nil, err
	}
	user, err := s.Store.UpdateUser(ctx, map[string]any{
		"wallet_address":   normalized,
		"wallet_connected": true,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🔗 Wallet connected: %s → %s", user.Email, normalized)
	return user, nil
}

func (s *AccountService) DisconnectWallet(ctx context.Context) (*models.User, error) {
	if _, err := s.EnsureAccount(ctx); err != nil {
		return nil, err
	}
	return s.Store.UpdateUser(ctx, map[string]any{
		"wallet_address":   "",
		"wallet_connected": false,
	})
}

// Transactions lists the user's swaps and withdrawals, newest first.
func (s *AccountService) Transactions(ctx context.Context, limit int) ([]models.Transaction, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	var txs []models.Transaction
	err = s.Store.ListRecords(ctx, models.CollectionTransaction, store.Query{
		Filter: map[string]any{"user_email": user.Email},
		Sort:   "-created_date",
		Limit:  clampLimit(limit, transactionsLimit, transactionsLimit),
	}, &txs)
	return txs, err
}
