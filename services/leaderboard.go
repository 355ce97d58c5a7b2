package services

import (
	"context"
	"strings"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

const leaderboardLimit = 50

type LeaderboardBy string

const (
	ByReferrals LeaderboardBy = "referrals"
	ByEarned    LeaderboardBy = "earned"
)

var ErrInvalidLeaderboard = &economy.RuleError{Code: "invalid_leaderboard", Message: "Leaderboard must be sorted by referrals or earned"}

type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	FullName       string `json:"full_name"`
	ReferralCode   string `json:"referral_code,omitempty"`
	TotalReferrals int64  `json:"total_referrals"`
	TotalEarned    int64  `json:"total_earned"`
	IsCurrentUser  bool   `json:"is_current_user"`
}

type LeaderboardService struct {
	*Ledger
}

func NewLeaderboardService(l *Ledger) *LeaderboardService {
	return &LeaderboardService{Ledger: l}
}

// ParseLeaderboardBy defaults to referrals.
func ParseLeaderboardBy(raw string) (LeaderboardBy, error) {
	switch LeaderboardBy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ByReferrals:
		return ByReferrals, nil
	case ByEarned:
		return ByEarned, nil
	}
	return "", ErrInvalidLeaderboard
}

// Top ranks users with any referral or earning activity.
func (s *LeaderboardService) Top(ctx context.Context, by LeaderboardBy, limit int) ([]LeaderboardEntry, error) {
	sort := "-total_referrals"
	if by == ByEarned {
		sort = "-total_earned"
	}
	var users []models.User
	if err := s.Store.ListRecords(ctx, models.CollectionUser, store.Query{
		Sort:  sort,
		Limit: clampLimit(limit, leaderboardLimit, leaderboardLimit),
	}, &users); err != nil {
		return nil, err
	}

	session, _ := store.SessionFrom(ctx)
	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		if u.TotalReferrals <= 0 && u.TotalEarned <= 0 {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Rank:           len(entries) + 1,
			FullName:       displayName(&u),
			ReferralCode:   u.Code(),
			TotalReferrals: u.TotalReferrals,
			TotalEarned:    u.TotalEarned,
			IsCurrentUser:  session.Email != "" && session.Email == u.Email,
		})
	}
	return entries, nil
}

func displayName(u *models.User) string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	return "Anonymous"
}
