package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

// referralCodeAttempts bounds the short-code collision retries before
// falling back to a four digit suffix.
const referralCodeAttempts = 5

// Ledger carries what every economy service needs: the data store, the
// economic parameters and a clock. Services embed it.
type Ledger struct {
	Store   store.DataStore
	Params  economy.Params
	Metrics *Metrics
	Now     func() time.Time
	Intn    func(int) int
}

func NewLedger(st store.DataStore, params economy.Params, metrics *Metrics) *Ledger {
	return &Ledger{
		Store:   st,
		Params:  params,
		Metrics: metrics,
		Now:     time.Now,
	}
}

func (l *Ledger) now() time.Time {
	return l.Now().UTC()
}

// EnsureAccount returns the current user, applying the one-time defaults
// and referral code on first use. Codes are unique; a collision retries with
// a new suffix.
func (l *Ledger) EnsureAccount(ctx context.Context) (*models.User, error) {
	user, err := l.Store.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user.Initialized {
		return user, nil
	}

	name := codeSource(user)
	for attempt := 0; attempt <= referralCodeAttempts; attempt++ {
		code := economy.GenerateReferralCode(name, l.Intn)
		if attempt == referralCodeAttempts {
			code = economy.FallbackReferralCode(name, l.Intn)
		}
		updated, err := l.Store.MutateUser(ctx, user.Email, func(u *models.User, _ store.Tx) error {
			if !l.Params.InitializeAccount(u, code) {
				return store.ErrNoop
			}
			return nil
		})
		if errors.Is(err, store.ErrDuplicate) {
			log.Printf("[accounts] referral code %s taken, retrying", code)
			continue
		}
		if err != nil {
			return nil, err
		}
		if updated.Initialized && updated.Version > user.Version {
			log.Printf("🎉 Account initialized: %s (code %s)", updated.Email, updated.Code())
		}
		return updated, nil
	}
	return nil, fmt.Errorf("%w: could not allocate a referral code", store.ErrUnavailable)
}

func codeSource(u *models.User) string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
