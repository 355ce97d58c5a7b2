package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

const (
	referralHistoryLimit = 100
	settlementBatch      = 100
)

type ReferralService struct {
	*Ledger
}

func NewReferralService(l *Ledger) *ReferralService {
	return &ReferralService{Ledger: l}
}

// Apply attributes the current user to the owner of code. The bonus is
// always the configured referral bonus.
func (s *ReferralService) Apply(ctx context.Context, code string) (*models.Referral, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	code = economy.NormalizeReferralCode(code)
	if code == "" {
		return nil, s.Metrics.observe("referral_apply", economy.ErrInvalidReferralCode)
	}

	var owners []models.User
	if err := s.Store.ListRecords(ctx, models.CollectionUser, store.Query{
		Filter: map[string]any{"referral_code": code},
		Limit:  1,
	}, &owners); err != nil {
		return nil, err
	}
	if len(owners) == 0 {
		return nil, s.Metrics.observe("referral_apply", economy.ErrInvalidReferralCode)
	}
	referrer := owners[0]
	if referrer.Email == user.Email {
		return nil, s.Metrics.observe("referral_apply", economy.ErrSelfReferral)
	}

	var prior models.Referral
	err = s.Store.FindRecord(ctx, models.CollectionReferral, map[string]any{"referred_email": user.Email}, &prior)
	if err == nil {
		return nil, s.Metrics.observe("referral_apply", economy.ErrAlreadyReferred)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	referral := &models.Referral{
		ReferrerEmail:    referrer.Email,
		ReferredEmail:    user.Email,
		ReferralCodeUsed: code,
		BonusTokens:      s.Params.ReferralBonus,
		Status:           models.ReferralStatusPending,
	}
	if err := s.Store.CreateRecord(ctx, referral); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, s.Metrics.observe("referral_apply", economy.ErrAlreadyReferred)
		}
		return nil, err
	}
	log.Printf("🤝 Referral recorded: %s referred %s", referrer.Email, user.Email)
	return referral, nil
}

// History lists referrals made by the current user, newest first.
func (s *ReferralService) History(ctx context.Context, limit int) ([]models.Referral, error) {
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	var referrals []models.Referral
	err = s.Store.ListRecords(ctx, models.CollectionReferral, store.Query{
		Filter: map[string]any{"referrer_email": user.Email},
		Sort:   "-created_date",
		Limit:  clampLimit(limit, referralHistoryLimit, referralHistoryLimit),
	}, &referrals)
	return referrals, err
}

// Confirm moves a pending referral to confirmed. Crediting happens in
// SettleConfirmed.
func (s *ReferralService) Confirm(ctx context.Context, id string) (*models.Referral, error) {
	var referral models.Referral
	if err := s.Store.FindRecord(ctx, models.CollectionReferral, map[string]any{"id": id}, &referral); err != nil {
		return nil, err
	}
	if referral.Status != models.ReferralStatusPending {
		return nil, s.Metrics.observe("referral_confirm", economy.ErrReferralNotConfirmable)
	}
	now := s.now()
	if err := s.Store.UpdateRecord(ctx, models.CollectionReferral, id, map[string]any{
		"status":       string(models.ReferralStatusConfirmed),
		"confirmed_at": now,
	}); err != nil {
		return nil, err
	}
	referral.Status = models.ReferralStatusConfirmed
	referral.ConfirmedAt = &now
	return &referral, nil
}

// SettleConfirmed credits the referrer of every confirmed referral and marks
// it rewarded in the same write, so rewarded always means credited. It is
// safe to run concurrently and repeatedly; a referral already rewarded is
// skipped.
func (s *ReferralService) SettleConfirmed(ctx context.Context) (int, error) {
	var pending []models.Referral
	if err := s.Store.ListRecords(ctx, models.CollectionReferral, store.Query{
		Filter: map[string]any{"status": string(models.ReferralStatusConfirmed)},
		Sort:   "created_date",
		Limit:  settlementBatch,
	}, &pending); err != nil {
		return 0, err
	}

	settled := 0
	var errs []error
	for _, ref := range pending {
		ok, err := s.settle(ctx, ref.ID, ref.ReferrerEmail)
		if err != nil {
			log.Printf("[referrals] settle %s failed: %v", ref.ID, err)
			errs = append(errs, fmt.Errorf("referral %s: %w", ref.ID, err))
			continue
		}
		if ok {
			settled++
		}
	}
	return settled, errors.Join(errs...)
}

func (s *ReferralService) settle(ctx context.Context, id, referrerEmail string) (bool, error) {
	now := s.now()
	credited := false
	var bonus int64
	_, err := s.Store.MutateUser(ctx, referrerEmail, func(u *models.User, tx store.Tx) error {
		credited = false
		var ref models.Referral
		if err := tx.FindRecord(models.CollectionReferral, map[string]any{"id": id}, &ref); err != nil {
			return err
		}
		if ref.Status != models.ReferralStatusConfirmed {
			return store.ErrNoop
		}
		if err := tx.UpdateRecord(models.CollectionReferral, id, map[string]any{
			"status":      string(models.ReferralStatusRewarded),
			"rewarded_at": now,
		}); err != nil {
			return err
		}
		bonus = ref.BonusTokens
		economy.CreditReward(u, bonus)
		u.TotalReferrals++
		credited = true
		return nil
	})
	if err != nil {
		return false, s.Metrics.observe("referral_settle", err)
	}
	if credited {
		s.Metrics.referralSettled()
		log.Printf("🏅 Referral bonus: %s +%d BONK (referral %s)", referrerEmail, bonus, id)
	}
	return credited, nil
}
