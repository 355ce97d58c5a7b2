package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

const maxIdempotencyKeyLen = 128

// ErrIdempotencyKeyReused is returned when a key already recorded one kind
// of operation and is replayed for another.
var ErrIdempotencyKeyReused = errors.New("idempotency key already used for a different operation")

var ErrInvalidIdempotencyKey = &economy.RuleError{Code: "invalid_idempotency_key", Message: "Idempotency key is too long"}

type SwapResult struct {
	Transaction *models.Transaction   `json:"transaction"`
	Breakdown   economy.SwapBreakdown `json:"breakdown"`
	User        *models.User          `json:"user"`
	Replayed    bool                  `json:"replayed"`
}

type SwapService struct {
	*Ledger
}

func NewSwapService(l *Ledger) *SwapService {
	return &SwapService{Ledger: l}
}

// Quote previews a swap without checking any balance.
func (s *SwapService) Quote(raw string) (economy.SwapBreakdown, error) {
	return s.Params.QuoteSwap(raw)
}

// Swap converts BONK to USDT. The debit, the credit and the ledger entry are
// one write. Reusing an idempotency key returns the first result.
func (s *SwapService) Swap(ctx context.Context, raw, idempotencyKey string) (*SwapResult, error) {
	key, err := normalizeKey(idempotencyKey)
	if err != nil {
		return nil, err
	}
	user, err := s.EnsureAccount(ctx)
	if err != nil {
		return nil, err
	}
	if key != nil {
		if prior, err := findByKey(ctx, s.Store, user.Email, *key); err != nil {
			return nil, err
		} else if prior != nil {
			return s.replay(ctx, prior)
		}
	}

	var record *models.Transaction
	var breakdown economy.SwapBreakdown
	updated, err := s.Store.MutateUser(ctx, user.Email, func(u *models.User, tx store.Tx) error {
		amount, err := s.Params.ValidateSwap(raw, u)
		if err != nil {
			return err
		}
		breakdown, err = s.Params.ApplySwap(u, amount)
		if err != nil {
			return err
		}
		record = s.Params.SwapTransaction(u.Email, breakdown)
		record.IdempotencyKey = key
		return tx.CreateRecord(record)
	})
	if errors.Is(err, store.ErrDuplicate) && key != nil {
		prior, findErr := findByKey(ctx, s.Store, user.Email, *key)
		if findErr == nil && prior != nil {
			return s.replay(ctx, prior)
		}
	}
	if err != nil {
		return nil, s.Metrics.observe("swap", err)
	}
	s.Metrics.swapped(breakdown.Amount)
	log.Printf("🔁 Swap: %s %d BONK → %s USDT (fee %s)", updated.Email, breakdown.Amount, breakdown.Net, breakdown.Fee)
	return &SwapResult{Transaction: record, Breakdown: breakdown, User: updated}, nil
}

func (s *SwapService) replay(ctx context.Context, prior *models.Transaction) (*SwapResult, error) {
	if prior.TransactionType != models.TransactionTypeSwap {
		return nil, ErrIdempotencyKeyReused
	}
	user, err := s.Store.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	result := &SwapResult{Transaction: prior, User: user, Replayed: true}
	result.Breakdown = economy.SwapBreakdown{
		Amount: prior.AmountFrom.IntPart(),
		Net:    prior.AmountTo,
	}
	if prior.FeeAmount != nil {
		result.Breakdown.Fee = *prior.FeeAmount
		result.Breakdown.Gross = prior.AmountTo.Add(*prior.FeeAmount)
	}
	if prior.ExchangeRate != nil {
		result.Breakdown.Rate = *prior.ExchangeRate
	}
	return result, nil
}

func normalizeKey(raw string) (*string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return nil, nil
	}
	if len(key) > maxIdempotencyKeyLen {
		return nil, ErrInvalidIdempotencyKey
	}
	return &key, nil
}

func findByKey(ctx context.Context, st store.DataStore, email, key string) (*models.Transaction, error) {
	var prior models.Transaction
	err := st.FindRecord(ctx, models.CollectionTransaction, map[string]any{
		"user_email":      email,
		"idempotency_key": key,
	}, &prior)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prior, nil
}
