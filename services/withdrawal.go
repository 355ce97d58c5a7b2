package services

import (
	"context"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

type WithdrawalResult struct {
	Transaction *models.Transaction `json:"transaction"`
	User        *models.User        `json:"user"`
	Replayed    bool                `json:"replayed"`
}

// WithdrawalService records USDT withdrawals. Settlement to the wallet
// happens outside this service; the stored hash is a placeholder.
type WithdrawalService struct {
	*Ledger
}

func NewWithdrawalService(l *Ledger) *WithdrawalService {
	return &WithdrawalService{Ledger: l}
}

func (s *WithdrawalService) Withdraw(ctx context.Context, raw, idempotencyKey string) (*WithdrawalResult, error) {
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
	var amount decimal.Decimal
	updated, err := s.Store.MutateUser(ctx, user.Email, func(u *models.User, tx store.Tx) error {
		var err error
		amount, err = s.Params.ValidateWithdrawal(raw, u)
		if err != nil {
			return err
		}
		hash, err := economy.NewTransactionHash()
		if err != nil {
			return err
		}
		if err := economy.ApplyWithdrawal(u, amount); err != nil {
			return err
		}
		record = s.Params.WithdrawalTransaction(u, amount, hash)
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
		return nil, s.Metrics.observe("withdrawal", err)
	}
	s.Metrics.withdrew()
	log.Printf("💸 Withdrawal: %s %s USDT → %s (%s)", updated.Email, amount, record.WalletAddress, record.TransactionHash)
	return &WithdrawalResult{Transaction: record, User: updated}, nil
}

func (s *WithdrawalService) replay(ctx context.Context, prior *models.Transaction) (*WithdrawalResult, error) {
	if prior.TransactionType != models.TransactionTypeWithdrawal {
		return nil, ErrIdempotencyKeyReused
	}
	user, err := s.Store.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return &WithdrawalResult{Transaction: prior, User: user, Replayed: true}, nil
}
