package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/models"
	"bonkers-airdrop/store"
)

type harness struct {
	t       *testing.T
	store   *store.GormStore
	ledger  *Ledger
	clock   time.Time
	metrics *Metrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	st, err := store.Open(sqlite.Open(dsn), store.Config{RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := st.DB.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{
		t:       t,
		store:   st,
		clock:   time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		metrics: NewMetrics("test"),
	}
	h.ledger = NewLedger(st, economy.DefaultParams(), h.metrics)
	h.ledger.Now = func() time.Time { return h.clock }
	return h
}

func (h *harness) as(email, name string) context.Context {
	return store.WithSession(context.Background(), store.Session{Email: email, FullName: name})
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

// fund sets balances directly, bypassing the services.
func (h *harness) fund(ctx context.Context, bonk int64, usdt string, wallet bool) {
	h.t.Helper()
	user, err := h.ledger.EnsureAccount(ctx)
	require.NoError(h.t, err)
	_, err = h.store.MutateUser(ctx, user.Email, func(u *models.User, _ store.Tx) error {
		u.AirdropBalance = bonk
		u.USDTBalance = decimal.RequireFromString(usdt)
		if wallet {
			u.WalletConnected = true
			u.WalletAddress = "0x52908400098527886E0F7030069857D2E4169EE7"
		}
		return nil
	})
	require.NoError(h.t, err)
}

func TestEnsureAccountInitializesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := h.as("alice@example.com", "Alice Liddell")
	h.ledger.Intn = func(int) int { return 42 }

	user, err := h.ledger.EnsureAccount(ctx)
	require.NoError(t, err)
	assert.True(t, user.Initialized)
	assert.EqualValues(t, 100, user.AirdropBalance)
	assert.Equal(t, "ALICEL42", user.Code())

	again, err := h.ledger.EnsureAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, user.Version, again.Version)
	assert.Equal(t, "ALICEL42", again.Code())
}

func TestEnsureAccountRetriesCodeCollision(t *testing.T) {
	h := newHarness(t)
	h.ledger.Intn = func(int) int { return 7 }

	first, err := h.ledger.EnsureAccount(h.as("alice@example.com", "Alice"))
	require.NoError(t, err)
	assert.Equal(t, "ALICE7", first.Code())

	second, err := h.ledger.EnsureAccount(h.as("alice2@example.com", "Alice"))
	require.NoError(t, err)
	assert.Equal(t, "ALICE0007", second.Code())
}

func TestClaimCooldown(t *testing.T) {
	h := newHarness(t)
	accounts := NewAccountService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")

	res, err := accounts.Claim(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.Reward)
	assert.EqualValues(t, 200, res.User.AirdropBalance)
	assert.False(t, res.Claim.CanClaim)
	assert.Equal(t, "24h 0m", res.Claim.Remaining)

	h.advance(23*time.Hour + 59*time.Minute + 59*time.Second)
	_, err = accounts.Claim(ctx)
	assert.ErrorIs(t, err, economy.ErrClaimTooEarly)

	h.advance(time.Second)
	res, err = accounts.Claim(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 300, res.User.AirdropBalance)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.claims))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.rejections.WithLabelValues("claim", "claim_too_early")))
}

func TestOverviewShowsRecentReferrals(t *testing.T) {
	h := newHarness(t)
	accounts := NewAccountService(h.ledger)
	referrals := NewReferralService(h.ledger)

	alice, err := h.ledger.EnsureAccount(h.as("alice@example.com", "Alice"))
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		ctx := h.as(fmt.Sprintf("friend%d@example.com", i), "Friend")
		_, err := referrals.Apply(ctx, alice.Code())
		require.NoError(t, err)
	}

	overview, err := accounts.Overview(h.as("alice@example.com", "Alice"))
	require.NoError(t, err)
	assert.Len(t, overview.RecentReferrals, 5)
	assert.True(t, overview.Claim.CanClaim)
	assert.EqualValues(t, 100, overview.Claim.Reward)
}

func TestSwapRoundTrip(t *testing.T) {
	h := newHarness(t)
	swaps := NewSwapService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")
	h.fund(ctx, 5000, "0", false)

	res, err := swaps.Swap(ctx, "2000", "")
	require.NoError(t, err)
	assert.EqualValues(t, 3000, res.User.AirdropBalance)
	assert.True(t, res.User.USDTBalance.Equal(decimal.NewFromInt(18)), res.User.USDTBalance.String())
	assert.Equal(t, models.TransactionStatusCompleted, res.Transaction.Status)

	_, err = swaps.Swap(ctx, "500", "")
	assert.ErrorIs(t, err, economy.ErrBelowMinimum)
	_, err = swaps.Swap(ctx, "4000", "")
	assert.ErrorIs(t, err, economy.ErrInsufficientBalance)
	_, err = swaps.Swap(ctx, "lots", "")
	assert.ErrorIs(t, err, economy.ErrInvalidAmount)

	txs, err := NewAccountService(h.ledger).Transactions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestSwapIdempotencyKeyReplays(t *testing.T) {
	h := newHarness(t)
	swaps := NewSwapService(h.ledger)
	withdrawals := NewWithdrawalService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")
	h.fund(ctx, 5000, "0", true)

	first, err := swaps.Swap(ctx, "1000", "key-1")
	require.NoError(t, err)
	second, err := swaps.Swap(ctx, "1000", "key-1")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.EqualValues(t, 4000, second.User.AirdropBalance)
	assert.True(t, second.Breakdown.Net.Equal(decimal.NewFromInt(9)))

	_, err = withdrawals.Withdraw(ctx, "5", "key-1")
	assert.ErrorIs(t, err, ErrIdempotencyKeyReused)
}

func TestWithdrawal(t *testing.T) {
	h := newHarness(t)
	withdrawals := NewWithdrawalService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")
	h.fund(ctx, 0, "100", false)

	_, err := withdrawals.Withdraw(ctx, "4", "")
	assert.ErrorIs(t, err, economy.ErrBelowMinimum)
	_, err = withdrawals.Withdraw(ctx, "10", "")
	assert.ErrorIs(t, err, economy.ErrWalletNotConnected)

	_, err = NewAccountService(h.ledger).ConnectWallet(ctx, "0x52908400098527886e0f7030069857d2e4169ee7")
	require.NoError(t, err)

	res, err := withdrawals.Withdraw(ctx, "10.5", "w-1")
	require.NoError(t, err)
	assert.True(t, res.User.USDTBalance.Equal(decimal.RequireFromString("89.5")), res.User.USDTBalance.String())
	assert.Equal(t, models.TransactionTypeWithdrawal, res.Transaction.TransactionType)
	assert.Len(t, res.Transaction.TransactionHash, 66)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", res.Transaction.WalletAddress)

	replay, err := withdrawals.Withdraw(ctx, "10.5", "w-1")
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.True(t, replay.User.USDTBalance.Equal(decimal.RequireFromString("89.5")))
}

func TestWalletConnectValidatesAddress(t *testing.T) {
	h := newHarness(t)
	accounts := NewAccountService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")

	_, err := accounts.ConnectWallet(ctx, "bonk")
	assert.ErrorIs(t, err, economy.ErrInvalidWalletAddress)

	user, err := accounts.DisconnectWallet(ctx)
	require.NoError(t, err)
	assert.False(t, user.WalletConnected)
	assert.Empty(t, user.WalletAddress)

	_, err = accounts.UpdateProfile(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidName)
	user, err = accounts.UpdateProfile(ctx, "Alice Cooper")
	require.NoError(t, err)
	assert.Equal(t, "Alice Cooper", user.FullName)
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	tasks := NewTaskService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")

	_, err := tasks.Verify(ctx, "twitter_connect")
	assert.ErrorIs(t, err, economy.ErrTaskNotStarted)

	task, created, err := tasks.Start(ctx, "twitter_connect", nil)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := tasks.Start(ctx, "twitter_connect", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, task.ID, again.ID)

	res, err := tasks.Verify(ctx, "twitter_connect")
	require.NoError(t, err)
	assert.EqualValues(t, 20, res.Credited)
	assert.EqualValues(t, 20, res.User.TotalEarned)
	assert.EqualValues(t, 120, res.User.AirdropBalance)

	_, err = tasks.Verify(ctx, "twitter_connect")
	assert.ErrorIs(t, err, economy.ErrTaskAlreadyRewarded)

	board, err := tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, board.Tasks, 3)
	assert.Equal(t, models.TaskStatusCompleted, board.Tasks[0].Status)
	assert.Equal(t, models.TaskStatusNotStarted, board.Tasks[1].Status)
	assert.Equal(t, 1, board.Completed)
	assert.EqualValues(t, 20, board.Earned)

	user, err := h.store.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 20, user.TotalEarned)
}

func TestManualReviewTask(t *testing.T) {
	h := newHarness(t)
	tasks := NewTaskService(h.ledger)
	ctx := h.as("alice@example.com", "Alice")

	_, _, err := tasks.Start(ctx, "whatsapp_verify", nil)
	assert.ErrorIs(t, err, economy.ErrInvalidTaskData)

	task, _, err := tasks.Start(ctx, "whatsapp_verify", map[string]string{"phone_number": "+15550100"})
	require.NoError(t, err)

	res, err := tasks.Verify(ctx, "whatsapp_verify")
	require.NoError(t, err)
	assert.True(t, res.AwaitingReview)
	assert.Zero(t, res.Credited)

	pending, err := tasks.PendingReviews(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, task.ID, pending[0].ID)

	reviewed, err := tasks.Review(context.Background(), task.ID, true, "admin@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 30, reviewed.Credited)
	assert.Equal(t, models.TaskStatusVerified, reviewed.Task.Status)
	assert.EqualValues(t, 130, reviewed.User.AirdropBalance)

	_, err = tasks.Review(context.Background(), task.ID, true, "admin@example.com")
	assert.ErrorIs(t, err, economy.ErrTaskAlreadyRewarded)

	pending, err = tasks.PendingReviews(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReferralSettlement(t *testing.T) {
	h := newHarness(t)
	referrals := NewReferralService(h.ledger)
	accounts := NewAccountService(h.ledger)

	aliceCtx := h.as("alice@example.com", "Alice")
	alice, err := h.ledger.EnsureAccount(aliceCtx)
	require.NoError(t, err)

	_, err = referrals.Apply(aliceCtx, alice.Code())
	assert.ErrorIs(t, err, economy.ErrSelfReferral)
	_, err = referrals.Apply(aliceCtx, "NOPE999")
	assert.ErrorIs(t, err, economy.ErrInvalidReferralCode)

	bobCtx := h.as("bob@example.com", "Bob")
	ref, err := referrals.Apply(bobCtx, " "+alice.Code()+" ")
	require.NoError(t, err)
	assert.EqualValues(t, 50, ref.BonusTokens)
	assert.Equal(t, models.ReferralStatusPending, ref.Status)

	_, err = referrals.Apply(bobCtx, alice.Code())
	assert.ErrorIs(t, err, economy.ErrAlreadyReferred)

	// pending referrals are not settled
	n, err := referrals.SettleConfirmed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = referrals.Confirm(context.Background(), ref.ID)
	require.NoError(t, err)
	_, err = referrals.Confirm(context.Background(), ref.ID)
	assert.ErrorIs(t, err, economy.ErrReferralNotConfirmable)

	n, err = referrals.SettleConfirmed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = referrals.SettleConfirmed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	overview, err := accounts.Overview(aliceCtx)
	require.NoError(t, err)
	assert.EqualValues(t, 150, overview.User.AirdropBalance)
	assert.EqualValues(t, 50, overview.User.TotalEarned)
	assert.EqualValues(t, 1, overview.User.TotalReferrals)
	assert.EqualValues(t, 110, overview.Claim.Reward)
	require.Len(t, overview.RecentReferrals, 1)
	assert.Equal(t, models.ReferralStatusRewarded, overview.RecentReferrals[0].Status)
	assert.NotNil(t, overview.RecentReferrals[0].RewardedAt)
}

func TestLeaderboard(t *testing.T) {
	h := newHarness(t)
	board := NewLeaderboardService(h.ledger)

	seed := func(email, name string, referrals, earned int64) {
		ctx := h.as(email, name)
		user, err := h.ledger.EnsureAccount(ctx)
		require.NoError(t, err)
		_, err = h.store.MutateUser(ctx, user.Email, func(u *models.User, _ store.Tx) error {
			u.TotalReferrals = referrals
			u.TotalEarned = earned
			return nil
		})
		require.NoError(t, err)
	}
	seed("a@example.com", "Ann", 3, 150)
	seed("b@example.com", "Ben", 5, 50)
	seed("c@example.com", "Cat", 0, 0)
	seed("d@example.com", "Dan", 0, 400)

	entries, err := board.Top(h.as("b@example.com", "Ben"), ByReferrals, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "Ben", entries[0].FullName)
	assert.Equal(t, 1, entries[0].Rank)
	assert.True(t, entries[0].IsCurrentUser)
	assert.Equal(t, "Ann", entries[1].FullName)
	assert.Equal(t, "Dan", entries[2].FullName)

	entries, err = board.Top(context.Background(), ByEarned, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Dan", entries[0].FullName)
	assert.Equal(t, "Ann", entries[1].FullName)

	_, err = ParseLeaderboardBy("balance")
	assert.ErrorIs(t, err, ErrInvalidLeaderboard)
}
