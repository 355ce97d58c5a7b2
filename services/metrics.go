package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"bonkers-airdrop/economy"
	"bonkers-airdrop/store"
)

// Metrics counts ledger activity. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	claims              prometheus.Counter
	claimedTokens       prometheus.Counter
	swaps               prometheus.Counter
	swapVolume          prometheus.Counter
	withdrawals         prometheus.Counter
	taskRewards         *prometheus.CounterVec
	referralSettlements prometheus.Counter
	rejections          *prometheus.CounterVec
	conflicts           *prometheus.CounterVec
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "bonkers"
	}
	registry := prometheus.NewRegistry()
	m := &Metrics{
		Registry: registry,
		claims: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Successful daily claims.",
		}),
		claimedTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claimed_bonk_total",
			Help:      "BONK granted by daily claims.",
		}),
		swaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_total",
			Help:      "Completed BONK to USDT swaps.",
		}),
		swapVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_bonk_total",
			Help:      "BONK debited by swaps.",
		}),
		withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Recorded USDT withdrawals.",
		}),
		taskRewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_rewards_total",
			Help:      "Task rewards credited.",
		}, []string{"task_type"}),
		referralSettlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_settlements_total",
			Help:      "Referrals moved to rewarded with a referrer credit.",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Operations rejected by a business rule.",
		}, []string{"operation", "code"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflicts_total",
			Help:      "Ledger writes that exhausted their optimistic-concurrency retries.",
		}, []string{"operation"}),
	}
	registry.MustRegister(
		m.claims,
		m.claimedTokens,
		m.swaps,
		m.swapVolume,
		m.withdrawals,
		m.taskRewards,
		m.referralSettlements,
		m.rejections,
		m.conflicts,
	)
	return m
}

func (m *Metrics) claimed(reward int64) {
	if m == nil {
		return
	}
	m.claims.Inc()
	m.claimedTokens.Add(float64(reward))
}

func (m *Metrics) swapped(amount int64) {
	if m == nil {
		return
	}
	m.swaps.Inc()
	m.swapVolume.Add(float64(amount))
}

func (m *Metrics) withdrew() {
	if m == nil {
		return
	}
	m.withdrawals.Inc()
}

func (m *Metrics) taskRewarded(taskType string) {
	if m == nil {
		return
	}
	m.taskRewards.WithLabelValues(taskType).Inc()
}

func (m *Metrics) referralSettled() {
	if m == nil {
		return
	}
	m.referralSettlements.Inc()
}

// observe records the outcome of a failed operation and returns err.
func (m *Metrics) observe(operation string, err error) error {
	if m == nil || err == nil {
		return err
	}
	var rule *economy.RuleError
	switch {
	case errors.As(err, &rule):
		m.rejections.WithLabelValues(operation, string(rule.Code)).Inc()
	case errors.Is(err, economy.ErrClaimTooEarly):
		m.rejections.WithLabelValues(operation, string(economy.CodeClaimTooEarly)).Inc()
	case errors.Is(err, store.ErrConcurrentModification):
		m.conflicts.WithLabelValues(operation).Inc()
	}
	return err
}
