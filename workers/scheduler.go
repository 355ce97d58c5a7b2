package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// ReferralSettler credits confirmed referrals.
type ReferralSettler interface {
	SettleConfirmed(ctx context.Context) (int, error)
}

// Sweeper drops idle rate-limiter state.
type Sweeper interface {
	Sweep() int
}

// Scheduler runs the background jobs. Every job runs as a singleton so a
// slow run is never overlapped by the next tick.
type Scheduler struct {
	sched   gocron.Scheduler
	ctx     context.Context
	timeout time.Duration
}

func NewScheduler(ctx context.Context) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithGlobalJobOptions(gocron.WithSingletonMode(gocron.LimitModeReschedule)),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: sched, ctx: ctx, timeout: 5 * time.Minute}, nil
}

func (s *Scheduler) AddReferralSettlement(settler ReferralSettler, every time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
			defer cancel()
			settled, err := settler.SettleConfirmed(ctx)
			if err != nil {
				log.Printf("[Scheduler] referral settlement: %v", err)
			}
			if settled > 0 {
				log.Printf("✅ Settled %d referrals", settled)
			}
		}),
		gocron.WithName("referral-settlement"),
	)
	return err
}

func (s *Scheduler) AddLimiterSweep(sweeper Sweeper, every time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if removed := sweeper.Sweep(); removed > 0 {
				log.Printf("[Scheduler] dropped %d idle rate-limit entries", removed)
			}
		}),
		gocron.WithName("rate-limit-sweep"),
	)
	return err
}

// AddLedgerArchive exports the previous UTC day shortly after midnight.
func (s *Scheduler) AddLedgerArchive(archiver *LedgerArchiver) error {
	_, err := s.sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 10, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
			defer cancel()
			if _, err := archiver.ArchivePreviousDay(ctx); err != nil {
				log.Printf("[Scheduler] ledger archive: %v", err)
			}
		}),
		gocron.WithName("ledger-archive"),
	)
	return err
}

func (s *Scheduler) Start() {
	s.sched.Start()
	log.Printf("🔁 Scheduler started with %d jobs", len(s.sched.Jobs()))
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
