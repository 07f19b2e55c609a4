// workers/orchestrator.go
package workers

import (
	"context"
	"errors"
	"time"

	"partnership-sync/config"
	"partnership-sync/logger"
	"partnership-sync/models"
	"partnership-sync/services"

	"github.com/go-co-op/gocron/v2"
)

// Syncer runs the three entity syncs. Runs of different entities may overlap;
// two runs of the same entity are not serialized and rely on idempotent
// upserts.
type Syncer struct {
	runner       *Runner
	customers    customerTarget
	transactions transactionTarget
	usage        usageTarget
}

// NewSyncer wires the coordinator to a source, a store and an optional
// archive (nil disables archiving).
func NewSyncer(source PageFetcher, store SyncStore, archive PageArchiver, mp config.MarketplaceConfig, sc config.SyncConfig) *Syncer {
	return &Syncer{
		runner: &Runner{
			Source:    source,
			Archive:   archive,
			PageSize:  sc.PageSize,
			MaxPages:  sc.MaxPages,
			FullStart: sc.FullStart,
		},
		customers: customerTarget{store: store, endpoint: Endpoint{
			Path: mp.CustomersPath, Method: "POST", Order: "created_at", Sort: "desc",
		}},
		transactions: transactionTarget{store: store, endpoint: Endpoint{
			Path: mp.TransactionsPath, Method: "POST", Order: "created_at", Sort: "desc",
		}},
		usage: usageTarget{store: store, endpoint: Endpoint{
			Path: mp.UsagePath, Method: mp.UsageMethod, Order: "created_at", Sort: "desc",
		}},
	}
}

// SetClock replaces the wall clock used for windows and timings.
func (s *Syncer) SetClock(now func() time.Time) { s.runner.Now = now }

func (s *Syncer) SyncCustomers(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	return Run[models.Customer](ctx, s.runner, s.customers, opts)
}

func (s *Syncer) SyncTransactions(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	return Run[services.TransactionRecord](ctx, s.runner, s.transactions, opts)
}

func (s *Syncer) SyncUsage(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	return Run[models.CreditUsage](ctx, s.runner, s.usage, opts)
}

// SyncAllSummary reports one sync-all pass.
type SyncAllSummary struct {
	Status       string      `json:"status"`
	Customers    *RunSummary `json:"customers"`
	Transactions *RunSummary `json:"transactions"`
	Usage        *RunSummary `json:"usage"`
}

// SyncAll runs customers, then transactions, then usage. A failed entity run
// does not stop the following ones; the returned error joins the failures
// and is non-nil only when every run failed.
func (s *Syncer) SyncAll(ctx context.Context, opts RunOptions) (*SyncAllSummary, error) {
	out := &SyncAllSummary{}
	var errs []error
	failed, withErrors := 0, 0

	steps := []struct {
		run  func(context.Context, RunOptions) (*RunSummary, error)
		dest **RunSummary
	}{
		{s.SyncCustomers, &out.Customers},
		{s.SyncTransactions, &out.Transactions},
		{s.SyncUsage, &out.Usage},
	}
	for _, step := range steps {
		summary, err := step.run(ctx, opts)
		*step.dest = summary
		if err != nil {
			failed++
			errs = append(errs, err)
			continue
		}
		if summary.Status == StatusPartialError {
			withErrors++
		}
	}

	switch {
	case failed == len(steps):
		out.Status = StatusError
		return out, errors.Join(errs...)
	case failed > 0 || withErrors > 0:
		out.Status = StatusPartialError
	default:
		out.Status = StatusSyncCompleted
	}
	return out, nil
}

// StartSyncScheduler runs an incremental SyncAll every interval. A pass that
// overruns the interval delays the next one instead of overlapping it.
func StartSyncScheduler(ctx context.Context, s *Syncer, interval time.Duration) (gocron.Scheduler, error) {
	log := logger.FromContext(ctx)

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			summary, err := s.SyncAll(ctx, RunOptions{Incremental: true})
			if err != nil {
				log.Error().Err(err).Msg("[Scheduler] sync-all failed")
				return
			}
			log.Info().Str("status", summary.Status).Msg("[Scheduler] sync-all finished")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Info().Dur("interval", interval).Msg("sync scheduler started")
	return sched, nil
}
