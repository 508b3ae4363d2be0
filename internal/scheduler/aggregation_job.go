package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"ledger-stats-system/internal/config"
	"ledger-stats-system/internal/ingester"
	"ledger-stats-system/internal/service"
	"ledger-stats-system/pkg/logger"
)

// AggregationScheduler triggers the ingestion and aggregation entry points on
// a fixed cadence. Each job is single-flight: the checkpoint read-then-write
// inside an aggregator is not safe under concurrent writers, so an overlapping
// tick is skipped, never queued.
type AggregationScheduler struct {
	cron       *cron.Cron
	cfg        *config.Config
	poller     *ingester.Poller
	balanceSvc *service.BalanceService
	statsSvc   *service.WalletStatsService

	ingestRunning  int32
	balanceRunning int32
	statsRunning   int32
}

func NewAggregationScheduler(
	cfg *config.Config,
	poller *ingester.Poller,
	balanceSvc *service.BalanceService,
	statsSvc *service.WalletStatsService,
) *AggregationScheduler {
	return &AggregationScheduler{
		cron:       cron.New(cron.WithSeconds()),
		cfg:        cfg,
		poller:     poller,
		balanceSvc: balanceSvc,
		statsSvc:   statsSvc,
	}
}

func (s *AggregationScheduler) Start() error {
	if s.cfg.Ledger.PollEnabled && s.poller != nil {
		if _, err := s.cron.AddFunc(s.cfg.Ledger.IngestCron, s.runIngest); err != nil {
			return err
		}
	}
	if _, err := s.cron.AddFunc(s.cfg.Aggregation.BalanceCron, s.runBalanceAggregation); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.Aggregation.WalletStatsCron, s.runWalletStats); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Aggregation scheduler started")
	return nil
}

func (s *AggregationScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Aggregation scheduler stopped")
}

// singleFlight runs fn if no invocation with the same flag is in flight,
// otherwise logs and skips.
func singleFlight(flag *int32, name string, fn func()) {
	if !atomic.CompareAndSwapInt32(flag, 0, 1) {
		logger.WithField("job", name).Warn("Previous run still in flight, skipping trigger")
		return
	}
	defer atomic.StoreInt32(flag, 0)
	fn()
}

func (s *AggregationScheduler) runIngest() {
	singleFlight(&s.ingestRunning, "ingest", func() {
		if err := s.poller.FetchAndStore(context.Background()); err != nil {
			logger.WithError(err).Error("Ledger ingestion run failed")
		}
	})
}

func (s *AggregationScheduler) runBalanceAggregation() {
	singleFlight(&s.balanceRunning, "balance_aggregation", func() {
		if err := s.balanceSvc.ProcessNewTransactions(context.Background()); err != nil {
			logger.WithError(err).Error("Balance aggregation run failed")
		}
	})
}

func (s *AggregationScheduler) runWalletStats() {
	singleFlight(&s.statsRunning, "wallet_stats", func() {
		if _, err := s.statsSvc.IncrementalUpdate(context.Background(), s.cfg.Aggregation.MaxHoursPerRun); err != nil {
			logger.WithError(err).Error("Wallet stats run failed")
		}
	})
}

// TriggerBalanceAggregation runs the balance aggregator outside the cron
// cadence, honoring the same single-flight guard.
func (s *AggregationScheduler) TriggerBalanceAggregation(ctx context.Context) error {
	var err error
	ran := false
	singleFlight(&s.balanceRunning, "balance_aggregation", func() {
		ran = true
		err = s.balanceSvc.ProcessNewTransactions(ctx)
	})
	if !ran {
		return errAlreadyRunning("balance aggregation")
	}
	return err
}

// TriggerWalletStats runs the segmentation aggregator outside the cron
// cadence. maxHours <= 0 falls back to the configured bound.
func (s *AggregationScheduler) TriggerWalletStats(ctx context.Context, maxHours int) (int, error) {
	if maxHours <= 0 {
		maxHours = s.cfg.Aggregation.MaxHoursPerRun
	}
	var (
		err       error
		processed int
	)
	ran := false
	singleFlight(&s.statsRunning, "wallet_stats", func() {
		ran = true
		processed, err = s.statsSvc.IncrementalUpdate(ctx, maxHours)
	})
	if !ran {
		return 0, errAlreadyRunning("wallet stats update")
	}
	return processed, err
}

// TriggerBackfill runs the full historical reconstruction, sharing the
// wallet-stats single-flight guard.
func (s *AggregationScheduler) TriggerBackfill(ctx context.Context) error {
	var err error
	ran := false
	singleFlight(&s.statsRunning, "wallet_stats_backfill", func() {
		ran = true
		err = s.statsSvc.BackfillAll(ctx)
	})
	if !ran {
		return errAlreadyRunning("wallet stats update")
	}
	return err
}
