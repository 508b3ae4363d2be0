package service

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"ledger-stats-system/internal/models"
	"ledger-stats-system/internal/repository"
	"ledger-stats-system/internal/tiers"
	"ledger-stats-system/pkg/errors"
	"ledger-stats-system/pkg/logger"
)

// balanceHourSource is the slice of the balance repository the segmentation
// walk reads from.
type balanceHourSource interface {
	ActivityHourRange(ctx context.Context) (earliest, latest time.Time, ok bool, err error)
	HourHasActivity(ctx context.Context, hour time.Time) (bool, error)
	CategoryCountsAsOf(ctx context.Context, hour time.Time, inclusive bool) (map[tiers.Category]int64, error)
}

// statsStore is the slice of the stats repository the walk reads and prunes.
// Writes go through the hourCommitter so each hour commits atomically.
type statsStore interface {
	GetLatest(ctx context.Context) (*models.UniqueWalletsHourly, error)
	GetByHour(ctx context.Context, hour time.Time) (*models.UniqueWalletsHourly, error)
	DeleteByHour(ctx context.Context, hour time.Time) error
	ExistingHours(ctx context.Context) ([]time.Time, error)
}

// hourCommitter computes one hour's record and writes it durably.
type hourCommitter interface {
	CommitHour(ctx context.Context, hour time.Time, prev *models.UniqueWalletsHourly) (*models.UniqueWalletsHourly, error)
}

// HourStrategy computes the segmentation snapshot for a single hour. prev is
// the immediately preceding hour's record, nil when none exists yet.
type HourStrategy interface {
	ComputeHour(ctx context.Context, balances balanceHourSource, hour time.Time, prev *models.UniqueWalletsHourly) (*models.UniqueWalletsHourly, error)
}

// RankedQueryStrategy derives each hour's counts with a per-hour SQL ranking
// query (last record per account at or before the hour). Hours without
// activity carry the previous record forward unchanged.
type RankedQueryStrategy struct{}

func (RankedQueryStrategy) ComputeHour(ctx context.Context, balances balanceHourSource, hour time.Time, prev *models.UniqueWalletsHourly) (*models.UniqueWalletsHourly, error) {
	hasActivity, err := balances.HourHasActivity(ctx, hour)
	if err != nil {
		return nil, err
	}

	if !hasActivity && prev != nil {
		return prev.CopyForHour(hour), nil
	}

	// Either the hour has activity, or this is the first hour of history with
	// nothing before it; both degenerate to the as-of snapshot query.
	counts, err := balances.CategoryCountsAsOf(ctx, hour, hasActivity)
	if err != nil {
		return nil, err
	}

	stats := &models.UniqueWalletsHourly{Hour: hour}
	stats.SetCategoryCounts(counts)
	return stats, nil
}

// txHourCommitter computes and commits one hour inside its own gorm
// transaction, repositories rebound to the transaction handle.
type txHourCommitter struct {
	db        *gorm.DB
	balRepo   *repository.BalanceRepository
	statsRepo *repository.WalletStatsRepository
	strategy  HourStrategy
}

func (c *txHourCommitter) CommitHour(ctx context.Context, hour time.Time, prev *models.UniqueWalletsHourly) (*models.UniqueWalletsHourly, error) {
	var stats *models.UniqueWalletsHourly

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stats, err = c.strategy.ComputeHour(ctx, c.balRepo.WithTx(tx), hour, prev)
		if err != nil {
			return err
		}
		return c.statsRepo.WithTx(tx).Create(ctx, stats)
	})
	if err != nil {
		return nil, errors.New(errors.ErrWalletStats, "failed to process hour "+hour.Format(time.RFC3339), err)
	}

	logger.WithFields(map[string]interface{}{
		"hour":          hour,
		"total_wallets": stats.TotalWallets,
	}).Debug("Wallet stats hour committed")

	return stats, nil
}

// WalletStatsService maintains the network-wide hourly wallet segmentation
// table. Each hour commits in its own transaction, so a run can stop after
// any hour and resume from the checkpoint on the next trigger. The checkpoint
// hour itself is always deleted and recomputed because it may have been
// written before all of that hour's activity had landed.
type WalletStatsService struct {
	balances  balanceHourSource
	stats     statsStore
	committer hourCommitter
	mu        sync.Mutex
}

func NewWalletStatsService(
	db *gorm.DB,
	balRepo *repository.BalanceRepository,
	statsRepo *repository.WalletStatsRepository,
	strategy HourStrategy,
) *WalletStatsService {
	if strategy == nil {
		strategy = RankedQueryStrategy{}
	}
	return &WalletStatsService{
		balances: balRepo,
		stats:    statsRepo,
		committer: &txHourCommitter{
			db:        db,
			balRepo:   balRepo,
			statsRepo: statsRepo,
			strategy:  strategy,
		},
	}
}

// IncrementalUpdate advances the segmentation table by at most maxHours hours
// and returns the number of hours processed. maxHours bounds per-run cost
// only; the next scheduled run resumes from the new checkpoint.
func (s *WalletStatsService) IncrementalUpdate(ctx context.Context, maxHours int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if maxHours <= 0 {
		maxHours = 60
	}

	earliest, latest, ok, err := s.balances.ActivityHourRange(ctx)
	if err != nil {
		return 0, errors.New(errors.ErrWalletStats, "failed to determine activity range", err)
	}
	if !ok {
		logger.Debug("No balance activity yet, skipping wallet stats update")
		return 0, nil
	}

	checkpoint, err := s.stats.GetLatest(ctx)
	if err != nil {
		return 0, errors.New(errors.ErrWalletStats, "failed to load checkpoint", err)
	}

	var start time.Time
	var prev *models.UniqueWalletsHourly

	if checkpoint == nil {
		start = earliest
	} else {
		start = checkpoint.Hour.UTC()
		if err := s.stats.DeleteByHour(ctx, start); err != nil {
			return 0, errors.New(errors.ErrWalletStats, "failed to delete checkpoint hour", err)
		}
		prev, err = s.stats.GetByHour(ctx, start.Add(-time.Hour))
		if err != nil {
			return 0, errors.New(errors.ErrWalletStats, "failed to load previous hour", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"start":     start,
		"latest":    latest,
		"max_hours": maxHours,
	}).Info("Starting incremental wallet stats update")

	processed := 0
	for hour := start; !hour.After(latest) && processed < maxHours; hour = hour.Add(time.Hour) {
		stats, err := s.committer.CommitHour(ctx, hour, prev)
		if err != nil {
			return processed, err
		}
		prev = stats
		processed++
	}

	logger.WithFields(map[string]interface{}{
		"hours_processed": processed,
	}).Info("Incremental wallet stats update completed")

	return processed, nil
}

// BackfillAll reconstructs the segmentation table across the entire observed
// time range. Hours that already have a record are kept (and seed the
// carry-forward), except the checkpoint hour, which is recomputed.
func (s *WalletStatsService) BackfillAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	earliest, latest, ok, err := s.balances.ActivityHourRange(ctx)
	if err != nil {
		return errors.New(errors.ErrWalletStats, "failed to determine activity range", err)
	}
	if !ok {
		logger.Info("No balance activity, nothing to backfill")
		return nil
	}

	existingHours, err := s.stats.ExistingHours(ctx)
	if err != nil {
		return errors.New(errors.ErrWalletStats, "failed to load existing hours", err)
	}
	existing := make(map[time.Time]struct{}, len(existingHours))
	for _, h := range existingHours {
		existing[h] = struct{}{}
	}

	checkpoint, err := s.stats.GetLatest(ctx)
	if err != nil {
		return errors.New(errors.ErrWalletStats, "failed to load checkpoint", err)
	}
	if checkpoint != nil {
		hour := checkpoint.Hour.UTC()
		delete(existing, hour)
		if err := s.stats.DeleteByHour(ctx, hour); err != nil {
			return errors.New(errors.ErrWalletStats, "failed to delete checkpoint hour", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"earliest": earliest,
		"latest":   latest,
		"existing": len(existing),
	}).Info("Starting wallet stats backfill")

	var prev *models.UniqueWalletsHourly
	calculated, skipped := 0, 0

	for hour := earliest; !hour.After(latest); hour = hour.Add(time.Hour) {
		if _, ok := existing[hour]; ok {
			prev, err = s.stats.GetByHour(ctx, hour)
			if err != nil {
				return errors.New(errors.ErrWalletStats, "failed to load existing hour", err)
			}
			skipped++
			continue
		}

		stats, err := s.committer.CommitHour(ctx, hour, prev)
		if err != nil {
			return err
		}
		prev = stats
		calculated++
	}

	logger.WithFields(map[string]interface{}{
		"calculated": calculated,
		"skipped":    skipped,
	}).Info("Wallet stats backfill completed")

	return nil
}
