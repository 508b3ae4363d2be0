package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ledger-stats-system/internal/models"
	"ledger-stats-system/internal/repository"
	"ledger-stats-system/internal/tiers"
	"ledger-stats-system/pkg/errors"
	"ledger-stats-system/pkg/logger"
)

// BalanceService folds new ledger transactions into per-account hourly
// balance snapshots. Progress is derived from the records themselves (the
// block-height watermark), so a retried run after a failure reprocesses from
// the same point and the height-set union keeps folding idempotent.
type BalanceService struct {
	db      *gorm.DB
	txRepo  *repository.TransactionRepository
	balRepo *repository.BalanceRepository
	tiers   *tiers.Table
	mu      sync.Mutex
}

func NewBalanceService(
	db *gorm.DB,
	txRepo *repository.TransactionRepository,
	balRepo *repository.BalanceRepository,
	tierTable *tiers.Table,
) *BalanceService {
	return &BalanceService{
		db:      db,
		txRepo:  txRepo,
		balRepo: balRepo,
		tiers:   tierTable,
	}
}

type groupKey struct {
	accountID string
	hour      time.Time
}

// heightDelta is one transaction's contribution to one account's hour bucket.
// Keyed by block height so already-folded heights can be filtered out before
// the totals are touched.
type heightDelta struct {
	in  decimal.Decimal
	out decimal.Decimal
}

type hourlyChange struct {
	deltas map[int64]*heightDelta
}

// ProcessNewTransactions reads all transactions at or above the watermark and
// folds them into hourly balance records. The whole call runs in a single
// database transaction; any error aborts without partial commits.
func (s *BalanceService) ProcessNewTransactions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balRepo := s.balRepo.WithTx(tx)
		txRepo := s.txRepo.WithTx(tx)

		watermark, err := balRepo.MaxFoldedBlockHeight(ctx)
		if err != nil {
			return errors.New(errors.ErrBalanceAgg, "failed to determine watermark", err)
		}

		txs, err := txRepo.GetFromHeight(ctx, watermark)
		if err != nil {
			return errors.New(errors.ErrBalanceAgg, "failed to load transactions", err)
		}
		if len(txs) == 0 {
			return nil
		}

		groups := groupByAccountHour(txs)

		for _, key := range sortedGroupKeys(groups) {
			if err := s.applyGroup(ctx, balRepo, key, groups[key]); err != nil {
				return err
			}
		}

		logger.WithFields(map[string]interface{}{
			"watermark":    watermark,
			"transactions": len(txs),
			"groups":       len(groups),
		}).Info("Balance aggregation completed")

		return nil
	})
}

// groupByAccountHour buckets transactions by (account, hour) for both sides
// of each transfer. The sender bears amount plus fee, the receiver gains
// amount only. Pure allowance approvals move no balance and are skipped.
func groupByAccountHour(txs []models.Transaction) map[groupKey]*hourlyChange {
	groups := make(map[groupKey]*hourlyChange)

	delta := func(key groupKey, height int64) *heightDelta {
		change, ok := groups[key]
		if !ok {
			change = &hourlyChange{deltas: make(map[int64]*heightDelta)}
			groups[key] = change
		}
		d, ok := change.deltas[height]
		if !ok {
			d = &heightDelta{in: decimal.Zero, out: decimal.Zero}
			change.deltas[height] = d
		}
		return d
	}

	for i := range txs {
		tx := &txs[i]
		if !tx.MovesBalance() {
			continue
		}
		hour := hourBucket(tx.CreatedAt)

		if tx.FromAccountIdentifier != "" {
			d := delta(groupKey{tx.FromAccountIdentifier, hour}, tx.BlockHeight)
			d.out = d.out.Add(tx.AmountOrZero()).Add(tx.FeeOrZero())
		}
		if tx.ToAccountIdentifier != "" {
			d := delta(groupKey{tx.ToAccountIdentifier, hour}, tx.BlockHeight)
			d.in = d.in.Add(tx.AmountOrZero())
		}
	}

	return groups
}

// sortedGroupKeys orders groups ascending by hour, then account. Later hours
// must be folded after earlier ones so prefix-sum seeding sees committed
// state.
func sortedGroupKeys(groups map[groupKey]*hourlyChange) []groupKey {
	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].hour.Equal(keys[j].hour) {
			return keys[i].hour.Before(keys[j].hour)
		}
		return keys[i].accountID < keys[j].accountID
	})
	return keys
}

func (s *BalanceService) applyGroup(ctx context.Context, balRepo *repository.BalanceRepository, key groupKey, change *hourlyChange) error {
	record, err := balRepo.GetByAccountHour(ctx, key.accountID, key.hour)
	if err != nil {
		return errors.New(errors.ErrBalanceAgg, "failed to load hourly record", err)
	}
	if record == nil {
		record = &models.AccountHourlyBalance{
			AccountIdentifier: key.accountID,
			Hour:              key.hour,
			Balance:           decimal.Zero,
			TotalIn:           decimal.Zero,
			TotalOut:          decimal.Zero,
		}
	}

	deltaIn, deltaOut, newHeights := unfoldedDeltas(record, change)
	if len(newHeights) == 0 {
		// Everything in the group was already folded; a rerun over the same
		// input is a no-op.
		return nil
	}

	// A new height landing before the account's newest record would leave
	// every later prefix sum stale. Quarantine instead of folding out of
	// order.
	latest, err := balRepo.GetLatest(ctx, key.accountID)
	if err != nil {
		return errors.New(errors.ErrBalanceAgg, "failed to load latest record", err)
	}
	if latest != nil && latest.Hour.After(key.hour) {
		reportQuarantine("Dropped out-of-order transaction group", map[string]interface{}{
			"account_identifier": key.accountID,
			"hour":               key.hour,
			"latest_hour":        latest.Hour,
			"block_heights":      newHeights,
		})
		return nil
	}

	if len(record.TransactionBlockHeights) == 0 && record.TotalIn.IsZero() && record.TotalOut.IsZero() {
		prev, err := balRepo.GetLatestBefore(ctx, key.accountID, key.hour)
		if err != nil {
			return errors.New(errors.ErrBalanceAgg, "failed to load previous record", err)
		}
		if prev != nil {
			record.Balance = prev.Balance
		}
	}

	record.TotalIn = record.TotalIn.Add(deltaIn)
	record.TotalOut = record.TotalOut.Add(deltaOut)
	record.Balance = record.Balance.Add(deltaIn).Sub(deltaOut)
	record.MergeBlockHeights(newHeights)

	if record.Balance.IsNegative() {
		reportQuarantine("Dropped transaction group producing negative balance", map[string]interface{}{
			"account_identifier": key.accountID,
			"hour":               key.hour,
			"balance":            record.Balance.String(),
			"block_heights":      newHeights,
		})
		return nil
	}

	record.WalletCategory = s.tiers.Classify(record.Balance)

	if err := balRepo.Save(ctx, record); err != nil {
		return errors.New(errors.ErrBalanceAgg, "failed to save hourly record", err)
	}
	return nil
}

// reportQuarantine records a dropped transaction group. The next run's read
// window starts at the global max folded height, so a dropped height below it
// is never re-read; this entry is the durable record for manual replay.
func reportQuarantine(message string, fields map[string]interface{}) {
	fields["code"] = errors.ErrDataIntegrity
	logger.WithFields(fields).Error(message)
}

// unfoldedDeltas sums the group's contributions from heights not yet in the
// record's set. Refolding an already-processed block therefore adds nothing.
func unfoldedDeltas(record *models.AccountHourlyBalance, change *hourlyChange) (deltaIn, deltaOut decimal.Decimal, newHeights []int64) {
	deltaIn, deltaOut = decimal.Zero, decimal.Zero

	heights := make([]int64, 0, len(change.deltas))
	for height := range change.deltas {
		heights = append(heights, height)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	for _, height := range heights {
		if record.HasBlockHeight(height) {
			continue
		}
		d := change.deltas[height]
		deltaIn = deltaIn.Add(d.in)
		deltaOut = deltaOut.Add(d.out)
		newHeights = append(newHeights, height)
	}
	return deltaIn, deltaOut, newHeights
}

// hourBucket truncates t to the wall-clock hour it falls into, in UTC.
func hourBucket(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
