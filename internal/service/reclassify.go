package service

import (
	"context"

	"ledger-stats-system/internal/repository"
	"ledger-stats-system/internal/tiers"
	"ledger-stats-system/pkg/errors"
	"ledger-stats-system/pkg/logger"
)

const reclassifyBatchSize = 500

// ReclassifyService repairs cached wallet categories after a tier-table
// change. Stored categories are computed eagerly at balance-write time, so a
// revised table leaves historical rows stale until this pass rewrites them.
// Invoked manually, never by the aggregators.
type ReclassifyService struct {
	balRepo *repository.BalanceRepository
	tiers   *tiers.Table
}

func NewReclassifyService(balRepo *repository.BalanceRepository, tierTable *tiers.Table) *ReclassifyService {
	return &ReclassifyService{
		balRepo: balRepo,
		tiers:   tierTable,
	}
}

// Reclassify walks every hourly balance record and rewrites categories that
// no longer match the current table. Returns the number of rows updated.
func (s *ReclassifyService) Reclassify(ctx context.Context) (int, error) {
	logger.WithField("table_version", s.tiers.Version).Info("Starting reclassification pass")

	updated := 0
	for offset := 0; ; offset += reclassifyBatchSize {
		batch, err := s.balRepo.GetPaginated(ctx, offset, reclassifyBatchSize)
		if err != nil {
			return updated, errors.New(errors.ErrReclassify, "failed to load balance batch", err)
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			record := &batch[i]
			category := s.tiers.Classify(record.Balance)
			if category == record.WalletCategory {
				continue
			}
			if err := s.balRepo.UpdateCategory(ctx, record.AccountIdentifier, record.Hour, category); err != nil {
				return updated, errors.New(errors.ErrReclassify, "failed to update category", err)
			}
			updated++
		}

		if len(batch) < reclassifyBatchSize {
			break
		}
	}

	logger.WithFields(map[string]interface{}{
		"rows_updated":  updated,
		"table_version": s.tiers.Version,
	}).Info("Reclassification pass completed")

	return updated, nil
}
