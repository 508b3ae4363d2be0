package ingester

import (
	"context"

	"ledger-stats-system/internal/repository"
	"ledger-stats-system/pkg/logger"
)

// Poller pulls the latest page of ledger transactions and appends the ones
// not yet stored. Rows are keyed by block height, so re-fetching an
// overlapping page is harmless.
type Poller struct {
	client *Client
	txRepo *repository.TransactionRepository
}

func NewPoller(client *Client, txRepo *repository.TransactionRepository) *Poller {
	return &Poller{
		client: client,
		txRepo: txRepo,
	}
}

// FetchAndStore runs one ingestion cycle. Individual bad records are logged
// and skipped; a transport failure aborts the cycle and the next tick
// retries.
func (p *Poller) FetchAndStore(ctx context.Context) error {
	raws, err := p.client.FetchLatest(ctx)
	if err != nil {
		return err
	}

	stored, skipped := 0, 0
	for i := range raws {
		tx, err := ParseRawTransaction(&raws[i])
		if err != nil {
			logger.WithError(err).WithField("block_height", raws[i].BlockHeight).
				Warn("Skipping unparseable transaction")
			continue
		}

		exists, err := p.txRepo.ExistsByHeight(ctx, tx.BlockHeight)
		if err != nil {
			return err
		}
		if exists {
			skipped++
			continue
		}

		if err := p.txRepo.Create(ctx, tx); err != nil {
			return err
		}
		stored++
	}

	logger.WithFields(map[string]interface{}{
		"fetched": len(raws),
		"stored":  stored,
		"skipped": skipped,
	}).Info("Ledger ingestion cycle completed")

	return nil
}
