package repository

import (
	"context"

	"gorm.io/gorm"

	"ledger-stats-system/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *TransactionRepository) WithTx(tx *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

// GetFromHeight returns all transactions with block height >= height, ordered
// ascending. Ingestion batches are not guaranteed height-ordered, so ordering
// happens here.
func (r *TransactionRepository) GetFromHeight(ctx context.Context, height int64) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("block_height >= ?", height).
		Order("block_height ASC").
		Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) ExistsByHeight(ctx context.Context, height int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("block_height = ?", height).
		Count(&count).Error
	return count > 0, err
}

func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// GetMaxHeight returns the highest ingested block height, 0 when the log is
// empty.
func (r *TransactionRepository) GetMaxHeight(ctx context.Context) (int64, error) {
	var height *int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("MAX(block_height)").
		Scan(&height).Error
	if err != nil || height == nil {
		return 0, err
	}
	return *height, nil
}
