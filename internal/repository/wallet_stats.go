package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"ledger-stats-system/internal/models"
)

type WalletStatsRepository struct {
	db *gorm.DB
}

func NewWalletStatsRepository(db *gorm.DB) *WalletStatsRepository {
	return &WalletStatsRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *WalletStatsRepository) WithTx(tx *gorm.DB) *WalletStatsRepository {
	return &WalletStatsRepository{db: tx}
}

// GetLatest returns the checkpoint: the most recent hourly stats record.
func (r *WalletStatsRepository) GetLatest(ctx context.Context) (*models.UniqueWalletsHourly, error) {
	var stats models.UniqueWalletsHourly
	err := r.db.WithContext(ctx).
		Order("hour DESC").
		First(&stats).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &stats, err
}

func (r *WalletStatsRepository) GetByHour(ctx context.Context, hour time.Time) (*models.UniqueWalletsHourly, error) {
	var stats models.UniqueWalletsHourly
	err := r.db.WithContext(ctx).
		Where("hour = ?", hour).
		First(&stats).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &stats, err
}

func (r *WalletStatsRepository) DeleteByHour(ctx context.Context, hour time.Time) error {
	return r.db.WithContext(ctx).
		Where("hour = ?", hour).
		Delete(&models.UniqueWalletsHourly{}).Error
}

func (r *WalletStatsRepository) Create(ctx context.Context, stats *models.UniqueWalletsHourly) error {
	return r.db.WithContext(ctx).Create(stats).Error
}

// ExistingHours returns every hour that already has a stats record, ascending.
func (r *WalletStatsRepository) ExistingHours(ctx context.Context) ([]time.Time, error) {
	var hours []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.UniqueWalletsHourly{}).
		Order("hour ASC").
		Pluck("hour", &hours).Error
	if err != nil {
		return nil, err
	}
	for i := range hours {
		hours[i] = hours[i].UTC()
	}
	return hours, nil
}
