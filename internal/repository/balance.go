package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-stats-system/internal/models"
	"ledger-stats-system/internal/tiers"
)

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *BalanceRepository) WithTx(tx *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: tx}
}

// GetByAccountHour loads the record for the exact (account, hour) key.
func (r *BalanceRepository) GetByAccountHour(ctx context.Context, accountID string, hour time.Time) (*models.AccountHourlyBalance, error) {
	var balance models.AccountHourlyBalance
	err := r.db.WithContext(ctx).
		Where("account_identifier = ? AND hour = ?", accountID, hour).
		First(&balance).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &balance, err
}

// GetLatestBefore loads the account's most recent record strictly before hour.
func (r *BalanceRepository) GetLatestBefore(ctx context.Context, accountID string, hour time.Time) (*models.AccountHourlyBalance, error) {
	var balance models.AccountHourlyBalance
	err := r.db.WithContext(ctx).
		Where("account_identifier = ? AND hour < ?", accountID, hour).
		Order("hour DESC").
		First(&balance).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &balance, err
}

// GetLatest loads the account's most recent record across all hours.
func (r *BalanceRepository) GetLatest(ctx context.Context, accountID string) (*models.AccountHourlyBalance, error) {
	var balance models.AccountHourlyBalance
	err := r.db.WithContext(ctx).
		Where("account_identifier = ?", accountID).
		Order("hour DESC").
		First(&balance).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &balance, err
}

// Save upserts a record on its composite (account, hour) key.
func (r *BalanceRepository) Save(ctx context.Context, balance *models.AccountHourlyBalance) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_identifier"}, {Name: "hour"}},
			UpdateAll: true,
		}).
		Create(balance).Error
}

// MaxFoldedBlockHeight returns the watermark: the highest block height already
// folded into any record's height set, 0 when no records exist.
func (r *BalanceRepository) MaxFoldedBlockHeight(ctx context.Context) (int64, error) {
	var height *int64
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT MAX(block_height)
			FROM (
				SELECT unnest(transaction_block_heights) AS block_height
				FROM account_hourly_balances
			) AS heights
		`).
		Scan(&height).Error
	if err != nil || height == nil {
		return 0, err
	}
	return *height, nil
}

// ActivityHourRange returns the earliest and latest hour with any balance
// activity. ok is false when the table is empty.
func (r *BalanceRepository) ActivityHourRange(ctx context.Context) (earliest, latest time.Time, ok bool, err error) {
	var bounds struct {
		MinHour *time.Time
		MaxHour *time.Time
	}
	err = r.db.WithContext(ctx).
		Model(&models.AccountHourlyBalance{}).
		Select("MIN(hour) AS min_hour, MAX(hour) AS max_hour").
		Scan(&bounds).Error
	if err != nil || bounds.MinHour == nil || bounds.MaxHour == nil {
		return time.Time{}, time.Time{}, false, err
	}
	return bounds.MinHour.UTC(), bounds.MaxHour.UTC(), true, nil
}

// HourHasActivity reports whether any account has a record at exactly hour.
func (r *BalanceRepository) HourHasActivity(ctx context.Context, hour time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AccountHourlyBalance{}).
		Where("hour = ?", hour).
		Count(&count).Error
	return count > 0, err
}

// DistinctHours returns every hour with balance activity, ascending.
func (r *BalanceRepository) DistinctHours(ctx context.Context) ([]time.Time, error) {
	var hours []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.AccountHourlyBalance{}).
		Distinct("hour").
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

// CategoryCountsAsOf counts distinct accounts per tier using each account's
// most recently known category at or before hour ("state as of time T",
// realized with DISTINCT ON ranking). With inclusive false the cutoff is
// strictly before hour.
func (r *BalanceRepository) CategoryCountsAsOf(ctx context.Context, hour time.Time, inclusive bool) (map[tiers.Category]int64, error) {
	op := "<"
	if inclusive {
		op = "<="
	}

	type categoryCount struct {
		WalletCategory string
		Count          int64
	}
	var rows []categoryCount
	err := r.db.WithContext(ctx).
		Raw(`
			SELECT wallet_category, COUNT(*) AS count
			FROM (
				SELECT DISTINCT ON (account_identifier)
					account_identifier,
					wallet_category
				FROM account_hourly_balances
				WHERE hour `+op+` ?
				ORDER BY account_identifier, hour DESC
			) AS ranked
			GROUP BY wallet_category
		`, hour).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[tiers.Category]int64, len(rows))
	for _, row := range rows {
		counts[tiers.Category(row.WalletCategory)] = row.Count
	}
	return counts, nil
}

// GetPaginated walks records in a stable key order, for maintenance passes.
func (r *BalanceRepository) GetPaginated(ctx context.Context, offset, limit int) ([]models.AccountHourlyBalance, error) {
	var balances []models.AccountHourlyBalance
	err := r.db.WithContext(ctx).
		Order("account_identifier ASC, hour ASC").
		Offset(offset).
		Limit(limit).
		Find(&balances).Error
	return balances, err
}

// UpdateCategory rewrites the cached wallet category for one record.
func (r *BalanceRepository) UpdateCategory(ctx context.Context, accountID string, hour time.Time, category tiers.Category) error {
	return r.db.WithContext(ctx).
		Model(&models.AccountHourlyBalance{}).
		Where("account_identifier = ? AND hour = ?", accountID, hour).
		Update("wallet_category", category).Error
}
