package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"ledger-stats-system/internal/tiers"
)

// AccountHourlyBalance is one account's balance snapshot for one hour bucket.
// For a fixed account, balances ordered by hour form a prefix-sum chain:
// balance(h) = balance(h_prev) + total_in(h) - total_out(h). Hours with no
// activity have no row; absence means "no activity", not "zero balance".
type AccountHourlyBalance struct {
	AccountIdentifier       string          `gorm:"primaryKey;type:char(64)" json:"account_identifier"`
	Hour                    time.Time       `gorm:"primaryKey;index:idx_ahb_hour" json:"hour"`
	Balance                 decimal.Decimal `gorm:"type:numeric(38,8);not null" json:"balance"`
	TotalIn                 decimal.Decimal `gorm:"type:numeric(38,8);not null" json:"total_in"`
	TotalOut                decimal.Decimal `gorm:"type:numeric(38,8);not null" json:"total_out"`
	TransactionBlockHeights pq.Int64Array   `gorm:"type:bigint[]" json:"transaction_block_heights"`
	WalletCategory          tiers.Category  `gorm:"type:varchar(16);index:idx_ahb_category_hour" json:"wallet_category"`
}

func (AccountHourlyBalance) TableName() string {
	return "account_hourly_balances"
}

// MergeBlockHeights folds heights into the record's height set. The union
// keeps reprocessing idempotent: folding a block twice is a no-op.
func (b *AccountHourlyBalance) MergeBlockHeights(heights []int64) {
	seen := make(map[int64]struct{}, len(b.TransactionBlockHeights)+len(heights))
	for _, h := range b.TransactionBlockHeights {
		seen[h] = struct{}{}
	}
	for _, h := range heights {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		b.TransactionBlockHeights = append(b.TransactionBlockHeights, h)
	}
}

// HasBlockHeight reports whether height is already folded into this record.
func (b *AccountHourlyBalance) HasBlockHeight(height int64) bool {
	for _, h := range b.TransactionBlockHeights {
		if h == height {
			return true
		}
	}
	return false
}
