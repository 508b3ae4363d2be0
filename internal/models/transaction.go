package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferType string

const (
	TransferTypeTransfer TransferType = "TRANSFER"
	TransferTypeMint     TransferType = "MINT"
	TransferTypeBurn     TransferType = "BURN"
	TransferTypeApprove  TransferType = "APPROVE"
)

// Transaction is one ledger transfer record, owned by the ingester. Block
// height is the total order over the log. Amount and fee arrive already
// scaled to token units (8 fractional digits).
type Transaction struct {
	BlockHeight              int64               `gorm:"primaryKey" json:"block_height"`
	ParentHash               string              `gorm:"type:char(64)" json:"parent_hash"`
	BlockHash                string              `gorm:"type:char(64)" json:"block_hash"`
	TransactionHash          string              `gorm:"type:char(64)" json:"transaction_hash"`
	FromAccountIdentifier    string              `gorm:"type:char(64);index:idx_tx_from_created_at" json:"from_account_identifier"`
	ToAccountIdentifier      string              `gorm:"type:char(64);index:idx_tx_to_created_at" json:"to_account_identifier"`
	SpenderAccountIdentifier string              `gorm:"type:char(64)" json:"spender_account_identifier"`
	TransferType             TransferType        `gorm:"type:varchar(10)" json:"transfer_type"`
	Amount                   decimal.NullDecimal `gorm:"type:numeric(38,8)" json:"amount"`
	Fee                      decimal.NullDecimal `gorm:"type:numeric(38,8)" json:"fee"`
	CreatedAt                time.Time           `gorm:"not null;index:idx_tx_from_created_at;index:idx_tx_to_created_at" json:"created_at"`
	Allowance                decimal.NullDecimal `gorm:"type:numeric(38,8)" json:"allowance"`
	ExpectedAllowance        decimal.NullDecimal `gorm:"type:numeric(38,8)" json:"expected_allowance"`
	ExpiresAt                *time.Time          `json:"expires_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// MovesBalance reports whether the transfer affects account balances.
// Allowance approvals reserve spending rights without moving funds.
func (t *Transaction) MovesBalance() bool {
	return t.TransferType != TransferTypeApprove
}

// AmountOrZero returns the transfer amount, treating NULL as zero.
func (t *Transaction) AmountOrZero() decimal.Decimal {
	if !t.Amount.Valid {
		return decimal.Zero
	}
	return t.Amount.Decimal
}

// FeeOrZero returns the transfer fee, treating NULL as zero.
func (t *Transaction) FeeOrZero() decimal.Decimal {
	if !t.Fee.Valid {
		return decimal.Zero
	}
	return t.Fee.Decimal
}
