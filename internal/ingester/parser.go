package ingester

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledger-stats-system/internal/models"
	"ledger-stats-system/pkg/errors"
)

// baseUnitDigits is the fixed-point scale of the ledger's base unit: amounts
// arrive as integer strings denominated in 1e-8 token units.
const baseUnitDigits = 8

// RawTransaction is one transfer record as returned by the ledger API.
// Numeric fields are strings in base units; timestamps are unix seconds.
type RawTransaction struct {
	BlockHeight              string `json:"block_height"`
	ParentHash               string `json:"parent_hash"`
	BlockHash                string `json:"block_hash"`
	TransactionHash          string `json:"transaction_hash"`
	FromAccountIdentifier    string `json:"from_account_identifier"`
	ToAccountIdentifier      string `json:"to_account_identifier"`
	SpenderAccountIdentifier string `json:"spender_account_identifier"`
	TransferType             string `json:"transfer_type"`
	Amount                   string `json:"amount"`
	Fee                      string `json:"fee"`
	CreatedAt                int64  `json:"created_at"`
	Allowance                string `json:"allowance"`
	ExpectedAllowance        string `json:"expected_allowance"`
	ExpiresAt                *int64 `json:"expires_at"`
}

// parseBaseUnits converts a base-unit string into token units. Empty or
// malformed values map to NULL.
func parseBaseUnits(value string) decimal.NullDecimal {
	if value == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d.Shift(-baseUnitDigits), Valid: true}
}

// ParseRawTransaction converts a raw API record into a Transaction row.
func ParseRawTransaction(raw *RawTransaction) (*models.Transaction, error) {
	height, err := strconv.ParseInt(raw.BlockHeight, 10, 64)
	if err != nil {
		return nil, errors.New(errors.ErrTxParse,
			fmt.Sprintf("invalid block height %q", raw.BlockHeight), err)
	}
	if raw.CreatedAt <= 0 {
		return nil, errors.New(errors.ErrTxParse,
			fmt.Sprintf("invalid created_at %d for block %d", raw.CreatedAt, height), nil)
	}

	tx := &models.Transaction{
		BlockHeight:              height,
		ParentHash:               raw.ParentHash,
		BlockHash:                raw.BlockHash,
		TransactionHash:          raw.TransactionHash,
		FromAccountIdentifier:    raw.FromAccountIdentifier,
		ToAccountIdentifier:      raw.ToAccountIdentifier,
		SpenderAccountIdentifier: raw.SpenderAccountIdentifier,
		TransferType:             models.TransferType(strings.ToUpper(raw.TransferType)),
		Amount:                   parseBaseUnits(raw.Amount),
		Fee:                      parseBaseUnits(raw.Fee),
		CreatedAt:                time.Unix(raw.CreatedAt, 0).UTC(),
		Allowance:                parseBaseUnits(raw.Allowance),
		ExpectedAllowance:        parseBaseUnits(raw.ExpectedAllowance),
	}

	if raw.ExpiresAt != nil {
		expires := time.Unix(*raw.ExpiresAt, 0).UTC()
		tx.ExpiresAt = &expires
	}

	return tx, nil
}
