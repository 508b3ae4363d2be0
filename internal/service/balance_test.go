package service

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"ledger-stats-system/internal/models"
	"ledger-stats-system/pkg/errors"
	"ledger-stats-system/pkg/logger"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func mkTx(height int64, from, to, amount, fee string, kind models.TransferType, at time.Time) models.Transaction {
	tx := models.Transaction{
		BlockHeight:           height,
		FromAccountIdentifier: from,
		ToAccountIdentifier:   to,
		TransferType:          kind,
		CreatedAt:             at,
	}
	if amount != "" {
		tx.Amount = nullDec(amount)
	}
	if fee != "" {
		tx.Fee = nullDec(fee)
	}
	return tx
}

func TestHourBucket(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 3, 1, 13, 45, 33, 123, loc)
	require.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), hourBucket(ts))

	exact := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	require.Equal(t, exact, hourBucket(exact))
}

func TestGroupByAccountHour(t *testing.T) {
	hour := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	txs := []models.Transaction{
		mkTx(1, "alice", "bob", "5", "0.0001", models.TransferTypeTransfer, hour.Add(5*time.Minute)),
		mkTx(2, "alice", "carol", "2", "0.0001", models.TransferTypeTransfer, hour.Add(20*time.Minute)),
		mkTx(3, "", "alice", "10", "", models.TransferTypeMint, hour.Add(30*time.Minute)),
		mkTx(4, "bob", "", "1", "0.0001", models.TransferTypeBurn, hour.Add(40*time.Minute)),
	}

	groups := groupByAccountHour(txs)
	require.Len(t, groups, 4)

	alice := groups[groupKey{"alice", hour}]
	require.NotNil(t, alice)
	require.Len(t, alice.deltas, 3)
	// Sender bears amount plus fee.
	require.True(t, alice.deltas[1].out.Equal(dec("5.0001")))
	require.True(t, alice.deltas[2].out.Equal(dec("2.0001")))
	// Mint has no sender side; alice only receives.
	require.True(t, alice.deltas[3].in.Equal(dec("10")))

	bob := groups[groupKey{"bob", hour}]
	require.NotNil(t, bob)
	// Receiver gains amount only, no fee.
	require.True(t, bob.deltas[1].in.Equal(dec("5")))
	require.True(t, bob.deltas[1].out.Equal(decimal.Zero))
	// Burn has no receiver side; bob pays amount plus fee.
	require.True(t, bob.deltas[4].out.Equal(dec("1.0001")))

	carol := groups[groupKey{"carol", hour}]
	require.NotNil(t, carol)
	require.True(t, carol.deltas[2].in.Equal(dec("2")))
}

func TestGroupByAccountHourExcludesApprovals(t *testing.T) {
	hour := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		mkTx(1, "alice", "bob", "5", "0.0001", models.TransferTypeApprove, hour),
	}
	require.Empty(t, groupByAccountHour(txs))
}

func TestGroupByAccountHourSelfTransfer(t *testing.T) {
	hour := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	txs := []models.Transaction{
		mkTx(1, "alice", "alice", "5", "0.0001", models.TransferTypeTransfer, hour),
	}

	groups := groupByAccountHour(txs)
	require.Len(t, groups, 1)

	alice := groups[groupKey{"alice", hour}]
	require.Len(t, alice.deltas, 1)
	// Both sides land on the same height delta; the net effect is -fee.
	require.True(t, alice.deltas[1].in.Equal(dec("5")))
	require.True(t, alice.deltas[1].out.Equal(dec("5.0001")))
}

func TestGroupByAccountHourSplitsHours(t *testing.T) {
	h1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h2 := h1.Add(time.Hour)

	txs := []models.Transaction{
		mkTx(1, "alice", "bob", "1", "", models.TransferTypeTransfer, h1.Add(59*time.Minute)),
		mkTx(2, "alice", "bob", "1", "", models.TransferTypeTransfer, h2),
	}

	groups := groupByAccountHour(txs)
	require.Len(t, groups, 4)
	require.NotNil(t, groups[groupKey{"alice", h1}])
	require.NotNil(t, groups[groupKey{"alice", h2}])
}

func TestSortedGroupKeysOrdersByHourThenAccount(t *testing.T) {
	h1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h2 := h1.Add(time.Hour)

	groups := map[groupKey]*hourlyChange{
		{"zed", h1}:   {},
		{"alice", h2}: {},
		{"bob", h1}:   {},
		{"alice", h1}: {},
	}

	keys := sortedGroupKeys(groups)
	require.Equal(t, []groupKey{
		{"alice", h1},
		{"bob", h1},
		{"zed", h1},
		{"alice", h2},
	}, keys)
}

func TestUnfoldedDeltasSkipsFoldedHeights(t *testing.T) {
	record := &models.AccountHourlyBalance{
		TransactionBlockHeights: pq.Int64Array{10, 11},
	}
	change := &hourlyChange{deltas: map[int64]*heightDelta{
		10: {in: dec("5"), out: decimal.Zero},
		11: {in: decimal.Zero, out: dec("1")},
		12: {in: dec("3"), out: decimal.Zero},
	}}

	deltaIn, deltaOut, newHeights := unfoldedDeltas(record, change)
	require.True(t, deltaIn.Equal(dec("3")))
	require.True(t, deltaOut.Equal(decimal.Zero))
	require.Equal(t, []int64{12}, newHeights)
}

func TestUnfoldedDeltasFullyFoldedIsNoop(t *testing.T) {
	record := &models.AccountHourlyBalance{
		TransactionBlockHeights: pq.Int64Array{10},
	}
	change := &hourlyChange{deltas: map[int64]*heightDelta{
		10: {in: dec("5"), out: dec("2")},
	}}

	deltaIn, deltaOut, newHeights := unfoldedDeltas(record, change)
	require.True(t, deltaIn.IsZero())
	require.True(t, deltaOut.IsZero())
	require.Empty(t, newHeights)
}

func TestPrefixSumArithmeticIsExact(t *testing.T) {
	// Account seeded with 50.0 at hour H sends 20.0 with fee 0.0001 at H+3.
	record := &models.AccountHourlyBalance{
		Balance: dec("50"),
		TotalIn: decimal.Zero, TotalOut: decimal.Zero,
	}
	change := &hourlyChange{deltas: map[int64]*heightDelta{
		42: {in: decimal.Zero, out: dec("20.0001")},
	}}

	deltaIn, deltaOut, newHeights := unfoldedDeltas(record, change)
	record.TotalIn = record.TotalIn.Add(deltaIn)
	record.TotalOut = record.TotalOut.Add(deltaOut)
	record.Balance = record.Balance.Add(deltaIn).Sub(deltaOut)
	record.MergeBlockHeights(newHeights)

	require.Equal(t, "29.9999", record.Balance.String())
	require.Equal(t, "20.0001", record.TotalOut.String())
	require.True(t, record.TotalIn.IsZero())
	require.Equal(t, pq.Int64Array{42}, record.TransactionBlockHeights)
}

func TestRepeatedAccumulationKeepsPrecision(t *testing.T) {
	// 10000 additions of 0.00000001 must be exactly 0.0001.
	sum := decimal.Zero
	step := dec("0.00000001")
	for i := 0; i < 10000; i++ {
		sum = sum.Add(step)
	}
	require.Equal(t, "0.0001", sum.String())
}

func TestReportQuarantineEmitsErrorWithIntegrityCode(t *testing.T) {
	testLogger, hook := logrustest.NewNullLogger()
	old := logger.Log
	logger.Log = testLogger
	defer func() { logger.Log = old }()

	reportQuarantine("Dropped out-of-order transaction group", map[string]interface{}{
		"account_identifier": "f3177b10",
		"block_heights":      []int64{42, 43},
	})

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	require.Equal(t, logrus.ErrorLevel, entry.Level)
	require.Equal(t, errors.ErrDataIntegrity, entry.Data["code"])
	require.Equal(t, []int64{42, 43}, entry.Data["block_heights"])
}
