package tiers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestClassify(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		balance  string
		expected Category
	}{
		{"0", Plankton},
		{"0.00000001", Plankton},
		{"0.99999999", Plankton},
		{"1", Shrimp},
		{"9.99999999", Shrimp},
		{"10", Crab},
		{"99.5", Crab},
		{"100", Octopus},
		{"499.99999999", Octopus},
		{"500", Fish},
		{"999.99999999", Fish},
		{"1000", Dolphin},
		{"4999.99999999", Dolphin},
		{"5000", Shark},
		{"9999.99999999", Shark},
		{"10000", Whale},
		{"99999.99999999", Whale},
		{"100000", Humpback},
		{"123456789", Humpback},
	}

	for _, tt := range tests {
		t.Run(tt.balance, func(t *testing.T) {
			require.Equal(t, tt.expected, table.Classify(dec(tt.balance)))
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	table := DefaultTable()
	b := dec("42.5")
	first := table.Classify(b)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, table.Classify(b))
	}
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr string
	}{
		{
			name:    "empty",
			entries: nil,
			wantErr: "at least one entry",
		},
		{
			name: "non-zero start",
			entries: []Entry{
				{Shrimp, Range{decimal.NewFromInt(1), nil, ""}},
			},
			wantErr: "must start at 0",
		},
		{
			name: "bounded last tier",
			entries: []Entry{
				{Plankton, Range{decimal.Zero, bound(10), ""}},
			},
			wantErr: "must be unbounded",
		},
		{
			name: "gap between tiers",
			entries: []Entry{
				{Plankton, Range{decimal.Zero, bound(1), ""}},
				{Shrimp, Range{decimal.NewFromInt(5), nil, ""}},
			},
			wantErr: "gap between",
		},
		{
			name: "empty range",
			entries: []Entry{
				{Plankton, Range{decimal.Zero, &decimal.Zero, ""}},
				{Shrimp, Range{decimal.Zero, nil, ""}},
			},
			wantErr: "empty range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(1, tt.entries)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCategoriesOrdered(t *testing.T) {
	table := DefaultTable()
	require.Equal(t, []Category{
		Plankton, Shrimp, Crab, Octopus, Fish, Dolphin, Shark, Whale, Humpback,
	}, table.Categories())
}

func TestCustomTableInjection(t *testing.T) {
	// Two-tier table to confirm nothing is hardwired to the default ranges.
	table, err := NewTable(2, []Entry{
		{Plankton, Range{decimal.Zero, bound(100), "small"}},
		{Whale, Range{decimal.NewFromInt(100), nil, "big"}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, table.Version)
	require.Equal(t, Plankton, table.Classify(dec("99.99999999")))
	require.Equal(t, Whale, table.Classify(dec("100")))
}
