package tiers

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Category names a wallet holding-size tier.
type Category string

const (
	Plankton Category = "PLANKTON"
	Shrimp   Category = "SHRIMP"
	Crab     Category = "CRAB"
	Octopus  Category = "OCTOPUS"
	Fish     Category = "FISH"
	Dolphin  Category = "DOLPHIN"
	Shark    Category = "SHARK"
	Whale    Category = "WHALE"
	Humpback Category = "HUMPBACK"
)

// Range is a half-open balance interval [Min, Max). A nil Max means unbounded.
type Range struct {
	Min         decimal.Decimal
	Max         *decimal.Decimal
	Description string
}

type Entry struct {
	Category Category
	Range    Range
}

// Table is an ordered, gap-free partition of [0, inf) into tiers. It is
// immutable once built and injected into the aggregators, so tests can
// substitute alternate tables. Version tags the revision used to compute
// stored categories.
type Table struct {
	Version int
	entries []Entry
}

// NewTable validates and builds a tier table. Entries must be ascending by
// minimum, start at zero, be contiguous, and end with an unbounded range.
func NewTable(version int, entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("tier table must have at least one entry")
	}
	if !entries[0].Range.Min.IsZero() {
		return nil, fmt.Errorf("first tier must start at 0, got %s", entries[0].Range.Min)
	}
	for i, e := range entries {
		last := i == len(entries)-1
		if last {
			if e.Range.Max != nil {
				return nil, fmt.Errorf("last tier %s must be unbounded", e.Category)
			}
			continue
		}
		if e.Range.Max == nil {
			return nil, fmt.Errorf("tier %s has no upper bound but is not last", e.Category)
		}
		if e.Range.Max.LessThanOrEqual(e.Range.Min) {
			return nil, fmt.Errorf("tier %s has empty range [%s, %s)", e.Category, e.Range.Min, e.Range.Max)
		}
		if !entries[i+1].Range.Min.Equal(*e.Range.Max) {
			return nil, fmt.Errorf("gap between tier %s and %s", e.Category, entries[i+1].Category)
		}
	}
	return &Table{Version: version, entries: entries}, nil
}

// Classify returns the tier containing balance. The fallback to the lowest
// tier is unreachable for a valid table and non-negative input.
func (t *Table) Classify(balance decimal.Decimal) Category {
	for _, e := range t.entries {
		if balance.GreaterThanOrEqual(e.Range.Min) &&
			(e.Range.Max == nil || balance.LessThan(*e.Range.Max)) {
			return e.Category
		}
	}
	return t.entries[0].Category
}

// Categories returns the tier names in ascending order.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Category
	}
	return out
}

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// DefaultTable is the production tier table, denominated in token units.
func DefaultTable() *Table {
	table, err := NewTable(1, []Entry{
		{Plankton, Range{decimal.Zero, bound(1), "Less than 1 token"}},
		{Shrimp, Range{decimal.NewFromInt(1), bound(10), "1 - 10 tokens"}},
		{Crab, Range{decimal.NewFromInt(10), bound(100), "10 - 100 tokens"}},
		{Octopus, Range{decimal.NewFromInt(100), bound(500), "100 - 500 tokens"}},
		{Fish, Range{decimal.NewFromInt(500), bound(1_000), "500 - 1,000 tokens"}},
		{Dolphin, Range{decimal.NewFromInt(1_000), bound(5_000), "1,000 - 5,000 tokens"}},
		{Shark, Range{decimal.NewFromInt(5_000), bound(10_000), "5,000 - 10,000 tokens"}},
		{Whale, Range{decimal.NewFromInt(10_000), bound(100_000), "10,000 - 100,000 tokens"}},
		{Humpback, Range{decimal.NewFromInt(100_000), nil, "More than 100,000 tokens"}},
	})
	if err != nil {
		panic(err)
	}
	return table
}
