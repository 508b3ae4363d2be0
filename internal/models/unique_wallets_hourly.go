package models

import (
	"time"

	"ledger-stats-system/internal/tiers"
)

// UniqueWalletsHourly is the network-wide wallet segmentation snapshot for one
// hour: every account with any balance record at or before the hour, counted
// by its most recently known tier. Total always equals the sum of the tier
// counts.
type UniqueWalletsHourly struct {
	Hour          time.Time `gorm:"primaryKey" json:"hour"`
	TotalWallets  int64     `gorm:"not null" json:"total_wallets"`
	PlanktonCount int64     `gorm:"not null;default:0" json:"plankton_count"`
	ShrimpCount   int64     `gorm:"not null;default:0" json:"shrimp_count"`
	CrabCount     int64     `gorm:"not null;default:0" json:"crab_count"`
	OctopusCount  int64     `gorm:"not null;default:0" json:"octopus_count"`
	FishCount     int64     `gorm:"not null;default:0" json:"fish_count"`
	DolphinCount  int64     `gorm:"not null;default:0" json:"dolphin_count"`
	SharkCount    int64     `gorm:"not null;default:0" json:"shark_count"`
	WhaleCount    int64     `gorm:"not null;default:0" json:"whale_count"`
	HumpbackCount int64     `gorm:"not null;default:0" json:"humpback_count"`
}

func (UniqueWalletsHourly) TableName() string {
	return "unique_wallets_hourlies"
}

// SetCategoryCounts fills the per-tier columns and the total from counts.
// Categories outside the nine stored columns are ignored so the total always
// equals the sum of what the record actually persists.
func (u *UniqueWalletsHourly) SetCategoryCounts(counts map[tiers.Category]int64) {
	u.PlanktonCount = counts[tiers.Plankton]
	u.ShrimpCount = counts[tiers.Shrimp]
	u.CrabCount = counts[tiers.Crab]
	u.OctopusCount = counts[tiers.Octopus]
	u.FishCount = counts[tiers.Fish]
	u.DolphinCount = counts[tiers.Dolphin]
	u.SharkCount = counts[tiers.Shark]
	u.WhaleCount = counts[tiers.Whale]
	u.HumpbackCount = counts[tiers.Humpback]
	u.TotalWallets = u.PlanktonCount + u.ShrimpCount + u.CrabCount +
		u.OctopusCount + u.FishCount + u.DolphinCount +
		u.SharkCount + u.WhaleCount + u.HumpbackCount
}

// CategoryCounts returns the per-tier columns as a map.
func (u *UniqueWalletsHourly) CategoryCounts() map[tiers.Category]int64 {
	return map[tiers.Category]int64{
		tiers.Plankton: u.PlanktonCount,
		tiers.Shrimp:   u.ShrimpCount,
		tiers.Crab:     u.CrabCount,
		tiers.Octopus:  u.OctopusCount,
		tiers.Fish:     u.FishCount,
		tiers.Dolphin:  u.DolphinCount,
		tiers.Shark:    u.SharkCount,
		tiers.Whale:    u.WhaleCount,
		tiers.Humpback: u.HumpbackCount,
	}
}

// CopyForHour returns a carry-forward copy of the record keyed to hour. Counts
// are field-for-field identical to the source record.
func (u *UniqueWalletsHourly) CopyForHour(hour time.Time) *UniqueWalletsHourly {
	copied := *u
	copied.Hour = hour
	return &copied
}
