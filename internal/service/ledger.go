package service

import (
	"fmt"

	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

// DefaultPointsPerLevel is the level-up threshold.
const DefaultPointsPerLevel = 100

// applyAward adds amount and converts every full threshold into a level.
func applyAward(agg models.LevelAggregate, amount, perLevel int) (models.LevelAggregate, int) {
	agg.Points += amount
	gained := 0
	for agg.Points >= perLevel {
		agg.Points -= perLevel
		agg.Level++
		gained++
	}
	return agg, gained
}

// applyRedeem subtracts cost from the points toward the next level. Levels
// already earned are kept.
func applyRedeem(agg models.LevelAggregate, cost int) (models.LevelAggregate, error) {
	if agg.Points < cost {
		return agg, appErrors.Clone(appErrors.ErrInsufficientPoints,
			fmt.Sprintf("insufficient points: balance %d, cost %d", agg.Points, cost))
	}
	agg.Points -= cost
	return agg, nil
}

// ReplayLedger folds a child's deltas, in sequence order, starting from
// level 1 with zero points. It fails on a sequence gap or on a debit the
// running balance could not cover, since neither can be produced by Award or
// Redeem.
func ReplayLedger(deltas []models.PointDelta, perLevel int) (level, points int, err error) {
	if perLevel <= 0 {
		perLevel = DefaultPointsPerLevel
	}
	agg := models.LevelAggregate{Level: 1}
	for i, d := range deltas {
		if want := int64(i + 1); d.Sequence != want {
			return 0, 0, fmt.Errorf("ledger gap: expected sequence %d, found %d", want, d.Sequence)
		}
		switch {
		case d.Amount > 0:
			agg, _ = applyAward(agg, d.Amount, perLevel)
		case d.Amount < 0:
			if agg, err = applyRedeem(agg, -d.Amount); err != nil {
				return 0, 0, fmt.Errorf("sequence %d overdraws balance: %w", d.Sequence, err)
			}
		default:
			return 0, 0, fmt.Errorf("sequence %d has zero amount", d.Sequence)
		}
	}
	return agg.Level, agg.Points, nil
}
