package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediare/family-trust-api/internal/models"
)

// TxGuard runs inside a ledger transaction after the child lock is held and
// before the delta is written. A non-nil error aborts the whole mutation.
type TxGuard func(ctx context.Context, tx *sqlx.Tx) error

// LedgerStep computes the next aggregate from the locked current one and
// returns the signed amount and reason of the delta that explains it.
type LedgerStep func(current models.LevelAggregate) (next models.LevelAggregate, amount int, reason string, err error)

// LedgerRepository owns point deltas and the child_levels aggregate. All
// mutations for one child serialize on that child's aggregate row.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs the repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Apply locks the child's aggregate, runs guard and step, appends the delta
// with the next dense sequence and stores the new aggregate, all in one
// transaction. Nothing is written if guard or step fails.
func (r *LedgerRepository) Apply(ctx context.Context, childID, familyID string, guard TxGuard, step LedgerStep) (agg *models.LevelAggregate, delta *models.PointDelta, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const ensure = `INSERT INTO child_levels (child_id, family_unit_id, level, points, last_sequence, updated_at)
VALUES ($1, $2, 1, 0, 0, NOW()) ON CONFLICT (child_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, ensure, childID, familyID); err != nil {
		return nil, nil, fmt.Errorf("ensure child level: %w", err)
	}

	const lock = `SELECT child_id, family_unit_id, level, points, last_sequence, updated_at FROM child_levels
WHERE child_id = $1 AND family_unit_id = $2 FOR UPDATE`
	var current models.LevelAggregate
	if err = tx.GetContext(ctx, &current, lock, childID, familyID); err != nil {
		return nil, nil, fmt.Errorf("lock child level: %w", err)
	}

	if guard != nil {
		if err = guard(ctx, tx); err != nil {
			return nil, nil, err
		}
	}

	next, amount, reason, err := step(current)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	delta = &models.PointDelta{
		ID:           uuid.NewString(),
		ChildID:      childID,
		FamilyUnitID: familyID,
		Sequence:     current.LastSequence + 1,
		Amount:       amount,
		Reason:       reason,
		CreatedAt:    now,
	}
	const insert = `INSERT INTO point_deltas (id, child_id, family_unit_id, sequence, amount, reason, created_at)
VALUES (:id, :child_id, :family_unit_id, :sequence, :amount, :reason, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, delta); err != nil {
		return nil, nil, fmt.Errorf("insert point delta: %w", err)
	}

	next.ChildID = childID
	next.FamilyUnitID = familyID
	next.LastSequence = delta.Sequence
	next.UpdatedAt = now
	const update = `UPDATE child_levels SET level = $2, points = $3, last_sequence = $4, updated_at = $5 WHERE child_id = $1`
	if _, err = tx.ExecContext(ctx, update, childID, next.Level, next.Points, next.LastSequence, next.UpdatedAt); err != nil {
		return nil, nil, fmt.Errorf("update child level: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return &next, delta, nil
}

// GetAggregate returns the stored aggregate. A child with no ledger activity
// yet reports level 1 with zero points.
func (r *LedgerRepository) GetAggregate(ctx context.Context, childID string) (*models.LevelAggregate, error) {
	const query = `SELECT child_id, family_unit_id, level, points, last_sequence, updated_at FROM child_levels WHERE child_id = $1`
	var agg models.LevelAggregate
	if err := r.db.GetContext(ctx, &agg, query, childID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.LevelAggregate{ChildID: childID, Level: 1}, nil
		}
		return nil, fmt.Errorf("get child level: %w", err)
	}
	return &agg, nil
}

// ListDeltas returns a child's deltas in sequence order.
func (r *LedgerRepository) ListDeltas(ctx context.Context, childID string) ([]models.PointDelta, error) {
	const query = `SELECT id, child_id, family_unit_id, sequence, amount, reason, created_at FROM point_deltas WHERE child_id = $1 ORDER BY sequence ASC`
	var deltas []models.PointDelta
	if err := r.db.SelectContext(ctx, &deltas, query, childID); err != nil {
		return nil, fmt.Errorf("list point deltas: %w", err)
	}
	return deltas, nil
}

// ListAggregates pages through every stored aggregate ordered by child id.
func (r *LedgerRepository) ListAggregates(ctx context.Context, limit, offset int) ([]models.LevelAggregate, error) {
	const query = `SELECT child_id, family_unit_id, level, points, last_sequence, updated_at FROM child_levels ORDER BY child_id ASC LIMIT $1 OFFSET $2`
	var aggs []models.LevelAggregate
	if err := r.db.SelectContext(ctx, &aggs, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list child levels: %w", err)
	}
	return aggs, nil
}
