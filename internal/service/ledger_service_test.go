package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
	"github.com/mediare/family-trust-api/internal/repository"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

const (
	childBia  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	childLeo  = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	childNone = "cccccccc-cccc-cccc-cccc-cccccccccccc"
)

// ledgerRepoStub keeps aggregates and deltas in memory and serializes Apply
// under one mutex, mirroring the row lock of the real store.
type ledgerRepoStub struct {
	mu     sync.Mutex
	aggs   map[string]models.LevelAggregate
	deltas map[string][]models.PointDelta
}

func newLedgerRepoStub() *ledgerRepoStub {
	return &ledgerRepoStub{aggs: map[string]models.LevelAggregate{}, deltas: map[string][]models.PointDelta{}}
}

func (s *ledgerRepoStub) Apply(ctx context.Context, childID, familyID string, guard repository.TxGuard, step repository.LedgerStep) (*models.LevelAggregate, *models.PointDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.aggs[childID]
	if !ok {
		current = models.LevelAggregate{ChildID: childID, FamilyUnitID: familyID, Level: 1}
	}
	if current.FamilyUnitID != familyID {
		return nil, nil, fmt.Errorf("lock child level: %w", sql.ErrNoRows)
	}
	if guard != nil {
		if err := guard(ctx, nil); err != nil {
			return nil, nil, err
		}
	}
	next, amount, reason, err := step(current)
	if err != nil {
		return nil, nil, err
	}
	delta := models.PointDelta{
		ChildID:      childID,
		FamilyUnitID: familyID,
		Sequence:     current.LastSequence + 1,
		Amount:       amount,
		Reason:       reason,
		CreatedAt:    time.Now().UTC(),
	}
	next.ChildID = childID
	next.FamilyUnitID = familyID
	next.LastSequence = delta.Sequence
	s.aggs[childID] = next
	s.deltas[childID] = append(s.deltas[childID], delta)
	return &next, &delta, nil
}

func (s *ledgerRepoStub) GetAggregate(ctx context.Context, childID string) (*models.LevelAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg, ok := s.aggs[childID]
	if !ok {
		return &models.LevelAggregate{ChildID: childID, Level: 1}, nil
	}
	return &agg, nil
}

func (s *ledgerRepoStub) ListDeltas(ctx context.Context, childID string) ([]models.PointDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PointDelta(nil), s.deltas[childID]...), nil
}

type childRepoStub struct {
	children map[string]*models.Child
}

func (s *childRepoStub) GetChild(ctx context.Context, childID string) (*models.Child, error) {
	if c, ok := s.children[childID]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type ledgerFixture struct {
	svc  *LedgerService
	repo *ledgerRepoStub
}

func newLedgerFixture() ledgerFixture {
	repo := newLedgerRepoStub()
	children := &childRepoStub{children: map[string]*models.Child{
		childBia: {ID: childBia, FamilyUnitID: familyA, Name: "Bia"},
		childLeo: {ID: childLeo, FamilyUnitID: familyB, Name: "Leo"},
	}}
	guard, _, _ := newGuardFixture()
	svc := NewLedgerService(repo, children, guard, nil, nil, nil, LedgerConfig{})
	return ledgerFixture{svc: svc, repo: repo}
}

func TestApplyAwardCarriesRemainderAcrossLevels(t *testing.T) {
	agg, gained := applyAward(models.LevelAggregate{Level: 1}, 250, 100)
	assert.Equal(t, 3, agg.Level)
	assert.Equal(t, 50, agg.Points)
	assert.Equal(t, 2, gained)

	agg, gained = applyAward(models.LevelAggregate{Level: 2, Points: 99}, 1, 100)
	assert.Equal(t, 3, agg.Level)
	assert.Zero(t, agg.Points)
	assert.Equal(t, 1, gained)
}

func TestLedgerAwardLevelsUp(t *testing.T) {
	f := newLedgerFixture()

	result, err := f.svc.Award(context.Background(), childBia, 250, "Tarefa concluída: arrumar o quarto")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Level)
	assert.Equal(t, 50, result.Points)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 2, result.LevelsGained)
	assert.Equal(t, int64(1), result.Sequence)

	progress, err := f.svc.Progress(context.Background(), "parent-a", childBia)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Level)
	assert.Equal(t, 50, progress.Points)
	assert.Equal(t, 100, progress.NextLevelPoints)
	assert.Equal(t, 50, progress.PointsToNext)
}

func TestLedgerAwardRejectsNonPositiveAmount(t *testing.T) {
	f := newLedgerFixture()

	_, err := f.svc.Award(context.Background(), childBia, 0, "nada")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Award(context.Background(), childBia, -10, "nada")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.repo.deltas[childBia])
}

func TestLedgerAwardUnknownChild(t *testing.T) {
	f := newLedgerFixture()

	_, err := f.svc.Award(context.Background(), childNone, 10, "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Award(context.Background(), "not-a-uuid", 10, "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestLedgerAwardInForeignFamilyDenied(t *testing.T) {
	f := newLedgerFixture()

	_, err := f.svc.AwardInFamily(context.Background(), childLeo, familyA, 10, "x", nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, f.repo.deltas[childLeo])
}

func TestLedgerRedeemInsufficientLeavesAggregateUnchanged(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.svc.Award(context.Background(), childBia, 130, "x")
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), childBia, 31, "Resgate: sorvete")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientPoints))

	agg, err := f.repo.GetAggregate(context.Background(), childBia)
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Level)
	assert.Equal(t, 30, agg.Points)
	assert.Len(t, f.repo.deltas[childBia], 1)
}

func TestLedgerRedeemExactBalanceKeepsLevel(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.svc.Award(context.Background(), childBia, 130, "x")
	require.NoError(t, err)

	result, err := f.svc.Redeem(context.Background(), childBia, 30, "Resgate: sorvete")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Level)
	assert.Zero(t, result.Points)
	assert.Equal(t, int64(2), result.Sequence)
}

func TestLedgerGuardErrorAbortsAward(t *testing.T) {
	f := newLedgerFixture()
	guard := func(ctx context.Context, tx *sqlx.Tx) error { return repository.ErrTaskNotPending }

	_, err := f.svc.AwardInFamily(context.Background(), childBia, familyA, 10, "x", guard)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, f.repo.deltas[childBia])
}

func TestLedgerReplayMatchesAggregate(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	for _, amount := range []int{40, 75, 120, 10} {
		_, err := f.svc.Award(ctx, childBia, amount, "x")
		require.NoError(t, err)
	}
	_, err := f.svc.Redeem(ctx, childBia, 40, "y")
	require.NoError(t, err)

	result, err := f.svc.Verify(ctx, "parent-a", childBia)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, 5, result.Deltas)
	assert.Equal(t, result.StoredLevel, result.ReplayLevel)
	assert.Equal(t, result.StoredPoints, result.ReplayPoints)
}

func TestLedgerConcurrentAwardsKeepDenseSequence(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Award(ctx, childBia, 15, "x")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	agg, err := f.repo.GetAggregate(ctx, childBia)
	require.NoError(t, err)
	assert.Equal(t, int64(20), agg.LastSequence)
	assert.Equal(t, 4, agg.Level)
	assert.Equal(t, 0, agg.Points)

	level, points, err := ReplayLedger(f.repo.deltas[childBia], DefaultPointsPerLevel)
	require.NoError(t, err)
	assert.Equal(t, agg.Level, level)
	assert.Equal(t, agg.Points, points)
}

func TestReplayLedgerRejectsGapsAndOverdraft(t *testing.T) {
	_, _, err := ReplayLedger([]models.PointDelta{{Sequence: 1, Amount: 10}, {Sequence: 3, Amount: 5}}, 100)
	assert.Error(t, err)

	_, _, err = ReplayLedger([]models.PointDelta{{Sequence: 1, Amount: 10}, {Sequence: 2, Amount: -20}}, 100)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInsufficientPoints))

	level, points, err := ReplayLedger(nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, level)
	assert.Zero(t, points)
}

func TestLedgerProgressRequiresMembership(t *testing.T) {
	f := newLedgerFixture()

	progress, err := f.svc.Progress(context.Background(), "parent-a", childBia)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Level)
	assert.Equal(t, 100, progress.NextLevelPoints)
	assert.Equal(t, 100, progress.PointsToNext)

	_, err = f.svc.Progress(context.Background(), "parent-a", childLeo)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestLedgerMapApplyErrorKeepsInternalCause(t *testing.T) {
	f := newLedgerFixture()
	cause := errors.New("connection reset")

	err := f.svc.mapApplyError(cause, "failed to award points")
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
	assert.ErrorIs(t, err, cause)
}
