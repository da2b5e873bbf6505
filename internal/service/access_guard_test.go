package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

const (
	familyA  = "11111111-1111-1111-1111-111111111111"
	familyB  = "22222222-2222-2222-2222-222222222222"
	familyNo = "99999999-9999-9999-9999-999999999999"
)

type membershipRepoStub struct {
	roles map[string]models.MemberRole
	err   error
	calls int
}

func (s *membershipRepoStub) MemberRole(ctx context.Context, userID, familyID string) (models.MemberRole, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[userID+"|"+familyID]
	if !ok {
		return "", fmt.Errorf("membership role: %w", sql.ErrNoRows)
	}
	return role, nil
}

type principalRepoStub struct {
	users map[string]*models.User
}

func (s *principalRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func newGuardFixture() (*AccessGuard, *membershipRepoStub, *principalRepoStub) {
	members := &membershipRepoStub{roles: map[string]models.MemberRole{
		"parent-a|" + familyA: models.RoleParent,
		"child-a|" + familyA:  models.RoleChild,
		"parent-b|" + familyB: models.RoleParent,
	}}
	active := familyA
	users := &principalRepoStub{users: map[string]*models.User{
		"parent-a": {ID: "parent-a", ActiveFamilyID: &active},
	}}
	return NewAccessGuard(members, users, nil), members, users
}

func TestAccessGuardAuthorizeMember(t *testing.T) {
	guard, _, _ := newGuardFixture()
	require.NoError(t, guard.Authorize(context.Background(), "parent-a", familyA))
}

func TestAccessGuardNonMemberIndistinguishableFromMissingFamily(t *testing.T) {
	guard, _, _ := newGuardFixture()

	errOther := guard.Authorize(context.Background(), "parent-a", familyB)
	errMissing := guard.Authorize(context.Background(), "parent-a", familyNo)

	for _, err := range []error{errOther, errMissing} {
		appErr := appErrors.FromError(err)
		require.NotNil(t, appErr)
		assert.Equal(t, http.StatusForbidden, appErr.Status)
		assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	}
	assert.Equal(t, errOther.Error(), errMissing.Error())
}

func TestAccessGuardRejectsMalformedFamilyID(t *testing.T) {
	guard, members, _ := newGuardFixture()

	err := guard.Authorize(context.Background(), "parent-a", "not-a-uuid")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
	assert.Zero(t, members.calls)
}

func TestAccessGuardRepositoryFailureIsInternal(t *testing.T) {
	guard, members, _ := newGuardFixture()
	members.err = errors.New("connection reset")

	err := guard.Authorize(context.Background(), "parent-a", familyA)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestAccessGuardAuthorizeEntityDoubleCheck(t *testing.T) {
	guard, members, _ := newGuardFixture()

	err := guard.AuthorizeEntity(context.Background(), "parent-a", familyA, familyB)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	assert.Zero(t, members.calls, "mismatched claim must fail before membership lookup")

	err = guard.AuthorizeEntity(context.Background(), "parent-b", familyA, familyA)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, guard.AuthorizeEntity(context.Background(), "parent-a", "", familyA))
}

func TestAccessGuardAuthorizeRole(t *testing.T) {
	guard, _, _ := newGuardFixture()

	require.NoError(t, guard.AuthorizeRole(context.Background(), "parent-a", familyA, models.RoleParent))
	err := guard.AuthorizeRole(context.Background(), "child-a", familyA, models.RoleParent, models.RoleMediator)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAccessGuardActiveFamily(t *testing.T) {
	guard, members, users := newGuardFixture()

	familyID, err := guard.ActiveFamily(context.Background(), "parent-a")
	require.NoError(t, err)
	assert.Equal(t, familyA, familyID)

	users.users["child-a"] = &models.User{ID: "child-a"}
	_, err = guard.ActiveFamily(context.Background(), "child-a")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	now := time.Now()
	users.users["gone"] = &models.User{ID: "gone", ActiveFamilyID: users.users["parent-a"].ActiveFamilyID, DeletedAt: &now}
	_, err = guard.ActiveFamily(context.Background(), "gone")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	delete(members.roles, "parent-a|"+familyA)
	_, err = guard.ActiveFamily(context.Background(), "parent-a")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
