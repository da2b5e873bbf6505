package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediare/family-trust-api/internal/models"
	appErrors "github.com/mediare/family-trust-api/pkg/errors"
)

type tokenValidatorStub struct {
	claims  *models.JWTClaims
	tokenOK bool
	deleted bool
}

func (s *tokenValidatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if !s.tokenOK {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func (s *tokenValidatorStub) Principal(ctx context.Context, userID string) (*models.User, error) {
	if s.deleted {
		return nil, appErrors.ErrUnauthorized
	}
	return &models.User{ID: userID}, nil
}

type roleGuardStub struct {
	allowed map[string]models.MemberRole
	lastFam string
}

func (s *roleGuardStub) AuthorizeRole(ctx context.Context, principalID, familyID string, roles ...models.MemberRole) error {
	s.lastFam = familyID
	role, ok := s.allowed[principalID+"|"+familyID]
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "access to this family is not permitted")
	}
	if len(roles) == 0 {
		return nil
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "role not permitted for this action")
}

type auditStub struct {
	entries []*models.AuditLog
	err     error
}

func (s *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.entries = append(s.entries, log)
	return s.err
}

type observerStub struct {
	route  string
	status int
}

func (s *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	s.route = path
	s.status = status
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingMalformedAndTombstoned(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stub := &tokenValidatorStub{claims: &models.JWTClaims{UserID: "parent-a"}, tokenOK: true}
	r := gin.New()
	r.GET("/me", JWT(stub), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ok := serve(r, http.MethodGet, "/me", "token")
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "parent-a", ok.Body.String())

	stub.deleted = true
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "token").Code)
}

func TestFamilyRoleIsScopedToRouteFamily(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := &roleGuardStub{allowed: map[string]models.MemberRole{
		"parent-a|fam-a": models.RoleParent,
		"child-a|fam-a":  models.RoleChild,
	}}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: c.GetHeader("X-User")})
	})
	r.POST("/families/:familyId/tasks", FamilyRole(guard, models.RoleParent), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	call := func(user, family string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/families/"+family+"/tasks", nil)
		req.Header.Set("X-User", user)
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusCreated, call("parent-a", "fam-a"))
	assert.Equal(t, "fam-a", guard.lastFam)
	assert.Equal(t, http.StatusForbidden, call("child-a", "fam-a"))
	assert.Equal(t, http.StatusForbidden, call("parent-a", "fam-b"))
}

func TestFamilyRoleWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/families/:familyId", FamilyRole(&roleGuardStub{}), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/families/x", "").Code)
}

func TestAuditRecordsSuccessOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &auditStub{err: errors.New("insert failed")}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, &models.JWTClaims{UserID: "parent-a"})
	})
	r.POST("/families/:familyId/tasks/:taskId/complete",
		Audit(repo, nil, models.AuditActionTaskComplete, "task", "taskId"),
		func(c *gin.Context) {
			if c.Param("taskId") == "bad" {
				c.Status(http.StatusConflict)
				return
			}
			c.Status(http.StatusOK)
		})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/families/fam-a/tasks/t-1/complete", "").Code)
	assert.Equal(t, http.StatusConflict, serve(r, http.MethodPost, "/families/fam-a/tasks/bad/complete", "").Code)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	assert.Equal(t, models.AuditActionTaskComplete, entry.Action)
	assert.Equal(t, "parent-a", *entry.UserID)
	assert.Equal(t, "fam-a", *entry.FamilyUnitID)
	assert.Equal(t, "t-1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"status":200`)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/children/:childId/progress", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/children/abc/progress", "")
	assert.Equal(t, "/children/:childId/progress", obs.route)
	assert.Equal(t, http.StatusOK, obs.status)

	serve(r, http.MethodGet, "/nope", "")
	assert.Equal(t, "unmatched", obs.route)
	assert.Equal(t, http.StatusNotFound, obs.status)
}
