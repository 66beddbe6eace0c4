package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/evalhub/exam-eval-api/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handlers ...gin.HandlerFunc) *httptest.ResponseRecorder {
	router := gin.New()
	chain := append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/protected", chain...)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)
	return w
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

func TestRequireRolesAllowsListedRole(t *testing.T) {
	w := performRequest(
		withClaims(&models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}),
		RequireRoles(models.RoleTeacher, models.RoleAdmin),
	)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	w := performRequest(
		withClaims(&models.JWTClaims{UserID: "u1", Role: models.RoleStudent}),
		RequireRoles(models.RoleTeacher, models.RoleAdmin),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesRejectsUnknownRole(t *testing.T) {
	w := performRequest(
		withClaims(&models.JWTClaims{UserID: "u1", Role: models.UserRole("wizard")}),
		RequireRoles(models.RoleTeacher),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	w := performRequest(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequirePermissionAllows(t *testing.T) {
	w := performRequest(
		withClaims(&models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}),
		RequirePermission(models.PermCreatePapers),
	)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionDenies(t *testing.T) {
	w := performRequest(
		withClaims(&models.JWTClaims{UserID: "u1", Role: models.RoleStudent}),
		RequirePermission(models.PermCreatePapers),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePermissionWithoutClaims(t *testing.T) {
	w := performRequest(RequirePermission(models.PermViewReports))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
