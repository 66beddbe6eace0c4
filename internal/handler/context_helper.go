package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/evalhub/exam-eval-api/internal/middleware"
	"github.com/evalhub/exam-eval-api/internal/models"
)

// claimsFromContext returns the authenticated user's claims, or nil when the
// route was reached without the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, _ := c.Get(middleware.ContextUserKey)
	claims, _ := value.(*models.JWTClaims)
	return claims
}
