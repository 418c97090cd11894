package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Sushil7090/moodle-backend/internal/middleware"
	"github.com/Sushil7090/moodle-backend/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
