package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-room-allocator/internal/middleware"
)

func actorID(c *gin.Context) string {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		return ""
	}
	return claims.UserID
}
