package http

import (
	"net/http"
	"time"

	"github.com/dkeye/Talk/internal/auth"
	"github.com/gin-gonic/gin"
)

const tokenTTL = 24 * time.Hour

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login issues a bearer token for the signaling channel. Identity issuance
// proper lives outside this service; this endpoint exists for development
// and demos and accepts any credentials.
func Login(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		userID := req.Username
		token, err := auth.IssueToken(secret, userID, req.Username, tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, loginResponse{Token: token, UserID: userID})
	}
}
