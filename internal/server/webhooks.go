package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) HandleWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.ingestSvc.ProcessWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleInstagramHandshake answers Meta's subscription verification:
// echo hub.challenge when the verify token matches.
func (s *Server) HandleInstagramHandshake(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if challenge == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"type":    "invalid_request",
			"message": "missing hub.challenge",
		}})
		return
	}
	if mode != "subscribe" || token == "" || token != s.cfg.InstagramVerifyToken {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{
			"type":    "verification_failed",
			"message": "verify token mismatch",
		}})
		return
	}

	c.String(http.StatusOK, challenge)
}
