package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/standhq/stand/internal/billing/domain"
	gamedomain "github.com/standhq/stand/internal/game/domain"
	"github.com/standhq/stand/internal/game/typeconfig"
	ingestdomain "github.com/standhq/stand/internal/ingest/domain"
	socialdomain "github.com/standhq/stand/internal/social/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError flattens domain errors onto the transport contract: webhook
// providers only see retry (5xx) vs don't-retry (2xx/4xx), API callers
// get just enough detail to act.
func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, typeconfig.ErrNotAnObject),
		errors.Is(err, typeconfig.ErrInvalidGameType),
		errors.Is(err, typeconfig.ErrBlobTooLarge),
		errors.Is(err, typeconfig.ErrMalformedPayload),
		errors.Is(err, ingestdomain.ErrInvalidPayload),
		errors.Is(err, ingestdomain.ErrInvalidEvent),
		errors.Is(err, gamedomain.ErrInvalidGame):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, ingestdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "signature_failed",
			Message: "signature verification failed",
		}
	case errors.Is(err, gamedomain.ErrGameNotFound),
		errors.Is(err, billingdomain.ErrSubscriptionNotFound),
		errors.Is(err, ingestdomain.ErrProviderNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, gamedomain.ErrStaleWrite):
		return http.StatusConflict, errorPayload{
			Type:    "stale_write",
			Message: "a newer version is already stored",
		}
	case errors.Is(err, gamedomain.ErrGameExists):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, socialdomain.ErrUnknownGame):
		// Retrying the delivery cannot fix a dangling game reference,
		// so the status must stay in the don't-retry class.
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "unknown_game",
			Message: "referenced game does not exist",
		}
	case errors.Is(err, ingestdomain.ErrEventInFlight):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "in_flight",
			Message: "event is being processed, retry later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "server_error", payload.Type
	}
	return "client_error", payload.Type
}
