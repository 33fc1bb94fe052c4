package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"mlwio/internal/shared/logging"
)

const (
	msgInternal          = "Internal server error"
	msgUnauthorized      = "Unauthorized"
	msgNotAuthenticated  = "Not authenticated"
	msgUserNotFound      = "User not found"
	msgCredentials       = "Username and password required"
	msgWrongPassword     = "Wrong password"
	msgContentNotFound   = "Content not found"
	msgSearchQuery       = "Search query required"
	msgTooManyRequests   = "Too many requests"
	msgNotFound          = "Not found"
	msgContentDeleted    = "Content deleted successfully"
	msgInvalidBody       = "Validation error: Invalid JSON body"
	healthServiceName    = "MLWIO API"
	healthTimestampStyle = "2006-01-02T15:04:05.000Z"
)

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func respondInternal(c *gin.Context, logger logging.Logger, op string, err error) {
	logger.Error("%s error: %v", op, err)
	respondError(c, http.StatusInternalServerError, msgInternal)
}

// bindErrorMessage turns a JSON decoding failure into a validation message
// in the same register as domain validation errors.
func bindErrorMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("Validation error: Expected %s, received %s at %q", typeErr.Type.Kind(), typeErr.Value, typeErr.Field)
	}
	return msgInvalidBody
}
