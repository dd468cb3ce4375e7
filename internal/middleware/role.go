package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

// RequireClient is a middleware that only admits tokens issued to one of the
// given applications. With no client IDs every authenticated caller passes.
func RequireClient(clientIDs ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(clientIDs))
	for _, id := range clientIDs {
		if id != "" {
			allowed[id] = true
		}
	}

	return func(c *gin.Context) {
		// Get client info from context (set by TokenAuth middleware)
		subjectID, exists := c.Get(ContextSubjectID)
		if !exists {
			respondWithOAuth2Error(c, http.StatusUnauthorized, models.NewOAuth2Error(models.ErrAuthorizationRequired,
				"User not authenticated"))
			return
		}

		if len(allowed) == 0 {
			c.Next()
			return
		}

		clientID := c.GetString(ContextClientID)
		if !allowed[clientID] {
			log.WithField("client_id", clientID).WithField("subject_id", subjectID).Warn("Token issued to a client without access")
			c.JSON(http.StatusForbidden, gin.H{
				"error":     "insufficient_client",
				"client_id": clientID,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
