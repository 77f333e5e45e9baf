package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CredentialKey is the gin context key the bearer credential is stored under.
const CredentialKey = "agent_credential"

// BearerCredential extracts the agent credential from the Authorization
// header. A missing or malformed header is a 401; whether the credential
// resolves to an agent is decided later, inside the same statement that
// mutates the row.
func BearerCredential() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		credential := strings.TrimPrefix(header, "Bearer ")
		if credential == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		c.Set(CredentialKey, credential)
		c.Next()
	}
}
