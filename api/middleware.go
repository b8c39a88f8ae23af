package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"mp4conv/config"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware requires "Authorization: Bearer <AUTH_KEY>" when
// AUTH_ENABLE is set. Both values are taken from cfg as loaded at startup;
// a config reload does not change them.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.AuthEnable {
			c.Next()
			return
		}

		fields := strings.Fields(c.GetHeader("Authorization"))
		if len(fields) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if len(fields) != 2 || !strings.EqualFold(fields[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid Authorization header format"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(fields[1]), []byte(cfg.AuthKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Next()
	}
}
