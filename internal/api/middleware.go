package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-gateway/internal/models"
	"storefront-gateway/internal/session"
	"storefront-gateway/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	ctxSessionKey   = "session"
	ctxSessionIDKey = "session_id"
)

// RequireSession resolves the caller's gateway session from the bearer
// header. A missing or unknown session stops the request here; no backend
// call is made on behalf of an unauthenticated caller.
func RequireSession(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Please login to continue",
			})
			return
		}

		id := strings.TrimPrefix(header, "Bearer ")
		sess, err := sessions.Get(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Session expired. Please login again.",
			})
			return
		}

		c.Set(ctxSessionKey, sess)
		c.Set(ctxSessionIDKey, id)
		c.Next()
	}
}

// RequireAdmin gates the back-office routes on the role the backend reported
// at login. Runs after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Please login to continue",
			})
			return
		}
		if sess.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

func currentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(ctxSessionKey)
	if !ok {
		return nil
	}
	return v.(*models.Session)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
