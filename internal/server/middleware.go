package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const userIDKey = "userID"

// requireAuth rejects requests without a valid bearer token and stores
// the token subject on the context.
func requireAuth(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			respondError(c, http.StatusUnauthorized, "Authorization header missing")
			return
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// requestLogger logs one line per request.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path += "?" + raw
		}

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
