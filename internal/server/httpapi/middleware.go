package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/gin-gonic/gin"
)

const userContextKey = "user"

// accessToken reads the token from the cookie, falling back to the
// Authorization bearer header.
func accessToken(c *gin.Context) string {
	if v, err := c.Cookie(common.AccessTokenCookieName); err == nil && v != "" {
		return v
	}
	header := c.GetHeader(common.AuthorizationHeaderName)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *HTTPServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.users.Authenticate(c.Request.Context(), accessToken(c))
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// currentUser returns the user resolved by authMiddleware.
func currentUser(c *gin.Context) *models.PublicUser {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.PublicUser)
	return u
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		s.metrics.HTTPRequest(c.Request.Method, route, strconv.Itoa(status), latency.Seconds())
		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", latency.String(),
		)
	}
}

func (s *HTTPServer) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.Error(c.Request.Context(), "panic recovered", "panic", fmt.Sprint(recovered))
		s.respondError(c, common.NewInternal(fmt.Errorf("panic: %v", recovered)))
	})
}
