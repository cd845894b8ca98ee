package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", s.opts.CookieSecure, true)
}

func (s *HTTPServer) setTokenCookies(c *gin.Context, pair *services.TokenPair) {
	s.setCookie(c, common.AccessTokenCookieName, pair.AccessToken, s.opts.AccessTokenTTL)
	s.setCookie(c, common.RefreshTokenCookieName, pair.RefreshToken, s.opts.RefreshTokenTTL)
}

func (s *HTTPServer) clearTokenCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", "", s.opts.CookieSecure, true)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/", "", s.opts.CookieSecure, true)
}
