// Package httpapi binds the user service to HTTP: routing, cookies, multipart
// staging and the response envelope.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
)

// UserService is the part of services.UserService the transport needs.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, presented string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
	Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error)
}

type Options struct {
	CookieSecure    bool
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// UploadDir must exist; multipart files are staged there.
	UploadDir      string
	MaxUploadBytes int64
}

type HTTPServer struct {
	address string
	users   UserService
	metrics *metrics.Metrics
	logger  logging.Logger
	opts    Options
	router  *gin.Engine
}

func NewHTTPServer(address string, l logging.Logger, us UserService, m *metrics.Metrics, opts Options) *HTTPServer {
	s := &HTTPServer{
		address: address,
		users:   us,
		metrics: m,
		logger:  l.With("module", "http_server"),
		opts:    opts,
	}
	s.router = s.newRouter()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), s.recovery())
	if s.opts.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = s.opts.MaxUploadBytes
	}

	r.GET("/healthz", func(c *gin.Context) {
		respond(c, http.StatusOK, gin.H{"status": "ok"}, "ok")
	})
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	users := r.Group("/api/v1/users")
	{
		users.POST("/register", s.register)
		users.POST("/login", s.login)
		users.POST("/refresh-token", s.refreshToken)

		secured := users.Group("")
		secured.Use(s.authMiddleware())
		{
			secured.POST("/logout", s.logout)
			secured.POST("/change-password", s.changePassword)
			secured.GET("/current-user", s.currentUser)
			secured.PATCH("/account", s.updateAccount)
			secured.PATCH("/avatar", s.updateAvatar)
			secured.PATCH("/cover-image", s.updateCoverImage)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		respond(c, http.StatusNotFound, nil, "route not found")
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
