package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/filex"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type loginRequest struct {
	UserName string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" form:"oldPassword"`
	NewPassword string `json:"newPassword" form:"newPassword"`
}

type accountRequest struct {
	FullName string `json:"fullname" form:"fullname"`
	Email    string `json:"email" form:"email"`
}

type loginResponse struct {
	User         any    `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// bind decodes a JSON or form body into dst. A body that cannot be decoded is
// a validation error.
func bind(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBind(dst); err != nil {
		return common.NewValidation("invalid request body")
	}
	return nil
}

// stageFile saves the multipart file named field into the upload directory
// and returns its path, or "" when the request has no such file.
func (s *HTTPServer) stageFile(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", common.NewValidation(field + " file is too large")
		}
		return "", common.NewValidation("invalid multipart form")
	}

	if s.opts.MaxUploadBytes > 0 && fh.Size > s.opts.MaxUploadBytes {
		return "", common.NewValidation(field + " file is too large")
	}

	dst := filepath.Join(s.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", common.NewInternal(fmt.Errorf("stage %s: %w", field, err))
	}
	return dst, nil
}

func (s *HTTPServer) limitBody(c *gin.Context) {
	if s.opts.MaxUploadBytes > 0 {
		// room for the form fields next to the files
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*s.opts.MaxUploadBytes+1<<20)
	}
}

func (s *HTTPServer) register(c *gin.Context) {
	s.limitBody(c)

	avatar, err := s.stageFile(c, "avatar")
	if err != nil {
		s.respondError(c, err)
		return
	}
	cover, err := s.stageFile(c, "coverImage")
	if err != nil {
		_ = filex.Remove(avatar)
		s.respondError(c, err)
		return
	}

	user, err := s.users.Register(c.Request.Context(), services.RegisterInput{
		FullName:       c.PostForm("fullname"),
		Email:          c.PostForm("email"),
		UserName:       c.PostForm("username"),
		Password:       c.PostForm("password"),
		AvatarPath:     avatar,
		CoverImagePath: cover,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, user, "user registered successfully")
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	res, err := s.users.Login(c.Request.Context(), services.LoginInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setTokenCookies(c, res.Tokens)
	respond(c, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "user logged in successfully")
}

func (s *HTTPServer) logout(c *gin.Context) {
	user := currentUser(c)
	if err := s.users.Logout(c.Request.Context(), user.ID); err != nil {
		s.respondError(c, err)
		return
	}

	s.clearTokenCookies(c)
	respond(c, http.StatusOK, gin.H{}, "user logged out")
}

func (s *HTTPServer) refreshToken(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		if err := bind(c, &req); err != nil {
			s.respondError(c, err)
			return
		}
		token = req.RefreshToken
	}

	pair, err := s.users.Refresh(c.Request.Context(), token)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setTokenCookies(c, pair)
	respond(c, http.StatusOK, pair, "access token refreshed")
}

func (s *HTTPServer) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	if err := s.users.ChangePassword(c.Request.Context(), currentUser(c).ID, req.OldPassword, req.NewPassword); err != nil {
		s.respondError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{}, "password changed successfully")
}

func (s *HTTPServer) currentUser(c *gin.Context) {
	user, err := s.users.CurrentUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, "current user fetched successfully")
}

func (s *HTTPServer) updateAccount(c *gin.Context) {
	var req accountRequest
	if err := bind(c, &req); err != nil {
		s.respondError(c, err)
		return
	}

	user, err := s.users.UpdateAccount(c.Request.Context(), currentUser(c).ID, req.FullName, req.Email)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, "account details updated successfully")
}

func (s *HTTPServer) updateAvatar(c *gin.Context) {
	s.updateImage(c, "avatar", s.users.UpdateAvatar, "avatar updated successfully")
}

func (s *HTTPServer) updateCoverImage(c *gin.Context) {
	s.updateImage(c, "coverImage", s.users.UpdateCoverImage, "cover image updated successfully")
}

type imageUpdater func(ctx context.Context, userID, localPath string) (*models.PublicUser, error)

func (s *HTTPServer) updateImage(c *gin.Context, field string, update imageUpdater, message string) {
	s.limitBody(c)

	path, err := s.stageFile(c, field)
	if err != nil {
		s.respondError(c, err)
		return
	}

	user, err := update(c.Request.Context(), currentUser(c).ID, path)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, message)
}
