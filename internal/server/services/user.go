// Package services contains server-side business logic. This file implements
// UserService, the session manager: registration, login, token refresh with
// rotation, logout and profile updates.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/filex"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/auth"
	"github.com/dmitrijs2005/userkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/userkeeper/internal/server/uploads"
	"golang.org/x/crypto/bcrypt"
)

// Client-facing messages.
const (
	msgUserExists         = "user with email or username already exists"
	msgAvatarRequired     = "avatar file is required"
	msgAvatarUpload       = "avatar upload failed"
	msgIdentifierRequired = "username or email is required"
	msgUserNotFound       = "user does not exist"
	msgInvalidCredentials = "invalid user credentials"
	msgUnauthorized       = "unauthorized request"
	msgInvalidRefresh     = "invalid refresh token"
	msgRefreshUsed        = "refresh token is expired or used"
	msgInvalidOldPassword = "invalid old password"
	msgAvatarMissing      = "avatar file is missing"
	msgCoverMissing       = "cover image file is missing"
	msgCoverUpload        = "cover image upload failed"
	msgInvalidAccess      = "invalid access token"
	msgAllFieldsRequired  = "all fields are required"
	msgEmailTaken         = "email is already in use"
	msgPasswordTooLong    = "password is too long"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RegisterInput carries the registration form. AvatarPath and CoverImagePath
// point at locally staged uploads; they are removed once Register returns.
type RegisterInput struct {
	FullName       string
	Email          string
	UserName       string
	Password       string
	AvatarPath     string
	CoverImagePath string
}

type LoginInput struct {
	UserName string
	Email    string
	Password string
}

type LoginResult struct {
	User   *models.PublicUser
	Tokens *TokenPair
}

// UserService owns the authentication state of every user: the password hash
// and the single live refresh token stored on the user record.
type UserService struct {
	users    users.Repository
	codec    *auth.TokenCodec
	hasher   auth.PasswordHasher
	uploader uploads.Uploader
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// NewUserService wires the service. m may be nil.
func NewUserService(repo users.Repository, codec *auth.TokenCodec, uploader uploads.Uploader, m *metrics.Metrics, logger logging.Logger) *UserService {
	return &UserService{
		users:    repo,
		codec:    codec,
		uploader: uploader,
		metrics:  m,
		logger:   logger.With("module", "users"),
	}
}

// storeError classifies an unexpected repository failure.
func storeError(err error) error {
	return common.NewInternal(err)
}

// Register validates the form, rejects taken identities, uploads the images
// and creates the user. Staged files are removed on every path.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *models.PublicUser, err error) {
	defer func() {
		_ = filex.Remove(in.AvatarPath)
		_ = filex.Remove(in.CoverImagePath)
		s.metrics.AuthEvent(metrics.EventRegister, err)
	}()

	fullName := strings.TrimSpace(in.FullName)
	email := normalizeEmail(in.Email)
	userName := strings.ToLower(strings.TrimSpace(in.UserName))

	for _, f := range []struct{ name, value string }{
		{"fullname", fullName},
		{"email", email},
		{"username", userName},
		{"password", strings.TrimSpace(in.Password)},
	} {
		if f.value == "" {
			return nil, common.NewValidation(f.name + " is required")
		}
	}

	_, err = s.users.FindByUserNameOrEmail(ctx, userName, email)
	switch {
	case err == nil:
		return nil, common.NewConflict(msgUserExists)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, storeError(err)
	}

	if in.AvatarPath == "" {
		return nil, common.NewValidation(msgAvatarRequired)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	avatarURL, err := s.uploader.Upload(ctx, in.AvatarPath)
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "error", err)
		return nil, common.NewDependency(msgAvatarUpload, err)
	}

	var coverURL string
	if in.CoverImagePath != "" {
		coverURL, err = s.uploader.Upload(ctx, in.CoverImagePath)
		if err != nil {
			s.logger.Warn(ctx, "cover image upload failed, continuing without it", "error", err)
			coverURL = ""
		}
	}

	user, err := s.users.Create(ctx, &models.User{
		UserName:     userName,
		Email:        email,
		FullName:     fullName,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.NewConflict(msgUserExists)
		}
		return nil, storeError(err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user.Public(), nil
}

// Login checks the password and starts a new session. The previous refresh
// token, if any, is overwritten and stops working.
func (s *UserService) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	defer func() { s.metrics.AuthEvent(metrics.EventLogin, err) }()

	userName := strings.ToLower(strings.TrimSpace(in.UserName))
	email := normalizeEmail(in.Email)
	if userName == "" && email == "" {
		return nil, common.NewValidation(msgIdentifierRequired)
	}

	user, err := s.users.FindByUserNameOrEmail(ctx, userName, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFound(msgUserNotFound)
		}
		return nil, storeError(err)
	}

	if !s.hasher.Check(user.PasswordHash, in.Password) {
		s.logger.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, common.NewUnauthorized(msgInvalidCredentials, nil)
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFound(msgUserNotFound)
		}
		return nil, storeError(err)
	}
	user.RefreshToken = pair.RefreshToken

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &LoginResult{User: user.Public(), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token must
// equal the stored one; the swap is atomic so a token is accepted at most once.
func (s *UserService) Refresh(ctx context.Context, presented string) (_ *TokenPair, err error) {
	defer func() { s.metrics.AuthEvent(metrics.EventRefresh, err) }()

	if presented == "" {
		return nil, common.NewUnauthorized(msgUnauthorized, nil)
	}

	claims, err := s.codec.Verify(presented, auth.KindRefresh)
	if err != nil {
		return nil, common.NewUnauthorized(msgInvalidRefresh, err)
	}

	pair, err := s.issuePair(claims.UserID)
	if err != nil {
		return nil, err
	}

	err = s.users.RotateRefreshToken(ctx, claims.UserID, presented, pair.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTokenMismatch):
		s.metrics.RefreshReuse()
		s.logger.Warn(ctx, "stale refresh token presented", "user_id", claims.UserID)
		return nil, common.NewUnauthorized(msgRefreshUsed, err)
	case errors.Is(err, common.ErrorNotFound):
		return nil, common.NewUnauthorized(msgInvalidRefresh, err)
	default:
		return nil, storeError(err)
	}

	s.logger.Debug(ctx, "refresh token rotated", "user_id", claims.UserID)
	return pair, nil
}

// Logout clears the stored refresh token. Unknown users are a no-op.
func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.AuthEvent(metrics.EventLogout, err) }()

	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return storeError(err)
	}

	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// ChangePassword replaces the password hash. The current refresh token stays
// valid.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { s.metrics.AuthEvent(metrics.EventChangePassword, err) }()

	if strings.TrimSpace(newPassword) == "" {
		return common.NewValidation("new password is required")
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if !s.hasher.Check(user.PasswordHash, oldPassword) {
		return common.NewUnauthorized(msgInvalidOldPassword, nil)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := s.update(ctx, userID, models.UserFields{PasswordHash: &hash}); err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// UpdateAccount sets full name and email; both are required.
func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	if fullName == "" || email == "" {
		return nil, common.NewValidation(msgAllFieldsRequired)
	}

	return s.update(ctx, userID, models.UserFields{FullName: &fullName, Email: &email})
}

// UpdateAvatar uploads the staged file at localPath and stores its URL.
func (s *UserService) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	return s.updateImage(ctx, userID, localPath, msgAvatarMissing, msgAvatarUpload, func(url string) models.UserFields {
		return models.UserFields{Avatar: &url}
	})
}

// UpdateCoverImage uploads the staged file at localPath and stores its URL.
func (s *UserService) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	return s.updateImage(ctx, userID, localPath, msgCoverMissing, msgCoverUpload, func(url string) models.UserFields {
		return models.UserFields{CoverImage: &url}
	})
}

// Authenticate resolves an access token to its user. Any failure is an
// AuthError.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*models.PublicUser, error) {
	if accessToken == "" {
		return nil, common.NewUnauthorized(msgUnauthorized, nil)
	}

	claims, err := s.codec.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return nil, common.NewUnauthorized(msgInvalidAccess, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewUnauthorized(msgInvalidAccess, err)
		}
		return nil, storeError(err)
	}

	return user.Public(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", common.NewValidation(msgPasswordTooLong)
		}
		return "", common.NewInternal(err)
	}
	return hash, nil
}

func (s *UserService) issuePair(userID string) (*TokenPair, error) {
	access, err := s.codec.IssueAccessToken(userID)
	if err != nil {
		return nil, common.NewInternal(err)
	}
	refresh, err := s.codec.IssueRefreshToken(userID)
	if err != nil {
		return nil, common.NewInternal(err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *UserService) findUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.NewNotFound(msgUserNotFound)
		}
		return nil, storeError(err)
	}
	return user, nil
}

func (s *UserService) update(ctx context.Context, userID string, f models.UserFields) (*models.PublicUser, error) {
	user, err := s.users.UpdateFields(ctx, userID, f)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.NewNotFound(msgUserNotFound)
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.NewConflict(msgEmailTaken)
		default:
			return nil, storeError(err)
		}
	}
	return user.Public(), nil
}

func (s *UserService) updateImage(ctx context.Context, userID, localPath, missingMsg, uploadMsg string, fields func(url string) models.UserFields) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, common.NewValidation(missingMsg)
	}

	if _, err := s.findUser(ctx, userID); err != nil {
		_ = filex.Remove(localPath)
		return nil, err
	}

	url, err := s.uploader.Upload(ctx, localPath)
	if err != nil {
		s.logger.Error(ctx, uploadMsg, "user_id", userID, "error", err)
		return nil, common.NewDependency(uploadMsg, err)
	}

	return s.update(ctx, userID, fields(url))
}
