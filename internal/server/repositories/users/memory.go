package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in a map. It backs the memory:// DSN and the
// service tests.
type MemoryRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[string]*models.User),
		now:   time.Now,
	}
}

// clone returns a detached copy so callers never share map entries.
func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (r *MemoryRepository) taken(userName, email, exceptID string) bool {
	for id, u := range r.users {
		if id == exceptID {
			continue
		}
		if userName != "" && strings.EqualFold(u.UserName, userName) {
			return true
		}
		if email != "" && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(user.UserName, user.Email, "") {
		return nil, common.ErrorAlreadyExists
	}

	now := r.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = clone(user)

	return user, nil
}

func (r *MemoryRepository) FindByUserNameOrEmail(ctx context.Context, userName, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if (userName != "" && strings.EqualFold(u.UserName, userName)) ||
			(email != "" && strings.EqualFold(u.Email, email)) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) UpdateFields(ctx context.Context, id string, f models.UserFields) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if f.Empty() {
		return clone(u), nil
	}
	if f.Email != nil && r.taken("", *f.Email, id) {
		return nil, common.ErrorAlreadyExists
	}

	f.Apply(u)
	u.UpdatedAt = r.now().UTC()
	return clone(u), nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = token
	u.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) RotateRefreshToken(ctx context.Context, id, expected, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	if u.RefreshToken == "" || u.RefreshToken != expected {
		return common.ErrTokenMismatch
	}
	u.RefreshToken = next
	u.UpdatedAt = r.now().UTC()
	return nil
}
