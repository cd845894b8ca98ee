package users

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *MemoryRepository) *models.User {
	t.Helper()
	u, err := r.Create(context.Background(), &models.User{
		UserName: "alice", Email: "a@x.com", FullName: "Alice", Avatar: "img1", PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	r := NewMemoryRepository()
	u := seed(t, r)
	require.NotEmpty(t, u.ID)

	got, err := r.FindByUserNameOrEmail(context.Background(), "ALICE", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.FindByUserNameOrEmail(context.Background(), "", "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.FindByUserNameOrEmail(context.Background(), "", "")
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = r.FindByID(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_CreateConflict(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r)

	_, err := r.Create(context.Background(), &models.User{UserName: "bob", Email: "A@x.com"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = r.Create(context.Background(), &models.User{UserName: "Alice", Email: "other@x.com"})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	u := seed(t, r)

	got, err := r.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	got.FullName = "mutated"

	again, err := r.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.FullName)
}

func TestMemoryRepository_UpdateFields(t *testing.T) {
	r := NewMemoryRepository()
	u := seed(t, r)
	_, err := r.Create(context.Background(), &models.User{UserName: "bob", Email: "b@x.com"})
	require.NoError(t, err)

	taken := "b@x.com"
	_, err = r.UpdateFields(context.Background(), u.ID, models.UserFields{Email: &taken})
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	own := "a@x.com"
	name := "Alice B"
	got, err := r.UpdateFields(context.Background(), u.ID, models.UserFields{Email: &own, FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.FullName)

	_, err = r.UpdateFields(context.Background(), "missing", models.UserFields{FullName: &name})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemoryRepository_RefreshTokenLifecycle(t *testing.T) {
	r := NewMemoryRepository()
	u := seed(t, r)
	ctx := context.Background()

	require.ErrorIs(t, r.RotateRefreshToken(ctx, u.ID, "", "r1"), common.ErrTokenMismatch)

	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "r1"))
	require.NoError(t, r.RotateRefreshToken(ctx, u.ID, "r1", "r2"))
	require.ErrorIs(t, r.RotateRefreshToken(ctx, u.ID, "r1", "r3"), common.ErrTokenMismatch)

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RefreshToken)

	require.NoError(t, r.SetRefreshToken(ctx, u.ID, ""))
	require.ErrorIs(t, r.RotateRefreshToken(ctx, u.ID, "r2", "r4"), common.ErrTokenMismatch)

	require.ErrorIs(t, r.SetRefreshToken(ctx, "missing", "x"), common.ErrorNotFound)
	require.ErrorIs(t, r.RotateRefreshToken(ctx, "missing", "x", "y"), common.ErrorNotFound)
}

func TestMemoryRepository_ConcurrentRotationHasOneWinner(t *testing.T) {
	r := NewMemoryRepository()
	u := seed(t, r)
	ctx := context.Background()
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "r1"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.RotateRefreshToken(ctx, u.ID, "r1", "next"); err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
