package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-scan/internal/model"
	"github.com/iliyamo/venue-scan/internal/utils"
)

func TestUserRepo_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()

	u, err := repo.Create(ctx, NewUser{Email: " Admin@Venue.io ", Password: "secret", Role: model.RoleAdmin}, 4)
	require.NoError(t, err)
	assert.Equal(t, "admin@venue.io", u.Email)
	assert.True(t, u.IsActive())

	_, err = repo.Create(ctx, NewUser{Email: "admin@venue.io", Password: "x", Role: model.RoleAdmin}, 4)
	assert.ErrorIs(t, err, ErrEmailExists)

	got, err := repo.GetByEmail(ctx, "ADMIN@venue.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, utils.VerifyPassword(got.PasswordHash, "secret"))

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestTokenRepo_RefreshLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.StoreRefresh(ctx, "u1", "hash-1", time.Now().Add(time.Hour)))
	uid, err := repo.ValidateRefresh(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	require.NoError(t, repo.RevokeByHash(ctx, "hash-1"))
	_, err = repo.ValidateRefresh(ctx, "hash-1")
	assert.ErrorIs(t, err, ErrRefreshInvalid)

	require.NoError(t, repo.StoreRefresh(ctx, "u1", "hash-2", time.Now().Add(-time.Minute)))
	_, err = repo.ValidateRefresh(ctx, "hash-2")
	assert.ErrorIs(t, err, ErrRefreshInvalid)
}
