package repo

import (
	"context"
	"testing"

	"github.com/datapilot-io/datapilot/internal/modules/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepo_Lookup(t *testing.T) {
	d := setupTestDB(t)
	r := NewUserRepo(d)
	ctx := context.Background()

	_, err := r.First(ctx)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	first := seedUser(t, d, "first@example.com")
	second := seedUser(t, d, "second@example.com")

	got, err := r.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = r.GetByEmail(ctx, "second@example.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = r.GetByEmail(ctx, "SECOND@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err = r.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", got.Email)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	d := setupTestDB(t)
	seedUser(t, d, "dup@example.com")

	err := NewUserRepo(d).Create(context.Background(), &model.User{Name: "again", Email: "dup@example.com", PasswordHash: "y"})
	assert.Error(t, err)
}
