package memory

import (
	"context"
	"testing"
	"time"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func createUser(t *testing.T, repo *UserRepo, email string) *domain.User {
	t.Helper()
	u := &domain.User{Name: "Ada", Email: email}
	require.NoError(t, repo.Create(context.Background(), u, "Secret123"))
	return u
}

func TestUserRepo_CreateAndFind(t *testing.T) {
	repo := NewUserRepo(bcrypt.MinCost)
	ctx := context.Background()

	u := createUser(t, repo, "  Ada@Example.COM ")
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.Equal(t, "auto", u.PreferredSourceLanguage)
	assert.Equal(t, "en", u.PreferredTargetLanguage)
	assert.NotEqual(t, "Secret123", u.PasswordHash)

	byEmail, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, byID.Email)

	missing, err := repo.FindByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	repo := NewUserRepo(bcrypt.MinCost)
	createUser(t, repo, "ada@example.com")

	err := repo.Create(context.Background(), &domain.User{Name: "Other", Email: "ADA@example.com"}, "Secret123")
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
}

func TestUserRepo_ComparePassword(t *testing.T) {
	repo := NewUserRepo(bcrypt.MinCost)
	u := createUser(t, repo, "ada@example.com")

	assert.True(t, repo.ComparePassword(context.Background(), u, "Secret123"))
	assert.False(t, repo.ComparePassword(context.Background(), u, "secret123"))
}

func TestUserRepo_Update(t *testing.T) {
	repo := NewUserRepo(bcrypt.MinCost)
	ctx := context.Background()
	u := createUser(t, repo, "ada@example.com")

	name := "Ada Lovelace"
	target := "fr"
	inactive := false
	login := time.Now().UTC()
	newPassword := "Changed123"

	updated, err := repo.Update(ctx, u.ID, domain.UserUpdate{
		Name:                    &name,
		PreferredTargetLanguage: &target,
		Password:                &newPassword,
		IsActive:                &inactive,
		LastLogin:               &login,
		APIKeys:                 map[domain.Provider]string{domain.ProviderOpenAI: "nonce:cipher"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "fr", updated.PreferredTargetLanguage)
	assert.Equal(t, "auto", updated.PreferredSourceLanguage)
	assert.False(t, updated.IsActive)
	require.NotNil(t, updated.LastLogin)
	assert.True(t, updated.HasAPIKey(domain.ProviderOpenAI))
	assert.True(t, repo.ComparePassword(ctx, updated, "Changed123"))

	// returned values are copies
	updated.APIKeys[domain.ProviderGroq] = "leak"
	fresh, _ := repo.FindByID(ctx, u.ID)
	assert.False(t, fresh.HasAPIKey(domain.ProviderGroq))

	cleared, err := repo.Update(ctx, u.ID, domain.UserUpdate{
		APIKeys: map[domain.Provider]string{domain.ProviderOpenAI: ""},
	})
	require.NoError(t, err)
	assert.False(t, cleared.HasAPIKey(domain.ProviderOpenAI))

	_, err = repo.Update(ctx, "missing", domain.UserUpdate{Name: &name})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepo_TranslationCountDelta(t *testing.T) {
	repo := NewUserRepo(bcrypt.MinCost)
	ctx := context.Background()
	u := createUser(t, repo, "ada@example.com")

	for _, delta := range []int{1, 1, -1} {
		_, err := repo.Update(ctx, u.ID, domain.UserUpdate{TranslationCountDelta: delta})
		require.NoError(t, err)
	}

	fresh, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TranslationCount)
}
