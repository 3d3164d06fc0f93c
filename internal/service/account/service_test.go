package account

import (
	"context"
	"errors"
	"testing"

	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/logging"
	"github.com/iamasit07/audio-translator/internal/repository/memory"
	"github.com/iamasit07/audio-translator/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeRevoker struct {
	calls []string
	err   error
}

func (f *fakeRevoker) RevokeAll(_ context.Context, userID string) (int, error) {
	f.calls = append(f.calls, userID)
	return 1, f.err
}

type fakeChecker struct{ err error }

func (f fakeChecker) Check(context.Context, domain.Provider, string) error { return f.err }

type fixture struct {
	svc     *Service
	users   *memory.UserRepo
	revoker *fakeRevoker
	vault   *vault.Vault
	user    *domain.User
}

func newFixture(t *testing.T, checker KeyChecker) *fixture {
	t.Helper()
	users := memory.NewUserRepo(bcrypt.MinCost)
	v, err := vault.New("account-test-secret", logging.Discard())
	require.NoError(t, err)

	u := &domain.User{Name: "Ann", Email: "ann@x.com"}
	require.NoError(t, users.Create(context.Background(), u, "Passw0rd!"))

	revoker := &fakeRevoker{}
	return &fixture{
		svc:     NewService(users, revoker, v, checker, logging.Discard()),
		users:   users,
		revoker: revoker,
		vault:   v,
		user:    u,
	}
}

func ptr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u, err := f.svc.UpdateProfile(ctx, f.user.ID, ProfileInput{
		Name:                    ptr("  Ann Smith "),
		PreferredTargetLanguage: ptr("de"),
		PreferredSourceLanguage: ptr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ann Smith", u.Name)
	assert.Equal(t, "de", u.PreferredTargetLanguage)
	assert.Equal(t, "auto", u.PreferredSourceLanguage)

	_, err = f.svc.UpdateProfile(ctx, f.user.ID, ProfileInput{Name: ptr("A")})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSaveAndDeleteAPIKey(t *testing.T) {
	f := newFixture(t, fakeChecker{})
	ctx := context.Background()

	u, err := f.svc.SaveAPIKey(ctx, f.user.ID, " OpenAI ", "  sk-live-0123456789  ")
	require.NoError(t, err)
	require.True(t, u.HasAPIKey(domain.ProviderOpenAI))

	envelope := u.APIKeys[domain.ProviderOpenAI]
	assert.NotContains(t, envelope, "sk-live")
	plain, ok := f.vault.Decrypt(envelope).Value()
	require.True(t, ok)
	assert.Equal(t, "sk-live-0123456789", plain)

	u, err = f.svc.DeleteAPIKey(ctx, f.user.ID, "openai")
	require.NoError(t, err)
	assert.False(t, u.HasAPIKey(domain.ProviderOpenAI))
}

func TestSaveAPIKey_Rejections(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, fakeChecker{})
	_, err := f.svc.SaveAPIKey(ctx, f.user.ID, "claude", "sk-0123456789")
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)

	_, err = f.svc.SaveAPIKey(ctx, f.user.ID, "groq", "short")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.DeleteAPIKey(ctx, f.user.ID, "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedProvider)

	f = newFixture(t, fakeChecker{err: domain.ErrInvalidAPIKey})
	_, err = f.svc.SaveAPIKey(ctx, f.user.ID, "groq", "gsk-0123456789")
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)

	stored, _ := f.users.FindByID(ctx, f.user.ID)
	assert.False(t, stored.HasAPIKey(domain.ProviderGroq))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, f.user.ID, "wrong", "NewPassw0rd")
	assert.ErrorIs(t, err, domain.ErrIncorrectPassword)

	err = f.svc.ChangePassword(ctx, f.user.ID, "Passw0rd!", "weak")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.revoker.calls)

	require.NoError(t, f.svc.ChangePassword(ctx, f.user.ID, "Passw0rd!", "NewPassw0rd"))
	assert.Equal(t, []string{f.user.ID}, f.revoker.calls)

	u, _ := f.users.FindByID(ctx, f.user.ID)
	assert.True(t, f.users.ComparePassword(ctx, u, "NewPassw0rd"))
	assert.False(t, f.users.ComparePassword(ctx, u, "Passw0rd!"))
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Deactivate(ctx, f.user.ID, ""), domain.ErrValidation)
	assert.ErrorIs(t, f.svc.Deactivate(ctx, f.user.ID, "nope"), domain.ErrIncorrectPassword)
	assert.ErrorIs(t, f.svc.Deactivate(ctx, "missing", "Passw0rd!"), domain.ErrUserNotFound)

	require.NoError(t, f.svc.Deactivate(ctx, f.user.ID, "Passw0rd!"))
	assert.Equal(t, []string{f.user.ID}, f.revoker.calls)

	u, _ := f.users.FindByID(ctx, f.user.ID)
	assert.False(t, u.IsActive)
}

func TestDeactivate_RevokeFailureKeepsAccountActive(t *testing.T) {
	f := newFixture(t, nil)
	f.revoker.err = errors.New("redis down")
	ctx := context.Background()

	assert.Error(t, f.svc.Deactivate(ctx, f.user.ID, "Passw0rd!"))

	u, _ := f.users.FindByID(ctx, f.user.ID)
	assert.True(t, u.IsActive)
}
