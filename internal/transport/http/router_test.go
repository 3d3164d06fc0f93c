package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/logging"
	"github.com/iamasit07/audio-translator/internal/repository/memory"
	"github.com/iamasit07/audio-translator/internal/service/account"
	"github.com/iamasit07/audio-translator/internal/service/provider"
	"github.com/iamasit07/audio-translator/internal/service/session"
	"github.com/iamasit07/audio-translator/internal/service/translation"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"github.com/iamasit07/audio-translator/pkg/httputil"
	"github.com/iamasit07/audio-translator/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	router   *gin.Engine
	users    *memory.UserRepo
	sessions *session.Service
	vault    *vault.Vault
}

type brokenKV struct{ *memory.KV }

func (brokenKV) Ping(context.Context) error { return errors.New("connection refused") }

func (brokenKV) GetDel(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithKV(t, memory.NewKV())
}

func newHarnessWithKV(t *testing.T, kv session.KeyValueStore) *harness {
	t.Helper()
	return newHarnessWithLogger(t, kv, logging.Discard())
}

func newHarnessWithLogger(t *testing.T, kv session.KeyValueStore, logger *slog.Logger) *harness {
	t.Helper()

	providerAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer sk-rejected-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/chat/completions" {
			fakeCompletion(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(providerAPI.Close)

	users := memory.NewUserRepo(bcrypt.MinCost)
	tokens := session.NewTokenStore(kv, time.Second, logger)
	codec := auth.NewCodec("router-secret", 15*time.Minute)
	sessions := session.NewService(users, tokens, codec, session.Options{RefreshTTL: time.Hour}, logger)

	v, err := vault.New("router-vault-secret", logger)
	require.NoError(t, err)
	checker := provider.NewKeyChecker(providerAPI.Client(), logger).
		WithBaseURL(domain.ProviderOpenAI, providerAPI.URL).
		WithBaseURL(domain.ProviderGroq, providerAPI.URL)
	resolver := provider.NewResolver(v, map[domain.Provider]string{domain.ProviderGroq: "gsk-system"}, logger)
	accounts := account.NewService(users, sessions, v, checker, logger)
	translator := provider.NewChatTranslator(providerAPI.Client(), logger).
		WithBaseURL(domain.ProviderOpenAI, providerAPI.URL).
		WithBaseURL(domain.ProviderGroq, providerAPI.URL)
	history := memory.NewTranslationRepo()
	translations := translation.NewService(history, users, resolver, translator, logger)

	cookies := httputil.CookieConfig{SameSite: http.SameSiteLaxMode, AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour}
	gate := middleware.NewGate(codec, users, time.Second, logger)

	router := NewRouter(RouterConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		RateLimitWindow:  15 * time.Minute,
		RateLimitMax:     1000,
		AuthRateLimitMax: 1000,
	}, gate, Handlers{
		Auth:        NewAuthHandler(sessions, cookies, logger),
		User:        NewUserHandler(accounts, resolver, cookies, logger),
		Admin:       NewAdminHandler(sessions, logger),
		Translation: NewTranslationHandler(translations, logger),
		Health:      NewHealthHandler(tokens, "test", logger),
	}, logger)

	return &harness{router: router, users: users, sessions: sessions, vault: v}
}

// fakeCompletion answers a chat completion by prefixing the user's text.
func fakeCompletion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	content, _ := json.Marshal(map[string]any{
		"translatedText":   "translated: " + req.Messages[len(req.Messages)-1].Content,
		"detectedLanguage": "en",
		"confidence":       0.9,
	})
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": string(content)}}},
	})
}

type response struct {
	*httptest.ResponseRecorder
}

func (r response) body(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &out))
	return out
}

func (r response) cookie(name string) *http.Cookie {
	for _, c := range r.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (h *harness) do(method, path string, body any, cookies ...*http.Cookie) response {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return response{rec}
}

func (h *harness) register(t *testing.T, name, email, password string) response {
	t.Helper()
	res := h.do(http.MethodPost, "/api/auth/register", gin.H{"name": name, "email": email, "password": password})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	return res
}

func TestEndToEnd_RegisterMeRefreshReuse(t *testing.T) {
	h := newHarness(t)

	reg := h.register(t, "Ann", "ann@x.com", "Passw0rd!")
	body := reg.body(t)
	assert.Equal(t, "Registration successful", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "ann@x.com", user["email"])
	assert.NotContains(t, reg.Body.String(), "password")

	access := reg.cookie(httputil.AccessCookieName)
	refresh := reg.cookie(httputil.RefreshCookieName)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, "/", access.Path)
	assert.Equal(t, "/api/auth", refresh.Path)

	me := h.do(http.MethodGet, "/api/auth/me", nil, access)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, user["id"], me.body(t)["user"].(map[string]any)["id"])

	rotated := h.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, rotated.Code)
	assert.Equal(t, "Token refreshed", rotated.body(t)["message"])
	newRefresh := rotated.cookie(httputil.RefreshCookieName)
	require.NotNil(t, newRefresh)
	assert.NotEqual(t, refresh.Value, newRefresh.Value)

	reuse := h.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, reuse.Code)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", reuse.body(t)["code"])
	cleared := reuse.cookie(httputil.RefreshCookieName)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
}

func TestEndToEnd_LoginRevokesPriorSession(t *testing.T) {
	h := newHarness(t)

	t0 := h.register(t, "Ann", "ann@x.com", "Passw0rd!").cookie(httputil.RefreshCookieName)

	login := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ANN@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, login.Code)
	assert.Equal(t, "Login successful", login.body(t)["message"])

	stale := h.do(http.MethodPost, "/api/auth/refresh", nil, t0)
	assert.Equal(t, http.StatusUnauthorized, stale.Code)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", stale.body(t)["code"])

	fresh := h.do(http.MethodPost, "/api/auth/refresh", nil, login.cookie(httputil.RefreshCookieName))
	assert.Equal(t, http.StatusOK, fresh.Code)
}

func TestRegister_LoggedOnce(t *testing.T) {
	var logs bytes.Buffer
	h := newHarnessWithLogger(t, memory.NewKV(), slog.New(slog.NewTextHandler(&logs, nil)))

	h.register(t, "Ann", "ann@x.com", "Passw0rd!")
	assert.Equal(t, 1, strings.Count(logs.String(), "user registered"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register(t, "Ann", "ann@x.com", "Passw0rd!")

	dup := h.do(http.MethodPost, "/api/auth/register", gin.H{"name": "Imposter", "email": "ANN@X.COM", "password": "Other1234"})
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "DUPLICATE_EMAIL", dup.body(t)["code"])

	login := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ann@x.com", "password": "Passw0rd!"})
	assert.Equal(t, http.StatusOK, login.Code)
	assert.Equal(t, "Ann", login.body(t)["user"].(map[string]any)["name"])
}

func TestRegister_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name  string
		body  gin.H
		field string
	}{
		{name: "short name", body: gin.H{"name": " A ", "email": "a@x.com", "password": "Passw0rd"}, field: "name"},
		{name: "bad email", body: gin.H{"name": "Ann", "email": "not-an-email", "password": "Passw0rd"}, field: "email"},
		{name: "short password", body: gin.H{"name": "Ann", "email": "a@x.com", "password": "Pa1"}, field: "password"},
		{name: "weak password", body: gin.H{"name": "Ann", "email": "a@x.com", "password": "alllowercase1"}, field: "password"},
		{name: "missing everything", body: gin.H{}, field: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.do(http.MethodPost, "/api/auth/register", tt.body)
			require.Equal(t, http.StatusBadRequest, res.Code)

			body := res.body(t)
			assert.Equal(t, "VALIDATION_FAILED", body["code"])
			var fields []string
			for _, e := range body["errors"].([]any) {
				fields = append(fields, e.(map[string]any)["field"].(string))
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	h.register(t, "Ann", "ann@x.com", "Passw0rd!")
	h.register(t, "Gone", "gone@x.com", "Passw0rd!")

	gone, err := h.users.FindByEmail(context.Background(), "gone@x.com")
	require.NoError(t, err)
	inactive := false
	_, err = h.users.Update(context.Background(), gone.ID, domain.UserUpdate{IsActive: &inactive})
	require.NoError(t, err)

	attempts := []gin.H{
		{"email": "ann@x.com", "password": "WrongPass1"},
		{"email": "nobody@x.com", "password": "Passw0rd!"},
		{"email": "gone@x.com", "password": "Passw0rd!"},
	}

	var bodies []string
	for _, attempt := range attempts {
		res := h.do(http.MethodPost, "/api/auth/login", attempt)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Nil(t, res.cookie(httputil.AccessCookieName))
		bodies = append(bodies, res.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
	assert.JSONEq(t, `{"error":"Invalid email or password","code":"INVALID_CREDENTIALS"}`, bodies[0])
}

func TestRefresh_Errors(t *testing.T) {
	h := newHarness(t)

	t.Run("no cookie", func(t *testing.T) {
		res := h.do(http.MethodPost, "/api/auth/refresh", nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Equal(t, "NO_REFRESH_TOKEN", res.body(t)["code"])
		assert.Nil(t, res.cookie(httputil.RefreshCookieName))
	})

	t.Run("deactivated user", func(t *testing.T) {
		reg := h.register(t, "Ann", "ann@x.com", "Passw0rd!")
		id := reg.body(t)["user"].(map[string]any)["id"].(string)
		inactive := false
		_, err := h.users.Update(context.Background(), id, domain.UserUpdate{IsActive: &inactive})
		require.NoError(t, err)

		res := h.do(http.MethodPost, "/api/auth/refresh", nil, reg.cookie(httputil.RefreshCookieName))
		assert.Equal(t, http.StatusUnauthorized, res.Code)
		assert.Equal(t, "USER_NOT_FOUND", res.body(t)["code"])
		require.NotNil(t, res.cookie(httputil.AccessCookieName))
		assert.Negative(t, res.cookie(httputil.AccessCookieName).MaxAge)
	})
}

func TestRefresh_StoreFailureIsGeneric500(t *testing.T) {
	h := newHarnessWithKV(t, brokenKV{memory.NewKV()})

	res := h.do(http.MethodPost, "/api/auth/refresh", nil, &http.Cookie{Name: httputil.RefreshCookieName, Value: "some-token"})
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.JSONEq(t, `{"error":"Authentication failed"}`, res.Body.String())
}

func TestLogout_AlwaysClearsCookies(t *testing.T) {
	h := newHarness(t)
	refresh := h.register(t, "Ann", "ann@x.com", "Passw0rd!").cookie(httputil.RefreshCookieName)

	for i := 0; i < 2; i++ {
		res := h.do(http.MethodPost, "/api/auth/logout", nil, refresh)
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, "Logged out successfully", res.body(t)["message"])
		assert.Negative(t, res.cookie(httputil.AccessCookieName).MaxAge)
		assert.Negative(t, res.cookie(httputil.RefreshCookieName).MaxAge)
	}

	res := h.do(http.MethodPost, "/api/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	anonymous := h.do(http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, anonymous.Code)
}

func TestUserRoutes_RequireAuth(t *testing.T) {
	h := newHarness(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/user/profile"},
		{http.MethodPut, "/api/user/api-key"},
		{http.MethodDelete, "/api/user/account"},
		{http.MethodPost, "/api/admin/users/x/revoke-sessions"},
	} {
		res := h.do(route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, res.Code, route.path)
		assert.Equal(t, "NO_TOKEN", res.body(t)["code"], route.path)
	}
}

func TestUserProfileAndKeys(t *testing.T) {
	h := newHarness(t)
	access := h.register(t, "Ann", "ann@x.com", "Passw0rd!").cookie(httputil.AccessCookieName)

	res := h.do(http.MethodPut, "/api/user/profile", gin.H{"name": "Annie", "preferredTargetLanguage": "fr"}, access)
	require.Equal(t, http.StatusOK, res.Code)
	user := res.body(t)["user"].(map[string]any)
	assert.Equal(t, "Annie", user["name"])
	assert.Equal(t, "fr", user["preferredTargetLanguage"])

	res = h.do(http.MethodPut, "/api/user/profile", gin.H{"name": "A"}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "VALIDATION_FAILED", res.body(t)["code"])

	res = h.do(http.MethodPut, "/api/user/api-key", gin.H{"provider": "openai", "apiKey": "sk-rejected-key"}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "INVALID_API_KEY", res.body(t)["code"])

	res = h.do(http.MethodPut, "/api/user/api-key", gin.H{"provider": "anthropic", "apiKey": "sk-0123456789"}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "UNSUPPORTED_PROVIDER", res.body(t)["code"])

	res = h.do(http.MethodPut, "/api/user/api-key", gin.H{"provider": "openai", "apiKey": "short"}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(http.MethodPut, "/api/user/api-key", gin.H{"provider": "OpenAI", "apiKey": "sk-good-key-0123"}, access)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.body(t)["hasApiKey"])

	stored, err := h.users.FindByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	envelope := stored.APIKeys[domain.ProviderOpenAI]
	assert.NotEqual(t, "sk-good-key-0123", envelope)
	plain, ok := h.vault.Decrypt(envelope).Value()
	require.True(t, ok)
	assert.Equal(t, "sk-good-key-0123", plain)

	res = h.do(http.MethodGet, "/api/user/providers", nil, access)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"providers":[{"provider":"openai","source":"user"},{"provider":"groq","source":"system"}]}`, res.Body.String())

	res = h.do(http.MethodGet, "/api/user/profile", nil, access)
	assert.Equal(t, true, res.body(t)["user"].(map[string]any)["hasOpenApiKey"])

	res = h.do(http.MethodDelete, "/api/user/api-key", gin.H{"provider": "openai"}, access)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, false, res.body(t)["hasApiKey"])
}

func TestChangePassword_RevokesEverything(t *testing.T) {
	h := newHarness(t)
	reg := h.register(t, "Ann", "ann@x.com", "Passw0rd!")
	access := reg.cookie(httputil.AccessCookieName)
	refresh := reg.cookie(httputil.RefreshCookieName)

	res := h.do(http.MethodPut, "/api/user/password", gin.H{"currentPassword": "nope", "newPassword": "NewPassw0rd"}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "INCORRECT_PASSWORD", res.body(t)["code"])

	res = h.do(http.MethodPut, "/api/user/password", gin.H{"currentPassword": "Passw0rd!", "newPassword": "newpassword"}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "VALIDATION_FAILED", res.body(t)["code"])

	res = h.do(http.MethodPut, "/api/user/password", gin.H{"currentPassword": "Passw0rd!", "newPassword": "NewPassw0rd"}, access)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Negative(t, res.cookie(httputil.RefreshCookieName).MaxAge)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/refresh", nil, refresh).Code)
	assert.Equal(t, http.StatusUnauthorized,
		h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ann@x.com", "password": "Passw0rd!"}).Code)
	assert.Equal(t, http.StatusOK,
		h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "ann@x.com", "password": "NewPassw0rd"}).Code)
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	access := h.register(t, "Ann", "ann@x.com", "Passw0rd!").cookie(httputil.AccessCookieName)

	res := h.do(http.MethodDelete, "/api/user/account", gin.H{}, access)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(http.MethodDelete, "/api/user/account", gin.H{"password": "Passw0rd!"}, access)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Account deactivated successfully", res.body(t)["message"])

	me := h.do(http.MethodGet, "/api/auth/me", nil, access)
	assert.Equal(t, http.StatusUnauthorized, me.Code)
	assert.Equal(t, "USER_NOT_FOUND", me.body(t)["code"])
}

func TestAdminRevokeSessions(t *testing.T) {
	h := newHarness(t)
	victim := h.register(t, "Ann", "ann@x.com", "Passw0rd!")
	victimID := victim.body(t)["user"].(map[string]any)["id"].(string)
	bystander := h.register(t, "Bob", "bob@x.com", "Passw0rd!")

	// admins are provisioned in the store; there is no public route for it
	root := &domain.User{Name: "Root", Email: "root@x.com", Role: domain.RoleAdmin}
	require.NoError(t, h.users.Create(context.Background(), root, "Passw0rd!"))

	rootLogin := h.do(http.MethodPost, "/api/auth/login", gin.H{"email": "root@x.com", "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, rootLogin.Code)
	adminAccess := rootLogin.cookie(httputil.AccessCookieName)

	forbidden := h.do(http.MethodPost, "/api/admin/users/"+victimID+"/revoke-sessions", nil, bystander.cookie(httputil.AccessCookieName))
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	res := h.do(http.MethodPost, "/api/admin/users/"+victimID+"/revoke-sessions", nil, adminAccess)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"revoked":1}`, res.Body.String())

	assert.Equal(t, http.StatusUnauthorized,
		h.do(http.MethodPost, "/api/auth/refresh", nil, victim.cookie(httputil.RefreshCookieName)).Code)
	assert.Equal(t, http.StatusOK,
		h.do(http.MethodPost, "/api/auth/refresh", nil, bystander.cookie(httputil.RefreshCookieName)).Code)
}

func TestHealth(t *testing.T) {
	res := newHarness(t).do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.body(t)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["environment"])

	down := newHarnessWithKV(t, brokenKV{memory.NewKV()}).do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, down.Code)
	assert.Equal(t, "unhealthy", down.body(t)["status"])
}

func TestNoRoute(t *testing.T) {
	res := newHarness(t).do(http.MethodGet, "/api/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.True(t, strings.Contains(res.Body.String(), "Route not found"))
}
