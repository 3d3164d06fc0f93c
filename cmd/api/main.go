package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/audio-translator/internal/config"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/internal/logging"
	"github.com/iamasit07/audio-translator/internal/repository/memory"
	mongorepo "github.com/iamasit07/audio-translator/internal/repository/mongo"
	"github.com/iamasit07/audio-translator/internal/repository/postgres"
	redisrepo "github.com/iamasit07/audio-translator/internal/repository/redis"
	"github.com/iamasit07/audio-translator/internal/service/account"
	"github.com/iamasit07/audio-translator/internal/service/cleanup"
	"github.com/iamasit07/audio-translator/internal/service/provider"
	"github.com/iamasit07/audio-translator/internal/service/session"
	"github.com/iamasit07/audio-translator/internal/service/translation"
	transportHttp "github.com/iamasit07/audio-translator/internal/transport/http"
	"github.com/iamasit07/audio-translator/internal/transport/http/middleware"
	"github.com/iamasit07/audio-translator/internal/transport/websocket"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"github.com/iamasit07/audio-translator/pkg/httputil"
	"github.com/iamasit07/audio-translator/pkg/vault"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found")
		}
	}

	cfg := config.LoadConfig()
	logger := logging.New(cfg.Environment, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	group, ctx := errgroup.WithContext(ctx)

	// 1. Refresh token store
	kv, closeKV, err := openTokenStore(ctx, cfg, logger, group)
	if err != nil {
		return err
	}
	defer closeKV()

	// 2. User and history stores
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()
	users := st.users

	// 3. Services
	secrets, err := vault.New(cfg.EncryptionKey, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}
	codec := auth.NewCodec(cfg.JWTAccessSecret, cfg.AccessTokenTTL)
	tokens := session.NewTokenStore(kv, cfg.StoreTimeout, logger)
	sessions := session.NewService(users, tokens, codec, session.Options{
		RefreshTTL:  cfg.RefreshTokenTTL,
		MultiDevice: cfg.MultiDeviceLogin,
	}, logger)

	connManager := websocket.NewConnectionManager()
	sessions.SetDisconnector(connManager)

	resolver := provider.NewResolver(secrets, map[domain.Provider]string{
		domain.ProviderOpenAI: cfg.OpenAIAPIKey,
		domain.ProviderGroq:   cfg.GroqAPIKey,
	}, logger)
	checker := provider.NewKeyChecker(nil, logger)
	accounts := account.NewService(users, sessions, secrets, checker, logger)
	translations := translation.NewService(st.translations, users, resolver, provider.NewChatTranslator(nil, logger), logger)

	// 4. Transport
	cookies := httputil.CookieConfig{
		Secure:     cfg.CookieSecure,
		SameSite:   cfg.CookieSameSite,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	}
	gate := middleware.NewGate(codec, users, cfg.StoreTimeout, logger)
	wsHandler := websocket.NewHandler(connManager, gate, cfg.AllowedOrigins, logger)

	router := transportHttp.NewRouter(transportHttp.RouterConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		Production:       cfg.IsProduction(),
		RateLimitWindow:  cfg.RateLimitWindow,
		RateLimitMax:     cfg.RateLimitMax,
		AuthRateLimitMax: cfg.AuthRateLimitMax,
	}, gate, transportHttp.Handlers{
		Auth:        transportHttp.NewAuthHandler(sessions, cookies, logger),
		User:        transportHttp.NewUserHandler(accounts, resolver, cookies, logger),
		Admin:       transportHttp.NewAdminHandler(sessions, logger),
		Translation: transportHttp.NewTranslationHandler(translations, logger),
		Health:      transportHttp.NewHealthHandler(tokens, cfg.Environment, logger),
		WebSocket:   wsHandler.HandleWebSocket,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return group.Wait()
}

// openTokenStore prefers redis. Outside production an unreachable redis falls
// back to the in-process store, pruned by the cleanup worker.
func openTokenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, group *errgroup.Group) (session.KeyValueStore, func(), error) {
	client, err := redisrepo.Connect(ctx, redisrepo.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TLS:      cfg.RedisTLS,
		Retries:  3,
	})
	if err == nil {
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
		store := redisrepo.NewStore(client, logger)
		return store, func() { _ = store.Close() }, nil
	}

	if cfg.IsProduction() {
		return nil, nil, fmt.Errorf("redis is required in production: %w", err)
	}

	logger.Warn("redis unavailable, using in-memory token store", "addr", cfg.RedisAddr, "error", err)
	kv := memory.NewKV()
	worker := cleanup.NewWorker(kv, cfg.MemorySweepInterval, clockwork.NewRealClock(), logger)
	group.Go(func() error { return worker.Run(ctx) })
	return kv, func() {}, nil
}

type stores struct {
	users        session.UserRepository
	translations translation.Repository
	close        func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.UserStore {
	case "postgres":
		db, err := postgres.Open(ctx, postgres.Options{
			URL:                cfg.DatabaseURL,
			MaxOpenConns:       cfg.DBMaxOpenConns,
			MaxIdleConns:       cfg.DBMaxIdleConns,
			ConnMaxLifetimeMin: cfg.DBConnMaxLifetimeMin,
			Retries:            5,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("database migration completed successfully")
		return &stores{
			users:        postgres.NewUserRepo(db, cfg.BcryptCost),
			translations: postgres.NewTranslationRepo(db),
			close:        func() { _ = db.Close() },
		}, nil

	case "mongo":
		client, err := mongorepo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		disconnect := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}
		db := client.Database(cfg.MongoDatabase)
		users, err := mongorepo.NewUserRepo(ctx, db, cfg.BcryptCost)
		if err != nil {
			disconnect()
			return nil, err
		}
		history, err := mongorepo.NewTranslationRepo(ctx, db)
		if err != nil {
			disconnect()
			return nil, err
		}
		logger.Info("connected to mongo", "database", cfg.MongoDatabase)
		return &stores{users: users, translations: history, close: disconnect}, nil

	default:
		logger.Warn("using in-memory stores, accounts and history are lost on restart")
		return &stores{
			users:        memory.NewUserRepo(cfg.BcryptCost),
			translations: memory.NewTranslationRepo(),
			close:        func() {},
		}, nil
	}
}
