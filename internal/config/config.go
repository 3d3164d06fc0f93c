package config

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultJWTSecret     = "your-secret-key-change-this-in-production"
	defaultEncryptionKey = "default_32_char_key_change_me!!"
)

type Config struct {
	Port           string
	Environment    string
	FrontendURL    string
	AllowedOrigins []string
	LogLevel       string

	// Tokens
	JWTAccessSecret  string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	MultiDeviceLogin bool

	// Cookies
	CookieSecure   bool
	CookieSameSite http.SameSite

	// Credential vault
	EncryptionKey string

	// Key-value store
	RedisAddr           string
	RedisUsername       string
	RedisPassword       string
	RedisDB             int
	RedisTLS            bool
	StoreTimeout        time.Duration
	MemorySweepInterval time.Duration

	// User store
	UserStore            string
	DatabaseURL          string
	DBMaxOpenConns       int
	DBMaxIdleConns       int
	DBConnMaxLifetimeMin int
	MongoURI             string
	MongoDatabase        string
	BcryptCost           int

	// Rate limiting
	RateLimitWindow  time.Duration
	RateLimitMax     int
	AuthRateLimitMax int

	// System provider keys, used when a user has none
	OpenAIAPIKey string
	GroqAPIKey   string

	redisURLErr error
}

func LoadConfig() *Config {
	env := GetEnv("NODE_ENV", GetEnv("ENVIRONMENT", "development"))
	isProduction := env == "production"

	// Frontend & CORS
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:3000")
	allowedOrigins := []string{frontendURL}
	if extra := GetEnv("ALLOWED_ORIGINS", ""); extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	// Cookie flags: production forces Secure and defaults to strict same-site
	cookieSecure := GetEnvAsBool("COOKIE_SECURE", false) || isProduction
	defaultSameSite := "lax"
	if isProduction {
		defaultSameSite = "strict"
	}
	sameSite := ParseSameSite(GetEnv("COOKIE_SAME_SITE", defaultSameSite))

	// Redis: REDIS_URL wins, then REDIS_HOST + REDIS_PORT
	redisCfg := redisSettings{
		Addr:     net.JoinHostPort(GetEnv("REDIS_HOST", "localhost"), GetEnv("REDIS_PORT", "6379")),
		Password: GetEnv("REDIS_PASSWORD", ""),
		DB:       GetEnvAsInt("REDIS_DB", 0),
	}
	redisURLErr := redisCfg.applyURL(GetEnv("REDIS_URL", ""))

	databaseURL := GetEnv("DATABASE_URL", GetEnv("DATABASE_URI", ""))
	mongoURI := GetEnv("MONGO_URI", GetEnv("MONGODB_URI", ""))

	return &Config{
		Port:           GetEnv("PORT", "5000"),
		Environment:    env,
		FrontendURL:    frontendURL,
		AllowedOrigins: allowedOrigins,
		LogLevel:       GetEnv("LOG_LEVEL", "info"),

		JWTAccessSecret:  GetEnv("JWT_ACCESS_SECRET", defaultJWTSecret),
		AccessTokenTTL:   GetEnvAsDuration("JWT_ACCESS_EXPIRES_IN", 15*time.Minute),
		RefreshTokenTTL:  time.Duration(GetEnvAsInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
		MultiDeviceLogin: GetEnvAsBool("MULTI_DEVICE_LOGIN", false),

		CookieSecure:   cookieSecure,
		CookieSameSite: sameSite,

		EncryptionKey: GetEnv("ENCRYPTION_KEY", defaultEncryptionKey),

		RedisAddr:           redisCfg.Addr,
		RedisUsername:       redisCfg.Username,
		RedisPassword:       redisCfg.Password,
		RedisDB:             redisCfg.DB,
		RedisTLS:            redisCfg.TLS,
		StoreTimeout:        time.Duration(GetEnvAsInt("STORE_TIMEOUT_MS", 3000)) * time.Millisecond,
		MemorySweepInterval: time.Duration(GetEnvAsInt("MEMORY_SWEEP_INTERVAL_MINUTES", 10)) * time.Minute,

		UserStore:            resolveUserStore(GetEnv("USER_STORE", ""), mongoURI, databaseURL),
		DatabaseURL:          databaseURL,
		DBMaxOpenConns:       GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:       GetEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetimeMin: GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5),
		MongoURI:             mongoURI,
		MongoDatabase:        GetEnv("MONGO_DATABASE", "audio_translator"),
		BcryptCost:           GetEnvAsInt("BCRYPT_COST", 12),

		RateLimitWindow:  time.Duration(GetEnvAsInt("RATE_LIMIT_WINDOW_MS", 15*60*1000)) * time.Millisecond,
		RateLimitMax:     GetEnvAsInt("RATE_LIMIT_MAX", 100),
		AuthRateLimitMax: GetEnvAsInt("AUTH_RATE_LIMIT_MAX", 10),

		OpenAIAPIKey: GetEnv("OPENAI_API_KEY", ""),
		GroqAPIKey:   GetEnv("GROQ_API_KEY", ""),

		redisURLErr: redisURLErr,
	}
}

type redisSettings struct {
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool
}

// applyURL accepts a bare host:port or a redis:// / rediss:// URL. Credentials
// and database in the URL replace REDIS_PASSWORD and REDIS_DB.
func (r *redisSettings) applyURL(raw string) error {
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		r.Addr = raw
		return nil
	}

	opts, err := redis.ParseURL(raw)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if opts.Network == "unix" {
		return errors.New("invalid REDIS_URL: unix sockets are not supported")
	}
	r.Addr = opts.Addr
	r.Username = opts.Username
	if opts.Password != "" {
		r.Password = opts.Password
	}
	r.DB = opts.DB
	r.TLS = opts.TLSConfig != nil
	return nil
}

// resolveUserStore picks the user store when USER_STORE is not set explicitly.
func resolveUserStore(explicit, mongoURI, databaseURL string) string {
	if explicit != "" {
		return strings.ToLower(explicit)
	}
	switch {
	case mongoURI != "":
		return "mongo"
	case databaseURL != "":
		return "postgres"
	default:
		return "memory"
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects settings that are only acceptable outside production.
func (c *Config) Validate() error {
	var errs []error

	if c.redisURLErr != nil {
		errs = append(errs, c.redisURLErr)
	}

	switch c.UserStore {
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("USER_STORE=postgres requires DATABASE_URL"))
		}
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("USER_STORE=mongo requires MONGO_URI"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown USER_STORE %q", c.UserStore))
	}

	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("JWT_ACCESS_EXPIRES_IN must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL_DAYS must be positive"))
	}

	if c.IsProduction() {
		if c.JWTAccessSecret == defaultJWTSecret {
			errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set in production"))
		}
		if c.EncryptionKey == defaultEncryptionKey {
			errs = append(errs, errors.New("ENCRYPTION_KEY must be set in production"))
		}
		if c.UserStore == "memory" {
			errs = append(errs, errors.New("in-memory user store is not allowed in production"))
		}
	}

	return errors.Join(errs...)
}

func ParseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsDuration accepts Go durations ("15m", "1h30m").
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
