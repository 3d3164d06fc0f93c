package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, role, openai_api_key, groq_api_key,
	preferred_source_language, preferred_target_language, translation_count,
	is_active, last_login, created_at, updated_at`

var apiKeyColumns = map[domain.Provider]string{
	domain.ProviderOpenAI: "openai_api_key",
	domain.ProviderGroq:   "groq_api_key",
}

type UserRepo struct {
	DB         *sql.DB
	bcryptCost int
}

func NewUserRepo(db *sql.DB, bcryptCost int) *UserRepo {
	return &UserRepo{DB: db, bcryptCost: bcryptCost}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		openaiKey sql.NullString
		groqKey   sql.NullString
		lastLogin sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &openaiKey, &groqKey,
		&u.PreferredSourceLanguage, &u.PreferredTargetLanguage, &u.TranslationCount,
		&u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = domain.Role(role)
	if openaiKey.Valid && openaiKey.String != "" {
		u.APIKeys = map[domain.Provider]string{domain.ProviderOpenAI: openaiKey.String}
	}
	if groqKey.Valid && groqKey.String != "" {
		if u.APIKeys == nil {
			u.APIKeys = make(map[domain.Provider]string, 1)
		}
		u.APIKeys[domain.ProviderGroq] = groqKey.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (r *UserRepo) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = $1`
	return r.findOne(ctx, query, domain.NormalizeEmail(email))
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	// ids from other stores never match; avoid a cast error on the uuid column
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// Create hashes password, assigns the ID and fills server defaults back into user.
func (r *UserRepo) Create(ctx context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, r.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.PreferredSourceLanguage == "" {
		user.PreferredSourceLanguage = domain.DefaultSourceLanguage
	}
	if user.PreferredTargetLanguage == "" {
		user.PreferredTargetLanguage = domain.DefaultTargetLanguage
	}

	id := uuid.NewString()
	email := domain.NormalizeEmail(user.Email)

	query := `
	INSERT INTO users (id, name, email, password_hash, role, preferred_source_language, preferred_target_language)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING is_active, created_at, updated_at
	`
	err = r.DB.QueryRowContext(ctx, query,
		id, user.Name, email, hash, string(user.Role), user.PreferredSourceLanguage, user.PreferredTargetLanguage,
	).Scan(&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.ID = id
	user.Email = email
	user.PasswordHash = hash
	return nil
}

// Update applies the non-nil fields of upd in a single statement.
func (r *UserRepo) Update(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.PreferredSourceLanguage != nil {
		set("preferred_source_language", *upd.PreferredSourceLanguage)
	}
	if upd.PreferredTargetLanguage != nil {
		set("preferred_target_language", *upd.PreferredTargetLanguage)
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password, r.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		set("password_hash", hash)
	}
	if upd.IsActive != nil {
		set("is_active", *upd.IsActive)
	}
	if upd.LastLogin != nil {
		set("last_login", *upd.LastLogin)
	}
	for _, p := range domain.Providers {
		envelope, ok := upd.APIKeys[p]
		if !ok {
			continue
		}
		if envelope == "" {
			set(apiKeyColumns[p], nil)
		} else {
			set(apiKeyColumns[p], envelope)
		}
	}
	if upd.TranslationCountDelta != 0 {
		args = append(args, upd.TranslationCountDelta)
		sets = append(sets, fmt.Sprintf("translation_count = translation_count + $%d", len(args)))
	}

	if len(sets) == 0 {
		u, err := r.FindByID(ctx, id)
		if err == nil && u == nil {
			err = domain.ErrUserNotFound
		}
		return u, err
	}

	set("updated_at", time.Now().UTC())
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) ComparePassword(_ context.Context, user *domain.User, plain string) bool {
	return auth.CheckPasswordHash(plain, user.PasswordHash)
}
