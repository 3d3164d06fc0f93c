package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamasit07/audio-translator/internal/domain"
	"github.com/iamasit07/audio-translator/pkg/auth"
)

// UserRepo is a development user store. Returned users are copies.
type UserRepo struct {
	mu         sync.RWMutex
	byID       map[string]*domain.User
	idByEmail  map[string]string
	bcryptCost int
}

func NewUserRepo(bcryptCost int) *UserRepo {
	return &UserRepo{
		byID:       make(map[string]*domain.User),
		idByEmail:  make(map[string]string),
		bcryptCost: bcryptCost,
	}
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *UserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(u), nil
}

// Create hashes password, assigns ID and timestamps, and fills defaults on user.
func (r *UserRepo) Create(_ context.Context, user *domain.User, password string) error {
	hash, err := auth.HashPassword(password, r.bcryptCost)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(user.Email)
	if _, exists := r.idByEmail[email]; exists {
		return domain.ErrDuplicateEmail
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Email = email
	user.PasswordHash = hash
	user.CreatedAt = now
	user.UpdatedAt = now
	applyDefaults(user)

	r.byID[user.ID] = clone(user)
	r.idByEmail[email] = user.ID
	return nil
}

func (r *UserRepo) Update(_ context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	var hash string
	if upd.Password != nil {
		h, err := auth.HashPassword(*upd.Password, r.bcryptCost)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PreferredSourceLanguage != nil {
		u.PreferredSourceLanguage = *upd.PreferredSourceLanguage
	}
	if upd.PreferredTargetLanguage != nil {
		u.PreferredTargetLanguage = *upd.PreferredTargetLanguage
	}
	if upd.Password != nil {
		u.PasswordHash = hash
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	if upd.LastLogin != nil {
		t := *upd.LastLogin
		u.LastLogin = &t
	}
	for p, envelope := range upd.APIKeys {
		if envelope == "" {
			delete(u.APIKeys, p)
			continue
		}
		if u.APIKeys == nil {
			u.APIKeys = make(map[domain.Provider]string)
		}
		u.APIKeys[p] = envelope
	}
	u.TranslationCount += upd.TranslationCountDelta
	u.UpdatedAt = time.Now().UTC()

	return clone(u), nil
}

func (r *UserRepo) ComparePassword(_ context.Context, user *domain.User, plain string) bool {
	return auth.CheckPasswordHash(plain, user.PasswordHash)
}

func applyDefaults(u *domain.User) {
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.PreferredSourceLanguage == "" {
		u.PreferredSourceLanguage = domain.DefaultSourceLanguage
	}
	if u.PreferredTargetLanguage == "" {
		u.PreferredTargetLanguage = domain.DefaultTargetLanguage
	}
	u.IsActive = true
}

func clone(u *domain.User) *domain.User {
	c := *u
	if u.APIKeys != nil {
		c.APIKeys = make(map[domain.Provider]string, len(u.APIKeys))
		for k, v := range u.APIKeys {
			c.APIKeys[k] = v
		}
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
