package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iamasit07/audio-translator/internal/domain"
)

// TranslationRepo is a development translation history store.
type TranslationRepo struct {
	mu    sync.RWMutex
	items []domain.Translation
}

func NewTranslationRepo() *TranslationRepo {
	return &TranslationRepo{}
}

// Create assigns the ID, and CreatedAt when unset.
func (r *TranslationRepo) Create(_ context.Context, t *domain.Translation) error {
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *t)
	return nil
}

func (r *TranslationRepo) List(_ context.Context, f domain.HistoryFilter) ([]domain.Translation, int, error) {
	r.mu.RLock()
	matched := make([]domain.Translation, 0)
	for _, t := range r.items {
		if t.UserID != f.UserID {
			continue
		}
		if f.TargetLanguage != "" && t.TargetLanguage != f.TargetLanguage {
			continue
		}
		matched = append(matched, t)
	}
	r.mu.RUnlock()

	// newest first; ties keep insertion order reversed
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b domain.Translation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return matched[start:end], total, nil
}

// Delete removes the entry only when it belongs to userID.
func (r *TranslationRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.items {
		if t.ID == id && t.UserID == userID {
			r.items = slices.Delete(r.items, i, i+1)
			return nil
		}
	}
	return domain.ErrTranslationNotFound
}
