package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iamasit07/audio-translator/internal/domain"
)

const translationColumns = `id, user_id, original_text, translated_text, source_language,
	detected_language, target_language, duration, input_type, provider, confidence, created_at`

type TranslationRepo struct {
	DB *sql.DB
}

func NewTranslationRepo(db *sql.DB) *TranslationRepo {
	return &TranslationRepo{DB: db}
}

func scanTranslation(row rowScanner) (domain.Translation, error) {
	var (
		t          domain.Translation
		detected   sql.NullString
		duration   sql.NullFloat64
		confidence sql.NullFloat64
		inputType  string
		provider   string
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.OriginalText, &t.TranslatedText, &t.SourceLanguage,
		&detected, &t.TargetLanguage, &duration, &inputType, &provider, &confidence, &t.CreatedAt,
	)
	if err != nil {
		return t, err
	}
	t.DetectedLanguage = detected.String
	t.InputType = domain.InputType(inputType)
	t.Provider = domain.Provider(provider)
	if duration.Valid {
		t.Duration = &duration.Float64
	}
	if confidence.Valid {
		t.Confidence = &confidence.Float64
	}
	return t, nil
}

func (r *TranslationRepo) Create(ctx context.Context, t *domain.Translation) error {
	id := uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	var detected sql.NullString
	if t.DetectedLanguage != "" {
		detected = sql.NullString{String: t.DetectedLanguage, Valid: true}
	}

	query := `
	INSERT INTO translations (` + translationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.DB.ExecContext(ctx, query,
		id, t.UserID, t.OriginalText, t.TranslatedText, t.SourceLanguage,
		detected, t.TargetLanguage, t.Duration, string(t.InputType), string(t.Provider), t.Confidence, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save translation: %w", err)
	}
	t.ID = id
	return nil
}

func (r *TranslationRepo) List(ctx context.Context, f domain.HistoryFilter) ([]domain.Translation, int, error) {
	if _, err := uuid.Parse(f.UserID); err != nil {
		return []domain.Translation{}, 0, nil
	}

	where := `user_id = $1`
	args := []any{f.UserID}
	if f.TargetLanguage != "" {
		args = append(args, f.TargetLanguage)
		where += ` AND target_language = $2`
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count translations: %w", err)
	}

	args = append(args, f.Limit, f.Offset())
	query := fmt.Sprintf(`SELECT %s FROM translations WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		translationColumns, where, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list translations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Translation, 0, f.Limit)
	for rows.Next() {
		t, err := scanTranslation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan translation: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list translations: %w", err)
	}
	return out, total, nil
}

// Delete removes the entry only when it belongs to userID.
func (r *TranslationRepo) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrTranslationNotFound
	}
	if _, err := uuid.Parse(userID); err != nil {
		return domain.ErrTranslationNotFound
	}

	res, err := r.DB.ExecContext(ctx, `DELETE FROM translations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}
	if n == 0 {
		return domain.ErrTranslationNotFound
	}
	return nil
}
