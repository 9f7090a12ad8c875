package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"newsdesk/internal/models"
)

var (
	// ErrNotFound is returned when no content item matches the given ID.
	ErrNotFound = errors.New("content item not found")
	// ErrDuplicateSource is returned when a live item already exists for the
	// same source identity.
	ErrDuplicateSource = errors.New("content item already exists for source")
	// ErrInvalidTransition is returned when a publish status update would
	// move the item backwards or skip a stage.
	ErrInvalidTransition = errors.New("publish status transition not allowed")
)

// ContentStore is the shared record of content item state. All pipeline
// coordination is expressed as conditional updates against it.
type ContentStore interface {
	Create(ctx context.Context, item models.ContentItem) (models.ContentItem, error)
	Get(ctx context.Context, id string) (models.ContentItem, error)
	List(ctx context.Context, limit int) ([]models.ContentItem, error)
	Delete(ctx context.Context, id string) error

	SetModerationStatus(ctx context.Context, id string, status models.ModerationStatus) error
	PublishStatus(ctx context.Context, id string) (models.PublishStatus, error)
	AdvancePublishStatus(ctx context.Context, id string, to models.PublishStatus) error
	MarkPublishFailed(ctx context.Context, id, errText string) error

	SetSelectedVariant(ctx context.Context, id, variant string) error
	SetBuilderSelection(ctx context.Context, id, key, value string) error
	ToggleLanguage(ctx context.Context, id string, lang models.Language) (bool, error)
	SaveTranslation(ctx context.Context, id string, lang models.Language, tr models.Translation) error
	SaveImages(ctx context.Context, id string, images map[string]string) error
	SetChatRef(ctx context.Context, id string, ref models.ChatRef) error
}

type SQLContentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) *SQLContentStore {
	return &SQLContentStore{db: db}
}

const contentColumns = `id, source_ref, title, body, media_url, media_type,
		moderation_status, publish_status, publish_error,
		languages, selected_variant, builder_selections, translations, images,
		chat_id, message_id, enqueued_at, created_at, updated_at`

func (s *SQLContentStore) Create(ctx context.Context, item models.ContentItem) (models.ContentItem, error) {
	if s == nil || s.db == nil {
		return models.ContentItem{}, errors.New("content store unavailable")
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ModerationStatus == "" {
		item.ModerationStatus = models.ModerationPending
	}
	if item.PublishStatus == "" {
		item.PublishStatus = models.PublishNone
	}

	langs := make([]string, 0, len(item.Languages))
	for _, l := range item.Languages {
		langs = append(langs, string(l))
	}

	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO herald.content_items (
			id, source_ref, title, body, media_url, media_type,
			moderation_status, publish_status, languages,
			chat_id, message_id, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at
	`,
		item.ID,
		item.SourceRef,
		item.Title,
		item.Body,
		item.MediaURL,
		item.MediaType,
		string(item.ModerationStatus),
		string(item.PublishStatus),
		pq.Array(langs),
		item.Chat.ChatID,
		item.Chat.MessageID,
	).Scan(&createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ContentItem{}, ErrDuplicateSource
		}
		return models.ContentItem{}, fmt.Errorf("insert content item: %w", err)
	}

	item.CreatedAt = createdAt
	item.UpdatedAt = createdAt
	return item, nil
}

func (s *SQLContentStore) Get(ctx context.Context, id string) (models.ContentItem, error) {
	if s == nil || s.db == nil {
		return models.ContentItem{}, errors.New("content store unavailable")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+`
		FROM herald.content_items
		WHERE id = $1
	`, id)

	item, err := scanContentItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ContentItem{}, ErrNotFound
	}
	if err != nil {
		return models.ContentItem{}, err
	}
	return item, nil
}

func (s *SQLContentStore) List(ctx context.Context, limit int) ([]models.ContentItem, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("content store unavailable")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM herald.content_items
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content items: %w", err)
	}
	return items, nil
}

func (s *SQLContentStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("content store unavailable")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM herald.content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete content item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLContentStore) SetModerationStatus(ctx context.Context, id string, status models.ModerationStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET moderation_status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("set moderation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLContentStore) PublishStatus(ctx context.Context, id string) (models.PublishStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT publish_status FROM herald.content_items WHERE id = $1`, id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read publish status: %w", err)
	}
	return models.PublishStatus(status), nil
}

// AdvancePublishStatus moves the item into to, but only if its current
// status is a legal predecessor. The condition lives in the UPDATE itself so
// concurrent callers cannot both advance the same item.
func (s *SQLContentStore) AdvancePublishStatus(ctx context.Context, id string, to models.PublishStatus) error {
	preds := models.AllowedPredecessors(to)
	if len(preds) == 0 {
		return ErrInvalidTransition
	}
	from := make([]string, 0, len(preds))
	for _, p := range preds {
		from = append(from, string(p))
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET publish_status = $2, publish_error = '', updated_at = NOW()
		WHERE id = $1 AND publish_status = ANY($3)
	`, id, string(to), pq.Array(from))
	if err != nil {
		return fmt.Errorf("advance publish status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := s.PublishStatus(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

func (s *SQLContentStore) MarkPublishFailed(ctx context.Context, id, errText string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET publish_status = $2, publish_error = $3, updated_at = NOW()
		WHERE id = $1 AND publish_status NOT IN ($4, $5)
	`, id, string(models.PublishFailed), errText,
		string(models.PublishCompleted), string(models.PublishFailed))
	if err != nil {
		return fmt.Errorf("mark publish failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := s.PublishStatus(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

func (s *SQLContentStore) SetSelectedVariant(ctx context.Context, id, variant string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET selected_variant = $2, updated_at = NOW()
		WHERE id = $1
	`, id, variant)
	if err != nil {
		return fmt.Errorf("set selected variant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLContentStore) SetBuilderSelection(ctx context.Context, id, key, value string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET builder_selections = jsonb_set(builder_selections, ARRAY[$2], to_jsonb($3::text)),
			updated_at = NOW()
		WHERE id = $1
	`, id, key, value)
	if err != nil {
		return fmt.Errorf("set builder selection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleLanguage adds lang to the item's target set, or removes it if already
// present. Returns whether the language is enabled after the toggle.
func (s *SQLContentStore) ToggleLanguage(ctx context.Context, id string, lang models.Language) (bool, error) {
	var enabled bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE herald.content_items
		SET languages = CASE
				WHEN $2 = ANY(languages) THEN array_remove(languages, $2)
				ELSE array_append(languages, $2)
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING $2 = ANY(languages)
	`, id, string(lang)).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle language: %w", err)
	}
	return enabled, nil
}

func (s *SQLContentStore) SaveTranslation(ctx context.Context, id string, lang models.Language, tr models.Translation) error {
	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("encode translation: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET translations = jsonb_set(translations, ARRAY[$2], $3::jsonb),
			updated_at = NOW()
		WHERE id = $1
	`, id, string(lang), payload)
	if err != nil {
		return fmt.Errorf("save translation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLContentStore) SaveImages(ctx context.Context, id string, images map[string]string) error {
	payload, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encode images: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET images = images || $2::jsonb, updated_at = NOW()
		WHERE id = $1
	`, id, payload)
	if err != nil {
		return fmt.Errorf("save images: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLContentStore) SetChatRef(ctx context.Context, id string, ref models.ChatRef) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE herald.content_items
		SET chat_id = $2, message_id = $3, updated_at = NOW()
		WHERE id = $1
	`, id, ref.ChatID, ref.MessageID)
	if err != nil {
		return fmt.Errorf("set chat ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentItem(r rowScanner) (models.ContentItem, error) {
	var item models.ContentItem
	var moderation, publish string
	var langs []string
	var selectionsJSON, translationsJSON, imagesJSON []byte
	var enqueuedAt sql.NullTime

	if err := r.Scan(
		&item.ID,
		&item.SourceRef,
		&item.Title,
		&item.Body,
		&item.MediaURL,
		&item.MediaType,
		&moderation,
		&publish,
		&item.PublishError,
		pq.Array(&langs),
		&item.SelectedVariant,
		&selectionsJSON,
		&translationsJSON,
		&imagesJSON,
		&item.Chat.ChatID,
		&item.Chat.MessageID,
		&enqueuedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ContentItem{}, err
		}
		return models.ContentItem{}, fmt.Errorf("scan content item: %w", err)
	}

	item.ModerationStatus = models.ModerationStatus(moderation)
	item.PublishStatus = models.PublishStatus(publish)
	for _, l := range langs {
		item.Languages = append(item.Languages, models.Language(l))
	}
	if enqueuedAt.Valid {
		t := enqueuedAt.Time
		item.EnqueuedAt = &t
	}
	if len(selectionsJSON) > 0 {
		if err := json.Unmarshal(selectionsJSON, &item.BuilderSelections); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode builder selections: %w", err)
		}
	}
	if len(translationsJSON) > 0 {
		if err := json.Unmarshal(translationsJSON, &item.Translations); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode translations: %w", err)
		}
	}
	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &item.Images); err != nil {
			return models.ContentItem{}, fmt.Errorf("decode images: %w", err)
		}
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
