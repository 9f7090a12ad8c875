package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"newsdesk/internal/models"
)

// StaleClaimWindow is how long a pending claim may sit before the next
// observer expires it. A crashed worker must not block its target forever.
const StaleClaimWindow = 10 * time.Minute

// TargetStatus is the observed state of one (content, platform, language)
// posting target.
type TargetStatus struct {
	// State is empty when no live attempt exists (not started, or a prior
	// attempt failed and may be retried).
	State models.SocialPostStatus
	URL   string
}

// NotStarted reports whether the target has no live attempt.
func (s TargetStatus) NotStarted() bool {
	return s.State == ""
}

// ClaimResult is the outcome of an attempt to own a posting target.
type ClaimResult struct {
	Claimed  bool
	Existing TargetStatus
}

// Ledger records one row per post attempt and arbitrates concurrent
// attempts on the same target. Claims are decided by the store's unique
// index, not by an application-level read-then-write.
type Ledger interface {
	CheckStatus(ctx context.Context, contentID string, platform models.Platform, lang models.Language) (TargetStatus, error)
	Claim(ctx context.Context, contentID string, platform models.Platform, lang models.Language) (ClaimResult, error)
	Resolve(ctx context.Context, contentID string, platform models.Platform, lang models.Language, outcome Outcome) error
	ListForContent(ctx context.Context, contentID string) ([]models.SocialPost, error)
}

// Outcome is the normalized result of a real post attempt.
type Outcome struct {
	Success bool
	PostID  string
	PostURL string
	Error   string
}

type SQLLedger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// expireStale flips pending rows older than the staleness window to failed.
// Run by every observer before it reads or claims, so a crashed worker's
// claim self-heals on the next attempt.
func (l *SQLLedger) expireStale(ctx context.Context, contentID string, platform models.Platform, lang models.Language) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE herald.social_posts
		SET status = $5, error = 'claim expired', updated_at = NOW()
		WHERE content_id = $1 AND platform = $2 AND language = $3
			AND status = $4 AND created_at < NOW() - INTERVAL '10 minutes'
	`, contentID, string(platform), string(lang),
		string(models.SocialPostPending), string(models.SocialPostFailed))
	if err != nil {
		return fmt.Errorf("expire stale claims: %w", err)
	}
	return nil
}

func (l *SQLLedger) CheckStatus(ctx context.Context, contentID string, platform models.Platform, lang models.Language) (TargetStatus, error) {
	if l == nil || l.db == nil {
		return TargetStatus{}, errors.New("social post ledger unavailable")
	}

	if err := l.expireStale(ctx, contentID, platform, lang); err != nil {
		return TargetStatus{}, err
	}

	var status, url string
	err := l.db.QueryRowContext(ctx, `
		SELECT status, platform_post_url
		FROM herald.social_posts
		WHERE content_id = $1 AND platform = $2 AND language = $3
			AND status IN ($4, $5)
	`, contentID, string(platform), string(lang),
		string(models.SocialPostPending), string(models.SocialPostPosted),
	).Scan(&status, &url)
	if errors.Is(err, sql.ErrNoRows) {
		return TargetStatus{}, nil
	}
	if err != nil {
		return TargetStatus{}, fmt.Errorf("check post status: %w", err)
	}
	return TargetStatus{State: models.SocialPostStatus(status), URL: url}, nil
}

// Claim inserts a pending row for the target, or reports the live attempt
// that already owns it. Exactly one of two concurrent claims wins; the
// unique index makes the decision.
func (l *SQLLedger) Claim(ctx context.Context, contentID string, platform models.Platform, lang models.Language) (ClaimResult, error) {
	if l == nil || l.db == nil {
		return ClaimResult{}, errors.New("social post ledger unavailable")
	}

	if err := l.expireStale(ctx, contentID, platform, lang); err != nil {
		return ClaimResult{}, err
	}

	var id string
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO herald.social_posts (id, content_id, platform, language, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (content_id, platform, language) WHERE status IN ('pending', 'posted')
		DO NOTHING
		RETURNING id
	`, uuid.NewString(), contentID, string(platform), string(lang),
		string(models.SocialPostPending),
	).Scan(&id)
	if err == nil {
		return ClaimResult{Claimed: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ClaimResult{}, fmt.Errorf("claim posting target: %w", err)
	}

	// Lost the race, or an attempt already exists. Report who owns it.
	existing, err := l.CheckStatus(ctx, contentID, platform, lang)
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Claimed: false, Existing: existing}, nil
}

func (l *SQLLedger) Resolve(ctx context.Context, contentID string, platform models.Platform, lang models.Language, outcome Outcome) error {
	if l == nil || l.db == nil {
		return errors.New("social post ledger unavailable")
	}

	status := models.SocialPostFailed
	if outcome.Success {
		status = models.SocialPostPosted
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE herald.social_posts
		SET status = $4, platform_post_id = $5, platform_post_url = $6, error = $7, updated_at = NOW()
		WHERE content_id = $1 AND platform = $2 AND language = $3 AND status = $8
	`, contentID, string(platform), string(lang),
		string(status), outcome.PostID, outcome.PostURL, outcome.Error,
		string(models.SocialPostPending))
	if err != nil {
		return fmt.Errorf("resolve posting target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("resolve posting target: no pending claim for %s/%s/%s", contentID, platform, lang)
	}
	return nil
}

func (l *SQLLedger) ListForContent(ctx context.Context, contentID string) ([]models.SocialPost, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("social post ledger unavailable")
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, content_id, platform, language, status,
			platform_post_id, platform_post_url, error, created_at, updated_at
		FROM herald.social_posts
		WHERE content_id = $1
		ORDER BY platform, language
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list posts for content: %w", err)
	}
	defer rows.Close()

	var posts []models.SocialPost
	for rows.Next() {
		var p models.SocialPost
		var platform, lang, status string
		if err := rows.Scan(
			&p.ID, &p.ContentID, &platform, &lang, &status,
			&p.PlatformPostID, &p.PlatformPostURL, &p.Error, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan social post: %w", err)
		}
		p.Platform = models.Platform(platform)
		p.Language = models.Language(lang)
		p.Status = models.SocialPostStatus(status)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate social posts: %w", err)
	}
	return posts, nil
}
