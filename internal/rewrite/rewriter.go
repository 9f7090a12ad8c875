package rewrite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"newsdesk/internal/models"
	"newsdesk/pkg/llm"
	"newsdesk/pkg/logging"
)

const rewriteTimeout = 45 * time.Second

const rewriteSystemPrompt = `You are an editor preparing scraped articles for publication.
Rewrite the article below in the requested language. Keep the facts, drop filler and scraping artifacts.
Respond with ONLY a JSON object of this exact shape, nothing else:
{"title": "...", "body": "...", "slug": "..."}
The slug is a short lowercase URL fragment with words joined by hyphens.`

type Config struct {
	LLM    llm.Provider
	Logger logging.Logger
}

// Rewriter turns raw scraped copy into publishable text, one language at a
// time. This is the only pipeline stage whose failure aborts publishing:
// without rewritten copy there is nothing to post.
type Rewriter struct {
	llm    llm.Provider
	logger logging.Logger
}

func NewRewriter(cfg Config) *Rewriter {
	return &Rewriter{
		llm:    cfg.LLM,
		logger: cfg.Logger,
	}
}

// Request carries the source copy plus the moderator's styling choices.
type Request struct {
	Title      string
	Body       string
	Language   models.Language
	Variant    string
	Selections map[string]string
}

func (r *Rewriter) Rewrite(ctx context.Context, req Request) (models.Translation, error) {
	if r.llm == nil {
		return models.Translation{}, errors.New("LLM provider not configured")
	}

	prompt := buildRewritePrompt(req)
	raw, err := r.generate(ctx, prompt)
	if err != nil {
		return models.Translation{}, fmt.Errorf("rewrite content: %w", err)
	}

	tr, err := parseTranslation(raw)
	if err == nil {
		return tr, nil
	}

	// One corrective round trip for malformed output before giving up.
	r.logger.WithError(err).WithField("language", string(req.Language)).
		Debug("Rewriter returned malformed JSON, retrying")
	raw, genErr := r.generate(ctx, prompt+"\n\nIMPORTANT: Your previous response was not valid JSON. Respond with only the JSON object.")
	if genErr != nil {
		return models.Translation{}, fmt.Errorf("rewrite content retry: %w", genErr)
	}
	tr, err = parseTranslation(raw)
	if err != nil {
		return models.Translation{}, fmt.Errorf("rewrite content: %w", err)
	}
	return tr, nil
}

func (r *Rewriter) generate(ctx context.Context, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, rewriteTimeout)
	defer cancel()

	stream, err := r.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: rewriteSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var content strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		content.WriteString(chunk.Content)
	}

	return strings.TrimSpace(content.String()), nil
}

func buildRewritePrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Target language: %s\n", req.Language)
	if req.Variant != "" {
		fmt.Fprintf(&b, "Style variant: %s\n", req.Variant)
	}
	for k, v := range req.Selections {
		fmt.Fprintf(&b, "Preference %s: %s\n", k, v)
	}
	fmt.Fprintf(&b, "\nTitle: %s\n\nArticle:\n%s\n", req.Title, req.Body)

	return b.String()
}

func parseTranslation(raw string) (models.Translation, error) {
	raw = stripCodeFence(raw)

	var tr models.Translation
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		return models.Translation{}, fmt.Errorf("decode rewrite output: %w", err)
	}
	if tr.Title == "" || tr.Body == "" {
		return models.Translation{}, errors.New("rewrite output missing title or body")
	}
	if tr.Slug == "" {
		tr.Slug = slugify(tr.Title)
	}
	return tr, nil
}

// stripCodeFence removes a surrounding markdown fence some models insist on
// wrapping JSON in.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteRune('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
