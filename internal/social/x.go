package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"newsdesk/internal/models"
	"newsdesk/pkg/clients"
)

// maxPostLength is the character budget for a standard X post.
const maxPostLength = 280

type XConfig struct {
	BearerToken string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// XPublisher creates posts through the X API v2.
type XPublisher struct {
	cfg      XConfig
	http     *http.Client
	executor failsafe.Executor[*http.Response]
}

func NewXPublisher(cfg XConfig) *XPublisher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryCfg := clients.DefaultHTTPExecutorConfig()
	retryCfg.MaxRetries = 2

	return &XPublisher{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: clients.DefaultTransport()},
		executor: clients.NewHTTPExecutor(retryCfg),
	}
}

func (p *XPublisher) Platform() models.Platform {
	return models.PlatformX
}

func (p *XPublisher) Publish(ctx context.Context, req PostRequest) (PostResult, error) {
	body, err := json.Marshal(map[string]string{"text": composePost(req)})
	if err != nil {
		return PostResult{}, fmt.Errorf("encode post payload: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, p.executor, func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/2/tweets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.BearerToken)
		httpReq.Header.Set("Content-Type", "application/json")
		return p.http.Do(httpReq)
	})
	if err != nil {
		return PostResult{}, fmt.Errorf("post to x: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PostResult{}, fmt.Errorf("read x response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return PostResult{}, fmt.Errorf("x api returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return PostResult{}, fmt.Errorf("decode x response: %w", err)
	}

	return PostResult{
		PostID: out.Data.ID,
		URL:    "https://x.com/i/web/status/" + out.Data.ID,
	}, nil
}

// composePost builds the post text from the title and image URL, truncated
// to the post budget.
func composePost(req PostRequest) string {
	text := req.Title
	if req.ImageURL != "" {
		text += "\n" + req.ImageURL
	}
	if len([]rune(text)) > maxPostLength {
		runes := []rune(text)
		text = string(runes[:maxPostLength-1]) + "…"
	}
	return text
}
