package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"golang.org/x/sync/errgroup"

	"newsdesk/pkg/clients"
	"newsdesk/pkg/logging"
)

// AspectRatios are the rendition formats generated for every item: square
// for feeds, wide for link previews, tall for stories.
var AspectRatios = []string{"1:1", "16:9", "9:16"}

type Config struct {
	// BaseURL is the image generation service endpoint.
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  logging.Logger
}

// Generator renders promotional images through an external image API. Image
// generation is best effort: a failed rendition is skipped, never fatal.
type Generator struct {
	cfg      Config
	http     *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger
}

func NewGenerator(cfg Config) *Generator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	retryCfg := clients.DefaultHTTPExecutorConfig()
	retryCfg.MaxRetries = 1

	return &Generator{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: clients.DefaultTransport()},
		executor: clients.NewHTTPExecutor(retryCfg),
		logger:   cfg.Logger,
	}
}

// Generate renders all aspect ratios concurrently and returns whichever
// succeeded, keyed by ratio. An empty map with a nil error means the service
// produced nothing usable; the caller decides how much that matters.
func (g *Generator) Generate(ctx context.Context, prompt string) (map[string]string, error) {
	if g == nil || g.cfg.BaseURL == "" {
		return nil, errors.New("image generator not configured")
	}

	var mu sync.Mutex
	images := make(map[string]string)

	grp, grpCtx := errgroup.WithContext(ctx)
	for _, ratio := range AspectRatios {
		grp.Go(func() error {
			url, err := g.generateOne(grpCtx, prompt, ratio)
			if err != nil {
				// Partial output is fine. Log and move on.
				g.logger.WithError(err).WithField("aspect_ratio", ratio).
					Warn("Image rendition failed")
				return nil
			}
			mu.Lock()
			images[ratio] = url
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (g *Generator) generateOne(ctx context.Context, prompt, ratio string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"prompt":       prompt,
		"aspect_ratio": ratio,
	})
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, g.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/generate", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if g.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
		}
		return g.http.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("call image service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read image service response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image service returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode image service response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("image service returned no artifact URL")
	}
	return out.URL, nil
}
