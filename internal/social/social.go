package social

import (
	"context"
	"fmt"

	"newsdesk/internal/models"
)

// PostRequest is the per-target payload handed to a publisher: the copy for
// one language plus the best image the pipeline produced.
type PostRequest struct {
	ContentID string
	Language  models.Language
	Title     string
	Body      string
	Slug      string
	ImageURL  string
}

// PostResult identifies the post a publisher created.
type PostResult struct {
	PostID string
	URL    string
}

// Publisher posts one piece of content to one platform. Implementations are
// thin transport wrappers; retries, claims and bookkeeping live with the
// caller.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, req PostRequest) (PostResult, error)
}

// Registry holds the configured publishers keyed by platform.
type Registry struct {
	publishers map[models.Platform]Publisher
	order      []models.Platform
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[models.Platform]Publisher)}
	for _, p := range publishers {
		if _, dup := r.publishers[p.Platform()]; dup {
			continue
		}
		r.publishers[p.Platform()] = p
		r.order = append(r.order, p.Platform())
	}
	return r
}

func (r *Registry) Get(platform models.Platform) (Publisher, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("no publisher configured for platform %q", platform)
	}
	return p, nil
}

// Platforms lists configured platforms in registration order.
func (r *Registry) Platforms() []models.Platform {
	return r.order
}
