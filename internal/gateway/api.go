package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"newsdesk/internal/models"
	"newsdesk/internal/store"
	"newsdesk/internal/telegram"
	"newsdesk/pkg/middleware"
)

type ingestRequest struct {
	SourceRef string   `json:"source_ref" binding:"required"`
	Title     string   `json:"title" binding:"required"`
	Body      string   `json:"body"`
	MediaURL  string   `json:"media_url"`
	MediaType string   `json:"media_type"`
	Languages []string `json:"languages"`
}

// handleIngest accepts a scraped item, stores it and announces it in the
// moderation chat. Re-submitting the same source is a conflict, not a second
// item.
func (g *Gateway) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	languages := make([]models.Language, 0, len(req.Languages))
	for _, l := range req.Languages {
		lang := models.Language(l)
		if !models.KnownLanguage(lang) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown language " + l})
			return
		}
		languages = append(languages, lang)
	}
	if len(languages) == 0 {
		languages = models.DefaultLanguages
	}

	item, err := g.store.Create(c.Request.Context(), models.ContentItem{
		SourceRef: req.SourceRef,
		Title:     req.Title,
		Body:      req.Body,
		MediaURL:  req.MediaURL,
		MediaType: req.MediaType,
		Languages: languages,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateSource) {
			c.JSON(http.StatusConflict, gin.H{"error": "item already exists for this source"})
			return
		}
		middleware.GetContextLogger(c, g.logger).WithError(err).Error("Failed to create content item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create item"})
		return
	}

	g.announce(c, item)

	c.JSON(http.StatusCreated, gin.H{"id": item.ID})
}

// announce posts the moderation card for a new item. Chat delivery is best
// effort; the item exists either way and can be found through the API.
func (g *Gateway) announce(c *gin.Context, item models.ContentItem) {
	if g.telegram == nil || g.chatID == 0 {
		return
	}

	msg, err := g.telegram.SendMessage(c.Request.Context(), g.chatID,
		renderItemSummary(item),
		&telegram.MessageOptions{ReplyMarkup: moderationKeyboard(item.ID)})
	if err != nil {
		g.logger.WithError(err).WithField("content_id", item.ID).
			Error("Failed to announce item in moderation chat")
		return
	}

	ref := models.ChatRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}
	if err := g.store.SetChatRef(c.Request.Context(), item.ID, ref); err != nil {
		g.logger.WithError(err).WithField("content_id", item.ID).
			Warn("Failed to record moderation message for item")
	}
}

func (g *Gateway) handleListItems(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := g.store.List(c.Request.Context(), limit)
	if err != nil {
		middleware.GetContextLogger(c, g.logger).WithError(err).Error("Failed to list content items")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": itemViews(items)})
}

func (g *Gateway) handleGetItem(c *gin.Context) {
	item, err := g.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		g.logger.WithError(err).Error("Failed to load content item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}

	view := itemView(item)
	if g.ledger != nil {
		posts, err := g.ledger.ListForContent(c.Request.Context(), item.ID)
		if err != nil {
			// The item itself still renders; the post ledger is supplementary.
			middleware.GetContextLogger(c, g.logger).WithError(err).
				Warn("Failed to list post attempts for item")
		} else {
			view.Posts = postViews(posts)
		}
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) handleDeleteItem(c *gin.Context) {
	err := g.store.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
			return
		}
		g.logger.WithError(err).Error("Failed to delete content item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type itemResponse struct {
	ID               string            `json:"id"`
	SourceRef        string            `json:"source_ref"`
	Title            string            `json:"title"`
	ModerationStatus string            `json:"moderation_status"`
	PublishStatus    string            `json:"publish_status"`
	PublishError     string            `json:"publish_error,omitempty"`
	Languages        []string          `json:"languages"`
	SelectedVariant  string            `json:"selected_variant,omitempty"`
	Images           map[string]string `json:"images,omitempty"`
	CreatedAt        string            `json:"created_at"`
	Posts            []postResponse    `json:"posts,omitempty"`
}

// postResponse is one row of the social post ledger for an item.
type postResponse struct {
	Platform string `json:"platform"`
	Language string `json:"language"`
	Status   string `json:"status"`
	PostURL  string `json:"post_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

func postViews(posts []models.SocialPost) []postResponse {
	views := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		views = append(views, postResponse{
			Platform: string(p.Platform),
			Language: string(p.Language),
			Status:   string(p.Status),
			PostURL:  p.PlatformPostURL,
			Error:    p.Error,
		})
	}
	return views
}

func itemView(item models.ContentItem) itemResponse {
	langs := make([]string, 0, len(item.Languages))
	for _, l := range item.Languages {
		langs = append(langs, string(l))
	}
	return itemResponse{
		ID:               item.ID,
		SourceRef:        item.SourceRef,
		Title:            item.Title,
		ModerationStatus: string(item.ModerationStatus),
		PublishStatus:    string(item.PublishStatus),
		PublishError:     item.PublishError,
		Languages:        langs,
		SelectedVariant:  item.SelectedVariant,
		Images:           item.Images,
		CreatedAt:        item.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func itemViews(items []models.ContentItem) []itemResponse {
	views := make([]itemResponse, 0, len(items))
	for _, item := range items {
		views = append(views, itemView(item))
	}
	return views
}
