package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"newsdesk/internal/ledger"
	"newsdesk/internal/models"
	"newsdesk/internal/store"
	"newsdesk/internal/telegram"
	"newsdesk/internal/worker"
	"newsdesk/pkg/cache"
	"newsdesk/pkg/logging"
	"newsdesk/pkg/middleware"
)

// WebhookSecretHeader is the header Telegram echoes the configured webhook
// secret in.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const (
	updateDedupTTL = 10 * time.Minute
	refreshDelay   = 300 * time.Millisecond
	ackTimeout     = 5 * time.Second
)

// Enqueuer admits items into the sequential publish queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, contentID string) error
}

type Config struct {
	Store      store.ContentStore
	Queue      Enqueuer
	Dispatcher worker.Dispatcher
	Telegram   *telegram.Client
	Scheduler  *Scheduler
	Updates    *cache.Cache
	// Ledger, when set, lets item reads include per-target post attempts.
	Ledger ledger.Ledger
	Logger logging.Logger
	// ModerationChatID is where freshly ingested items are announced.
	ModerationChatID int64
	// WebhookSecret authenticates incoming webhook calls.
	WebhookSecret string
	// ServiceToken, when set, is required as a bearer token on /api routes.
	ServiceToken string
}

// Gateway is the moderation surface: the Telegram webhook plus a small REST
// API for the scraper and for operators.
type Gateway struct {
	store      store.ContentStore
	queue      Enqueuer
	dispatcher worker.Dispatcher
	telegram   *telegram.Client
	scheduler  *Scheduler
	updates    *cache.Cache
	ledger     ledger.Ledger
	logger     logging.Logger
	chatID     int64
	secret     string
	apiToken   string
}

func NewGateway(cfg Config) *Gateway {
	return &Gateway{
		store:      cfg.Store,
		queue:      cfg.Queue,
		dispatcher: cfg.Dispatcher,
		telegram:   cfg.Telegram,
		scheduler:  cfg.Scheduler,
		updates:    cfg.Updates,
		ledger:     cfg.Ledger,
		logger:     cfg.Logger,
		chatID:     cfg.ModerationChatID,
		secret:     cfg.WebhookSecret,
		apiToken:   cfg.ServiceToken,
	}
}

func (g *Gateway) RegisterRoutes(router *gin.Engine) {
	router.POST("/telegram/webhook",
		middleware.WebhookSecretMiddleware(WebhookSecretHeader, g.secret),
		g.handleWebhook)

	api := router.Group("/api")
	if g.apiToken != "" {
		api.Use(middleware.ServiceAuthMiddleware(g.apiToken))
	}
	{
		api.POST("/items", g.handleIngest)
		api.GET("/items", g.handleListItems)
		api.GET("/items/:id", g.handleGetItem)
		api.DELETE("/items/:id", g.handleDeleteItem)
	}
}

// Webhook payload shapes. Only messages and callback queries matter; every
// other update kind is acknowledged and ignored.
type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *incomingMsg   `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type incomingMsg struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

type callbackQuery struct {
	ID      string       `json:"id"`
	Data    string       `json:"data"`
	Message *incomingMsg `json:"message"`
}

// handleWebhook is the single entry point for Telegram. Malformed bodies get
// a 400; everything else is answered 200 immediately, with real work pushed
// off the request path. Telegram retries non-200 responses, so a processing
// failure must never surface as one.
func (g *Gateway) handleWebhook(c *gin.Context) {
	var upd update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	if g.seenUpdate(upd.UpdateID) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	switch {
	case upd.CallbackQuery != nil:
		g.handleCallback(c.Request.Context(), upd.CallbackQuery)
		c.JSON(http.StatusOK, gin.H{"status": "handled"})
	case upd.Message != nil:
		g.handleMessage(c.Request.Context(), upd.Message)
		c.JSON(http.StatusOK, gin.H{"status": "handled"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

// seenUpdate reports whether this update ID was already processed, and marks
// it. Telegram redelivers updates on slow responses; the work behind a
// button press must run once.
func (g *Gateway) seenUpdate(updateID int64) bool {
	if g.updates == nil || updateID == 0 {
		return false
	}

	key := "update:" + strconv.FormatInt(updateID, 10)
	if _, seen := g.updates.Peek(key); seen {
		return true
	}
	g.updates.Set(key, struct{}{}, updateDedupTTL)
	return false
}

func (g *Gateway) handleMessage(ctx context.Context, msg *incomingMsg) {
	// Plain chat messages carry no moderation commands today. Logged for
	// visibility, nothing else.
	g.logger.WithFields(logrus.Fields{
		"chat_id": msg.Chat.ID,
		"text":    msg.Text,
	}).Debug("Ignoring non-callback message")
}

func (g *Gateway) handleCallback(ctx context.Context, cb *callbackQuery) {
	action, err := DecodeAction(cb.Data)
	if err != nil {
		g.logger.WithError(err).Warn("Undecodable callback data")
		g.answer(ctx, cb.ID, "Unknown action")
		return
	}

	ref := models.ChatRef{}
	if cb.Message != nil {
		ref = models.ChatRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.MessageID}
	}

	switch a := action.(type) {
	case ApproveAction:
		g.setModeration(ctx, cb, a.ContentID, ref, models.ModerationApproved, "Approved")
	case RejectAction:
		g.setModeration(ctx, cb, a.ContentID, ref, models.ModerationRejected, "Rejected")
	case PublishAction:
		g.startPublish(ctx, cb, a.ContentID, ref)
	case ToggleLanguageAction:
		if _, err := g.store.ToggleLanguage(ctx, a.ContentID, a.Language); err != nil {
			g.answerError(ctx, cb.ID, err)
			return
		}
		g.answer(ctx, cb.ID, "")
		g.scheduleRefresh(a.ContentID, ref, screenMain)
	case SelectVariantAction:
		if err := g.store.SetSelectedVariant(ctx, a.ContentID, a.Variant); err != nil {
			g.answerError(ctx, cb.ID, err)
			return
		}
		g.answer(ctx, cb.ID, "")
		g.scheduleRefresh(a.ContentID, ref, screenBuilder)
	case BuilderSelectAction:
		if err := g.store.SetBuilderSelection(ctx, a.ContentID, a.Key, a.Value); err != nil {
			g.answerError(ctx, cb.ID, err)
			return
		}
		g.answer(ctx, cb.ID, "")
		g.scheduleRefresh(a.ContentID, ref, screenBuilder)
	case OpenBuilderAction:
		g.answer(ctx, cb.ID, "")
		g.scheduleRefresh(a.ContentID, ref, screenBuilder)
	case BackAction:
		g.answer(ctx, cb.ID, "")
		g.scheduleRefresh(a.ContentID, ref, screenMain)
	}
}

func (g *Gateway) setModeration(ctx context.Context, cb *callbackQuery, contentID string, ref models.ChatRef, status models.ModerationStatus, ack string) {
	if err := g.store.SetModerationStatus(ctx, contentID, status); err != nil {
		g.answerError(ctx, cb.ID, err)
		return
	}
	g.answer(ctx, cb.ID, ack)
	g.scheduleRefresh(contentID, ref, screenMain)
}

// startPublish guards against double triggers with a fresh status read, then
// enqueues and hands off. The callback is acknowledged before the pipeline
// does anything.
func (g *Gateway) startPublish(ctx context.Context, cb *callbackQuery, contentID string, ref models.ChatRef) {
	status, err := g.store.PublishStatus(ctx, contentID)
	if err != nil {
		g.answerError(ctx, cb.ID, err)
		return
	}
	switch {
	case status == models.PublishCompleted:
		g.answer(ctx, cb.ID, "Already published")
		return
	case status == models.PublishQueued || status.InFlight():
		g.answer(ctx, cb.ID, "Publishing is already in progress")
		return
	}

	if ref.Valid() {
		if err := g.store.SetChatRef(ctx, contentID, ref); err != nil {
			g.logger.WithError(err).WithField("content_id", contentID).
				Warn("Failed to record moderation message for reports")
		}
	}

	if err := g.queue.Enqueue(ctx, contentID); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) {
			g.answer(ctx, cb.ID, "Publishing is already in progress")
			return
		}
		g.answerError(ctx, cb.ID, err)
		return
	}

	g.answer(ctx, cb.ID, "Queued for publishing")
	g.scheduleRefresh(contentID, ref, screenMain)

	if err := g.dispatcher.Dispatch(ctx, worker.Task{
		TaskID: fmt.Sprintf("kick-%s", contentID),
		Action: worker.ActionKickQueue,
	}); err != nil {
		g.logger.WithError(err).Error("Failed to dispatch queue kick")
	}
}

func (g *Gateway) answer(ctx context.Context, callbackID, text string) {
	ctx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()

	if err := g.telegram.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		g.logger.WithError(err).Warn("Failed to answer callback query")
	}
}

func (g *Gateway) answerError(ctx context.Context, callbackID string, err error) {
	g.logger.WithError(err).Warn("Callback action failed")
	switch {
	case errors.Is(err, store.ErrNotFound):
		g.answer(ctx, callbackID, "This item no longer exists")
	default:
		g.answer(ctx, callbackID, "Something went wrong, try again")
	}
}

type screen string

const (
	screenMain    screen = "main"
	screenBuilder screen = "builder"
)

// scheduleRefresh re-renders the item's moderation message shortly after the
// last press. Keyed per message so rapid presses collapse into one edit.
func (g *Gateway) scheduleRefresh(contentID string, ref models.ChatRef, scr screen) {
	if !ref.Valid() || g.scheduler == nil {
		return
	}

	key := fmt.Sprintf("refresh:%d:%d", ref.ChatID, ref.MessageID)
	g.scheduler.Schedule(key, refreshDelay, func(ctx context.Context) {
		item, err := g.store.Get(ctx, contentID)
		if err != nil {
			g.logger.WithError(err).WithField("content_id", contentID).
				Warn("Cannot refresh moderation screen")
			return
		}

		var kb *telegram.InlineKeyboardMarkup
		if scr == screenBuilder {
			kb = builderKeyboard(item)
		} else {
			kb = keyboardFor(item)
		}

		opts := &telegram.MessageOptions{ReplyMarkup: kb}
		if _, err := g.telegram.EditOrSend(ctx, ref, renderItemSummary(item), opts); err != nil {
			g.logger.WithError(err).WithField("content_id", contentID).
				Warn("Failed to refresh moderation screen")
		}
	})
}
