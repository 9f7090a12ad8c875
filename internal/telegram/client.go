package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/sirupsen/logrus"

	"newsdesk/internal/models"
	"newsdesk/pkg/clients"
)

// MaxMessageLength is the hard limit the Bot API puts on message text.
const MaxMessageLength = 4096

type Config struct {
	BotToken string
	// BaseURL overrides the Bot API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
}

// Client is a minimal Bot API client covering what moderation needs:
// sending and editing messages with inline keyboards, and acknowledging
// callback queries.
type Client struct {
	cfg      Config
	http     *http.Client
	executor failsafe.Executor[*http.Response]
	logger   *logrus.Logger
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	retryCfg := clients.DefaultHTTPExecutorConfig()
	retryCfg.MaxRetries = 2

	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: clients.DefaultTransport()},
		executor: clients.NewHTTPExecutor(retryCfg),
		logger:   logger,
	}
}

// Message is the subset of the Bot API message object we read back.
type Message struct {
	MessageID int64 `json:"message_id"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
	URL          string `json:"url,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// MessageOptions carries the optional send/edit parameters.
type MessageOptions struct {
	ParseMode   string
	ReplyMarkup *InlineKeyboardMarkup
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// APIError is a Bot API rejection (ok=false) as opposed to a transport
// failure.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.BotToken, method)
	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.http.Do(req)
	})
	if err != nil {
		return fmt.Errorf("call telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read telegram %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode telegram %s response: %w", method, err)
	}
	if !envelope.OK {
		return &APIError{Code: envelope.ErrorCode, Description: envelope.Description}
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode telegram %s result: %w", method, err)
		}
	}
	return nil
}

// Truncate cuts text to the Bot API limit, marking the cut. The limit is in
// characters, not bytes.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxMessageLength {
		return text
	}
	return string(runes[:MaxMessageLength-1]) + "…"
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *MessageOptions) (Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    Truncate(text),
	}
	applyOptions(payload, opts)

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, opts *MessageOptions) (Message, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       Truncate(text),
	}
	applyOptions(payload, opts)

	var msg Message
	if err := c.call(ctx, "editMessageText", payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	payload := map[string]any{
		"callback_query_id": callbackQueryID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// EditOrSend updates the message ref points at, falling back to a fresh
// message when the original is gone or was never recorded. The moderation
// chat must always end up with a visible report, so an edit failure is not
// a delivery failure.
func (c *Client) EditOrSend(ctx context.Context, ref models.ChatRef, text string, opts *MessageOptions) (models.ChatRef, error) {
	if ref.Valid() {
		_, err := c.EditMessageText(ctx, ref.ChatID, ref.MessageID, text, opts)
		if err == nil {
			return ref, nil
		}
		if isNotModified(err) {
			return ref, nil
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"chat_id":    ref.ChatID,
			"message_id": ref.MessageID,
		}).Warn("Failed to edit moderation message, sending a new one")
	}

	msg, err := c.SendMessage(ctx, ref.ChatID, text, opts)
	if err != nil {
		return models.ChatRef{}, err
	}
	return models.ChatRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

// isNotModified detects the Bot API's "message is not modified" rejection,
// which means the screen already shows the intended text.
func isNotModified(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 400 && strings.Contains(apiErr.Description, "message is not modified")
}

func applyOptions(payload map[string]any, opts *MessageOptions) {
	if opts == nil {
		return
	}
	if opts.ParseMode != "" {
		payload["parse_mode"] = opts.ParseMode
	}
	if opts.ReplyMarkup != nil {
		payload["reply_markup"] = opts.ReplyMarkup
	}
}
