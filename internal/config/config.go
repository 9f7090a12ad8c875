package config

import (
	"strconv"
	"strings"
	"time"

	"newsdesk/internal/models"
	"newsdesk/pkg/config"
)

// Config stores environment configuration for Herald.
type Config struct {
	Port         string
	DatabaseURL  string
	ServiceToken string

	TelegramBotToken string
	TelegramAPIURL   string
	WebhookSecret    string
	ModerationChatID int64
	ChannelIDs       map[models.Language]int64

	XBearerToken string

	ImageAPIURL string
	ImageAPIKey string

	LLMProvider string
	LLMModel    string
	LLMAPIKey   string
	LLMAPIURL   string

	KafkaBrokers   []string
	KafkaClusterID string
	TaskTopic      string
	TaskDLQTopic   string

	PostTimeout time.Duration
	TaskTimeout time.Duration
}

// KafkaEnabled reports whether tasks run through the durable queue instead
// of in-process goroutines.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// LoadConfig loads the Herald configuration from environment variables.
func LoadConfig() Config {
	brokersEnv := strings.TrimSpace(config.GetEnv("KAFKA_BROKERS", ""))
	var brokers []string
	if brokersEnv != "" {
		for _, broker := range strings.Split(brokersEnv, ",") {
			broker = strings.TrimSpace(broker)
			if broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}

	channels := make(map[models.Language]int64, len(models.DefaultLanguages))
	for _, lang := range models.DefaultLanguages {
		key := "TELEGRAM_CHANNEL_" + strings.ToUpper(string(lang))
		if id := getEnvInt64(key, 0); id != 0 {
			channels[lang] = id
		}
	}

	return Config{
		Port:         config.GetEnv("PORT", "18080"),
		DatabaseURL:  config.GetEnv("DATABASE_URL", ""),
		ServiceToken: config.GetEnv("SERVICE_TOKEN", ""),

		TelegramBotToken: config.GetEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIURL:   config.GetEnv("TELEGRAM_API_URL", ""),
		WebhookSecret:    config.GetEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		ModerationChatID: getEnvInt64("TELEGRAM_MODERATION_CHAT_ID", 0),
		ChannelIDs:       channels,

		XBearerToken: config.GetEnv("X_BEARER_TOKEN", ""),

		ImageAPIURL: config.GetEnv("IMAGE_API_URL", ""),
		ImageAPIKey: config.GetEnv("IMAGE_API_KEY", ""),

		LLMProvider: config.GetEnv("LLM_PROVIDER", "openai"),
		LLMModel:    config.GetEnv("LLM_MODEL", ""),
		LLMAPIKey:   config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:   config.GetEnv("LLM_API_URL", ""),

		KafkaBrokers:   brokers,
		KafkaClusterID: config.GetEnv("KAFKA_CLUSTER_ID", "local"),
		TaskTopic:      config.GetEnv("HERALD_TASK_TOPIC", "herald.tasks"),
		TaskDLQTopic:   config.GetEnv("HERALD_TASK_DLQ_TOPIC", "herald.tasks.dlq"),

		PostTimeout: getEnvDuration("SOCIAL_POST_TIMEOUT", 90*time.Second),
		TaskTimeout: getEnvDuration("TASK_TIMEOUT", 10*time.Minute),
	}
}

func getEnvInt64(key string, defaultValue int64) int64 {
	raw := strings.TrimSpace(config.GetEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(config.GetEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue
	}
	return parsed
}
