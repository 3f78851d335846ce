package common

import (
	"errors"
	"log/slog"
	"os"

	"github.com/tggeco/challenge-api/internal/config"
	"github.com/tggeco/challenge-api/internal/notify"
	"github.com/tggeco/challenge-api/internal/queue"
	"github.com/tggeco/challenge-api/internal/validator"
)

const defaultQueueName = "notifications"

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func GetAzureQueueClient() (*queue.AzureQueuer, error) {
	url := os.Getenv("AZURE_STORAGE_ACCOUNT_QUEUES_URL")
	if url == "" {
		return nil, errors.New("queue url not set")
	}

	return queue.NewAzureQueuer(
		os.Getenv("AZURE_STORAGE_ACCOUNT_NAME"),
		os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
		url,
		getenv("NOTIFICATIONS_QUEUE", defaultQueueName),
	)
}

func GetEmailConfig() (*config.EmailConfig, error) {
	cfg := &config.EmailConfig{
		Provider: config.EmailProvider(getenv("EMAIL_PROVIDER", string(config.EmailProviderLog))),
		APIKey:   os.Getenv("EMAIL_API_KEY"),
		From:     getenv("EMAIL_FROM", "TGG Eco-Challenge <noreply@tggeco.org>"),
		BaseURL:  getenv("EMAIL_BASE_URL", "https://api.resend.com"),
	}

	v := validator.Create()
	if err := v.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// App URL is baked into links in outgoing emails
func GetDispatcher(l *slog.Logger) (*notify.Dispatcher, error) {
	cfg, err := GetEmailConfig()
	if err != nil {
		return nil, err
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		return nil, errors.New("app url not set")
	}

	return notify.NewDispatcher(notify.NewSender(cfg, l), appURL, l), nil
}
