package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tggeco/challenge-api/internal/config"
)

//go:generate mockgen -destination ./mock/mock.go -package mock . Sender,Outbox

type Email struct {
	Kind    Kind
	To      string
	Subject string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, email Email) error
}

// Picks the delivery backend named in config
func NewSender(cfg *config.EmailConfig, l *slog.Logger) Sender {
	if cfg.Provider == config.EmailProviderResend {
		return NewResendSender(cfg.BaseURL, cfg.APIKey, cfg.From, l)
	}
	return NewLogSender(l)
}

var _ Sender = (*ResendSender)(nil)

type ResendSender struct {
	client  *http.Client
	baseURL string
	apiKey  string
	from    string
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Sends through the Resend HTTP API. Transient failures are retried by the client.
func NewResendSender(baseURL, apiKey, from string, l *slog.Logger) *ResendSender {
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = 10 * time.Second
	httpClient.RetryMax = 3
	httpClient.Logger = l

	return NewResendSenderFromClient(httpClient.StandardClient(), baseURL, apiKey, from)
}

func NewResendSenderFromClient(client *http.Client, baseURL, apiKey, from string) *ResendSender {
	return &ResendSender{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		from:    from,
	}
}

func (s *ResendSender) Send(ctx context.Context, email Email) error {
	ctx, span := tracer.Start(ctx, "ResendSender.Send", trace.WithAttributes(
		attribute.String("kind", string(email.Kind)),
	))
	defer span.End()

	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Text,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal email")
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct request")
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("email provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid status code")
		return err
	}

	span.SetStatus(codes.Ok, "sent email")
	return nil
}

var _ Sender = (*LogSender)(nil)

// Writes emails to the log instead of delivering them. Used in development.
type LogSender struct {
	l *slog.Logger
}

func NewLogSender(l *slog.Logger) *LogSender {
	return &LogSender{l: l.WithGroup("email")}
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	s.l.InfoContext(ctx, "email",
		"kind", email.Kind,
		"to", email.To,
		"subject", email.Subject,
		"text", email.Text,
	)
	return nil
}
