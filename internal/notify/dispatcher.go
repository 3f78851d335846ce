package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tggeco/challenge-api/internal/queue"
	"github.com/tggeco/challenge-api/internal/validator"
)

var tracer = otel.Tracer("github.com/tggeco/challenge-api/internal/notify")

type emailTemplate struct {
	subject *template.Template
	text    *template.Template
}

func mustTemplate(kind Kind, subject, text string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(string(kind) + "_subject").Option("missingkey=zero").Parse(subject)),
		text:    template.Must(template.New(string(kind) + "_text").Option("missingkey=zero").Parse(text)),
	}
}

var templates = map[Kind]emailTemplate{
	KindWelcome: mustTemplate(KindWelcome,
		`Welcome to TGG Eco-Challenge 2026!`,
		`Hi {{.name}},

Welcome to TGG Campus Eco-Challenge 2026! Your account has been created.

Log in at {{.app_url}}/participant to complete your profile and start your submission.
`),
	KindSubmissionReceived: mustTemplate(KindSubmissionReceived,
		`Submission Received - {{.reference}}`,
		`Hi {{.name}},

Your submission "{{.title}}" ({{.reference}}) has been received.

Track its progress at {{.app_url}}/participant.
`),
	KindStatusUpdate: mustTemplate(KindStatusUpdate,
		`Submission Update - {{.reference}}: {{.label}}`,
		`Hi {{.name}},

The status of your submission "{{.title}}" ({{.reference}}) is now: {{.label}}.

View the details at {{.app_url}}/participant.
`),
	KindTeamInvite: mustTemplate(KindTeamInvite,
		`You've been invited to join Team "{{.team}}"`,
		`Hi,

{{.lead}} has invited you to join Team "{{.team}}" in TGG Campus Eco-Challenge 2026.

Accept the invitation at {{.app_url}}/team/join?token={{.token}}
`),
	KindJudgeWelcome: mustTemplate(KindJudgeWelcome,
		`You're a Judge - TGG Eco-Challenge 2026`,
		`Hi {{.name}},

You have been added as a judge for TGG Campus Eco-Challenge 2026.

Log in at {{.app_url}}/judge with this email address and the password below, then change it.

Password: {{.password}}
`),
	KindCoordinatorWelcome: mustTemplate(KindCoordinatorWelcome,
		`Campus Coordinator Account - TGG Eco-Challenge 2026`,
		`Hi {{.name}},

You have been made the campus coordinator for {{.university}} in TGG Campus Eco-Challenge 2026.

Log in at {{.app_url}}/coordinator with this email address and the password below, then change it.

Password: {{.password}}
`),
	KindPasswordReset: mustTemplate(KindPasswordReset,
		`Reset your password - TGG Eco-Challenge 2026`,
		`Hi {{.name}},

Someone asked to reset the password for this account. Choose a new one at
{{.app_url}}/reset-password?token={{.token}}

The link works once and expires in {{.expires}}. If you did not ask for this, ignore this email.
`),
}

var _ queue.MessageHandler = (*Dispatcher)(nil)

// Renders events into emails and hands them to a Sender.
//
// Delivery is at most once: send failures are logged and the event is dropped.
type Dispatcher struct {
	sender    Sender
	validator validator.CustomValidator
	l         *slog.Logger
	appURL    string
}

func NewDispatcher(sender Sender, appURL string, l *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		validator: validator.Create(),
		l:         l.WithGroup("notify"),
		appURL:    strings.TrimSuffix(appURL, "/"),
	}
}

func (d *Dispatcher) Render(event Event) (Email, error) {
	tmpl, ok := templates[event.Kind]
	if !ok {
		return Email{}, fmt.Errorf("unknown notification kind %q", event.Kind)
	}

	data := make(map[string]string, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	data["app_url"] = d.appURL

	var subject, text strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Email{}, err
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return Email{}, err
	}

	return Email{
		Kind:    event.Kind,
		To:      event.To,
		Subject: subject.String(),
		Text:    text.String(),
	}, nil
}

// Render and send one event. Errors are logged and returned.
func (d *Dispatcher) Deliver(ctx context.Context, event Event) error {
	ctx, span := tracer.Start(ctx, "Dispatcher.Deliver", trace.WithAttributes(
		attribute.String("kind", string(event.Kind)),
	))
	defer span.End()

	if err := d.validator.Validate(&event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid event")
		d.l.WarnContext(ctx, "dropping invalid notification", "kind", event.Kind, "error", err)
		return err
	}

	email, err := d.Render(event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to render email")
		d.l.ErrorContext(ctx, "failed to render notification", "kind", event.Kind, "error", err)
		return err
	}

	if err := d.sender.Send(ctx, email); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		d.l.ErrorContext(ctx, "failed to send notification", "kind", event.Kind, "error", err)
		return err
	}

	span.SetStatus(codes.Ok, "delivered notification")
	return nil
}

// Queue entry point. Every failure is poison so a message is never delivered twice.
func (d *Dispatcher) Handle(ctx context.Context, message []byte) error {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		d.l.WarnContext(ctx, "dropping undecodable notification", "error", err)
		return queue.WrapPoisonError(err)
	}

	ctx = event.Trace.Extract(ctx)

	if err := d.Deliver(ctx, event); err != nil {
		return queue.WrapPoisonError(err)
	}
	return nil
}
