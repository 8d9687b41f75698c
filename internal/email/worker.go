package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/plugin"
)

// Message is a rendered email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Renderer turns a template name and its data into subject and HTML body.
type Renderer interface {
	Render(ctx context.Context, templateName, language string, data json.RawMessage) (subject, html string, err error)
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Worker handles send-email jobs.
type Worker struct {
	Renderer Renderer
	Sender   Sender
	Logger   zerolog.Logger
}

// Register binds the worker to mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSendEmail, w.HandleSendEmailTask)
}

// HandleSendEmailTask renders and sends one email. Malformed payloads are
// not retried.
func (w *Worker) HandleSendEmailTask(ctx context.Context, task *asynq.Task) error {
	var p SendEmailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.To == "" || p.TemplateName == "" {
		return fmt.Errorf("email: payload without recipient or template: %w", asynq.SkipRetry)
	}
	logger := obs.LoggerFromContext(ctx, w.Logger).With().
		Str("template", p.TemplateName).Str("shop_id", p.ShopID).Logger()

	subject, html, err := w.Renderer.Render(ctx, p.TemplateName, p.Language, p.Data)
	if err != nil {
		logger.Error().Err(err).Msg("render email failed")
		return err
	}
	if err := w.Sender.Send(ctx, Message{From: p.From, To: p.To, Subject: subject, HTML: html}); err != nil {
		logger.Warn().Err(err).Msg("send email failed")
		return err
	}
	logger.Info().Msg("email sent")
	return nil
}

// TemplateRenderer renders the built-in order templates.
type TemplateRenderer struct {
	templates map[string]*template.Template
	subjects  map[string]string
}

const orderBody = `<p>{{.shopName}}</p>
{{with .order}}<p>Order {{.referenceId}}</p>{{end}}
<p>{{.orderDate}}</p>
<table>{{range .combinedItems}}<tr><td>{{.quantity}} x {{.title}}</td><td>{{.displaySubtotal}}</td></tr>{{end}}</table>
{{with .billing}}<p>Subtotal {{.subtotal}}<br>Shipping {{.shipping}}<br>Taxes {{.taxes}}<br>Total {{.total}}</p>{{end}}
{{with .orderUrl}}<p><a href="{{.}}">{{.}}</a></p>{{end}}`

// NewTemplateRenderer parses the built-in templates.
func NewTemplateRenderer() (*TemplateRenderer, error) {
	r := &TemplateRenderer{
		templates: map[string]*template.Template{},
		subjects: map[string]string{
			TemplateOrderNew:    "Your order has been received",
			TemplateOrderUpdate: "Your order has been updated",
		},
	}
	for name := range r.subjects {
		t, err := template.New(name).Parse(orderBody)
		if err != nil {
			return nil, fmt.Errorf("email: parse %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render implements Renderer.
func (r *TemplateRenderer) Render(_ context.Context, templateName, _ string, data json.RawMessage) (string, string, error) {
	t, ok := r.templates[templateName]
	if !ok {
		return "", "", fmt.Errorf("email: unknown template %q: %w", templateName, asynq.SkipRetry)
	}
	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		return "", "", fmt.Errorf("email: decode template data: %v: %w", err, asynq.SkipRetry)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, values); err != nil {
		return "", "", fmt.Errorf("email: render %s: %w", templateName, err)
	}
	return r.subjects[templateName], buf.String(), nil
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger zerolog.Logger
}

// Send implements Sender.
func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Int("bytes", len(msg.HTML)).Msg("email delivery skipped")
	return nil
}

// Plugin registers the email startup hook.
func Plugin(logger zerolog.Logger) plugin.Plugin {
	return plugin.Plugin{
		Name: "email",
		Startup: []plugin.StartupFunc{func(_ context.Context, bus *events.Bus) error {
			bus.OnShopCreated(func(_ context.Context, ev events.ShopCreated) error {
				// Templates are not seeded per shop.
				logger.Debug().Str("shop_id", ev.Shop.ID).Msg("shop created")
				return nil
			})
			return nil
		}},
	}
}
