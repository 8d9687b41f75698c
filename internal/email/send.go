package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-core/internal/commerce"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/store"
)

// TypeSendEmail is the asynq task type of rendered-and-sent emails.
const TypeSendEmail = "email:send"

// Template names.
const (
	TemplateOrderNew    = "orders/new"
	TemplateOrderUpdate = "orders/update"
)

// DefaultQueue is used when Mailer.Queue is empty.
const DefaultQueue = "emails"

// SendOrderEmailInput is the input of SendOrderEmail.
type SendOrderEmailInput struct {
	Action       string          `json:"action,omitempty"`
	FromShop     *commerce.Shop  `json:"fromShop" validate:"required"`
	To           string          `json:"to" validate:"required,email"`
	Language     string          `json:"language,omitempty"`
	DataForEmail *OrderEmailData `json:"dataForEmail" validate:"required"`
}

// SendEmailPayload is the job payload handled by Worker.
type SendEmailPayload struct {
	TemplateName string          `json:"templateName"`
	Language     string          `json:"language,omitempty"`
	To           string          `json:"to"`
	From         string          `json:"from"`
	ShopID       string          `json:"shopId"`
	Data         json.RawMessage `json:"data"`
}

// SendResult identifies the scheduled job.
type SendResult struct {
	TaskID       string
	Queue        string
	TemplateName string
}

// Mailer schedules order emails.
type Mailer struct {
	Client   *asynq.Client
	Queue    string
	MaxRetry int
	Builder  *Builder
	Shops    store.Shops
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (m *Mailer) queue() string {
	if m.Queue == "" {
		return DefaultQueue
	}
	return m.Queue
}

// SendOrderEmail validates the input and schedules the email. The action
// "new" selects the order confirmation template, anything else the update
// template.
func (m *Mailer) SendOrderEmail(ctx context.Context, in SendOrderEmailInput) (res SendResult, err error) {
	defer func() {
		obs.IncCounter(obs.OrderEmailTotal, actionLabel(in.Action), obs.ResultLabel(err))
	}()
	if err := common.ValidateStruct(in); err != nil {
		return res, err
	}
	templateName := TemplateOrderUpdate
	if in.Action == "new" {
		templateName = TemplateOrderNew
	}
	lang := in.Language
	if lang == "" {
		lang = in.FromShop.Language
	}
	data, err := json.Marshal(in.DataForEmail)
	if err != nil {
		return res, fmt.Errorf("email: encode template data: %w", err)
	}
	payload, err := json.Marshal(SendEmailPayload{
		TemplateName: templateName,
		Language:     lang,
		To:           in.To,
		From:         in.FromShop.PrimaryEmail(),
		ShopID:       in.FromShop.ID,
		Data:         data,
	})
	if err != nil {
		return res, fmt.Errorf("email: encode payload: %w", err)
	}
	res.TemplateName = templateName
	res.Queue = m.queue()
	if m.Client == nil {
		return res, nil
	}

	opts := []asynq.Option{asynq.Queue(m.queue())}
	if m.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(m.MaxRetry))
	}
	orderID := in.DataForEmail.Order.ID
	if templateName == TemplateOrderNew && orderID != "" {
		opts = append(opts, asynq.TaskID("order-new:"+orderID))
	}
	info, err := m.Client.EnqueueContext(ctx, asynq.NewTask(TypeSendEmail, payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger := obs.LoggerFromContext(ctx, m.Logger)
		logger.Info().Str("order_id", orderID).Msg("order confirmation already scheduled")
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("email: enqueue: %w", err)
	}
	res.TaskID = info.ID
	res.Queue = info.Queue
	return res, nil
}

// EnqueueOrderEmail builds the template data of order and schedules the
// email for the order's address.
func (m *Mailer) EnqueueOrderEmail(ctx context.Context, order commerce.Order, action string) error {
	shop, err := m.Shops.FindShop(ctx, store.ShopSelector{ID: order.ShopID})
	if err != nil {
		return fmt.Errorf("email: find shop %s: %w", order.ShopID, err)
	}
	data, err := m.Builder.BuildOrderEmailData(ctx, order)
	if err != nil {
		return err
	}
	_, err = m.SendOrderEmail(ctx, SendOrderEmailInput{
		Action:       action,
		FromShop:     &shop,
		To:           order.Email,
		Language:     order.Language,
		DataForEmail: &data,
	})
	return err
}

func actionLabel(action string) string {
	if action == "" {
		return "update"
	}
	return action
}
