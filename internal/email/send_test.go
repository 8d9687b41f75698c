package email

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/payment"
)

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}

func sendInput(action string) SendOrderEmailInput {
	shop := testShop()
	data := &OrderEmailData{ShopName: shop.Name, Order: Order{Order: testOrder()}}
	return SendOrderEmailInput{Action: action, FromShop: &shop, To: "ada@example.com", DataForEmail: data}
}

func TestSendOrderEmailValidatesInput(t *testing.T) {
	m := &Mailer{}

	in := sendInput("new")
	in.To = ""
	_, err := m.SendOrderEmail(context.Background(), in)
	requireCode(t, err, common.CodeValidationError, http.StatusBadRequest)

	in = sendInput("new")
	in.FromShop = nil
	_, err = m.SendOrderEmail(context.Background(), in)
	requireCode(t, err, common.CodeValidationError, http.StatusBadRequest)

	in = sendInput("new")
	in.DataForEmail = nil
	_, err = m.SendOrderEmail(context.Background(), in)
	requireCode(t, err, common.CodeValidationError, http.StatusBadRequest)
}

func TestSendOrderEmailPicksTemplateByAction(t *testing.T) {
	m := &Mailer{}

	res, err := m.SendOrderEmail(context.Background(), sendInput("new"))
	require.NoError(t, err)
	require.Equal(t, TemplateOrderNew, res.TemplateName)

	for _, action := range []string{"", "shipped", "canceled"} {
		res, err = m.SendOrderEmail(context.Background(), sendInput(action))
		require.NoError(t, err)
		require.Equal(t, TemplateOrderUpdate, res.TemplateName, action)
	}
}

func newQueueClient(t *testing.T) (*asynq.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestSendOrderEmailEnqueuesOnceForNewOrders(t *testing.T) {
	client, _ := newQueueClient(t)
	m := &Mailer{Client: client, Queue: "emails", MaxRetry: 3}

	res, err := m.SendOrderEmail(context.Background(), sendInput("new"))
	require.NoError(t, err)
	require.Equal(t, "order-new:order-1", res.TaskID)
	require.Equal(t, "emails", res.Queue)

	again, err := m.SendOrderEmail(context.Background(), sendInput("new"))
	require.NoError(t, err)
	require.Empty(t, again.TaskID)

	update, err := m.SendOrderEmail(context.Background(), sendInput("update"))
	require.NoError(t, err)
	require.NotEmpty(t, update.TaskID)
}

func TestEnqueueOrderEmailBuildsDataForOrderRecipient(t *testing.T) {
	client, mr := newQueueClient(t)
	order := testOrder()
	f := newBuilder(t, order, paymentsPlugin(stubMethod{name: payment.MethodInAdvance}))
	m := &Mailer{Client: client, Builder: f.builder, Shops: f.store}

	require.NoError(t, m.EnqueueOrderEmail(context.Background(), order, "new"))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })
	info, err := inspector.GetTaskInfo(DefaultQueue, "order-new:order-1")
	require.NoError(t, err)
	require.Equal(t, TypeSendEmail, info.Type)

	var p SendEmailPayload
	require.NoError(t, json.Unmarshal(info.Payload, &p))
	require.Equal(t, TemplateOrderNew, p.TemplateName)
	require.Equal(t, "ada@example.com", p.To)
	require.Equal(t, "hello@bikes.example", p.From)
	require.Equal(t, "de", p.Language)

	var data OrderEmailData
	require.NoError(t, json.Unmarshal(p.Data, &data))
	require.Equal(t, "REF1", data.Order.ReferenceID)
}
