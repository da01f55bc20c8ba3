package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/catering-system/internal/model"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		status model.OrderStatus
		want   EventType
		ok     bool
	}{
		{status: model.StatusAccepted, want: EventOrderAccepted, ok: true},
		{status: model.StatusInDelivery, want: EventOrderInDelivery, ok: true},
		{status: model.StatusCompleted, want: EventOrderCompleted, ok: true},
		{status: model.StatusInPreparation},
		{status: model.StatusDelivered},
		{status: model.StatusAwaitingReturn},
		{status: model.StatusPending},
	}

	for _, tt := range tests {
		got, ok := p.EventFor(tt.status)
		assert.Equal(t, tt.ok, ok, "status %s", tt.status)
		assert.Equal(t, tt.want, got, "status %s", tt.status)
	}
	assert.Equal(t, "accepted,in_delivery,completed", p.String())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]string{"delivered", " accepted ", ""})
	require.NoError(t, err)

	ev, ok := p.EventFor(model.StatusDelivered)
	assert.True(t, ok)
	assert.Equal(t, EventType("order_delivered"), ev)

	_, ok = p.EventFor(model.StatusCompleted)
	assert.False(t, ok)

	_, err = ParsePolicy([]string{"cancelled"})
	assert.Error(t, err)

	_, err = ParsePolicy([]string{"shipped"})
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	pct := 50
	amount := decimal.RequireFromString("227.95")
	deadline := time.Date(2026, time.October, 26, 0, 0, 0, 0, time.UTC)
	serviceDate := time.Date(2026, time.November, 20, 0, 0, 0, 0, time.UTC)

	subject, body, err := Render(Event{
		Type:             EventOrderCancelled,
		OrderNumber:      "100000000008",
		ServiceDate:      serviceDate,
		RefundPercentage: &pct,
		Amount:           &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, "Order 100000000008 cancelled", subject)
	assert.Contains(t, body, "20.11.2026")
	assert.Contains(t, body, "Refund: 50%, 227.95.")

	penalty := decimal.NewFromInt(600)
	_, body, err = Render(Event{
		Type:        EventEquipmentPenalty,
		OrderNumber: "100000000008",
		Amount:      &penalty,
		Deadline:    &deadline,
	})
	require.NoError(t, err)
	assert.Contains(t, body, "26.10.2026")
	assert.Contains(t, body, "600.00")

	subject, _, err = Render(Event{Type: "order_delivered", OrderNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, "Order 1 update", subject)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	return &sesv2.SendEmailOutput{}, f.err
}

func TestSESDispatcher(t *testing.T) {
	client := &fakeSES{}
	d := NewSESDispatcherWithClient(client, "orders@example.com")

	err := d.Send(context.Background(), Event{Type: EventOrderAccepted, RecipientID: 7})
	assert.ErrorIs(t, err, ErrNoRecipient)
	assert.Nil(t, client.input)

	err = d.Send(context.Background(), Event{
		Type:           EventOrderAccepted,
		RecipientID:    7,
		RecipientEmail: "client@example.com",
		OrderNumber:    "100000000008",
	})
	require.NoError(t, err)
	require.NotNil(t, client.input)
	assert.Equal(t, "orders@example.com", *client.input.FromEmailAddress)
	assert.Equal(t, []string{"client@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "Order 100000000008 accepted", *client.input.Content.Simple.Subject.Data)

	client.err = errors.New("throttled")
	assert.Error(t, d.Send(context.Background(), Event{Type: EventOrderAccepted, RecipientEmail: "a@b.c"}))
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingDispatcher) Send(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func TestFanoutJoinsErrors(t *testing.T) {
	ok := &recordingDispatcher{}
	failing := &recordingDispatcher{err: errors.New("down")}

	err := Fanout{ok, failing}.Send(context.Background(), Event{Type: EventOrderCompleted})
	assert.Error(t, err)
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
}

func TestAsyncDoesNotPropagateErrors(t *testing.T) {
	next := &recordingDispatcher{err: errors.New("smtp down")}
	a := NewAsync(next, zap.NewNop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, a.Send(ctx, Event{Type: EventOrderAccepted}))
	require.NoError(t, a.Send(ctx, Event{Type: EventOrderCompleted}))
	cancel()

	a.Wait()
	assert.Len(t, next.events, 2)
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher(zap.NewNop())
	assert.NoError(t, d.Send(context.Background(), Event{Type: EventOrderAccepted, OrderNumber: "1"}))
}
