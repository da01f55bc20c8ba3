package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix задаёт префикс NATS-сабжекта уведомлений.
const SubjectPrefix = "notifications."

// LogDispatcher пишет уведомления в лог. Используется, когда внешние каналы не настроены.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher создаёт диспетчер, пишущий уведомления в лог.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Send записывает уведомление в лог.
func (d *LogDispatcher) Send(ctx context.Context, e Event) error {
	subject, _, err := Render(e)
	if err != nil {
		return err
	}
	d.logger.Info("notification",
		zap.String("type", string(e.Type)),
		zap.Int64("recipient", e.RecipientID),
		zap.String("order", e.OrderNumber),
		zap.String("subject", subject),
	)
	return nil
}

// NATSDispatcher публикует уведомления в NATS для сервиса рассылки.
type NATSDispatcher struct {
	conn *nats.Conn
}

// NewNATSDispatcher подключается к NATS по указанному адресу.
func NewNATSDispatcher(url string) (*NATSDispatcher, error) {
	conn, err := nats.Connect(url, nats.Name("catering-notifications"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSDispatcher{conn: conn}, nil
}

// Send публикует событие в сабжект notifications.<type>.
func (d *NATSDispatcher) Send(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := d.conn.Publish(SubjectPrefix+string(e.Type), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close закрывает соединение с NATS, дожидаясь отправки буфера.
func (d *NATSDispatcher) Close() error {
	if err := d.conn.Drain(); err != nil {
		d.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// SESAPI описывает часть клиента Amazon SES v2, используемую диспетчером.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESDispatcher отправляет уведомления письмами через Amazon SES v2.
type SESDispatcher struct {
	client SESAPI
	sender string
}

// NewSESDispatcher создаёт диспетчер с клиентом SES для указанного региона.
func NewSESDispatcher(ctx context.Context, region, sender string) (*SESDispatcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESDispatcherWithClient(sesv2.NewFromConfig(cfg), sender), nil
}

// NewSESDispatcherWithClient создаёт диспетчер поверх готового клиента SES.
func NewSESDispatcherWithClient(client SESAPI, sender string) *SESDispatcher {
	return &SESDispatcher{client: client, sender: sender}
}

// Send отправляет письмо получателю события.
func (d *SESDispatcher) Send(ctx context.Context, e Event) error {
	if e.RecipientEmail == "" {
		return fmt.Errorf("%w: user %d", ErrNoRecipient, e.RecipientID)
	}

	subject, body, err := Render(e)
	if err != nil {
		return err
	}

	_, err = d.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(d.sender),
		Destination: &types.Destination{
			ToAddresses: []string{e.RecipientEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// Fanout рассылает событие во все диспетчеры и объединяет ошибки.
type Fanout []Dispatcher

// Send отправляет событие каждому диспетчеру.
func (f Fanout) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, d := range f {
		if err := d.Send(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async делает отправку неблокирующей: Send сразу возвращает управление,
// доставка идёт в отдельной горутине, ошибки пишутся в лог.
type Async struct {
	next    Dispatcher
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync оборачивает диспетчер неблокирующей отправкой с таймаутом на каждое событие.
func NewAsync(next Dispatcher, logger *zap.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, logger: logger, timeout: timeout}
}

// Send ставит событие в отправку и не ждёт результата.
func (a *Async) Send(ctx context.Context, e Event) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Send(sendCtx, e); err != nil {
			a.logger.Error("notification delivery failed",
				zap.Error(err),
				zap.String("type", string(e.Type)),
				zap.String("order", e.OrderNumber),
			)
		}
	}()
	return nil
}

// Wait дожидается завершения всех отправок.
func (a *Async) Wait() {
	a.wg.Wait()
}
