package activity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Async пишет записи журнала в фоне: Record сразу возвращает управление,
// запись идёт в отдельной горутине с собственным таймаутом, ошибки пишутся в лог.
type Async struct {
	next    Recorder
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsync оборачивает Recorder фоновой записью.
func NewAsync(next Recorder, logger *zap.Logger, timeout time.Duration) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Async{next: next, logger: logger, timeout: timeout}
}

// Record ставит запись в очередь и не ждёт результата. Отмена ctx запись не прерывает.
func (a *Async) Record(ctx context.Context, e Entry) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.next.Record(recordCtx, e); err != nil {
			a.logger.Error("activity record failed",
				zap.Error(err),
				zap.String("event", e.EventType),
			)
		}
	}()
	return nil
}

// Wait дожидается завершения всех начатых записей.
func (a *Async) Wait() {
	a.wg.Wait()
}
