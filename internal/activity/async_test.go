package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type blockingRecorder struct {
	release chan struct{}

	mu      sync.Mutex
	entries []Entry
	ctxErrs []error
	err     error
}

func (r *blockingRecorder) Record(ctx context.Context, e Entry) error {
	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return r.err
}

func TestAsyncRecordDoesNotBlock(t *testing.T) {
	next := &blockingRecorder{release: make(chan struct{})}
	a := NewAsync(next, zap.NewNop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Record(ctx, Entry{EventType: EventOrderStatusChanged}) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Record must return before the underlying write finishes")
	}

	cancel()
	close(next.release)
	a.Wait()

	assert.Len(t, next.entries, 1)
	assert.NoError(t, next.ctxErrs[0], "caller cancellation must not drop the entry")
}

func TestAsyncRecordLogsErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	next := &blockingRecorder{err: errors.New("server selection timeout")}
	a := NewAsync(next, zap.New(core), time.Second)

	assert.NoError(t, a.Record(context.Background(), Entry{EventType: EventEquipmentPenalty}))
	a.Wait()

	entries := logs.FilterMessage("activity record failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, EventEquipmentPenalty, entries[0].ContextMap()["event"])
	}
}
