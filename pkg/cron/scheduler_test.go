package cron

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (f *fakePurger) PurgeStale(_ context.Context, retention time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, retention)
	return 3, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RunNow(t *testing.T) {
	p := &fakePurger{}
	s := NewScheduler(p, "0 3 * * *", 72*time.Hour, testLogger())

	s.RunNow()
	assert.Equal(t, []time.Duration{72 * time.Hour}, p.calls)

	p.err = errors.New("db down")
	s.RunNow()
	assert.Len(t, p.calls, 2)
}

func TestScheduler_Start(t *testing.T) {
	s := NewScheduler(&fakePurger{}, "*/5 * * * *", time.Hour, testLogger())
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	<-s.Stop().Done()
}

func TestScheduler_Disabled(t *testing.T) {
	s := NewScheduler(&fakePurger{}, "", 0, testLogger())
	require.NoError(t, s.Start())
	assert.Empty(t, s.cron.Entries())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&fakePurger{}, "every tuesday", time.Hour, testLogger())
	assert.Error(t, s.Start())

	s = NewScheduler(&fakePurger{}, "", time.Hour, testLogger())
	assert.Error(t, s.Start())
}
