package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errJob = errors.New("job failed")

type mockDeadLetterStore struct {
	mu      sync.Mutex
	entries []deadLetterEntry
	err     error
}

type deadLetterEntry struct {
	jobName    string
	errText    string
	stackTrace string
	attempts   int
}

func (m *mockDeadLetterStore) InsertDeadLetter(_ context.Context, jobName, errText, stackTrace string, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.entries = append(m.entries, deadLetterEntry{
		jobName:    jobName,
		errText:    errText,
		stackTrace: stackTrace,
		attempts:   attempts,
	})

	return nil
}

func newTestRunner(store *mockDeadLetterStore) *Runner {
	logger := zerolog.Nop()

	return NewRunner(Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}, store, &logger)
}

func TestRunSucceedsOnThirdAttempt(t *testing.T) {
	store := &mockDeadLetterStore{}
	runner := newTestRunner(store)

	attempts := 0

	err := runner.Run(context.Background(), "flaky", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errJob
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Empty(t, store.entries, "successful job must not be dead-lettered")
}

func TestRunExhaustsAndDeadLetters(t *testing.T) {
	store := &mockDeadLetterStore{}
	runner := newTestRunner(store)

	attempts := 0

	err := runner.Run(context.Background(), "doomed", func(context.Context) error {
		attempts++
		return errJob
	})

	// The wrapper swallows the error after dead-lettering.
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, "doomed", entry.jobName)
	assert.Equal(t, errJob.Error(), entry.errText)
	assert.Equal(t, 3, entry.attempts)
	assert.NotEmpty(t, entry.stackTrace)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := &mockDeadLetterStore{}
	logger := zerolog.Nop()
	runner := NewRunner(Config{
		MaxAttempts: 3,
		BaseDelay:   time.Hour, // would block forever without cancellation
	}, store, &logger)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := runner.Run(ctx, "canceled", func(context.Context) error {
		return errJob
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.entries, "cancellation is not a retry exhaustion")
}

func TestRunSurvivesDeadLetterStoreFailure(t *testing.T) {
	store := &mockDeadLetterStore{err: errors.New("insert failed")}
	runner := newTestRunner(store)

	err := runner.Run(context.Background(), "job", func(context.Context) error {
		return errJob
	})

	require.NoError(t, err)
}

func TestDelay(t *testing.T) {
	tests := []struct {
		name     string
		attempt  int
		base     time.Duration
		max      time.Duration
		expected time.Duration
	}{
		{name: "first attempt", attempt: 1, base: time.Second, max: time.Minute, expected: time.Second},
		{name: "second attempt doubles", attempt: 2, base: time.Second, max: time.Minute, expected: 2 * time.Second},
		{name: "third attempt", attempt: 3, base: time.Second, max: time.Minute, expected: 4 * time.Second},
		{name: "capped at max", attempt: 10, base: time.Second, max: time.Minute, expected: time.Minute},
		{name: "zero attempt treated as first", attempt: 0, base: time.Second, max: time.Minute, expected: time.Second},
		{name: "base above max", attempt: 1, base: 2 * time.Minute, max: time.Minute, expected: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Delay(tt.attempt, tt.base, tt.max))
		})
	}
}
