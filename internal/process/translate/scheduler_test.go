package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/lantern-intel/lantern/internal/core/domain"
	coreerrors "github.com/lantern-intel/lantern/internal/core/errors"
	"github.com/lantern-intel/lantern/internal/core/llm"
)

type fakeRepo struct {
	mu       sync.Mutex
	pending  []domain.Message
	saved    map[string]string
	released int64
}

func newFakeRepo(pending ...domain.Message) *fakeRepo {
	return &fakeRepo{pending: pending, saved: make(map[string]string)}
}

func (r *fakeRepo) ClaimPendingTranslations(_ context.Context, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit > len(r.pending) {
		limit = len(r.pending)
	}

	claimed := r.pending[:limit]
	r.pending = r.pending[limit:]

	return claimed, nil
}

func (r *fakeRepo) SaveTranslation(_ context.Context, messageID, translatedText string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.saved[messageID] = translatedText

	return nil
}

func (r *fakeRepo) ReleaseStuckTranslations(_ context.Context, _ time.Duration) (int64, error) {
	return r.released, nil
}

func (r *fakeRepo) CountPendingTranslations(_ context.Context) (map[domain.Priority]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[domain.Priority]int)
	for _, m := range r.pending {
		counts[m.TranslationPriority]++
	}

	return counts, nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) GetTranslation(_ context.Context, messageID, lang string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text, ok := c.entries[messageID+"/"+lang]; ok {
		return text, nil
	}

	return "", coreerrors.ErrCacheMiss
}

func (c *fakeCache) PutTranslation(_ context.Context, messageID, lang, text string, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[messageID+"/"+lang] = text
	c.puts++

	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Publish(_ context.Context, eventType string, payload map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, eventType+":"+payload["message_id"])
}

func testMessage(id, text, sourceLang string) domain.Message {
	return domain.Message{
		ID:                  id,
		ChannelID:           "chan-1",
		OriginalText:        text,
		SourceLanguage:      sourceLang,
		TargetLanguage:      "en",
		NeedsTranslation:    true,
		TranslationPriority: domain.PriorityNormal,
	}
}

func newTestScheduler(t *testing.T, repo Repository, cache Cache, notifier Notifier, client llm.Client, permits int64) *Scheduler {
	t.Helper()

	logger := zerolog.Nop()

	return New(repo, client, cache, notifier, llm.NoopUsageRecorder(),
		semaphore.NewWeighted(permits), Config{BatchSize: 20, Timeout: 5 * time.Second}, &logger)
}

func TestProcessPendingBatchRoundTrip(t *testing.T) {
	repo := newFakeRepo(
		testMessage("m1", "hola", "es"),
		testMessage("m2", "adios", "es"),
		testMessage("m3", "gracias", "es"),
	)
	cache := newFakeCache()
	notifier := &fakeNotifier{}

	client := &llm.MockClient{
		TranslateBatchFunc: func(_ context.Context, texts []string, _, _ string) (string, llm.Usage, error) {
			translated := make([]string, len(texts))
			for i, text := range texts {
				translated[i] = "en:" + text
			}

			return llm.JoinSegments(translated), llm.Usage{PromptTokens: 30, CompletionTokens: 30}, nil
		},
	}

	s := newTestScheduler(t, repo, cache, notifier, client, 4)

	require.NoError(t, s.ProcessPending(context.Background()))

	assert.Equal(t, "en:hola", repo.saved["m1"])
	assert.Equal(t, "en:adios", repo.saved["m2"])
	assert.Equal(t, "en:gracias", repo.saved["m3"])
	assert.Equal(t, 3, cache.puts)
	assert.Len(t, notifier.events, 3)
}

func TestProcessPendingGroupsByLanguagePair(t *testing.T) {
	repo := newFakeRepo(
		testMessage("m1", "hola", "es"),
		testMessage("m2", "bonjour", "fr"),
		testMessage("m3", "adios", "es"),
	)
	cache := newFakeCache()

	var calls []string

	var mu sync.Mutex

	client := &llm.MockClient{
		TranslateBatchFunc: func(_ context.Context, texts []string, sourceLang, _ string) (string, llm.Usage, error) {
			mu.Lock()
			calls = append(calls, fmt.Sprintf("%s:%d", sourceLang, len(texts)))
			mu.Unlock()

			translated := make([]string, len(texts))
			for i, text := range texts {
				translated[i] = "en:" + text
			}

			return llm.JoinSegments(translated), llm.Usage{}, nil
		},
	}

	s := newTestScheduler(t, repo, cache, &fakeNotifier{}, client, 4)

	require.NoError(t, s.ProcessPending(context.Background()))

	assert.ElementsMatch(t, []string{"es:2", "fr:1"}, calls)
	assert.Equal(t, "en:bonjour", repo.saved["m2"])
}

func TestProcessPendingSegmentMismatchFallsBackPerMessage(t *testing.T) {
	repo := newFakeRepo(
		testMessage("m1", "uno", "es"),
		testMessage("m2", "dos", "es"),
		testMessage("m3", "tres", "es"),
	)
	cache := newFakeCache()

	var singleCalls atomic.Int32

	client := &llm.MockClient{
		TranslateBatchFunc: func(_ context.Context, _ []string, _, _ string) (string, llm.Usage, error) {
			// Provider merged segments: fewer outputs than inputs.
			return "en:uno" + llm.Separator + "en:dos en:tres", llm.Usage{}, nil
		},
		TranslateOneFunc: func(_ context.Context, text, _, _ string) (string, llm.Usage, error) {
			singleCalls.Add(1)

			return "en:" + text, llm.Usage{}, nil
		},
	}

	s := newTestScheduler(t, repo, cache, &fakeNotifier{}, client, 4)

	require.NoError(t, s.ProcessPending(context.Background()))

	assert.Equal(t, int32(3), singleCalls.Load())
	assert.Equal(t, "en:uno", repo.saved["m1"])
	assert.Equal(t, "en:dos", repo.saved["m2"])
	assert.Equal(t, "en:tres", repo.saved["m3"])
}

func TestProcessPendingCacheHitSkipsProvider(t *testing.T) {
	repo := newFakeRepo(
		testMessage("m1", "hola", "es"),
		testMessage("m2", "adios", "es"),
	)
	cache := newFakeCache()
	require.NoError(t, cache.PutTranslation(context.Background(), "m1", "en", "cached hello", 0))
	cache.puts = 0

	var batchTexts []string

	client := &llm.MockClient{
		TranslateBatchFunc: func(_ context.Context, texts []string, _, _ string) (string, llm.Usage, error) {
			batchTexts = texts

			translated := make([]string, len(texts))
			for i, text := range texts {
				translated[i] = "en:" + text
			}

			return llm.JoinSegments(translated), llm.Usage{}, nil
		},
	}

	s := newTestScheduler(t, repo, cache, &fakeNotifier{}, client, 4)

	require.NoError(t, s.ProcessPending(context.Background()))

	assert.Equal(t, []string{"adios"}, batchTexts)
	assert.Equal(t, "cached hello", repo.saved["m1"])
	assert.Equal(t, "en:adios", repo.saved["m2"])
	// Cache hits must not rewrite the cache.
	assert.Equal(t, 1, cache.puts)
}

func TestProcessPendingProviderErrorPropagates(t *testing.T) {
	repo := newFakeRepo(testMessage("m1", "hola", "es"))

	client := &llm.MockClient{
		TranslateBatchFunc: func(_ context.Context, _ []string, _, _ string) (string, llm.Usage, error) {
			return "", llm.Usage{}, coreerrors.ErrEmptyResponse
		},
	}

	s := newTestScheduler(t, repo, newFakeCache(), &fakeNotifier{}, client, 4)

	err := s.ProcessPending(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, coreerrors.ErrEmptyResponse)
	assert.Empty(t, repo.saved)
}

func TestProcessPendingUnavailableClientFailsFast(t *testing.T) {
	repo := newFakeRepo(testMessage("m1", "hola", "es"))
	client := &llm.MockClient{Unavailable: true}

	s := newTestScheduler(t, repo, newFakeCache(), &fakeNotifier{}, client, 4)

	err := s.ProcessPending(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, coreerrors.ErrProviderUnavailable)
}

func TestSemaphoreBoundsConcurrentProviderCalls(t *testing.T) {
	const (
		permits = 3
		callers = 12
	)

	var (
		inFlight atomic.Int32
		peak     atomic.Int32
	)

	client := &llm.MockClient{
		TranslateOneFunc: func(_ context.Context, text, _, _ string) (string, llm.Usage, error) {
			current := inFlight.Add(1)

			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}

			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)

			return "en:" + text, llm.Usage{}, nil
		},
	}

	s := newTestScheduler(t, newFakeRepo(), newFakeCache(), &fakeNotifier{}, client, permits)

	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			translated, _, err := s.translateOne(context.Background(), fmt.Sprintf("text-%d", i), "es", "en")
			assert.NoError(t, err)
			assert.True(t, strings.HasPrefix(translated, "en:"))
		}(i)
	}

	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(permits))
	assert.Greater(t, peak.Load(), int32(0))
}

func TestGroupByLanguagePairPreservesOrder(t *testing.T) {
	groups := groupByLanguagePair([]domain.Message{
		testMessage("m1", "a", "es"),
		testMessage("m2", "b", "fr"),
		testMessage("m3", "c", "es"),
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "es", groups[0].sourceLang)
	assert.Equal(t, []string{"m1", "m3"}, []string{groups[0].messages[0].ID, groups[0].messages[1].ID})
	assert.Equal(t, "fr", groups[1].sourceLang)
}

func TestPerMessageTokens(t *testing.T) {
	assert.Equal(t, 20, perMessageTokens(llm.Usage{PromptTokens: 30, CompletionTokens: 30}, 3))
	assert.Equal(t, 0, perMessageTokens(llm.Usage{PromptTokens: 10}, 0))
}
