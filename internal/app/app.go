// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - Worker mode: dedup and translation loops in one process
//   - Dedup mode: deduplication and priority classification only
//   - Translate mode: translation scheduling only
//
// Each mode can be run independently or combined based on deployment needs.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lantern-intel/lantern/internal/core/domain"
	"github.com/lantern-intel/lantern/internal/core/embeddings"
	"github.com/lantern-intel/lantern/internal/core/llm"
	"github.com/lantern-intel/lantern/internal/notify"
	"github.com/lantern-intel/lantern/internal/platform/config"
	"github.com/lantern-intel/lantern/internal/platform/jobs"
	"github.com/lantern-intel/lantern/internal/platform/observability"
	"github.com/lantern-intel/lantern/internal/platform/worker"
	"github.com/lantern-intel/lantern/internal/process/dedup"
	"github.com/lantern-intel/lantern/internal/process/priority"
	"github.com/lantern-intel/lantern/internal/process/translate"
	"github.com/lantern-intel/lantern/internal/storage"
	"github.com/lantern-intel/lantern/internal/vectorindex"
)

const (
	apiKeyMock = "mock"

	jobNameDedupPass       = "dedup_pass"
	jobNameTranslationPass = "translation_pass"

	backlogReportInterval = time.Minute
)

// App holds the application dependencies and provides methods to run
// different modes.
type App struct {
	cfg      *config.Config
	database *storage.DB
	logger   *zerolog.Logger

	// translationSem is the single process-wide concurrency bound shared by
	// every translation call site.
	translationSem *semaphore.Weighted
}

// New creates a new App instance with the given dependencies.
func New(cfg *config.Config, database *storage.DB, logger *zerolog.Logger) *App {
	return &App{
		cfg:            cfg,
		database:       database,
		logger:         logger,
		translationSem: semaphore.NewWeighted(cfg.TranslationConcurrency),
	}
}

// StartHealthServer starts the health check and metrics server.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// RunWorker runs the dedup and translation loops in one process.
func (a *App) RunWorker(ctx context.Context) error {
	a.logger.Info().Msg("starting worker mode")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.RunDedup(gctx) })
	g.Go(func() error { return a.RunTranslate(gctx) })

	return g.Wait()
}

// RunDedup runs the deduplication and classification loop.
func (a *App) RunDedup(ctx context.Context) error {
	registry := a.newEmbeddingRegistry()
	index := vectorindex.NewPGVector(a.database.Pool, a.logger)
	engine := dedup.New(index, registry, a.cfg.DedupTopK, a.cfg.DedupSimilarityThreshold, a.logger)
	classifier := priority.New(
		time.Duration(a.cfg.PriorityHighWindowHours)*time.Hour,
		time.Duration(a.cfg.PriorityNormalWindowHours)*time.Hour,
	)
	runner := a.newJobRunner()

	return worker.Loop(ctx, worker.Config{
		Name:         "dedup",
		PollInterval: a.cfg.DedupPollInterval,
		Process: func(ctx context.Context) error {
			return runner.Run(ctx, jobNameDedupPass, func(ctx context.Context) error {
				return a.runDedupPass(ctx, engine, classifier)
			})
		},
		PeriodicTasks: []worker.PeriodicTask{
			{
				Name:     "dedup_backlog_gauge",
				Interval: backlogReportInterval,
				Run:      a.reportDedupBacklog,
			},
		},
		OnError: a.logAndContinue("dedup pass failed"),
		Logger:  a.logger,
	})
}

// runDedupPass processes one batch: dedup verdicts, then priority
// classification for every message in the batch.
func (a *App) runDedupPass(ctx context.Context, engine *dedup.Engine, classifier *priority.Classifier) error {
	release, acquired, err := a.acquireLeaderLock(ctx, storage.LockDedupWorker)
	if err != nil {
		return err
	}

	if !acquired {
		return nil
	}
	defer release()

	batch, err := a.database.GetMessagesPendingDedup(ctx, a.cfg.DedupBatchSize)
	if err != nil {
		return err
	}

	if len(batch) == 0 {
		return nil
	}

	var cutoff time.Time
	if a.cfg.DedupWindow > 0 {
		cutoff = time.Now().UTC().Add(-a.cfg.DedupWindow)
	}

	deduped, applied := engine.DeduplicateBatch(ctx, batch, cutoff)
	if !applied {
		a.logger.Warn().Int("batch", len(batch)).Msg("dedup pass skipped, vector index not ready")

		return nil
	}

	for _, msg := range deduped {
		if msg.EmbeddingID == "" {
			// Embedding failed for this message; leave it pending so the
			// next pass retries it.
			continue
		}

		if err := a.database.UpdateDedupResult(ctx, msg); err != nil {
			a.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to persist dedup result")

			continue
		}

		a.classifyMessage(ctx, classifier, msg)
	}

	return nil
}

func (a *App) classifyMessage(ctx context.Context, classifier *priority.Classifier, msg *domain.Message) {
	tier := classifier.Classify(msg.OriginalText, msg.SourceLanguage, msg.TargetLanguage, msg.PublishedAt)

	// Duplicate status gates translation: only group anchors and unique
	// messages are scheduled.
	needsTranslation := !msg.IsDuplicate && tier != domain.PrioritySkip

	if err := a.database.UpdateTranslationPlan(ctx, msg.ID, tier, needsTranslation); err != nil {
		a.logger.Error().Err(err).Str("message_id", msg.ID).Msg("failed to persist translation plan")
	}
}

// RunTranslate runs the translation scheduling loop.
func (a *App) RunTranslate(ctx context.Context) error {
	client := a.newTranslationClient()
	usage := llm.NewUsageRecorder(a.database, a.logger)
	scheduler := translate.New(
		a.database,
		client,
		a.database,
		a.newNotifier(),
		usage,
		a.translationSem,
		translate.Config{
			BatchSize: a.cfg.TranslationBatchSize,
			Timeout:   a.cfg.TranslationTimeout,
		},
		a.logger,
	)
	runner := a.newJobRunner()

	return worker.Loop(ctx, worker.Config{
		Name:         "translate",
		PollInterval: a.cfg.TranslationPollInterval,
		Process: func(ctx context.Context) error {
			return runner.Run(ctx, jobNameTranslationPass, func(ctx context.Context) error {
				return a.runTranslationPass(ctx, scheduler)
			})
		},
		PeriodicTasks: []worker.PeriodicTask{
			{
				Name:     "release_stuck_translations",
				Interval: a.cfg.TranslationStuckAfter,
				Run: func(ctx context.Context) {
					scheduler.ReleaseStuck(ctx, a.cfg.TranslationStuckAfter)
				},
			},
			{
				Name:     "translation_backlog_gauge",
				Interval: backlogReportInterval,
				Run:      scheduler.ReportBacklog,
			},
		},
		OnError: a.logAndContinue("translation pass failed"),
		Logger:  a.logger,
	})
}

func (a *App) runTranslationPass(ctx context.Context, scheduler *translate.Scheduler) error {
	release, acquired, err := a.acquireLeaderLock(ctx, storage.LockTranslationWorker)
	if err != nil {
		return err
	}

	if !acquired {
		return nil
	}
	defer release()

	return scheduler.ProcessPending(ctx)
}

// acquireLeaderLock takes the advisory lock for a singleton job when leader
// election is enabled. The returned release func is a no-op when the lock was
// not taken.
func (a *App) acquireLeaderLock(ctx context.Context, lockID int64) (release func(), acquired bool, err error) {
	if !a.cfg.LeaderElectionEnabled {
		return func() {}, true, nil
	}

	acquired, err = a.database.TryAcquireAdvisoryLock(ctx, lockID)
	if err != nil {
		return nil, false, err
	}

	if !acquired {
		return nil, false, nil
	}

	return func() {
		if err := a.database.ReleaseAdvisoryLock(ctx, lockID); err != nil {
			a.logger.Warn().Err(err).Int64("lock_id", lockID).Msg("failed to release advisory lock")
		}
	}, true, nil
}

func (a *App) reportDedupBacklog(ctx context.Context) {
	count, err := a.database.CountPendingDedup(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to count dedup backlog")

		return
	}

	observability.DedupBacklog.Set(float64(count))
}

func (a *App) newEmbeddingRegistry() *embeddings.Registry {
	registry := embeddings.NewRegistry(a.logger)

	if a.cfg.EmbeddingAPIKey == "" || a.cfg.EmbeddingAPIKey == apiKeyMock {
		registry.Register(embeddings.NewMockProviderWithDimensions(a.cfg.EmbeddingDimensions))

		return registry
	}

	registry.Register(embeddings.NewOpenAIProvider(embeddings.OpenAIConfig{
		APIKey:     a.cfg.EmbeddingAPIKey,
		Model:      a.cfg.EmbeddingModel,
		Dimensions: a.cfg.EmbeddingDimensions,
		RateLimit:  a.cfg.EmbeddingRPS,
	}))

	return registry
}

func (a *App) newTranslationClient() llm.Client {
	if a.cfg.TranslationAPIKey == "" || a.cfg.TranslationAPIKey == apiKeyMock {
		return llm.NewMock()
	}

	return llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:    a.cfg.TranslationAPIKey,
		Model:     a.cfg.TranslationModel,
		RateLimit: a.cfg.TranslationRPS,
	})
}

func (a *App) newNotifier() notify.Notifier {
	if a.cfg.NotifyBotToken == "" || a.cfg.NotifyChatID == 0 {
		return &notify.Log{Logger: a.logger}
	}

	notifier, err := notify.NewTelegram(a.cfg.NotifyBotToken, a.cfg.NotifyChatID, a.logger)
	if err != nil {
		a.logger.Warn().Err(err).Msg("telegram notifier init failed, falling back to log sink")

		return &notify.Log{Logger: a.logger}
	}

	return notifier
}

func (a *App) newJobRunner() *jobs.Runner {
	return jobs.NewRunner(jobs.Config{
		MaxAttempts: a.cfg.JobMaxAttempts,
		BaseDelay:   a.cfg.JobBaseDelay,
		MaxDelay:    a.cfg.JobMaxDelay,
	}, a.database, a.logger)
}

// logAndContinue builds an OnError callback that keeps the loop alive except
// on context cancellation.
func (a *App) logAndContinue(msg string) func(error) bool {
	return func(err error) bool {
		if errors.Is(err, context.Canceled) {
			return false
		}

		a.logger.Error().Err(err).Msg(msg)

		return true
	}
}
