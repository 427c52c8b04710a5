package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fincoach-backend/internal/repository"
	logger "fincoach-backend/pkg/logging"
	"fincoach-backend/utilities"
)

// GenerationResult summarizes one pipeline run for a user.
type GenerationResult struct {
	Ran        bool  `json:"ran"`
	Generated  int   `json:"generated"`
	Enqueued   int   `json:"enqueued"`
	Deployed   int   `json:"deployed"`
	QueueDepth int64 `json:"queue_depth"`
}

type SchedulerService interface {
	ShouldGenerate(userID uint, forceGenerate bool) (bool, error)
	TriggerGeneration(ctx context.Context, userID uint, forceGenerate bool, desiredQueueSize int) (*GenerationResult, error)
	RunForAllUsers(ctx context.Context) error
	InitEventListeners(bus *utilities.EventBus)
}

type schedulerService struct {
	knowledge KnowledgeService
	generator GeneratorService
	scorer    ScorerService
	queue     QueueService
	content   repository.ContentRepository
	users     repository.UserRepository

	cooldown           time.Duration
	generationCount    int
	deployBatchSize    int
	conceptSelectLimit int
	sweepConcurrency   int
	llmTimeout         time.Duration
}

func NewSchedulerService(
	knowledge KnowledgeService,
	generator GeneratorService,
	scorer ScorerService,
	queue QueueService,
	content repository.ContentRepository,
	users repository.UserRepository,
	cooldownHours, generationCount, deployBatchSize, conceptSelectLimit, sweepConcurrency, llmTimeoutSeconds int,
) SchedulerService {
	if cooldownHours <= 0 {
		cooldownHours = 24
	}
	if generationCount <= 0 {
		generationCount = 6
	}
	if deployBatchSize <= 0 {
		deployBatchSize = 5
	}
	if conceptSelectLimit <= 0 {
		conceptSelectLimit = 10
	}
	if sweepConcurrency <= 0 {
		sweepConcurrency = 4
	}
	if llmTimeoutSeconds <= 0 {
		llmTimeoutSeconds = 60
	}
	return &schedulerService{
		knowledge:          knowledge,
		generator:          generator,
		scorer:             scorer,
		queue:              queue,
		content:            content,
		users:              users,
		cooldown:           time.Duration(cooldownHours) * time.Hour,
		generationCount:    generationCount,
		deployBatchSize:    deployBatchSize,
		conceptSelectLimit: conceptSelectLimit,
		sweepConcurrency:   sweepConcurrency,
		llmTimeout:         time.Duration(llmTimeoutSeconds) * time.Second,
	}
}

// ShouldGenerate decides whether a generation cycle should run now:
// always when forced, when the active pool is starved, or when the
// queue is empty and the cooldown since the last generation has passed.
func (s *schedulerService) ShouldGenerate(userID uint, forceGenerate bool) (bool, error) {
	if forceGenerate {
		return true, nil
	}

	starved, err := s.queue.NeedsDeployment(userID)
	if err != nil {
		return false, err
	}
	if starved {
		return true, nil
	}

	queued, err := s.content.CountQueue(userID, false)
	if err != nil {
		return false, fmt.Errorf("failed to count queued entries: %w", err)
	}
	if queued > 0 {
		return false, nil
	}

	lastGeneratedAt, err := s.content.LatestQueueEntryAt(userID)
	if err != nil {
		return false, fmt.Errorf("failed to read last generation time: %w", err)
	}
	if lastGeneratedAt == nil {
		return true, nil
	}
	return time.Since(*lastGeneratedAt) >= s.cooldown, nil
}

// TriggerGeneration runs the full pipeline for one user: concept
// selection, candidate generation (LLM with templated fallback), dedup
// and scoring, enqueue, and a deploy pass when the pool is low. The run
// completes deterministically even when the external generator fails.
func (s *schedulerService) TriggerGeneration(ctx context.Context, userID uint, forceGenerate bool, desiredQueueSize int) (*GenerationResult, error) {
	result := &GenerationResult{}

	should, err := s.ShouldGenerate(userID, forceGenerate)
	if err != nil {
		return nil, err
	}

	if should {
		count := desiredQueueSize
		if count <= 0 {
			count = s.generationCount
		}

		targets, err := s.knowledge.SelectConceptsToLearn(userID, s.conceptSelectLimit)
		if err != nil {
			return nil, err
		}
		if len(targets) > 0 {
			lc, err := s.knowledge.BuildLearningContext(userID)
			if err != nil {
				return nil, err
			}

			genCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
			candidates := s.generator.GenerateCandidates(genCtx, lc, targets, count)
			cancel()
			result.Ran = true
			result.Generated = len(candidates)

			entries, err := s.scorer.ScoreAndFilter(userID, candidates)
			if err != nil {
				return nil, err
			}
			if err := s.queue.Enqueue(userID, entries); err != nil {
				return nil, err
			}
			result.Enqueued = len(entries)
		}
	}

	starved, err := s.queue.NeedsDeployment(userID)
	if err != nil {
		return nil, err
	}
	if starved {
		deployed, err := s.queue.DeployTop(userID, s.deployBatchSize)
		if err != nil {
			return nil, err
		}
		result.Deployed = deployed
	}

	depth, err := s.queue.GetQueueDepth(userID)
	if err != nil {
		return nil, err
	}
	result.QueueDepth = depth.Queued
	return result, nil
}

// RunForAllUsers applies the trigger predicate to every known user with
// bounded parallelism. Per-user failures are logged and skipped; one
// user's bad run never starves the rest.
func (s *schedulerService) RunForAllUsers(ctx context.Context) error {
	users, err := s.users.GetAllUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.sweepConcurrency)
	for _, user := range users {
		userID := user.ID
		g.Go(func() error {
			if _, err := s.TriggerGeneration(ctx, userID, false, 0); err != nil {
				logger.Error("generation sweep failed for user %d: %v", userID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// InitEventListeners refills a user's pool in the background whenever
// they complete a module, so the completing request never pays the
// generation latency.
func (s *schedulerService) InitEventListeners(bus *utilities.EventBus) {
	bus.Subscribe(EventModuleCompleted, func(data interface{}) {
		userID, ok := data.(uint)
		if !ok {
			logger.Warn("module_completed event carried unexpected payload %T", data)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.llmTimeout+30*time.Second)
		defer cancel()
		if _, err := s.TriggerGeneration(ctx, userID, false, 0); err != nil {
			logger.Error("background refill failed for user %d: %v", userID, err)
		}
	})
}
