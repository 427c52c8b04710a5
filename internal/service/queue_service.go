package service

import (
	"fmt"

	"github.com/google/uuid"

	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
	logger "fincoach-backend/pkg/logging"
)

type QueueDepth struct {
	Queued   int64 `json:"queued"`
	Deployed int64 `json:"deployed"`
}

type QueueService interface {
	Enqueue(userID uint, entries []model.ContentQueueEntry) error
	NeedsDeployment(userID uint) (bool, error)
	DeployTop(userID uint, count int) (int, error)
	GetQueueDepth(userID uint) (*QueueDepth, error)
}

type queueService struct {
	contentRepo       repository.ContentRepository
	activePoolMinimum int
}

func NewQueueService(contentRepo repository.ContentRepository, activePoolMinimum int) QueueService {
	if activePoolMinimum <= 0 {
		activePoolMinimum = 5
	}
	return &queueService{
		contentRepo:       contentRepo,
		activePoolMinimum: activePoolMinimum,
	}
}

func (s *queueService) Enqueue(userID uint, entries []model.ContentQueueEntry) error {
	for i := range entries {
		entries[i].UserID = userID
		entries[i].IsDeployed = false
	}
	if err := s.contentRepo.EnqueueEntries(entries); err != nil {
		return fmt.Errorf("failed to enqueue content: %w", err)
	}
	return nil
}

// NeedsDeployment reports whether the user's pool of live, not-yet
// completed generated modules has dropped below the configured minimum.
func (s *queueService) NeedsDeployment(userID uint) (bool, error) {
	active, err := s.contentRepo.CountActiveModules(userID)
	if err != nil {
		return false, fmt.Errorf("failed to count active modules: %w", err)
	}
	return active < int64(s.activePoolMinimum), nil
}

// DeployTop promotes up to count queue entries into user-visible
// modules, highest priority first, oldest first on ties. Each flip is a
// compare-and-set, so concurrent triggers cannot deploy the same entry
// twice, and a call with nothing left to deploy returns 0.
func (s *queueService) DeployTop(userID uint, count int) (int, error) {
	if count <= 0 {
		count = 5
	}

	entries, err := s.contentRepo.GetUndeployedTop(userID, count)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue: %w", err)
	}

	deployed := 0
	for i := range entries {
		entry := entries[i]
		module := materializeModule(&entry)
		ok, err := s.contentRepo.Deploy(&entry, module)
		if err != nil {
			return deployed, fmt.Errorf("failed to deploy queue entry %d: %w", entry.ID, err)
		}
		if !ok {
			// Lost the race to a concurrent trigger; the entry is
			// already live.
			continue
		}
		deployed++
		logger.Info("deployed module %q (priority %d) for user %d", entry.Title, entry.Priority, userID)
	}
	return deployed, nil
}

func (s *queueService) GetQueueDepth(userID uint) (*QueueDepth, error) {
	queued, err := s.contentRepo.CountQueue(userID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to count queued entries: %w", err)
	}
	deployed, err := s.contentRepo.CountQueue(userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to count deployed entries: %w", err)
	}
	return &QueueDepth{Queued: queued, Deployed: deployed}, nil
}

func materializeModule(entry *model.ContentQueueEntry) *model.LearningModule {
	entryID := entry.ID
	return &model.LearningModule{
		ModuleUID:             uuid.New().String(),
		UserID:                entry.UserID,
		QueueEntryID:          &entryID,
		Title:                 entry.Title,
		Description:           entry.Description,
		ContentType:           entry.ContentType,
		DifficultyLabel:       entry.DifficultyLabel,
		Category:              entry.Category,
		DurationMinutes:       entry.DurationMinutes,
		XPReward:              entry.XPReward,
		TargetConceptIDs:      entry.TargetConceptIDs,
		KnowledgeRequirements: entry.KnowledgeRequirements,
		KnowledgeGain:         entry.KnowledgeGain,
		ContentBody:           entry.ContentBody,
		ContentHash:           entry.ContentHash,
		Source:                "ai_generated",
	}
}
