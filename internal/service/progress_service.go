package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
	"fincoach-backend/pkg/logging"
	"fincoach-backend/utilities"
)

// EventModuleCompleted is published with the user ID whenever a module
// reaches the completed state.
const EventModuleCompleted = "module_completed"

// QuizAnswer is one submitted answer, positionally matched to the
// module's questions.
type QuizAnswer struct {
	QuestionIndex int    `json:"question_index"`
	Answer        string `json:"answer"`
}

// ConceptResult reports the mastery outcome for one concept after a
// quiz submission.
type ConceptResult struct {
	ConceptID   uint `json:"concept_id"`
	WasCorrect  bool `json:"was_correct"`
	Proficiency int  `json:"proficiency"`
}

// QuizSubmission is the graded result of a quiz.
type QuizSubmission struct {
	Score          int             `json:"score"`
	XPEarned       int             `json:"xp_earned"`
	CorrectAnswers int             `json:"correct_answers"`
	TotalQuestions int             `json:"total_questions"`
	ConceptResults []ConceptResult `json:"concept_results"`
}

// ActiveModule pairs a live module with the caller's progress on it.
type ActiveModule struct {
	Module   model.LearningModule        `json:"module"`
	Progress *model.UserLearningProgress `json:"progress,omitempty"`
}

// LearningOverview is the profile payload: derived learning state plus
// the XP ledger and quiz history.
type LearningOverview struct {
	Profile          *model.UserLearningProfile   `json:"profile,omitempty"`
	Ledger           *model.UserXPLedger          `json:"ledger"`
	Knowledge        []model.UserConceptKnowledge `json:"knowledge"`
	QuizResults      []model.QuizResult           `json:"quiz_results"`
	CompletedModules int                          `json:"completed_modules"`
}

type ProgressService interface {
	StartModule(userID, moduleID uint) (*model.UserLearningProgress, error)
	UpdateProgress(userID, moduleID uint, progressPercentage, minutesSpent int) (*model.UserLearningProgress, error)
	CompleteModule(userID, moduleID uint) (*model.UserLearningProgress, error)
	SubmitQuiz(userID, moduleID uint, answers []QuizAnswer, idempotencyKey string) (*QuizSubmission, error)
	AwardXP(userID uint, points int) (*model.UserXPLedger, error)
	GetActiveModules(userID uint) ([]ActiveModule, error)
	GetOverview(userID uint) (*LearningOverview, error)
}

type progressService struct {
	progressRepo  repository.ProgressRepository
	contentRepo   repository.ContentRepository
	knowledgeRepo repository.KnowledgeRepository
	knowledge     KnowledgeService
	eventBus      *utilities.EventBus
	basePoints    int
	retryAttempts int
}

func NewProgressService(
	progressRepo repository.ProgressRepository,
	contentRepo repository.ContentRepository,
	knowledgeRepo repository.KnowledgeRepository,
	knowledge KnowledgeService,
	eventBus *utilities.EventBus,
	basePoints int,
	retryAttempts int,
) ProgressService {
	if basePoints <= 0 {
		basePoints = 50
	}
	return &progressService{
		progressRepo:  progressRepo,
		contentRepo:   contentRepo,
		knowledgeRepo: knowledgeRepo,
		knowledge:     knowledge,
		eventBus:      eventBus,
		basePoints:    basePoints,
		retryAttempts: retryAttempts,
	}
}

func (s *progressService) StartModule(userID, moduleID uint) (*model.UserLearningProgress, error) {
	if _, err := s.userModule(userID, moduleID); err != nil {
		return nil, err
	}

	progress, err := s.getOrCreateProgress(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if progress.Status != model.ProgressNotStarted {
		return progress, nil
	}

	now := time.Now()
	progress.Status = model.ProgressInProgress
	progress.StartedAt = &now
	if err := s.progressRepo.SaveProgress(progress); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	return progress, nil
}

// UpdateProgress merges a progress report monotonically: the percentage
// never decreases, minutes only accumulate, and a completed module stays
// completed.
func (s *progressService) UpdateProgress(userID, moduleID uint, progressPercentage, minutesSpent int) (*model.UserLearningProgress, error) {
	if progressPercentage < 0 || progressPercentage > 100 {
		return nil, fmt.Errorf("%w: progress percentage must be within [0, 100]", ErrValidation)
	}
	if minutesSpent < 0 {
		return nil, fmt.Errorf("%w: minutes spent must not be negative", ErrValidation)
	}

	module, err := s.userModule(userID, moduleID)
	if err != nil {
		return nil, err
	}

	progress, err := s.getOrCreateProgress(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if progress.Status == model.ProgressCompleted {
		return progress, nil
	}

	if progress.Status == model.ProgressNotStarted {
		now := time.Now()
		progress.Status = model.ProgressInProgress
		progress.StartedAt = &now
	}
	if progressPercentage > progress.ProgressPercentage {
		progress.ProgressPercentage = progressPercentage
	}
	progress.TimeSpentMinutes += minutesSpent

	if progress.ProgressPercentage >= 100 {
		return s.finishModule(module, progress, module.XPReward)
	}

	if err := s.progressRepo.SaveProgress(progress); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}
	return progress, nil
}

func (s *progressService) CompleteModule(userID, moduleID uint) (*model.UserLearningProgress, error) {
	module, err := s.userModule(userID, moduleID)
	if err != nil {
		return nil, err
	}

	progress, err := s.getOrCreateProgress(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if progress.Status == model.ProgressCompleted {
		return progress, nil
	}
	return s.finishModule(module, progress, module.XPReward)
}

// SubmitQuiz grades the answers, feeds every question outcome into the
// knowledge tracker, then records the result and awards XP. A mastery
// update failure is logged but never withholds the earned XP.
func (s *progressService) SubmitQuiz(userID, moduleID uint, answers []QuizAnswer, idempotencyKey string) (*QuizSubmission, error) {
	module, err := s.userModule(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if module.ContentType != model.ContentTypeQuiz {
		return nil, fmt.Errorf("%w: module %d is not a quiz", ErrValidation, moduleID)
	}

	var quiz model.QuizContent
	if err := json.Unmarshal(module.ContentBody, &quiz); err != nil {
		return nil, fmt.Errorf("failed to decode quiz content: %w", err)
	}
	if len(answers) != len(quiz.Questions) {
		return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrValidation, len(quiz.Questions), len(answers))
	}

	total := len(quiz.Questions)
	correct := 0
	outcomes := make([]bool, total)
	for i, question := range quiz.Questions {
		answer := answers[i]
		if answer.QuestionIndex != i {
			return nil, fmt.Errorf("%w: answers must be ordered by question index", ErrValidation)
		}
		if answer.Answer == question.CorrectAnswer {
			outcomes[i] = true
			correct++
		}
	}

	score := int(math.Round(float64(correct) / float64(total) * 100))
	attemptScore := float64(correct) / float64(total)

	// Mastery updates come first: quiz XP is never granted without at
	// least attempting them.
	results := make([]ConceptResult, 0, total)
	for i, question := range quiz.Questions {
		conceptID := question.ConceptID
		if conceptID == 0 {
			if targets := model.DecodeIDs(module.TargetConceptIDs); len(targets) > 0 {
				conceptID = targets[0]
			} else {
				continue
			}
		}

		questionKey := ""
		if idempotencyKey != "" {
			questionKey = fmt.Sprintf("%s:%d", idempotencyKey, i)
		}
		knowledge, err := s.knowledge.AssessConcept(userID, conceptID, outcomes[i], attemptScore, questionKey)
		if err != nil {
			logger.Error("mastery update failed for user %d concept %d: %v", userID, conceptID, err)
			continue
		}
		results = append(results, ConceptResult{
			ConceptID:   conceptID,
			WasCorrect:  outcomes[i],
			Proficiency: knowledge.Proficiency,
		})
	}

	if _, err := s.knowledge.RecomputeLearningProfile(userID); err != nil {
		logger.Error("profile recompute failed for user %d: %v", userID, err)
	}

	xpEarned := int(math.Round(float64(s.basePoints) * float64(score) / 100))

	result := &model.QuizResult{
		UserID:         userID,
		ModuleID:       moduleID,
		Category:       module.Category,
		Difficulty:     module.DifficultyLabel,
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		XPEarned:       xpEarned,
	}
	if err := s.progressRepo.CreateQuizResult(result); err != nil {
		return nil, fmt.Errorf("failed to record quiz result: %w", err)
	}

	progress, err := s.getOrCreateProgress(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if progress.Status != model.ProgressCompleted {
		if _, err := s.finishModule(module, progress, xpEarned); err != nil {
			return nil, err
		}
	}

	return &QuizSubmission{
		Score:          score,
		XPEarned:       xpEarned,
		CorrectAnswers: correct,
		TotalQuestions: total,
		ConceptResults: results,
	}, nil
}

// AwardXP adds points to the ledger and recomputes the derived level
// fields together, keeping level*100 - totalXP == xpToNextLevel.
func (s *progressService) AwardXP(userID uint, points int) (*model.UserXPLedger, error) {
	if points < 0 {
		return nil, fmt.Errorf("%w: XP award must not be negative", ErrValidation)
	}

	var ledger *model.UserXPLedger
	err := withRetry(s.retryAttempts, func() error {
		current, err := s.progressRepo.GetLedger(userID)
		if errors.Is(err, repository.ErrNotFound) {
			current = &model.UserXPLedger{UserID: userID, CurrentLevel: 1, XPToNextLevel: 100}
		} else if err != nil {
			return fmt.Errorf("failed to load XP ledger: %w", err)
		}

		current.TotalXP += points
		current.CurrentLevel = current.TotalXP/100 + 1
		current.XPToNextLevel = current.CurrentLevel*100 - current.TotalXP

		if err := s.progressRepo.SaveLedger(current); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: concurrent XP update for user %d", ErrTransient, userID)
			}
			return err
		}
		ledger = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func (s *progressService) GetActiveModules(userID uint) ([]ActiveModule, error) {
	modules, err := s.contentRepo.GetModulesByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}

	progressRows, err := s.progressRepo.GetProgressByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	byModule := make(map[uint]*model.UserLearningProgress, len(progressRows))
	for i := range progressRows {
		byModule[progressRows[i].ModuleID] = &progressRows[i]
	}

	active := make([]ActiveModule, 0, len(modules))
	for _, module := range modules {
		progress := byModule[module.ID]
		if progress != nil && progress.Status == model.ProgressCompleted {
			continue
		}
		active = append(active, ActiveModule{Module: module, Progress: progress})
	}
	return active, nil
}

func (s *progressService) GetOverview(userID uint) (*LearningOverview, error) {
	overview := &LearningOverview{}

	profile, err := s.knowledgeRepo.GetProfile(userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}
	overview.Profile = profile

	ledger, err := s.progressRepo.GetLedger(userID)
	if errors.Is(err, repository.ErrNotFound) {
		ledger = &model.UserXPLedger{UserID: userID, CurrentLevel: 1, XPToNextLevel: 100}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load XP ledger: %w", err)
	}
	overview.Ledger = ledger

	knowledge, err := s.knowledgeRepo.GetAllKnowledge(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load concept knowledge: %w", err)
	}
	overview.Knowledge = knowledge

	quizResults, err := s.progressRepo.GetQuizResults(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quiz results: %w", err)
	}
	overview.QuizResults = quizResults

	progressRows, err := s.progressRepo.GetProgressByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	for _, row := range progressRows {
		if row.Status == model.ProgressCompleted {
			overview.CompletedModules++
		}
	}
	return overview, nil
}

// finishModule performs the one-time completion transition: sticky
// status, completion timestamp, history entry, knowledge gain credit,
// XP award, and the completion event.
func (s *progressService) finishModule(module *model.LearningModule, progress *model.UserLearningProgress, awardPoints int) (*model.UserLearningProgress, error) {
	now := time.Now()
	progress.Status = model.ProgressCompleted
	progress.ProgressPercentage = 100
	if progress.StartedAt == nil {
		progress.StartedAt = &now
	}
	if progress.CompletedAt == nil {
		progress.CompletedAt = &now
	}

	awardXP := !progress.XPAwarded
	progress.XPAwarded = true
	if err := s.progressRepo.SaveProgress(progress); err != nil {
		return nil, fmt.Errorf("failed to save progress: %w", err)
	}

	masteredSnapshot := json.RawMessage("[]")
	if profile, err := s.knowledgeRepo.GetProfile(module.UserID); err == nil {
		masteredSnapshot = profile.MasteredConceptIDs
	}
	entry := &model.ContentHistoryEntry{
		UserID:             module.UserID,
		ContentHash:        module.ContentHash,
		CompletedAt:        now,
		KnowledgeGained:    module.KnowledgeGain,
		MasteredConceptIDs: masteredSnapshot,
	}
	if err := s.contentRepo.CreateHistoryEntry(entry); err != nil {
		// A duplicate hash means the history row already exists; the
		// dedup guarantee is unaffected.
		logger.Warn("could not record content history for user %d: %v", module.UserID, err)
	}

	if err := s.knowledge.ApplyKnowledgeGain(module.UserID, model.DecodeGainMap(module.KnowledgeGain)); err != nil {
		logger.Error("knowledge gain credit failed for user %d: %v", module.UserID, err)
	}

	if awardXP && awardPoints > 0 {
		if _, err := s.AwardXP(module.UserID, awardPoints); err != nil {
			return nil, err
		}
	}

	if s.eventBus != nil {
		s.eventBus.Publish(EventModuleCompleted, module.UserID)
	}
	return progress, nil
}

func (s *progressService) userModule(userID, moduleID uint) (*model.LearningModule, error) {
	module, err := s.contentRepo.GetModule(moduleID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: module %d", ErrNotFound, moduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load module: %w", err)
	}
	if module.UserID != userID {
		return nil, fmt.Errorf("%w: module %d", ErrNotFound, moduleID)
	}
	return module, nil
}

func (s *progressService) getOrCreateProgress(userID, moduleID uint) (*model.UserLearningProgress, error) {
	progress, err := s.progressRepo.GetProgress(userID, moduleID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.UserLearningProgress{
			UserID:   userID,
			ModuleID: moduleID,
			Status:   model.ProgressNotStarted,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return progress, nil
}
