package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
)

// understoodThreshold is the per-attempt correct fraction above which a
// concept counts as understood for that attempt.
const understoodThreshold = 0.7

const (
	masteredProficiency   = 8
	strugglingProficiency = 4
	maxProficiency        = 10
)

type KnowledgeService interface {
	SelectConceptsToLearn(userID uint, limit int) ([]model.Concept, error)
	AssessConcept(userID, conceptID uint, wasCorrect bool, attemptScore float64, idempotencyKey string) (*model.UserConceptKnowledge, error)
	ApplyKnowledgeGain(userID uint, gains map[uint]int) error
	RecomputeLearningProfile(userID uint) (*model.UserLearningProfile, error)
	BuildLearningContext(userID uint) (*model.LearningContext, error)
}

type knowledgeService struct {
	knowledgeRepo repository.KnowledgeRepository
	conceptRepo   repository.ConceptRepository
	userRepo      repository.UserRepository
	smoothing     float64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKnowledgeService(
	knowledgeRepo repository.KnowledgeRepository,
	conceptRepo repository.ConceptRepository,
	userRepo repository.UserRepository,
	smoothing float64,
) KnowledgeService {
	if smoothing <= 0 || smoothing >= 1 {
		smoothing = 0.3
	}
	return &knowledgeService{
		knowledgeRepo: knowledgeRepo,
		conceptRepo:   conceptRepo,
		userRepo:      userRepo,
		smoothing:     smoothing,
		locks:         make(map[string]*sync.Mutex),
	}
}

// lockFor serializes assessments for one user+concept pair so concurrent
// submissions cannot lose proficiency updates.
func (s *knowledgeService) lockFor(userID, conceptID uint) *sync.Mutex {
	key := fmt.Sprintf("%d:%d", userID, conceptID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

// SelectConceptsToLearn returns the next concepts worth generating
// content for: struggling concepts first, then concepts within reach of
// the user's current difficulty level, closest first. Mastered concepts
// are excluded.
func (s *knowledgeService) SelectConceptsToLearn(userID uint, limit int) ([]model.Concept, error) {
	if limit <= 0 {
		limit = 10
	}

	catalog, err := s.conceptRepo.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load concept catalog: %w", err)
	}

	level := 1
	mastered := map[uint]bool{}
	struggling := map[uint]bool{}
	if profile, err := s.knowledgeRepo.GetProfile(userID); err == nil {
		level = profile.CurrentDifficultyLevel
		for _, id := range model.DecodeIDs(profile.MasteredConceptIDs) {
			mastered[id] = true
		}
		for _, id := range model.DecodeIDs(profile.StrugglingConceptIDs) {
			struggling[id] = true
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}

	var strugglingConcepts, reachableConcepts []model.Concept
	for _, concept := range catalog {
		if mastered[concept.ID] {
			continue
		}
		if struggling[concept.ID] {
			strugglingConcepts = append(strugglingConcepts, concept)
			continue
		}
		if concept.DifficultyLevel <= level+2 {
			reachableConcepts = append(reachableConcepts, concept)
		}
	}

	closeness := func(c model.Concept) int {
		d := c.DifficultyLevel - level
		if d < 0 {
			return -d
		}
		return d
	}
	sort.SliceStable(strugglingConcepts, func(i, j int) bool {
		return closeness(strugglingConcepts[i]) < closeness(strugglingConcepts[j])
	})
	sort.SliceStable(reachableConcepts, func(i, j int) bool {
		return closeness(reachableConcepts[i]) < closeness(reachableConcepts[j])
	})

	selected := append(strugglingConcepts, reachableConcepts...)
	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected, nil
}

// AssessConcept applies one question outcome to the user's knowledge row.
// The confidence score moves as an exponentially weighted average of
// correctness; proficiency moves by a small signed delta clamped to
// [0, 10]. A repeated idempotency key makes the call a no-op.
func (s *knowledgeService) AssessConcept(userID, conceptID uint, wasCorrect bool, attemptScore float64, idempotencyKey string) (*model.UserConceptKnowledge, error) {
	if _, err := s.conceptRepo.GetByID(conceptID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: concept %d", ErrNotFound, conceptID)
		}
		return nil, fmt.Errorf("failed to look up concept %d: %w", conceptID, err)
	}

	lock := s.lockFor(userID, conceptID)
	lock.Lock()
	defer lock.Unlock()

	if idempotencyKey != "" {
		seen, err := s.knowledgeRepo.HasAssessmentEvent(userID, idempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check assessment event: %w", err)
		}
		if seen {
			return s.getOrCreateKnowledge(userID, conceptID)
		}
	}

	knowledge, err := s.getOrCreateKnowledge(userID, conceptID)
	if err != nil {
		return nil, err
	}

	correctness := 0.0
	if wasCorrect {
		correctness = 1.0
	}
	if knowledge.TimesEncountered == 0 {
		// Seed the estimate at 0.5 so a single early miss does not pin it.
		knowledge.ConfidenceScore = 0.5 + s.smoothing*(correctness-0.5)
	} else {
		knowledge.ConfidenceScore += s.smoothing * (correctness - knowledge.ConfidenceScore)
	}

	delta := -1
	if wasCorrect {
		delta = 1
		if attemptScore >= understoodThreshold {
			delta = 2
		}
	}
	knowledge.Proficiency = clampInt(knowledge.Proficiency+delta, 0, maxProficiency)
	knowledge.TimesEncountered++
	knowledge.LastAssessedAt = time.Now()

	if err := s.knowledgeRepo.SaveKnowledge(knowledge); err != nil {
		return nil, fmt.Errorf("failed to save concept knowledge: %w", err)
	}

	if idempotencyKey != "" {
		event := &model.AssessmentEvent{
			UserID:         userID,
			IdempotencyKey: idempotencyKey,
			ConceptID:      conceptID,
			WasCorrect:     wasCorrect,
		}
		if err := s.knowledgeRepo.CreateAssessmentEvent(event); err != nil {
			return nil, fmt.Errorf("failed to record assessment event: %w", err)
		}
	}

	return knowledge, nil
}

// ApplyKnowledgeGain credits module-completion gains to the tracked
// proficiency. Gains are capped at +2 per concept per completion and do
// not touch the confidence estimate, which only answers move.
func (s *knowledgeService) ApplyKnowledgeGain(userID uint, gains map[uint]int) error {
	for conceptID, gain := range gains {
		if gain <= 0 {
			continue
		}
		if gain > 2 {
			gain = 2
		}

		lock := s.lockFor(userID, conceptID)
		lock.Lock()
		knowledge, err := s.getOrCreateKnowledge(userID, conceptID)
		if err != nil {
			lock.Unlock()
			return err
		}
		knowledge.Proficiency = clampInt(knowledge.Proficiency+gain, 0, maxProficiency)
		knowledge.TimesEncountered++
		knowledge.LastAssessedAt = time.Now()
		err = s.knowledgeRepo.SaveKnowledge(knowledge)
		lock.Unlock()
		if err != nil {
			return fmt.Errorf("failed to apply knowledge gain for concept %d: %w", conceptID, err)
		}
	}
	return nil
}

// RecomputeLearningProfile rederives the mastered/struggling sets and
// the current difficulty level from the knowledge rows.
func (s *knowledgeService) RecomputeLearningProfile(userID uint) (*model.UserLearningProfile, error) {
	rows, err := s.knowledgeRepo.GetAllKnowledge(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load concept knowledge: %w", err)
	}

	var masteredIDs, strugglingIDs []uint
	for _, row := range rows {
		if row.Proficiency >= masteredProficiency {
			masteredIDs = append(masteredIDs, row.ConceptID)
		}
		if row.TimesEncountered >= 1 && row.Proficiency < strugglingProficiency {
			strugglingIDs = append(strugglingIDs, row.ConceptID)
		}
	}

	level := 1
	if len(rows) > 0 {
		ratio := float64(len(masteredIDs)) / float64(len(rows))
		level = 1 + int(math.Floor(ratio*9))
	}
	maxLevel, err := s.conceptRepo.MaxDifficulty()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog max difficulty: %w", err)
	}
	level = clampInt(level, 1, maxLevel)

	profile, err := s.knowledgeRepo.GetProfile(userID)
	if errors.Is(err, repository.ErrNotFound) {
		profile = &model.UserLearningProfile{UserID: userID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}

	profile.CurrentDifficultyLevel = level
	profile.MasteredConceptIDs = model.EncodeIDs(masteredIDs)
	profile.StrugglingConceptIDs = model.EncodeIDs(strugglingIDs)

	if err := s.knowledgeRepo.SaveProfile(profile); err != nil {
		return nil, fmt.Errorf("failed to save learning profile: %w", err)
	}
	return profile, nil
}

// BuildLearningContext aggregates the read-only signals a generation
// cycle needs.
func (s *knowledgeService) BuildLearningContext(userID uint) (*model.LearningContext, error) {
	lc := &model.LearningContext{
		UserID:                 userID,
		CurrentDifficultyLevel: 1,
	}

	profile, err := s.knowledgeRepo.GetProfile(userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}
	if profile != nil {
		lc.CurrentDifficultyLevel = profile.CurrentDifficultyLevel
		lc.Interests = model.DecodeStrings(profile.Interests)
		lc.StrugglingConcepts = s.conceptNames(model.DecodeIDs(profile.StrugglingConceptIDs))
		lc.MasteredConcepts = s.conceptNames(model.DecodeIDs(profile.MasteredConceptIDs))
	}

	goals, err := s.userRepo.GetActiveGoals(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load goals: %w", err)
	}
	for _, goal := range goals {
		progress := 0.0
		if goal.TargetAmount > 0 {
			progress = goal.CurrentAmount / goal.TargetAmount
		}
		lc.Goals = append(lc.Goals, model.GoalSignal{
			Name:     goal.Name,
			Category: goal.Category,
			Progress: progress,
		})
	}

	if aggregate, err := s.userRepo.GetAccountAggregate(userID); err == nil {
		lc.TotalBalance = aggregate.TotalBalance
		lc.TotalDebt = aggregate.TotalDebt
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load account aggregate: %w", err)
	}

	return lc, nil
}

func (s *knowledgeService) conceptNames(ids []uint) []string {
	concepts, err := s.conceptRepo.GetByIDs(ids)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(concepts))
	for _, concept := range concepts {
		names = append(names, concept.Name)
	}
	return names
}

func (s *knowledgeService) getOrCreateKnowledge(userID, conceptID uint) (*model.UserConceptKnowledge, error) {
	knowledge, err := s.knowledgeRepo.GetKnowledge(userID, conceptID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.UserConceptKnowledge{
			UserID:    userID,
			ConceptID: conceptID,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load concept knowledge: %w", err)
	}
	return knowledge, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
