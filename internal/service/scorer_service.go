package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
)

const (
	minPriority  = 1
	maxPriority  = 10
	basePriority = 5
)

// Ranks the three difficulty labels map to when compared with the
// user's 1-10 difficulty level.
var difficultyRanks = map[string]int{
	model.DifficultyBeginner:     1,
	model.DifficultyIntermediate: 5,
	model.DifficultyAdvanced:     9,
}

type ScorerService interface {
	ScoreAndFilter(userID uint, candidates []model.CandidateModule) ([]model.ContentQueueEntry, error)
}

type scorerService struct {
	contentRepo   repository.ContentRepository
	knowledgeRepo repository.KnowledgeRepository
	userRepo      repository.UserRepository
}

func NewScorerService(
	contentRepo repository.ContentRepository,
	knowledgeRepo repository.KnowledgeRepository,
	userRepo repository.UserRepository,
) ScorerService {
	return &scorerService{
		contentRepo:   contentRepo,
		knowledgeRepo: knowledgeRepo,
		userRepo:      userRepo,
	}
}

// ContentHash digests a candidate's title and canonical content body
// into a 64-bit hex string. The same semantic content always hashes the
// same way across generation cycles.
func ContentHash(title string, body json.RawMessage) string {
	digest := xxhash.New()
	digest.WriteString(title)
	digest.WriteString("\n")

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err == nil {
		digest.Write(compact.Bytes())
	} else {
		digest.Write(body)
	}
	return fmt.Sprintf("%016x", digest.Sum64())
}

// ScoreAndFilter drops candidates the user has already been served and
// assigns each survivor a priority in [1, 10]. Output order carries no
// meaning; the deployer re-sorts by priority.
func (s *scorerService) ScoreAndFilter(userID uint, candidates []model.CandidateModule) ([]model.ContentQueueEntry, error) {
	seen, err := s.servedHashes(userID)
	if err != nil {
		return nil, err
	}

	signals, err := s.loadScoringSignals(userID)
	if err != nil {
		return nil, err
	}

	entries := make([]model.ContentQueueEntry, 0, len(candidates))
	for _, candidate := range candidates {
		hash := ContentHash(candidate.Title, candidate.ContentBody)
		if seen[hash] {
			continue
		}
		seen[hash] = true // also dedupes within the batch

		entries = append(entries, model.ContentQueueEntry{
			UserID:                userID,
			Title:                 candidate.Title,
			Description:           candidate.Description,
			ContentType:           candidate.ContentType,
			DifficultyLabel:       candidate.DifficultyLabel,
			Category:              candidate.Category,
			DurationMinutes:       candidate.DurationMinutes,
			XPReward:              candidate.XPReward,
			TargetConceptIDs:      model.EncodeIDs(candidate.TargetConceptIDs),
			KnowledgeRequirements: model.EncodeGainMap(candidate.KnowledgeRequirements),
			KnowledgeGain:         model.EncodeGainMap(candidate.KnowledgeGain),
			ContentBody:           candidate.ContentBody,
			ContentHash:           hash,
			Priority:              scoreCandidate(candidate, signals),
		})
	}
	return entries, nil
}

// scoringSignals is the per-user state the priority function reads.
type scoringSignals struct {
	difficultyLevel int
	struggling      map[uint]bool
	interests       []string
	goals           []model.GoalSignal
}

func (s *scorerService) servedHashes(userID uint) (map[string]bool, error) {
	historyHashes, err := s.contentRepo.GetHistoryHashes(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load content history: %w", err)
	}
	queueHashes, err := s.contentRepo.GetQueueHashes(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load queue hashes: %w", err)
	}

	seen := make(map[string]bool, len(historyHashes)+len(queueHashes))
	for _, h := range historyHashes {
		seen[h] = true
	}
	for _, h := range queueHashes {
		seen[h] = true
	}
	return seen, nil
}

func (s *scorerService) loadScoringSignals(userID uint) (*scoringSignals, error) {
	signals := &scoringSignals{
		difficultyLevel: 1,
		struggling:      map[uint]bool{},
	}

	profile, err := s.knowledgeRepo.GetProfile(userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load learning profile: %w", err)
	}
	if profile != nil {
		signals.difficultyLevel = profile.CurrentDifficultyLevel
		for _, id := range model.DecodeIDs(profile.StrugglingConceptIDs) {
			signals.struggling[id] = true
		}
		signals.interests = model.DecodeStrings(profile.Interests)
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
		signals.goals = append(signals.goals, model.GoalSignal{
			Name:     goal.Name,
			Category: goal.Category,
			Progress: progress,
		})
	}
	return signals, nil
}

func scoreCandidate(candidate model.CandidateModule, signals *scoringSignals) int {
	score := basePriority

	for _, id := range candidate.TargetConceptIDs {
		if signals.struggling[id] {
			score += 3
			break
		}
	}

	rank, ok := difficultyRanks[candidate.DifficultyLabel]
	if !ok {
		rank = difficultyRanks[model.DifficultyIntermediate]
	}
	delta := rank - signals.difficultyLevel
	if delta < 0 {
		delta = -delta
	}
	switch {
	case delta <= 1:
		score += 2
	case delta <= 3:
		score++
	default:
		score--
	}

	if candidate.ContentType == model.ContentTypeQuiz {
		score++
	}

	if matchesAny(candidate, signalTerms(signals.interests)) {
		score += 2
	}
	if matchesAny(candidate, goalTerms(signals.goals)) {
		score += 2
	}

	return clampInt(score, minPriority, maxPriority)
}

func signalTerms(interests []string) []string {
	return interests
}

func goalTerms(goals []model.GoalSignal) []string {
	terms := make([]string, 0, len(goals)*2)
	for _, goal := range goals {
		if goal.Name != "" {
			terms = append(terms, goal.Name)
		}
		if goal.Category != "" {
			terms = append(terms, goal.Category)
		}
	}
	return terms
}

func matchesAny(candidate model.CandidateModule, terms []string) bool {
	title := strings.ToLower(candidate.Title)
	category := strings.ToLower(candidate.Category)
	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		if strings.Contains(title, t) || strings.Contains(category, t) || strings.Contains(t, category) && category != "" {
			return true
		}
	}
	return false
}
