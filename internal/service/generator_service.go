package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"fincoach-backend/internal/llm"
	"fincoach-backend/internal/model"
	logger "fincoach-backend/pkg/logging"
)

type GeneratorService interface {
	GenerateCandidates(ctx context.Context, lc *model.LearningContext, targets []model.Concept, count int) []model.CandidateModule
}

type generatorService struct {
	llmClient llm.Client
	limiter   *rate.Limiter
}

func NewGeneratorService(llmClient llm.Client, ratePerMinute int) GeneratorService {
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &generatorService{
		llmClient: llmClient,
		limiter:   rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute),
	}
}

// GenerateCandidates produces candidate modules targeting the given
// concepts. The LLM path is attempted first; any failure (rate limit,
// timeout, malformed payload) falls back to the rule-based templates so
// a generation cycle always yields content.
func (s *generatorService) GenerateCandidates(ctx context.Context, lc *model.LearningContext, targets []model.Concept, count int) []model.CandidateModule {
	if count <= 0 {
		count = 6
	}
	if len(targets) == 0 {
		return nil
	}

	var candidates []model.CandidateModule
	if s.limiter.Allow() {
		candidates = s.generateFromLLM(ctx, lc, targets, count)
	} else {
		logger.Warn("generation rate limit reached for user %d, using templated content", lc.UserID)
	}

	if len(candidates) < count {
		candidates = append(candidates, fallbackCandidates(targets, count-len(candidates))...)
	}
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

func (s *generatorService) generateFromLLM(ctx context.Context, lc *model.LearningContext, targets []model.Concept, count int) []model.CandidateModule {
	prompt := buildGenerationPrompt(lc, targets, count)

	response, err := s.llmClient.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("external generation failed for user %d: %v", lc.UserID, err)
		return nil
	}

	candidates, err := llm.ParseCandidates(response)
	if err != nil {
		logger.Warn("unparseable generation payload for user %d: %v", lc.UserID, err)
		return nil
	}

	return normalizeCandidates(candidates, targets)
}

func buildGenerationPrompt(lc *model.LearningContext, targets []model.Concept, count int) string {
	var b strings.Builder
	b.WriteString("You are a personal-finance education writer. Generate learning modules as a JSON array.\n")
	fmt.Fprintf(&b, "Produce %d modules, mixing content_type \"article\" and \"quiz\".\n", count)
	b.WriteString("Each module: {title, description, content_type, difficulty, category, duration_minutes, xp_reward, target_concept_ids, knowledge_requirements, knowledge_gain, content}.\n")
	b.WriteString("Quiz content: {\"questions\": [{question, options (exactly 4), correct_answer (one of the options, verbatim), concept_id}]}.\n")
	b.WriteString("Article content: {\"body\": \"...\", \"key_ideas\": [...]}.\n\n")

	b.WriteString("Target concepts (use these IDs):\n")
	for _, concept := range targets {
		fmt.Fprintf(&b, "- id=%d name=%q category=%q difficulty=%d\n",
			concept.ID, concept.Name, concept.Category, concept.DifficultyLevel)
	}

	fmt.Fprintf(&b, "\nLearner difficulty level: %d of 10.\n", lc.CurrentDifficultyLevel)
	if len(lc.StrugglingConcepts) > 0 {
		fmt.Fprintf(&b, "Struggling with: %s.\n", strings.Join(lc.StrugglingConcepts, ", "))
	}
	if len(lc.MasteredConcepts) > 0 {
		fmt.Fprintf(&b, "Already mastered: %s.\n", strings.Join(lc.MasteredConcepts, ", "))
	}
	if len(lc.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(lc.Interests, ", "))
	}
	for _, goal := range lc.Goals {
		fmt.Fprintf(&b, "Active goal: %s (%s), %.0f%% funded.\n", goal.Name, goal.Category, goal.Progress*100)
	}
	if lc.TotalBalance > 0 || lc.TotalDebt > 0 {
		fmt.Fprintf(&b, "Accounts: %.0f balance, %.0f debt.\n", lc.TotalBalance, lc.TotalDebt)
	}

	b.WriteString("\nReturn only the JSON array.")
	return b.String()
}

// normalizeCandidates drops or repairs malformed LLM output so every
// surviving candidate satisfies the content contract: known content
// type, targets drawn from the requested concepts, four options per quiz
// question with a verbatim correct answer, and non-empty
// requirement/gain maps.
func normalizeCandidates(candidates []model.CandidateModule, targets []model.Concept) []model.CandidateModule {
	targetByID := make(map[uint]model.Concept, len(targets))
	for _, t := range targets {
		targetByID[t.ID] = t
	}

	out := make([]model.CandidateModule, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == "" {
			continue
		}
		if c.ContentType != model.ContentTypeArticle && c.ContentType != model.ContentTypeQuiz {
			c.ContentType = model.ContentTypeArticle
		}

		var kept []uint
		for _, id := range c.TargetConceptIDs {
			if _, ok := targetByID[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			kept = []uint{targets[0].ID}
		}
		c.TargetConceptIDs = kept

		primary := targetByID[kept[0]]
		if c.Category == "" {
			c.Category = primary.Category
		}
		if c.DifficultyLabel != model.DifficultyBeginner &&
			c.DifficultyLabel != model.DifficultyIntermediate &&
			c.DifficultyLabel != model.DifficultyAdvanced {
			c.DifficultyLabel = difficultyLabel(primary.DifficultyLevel)
		}
		if c.DurationMinutes <= 0 {
			c.DurationMinutes = 10
		}
		if c.XPReward <= 0 {
			c.XPReward = 50
		}

		if c.ContentType == model.ContentTypeQuiz {
			body, ok := repairQuizBody(c.ContentBody, kept[0])
			if !ok {
				continue
			}
			c.ContentBody = body
		} else if len(c.ContentBody) == 0 {
			continue
		}

		if len(c.KnowledgeRequirements) == 0 {
			c.KnowledgeRequirements = map[uint]int{}
			for _, id := range kept {
				c.KnowledgeRequirements[id] = requirementFor(targetByID[id].DifficultyLevel)
			}
		}
		if len(c.KnowledgeGain) == 0 {
			c.KnowledgeGain = map[uint]int{}
			gain := 1
			if c.ContentType == model.ContentTypeQuiz {
				gain = 2
			}
			for _, id := range kept {
				c.KnowledgeGain[id] = gain
			}
		}

		out = append(out, c)
	}
	return out
}

// repairQuizBody keeps only questions with exactly four options and a
// correct answer matching one of them. A quiz with no valid questions is
// unusable.
func repairQuizBody(raw json.RawMessage, fallbackConceptID uint) (json.RawMessage, bool) {
	var quiz model.QuizContent
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return nil, false
	}

	valid := make([]model.QuizQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if len(q.Options) != 4 || q.Question == "" {
			continue
		}
		match := false
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				match = true
				break
			}
		}
		if !match {
			continue
		}
		if q.ConceptID == 0 {
			q.ConceptID = fallbackConceptID
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, false
	}

	repaired, err := json.Marshal(model.QuizContent{Questions: valid})
	if err != nil {
		return nil, false
	}
	return repaired, true
}

func difficultyLabel(level int) string {
	switch {
	case level <= 3:
		return model.DifficultyBeginner
	case level <= 6:
		return model.DifficultyIntermediate
	default:
		return model.DifficultyAdvanced
	}
}

func requirementFor(level int) int {
	req := level - 2
	if req < 0 {
		req = 0
	}
	return req
}
