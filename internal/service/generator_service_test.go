package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fincoach-backend/internal/model"
)

var generatorTargets = []model.Concept{
	{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
	{ID: 2, Name: "Emergency Funds", Category: "saving", DifficultyLevel: 2},
}

func TestGenerateCandidatesFallsBackOnLLMFailure(t *testing.T) {
	client := &fakeLLMClient{err: errors.New("connection refused")}
	svc := NewGeneratorService(client, 10)

	lc := &model.LearningContext{UserID: 7, CurrentDifficultyLevel: 1}
	candidates := svc.GenerateCandidates(context.Background(), lc, generatorTargets, 6)

	if len(candidates) == 0 {
		t.Fatal("LLM failure must still yield templated candidates")
	}
	for i, c := range candidates {
		if c.Title == "" {
			t.Errorf("candidate %d has no title", i)
		}
		if c.ContentType != model.ContentTypeArticle && c.ContentType != model.ContentTypeQuiz {
			t.Errorf("candidate %d has content type %q", i, c.ContentType)
		}
		if len(c.TargetConceptIDs) == 0 {
			t.Errorf("candidate %d targets no concepts", i)
		}
		if len(c.KnowledgeGain) == 0 {
			t.Errorf("candidate %d declares no knowledge gain", i)
		}
		if c.ContentType == model.ContentTypeQuiz {
			var quiz model.QuizContent
			if err := json.Unmarshal(c.ContentBody, &quiz); err != nil {
				t.Errorf("candidate %d quiz body does not parse: %v", i, err)
				continue
			}
			for _, q := range quiz.Questions {
				if len(q.Options) != 4 {
					t.Errorf("templated question has %d options, want 4", len(q.Options))
				}
			}
		}
	}
}

func TestGenerateCandidatesUsesLLMOutput(t *testing.T) {
	payload := `[{
		"title": "Why Emergency Funds Matter",
		"description": "Three months of expenses, explained.",
		"content_type": "article",
		"difficulty": "Beginner",
		"category": "saving",
		"duration_minutes": 8,
		"xp_reward": 40,
		"target_concept_ids": [2],
		"content": {"body": "Start with a small buffer...", "key_ideas": ["Pay yourself first"]}
	}]`
	client := &fakeLLMClient{response: payload}
	svc := NewGeneratorService(client, 10)

	lc := &model.LearningContext{UserID: 7, CurrentDifficultyLevel: 1}
	candidates := svc.GenerateCandidates(context.Background(), lc, generatorTargets, 1)

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	c := candidates[0]
	if c.Title != "Why Emergency Funds Matter" {
		t.Errorf("title = %q, want the LLM title", c.Title)
	}
	if len(c.TargetConceptIDs) != 1 || c.TargetConceptIDs[0] != 2 {
		t.Errorf("targets = %v, want [2]", c.TargetConceptIDs)
	}
	// Missing requirement/gain maps get defaults.
	if c.KnowledgeGain[2] != 1 {
		t.Errorf("article gain = %d, want 1", c.KnowledgeGain[2])
	}
	if len(client.prompts) != 1 {
		t.Fatalf("LLM called %d times, want 1", len(client.prompts))
	}
}

func TestGenerateCandidatesRespectsRateLimit(t *testing.T) {
	client := &fakeLLMClient{response: "[]"}
	svc := NewGeneratorService(client, 1) // 1 call per minute, burst 1

	lc := &model.LearningContext{UserID: 7, CurrentDifficultyLevel: 1}
	svc.GenerateCandidates(context.Background(), lc, generatorTargets, 2)
	candidates := svc.GenerateCandidates(context.Background(), lc, generatorTargets, 2)

	if len(client.prompts) != 1 {
		t.Errorf("LLM called %d times, want 1 (second call rate limited)", len(client.prompts))
	}
	if len(candidates) == 0 {
		t.Error("rate-limited call must still yield templated candidates")
	}
}

func TestGenerateCandidatesNoTargets(t *testing.T) {
	svc := NewGeneratorService(&fakeLLMClient{}, 10)
	if got := svc.GenerateCandidates(context.Background(), &model.LearningContext{UserID: 7}, nil, 6); got != nil {
		t.Errorf("no targets should yield nil, got %d candidates", len(got))
	}
}

func TestNormalizeCandidatesRepairsQuiz(t *testing.T) {
	badQuiz, _ := json.Marshal(model.QuizContent{Questions: []model.QuizQuestion{
		{
			Question:      "Which account is best for an emergency fund?",
			Options:       []string{"Checking", "High-yield savings", "Brokerage", "Cash at home"},
			CorrectAnswer: "High-yield savings",
		},
		{
			Question:      "Too few options",
			Options:       []string{"a", "b"},
			CorrectAnswer: "a",
		},
		{
			Question:      "Answer not among options",
			Options:       []string{"a", "b", "c", "d"},
			CorrectAnswer: "e",
		},
	}})

	candidates := normalizeCandidates([]model.CandidateModule{
		{
			Title:            "Emergency Fund Quiz",
			ContentType:      model.ContentTypeQuiz,
			TargetConceptIDs: []uint{2},
			ContentBody:      badQuiz,
		},
		{
			Title:            "Hopeless Quiz",
			ContentType:      model.ContentTypeQuiz,
			TargetConceptIDs: []uint{2},
			ContentBody:      json.RawMessage(`{"questions":[]}`),
		},
		{
			// Unknown targets fall back to the first requested concept.
			Title:            "Off-Target Article",
			ContentType:      model.ContentTypeArticle,
			TargetConceptIDs: []uint{99},
			ContentBody:      json.RawMessage(`{"body":"text"}`),
		},
	}, generatorTargets)

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 (hopeless quiz dropped)", len(candidates))
	}

	var quiz model.QuizContent
	if err := json.Unmarshal(candidates[0].ContentBody, &quiz); err != nil {
		t.Fatalf("repaired quiz body does not parse: %v", err)
	}
	if len(quiz.Questions) != 1 {
		t.Errorf("repaired quiz kept %d questions, want 1", len(quiz.Questions))
	}
	if quiz.Questions[0].ConceptID != 2 {
		t.Errorf("question concept = %d, want fallback to 2", quiz.Questions[0].ConceptID)
	}

	article := candidates[1]
	if len(article.TargetConceptIDs) != 1 || article.TargetConceptIDs[0] != 1 {
		t.Errorf("off-target article targets = %v, want [1]", article.TargetConceptIDs)
	}
	if article.Category != "budgeting" {
		t.Errorf("article category = %q, want filled from concept", article.Category)
	}
	if article.DurationMinutes != 10 || article.XPReward != 50 {
		t.Errorf("defaults not applied: duration %d, xp %d", article.DurationMinutes, article.XPReward)
	}
}

func TestFallbackCandidatesAreDistinct(t *testing.T) {
	concepts := []model.Concept{
		{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
		{ID: 2, Name: "Emergency Funds", Category: "saving", DifficultyLevel: 2},
		{ID: 3, Name: "Credit Scores", Category: "credit", DifficultyLevel: 3},
	}

	tests := []struct {
		name    string
		targets []model.Concept
		count   int
		want    int // capped at two forms per target
	}{
		{"single target", concepts[:1], 6, 2},
		{"two targets", concepts[:2], 3, 3},
		{"two targets full second pass", concepts[:2], 6, 4},
		{"three targets", concepts[:3], 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := fallbackCandidates(tt.targets, tt.count)
			if len(candidates) != tt.want {
				t.Fatalf("got %d candidates, want %d", len(candidates), tt.want)
			}

			seen := map[string]bool{}
			types := map[string]int{}
			for _, c := range candidates {
				hash := ContentHash(c.Title, c.ContentBody)
				if seen[hash] {
					t.Errorf("duplicate templated content %q", c.Title)
				}
				seen[hash] = true
				types[c.ContentType]++
			}

			// Any batch of two or more must mix both forms.
			if len(candidates) >= 2 {
				if types[model.ContentTypeArticle] == 0 {
					t.Error("batch contains no articles")
				}
				if types[model.ContentTypeQuiz] == 0 {
					t.Error("batch contains no quizzes")
				}
			}
		})
	}
}
