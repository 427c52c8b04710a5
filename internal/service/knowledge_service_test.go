package service

import (
	"math"
	"testing"

	"fincoach-backend/internal/model"
)

func newTestKnowledgeService(concepts ...model.Concept) (KnowledgeService, *fakeKnowledgeRepo, *fakeConceptRepo, *fakeUserRepo) {
	knowledgeRepo := newFakeKnowledgeRepo()
	conceptRepo := newFakeConceptRepo(concepts...)
	userRepo := newFakeUserRepo()
	svc := NewKnowledgeService(knowledgeRepo, conceptRepo, userRepo, 0.3)
	return svc, knowledgeRepo, conceptRepo, userRepo
}

func TestAssessConceptProficiencyDeltas(t *testing.T) {
	tests := []struct {
		name         string
		start        int
		wasCorrect   bool
		attemptScore float64
		want         int
	}{
		{"strong correct answer", 5, true, 0.8, 7},
		{"correct on a weak attempt", 5, true, 0.5, 6},
		{"incorrect answer", 5, false, 0.2, 4},
		{"incorrect clamps at zero", 0, false, 0.0, 0},
		{"correct clamps at ten", 9, true, 1.0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, knowledgeRepo, _, _ := newTestKnowledgeService(
				model.Concept{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
			)
			if tt.start > 0 {
				_ = knowledgeRepo.SaveKnowledge(&model.UserConceptKnowledge{
					UserID: 7, ConceptID: 1, Proficiency: tt.start, TimesEncountered: 3,
				})
			}

			knowledge, err := svc.AssessConcept(7, 1, tt.wasCorrect, tt.attemptScore, "")
			if err != nil {
				t.Fatalf("AssessConcept returned error: %v", err)
			}
			if knowledge.Proficiency != tt.want {
				t.Errorf("proficiency = %d, want %d", knowledge.Proficiency, tt.want)
			}
		})
	}
}

func TestAssessConceptConfidenceSeeding(t *testing.T) {
	svc, _, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Credit Scores", Category: "credit", DifficultyLevel: 3},
	)

	// First ever assessment moves off the 0.5 seed, not off zero.
	knowledge, err := svc.AssessConcept(7, 1, true, 1.0, "")
	if err != nil {
		t.Fatalf("AssessConcept returned error: %v", err)
	}
	if got, want := knowledge.ConfidenceScore, 0.65; math.Abs(got-want) > 1e-9 {
		t.Errorf("confidence after first correct = %v, want %v", got, want)
	}

	knowledge, err = svc.AssessConcept(7, 1, false, 0.0, "")
	if err != nil {
		t.Fatalf("AssessConcept returned error: %v", err)
	}
	if got, want := knowledge.ConfidenceScore, 0.65+0.3*(0-0.65); math.Abs(got-want) > 1e-9 {
		t.Errorf("confidence after miss = %v, want %v", got, want)
	}
	if knowledge.TimesEncountered != 2 {
		t.Errorf("times encountered = %d, want 2", knowledge.TimesEncountered)
	}
}

func TestAssessConceptIdempotency(t *testing.T) {
	svc, _, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Index Funds", Category: "investing", DifficultyLevel: 6},
	)

	first, err := svc.AssessConcept(7, 1, true, 1.0, "quiz-42:0")
	if err != nil {
		t.Fatalf("AssessConcept returned error: %v", err)
	}

	// Replaying the same key must not move anything.
	second, err := svc.AssessConcept(7, 1, true, 1.0, "quiz-42:0")
	if err != nil {
		t.Fatalf("replayed AssessConcept returned error: %v", err)
	}
	if second.Proficiency != first.Proficiency {
		t.Errorf("replay moved proficiency from %d to %d", first.Proficiency, second.Proficiency)
	}
	if second.TimesEncountered != first.TimesEncountered {
		t.Errorf("replay moved times encountered from %d to %d", first.TimesEncountered, second.TimesEncountered)
	}
}

func TestAssessConceptUnknownConcept(t *testing.T) {
	svc, _, _, _ := newTestKnowledgeService()

	if _, err := svc.AssessConcept(7, 99, true, 1.0, ""); err == nil {
		t.Fatal("expected error for unknown concept")
	}
}

func TestApplyKnowledgeGainCapsPerConcept(t *testing.T) {
	svc, knowledgeRepo, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Emergency Funds", Category: "saving", DifficultyLevel: 2},
		model.Concept{ID: 2, Name: "Savings Goals", Category: "saving", DifficultyLevel: 2},
	)
	_ = knowledgeRepo.SaveKnowledge(&model.UserConceptKnowledge{UserID: 7, ConceptID: 1, Proficiency: 3})

	if err := svc.ApplyKnowledgeGain(7, map[uint]int{1: 5, 2: 1}); err != nil {
		t.Fatalf("ApplyKnowledgeGain returned error: %v", err)
	}

	k1, err := knowledgeRepo.GetKnowledge(7, 1)
	if err != nil {
		t.Fatalf("missing knowledge row: %v", err)
	}
	if k1.Proficiency != 5 {
		t.Errorf("gain not capped at +2: proficiency = %d, want 5", k1.Proficiency)
	}

	k2, err := knowledgeRepo.GetKnowledge(7, 2)
	if err != nil {
		t.Fatalf("missing knowledge row: %v", err)
	}
	if k2.Proficiency != 1 {
		t.Errorf("proficiency = %d, want 1", k2.Proficiency)
	}
}

func TestRecomputeLearningProfile(t *testing.T) {
	svc, knowledgeRepo, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
		model.Concept{ID: 2, Name: "Credit Scores", Category: "credit", DifficultyLevel: 3},
		model.Concept{ID: 3, Name: "Index Funds", Category: "investing", DifficultyLevel: 6},
		model.Concept{ID: 4, Name: "Asset Allocation", Category: "investing", DifficultyLevel: 7},
	)
	_ = knowledgeRepo.SaveKnowledge(&model.UserConceptKnowledge{UserID: 7, ConceptID: 1, Proficiency: 9, TimesEncountered: 4})
	_ = knowledgeRepo.SaveKnowledge(&model.UserConceptKnowledge{UserID: 7, ConceptID: 2, Proficiency: 8, TimesEncountered: 3})
	_ = knowledgeRepo.SaveKnowledge(&model.UserConceptKnowledge{UserID: 7, ConceptID: 3, Proficiency: 2, TimesEncountered: 2})
	_ = knowledgeRepo.SaveKnowledge(&model.UserConceptKnowledge{UserID: 7, ConceptID: 4, Proficiency: 5, TimesEncountered: 1})

	profile, err := svc.RecomputeLearningProfile(7)
	if err != nil {
		t.Fatalf("RecomputeLearningProfile returned error: %v", err)
	}

	mastered := model.DecodeIDs(profile.MasteredConceptIDs)
	if len(mastered) != 2 || mastered[0] != 1 || mastered[1] != 2 {
		t.Errorf("mastered = %v, want [1 2]", mastered)
	}
	struggling := model.DecodeIDs(profile.StrugglingConceptIDs)
	if len(struggling) != 1 || struggling[0] != 3 {
		t.Errorf("struggling = %v, want [3]", struggling)
	}
	// 2 of 4 mastered: level = 1 + floor(0.5*9) = 5.
	if profile.CurrentDifficultyLevel != 5 {
		t.Errorf("difficulty level = %d, want 5", profile.CurrentDifficultyLevel)
	}
}

func TestRecomputeLearningProfileNoKnowledge(t *testing.T) {
	svc, _, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
	)

	profile, err := svc.RecomputeLearningProfile(7)
	if err != nil {
		t.Fatalf("RecomputeLearningProfile returned error: %v", err)
	}
	if profile.CurrentDifficultyLevel != 1 {
		t.Errorf("difficulty level = %d, want 1", profile.CurrentDifficultyLevel)
	}
}

func TestSelectConceptsToLearn(t *testing.T) {
	svc, knowledgeRepo, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
		model.Concept{ID: 2, Name: "Emergency Funds", Category: "saving", DifficultyLevel: 2},
		model.Concept{ID: 3, Name: "Credit Scores", Category: "credit", DifficultyLevel: 3},
		model.Concept{ID: 4, Name: "Index Funds", Category: "investing", DifficultyLevel: 6},
		model.Concept{ID: 5, Name: "Withdrawal Strategies", Category: "retirement", DifficultyLevel: 10},
	)
	_ = knowledgeRepo.SaveProfile(&model.UserLearningProfile{
		UserID:                 7,
		CurrentDifficultyLevel: 2,
		MasteredConceptIDs:     model.EncodeIDs([]uint{1}),
		StrugglingConceptIDs:   model.EncodeIDs([]uint{4}),
	})

	selected, err := svc.SelectConceptsToLearn(7, 10)
	if err != nil {
		t.Fatalf("SelectConceptsToLearn returned error: %v", err)
	}

	if len(selected) != 3 {
		t.Fatalf("selected %d concepts, want 3: %+v", len(selected), selected)
	}
	// Struggling concept comes first even though it is far above level.
	if selected[0].ID != 4 {
		t.Errorf("first selection = concept %d, want struggling concept 4", selected[0].ID)
	}
	// Then reachable concepts (difficulty <= level+2) ordered by closeness.
	if selected[1].ID != 2 || selected[2].ID != 3 {
		t.Errorf("reachable selections = [%d %d], want [2 3]", selected[1].ID, selected[2].ID)
	}
	for _, c := range selected {
		if c.ID == 1 {
			t.Error("mastered concept 1 should be excluded")
		}
		if c.ID == 5 {
			t.Error("concept 5 is beyond reach and not struggling, should be excluded")
		}
	}
}

func TestSelectConceptsToLearnNewUser(t *testing.T) {
	svc, _, _, _ := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
		model.Concept{ID: 2, Name: "Index Funds", Category: "investing", DifficultyLevel: 6},
	)

	selected, err := svc.SelectConceptsToLearn(7, 10)
	if err != nil {
		t.Fatalf("SelectConceptsToLearn returned error: %v", err)
	}
	if len(selected) != 1 || selected[0].ID != 1 {
		t.Errorf("new user selection = %+v, want just concept 1", selected)
	}
}

func TestBuildLearningContext(t *testing.T) {
	svc, knowledgeRepo, _, userRepo := newTestKnowledgeService(
		model.Concept{ID: 1, Name: "Credit Scores", Category: "credit", DifficultyLevel: 3},
	)
	_ = knowledgeRepo.SaveProfile(&model.UserLearningProfile{
		UserID:                 7,
		CurrentDifficultyLevel: 3,
		StrugglingConceptIDs:   model.EncodeIDs([]uint{1}),
		Interests:              []byte(`["investing"]`),
	})
	userRepo.goals[7] = []model.UserGoal{
		{UserID: 7, Name: "House deposit", Category: "saving", TargetAmount: 10000, CurrentAmount: 2500, IsActive: true},
	}
	userRepo.aggregates[7] = model.UserAccountAggregate{UserID: 7, TotalBalance: 5000, TotalDebt: 1200}

	lc, err := svc.BuildLearningContext(7)
	if err != nil {
		t.Fatalf("BuildLearningContext returned error: %v", err)
	}
	if lc.CurrentDifficultyLevel != 3 {
		t.Errorf("difficulty level = %d, want 3", lc.CurrentDifficultyLevel)
	}
	if len(lc.StrugglingConcepts) != 1 || lc.StrugglingConcepts[0] != "Credit Scores" {
		t.Errorf("struggling concepts = %v, want [Credit Scores]", lc.StrugglingConcepts)
	}
	if len(lc.Goals) != 1 || lc.Goals[0].Progress != 0.25 {
		t.Errorf("goals = %+v, want one at 25%% progress", lc.Goals)
	}
	if lc.TotalBalance != 5000 || lc.TotalDebt != 1200 {
		t.Errorf("balances = %v/%v, want 5000/1200", lc.TotalBalance, lc.TotalDebt)
	}
}
