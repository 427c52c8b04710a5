package service

import (
	"encoding/json"
	"fmt"

	"fincoach-backend/internal/model"
)

// categoryTemplate carries the rule-based lesson material for one
// concept category. Used whenever the external generator cannot deliver.
type categoryTemplate struct {
	articleBody string
	keyIdeas    []string
	quiz        []model.QuizQuestion
}

var defaultTemplate = categoryTemplate{
	articleBody: "%s is a core building block of personal finance. Start by writing down what you already do today, then compare it with the practice described here: small, repeatable habits beat occasional big gestures. Revisit the numbers monthly and adjust one thing at a time.",
	keyIdeas:    []string{"Track before you change", "Small consistent steps", "Review monthly"},
	quiz: []model.QuizQuestion{
		{
			Question:      "What is the most reliable first step when improving how you handle %s?",
			Options:       []string{"Track your current numbers", "Make a large one-time change", "Wait for a better income", "Copy a friend's plan"},
			CorrectAnswer: "Track your current numbers",
		},
		{
			Question:      "How often should you review your approach to %s?",
			Options:       []string{"Monthly", "Only when something goes wrong", "Once a year", "Never, set and forget"},
			CorrectAnswer: "Monthly",
		},
	},
}

var categoryTemplates = map[string]categoryTemplate{
	"budgeting": {
		articleBody: "A budget for %s works when it mirrors how you actually spend. List fixed costs first, give every remaining dollar a job, and keep one flexible category so a surprise does not break the plan. The 50/30/20 split is a starting point, not a rule.",
		keyIdeas:    []string{"Fixed costs first", "Every dollar has a job", "Keep one flexible category"},
		quiz: []model.QuizQuestion{
			{
				Question:      "In the 50/30/20 guideline, what does the 20 refer to?",
				Options:       []string{"Savings and debt payments", "Entertainment", "Housing", "Groceries"},
				CorrectAnswer: "Savings and debt payments",
			},
			{
				Question:      "What should you list first when building a budget around %s?",
				Options:       []string{"Fixed costs", "Wish-list purchases", "Investment picks", "Last year's vacations"},
				CorrectAnswer: "Fixed costs",
			},
		},
	},
	"saving": {
		articleBody: "Saving toward %s is easiest when it is automatic. Move money the day you are paid, keep the fund in an account you do not see daily, and size an emergency cushion at three to six months of essential expenses before chasing other goals.",
		keyIdeas:    []string{"Automate on payday", "Separate account", "3-6 months of essentials"},
		quiz: []model.QuizQuestion{
			{
				Question:      "How large should an emergency fund typically be?",
				Options:       []string{"3-6 months of essential expenses", "One week of pay", "Exactly one month of rent", "10 years of income"},
				CorrectAnswer: "3-6 months of essential expenses",
			},
			{
				Question:      "What makes saving for %s most likely to stick?",
				Options:       []string{"Automating transfers on payday", "Saving whatever is left over", "Keeping cash at home", "Checking the balance daily"},
				CorrectAnswer: "Automating transfers on payday",
			},
		},
	},
	"credit": {
		articleBody: "Your handling of %s is summarized by a credit score, and the two biggest inputs are paying on time and how much of your available credit you use. Keep utilization under 30 percent, never miss a due date, and let old accounts age instead of closing them.",
		keyIdeas:    []string{"Pay on time, always", "Utilization under 30%", "Let accounts age"},
		quiz: []model.QuizQuestion{
			{
				Question:      "Which factor usually weighs most in a credit score?",
				Options:       []string{"Payment history", "Number of bank branches nearby", "Your salary", "Your age"},
				CorrectAnswer: "Payment history",
			},
			{
				Question:      "What credit utilization level is commonly recommended for %s?",
				Options:       []string{"Under 30%", "Exactly 50%", "Over 90%", "It does not matter"},
				CorrectAnswer: "Under 30%",
			},
		},
	},
	"investing": {
		articleBody: "Investing around %s rewards patience more than timing. Diversify across many holdings, favor low fees, and match the investment horizon to when you need the money: decades for retirement accounts, shorter and safer for near-term goals. Compounding does the heavy lifting if you leave it alone.",
		keyIdeas:    []string{"Diversify", "Keep fees low", "Match horizon to goal"},
		quiz: []model.QuizQuestion{
			{
				Question:      "What is the main benefit of diversification?",
				Options:       []string{"It reduces the impact of any single holding failing", "It guarantees profits", "It eliminates taxes", "It doubles returns"},
				CorrectAnswer: "It reduces the impact of any single holding failing",
			},
			{
				Question:      "Why does starting early matter for %s?",
				Options:       []string{"Compounding has more time to work", "Markets only rise early in life", "Fees disappear after ten years", "Brokers pay bonuses to the young"},
				CorrectAnswer: "Compounding has more time to work",
			},
		},
	},
	"debt": {
		articleBody: "Paying down %s works best with a method you can sustain. The avalanche method targets the highest interest rate first and saves the most money; the snowball method clears the smallest balance first and builds momentum. Either way, always cover every minimum payment before putting extra anywhere.",
		keyIdeas:    []string{"Minimums first", "Avalanche saves most", "Snowball builds momentum"},
		quiz: []model.QuizQuestion{
			{
				Question:      "Which payoff method minimizes total interest paid?",
				Options:       []string{"Avalanche (highest rate first)", "Snowball (smallest balance first)", "Paying all debts equally", "Paying the newest debt first"},
				CorrectAnswer: "Avalanche (highest rate first)",
			},
			{
				Question:      "Before putting extra money toward %s, what must be covered?",
				Options:       []string{"Every minimum payment", "A new credit card", "Lottery tickets", "A larger loan"},
				CorrectAnswer: "Every minimum payment",
			},
		},
	},
	"retirement": {
		articleBody: "Planning %s early turns a hard problem into an easy one. Capture any employer match first because it is an immediate return, then raise your contribution rate by one percent each year. Tax-advantaged accounts shelter decades of growth that taxable accounts give away.",
		keyIdeas:    []string{"Capture the full match", "Raise contributions yearly", "Use tax-advantaged accounts"},
		quiz: []model.QuizQuestion{
			{
				Question:      "Why should an employer match be the first retirement priority?",
				Options:       []string{"It is an immediate guaranteed return", "It reduces your salary", "It is taxed twice", "It expires monthly"},
				CorrectAnswer: "It is an immediate guaranteed return",
			},
			{
				Question:      "What is a sustainable way to increase savings for %s?",
				Options:       []string{"Raise the contribution rate by 1% each year", "Wait until age 60 to start", "Invest only in a single stock", "Skip contributions in good years"},
				CorrectAnswer: "Raise the contribution rate by 1% each year",
			},
		},
	},
}

// fallbackCandidates builds deterministic templated modules for the
// target concepts, alternating articles and quizzes.
func fallbackCandidates(targets []model.Concept, count int) []model.CandidateModule {
	if count <= 0 {
		return nil
	}

	candidates := make([]model.CandidateModule, 0, count)
	for i := 0; len(candidates) < count; i++ {
		concept := targets[i%len(targets)]
		template, ok := categoryTemplates[concept.Category]
		if !ok {
			template = defaultTemplate
		}

		// Alternate forms within a pass and flip them on the next pass,
		// so the second pass over the targets emits each concept's
		// missing counterpart instead of a duplicate.
		asQuiz := (i%len(targets)+i/len(targets))%2 == 1
		if asQuiz {
			candidates = append(candidates, templatedQuiz(concept, template))
		} else {
			candidates = append(candidates, templatedArticle(concept, template))
		}

		// Once every target has both forms there is nothing new to emit.
		if i >= len(targets)*2-1 {
			break
		}
	}
	return candidates
}

func templatedArticle(concept model.Concept, template categoryTemplate) model.CandidateModule {
	body, _ := json.Marshal(model.ArticleContent{
		Body:     fmt.Sprintf(template.articleBody, concept.Name),
		KeyIdeas: template.keyIdeas,
	})
	return model.CandidateModule{
		Title:                 fmt.Sprintf("Understanding %s", concept.Name),
		Description:           fmt.Sprintf("A practical introduction to %s.", concept.Name),
		ContentType:           model.ContentTypeArticle,
		DifficultyLabel:       difficultyLabel(concept.DifficultyLevel),
		Category:              concept.Category,
		DurationMinutes:       8,
		XPReward:              40,
		TargetConceptIDs:      []uint{concept.ID},
		KnowledgeRequirements: map[uint]int{concept.ID: requirementFor(concept.DifficultyLevel)},
		KnowledgeGain:         map[uint]int{concept.ID: 1},
		ContentBody:           body,
	}
}

func templatedQuiz(concept model.Concept, template categoryTemplate) model.CandidateModule {
	questions := make([]model.QuizQuestion, len(template.quiz))
	for i, q := range template.quiz {
		questions[i] = q
		if containsFormatVerb(q.Question) {
			questions[i].Question = fmt.Sprintf(q.Question, concept.Name)
		}
		questions[i].ConceptID = concept.ID
	}
	body, _ := json.Marshal(model.QuizContent{Questions: questions})
	return model.CandidateModule{
		Title:                 fmt.Sprintf("Check Your Knowledge: %s", concept.Name),
		Description:           fmt.Sprintf("A short quiz on %s.", concept.Name),
		ContentType:           model.ContentTypeQuiz,
		DifficultyLabel:       difficultyLabel(concept.DifficultyLevel),
		Category:              concept.Category,
		DurationMinutes:       5,
		XPReward:              50,
		TargetConceptIDs:      []uint{concept.ID},
		KnowledgeRequirements: map[uint]int{concept.ID: requirementFor(concept.DifficultyLevel)},
		KnowledgeGain:         map[uint]int{concept.ID: 2},
		ContentBody:           body,
	}
}

func containsFormatVerb(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '%' && s[i+1] == 's' {
			return true
		}
	}
	return false
}
