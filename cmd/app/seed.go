package main

import (
	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
	logger "fincoach-backend/pkg/logging"
)

// seedConcepts loads the personal-finance concept catalog on first run.
// An already-populated catalog is left untouched.
func seedConcepts() {
	conceptRepo := repository.NewConceptRepository()

	count, err := conceptRepo.Count()
	if err != nil {
		logger.Error("could not inspect concept catalog: %v", err)
		return
	}
	if count > 0 {
		logger.Info("concept catalog already seeded (%d concepts)", count)
		return
	}

	concepts := []model.Concept{
		{Name: "Budgeting Basics", Category: "budgeting", DifficultyLevel: 1},
		{Name: "Tracking Expenses", Category: "budgeting", DifficultyLevel: 2},
		{Name: "The 50/30/20 Rule", Category: "budgeting", DifficultyLevel: 3},
		{Name: "Zero-Based Budgeting", Category: "budgeting", DifficultyLevel: 5},
		{Name: "Emergency Funds", Category: "saving", DifficultyLevel: 2},
		{Name: "Savings Goals", Category: "saving", DifficultyLevel: 2},
		{Name: "High-Yield Savings Accounts", Category: "saving", DifficultyLevel: 4},
		{Name: "Certificates of Deposit", Category: "saving", DifficultyLevel: 5},
		{Name: "Credit Scores", Category: "credit", DifficultyLevel: 3},
		{Name: "Credit Card Interest", Category: "credit", DifficultyLevel: 4},
		{Name: "Building Credit History", Category: "credit", DifficultyLevel: 4},
		{Name: "Credit Utilization", Category: "credit", DifficultyLevel: 6},
		{Name: "Debt Snowball vs Avalanche", Category: "debt", DifficultyLevel: 5},
		{Name: "Loan Amortization", Category: "debt", DifficultyLevel: 6},
		{Name: "Debt Consolidation", Category: "debt", DifficultyLevel: 7},
		{Name: "Compound Interest", Category: "investing", DifficultyLevel: 4},
		{Name: "Index Funds", Category: "investing", DifficultyLevel: 6},
		{Name: "Asset Allocation", Category: "investing", DifficultyLevel: 7},
		{Name: "Dollar-Cost Averaging", Category: "investing", DifficultyLevel: 7},
		{Name: "Tax-Advantaged Accounts", Category: "retirement", DifficultyLevel: 8},
		{Name: "Retirement Planning", Category: "retirement", DifficultyLevel: 8},
		{Name: "Withdrawal Strategies", Category: "retirement", DifficultyLevel: 10},
	}

	seeded := 0
	for i := range concepts {
		if err := conceptRepo.Create(&concepts[i]); err != nil {
			logger.Error("failed to seed concept %q: %v", concepts[i].Name, err)
			continue
		}
		seeded++
	}
	logger.Info("seeded %d financial concepts", seeded)
}
