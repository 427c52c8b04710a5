package service

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
)

type ReportService interface {
	BuildReport(userID uint) (*bytes.Buffer, error)
}

type reportService struct {
	progress    ProgressService
	conceptRepo repository.ConceptRepository
}

func NewReportService(progress ProgressService, conceptRepo repository.ConceptRepository) ReportService {
	return &reportService{
		progress:    progress,
		conceptRepo: conceptRepo,
	}
}

// BuildReport renders a one-page PDF summary of the user's learning
// state: level and XP, mastery breakdown, and quiz accuracy.
func (s *reportService) BuildReport(userID uint) (*bytes.Buffer, error) {
	overview, err := s.progress.GetOverview(userID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Learning Progress Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Learning Progress Report")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated %s", time.Now().Format("January 2, 2006")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Experience")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Level %d  -  %d XP total, %d XP to next level",
		overview.Ledger.CurrentLevel, overview.Ledger.TotalXP, overview.Ledger.XPToNextLevel))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Modules completed: %d", overview.CompletedModules))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Concept Mastery")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	if overview.Profile != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Current difficulty level: %d of 10", overview.Profile.CurrentDifficultyLevel))
		pdf.Ln(6)
		s.writeConceptList(pdf, "Mastered", model.DecodeIDs(overview.Profile.MasteredConceptIDs))
		s.writeConceptList(pdf, "Needs work", model.DecodeIDs(overview.Profile.StrugglingConceptIDs))
	} else {
		pdf.Cell(0, 6, "No assessments yet.")
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Quiz Performance")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	if len(overview.QuizResults) == 0 {
		pdf.Cell(0, 6, "No quizzes taken yet.")
		pdf.Ln(6)
	} else {
		totalScore := 0
		for _, result := range overview.QuizResults {
			totalScore += result.Score
		}
		pdf.Cell(0, 6, fmt.Sprintf("Quizzes taken: %d, average score: %d%%",
			len(overview.QuizResults), totalScore/len(overview.QuizResults)))
		pdf.Ln(6)

		recent := overview.QuizResults
		if len(recent) > 5 {
			recent = recent[:5]
		}
		for _, result := range recent {
			pdf.Cell(0, 6, fmt.Sprintf("  %s (%s): %d%% (+%d XP)",
				result.Category, result.Difficulty, result.Score, result.XPEarned))
			pdf.Ln(6)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return &buf, nil
}

func (s *reportService) writeConceptList(pdf *gofpdf.Fpdf, label string, ids []uint) {
	names := "none yet"
	if concepts, err := s.conceptRepo.GetByIDs(ids); err == nil && len(concepts) > 0 {
		names = ""
		for i, concept := range concepts {
			if i > 0 {
				names += ", "
			}
			names += concept.Name
		}
	}
	pdf.MultiCell(0, 6, fmt.Sprintf("%s: %s", label, names), "", "L", false)
}
