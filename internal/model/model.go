package model

import (
	"encoding/json"
	"time"
)

// Progress states for a user's work on a module.
const (
	ProgressNotStarted = "not_started"
	ProgressInProgress = "in_progress"
	ProgressCompleted  = "completed"
)

// Content types a generated module can take.
const (
	ContentTypeArticle = "article"
	ContentTypeQuiz    = "quiz"
)

// Difficulty labels carried by generated content.
const (
	DifficultyBeginner     = "Beginner"
	DifficultyIntermediate = "Intermediate"
	DifficultyAdvanced     = "Advanced"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Concept is immutable reference data describing a learnable financial topic.
type Concept struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"not null;uniqueIndex"`
	Category        string    `json:"category" gorm:"index"`
	DifficultyLevel int       `json:"difficulty_level" gorm:"not null"` // 1-10
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// UserConceptKnowledge tracks one user's mastery of one concept.
// Proficiency is bounded to [0, 10]; ConfidenceScore is a running
// estimate of correctness in [0, 1].
type UserConceptKnowledge struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"index:idx_user_concept,unique;not null"`
	ConceptID        uint      `json:"concept_id" gorm:"index:idx_user_concept,unique;not null"`
	Proficiency      int       `json:"proficiency" gorm:"default:0"`
	ConfidenceScore  float64   `json:"confidence_score" gorm:"default:0"`
	TimesEncountered int       `json:"times_encountered" gorm:"default:0"`
	LastAssessedAt   time.Time `json:"last_assessed_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// AssessmentEvent records an applied assessment so replayed submissions
// are not double-counted. Only written when the caller supplies a key.
type AssessmentEvent struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user_id" gorm:"index:idx_user_idem,unique;not null"`
	IdempotencyKey string    `json:"idempotency_key" gorm:"index:idx_user_idem,unique;not null"`
	ConceptID      uint      `json:"concept_id"`
	WasCorrect     bool      `json:"was_correct"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserLearningProfile is derived state, recomputed after every quiz;
// never hand-edited.
type UserLearningProfile struct {
	ID                     uint            `json:"id" gorm:"primaryKey"`
	UserID                 uint            `json:"user_id" gorm:"uniqueIndex;not null"`
	CurrentDifficultyLevel int             `json:"current_difficulty_level" gorm:"default:1"`
	MasteredConceptIDs     json.RawMessage `json:"mastered_concept_ids" gorm:"type:text"`
	StrugglingConceptIDs   json.RawMessage `json:"struggling_concept_ids" gorm:"type:text"`
	Interests              json.RawMessage `json:"interests" gorm:"type:text"` // JSON array of strings
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// UserGoal is a read-only signal from the goal store; the engine never
// writes these.
type UserGoal struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"index"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	TargetAmount  float64   `json:"target_amount"`
	CurrentAmount float64   `json:"current_amount"`
	IsActive      bool      `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UserAccountAggregate is a read-only balance summary from the account
// store, consumed only to build the learning context.
type UserAccountAggregate struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"uniqueIndex"`
	TotalBalance float64   `json:"total_balance"`
	TotalDebt    float64   `json:"total_debt"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContentQueueEntry is a scored candidate waiting for deployment.
// IsDeployed flips true exactly once and never reverts.
type ContentQueueEntry struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	UserID                uint            `json:"user_id" gorm:"index:idx_queue_user"`
	Title                 string          `json:"title" gorm:"not null"`
	Description           string          `json:"description"`
	ContentType           string          `json:"content_type"` // article, quiz
	DifficultyLabel       string          `json:"difficulty"`
	Category              string          `json:"category"`
	DurationMinutes       int             `json:"duration_minutes"`
	XPReward              int             `json:"xp_reward"`
	TargetConceptIDs      json.RawMessage `json:"target_concept_ids" gorm:"type:text"`
	KnowledgeRequirements json.RawMessage `json:"knowledge_requirements" gorm:"type:text"`
	KnowledgeGain         json.RawMessage `json:"knowledge_gain" gorm:"type:text"`
	ContentBody           json.RawMessage `json:"content" gorm:"type:text"`
	ContentHash           string          `json:"content_hash" gorm:"index:idx_queue_user_hash"`
	Priority              int             `json:"priority"` // 1-10
	IsDeployed            bool            `json:"is_deployed" gorm:"default:false;index:idx_queue_user"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// ContentHistoryEntry is the append-only delivery/completion log used
// for dedup and analytics.
type ContentHistoryEntry struct {
	ID                 uint            `json:"id" gorm:"primaryKey"`
	UserID             uint            `json:"user_id" gorm:"index:idx_history_user_hash,unique"`
	ContentHash        string          `json:"content_hash" gorm:"index:idx_history_user_hash,unique"`
	CompletedAt        time.Time       `json:"completed_at"`
	KnowledgeGained    json.RawMessage `json:"knowledge_gained" gorm:"type:text"`
	MasteredConceptIDs json.RawMessage `json:"mastered_concept_ids" gorm:"type:text"`
	CreatedAt          time.Time       `json:"created_at"`
}

// LearningModule is a deployed, user-visible module. Content is
// immutable after deployment.
type LearningModule struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	ModuleUID             string          `json:"module_uid" gorm:"uniqueIndex"`
	UserID                uint            `json:"user_id" gorm:"index"`
	QueueEntryID          *uint           `json:"queue_entry_id"`
	Title                 string          `json:"title" gorm:"not null"`
	Description           string          `json:"description"`
	ContentType           string          `json:"content_type"`
	DifficultyLabel       string          `json:"difficulty"`
	Category              string          `json:"category"`
	DurationMinutes       int             `json:"duration_minutes"`
	XPReward              int             `json:"xp_reward"`
	TargetConceptIDs      json.RawMessage `json:"target_concept_ids" gorm:"type:text"`
	KnowledgeRequirements json.RawMessage `json:"knowledge_requirements" gorm:"type:text"`
	KnowledgeGain         json.RawMessage `json:"knowledge_gain" gorm:"type:text"`
	ContentBody           json.RawMessage `json:"content" gorm:"type:text"`
	ContentHash           string          `json:"content_hash" gorm:"index"`
	Source                string          `json:"source" gorm:"default:'ai_generated'"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// UserLearningProgress tracks one user's state on one module.
// Status only moves forward; ProgressPercentage never decreases.
type UserLearningProgress struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	UserID             uint       `json:"user_id" gorm:"index:idx_user_module,unique"`
	ModuleID           uint       `json:"module_id" gorm:"index:idx_user_module,unique"`
	Status             string     `json:"status" gorm:"default:'not_started'"`
	ProgressPercentage int        `json:"progress_percentage" gorm:"default:0"`
	TimeSpentMinutes   int        `json:"time_spent_minutes" gorm:"default:0"`
	XPAwarded          bool       `json:"xp_awarded" gorm:"default:false"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// UserXPLedger holds the monotonic XP total and its derived level
// fields. The two derived fields are always recomputed together from
// TotalXP.
type UserXPLedger struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	TotalXP       int       `json:"total_xp" gorm:"default:0"`
	CurrentLevel  int       `json:"current_level" gorm:"default:1"`
	XPToNextLevel int       `json:"xp_to_next_level" gorm:"default:100"`
	Version       int       `json:"-" gorm:"default:0"` // optimistic concurrency check
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// QuizResult is an append-only record of a graded quiz submission.
type QuizResult struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	UserID         uint      `json:"user_id" gorm:"index"`
	ModuleID       uint      `json:"module_id"`
	Category       string    `json:"category"`
	Difficulty     string    `json:"difficulty"`
	Score          int       `json:"score"` // 0-100
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	XPEarned       int       `json:"xp_earned"`
	CreatedAt      time.Time `json:"created_at"`
}
