package model

import "encoding/json"

// CandidateModule is an unpersisted, freshly generated module awaiting
// dedup and scoring. The JSON tags match what the generation prompt asks
// the LLM to produce.
type CandidateModule struct {
	Title                 string          `json:"title"`
	Description           string          `json:"description"`
	ContentType           string          `json:"content_type"`
	DifficultyLabel       string          `json:"difficulty"`
	Category              string          `json:"category"`
	DurationMinutes       int             `json:"duration_minutes"`
	XPReward              int             `json:"xp_reward"`
	TargetConceptIDs      []uint          `json:"target_concept_ids"`
	KnowledgeRequirements map[uint]int    `json:"knowledge_requirements"`
	KnowledgeGain         map[uint]int    `json:"knowledge_gain"`
	ContentBody           json.RawMessage `json:"content"`
}

// ArticleContent is the body shape of an article module.
type ArticleContent struct {
	Body     string   `json:"body"`
	KeyIdeas []string `json:"key_ideas,omitempty"`
}

// QuizContent is the body shape of a quiz module. Every question carries
// exactly four options and the correct answer is one of them verbatim.
type QuizContent struct {
	Questions []QuizQuestion `json:"questions"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	ConceptID     uint     `json:"concept_id,omitempty"`
}

// GoalSignal is the slice of an active goal the generator and scorer see.
type GoalSignal struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Progress float64 `json:"progress"` // 0-1 of target reached
}

// LearningContext aggregates the read-only signals a generation cycle is
// built from.
type LearningContext struct {
	UserID                 uint
	CurrentDifficultyLevel int
	Interests              []string
	Goals                  []GoalSignal
	TotalBalance           float64
	TotalDebt              float64
	StrugglingConcepts     []string
	MasteredConcepts       []string
}

// EncodeIDs serializes a concept-ID set for a text column.
func EncodeIDs(ids []uint) json.RawMessage {
	if ids == nil {
		ids = []uint{}
	}
	raw, _ := json.Marshal(ids)
	return raw
}

// DecodeIDs parses a concept-ID set from a text column; a missing or
// malformed column reads as empty.
func DecodeIDs(raw json.RawMessage) []uint {
	var ids []uint
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}

// EncodeGainMap serializes a conceptID -> proficiency-delta map.
func EncodeGainMap(m map[uint]int) json.RawMessage {
	if m == nil {
		m = map[uint]int{}
	}
	raw, _ := json.Marshal(m)
	return raw
}

// DecodeGainMap parses a conceptID -> proficiency-delta map; malformed
// data reads as empty.
func DecodeGainMap(raw json.RawMessage) map[uint]int {
	m := map[uint]int{}
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[uint]int{}
	}
	return m
}

// DecodeStrings parses a JSON string array from a text column.
func DecodeStrings(raw json.RawMessage) []string {
	var out []string
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
