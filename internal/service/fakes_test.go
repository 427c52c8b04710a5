package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fincoach-backend/internal/model"
	"fincoach-backend/internal/repository"
)

// In-memory repository fakes shared by the service tests.

type fakeConceptRepo struct {
	concepts []model.Concept
	nextID   uint
}

func newFakeConceptRepo(concepts ...model.Concept) *fakeConceptRepo {
	r := &fakeConceptRepo{nextID: 1}
	for i := range concepts {
		_ = r.Create(&concepts[i])
	}
	return r
}

func (r *fakeConceptRepo) GetAll() ([]model.Concept, error) {
	out := append([]model.Concept(nil), r.concepts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DifficultyLevel != out[j].DifficultyLevel {
			return out[i].DifficultyLevel < out[j].DifficultyLevel
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeConceptRepo) GetByID(conceptID uint) (*model.Concept, error) {
	for i := range r.concepts {
		if r.concepts[i].ID == conceptID {
			c := r.concepts[i]
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeConceptRepo) GetByIDs(conceptIDs []uint) ([]model.Concept, error) {
	var out []model.Concept
	for _, id := range conceptIDs {
		if c, err := r.GetByID(id); err == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeConceptRepo) Create(concept *model.Concept) error {
	if concept.ID == 0 {
		concept.ID = r.nextID
	}
	if concept.ID >= r.nextID {
		r.nextID = concept.ID + 1
	}
	r.concepts = append(r.concepts, *concept)
	return nil
}

func (r *fakeConceptRepo) Count() (int64, error) {
	return int64(len(r.concepts)), nil
}

func (r *fakeConceptRepo) MaxDifficulty() (int, error) {
	max := 0
	for _, c := range r.concepts {
		if c.DifficultyLevel > max {
			max = c.DifficultyLevel
		}
	}
	if max == 0 {
		max = 10
	}
	return max, nil
}

type fakeKnowledgeRepo struct {
	knowledge map[string]model.UserConceptKnowledge
	events    map[string]bool
	profiles  map[uint]model.UserLearningProfile
	nextID    uint
}

func newFakeKnowledgeRepo() *fakeKnowledgeRepo {
	return &fakeKnowledgeRepo{
		knowledge: map[string]model.UserConceptKnowledge{},
		events:    map[string]bool{},
		profiles:  map[uint]model.UserLearningProfile{},
		nextID:    1,
	}
}

func knowledgeKey(userID, conceptID uint) string {
	return fmt.Sprintf("%d:%d", userID, conceptID)
}

func (r *fakeKnowledgeRepo) GetKnowledge(userID, conceptID uint) (*model.UserConceptKnowledge, error) {
	if k, ok := r.knowledge[knowledgeKey(userID, conceptID)]; ok {
		copy := k
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeKnowledgeRepo) GetAllKnowledge(userID uint) ([]model.UserConceptKnowledge, error) {
	var out []model.UserConceptKnowledge
	for _, k := range r.knowledge {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConceptID < out[j].ConceptID })
	return out, nil
}

func (r *fakeKnowledgeRepo) SaveKnowledge(knowledge *model.UserConceptKnowledge) error {
	if knowledge.ID == 0 {
		knowledge.ID = r.nextID
		r.nextID++
	}
	r.knowledge[knowledgeKey(knowledge.UserID, knowledge.ConceptID)] = *knowledge
	return nil
}

func (r *fakeKnowledgeRepo) HasAssessmentEvent(userID uint, key string) (bool, error) {
	return r.events[fmt.Sprintf("%d:%s", userID, key)], nil
}

func (r *fakeKnowledgeRepo) CreateAssessmentEvent(event *model.AssessmentEvent) error {
	k := fmt.Sprintf("%d:%s", event.UserID, event.IdempotencyKey)
	if r.events[k] {
		return fmt.Errorf("duplicate assessment event %s", k)
	}
	r.events[k] = true
	return nil
}

func (r *fakeKnowledgeRepo) GetProfile(userID uint) (*model.UserLearningProfile, error) {
	if p, ok := r.profiles[userID]; ok {
		copy := p
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeKnowledgeRepo) SaveProfile(profile *model.UserLearningProfile) error {
	if profile.ID == 0 {
		profile.ID = r.nextID
		r.nextID++
	}
	r.profiles[profile.UserID] = *profile
	return nil
}

type fakeUserRepo struct {
	users      []model.User
	goals      map[uint][]model.UserGoal
	aggregates map[uint]model.UserAccountAggregate
}

func newFakeUserRepo(users ...model.User) *fakeUserRepo {
	return &fakeUserRepo{
		users:      users,
		goals:      map[uint][]model.UserGoal{},
		aggregates: map[uint]model.UserAccountAggregate{},
	}
}

func (r *fakeUserRepo) GetAllUsers() ([]model.User, error) {
	return append([]model.User(nil), r.users...), nil
}

func (r *fakeUserRepo) GetUserByID(userID uint) (*model.User, error) {
	for i := range r.users {
		if r.users[i].ID == userID {
			u := r.users[i]
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetActiveGoals(userID uint) ([]model.UserGoal, error) {
	return r.goals[userID], nil
}

func (r *fakeUserRepo) GetAccountAggregate(userID uint) (*model.UserAccountAggregate, error) {
	if a, ok := r.aggregates[userID]; ok {
		copy := a
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

type fakeProgressRepo struct {
	progress    map[string]model.UserLearningProgress
	ledgers     map[uint]model.UserXPLedger
	quizResults []model.QuizResult
	nextID      uint

	// ledgerConflicts forces the next N ledger writes to report a lost
	// race, exercising the retry path.
	ledgerConflicts int
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{
		progress: map[string]model.UserLearningProgress{},
		ledgers:  map[uint]model.UserXPLedger{},
		nextID:   1,
	}
}

func progressKey(userID, moduleID uint) string {
	return fmt.Sprintf("%d:%d", userID, moduleID)
}

func (r *fakeProgressRepo) GetProgress(userID, moduleID uint) (*model.UserLearningProgress, error) {
	if p, ok := r.progress[progressKey(userID, moduleID)]; ok {
		copy := p
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeProgressRepo) GetProgressByUser(userID uint) ([]model.UserLearningProgress, error) {
	var out []model.UserLearningProgress
	for _, p := range r.progress {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out, nil
}

func (r *fakeProgressRepo) SaveProgress(progress *model.UserLearningProgress) error {
	if progress.ID == 0 {
		progress.ID = r.nextID
		r.nextID++
	}
	r.progress[progressKey(progress.UserID, progress.ModuleID)] = *progress
	return nil
}

func (r *fakeProgressRepo) GetLedger(userID uint) (*model.UserXPLedger, error) {
	if l, ok := r.ledgers[userID]; ok {
		copy := l
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (r *fakeProgressRepo) SaveLedger(ledger *model.UserXPLedger) error {
	if r.ledgerConflicts > 0 {
		r.ledgerConflicts--
		return repository.ErrConflict
	}
	if ledger.ID == 0 {
		if _, exists := r.ledgers[ledger.UserID]; exists {
			return repository.ErrConflict
		}
		ledger.ID = r.nextID
		r.nextID++
		r.ledgers[ledger.UserID] = *ledger
		return nil
	}
	if current, ok := r.ledgers[ledger.UserID]; ok && current.Version != ledger.Version {
		return repository.ErrConflict
	}
	ledger.Version++
	r.ledgers[ledger.UserID] = *ledger
	return nil
}

func (r *fakeProgressRepo) CreateQuizResult(result *model.QuizResult) error {
	result.ID = r.nextID
	r.nextID++
	r.quizResults = append(r.quizResults, *result)
	return nil
}

func (r *fakeProgressRepo) GetQuizResults(userID uint) ([]model.QuizResult, error) {
	var out []model.QuizResult
	for i := len(r.quizResults) - 1; i >= 0; i-- {
		if r.quizResults[i].UserID == userID {
			out = append(out, r.quizResults[i])
		}
	}
	return out, nil
}

type fakeContentRepo struct {
	queue    []model.ContentQueueEntry
	modules  []model.LearningModule
	history  []model.ContentHistoryEntry
	progress *fakeProgressRepo
	nextID   uint
}

func newFakeContentRepo(progress *fakeProgressRepo) *fakeContentRepo {
	return &fakeContentRepo{progress: progress, nextID: 1}
}

func (r *fakeContentRepo) EnqueueEntries(entries []model.ContentQueueEntry) error {
	for i := range entries {
		entries[i].ID = r.nextID
		r.nextID++
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = time.Now()
		}
		r.queue = append(r.queue, entries[i])
	}
	return nil
}

func (r *fakeContentRepo) GetQueueHashes(userID uint) ([]string, error) {
	var out []string
	for _, e := range r.queue {
		if e.UserID == userID {
			out = append(out, e.ContentHash)
		}
	}
	return out, nil
}

func (r *fakeContentRepo) GetHistoryHashes(userID uint) ([]string, error) {
	var out []string
	for _, h := range r.history {
		if h.UserID == userID {
			out = append(out, h.ContentHash)
		}
	}
	return out, nil
}

func (r *fakeContentRepo) CreateHistoryEntry(entry *model.ContentHistoryEntry) error {
	for _, h := range r.history {
		if h.UserID == entry.UserID && h.ContentHash == entry.ContentHash {
			return fmt.Errorf("duplicate history entry for user %d", entry.UserID)
		}
	}
	entry.ID = r.nextID
	r.nextID++
	r.history = append(r.history, *entry)
	return nil
}

func (r *fakeContentRepo) GetUndeployedTop(userID uint, limit int) ([]model.ContentQueueEntry, error) {
	var out []model.ContentQueueEntry
	for _, e := range r.queue {
		if e.UserID == userID && !e.IsDeployed {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeContentRepo) Deploy(entry *model.ContentQueueEntry, module *model.LearningModule) (bool, error) {
	for i := range r.queue {
		if r.queue[i].ID == entry.ID {
			if r.queue[i].IsDeployed {
				return false, nil
			}
			r.queue[i].IsDeployed = true
			module.ID = r.nextID
			r.nextID++
			r.modules = append(r.modules, *module)
			return true, nil
		}
	}
	return false, repository.ErrNotFound
}

func (r *fakeContentRepo) GetModule(moduleID uint) (*model.LearningModule, error) {
	for i := range r.modules {
		if r.modules[i].ID == moduleID {
			m := r.modules[i]
			return &m, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeContentRepo) GetModulesByUser(userID uint) ([]model.LearningModule, error) {
	var out []model.LearningModule
	for _, m := range r.modules {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeContentRepo) CountQueue(userID uint, deployed bool) (int64, error) {
	var n int64
	for _, e := range r.queue {
		if e.UserID == userID && e.IsDeployed == deployed {
			n++
		}
	}
	return n, nil
}

func (r *fakeContentRepo) CountActiveModules(userID uint) (int64, error) {
	var n int64
	for _, m := range r.modules {
		if m.UserID != userID {
			continue
		}
		if r.progress != nil {
			if p, err := r.progress.GetProgress(userID, m.ID); err == nil && p.Status == model.ProgressCompleted {
				continue
			}
		}
		n++
	}
	return n, nil
}

func (r *fakeContentRepo) LatestQueueEntryAt(userID uint) (*time.Time, error) {
	var latest *time.Time
	for i := range r.queue {
		if r.queue[i].UserID != userID {
			continue
		}
		t := r.queue[i].CreatedAt
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest, nil
}

// addModule seeds a deployed module directly, bypassing the queue.
func (r *fakeContentRepo) addModule(module model.LearningModule) model.LearningModule {
	module.ID = r.nextID
	r.nextID++
	r.modules = append(r.modules, module)
	return module
}

type fakeLLMClient struct {
	response string
	err      error
	prompts  []string
}

func (c *fakeLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}
