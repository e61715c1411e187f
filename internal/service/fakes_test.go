package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

// In-memory repository fakes shared across the service tests. They mirror
// the conditional-update semantics of the Mongo layer so concurrency
// behavior can be asserted without a database.

type fakeSurveyRepo struct {
	mu      sync.Mutex
	surveys map[string]*model.Survey
	nextID  int
}

func newFakeSurveyRepo() *fakeSurveyRepo {
	return &fakeSurveyRepo{surveys: map[string]*model.Survey{}}
}

func (r *fakeSurveyRepo) Create(ctx context.Context, survey *model.Survey) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := "survey" + strconv.Itoa(r.nextID)
	cp := *survey
	cp.ID = id
	r.surveys[id] = &cp
	return id, nil
}

func (r *fakeSurveyRepo) GetByID(ctx context.Context, id string) (*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSurveyRepo) GetByOwnerID(ctx context.Context, ownerID string) ([]*model.Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Survey
	for _, s := range r.surveys {
		if s.OwnerID == ownerID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeSurveyRepo) Update(ctx context.Context, survey *model.Survey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *survey
	r.surveys[survey.ID] = &cp
	return nil
}

func (r *fakeSurveyRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.surveys, id)
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.ConversationSession
	nextID   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*model.ConversationSession{}}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *model.ConversationSession) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := "session" + strconv.Itoa(r.nextID)
	session.ID = id
	if session.Responses == nil {
		session.Responses = map[string]model.StructuredAnswer{}
	}
	cp := cloneSession(session)
	r.sessions[id] = cp
	return id, nil
}

func cloneSession(s *model.ConversationSession) *model.ConversationSession {
	cp := *s
	cp.Responses = map[string]model.StructuredAnswer{}
	for k, v := range s.Responses {
		cp.Responses[k] = v
	}
	return &cp
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, id string) (*model.ConversationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (r *fakeSessionRepo) GetActiveByContact(ctx context.Context, contact string) (*model.ConversationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.ConversationSession
	for _, s := range r.sessions {
		if s.Contact == contact && !s.Completed {
			if latest == nil || s.StartTime.After(latest.StartTime) {
				latest = s
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneSession(latest), nil
}

func (r *fakeSessionRepo) GetBySurveyID(ctx context.Context, surveyID string) ([]*model.ConversationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ConversationSession
	for _, s := range r.sessions {
		if s.SurveyID == surveyID {
			out = append(out, cloneSession(s))
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) AdvanceQuestion(ctx context.Context, id string, expectedIndex, nextIndex int, questionID string, answer model.StructuredAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Completed || s.CurrentQuestionIndex != expectedIndex {
		return repository.ErrSessionConflict
	}
	s.Responses[questionID] = answer
	s.CurrentQuestionIndex = nextIndex
	return nil
}

func (r *fakeSessionRepo) Complete(ctx context.Context, id string, expectedIndex int, questionID string, answer model.StructuredAnswer, endTime time.Time, durationSeconds int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Completed || s.CurrentQuestionIndex != expectedIndex {
		return repository.ErrSessionConflict
	}
	s.Responses[questionID] = answer
	s.Completed = true
	s.EndTime = &endTime
	s.DurationSeconds = durationSeconds
	s.SentimentPending = true
	return nil
}

func (r *fakeSessionRepo) AutoComplete(ctx context.Context, id string, endTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Completed {
		return nil
	}
	s.Completed = true
	s.AutoCompleted = true
	s.EndTime = &endTime
	return nil
}

func (r *fakeSessionRepo) SetSentimentResults(ctx context.Context, id string, scores map[string]float64, overall float64, failed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	s.SentimentScores = scores
	s.OverallSentiment = &overall
	s.SentimentPending = false
	s.SentimentFailed = failed
	return nil
}

func (r *fakeSessionRepo) AppendMessage(ctx context.Context, id string, msg model.SessionMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Messages = append(s.Messages, msg)
	}
	return nil
}

type fakeCallRepo struct {
	mu     sync.Mutex
	calls  map[string]*model.KnowledgeCall
	nextID int
}

func newFakeCallRepo() *fakeCallRepo {
	return &fakeCallRepo{calls: map[string]*model.KnowledgeCall{}}
}

func (r *fakeCallRepo) Create(ctx context.Context, call *model.KnowledgeCall) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := "call" + strconv.Itoa(r.nextID)
	cp := *call
	cp.ID = id
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.calls[id] = &cp
	return id, nil
}

func (r *fakeCallRepo) LatestKnowledgeCall(ctx context.Context, contact string, since time.Time) (*model.KnowledgeCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.KnowledgeCall
	for _, c := range r.calls {
		if c.Contact == contact && c.KnowledgeBaseOnly && !c.CreatedAt.Before(since) {
			if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
				latest = c
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeCallRepo) AppendInteraction(ctx context.Context, id string, event model.InteractionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.calls[id]; ok {
		c.Events = append(c.Events, event)
	}
	return nil
}

type fakeUsageRepo struct {
	mu      sync.Mutex
	records []*model.TokenUsageRecord
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{}
}

func (r *fakeUsageRepo) Append(ctx context.Context, record *model.TokenUsageRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	record.TotalTokens = record.InputTokens + record.OutputTokens
	cp := *record
	r.records = append(r.records, &cp)
	return nil
}

func (r *fakeUsageRepo) SumSince(ctx context.Context, userID string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, rec := range r.records {
		if rec.UserID == userID && !rec.Timestamp.Before(since) {
			total += rec.TotalTokens
		}
	}
	return total, nil
}

func (r *fakeUsageRepo) Since(ctx context.Context, userID string, since time.Time) ([]*model.TokenUsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.TokenUsageRecord
	for _, rec := range r.records {
		if rec.UserID == userID && !rec.Timestamp.Before(since) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newFakeDocumentRepo(docs ...*model.Document) *fakeDocumentRepo {
	r := &fakeDocumentRepo{docs: map[string]*model.Document{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *model.Document) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return doc.ID, nil
}

func (r *fakeDocumentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDocumentRepo) GetByIDOrName(ctx context.Context, ownerID, idOrName string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.OwnerID == ownerID && (d.ID == idOrName || d.Name == idOrName) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDocumentRepo) GetSearchable(ctx context.Context, ownerID string) ([]*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Document
	for _, d := range r.docs {
		if d.OwnerID == ownerID && d.Status == model.DocumentStatusProcessed && d.VectorCollection != "" {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDocumentRepo) Update(ctx context.Context, doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
	return nil
}

func (r *fakeDocumentRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.docs, id)
	return nil
}

type fakeChunkRepo struct {
	mu     sync.Mutex
	chunks []*model.Chunk
}

func newFakeChunkRepo(chunks ...*model.Chunk) *fakeChunkRepo {
	return &fakeChunkRepo{chunks: chunks}
}

func (r *fakeChunkRepo) ByCollection(ctx context.Context, collection string) ([]*model.Chunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Chunk
	for _, c := range r.chunks {
		if c.Collection == collection {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) InsertMany(ctx context.Context, chunks []*model.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunks...)
	return nil
}

func (r *fakeChunkRepo) DeleteByCollection(ctx context.Context, collection string) error {
	return nil
}

// recordingMessenger captures outbound messages for assertions.
type recordingMessenger struct {
	mu       sync.Mutex
	messages []string
}

func (m *recordingMessenger) Send(ctx context.Context, channel model.Channel, to, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *recordingMessenger) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// slowModel blocks until the context is cancelled, for timeout tests.
type slowModel struct{}

func (slowModel) Complete(ctx context.Context, modelName, system, prompt string) (*llm.Completion, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var (
	_ repository.SurveyRepo   = (*fakeSurveyRepo)(nil)
	_ repository.SessionRepo  = (*fakeSessionRepo)(nil)
	_ repository.CallRepo     = (*fakeCallRepo)(nil)
	_ repository.UsageRepo    = (*fakeUsageRepo)(nil)
	_ repository.DocumentRepo = (*fakeDocumentRepo)(nil)
	_ repository.ChunkRepo    = (*fakeChunkRepo)(nil)
)
