package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/cache"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

var (
	ErrSurveyNotFound  = errors.New("survey not found")
	ErrSurveyNotActive = errors.New("survey is not active")
	ErrSessionExists   = errors.New("contact already has an active session")
)

// ConversationService drives the survey progression state machine. Each
// inbound answer is one read-modify-write on a single session document,
// guarded by a conditional update on the question index so interleaved
// messages cannot double-advance.
type ConversationService struct {
	surveys   repository.SurveyRepo
	sessions  repository.SessionRepo
	cached    cache.SessionCache
	interp    *Interpreter
	messenger Messenger
	sentiment *SentimentService
	runner    *Runner
}

func NewConversationService(
	surveys repository.SurveyRepo,
	sessions repository.SessionRepo,
	cached cache.SessionCache,
	messenger Messenger,
	sentiment *SentimentService,
	runner *Runner,
) *ConversationService {
	return &ConversationService{
		surveys:   surveys,
		sessions:  sessions,
		cached:    cached,
		interp:    NewInterpreter(),
		messenger: messenger,
		sentiment: sentiment,
		runner:    runner,
	}
}

// Initiate creates a session for a contact and sends the intro plus the
// first question. At most one active session per contact.
func (s *ConversationService) Initiate(ctx context.Context, surveyID, contact string, channel model.Channel) (*model.ConversationSession, error) {
	survey, err := s.surveys.GetByID(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load survey: %w", err)
	}
	if survey == nil {
		return nil, ErrSurveyNotFound
	}
	if survey.Status != model.SurveyStatusActive {
		return nil, ErrSurveyNotActive
	}
	if len(survey.Questions) == 0 {
		return nil, fmt.Errorf("survey %s has no questions", surveyID)
	}

	existing, err := s.sessions.GetActiveByContact(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing sessions: %w", err)
	}
	if existing != nil {
		return nil, ErrSessionExists
	}

	session := &model.ConversationSession{
		SurveyID:  surveyID,
		Contact:   contact,
		Channel:   channel,
		StartTime: time.Now(),
		Responses: map[string]model.StructuredAnswer{},
	}
	if _, err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.cacheSession(ctx, session)

	if survey.IntroMessage != "" {
		s.deliver(ctx, session, survey.IntroMessage)
	}
	s.deliver(ctx, session, QuestionPrompt(&survey.Questions[0], 0))

	return session, nil
}

// HandleAnswer runs one state machine transition for an inbound raw
// response. Invalid answers re-prompt and change nothing. Persistence
// failures are returned so the transport layer can signal the failure
// instead of faking an advance.
func (s *ConversationService) HandleAnswer(ctx context.Context, session *model.ConversationSession, raw string) error {
	survey, err := s.surveys.GetByID(ctx, session.SurveyID)
	if err != nil {
		return fmt.Errorf("failed to load survey: %w", err)
	}
	if survey == nil {
		return ErrSurveyNotFound
	}
	if session.CurrentQuestionIndex >= len(survey.Questions) {
		return fmt.Errorf("session %s index %d out of range", session.ID, session.CurrentQuestionIndex)
	}

	s.logMessage(ctx, session.ID, "inbound", raw)

	question := &survey.Questions[session.CurrentQuestionIndex]
	answer := s.interp.Interpret(question, raw)
	if answer == nil {
		s.deliver(ctx, session, "❌ Invalid response. "+HelpText(question))
		return nil
	}

	nextIndex := s.nextIndex(survey, question, answer, session.CurrentQuestionIndex)

	if nextIndex >= len(survey.Questions) {
		return s.complete(ctx, session, survey, question.ID, answer)
	}
	return s.advance(ctx, session, survey, question.ID, answer, nextIndex)
}

// nextIndex resolves the follow-up branch, defaulting to index+1. A branch
// pointing at an unknown question id falls through to the default rather
// than derailing the session.
func (s *ConversationService) nextIndex(survey *model.Survey, question *model.SurveyQuestion, answer *model.StructuredAnswer, current int) int {
	if nextID, ok := ResolveFollowUp(question, answer); ok {
		if _, idx := survey.QuestionByID(nextID); idx >= 0 {
			return idx
		}
		log.Printf("Follow-up target %s not found in survey %s, using default transition", nextID, survey.ID)
	}
	return current + 1
}

func (s *ConversationService) advance(ctx context.Context, session *model.ConversationSession, survey *model.Survey, questionID string, answer *model.StructuredAnswer, nextIndex int) error {
	err := s.sessions.AdvanceQuestion(ctx, session.ID, session.CurrentQuestionIndex, nextIndex, questionID, *answer)
	if errors.Is(err, repository.ErrSessionConflict) {
		log.Printf("Dropping concurrent answer for session %s at index %d", session.ID, session.CurrentQuestionIndex)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to advance session: %w", err)
	}

	session.Responses[questionID] = *answer
	session.CurrentQuestionIndex = nextIndex
	s.cacheSession(ctx, session)

	s.deliver(ctx, session, QuestionPrompt(&survey.Questions[nextIndex], nextIndex))
	return nil
}

// complete finishes the session. The conditional write claims the
// transition exactly once; the outro goes out synchronously before any
// sentiment work so the respondent never waits on model scoring.
func (s *ConversationService) complete(ctx context.Context, session *model.ConversationSession, survey *model.Survey, questionID string, answer *model.StructuredAnswer) error {
	endTime := time.Now()
	duration := int(endTime.Sub(session.StartTime).Seconds())

	err := s.sessions.Complete(ctx, session.ID, session.CurrentQuestionIndex, questionID, *answer, endTime, duration)
	if errors.Is(err, repository.ErrSessionConflict) {
		log.Printf("Dropping concurrent completion for session %s", session.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}

	session.Responses[questionID] = *answer
	session.Completed = true
	session.EndTime = &endTime
	session.DurationSeconds = duration
	session.SentimentPending = true
	s.dropCachedSession(ctx, session)

	s.deliver(ctx, session, survey.Outro())

	if s.sentiment != nil && s.runner != nil {
		snapshot := *session
		s.runner.Go("sentiment:"+session.ID, func(ctx context.Context) {
			s.sentiment.ScoreSession(ctx, &snapshot, survey)
		})
	}
	return nil
}

// AutoComplete force-closes a contact's active session, used when a new
// knowledge-base call supersedes an abandoned survey.
func (s *ConversationService) AutoComplete(ctx context.Context, contact string) error {
	session, err := s.sessions.GetActiveByContact(ctx, contact)
	if err != nil {
		return fmt.Errorf("failed to look up active session: %w", err)
	}
	if session == nil {
		return nil
	}
	if err := s.sessions.AutoComplete(ctx, session.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to auto-complete session %s: %w", session.ID, err)
	}
	s.dropCachedSession(ctx, session)
	log.Printf("Auto-completed session %s for %s", session.ID, contact)
	return nil
}

// Results returns a session with its survey definition for reporting.
func (s *ConversationService) Results(ctx context.Context, sessionID string) (*model.ConversationSession, *model.Survey, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, nil, nil
	}
	survey, err := s.surveys.GetByID(ctx, session.SurveyID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load survey: %w", err)
	}
	return session, survey, nil
}

func (s *ConversationService) deliver(ctx context.Context, session *model.ConversationSession, message string) {
	if err := s.messenger.Send(ctx, session.Channel, session.Contact, message); err != nil {
		log.Printf("Failed to deliver message to %s: %v", session.Contact, err)
		return
	}
	s.logMessage(ctx, session.ID, "outbound", message)
}

func (s *ConversationService) logMessage(ctx context.Context, sessionID, direction, content string) {
	msg := model.SessionMessage{
		Type:      "text",
		Content:   content,
		Direction: direction,
		Timestamp: time.Now(),
	}
	if err := s.sessions.AppendMessage(ctx, sessionID, msg); err != nil {
		log.Printf("Failed to log %s message on session %s: %v", direction, sessionID, err)
	}
}

func (s *ConversationService) cacheSession(ctx context.Context, session *model.ConversationSession) {
	if s.cached == nil {
		return
	}
	if err := s.cached.Set(ctx, session); err != nil {
		log.Printf("Failed to cache session %s: %v", session.ID, err)
	}
}

func (s *ConversationService) dropCachedSession(ctx context.Context, session *model.ConversationSession) {
	if s.cached == nil {
		return
	}
	if err := s.cached.Delete(ctx, session); err != nil {
		log.Printf("Failed to evict session %s from cache: %v", session.ID, err)
	}
}
