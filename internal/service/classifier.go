package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/cache"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

const (
	knowledgeCallWindow = 24 * time.Hour
	questionWindow      = 30 * time.Minute
	staleSessionAge     = 2 * time.Hour
)

var interrogativeWords = map[string]bool{
	"what": true, "how": true, "when": true, "where": true, "why": true,
	"which": true, "who": true, "can": true, "could": true, "would": true,
	"should": true, "is": true, "are": true, "does": true, "do": true,
}

// Verdict is a classification plus the records that drove it, so the caller
// does not have to re-query.
type Verdict struct {
	Class   model.Classification
	Session *model.ConversationSession
	Call    *model.KnowledgeCall
}

// Classifier routes inbound messages between the survey flow and the
// knowledge assistant. A respondent asking a product question mid-survey
// must not have it rejected as an out-of-range answer, so recent knowledge
// activity plus question-likeness wins over an active session.
type Classifier struct {
	sessions repository.SessionRepo
	calls    repository.CallRepo
	cached   cache.SessionCache
}

func NewClassifier(sessions repository.SessionRepo, calls repository.CallRepo, cached cache.SessionCache) *Classifier {
	return &Classifier{
		sessions: sessions,
		calls:    calls,
		cached:   cached,
	}
}

// Classify decides how an inbound message should be handled. Decision order:
//  1. A knowledge call within the last 30 minutes plus a question-like
//     message means a knowledge query.
//  2. No active session means the message is unclassified chatter.
//  3. A stale session (older than 2 hours) with any knowledge call in the
//     last 24 hours is overridden to a knowledge query; otherwise the
//     message is a survey answer for the active session.
func (c *Classifier) Classify(ctx context.Context, contact, text string, now time.Time) (*Verdict, error) {
	call, err := c.calls.LatestKnowledgeCall(ctx, contact, now.Add(-knowledgeCallWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to look up knowledge calls: %w", err)
	}

	if call != nil && now.Sub(call.CreatedAt) <= questionWindow && IsQuestionLike(text) {
		return &Verdict{Class: model.ClassKnowledgeQuery, Call: call}, nil
	}

	session, err := c.activeSession(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	if session == nil {
		return &Verdict{Class: model.ClassUnclassified, Call: call}, nil
	}

	if now.Sub(session.StartTime) > staleSessionAge && call != nil {
		log.Printf("Stale session %s for %s superseded by knowledge call %s", session.ID, contact, call.ID)
		return &Verdict{Class: model.ClassKnowledgeQuery, Session: session, Call: call}, nil
	}

	return &Verdict{Class: model.ClassSurveyAnswer, Session: session, Call: call}, nil
}

func (c *Classifier) activeSession(ctx context.Context, contact string) (*model.ConversationSession, error) {
	if c.cached != nil {
		session, err := c.cached.GetByContact(ctx, contact)
		if err != nil {
			log.Printf("Session cache lookup failed for %s: %v", contact, err)
		} else if session != nil && session.Active() {
			return session, nil
		}
	}
	return c.sessions.GetActiveByContact(ctx, contact)
}

// IsQuestionLike reports whether a message reads like a question: it has an
// interrogative word, a question mark, or more than five words.
func IsQuestionLike(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 5 {
		return true
	}
	for _, w := range words {
		if interrogativeWords[strings.Trim(w, ".,!¿")] {
			return true
		}
	}
	return false
}
