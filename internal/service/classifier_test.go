package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

func TestIsQuestionLike(t *testing.T) {
	t.Parallel()

	t.Run("Should detect question marks", func(t *testing.T) {
		assert.True(t, IsQuestionLike("pricing?"))
	})

	t.Run("Should detect interrogative words", func(t *testing.T) {
		assert.True(t, IsQuestionLike("how do I cancel"))
		assert.True(t, IsQuestionLike("What plans exist"))
	})

	t.Run("Should detect long messages", func(t *testing.T) {
		assert.True(t, IsQuestionLike("tell me everything about the premium plan pricing"))
	})

	t.Run("Should not flag short plain answers", func(t *testing.T) {
		assert.False(t, IsQuestionLike("5"))
		assert.False(t, IsQuestionLike("bad service"))
		assert.False(t, IsQuestionLike("yes"))
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()
	now := time.Now()
	const contact = "+1234567890"

	newClassifier := func(sessions *fakeSessionRepo, calls *fakeCallRepo) *Classifier {
		return NewClassifier(sessions, calls, nil)
	}

	seedSession := func(t *testing.T, sessions *fakeSessionRepo, startTime time.Time) {
		t.Helper()
		_, err := sessions.Create(context.Background(), &model.ConversationSession{
			SurveyID:  "survey1",
			Contact:   contact,
			Channel:   model.ChannelWhatsApp,
			StartTime: startTime,
		})
		require.NoError(t, err)
	}

	seedCall := func(t *testing.T, calls *fakeCallRepo, createdAt time.Time) {
		t.Helper()
		_, err := calls.Create(context.Background(), &model.KnowledgeCall{
			Contact:           contact,
			KnowledgeBaseOnly: true,
			CreatedAt:         createdAt,
		})
		require.NoError(t, err)
	}

	t.Run("Should route question-like text to knowledge after a recent call", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()
		seedSession(t, sessions, now.Add(-5*time.Minute))
		seedCall(t, calls, now.Add(-10*time.Minute))

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "what plans do you offer?", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassKnowledgeQuery, verdict.Class)
		require.NotNil(t, verdict.Call)
	})

	t.Run("Should route the same text to the survey without knowledge activity", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()
		seedSession(t, sessions, now.Add(-5*time.Minute))

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "what plans do you offer?", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassSurveyAnswer, verdict.Class)
		require.NotNil(t, verdict.Session)
	})

	t.Run("Should treat non-question text as a survey answer despite a recent call", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()
		seedSession(t, sessions, now.Add(-5*time.Minute))
		seedCall(t, calls, now.Add(-10*time.Minute))

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "5", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassSurveyAnswer, verdict.Class)
	})

	t.Run("Should ignore knowledge calls older than the question window", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()
		seedSession(t, sessions, now.Add(-5*time.Minute))
		seedCall(t, calls, now.Add(-45*time.Minute))

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "what plans do you offer?", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassSurveyAnswer, verdict.Class)
	})

	t.Run("Should leave messages without a session unclassified", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "hello there", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassUnclassified, verdict.Class)
	})

	t.Run("Should override a stale session when knowledge activity exists", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()
		seedSession(t, sessions, now.Add(-3*time.Hour))
		seedCall(t, calls, now.Add(-45*time.Minute))

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "5", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassKnowledgeQuery, verdict.Class)
		require.NotNil(t, verdict.Call)
	})

	t.Run("Should keep a stale session on the survey path without knowledge activity", func(t *testing.T) {
		sessions := newFakeSessionRepo()
		calls := newFakeCallRepo()
		seedSession(t, sessions, now.Add(-3*time.Hour))

		verdict, err := newClassifier(sessions, calls).Classify(context.Background(), contact, "5", now)
		require.NoError(t, err)
		assert.Equal(t, model.ClassSurveyAnswer, verdict.Class)
	})
}
