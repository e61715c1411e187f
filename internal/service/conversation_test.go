package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

func demoSurvey(t *testing.T, surveys *fakeSurveyRepo) string {
	t.Helper()
	id, err := surveys.Create(context.Background(), &model.Survey{
		OwnerID:      "host_1",
		Title:        "Feedback",
		IntroMessage: "Thanks for taking part!",
		OutroMessage: "All done, thank you!",
		Status:       model.SurveyStatusActive,
		Questions: []model.SurveyQuestion{
			{
				ID:            "q_rate",
				Text:          "How satisfied are you?",
				Type:          model.QuestionTypeRating,
				ScaleMin:      floatPtr(1),
				ScaleMax:      floatPtr(5),
				FollowUpLogic: map[string]string{"4-5": "q_last"},
			},
			{
				ID:   "q_mid",
				Text: "What went wrong?",
				Type: model.QuestionTypeOpenEnded,
			},
			{
				ID:   "q_last",
				Text: "Would you recommend us?",
				Type: model.QuestionTypeYesNo,
			},
		},
	})
	require.NoError(t, err)
	return id
}

type convFixture struct {
	surveys   *fakeSurveyRepo
	sessions  *fakeSessionRepo
	messenger *recordingMessenger
	runner    *Runner
	svc       *ConversationService
}

func newConvFixture(t *testing.T) *convFixture {
	t.Helper()
	surveys := newFakeSurveyRepo()
	sessions := newFakeSessionRepo()
	messenger := &recordingMessenger{}
	runner := NewRunner()
	sentiment := NewSentimentService(llm.NewMockModel(), config.DefaultAIConfig(), sessions, nil)
	svc := NewConversationService(surveys, sessions, nil, messenger, sentiment, runner)
	return &convFixture{
		surveys:   surveys,
		sessions:  sessions,
		messenger: messenger,
		runner:    runner,
		svc:       svc,
	}
}

func TestInitiate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Should create a session and send intro plus first question", func(t *testing.T) {
		f := newConvFixture(t)
		surveyID := demoSurvey(t, f.surveys)

		session, err := f.svc.Initiate(ctx, surveyID, "+32470000001", model.ChannelWhatsApp)
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, 0, session.CurrentQuestionIndex)

		sent := f.messenger.sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "Thanks for taking part!", sent[0])
		assert.Contains(t, sent[1], "**Question 1:** How satisfied are you?")
	})

	t.Run("Should reject a second active session for the same contact", func(t *testing.T) {
		f := newConvFixture(t)
		surveyID := demoSurvey(t, f.surveys)

		_, err := f.svc.Initiate(ctx, surveyID, "+32470000002", model.ChannelWhatsApp)
		require.NoError(t, err)

		_, err = f.svc.Initiate(ctx, surveyID, "+32470000002", model.ChannelWhatsApp)
		assert.ErrorIs(t, err, ErrSessionExists)
	})

	t.Run("Should reject inactive surveys", func(t *testing.T) {
		f := newConvFixture(t)
		id, err := f.surveys.Create(ctx, &model.Survey{
			Status:    model.SurveyStatusDraft,
			Questions: []model.SurveyQuestion{{ID: "q1", Type: model.QuestionTypeText}},
		})
		require.NoError(t, err)

		_, err = f.svc.Initiate(ctx, id, "+32470000003", model.ChannelWhatsApp)
		assert.ErrorIs(t, err, ErrSurveyNotActive)
	})

	t.Run("Should reject unknown surveys", func(t *testing.T) {
		f := newConvFixture(t)
		_, err := f.svc.Initiate(ctx, "missing", "+32470000004", model.ChannelWhatsApp)
		assert.ErrorIs(t, err, ErrSurveyNotFound)
	})
}

func TestHandleAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	start := func(t *testing.T, f *convFixture) *model.ConversationSession {
		t.Helper()
		surveyID := demoSurvey(t, f.surveys)
		session, err := f.svc.Initiate(ctx, surveyID, "+32470000010", model.ChannelWhatsApp)
		require.NoError(t, err)
		return session
	}

	t.Run("Should re-prompt on invalid input without advancing", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)

		require.NoError(t, f.svc.HandleAnswer(ctx, session, "eleven"))

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.CurrentQuestionIndex)
		assert.Empty(t, stored.Responses)

		sent := f.messenger.sent()
		last := sent[len(sent)-1]
		assert.Contains(t, last, "Invalid response")
		assert.Contains(t, last, "NUMBER between 1 and 5")
	})

	t.Run("Should advance to the next question on a valid answer", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)

		require.NoError(t, f.svc.HandleAnswer(ctx, session, "3"))

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.CurrentQuestionIndex)
		assert.Equal(t, 3.0, stored.Responses["q_rate"].NumberValue)

		sent := f.messenger.sent()
		assert.Contains(t, sent[len(sent)-1], "**Question 2:** What went wrong?")
	})

	t.Run("Should follow the branch for high ratings", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)

		require.NoError(t, f.svc.HandleAnswer(ctx, session, "5"))

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.CurrentQuestionIndex)

		sent := f.messenger.sent()
		assert.Contains(t, sent[len(sent)-1], "**Question 3:** Would you recommend us?")
	})

	t.Run("Should complete the session after the last question", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)

		require.NoError(t, f.svc.HandleAnswer(ctx, session, "5"))
		require.NoError(t, f.svc.HandleAnswer(ctx, session, "yes"))
		f.runner.Wait()

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, stored.Completed)
		require.NotNil(t, stored.EndTime)
		assert.False(t, stored.SentimentPending)
		require.NotNil(t, stored.OverallSentiment)

		sent := f.messenger.sent()
		assert.Equal(t, "All done, thank you!", sent[len(sent)-1])
	})

	t.Run("Should drop a duplicate final answer and send one outro", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)
		require.NoError(t, f.svc.HandleAnswer(ctx, session, "5"))

		// Two deliveries of the same message race on the same index.
		first := *session
		second := *session
		require.NoError(t, f.svc.HandleAnswer(ctx, &first, "yes"))
		require.NoError(t, f.svc.HandleAnswer(ctx, &second, "yes"))
		f.runner.Wait()

		outros := 0
		for _, msg := range f.messenger.sent() {
			if msg == "All done, thank you!" {
				outros++
			}
		}
		assert.Equal(t, 1, outros)
	})

	t.Run("Should drop a duplicate mid-survey answer without double advancing", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)

		first := *session
		second := *session
		require.NoError(t, f.svc.HandleAnswer(ctx, &first, "3"))
		require.NoError(t, f.svc.HandleAnswer(ctx, &second, "3"))

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.CurrentQuestionIndex)
	})

	t.Run("Should log inbound and outbound messages on the session", func(t *testing.T) {
		f := newConvFixture(t)
		session := start(t, f)

		require.NoError(t, f.svc.HandleAnswer(ctx, session, "3"))

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		var directions []string
		for _, msg := range stored.Messages {
			directions = append(directions, msg.Direction)
		}
		assert.Contains(t, directions, "inbound")
		assert.Contains(t, directions, "outbound")
	})
}

func TestAutoComplete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("Should close the active session without an outro", func(t *testing.T) {
		f := newConvFixture(t)
		surveyID := demoSurvey(t, f.surveys)
		session, err := f.svc.Initiate(ctx, surveyID, "+32470000020", model.ChannelWhatsApp)
		require.NoError(t, err)
		before := len(f.messenger.sent())

		require.NoError(t, f.svc.AutoComplete(ctx, "+32470000020"))

		stored, err := f.sessions.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, stored.Completed)
		assert.True(t, stored.AutoCompleted)
		assert.Len(t, f.messenger.sent(), before)
	})

	t.Run("Should be a no-op without an active session", func(t *testing.T) {
		f := newConvFixture(t)
		assert.NoError(t, f.svc.AutoComplete(ctx, "+32470000021"))
	})
}

func TestRunner(t *testing.T) {
	t.Parallel()

	t.Run("Should recover from panics in background jobs", func(t *testing.T) {
		runner := NewRunner()
		runner.Go("explode", func(ctx context.Context) {
			panic("boom")
		})
		runner.Wait()
	})

	t.Run("Should wait for all jobs to finish", func(t *testing.T) {
		runner := NewRunner()
		results := make(chan string, 2)
		runner.Go("a", func(ctx context.Context) { results <- "a" })
		runner.Go("b", func(ctx context.Context) { results <- "b" })
		runner.Wait()
		close(results)

		var got []string
		for r := range results {
			got = append(got, r)
		}
		assert.Len(t, got, 2)
		assert.True(t, strings.Contains(strings.Join(got, ""), "a"))
	})
}
