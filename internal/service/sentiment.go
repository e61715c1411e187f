package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/config"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/llm"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

const (
	sentimentGatherTimeout = 30 * time.Second
	minScorableChars       = 3
)

const sentimentSystem = `You are a sentiment analyzer for customer feedback. ` +
	`Respond with ONLY a JSON object in this exact format:
{"sentiment": "positive|negative|neutral", "score": -1.0 to 1.0, "confidence": 0.0 to 1.0}`

var positiveWords = []string{"good", "great", "love", "like", "amazing", "excellent", "perfect", "awesome", "nice", "happy"}
var negativeWords = []string{"bad", "hate", "terrible", "awful", "worst", "horrible", "frustrating", "annoying", "poor", "sad"}

// SentimentService scores completed sessions in the background. Scoring
// never runs on the request path; the respondent has already received the
// outro by the time this starts.
type SentimentService struct {
	lm        llm.LanguageModel
	modelName string
	sessions  repository.SessionRepo
	tokens    *TokenService
	timeout   time.Duration
}

func NewSentimentService(lm llm.LanguageModel, cfg *config.AIConfig, sessions repository.SessionRepo, tokens *TokenService) *SentimentService {
	return &SentimentService{
		lm:        lm,
		modelName: cfg.Models.Sentiment,
		sessions:  sessions,
		tokens:    tokens,
		timeout:   sentimentGatherTimeout,
	}
}

type sentimentResult struct {
	questionID string
	score      float64
	ok         bool
}

// ScoreSession scores every answered question with extractable text, then
// persists the per-question scores and their mean. One answer per goroutine;
// answers still unscored when the gather timeout fires count as failed.
// The pending flag is always cleared, even when everything fails.
func (s *SentimentService) ScoreSession(ctx context.Context, session *model.ConversationSession, survey *model.Survey) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make(chan sentimentResult, len(session.Responses))
	launched := 0

	for questionID, answer := range session.Responses {
		question, _ := survey.QuestionByID(questionID)
		if question == nil {
			continue
		}
		text := answer.SentimentText()
		if len(strings.TrimSpace(text)) < minScorableChars {
			continue
		}

		launched++
		go func(questionID, text string, question *model.SurveyQuestion, answer model.StructuredAnswer) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Printf("Sentiment scoring panicked for %s: %v", questionID, rec)
					results <- sentimentResult{questionID: questionID}
				}
			}()
			score, err := s.scoreAnswer(ctx, text, question, &answer)
			if err != nil {
				log.Printf("Sentiment scoring failed for %s: %v", questionID, err)
				results <- sentimentResult{questionID: questionID}
				return
			}
			results <- sentimentResult{questionID: questionID, score: score, ok: true}
		}(questionID, text, question, answer)
	}

	scores := map[string]float64{}
	succeeded := 0

gather:
	for i := 0; i < launched; i++ {
		select {
		case r := <-results:
			if r.ok {
				scores[r.questionID] = r.score
				succeeded++
			} else {
				scores[r.questionID] = 0.0
			}
		case <-ctx.Done():
			log.Printf("Sentiment analysis timed out for session %s", session.ID)
			break gather
		}
	}

	overall := 0.0
	if succeeded > 0 {
		sum := 0.0
		for _, v := range scores {
			sum += v
		}
		overall = sum / float64(len(scores))
	}
	failed := launched > 0 && succeeded == 0

	persistCtx, persistCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer persistCancel()
	if err := s.sessions.SetSentimentResults(persistCtx, session.ID, scores, overall, failed); err != nil {
		log.Printf("Failed to persist sentiment results for %s: %v", session.ID, err)
		return
	}
	log.Printf("Sentiment analysis completed for %s: overall=%.2f scored=%d/%d", session.ID, overall, succeeded, launched)
}

// scoreAnswer returns a sentiment score in [-1, 1] for one answer. Numeric
// answers to numeric questions are banded directly; text answers go through
// the language model with a keyword fallback.
func (s *SentimentService) scoreAnswer(ctx context.Context, text string, question *model.SurveyQuestion, answer *model.StructuredAnswer) (float64, error) {
	if question.Type == model.QuestionTypeNumeric && answer.Kind == model.AnswerKindNumber {
		switch {
		case answer.NumberValue <= 2:
			return -0.5, nil
		case answer.NumberValue == 3:
			return 0.0, nil
		default:
			return 0.5, nil
		}
	}

	score, err := s.scoreWithModel(ctx, text)
	if err != nil {
		log.Printf("LLM sentiment failed, using keyword fallback: %v", err)
		return keywordScore(text), nil
	}
	return score, nil
}

func (s *SentimentService) scoreWithModel(ctx context.Context, text string) (float64, error) {
	limited := truncateRunes(text, 100)
	if s.tokens != nil {
		limited, _ = s.tokens.OptimizePrompt(limited, model.PromptSentimentAnalysis)
	}

	completion, err := s.lm.Complete(ctx, s.modelName, sentimentSystem, limited)
	if err != nil {
		return 0, err
	}

	if s.tokens != nil {
		s.tokens.RecordUsage(ctx, &model.TokenUsageRecord{
			UserID:       "system",
			PromptType:   model.PromptSentimentAnalysis,
			InputTokens:  completion.InputTokens,
			OutputTokens: completion.OutputTokens,
		})
	}

	return parseSentimentScore(completion.Text)
}

func parseSentimentScore(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		// Some models answer with a bare number.
		var n float64
		if _, scanErr := fmt.Sscanf(cleaned, "%f", &n); scanErr == nil {
			return clampScore(n), nil
		}
		return 0, fmt.Errorf("unparseable sentiment response %q: %w", raw, err)
	}
	return clampScore(parsed.Score), nil
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// keywordScore is the offline fallback: count positive and negative keyword
// occurrences and scale the margin.
func keywordScore(text string) float64 {
	lower := strings.ToLower(text)
	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		s := 0.3 + float64(pos)*0.1
		if s > 0.8 {
			s = 0.8
		}
		return s
	case neg > pos:
		s := -0.3 - float64(neg)*0.1
		if s < -0.8 {
			s = -0.8
		}
		return s
	default:
		return 0.0
	}
}
