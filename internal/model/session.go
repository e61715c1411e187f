package model

import "time"

// AnswerKind tags the variant stored in a StructuredAnswer.
type AnswerKind string

const (
	AnswerKindChoice  AnswerKind = "choice"
	AnswerKindBool    AnswerKind = "bool"
	AnswerKindNumber  AnswerKind = "number"
	AnswerKindText    AnswerKind = "text"
)

// StructuredAnswer is the parsed form of a raw response, keyed by question
// type. RawResponse is always kept for audit.
type StructuredAnswer struct {
	Kind        AnswerKind `json:"kind" bson:"kind"`
	ChoiceIndex int        `json:"choiceIndex,omitempty" bson:"choiceIndex,omitempty"`
	ChoiceText  string     `json:"choiceText,omitempty" bson:"choiceText,omitempty"`
	BoolValue   bool       `json:"boolValue,omitempty" bson:"boolValue,omitempty"`
	NumberValue float64    `json:"numberValue,omitempty" bson:"numberValue,omitempty"`
	Text        string     `json:"text,omitempty" bson:"text,omitempty"`
	Truncated   bool       `json:"truncated,omitempty" bson:"truncated,omitempty"`
	RawResponse string     `json:"rawResponse" bson:"rawResponse"`
}

// SentimentText returns the free-text content worth scoring, preferring the
// parsed text over the raw transcript.
func (a *StructuredAnswer) SentimentText() string {
	if a.Text != "" {
		return a.Text
	}
	return a.RawResponse
}

// Channel identifies the conversation transport.
type Channel string

const (
	ChannelVoice    Channel = "voice"
	ChannelWhatsApp Channel = "whatsapp"
)

// SessionMessage is one logged inbound or outbound message on a session.
type SessionMessage struct {
	Type      string    `json:"type" bson:"type"`
	Content   string    `json:"content" bson:"content"`
	Direction string    `json:"direction" bson:"direction"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// ConversationSession is one respondent's attempt at one survey. It is the
// single document the progression state machine reads and writes per inbound
// message.
//
// At most one active (incomplete) session per contact should exist at a
// time. Creation enforces this best-effort; progression uses a conditional
// update on CurrentQuestionIndex so that two interleaved messages cannot
// both advance the same question.
type ConversationSession struct {
	ID                   string                      `json:"id" bson:"_id,omitempty"`
	SurveyID             string                      `json:"surveyId" bson:"surveyId"`
	CallID               string                      `json:"callId,omitempty" bson:"callId,omitempty"`
	Contact              string                      `json:"contact" bson:"contact"`
	Channel              Channel                     `json:"channel" bson:"channel"`
	CurrentQuestionIndex int                         `json:"currentQuestionIndex" bson:"currentQuestionIndex"`
	Responses            map[string]StructuredAnswer `json:"responses" bson:"responses"`
	Completed            bool                        `json:"completed" bson:"completed"`
	AutoCompleted        bool                        `json:"autoCompleted,omitempty" bson:"autoCompleted,omitempty"`
	StartTime            time.Time                   `json:"startTime" bson:"startTime"`
	EndTime              *time.Time                  `json:"endTime,omitempty" bson:"endTime,omitempty"`
	DurationSeconds      int                         `json:"durationSeconds,omitempty" bson:"durationSeconds,omitempty"`
	SentimentScores      map[string]float64          `json:"sentimentScores,omitempty" bson:"sentimentScores,omitempty"`
	OverallSentiment     *float64                    `json:"overallSentiment,omitempty" bson:"overallSentiment,omitempty"`
	SentimentPending     bool                        `json:"sentimentPending" bson:"sentimentPending"`
	SentimentFailed      bool                        `json:"sentimentFailed,omitempty" bson:"sentimentFailed,omitempty"`
	Messages             []SessionMessage            `json:"messages,omitempty" bson:"messages,omitempty"`
}

// Active reports whether the session still accepts survey answers.
func (s *ConversationSession) Active() bool {
	return !s.Completed
}
