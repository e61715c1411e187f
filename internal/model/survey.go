package model

import "time"

// QuestionType determines how a raw response is interpreted and how the
// question is phrased on the channel.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeYesNo          QuestionType = "yes_no"
	QuestionTypeNumeric        QuestionType = "numeric"
	QuestionTypeRating         QuestionType = "rating"
	QuestionTypeScale          QuestionType = "scale"
	QuestionTypeText           QuestionType = "text"
	QuestionTypeOpenEnded      QuestionType = "open_ended"
)

// SurveyStatus is the lifecycle state of a survey template.
type SurveyStatus string

const (
	SurveyStatusDraft     SurveyStatus = "draft"
	SurveyStatusActive    SurveyStatus = "active"
	SurveyStatusPaused    SurveyStatus = "paused"
	SurveyStatusCompleted SurveyStatus = "completed"
	SurveyStatusArchived  SurveyStatus = "archived"
)

// SurveyQuestion is one question in a survey definition.
//
// FollowUpLogic maps an answer condition to the id of the question to jump
// to, overriding the default index+1 transition. Conditions are derived from
// the structured answer: "1-2"/"3"-style ranges or exact values for numeric
// types, "yes"/"no" for booleans, and the matched option text for multiple
// choice.
type SurveyQuestion struct {
	ID            string            `json:"id" bson:"id"`
	Text          string            `json:"text" bson:"text"`
	Type          QuestionType      `json:"type" bson:"type"`
	Required      bool              `json:"required" bson:"required"`
	Options       []string          `json:"options,omitempty" bson:"options,omitempty"`
	ScaleMin      *float64          `json:"scaleMin,omitempty" bson:"scaleMin,omitempty"`
	ScaleMax      *float64          `json:"scaleMax,omitempty" bson:"scaleMax,omitempty"`
	ScaleLabels   map[string]string `json:"scaleLabels,omitempty" bson:"scaleLabels,omitempty"`
	MinValue      *float64          `json:"minValue,omitempty" bson:"minValue,omitempty"`
	MaxValue      *float64          `json:"maxValue,omitempty" bson:"maxValue,omitempty"`
	MaxLength     int               `json:"maxLength,omitempty" bson:"maxLength,omitempty"`
	FollowUpLogic map[string]string `json:"followUpLogic,omitempty" bson:"followUpLogic,omitempty"`
}

// ScaleBounds returns the effective bounds for rating/scale questions,
// applying the type defaults (1-10 for rating, 1-5 for scale) when the
// survey author left them unset.
func (q *SurveyQuestion) ScaleBounds() (float64, float64) {
	min, max := 1.0, 10.0
	if q.Type == QuestionTypeScale {
		max = 5.0
	}
	if q.ScaleMin != nil {
		min = *q.ScaleMin
	}
	if q.ScaleMax != nil {
		max = *q.ScaleMax
	}
	return min, max
}

// Survey is a persistent survey definition owned by a host. Questions are
// immutable once a session references the survey; only metadata edits are
// expected after that point.
type Survey struct {
	ID           string           `json:"id" bson:"_id,omitempty"`
	OwnerID      string           `json:"ownerId" bson:"ownerId"`
	Title        string           `json:"title" bson:"title"`
	Description  string           `json:"description" bson:"description"`
	IntroMessage string           `json:"introMessage" bson:"introMessage"`
	OutroMessage string           `json:"outroMessage" bson:"outroMessage"`
	Status       SurveyStatus     `json:"status" bson:"status"`
	MaxRetries   int              `json:"maxRetries" bson:"maxRetries"`
	Questions    []SurveyQuestion `json:"questions" bson:"questions"`
	CreatedAt    time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// QuestionByID looks up a question by id, returning its index as well.
func (s *Survey) QuestionByID(id string) (*SurveyQuestion, int) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], i
		}
	}
	return nil, -1
}

// Outro returns the survey's closing message with a default fallback.
func (s *Survey) Outro() string {
	if s.OutroMessage != "" {
		return s.OutroMessage
	}
	return "Thank you for completing our survey! Your feedback is valuable to us."
}
