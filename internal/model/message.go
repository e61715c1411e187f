package model

import "time"

// MessageKind is the normalized payload kind of an inbound channel event.
type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindMedia MessageKind = "media"
	MessageKindOther MessageKind = "other"
)

// InboundMessage is the single canonical event shape the core consumes.
// Channel adapters normalize their provider payloads (voice DTMF/speech
// transcripts, WhatsApp JSON envelopes) into this before dispatch; the core
// never branches on transport-specific field names.
type InboundMessage struct {
	From      string      `json:"from"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      MessageKind `json:"kind"`
}

// Classification is the disambiguator's verdict on an inbound message.
type Classification string

const (
	ClassSurveyAnswer   Classification = "survey_answer"
	ClassKnowledgeQuery Classification = "knowledge_query"
	ClassUnclassified   Classification = "unclassified"
)

// InteractionEvent is one logged knowledge base exchange on a call record.
type InteractionEvent struct {
	EventType   string    `json:"eventType" bson:"eventType"`
	Description string    `json:"description" bson:"description"`
	Query       string    `json:"query,omitempty" bson:"query,omitempty"`
	Response    string    `json:"response,omitempty" bson:"response,omitempty"`
	Status      string    `json:"status,omitempty" bson:"status,omitempty"`
	TokensUsed  int       `json:"tokensUsed,omitempty" bson:"tokensUsed,omitempty"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

// KnowledgeCall records a knowledge-base-only interaction initiated for a
// contact. Its recency drives the disambiguator's routing windows.
type KnowledgeCall struct {
	ID                string             `json:"id" bson:"_id,omitempty"`
	OwnerID           string             `json:"ownerId" bson:"ownerId"`
	Contact           string             `json:"contact" bson:"contact"`
	KnowledgeBaseID   string             `json:"knowledgeBaseId" bson:"knowledgeBaseId"`
	KnowledgeBaseOnly bool               `json:"knowledgeBaseOnly" bson:"knowledgeBaseOnly"`
	Events            []InteractionEvent `json:"events,omitempty" bson:"events,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updatedAt"`
}
