package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/service"
)

// WebhookHandler normalizes inbound channel events into the canonical
// message shape and dispatches them through the classifier. The core never
// sees provider payloads.
type WebhookHandler struct {
	classifier *service.Classifier
	convSvc    *service.ConversationService
	knowSvc    *service.KnowledgeService
	messenger  service.Messenger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(classifier *service.Classifier, convSvc *service.ConversationService, knowSvc *service.KnowledgeService, messenger service.Messenger) *WebhookHandler {
	return &WebhookHandler{
		classifier: classifier,
		convSvc:    convSvc,
		knowSvc:    knowSvc,
		messenger:  messenger,
	}
}

// whatsappPayload is the provider envelope for inbound WhatsApp messages.
// Text may arrive at the top level or nested under message.content.
type whatsappPayload struct {
	From        string `json:"from"`
	Text        string `json:"text"`
	MessageType string `json:"message_type"`
	Timestamp   string `json:"timestamp"`
	Message     *struct {
		From    string `json:"from"`
		Content struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

func (p *whatsappPayload) normalize() *model.InboundMessage {
	from := p.From
	text := p.Text
	kind := model.MessageKind(p.MessageType)

	if p.Message != nil {
		if from == "" {
			from = p.Message.From
		}
		if text == "" {
			text = p.Message.Content.Text
		}
		if kind == "" && p.Message.Content.Type != "" {
			kind = model.MessageKind(p.Message.Content.Type)
		}
	}

	switch kind {
	case model.MessageKindText:
	case "image", "file", "audio", "video":
		kind = model.MessageKindMedia
	default:
		if text != "" {
			kind = model.MessageKindText
		} else {
			kind = model.MessageKindOther
		}
	}

	ts := time.Now()
	if p.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, p.Timestamp); err == nil {
			ts = parsed
		}
	}

	return &model.InboundMessage{
		From:      from,
		Text:      text,
		Timestamp: ts,
		Kind:      kind,
	}
}

// WhatsAppInbound handles POST /webhooks/whatsapp/inbound
func (h *WebhookHandler) WhatsAppInbound(w http.ResponseWriter, r *http.Request) {
	var payload whatsappPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg := payload.normalize()
	if msg.From == "" {
		writeError(w, http.StatusBadRequest, "missing sender")
		return
	}

	h.dispatch(w, r, msg, model.ChannelWhatsApp)
}

// voicePayload is the provider envelope for voice input events: DTMF digits
// or a speech-to-text transcript.
type voicePayload struct {
	From   string `json:"from"`
	UUID   string `json:"uuid"`
	DTMF   struct {
		Digits string `json:"digits"`
	} `json:"dtmf"`
	Speech struct {
		Results []struct {
			Text       string `json:"text"`
			Confidence string `json:"confidence"`
		} `json:"results"`
	} `json:"speech"`
}

func (p *voicePayload) normalize() *model.InboundMessage {
	text := p.DTMF.Digits
	if text == "" && len(p.Speech.Results) > 0 {
		text = p.Speech.Results[0].Text
	}
	kind := model.MessageKindText
	if text == "" {
		kind = model.MessageKindOther
	}
	return &model.InboundMessage{
		From:      p.From,
		Text:      text,
		Timestamp: time.Now(),
		Kind:      kind,
	}
}

// VoiceInput handles POST /webhooks/voice/input
func (h *WebhookHandler) VoiceInput(w http.ResponseWriter, r *http.Request) {
	var payload voicePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	msg := payload.normalize()
	if msg.From == "" {
		writeError(w, http.StatusBadRequest, "missing caller")
		return
	}

	h.dispatch(w, r, msg, model.ChannelVoice)
}

// Status handles POST /webhooks/status. Delivery receipts are logged only.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
		log.Printf("Delivery status update: %v", payload)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) dispatch(w http.ResponseWriter, r *http.Request, msg *model.InboundMessage, channel model.Channel) {
	if msg.Kind != model.MessageKindText {
		log.Printf("Ignoring %s message from %s", msg.Kind, msg.From)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	verdict, err := h.classifier.Classify(r.Context(), msg.From, msg.Text, msg.Timestamp)
	if err != nil {
		log.Printf("Classification failed for %s: %v", msg.From, err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	switch verdict.Class {
	case model.ClassSurveyAnswer:
		if err := h.convSvc.HandleAnswer(r.Context(), verdict.Session, msg.Text); err != nil {
			log.Printf("Survey answer handling failed for %s: %v", msg.From, err)
			writeError(w, http.StatusInternalServerError, "failed to process answer")
			return
		}

	case model.ClassKnowledgeQuery:
		reply := h.knowSvc.Answer(r.Context(), verdict.Call, msg.Text)
		if err := h.messenger.Send(r.Context(), channel, msg.From, reply); err != nil {
			log.Printf("Failed to deliver knowledge reply to %s: %v", msg.From, err)
		}

	default:
		log.Printf("Unclassified message from %s: %s", msg.From, msg.Text)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
