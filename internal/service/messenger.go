package service

import (
	"context"
	"log"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// Messenger delivers plain-text messages to a contact over a channel. The
// core never builds channel-specific markup; adapters own the wire format.
type Messenger interface {
	Send(ctx context.Context, channel model.Channel, to, message string) error
}

// LogMessenger writes outbound messages to the log instead of a provider.
// Used in local development and tests, mirroring debug delivery mode.
type LogMessenger struct{}

func NewLogMessenger() *LogMessenger {
	return &LogMessenger{}
}

func (m *LogMessenger) Send(ctx context.Context, channel model.Channel, to, message string) error {
	log.Printf("[%s -> %s] %s", channel, to, message)
	return nil
}
