package kafka

import (
	"context"
	"time"
)

// ArchiveMessage is the record emitted to the archive topic for every
// persisted chat message.
type ArchiveMessage struct {
	MessageID uint      `json:"message_id"`
	Room      string    `json:"room"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ServerID  string    `json:"server_id"`
}

// ArchiveProducer mirrors persisted chat messages to a durable topic for
// downstream consumers. Archiving is best effort; a failed produce never
// blocks chat delivery.
type ArchiveProducer interface {
	ProduceMessage(ctx context.Context, msg *ArchiveMessage) error
	Close() error
}

// NoopProducer is used when archiving is disabled.
type NoopProducer struct{}

func (NoopProducer) ProduceMessage(ctx context.Context, msg *ArchiveMessage) error { return nil }
func (NoopProducer) Close() error                                                  { return nil }
