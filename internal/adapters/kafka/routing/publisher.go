package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/ports/out/routing"
)

const eventType = "onboarding.completed"

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter builds a synchronous writer for the routing topic.
func NewWriter(brokers []string, topic string, logger *zap.Logger) *kafka.Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Warn(fmt.Sprintf(msg, args...))
		}),
	}
}

// Publisher writes completion events as JSON, keyed by identity so one identity's events stay ordered.
type Publisher struct {
	writer MessageWriter
	logger *zap.Logger
}

func NewPublisher(w MessageWriter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: w, logger: logger}
}

func (p *Publisher) PublishCompletion(ctx context.Context, evt routing.CompletionEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal completion event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evt.IdentityID),
		Value: data,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "role", Value: []byte(evt.Role)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish completion event",
			zap.Error(err),
			zap.String("identity_id", string(evt.IdentityID)),
			zap.String("role", string(evt.Role)),
		)
		return fmt.Errorf("publish completion event: %w", err)
	}
	p.logger.Info("completion event published",
		zap.String("identity_id", string(evt.IdentityID)),
		zap.String("role", string(evt.Role)),
		zap.String("outcome", evt.Outcome),
	)
	return nil
}
