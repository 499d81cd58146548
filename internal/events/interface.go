package events

import (
	"context"

	"github.com/voxmeet/voxmeet/internal/domain"
)

// Producer publishes meeting events to the downstream analytics / AI-notes
// pipeline. Publication is best-effort everywhere it is called.
type Producer interface {
	Publish(ctx context.Context, event *domain.MeetingEvent) error
	Close() error
}

// NoopProducer is used when no brokers are configured.
type NoopProducer struct{}

func (NoopProducer) Publish(context.Context, *domain.MeetingEvent) error { return nil }
func (NoopProducer) Close() error                                        { return nil }
