package activitymap

import (
	"context"

	auth "github.com/goliatone/go-user-auth"
)

// Publisher receives normalized activity records
type Publisher func(ctx context.Context, record Normalized) error

// Sink normalizes activity events and hands them to a Publisher
type Sink struct {
	publish Publisher
	opts    []Option
}

// NewSink returns an auth.ActivitySink publishing normalized records
func NewSink(publish Publisher, opts ...Option) *Sink {
	return &Sink{publish: publish, opts: opts}
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if s == nil || s.publish == nil {
		return nil
	}
	return s.publish(ctx, Normalize(event, s.opts...))
}

// LogPublisher writes records to the logger at info level
func LogPublisher(logger auth.Logger) Publisher {
	return func(_ context.Context, record Normalized) error {
		if logger == nil {
			return nil
		}
		logger.Info("activity",
			"verb", record.Verb,
			"actor_id", record.ActorID,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"channel", record.Channel,
			"metadata", record.Metadata,
			"occurred_at", record.OccurredAt,
		)
		return nil
	}
}

var _ auth.ActivitySink = (*Sink)(nil)
