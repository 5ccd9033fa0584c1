package activitymap_test

import (
	"context"
	"errors"
	"testing"
	"time"

	auth "github.com/goliatone/go-user-auth"
	"github.com/goliatone/go-user-auth/activitymap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventRoleGranted,
		UserID:     "user-100",
		Username:   "pepe",
		Metadata:   map[string]any{"role": "admin"},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "user-100", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventRoleGranted), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "auth", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))
	assert.Equal(t, "admin", out.Metadata["role"])
	assert.Equal(t, "pepe", out.Metadata[activitymap.MetadataKeyUsername])

	assert.Len(t, event.Metadata, 1, "source metadata must not change")
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetRequest,
		UserID:    "user-200",
		Username:  "pepe",
		Metadata: map[string]any{
			"reset_id":                      "reset-1",
			activitymap.MetadataKeyUsername: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["reset_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "reset-1", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyUsername])
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  auth.ActivityEvent{UserID: "user-1", Username: "pepe"},
			expect: "user-1",
		},
		{
			name:   "uses username when user id missing",
			event:  auth.ActivityEvent{Username: "pepe"},
			expect: "pepe",
		},
		{
			name:   "uses default fallback",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("provisioner")},
			expect: "provisioner",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, activitymap.Normalize(tc.event, tc.opts...).ActorID)
		})
	}
}

func TestSinkPublishesNormalizedRecords(t *testing.T) {
	var got []activitymap.Normalized
	sink := activitymap.NewSink(func(_ context.Context, record activitymap.Normalized) error {
		got = append(got, record)
		return nil
	}, activitymap.WithDefaultChannel("audit"))

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventSignOut,
		UserID:    "user-1",
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, string(auth.ActivityEventSignOut), got[0].Verb)
	assert.Equal(t, "audit", got[0].Channel)
}

func TestSinkReturnsPublisherError(t *testing.T) {
	boom := errors.New("boom")
	sink := activitymap.NewSink(func(context.Context, activitymap.Normalized) error { return boom })

	err := sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventSignOut})
	assert.ErrorIs(t, err, boom)
}

func TestNilSinkIsNoop(t *testing.T) {
	var sink *activitymap.Sink
	assert.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{}))
	assert.NoError(t, activitymap.NewSink(nil).Record(context.Background(), auth.ActivityEvent{}))
	assert.NoError(t, activitymap.LogPublisher(nil)(context.Background(), activitymap.Normalized{}))
}
