package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventWrapsPayload(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))

	event, err := NewEvent(SubjectLikeToggled, map[string]any{"post_id": 7, "liked": true}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, SubjectLikeToggled, event.Subject)
	assert.Equal(t, "2026-05-04T15:30:00Z", event.OccurredAt)

	var data struct {
		PostID int64 `json:"post_id"`
		Liked  bool  `json:"liked"`
	}
	require.NoError(t, json.Unmarshal(event.Data, &data))
	assert.Equal(t, int64(7), data.PostID)
	assert.True(t, data.Liked)
}

func TestNewEventRejectsUnencodablePayload(t *testing.T) {
	_, err := NewEvent(SubjectMessageSent, make(chan int), time.Now())
	assert.Error(t, err)
}

func TestNopPublisherAcceptsEverything(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), SubjectQuotaExceeded, nil))
}
