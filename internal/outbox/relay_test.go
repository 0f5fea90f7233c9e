package outbox

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/storage/models"
)

func TestApplyPublishResult(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("success marks sent", func(t *testing.T) {
		msg := &models.OutboxMessage{Status: constants.OutboxPending, RetryCount: 2, ErrorMessage: "old"}
		applyPublishResult(msg, nil, 5, now)

		assert.Equal(t, constants.OutboxSent, msg.Status)
		require.NotNil(t, msg.ProcessedAt)
		assert.Equal(t, now, *msg.ProcessedAt)
		assert.Empty(t, msg.ErrorMessage)
		assert.Equal(t, 2, msg.RetryCount)
	})

	t.Run("failure counts a retry", func(t *testing.T) {
		msg := &models.OutboxMessage{Status: constants.OutboxPending}
		applyPublishResult(msg, errors.New("channel closed"), 5, now)

		assert.Equal(t, constants.OutboxPending, msg.Status)
		assert.Equal(t, 1, msg.RetryCount)
		assert.Equal(t, "channel closed", msg.ErrorMessage)
		assert.Nil(t, msg.ProcessedAt)
	})

	t.Run("last retry gives up", func(t *testing.T) {
		msg := &models.OutboxMessage{Status: constants.OutboxPending, RetryCount: 4}
		applyPublishResult(msg, errors.New("boom"), 5, now)

		assert.Equal(t, constants.OutboxFailed, msg.Status)
		assert.Equal(t, 5, msg.RetryCount)
	})
}

func TestNewMessageRelayOptions(t *testing.T) {
	r := NewMessageRelay(nil, nil, zerolog.Nop(),
		WithPollingInterval(time.Second),
		WithBatchSize(50),
		WithMaxRetries(0),
	)
	assert.Equal(t, time.Second, r.pollingInterval)
	assert.Equal(t, 50, r.batchSize)
	assert.Equal(t, defaultMaxRetryCount, r.maxRetries)
}
