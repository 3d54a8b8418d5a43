package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestMarkReadOnlyMovesStampForward(t *testing.T) {
	mock := newMockDB(t)
	readAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`SET client_last_read_at = CASE WHEN client_id = $2 THEN GREATEST(client_last_read_at, $3)`)).
		WithArgs(int64(10), int64(1), readAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewConversationRepository(mock).MarkRead(context.Background(), 10, 1, readAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListForParticipantCountsUnreadFromStamps(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`AND m.created_at > COALESCE( CASE WHEN c.client_id = $1 THEN c.client_last_read_at ELSE c.trainer_last_read_at END`)).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "client_id", "trainer_id", "status", "last_message_at", "last_message_text",
			"client_last_read_at", "trainer_last_read_at", "contract_valid_until", "created_at", "updated_at", "unread_count",
		}))

	summaries, err := NewConversationRepository(mock).ListForParticipant(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, summaries)
	require.NoError(t, mock.ExpectationsWereMet())
}
