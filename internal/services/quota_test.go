package services

import (
	"testing"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetPeriodNext(t *testing.T) {
	now := time.Date(2026, 12, 31, 22, 15, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), ResetMonthly.Next(now))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), ResetDaily.Next(now))

	mid := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), ResetMonthly.Next(mid))
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), ResetDaily.Next(mid))
}

func TestParseResetPeriod(t *testing.T) {
	for input, want := range map[string]ResetPeriod{
		"":        ResetMonthly,
		"monthly": ResetMonthly,
		" Daily ": ResetDaily,
	} {
		got, err := ParseResetPeriod(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseResetPeriod("weekly")
	assert.Error(t, err)
}

func TestQuotaPolicyAllowsExactlyMaxFreeSends(t *testing.T) {
	policy := DefaultQuotaPolicy()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	quota := &models.MessageQuota{ConversationID: 1, ResetAt: policy.Period.Next(now)}

	for i := 1; i <= models.DefaultMaxFreeMessages; i++ {
		remaining, err := policy.Consume(quota, now)
		require.NoError(t, err, "send %d", i)
		assert.Equal(t, models.DefaultMaxFreeMessages-i, remaining)
	}

	_, err := policy.Consume(quota, now)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, models.DefaultMaxFreeMessages, quota.UsedCount)
}

func TestQuotaPolicyLastFreeSend(t *testing.T) {
	policy := DefaultQuotaPolicy()
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	quota := &models.MessageQuota{ConversationID: 1, UsedCount: 19, ResetAt: policy.Period.Next(now)}

	remaining, err := policy.Consume(quota, now)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 20, quota.UsedCount)

	_, err = policy.Consume(quota, now)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
}

func TestQuotaPolicyConsumeAppliesDueReset(t *testing.T) {
	policy := DefaultQuotaPolicy()
	resetAt := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	quota := &models.MessageQuota{ConversationID: 1, UsedCount: 20, ResetAt: resetAt}

	remaining, err := policy.Consume(quota, resetAt)
	require.NoError(t, err)
	assert.Equal(t, 19, remaining)
	assert.Equal(t, 1, quota.UsedCount)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), quota.ResetAt)
}

func TestQuotaPolicyResetIsIdempotentWithinPeriod(t *testing.T) {
	policy := DefaultQuotaPolicy()
	now := time.Date(2026, 6, 1, 0, 0, 1, 0, time.UTC)

	for _, used := range []int{0, 7, 20, 25} {
		quota := &models.MessageQuota{UsedCount: used, ResetAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}

		require.True(t, policy.Reset(quota, now))
		assert.Equal(t, 0, quota.UsedCount)
		assert.Equal(t, 20, quota.Remaining(policy.MaxFree))

		resetAt := quota.ResetAt
		quota.UsedCount = 3
		assert.False(t, policy.Reset(quota, now))
		assert.Equal(t, 3, quota.UsedCount)
		assert.Equal(t, resetAt, quota.ResetAt)
	}
}

func TestRemainingNeverNegative(t *testing.T) {
	for used := 0; used <= 30; used++ {
		want := 20 - used
		if want < 0 {
			want = 0
		}
		assert.Equal(t, want, models.RemainingMessages(used, 20), "used=%d", used)
	}
}

func TestQuotaPolicyStatusReportsPendingReset(t *testing.T) {
	policy := QuotaPolicy{MaxFree: 5, Period: ResetDaily}
	now := time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC)
	quota := &models.MessageQuota{UsedCount: 5, ResetAt: time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)}

	status := policy.Status(quota, now)
	assert.True(t, status.Applicable)
	assert.Equal(t, 0, status.UsedCount)
	assert.Equal(t, 5, status.Remaining)
	require.NotNil(t, status.ResetAt)
	assert.Equal(t, time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC), *status.ResetAt)
	assert.Equal(t, 5, quota.UsedCount)
}
