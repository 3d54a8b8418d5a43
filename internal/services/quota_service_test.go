package services

import (
	"context"
	"testing"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/metrics"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuotaService(db *memDB, now time.Time) *QuotaService {
	service := NewQuotaService(
		db,
		repository.NewConversationRepository(db),
		repository.NewQuotaRepository(db),
		DefaultQuotaPolicy(),
		Observers{Metrics: metrics.New()},
	)
	service.now = func() time.Time { return now }
	return service
}

func TestQuotaServiceResetBeforeBoundaryIsNoop(t *testing.T) {
	db := seedChat(t, 12)
	service := newTestQuotaService(db, serviceNow)

	status, reset, err := service.Reset(context.Background(), testConvID)
	require.NoError(t, err)
	assert.False(t, reset)
	assert.Equal(t, 12, status.UsedCount)
	assert.Equal(t, 8, status.Remaining)

	quota, _ := db.quota(testConvID)
	assert.Equal(t, 12, quota.UsedCount)
}

func TestQuotaServiceResetAfterBoundaryOnce(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 20)
	boundary := ResetMonthly.Next(serviceNow)
	service := newTestQuotaService(db, boundary.Add(time.Hour))

	status, reset, err := service.Reset(ctx, testConvID)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Equal(t, 0, status.UsedCount)
	assert.Equal(t, 20, status.Remaining)

	quota, _ := db.quota(testConvID)
	assert.Equal(t, 0, quota.UsedCount)
	assert.Equal(t, ResetMonthly.Next(boundary), quota.ResetAt)

	_, reset, err = service.Reset(ctx, testConvID)
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestQuotaServiceForceResetIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 20)
	service := newTestQuotaService(db, serviceNow)

	_, err := service.ForceReset(ctx, models.RoleClient, testConvID)
	assert.ErrorIs(t, err, ErrForbidden)

	status, err := service.ForceReset(ctx, models.RoleAdmin, testConvID)
	require.NoError(t, err)
	assert.Equal(t, 20, status.Remaining)

	_, err = service.ForceReset(ctx, models.RoleAdmin, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuotaServiceResetDue(t *testing.T) {
	db := seedChat(t, 20)
	db.addConversation(
		models.Conversation{ID: 11, ClientID: testOutsiderID, TrainerID: testTrainerID},
		&models.MessageQuota{UsedCount: 4, ResetAt: serviceNow.AddDate(0, 2, 0)},
	)
	service := newTestQuotaService(db, ResetMonthly.Next(serviceNow))

	count, err := service.ResetDue(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	due, _ := db.quota(testConvID)
	assert.Equal(t, 0, due.UsedCount)
	notDue, _ := db.quota(11)
	assert.Equal(t, 4, notDue.UsedCount)
}

func TestQuotaServiceGet(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 7)
	service := newTestQuotaService(db, serviceNow)

	status, err := service.Get(ctx, testClientID, models.RoleClient, testConvID)
	require.NoError(t, err)
	assert.True(t, status.Applicable)
	assert.Equal(t, 13, status.Remaining)

	status, err = service.Get(ctx, testTrainerID, models.RoleTrainer, testConvID)
	require.NoError(t, err)
	assert.False(t, status.Applicable)

	_, err = service.Get(ctx, testOutsiderID, models.RoleClient, testConvID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = service.Get(ctx, testClientID, models.RoleClient, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
