package services

import (
	"context"
	"testing"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContractService(db *memDB) *ContractService {
	service := NewContractService(db, repository.NewContractRepository(db), DefaultQuotaPolicy(), Observers{})
	service.now = func() time.Time { return serviceNow }
	return service
}

func TestContractServiceOpenAndPay(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 20)
	contracts := newTestContractService(db)
	chat := newTestChatService(db, nil)

	_, err := chat.SendMessage(ctx, testClientID, models.RoleClient, testConvID, "before paying")
	require.ErrorIs(t, err, ErrQuotaExhausted)

	opened, err := contracts.OpenContract(ctx, testClientID, models.RoleClient, OpenContractInput{
		TrainerID:    testTrainerID,
		Amount:       49.5,
		DurationDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusPlaceholder, opened.Contract.Status)
	assert.Equal(t, testConvID, opened.Contract.ConversationID)

	_, err = contracts.PayContract(ctx, testTrainerID, models.RoleTrainer, opened.Contract.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	paid, err := contracts.PayContract(ctx, testClientID, models.RoleClient, opened.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusPaid, paid.Contract.Status)
	require.NotNil(t, paid.Contract.ValidUntil)
	assert.Equal(t, serviceNow.AddDate(0, 0, 30), *paid.Contract.ValidUntil)
	assert.Equal(t, models.ConversationStatusContracted, paid.Conversation.Status)

	again, err := contracts.PayContract(ctx, testClientID, models.RoleClient, opened.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, *paid.Contract.ValidUntil, *again.Contract.ValidUntil)

	delivery, err := chat.SendMessage(ctx, testClientID, models.RoleClient, testConvID, "after paying")
	require.NoError(t, err)
	assert.True(t, delivery.Decision.Contracted)

	_, err = contracts.CancelContract(ctx, testClientID, models.RoleClient, opened.Contract.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestContractServicePaymentsStack(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 0)
	contracts := newTestContractService(db)

	var last *ContractDetail
	for i := 0; i < 2; i++ {
		opened, err := contracts.OpenContract(ctx, testClientID, models.RoleClient, OpenContractInput{
			TrainerID:    testTrainerID,
			Amount:       20,
			DurationDays: 10,
		})
		require.NoError(t, err)
		last, err = contracts.PayContract(ctx, testClientID, models.RoleClient, opened.Contract.ID)
		require.NoError(t, err)
	}

	conversation, ok := db.conversation(testConvID)
	require.True(t, ok)
	require.NotNil(t, conversation.ContractValidUntil)
	assert.Equal(t, serviceNow.AddDate(0, 0, 20), *conversation.ContractValidUntil)
	assert.Equal(t, serviceNow.AddDate(0, 0, 20), *last.Contract.ValidUntil)
}

func TestContractServiceOpenValidation(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 0)
	contracts := newTestContractService(db)

	_, err := contracts.OpenContract(ctx, testTrainerID, models.RoleTrainer, OpenContractInput{TrainerID: testClientID, Amount: 10, DurationDays: 7})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = contracts.OpenContract(ctx, testClientID, models.RoleClient, OpenContractInput{TrainerID: testTrainerID, Amount: 0, DurationDays: 7})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = contracts.OpenContract(ctx, testClientID, models.RoleClient, OpenContractInput{TrainerID: testOutsiderID, Amount: 10, DurationDays: 7})
	assert.ErrorIs(t, err, ErrNotFound)

	chat := newTestChatService(db, nil)
	_, err = chat.BlockConversation(ctx, models.RoleAdmin, testConvID)
	require.NoError(t, err)

	_, err = contracts.OpenContract(ctx, testClientID, models.RoleClient, OpenContractInput{TrainerID: testTrainerID, Amount: 10, DurationDays: 7})
	assert.ErrorIs(t, err, ErrConversationBlocked)
}

func TestContractServiceCancelPlaceholder(t *testing.T) {
	ctx := context.Background()
	db := seedChat(t, 0)
	contracts := newTestContractService(db)

	opened, err := contracts.OpenContract(ctx, testClientID, models.RoleClient, OpenContractInput{TrainerID: testTrainerID, Amount: 10, DurationDays: 7})
	require.NoError(t, err)

	_, err = contracts.CancelContract(ctx, testOutsiderID, models.RoleClient, opened.Contract.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := contracts.CancelContract(ctx, testTrainerID, models.RoleTrainer, opened.Contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCancelled, cancelled.Status)

	_, err = contracts.PayContract(ctx, testClientID, models.RoleClient, opened.Contract.ID)
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}
