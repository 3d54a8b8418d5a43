package repository

import (
	"context"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

const contractColumns = `id, conversation_id, client_id, trainer_id, amount, duration_days, status,
	valid_until, created_at, updated_at`

type CreateContractInput struct {
	ConversationID int64
	ClientID       int64
	TrainerID      int64
	Amount         float64
	DurationDays   int
}

type ContractRepository struct {
	db DBTX
}

func NewContractRepository(db DBTX) *ContractRepository {
	return &ContractRepository{db: db}
}

func scanContract(row pgx.Row, contract *models.Contract) error {
	return row.Scan(
		&contract.ID,
		&contract.ConversationID,
		&contract.ClientID,
		&contract.TrainerID,
		&contract.Amount,
		&contract.DurationDays,
		&contract.Status,
		&contract.ValidUntil,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	)
}

func (r *ContractRepository) getOne(ctx context.Context, query string, args ...any) (*models.Contract, error) {
	var contract models.Contract
	if err := scanContract(r.db.QueryRow(ctx, query, args...), &contract); err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *ContractRepository) Create(ctx context.Context, input CreateContractInput) (*models.Contract, error) {
	query := `
		INSERT INTO contracts (conversation_id, client_id, trainer_id, amount, duration_days, status)
		VALUES ($1, $2, $3, $4, $5, 'placeholder')
		RETURNING ` + contractColumns

	return r.getOne(ctx, query,
		input.ConversationID,
		input.ClientID,
		input.TrainerID,
		input.Amount,
		input.DurationDays,
	)
}

func (r *ContractRepository) GetByID(ctx context.Context, contractID int64) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + `
		FROM contracts
		WHERE id = $1
	`
	return r.getOne(ctx, query, contractID)
}

func (r *ContractRepository) GetByIDForUpdate(ctx context.Context, contractID int64) (*models.Contract, error) {
	query := `SELECT ` + contractColumns + `
		FROM contracts
		WHERE id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, query, contractID)
}

func (r *ContractRepository) ListForParticipant(ctx context.Context, participantID int64) ([]models.Contract, error) {
	query := `SELECT ` + contractColumns + `
		FROM contracts
		WHERE client_id = $1 OR trainer_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contracts := make([]models.Contract, 0)
	for rows.Next() {
		var contract models.Contract
		if err := scanContract(rows, &contract); err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return contracts, nil
}

// MarkPaid moves a placeholder contract to paid. Returns pgx.ErrNoRows if the
// contract was not in the placeholder state.
func (r *ContractRepository) MarkPaid(ctx context.Context, contractID int64, validUntil time.Time) (*models.Contract, error) {
	query := `
		UPDATE contracts
		SET status = 'paid', valid_until = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'placeholder'
		RETURNING ` + contractColumns
	return r.getOne(ctx, query, contractID, validUntil)
}

func (r *ContractRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	contractID int64,
	currentStatus string,
	nextStatus string,
) (*models.Contract, error) {
	query := `
		UPDATE contracts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + contractColumns
	return r.getOne(ctx, query, contractID, currentStatus, nextStatus)
}
