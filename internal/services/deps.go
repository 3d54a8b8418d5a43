package services

import (
	"context"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/metrics"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, data any) error
}

type PostCache interface {
	Get(ctx context.Context, postID int64) (*models.Post, error)
	Set(ctx context.Context, post *models.Post) error
	Invalidate(ctx context.Context, postID int64) error
}

// Observers bundles the side channels every service reports to. Zero values
// are valid: nil metrics record nothing, nil events and logger are replaced
// with no-ops.
type Observers struct {
	Events  EventPublisher
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type nopEvents struct{}

func (nopEvents) Publish(context.Context, string, any) error { return nil }

func (o Observers) withDefaults() Observers {
	if o.Events == nil {
		o.Events = nopEvents{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Observers) publish(ctx context.Context, subject string, data any) {
	if err := o.Events.Publish(ctx, subject, data); err != nil {
		o.Logger.Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}
