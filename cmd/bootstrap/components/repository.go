package components

import (
	"courtbook/internal/infra/paymongo"
	repo_impl "courtbook/internal/infra/repository"
	"courtbook/internal/usecase"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		NewDBTX,
		fx.Annotate(
			repo_impl.NewTxManager,
			fx.As(new(usecase.TxRunner)),
		),
		fx.Annotate(
			repo_impl.NewCourtRepository,
			fx.As(new(usecase.CourtRepository)),
		),
		fx.Annotate(
			repo_impl.NewBookingRepository,
			fx.As(new(usecase.BookingRepository)),
		),
		fx.Annotate(
			repo_impl.NewPaymentRepository,
			fx.As(new(usecase.PaymentRepository)),
		),
		fx.Annotate(
			repo_impl.NewQueueSessionRepository,
			fx.As(new(usecase.QueueSessionRepository)),
		),
		fx.Annotate(
			repo_impl.NewParticipantRepository,
			fx.As(new(usecase.ParticipantRepository)),
		),
		fx.Annotate(
			repo_impl.NewNotificationRepository,
			fx.As(new(usecase.NotificationRepository)),
		),
		fx.Annotate(
			paymongo.NewClient,
			fx.As(new(usecase.ProviderClient)),
		),
	),
)

func NewDBTX(pool *pgxpool.Pool) repo_impl.DBTX {
	return pool
}
