package bootstrap

import (
	"context"

	"courtbook/internal/infra/sweeper"
	"courtbook/internal/pkg/config"
	"courtbook/internal/usecase"

	"go.uber.org/fx"
)

var SchedulerModule = fx.Module("scheduler",
	fx.Provide(
		NewSweeper,
	),
	fx.Invoke(func(*sweeper.Sweeper) {}),
)

func NewSweeper(lc fx.Lifecycle, bookings usecase.BookingUseCase, cfg config.Config) (*sweeper.Sweeper, error) {
	s, err := sweeper.New(bookings, cfg.Payments.SweepInterval)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return s.Start()
		},
		OnStop: func(_ context.Context) error {
			return s.Stop()
		},
	})
	return s, nil
}
