package components

import (
	"courtbook/internal/domain/availability"
	"courtbook/internal/pkg/clock"
	"courtbook/internal/pkg/config"
	"courtbook/internal/usecase"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	fx.Provide(
		clock.NewRealClock,
		func(clk clock.Clock, cfg config.Config) *availability.Engine {
			return availability.NewEngine(clk, cfg.Payments.PlatformFeeRate)
		},
		usecase.NewAvailabilityUseCase,
		usecase.NewBookingUseCase,
		usecase.NewQueueUseCase,
		usecase.NewWebhookUseCase,
	),
)
