// Package sweeper runs the background job that cancels reservations stuck
// in pending_payment past the operational timeout, releasing their slots.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"courtbook/internal/pkg/errs"
	"courtbook/internal/usecase"

	"github.com/go-co-op/gocron/v2"
)

type Sweeper struct {
	scheduler gocron.Scheduler
	bookings  usecase.BookingUseCase
	interval  time.Duration
}

func New(bookings usecase.BookingUseCase, interval time.Duration) (*Sweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, errs.Wrap(err, "failed to create scheduler")
	}
	return &Sweeper{
		scheduler: scheduler,
		bookings:  bookings,
		interval:  interval,
	}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithName("pending-payment-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeWait),
	)
	if err != nil {
		return errs.Wrap(err, "failed to register sweep job")
	}
	s.scheduler.Start()
	return nil
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cancelled, err := s.bookings.CancelStalePendingPayments(ctx)
	if err != nil {
		slog.Error("pending payment sweep failed", "error", err.Error())
		return
	}
	if cancelled > 0 {
		slog.Info("swept stale pending payments", "cancelled", cancelled)
	}
}
