//go:build unit

package usecase_test

import (
	"context"
	"errors"
	"time"

	"courtbook/internal/domain/booking"
	"courtbook/internal/domain/court"
	"courtbook/internal/domain/payment"
	"courtbook/internal/domain/queue"
	"courtbook/internal/infra"
	"courtbook/internal/infra/paymongo"
	"courtbook/internal/infra/ratelimit"
	"courtbook/internal/infra/repository"

	"github.com/google/uuid"
)

// In-memory fakes mirroring the storage semantics the usecases depend on:
// compare-and-set status updates, conflict on terminal cancels, the atomic
// player counter, and the jsonb-merge behavior of metadata patches.

type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(_ context.Context, fn func(tx repository.DBTX) error) error {
	return fn(nil)
}

// ---------------------------------------------------------------------------

type fakeCourtRepo struct {
	courts map[uuid.UUID]*court.Court
}

func newFakeCourtRepo() *fakeCourtRepo {
	return &fakeCourtRepo{courts: map[uuid.UUID]*court.Court{}}
}

func (f *fakeCourtRepo) FindByID(_ context.Context, id uuid.UUID) (*court.Court, error) {
	c, ok := f.courts[id]
	if !ok {
		return nil, infra.WrapRepoErr("court not found", nil, infra.KindNotFound)
	}
	return c, nil
}

// ---------------------------------------------------------------------------

type fakeBookingRepo struct {
	reservations map[uuid.UUID]*booking.Reservation
	// rejectPaidStatus simulates a CHECK constraint that predates the paid
	// status value.
	rejectPaidStatus bool
	// conflictOnCreate simulates the exclusion constraint firing.
	conflictOnCreate bool
	// beforeConfirm runs at the top of Confirm, letting a test mutate state
	// between the usecase's snapshot read and the confirmation write.
	beforeConfirm     func()
	createCalls       int
	updateStatusCalls int
	deleted           []uuid.UUID
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{reservations: map[uuid.UUID]*booking.Reservation{}}
}

func (f *fakeBookingRepo) put(res *booking.Reservation) {
	f.reservations[res.ID()] = res
}

func replaceReservation(res *booking.Reservation, status booking.Status, paid int64, metadata booking.Metadata, cancelReason *string) *booking.Reservation {
	return booking.ReconstructReservation(
		res.ID(), res.CourtID(), res.UserID(), res.Slot(), status,
		res.TotalCents(), paid, res.PlayerCount(), metadata, cancelReason,
		res.CreatedAt(), res.UpdatedAt(), res.CancelledAt(),
	)
}

func (f *fakeBookingRepo) Create(_ context.Context, _ repository.DBTX, res *booking.Reservation) (uuid.UUID, error) {
	f.createCalls++
	if f.conflictOnCreate {
		return uuid.Nil, infra.WrapRepoErr("overlapping reservation", nil, infra.KindConflict)
	}
	f.put(res)
	return res.ID(), nil
}

func (f *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*booking.Reservation, error) {
	res, ok := f.reservations[id]
	if !ok {
		return nil, infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	return res, nil
}

func (f *fakeBookingRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]*booking.Reservation, error) {
	var out []*booking.Reservation
	for _, res := range f.reservations {
		if res.UserID() == userID {
			out = append(out, res)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) FindBlockingSlots(_ context.Context, courtID uuid.UUID, dayStart, dayEnd time.Time) ([]booking.TimeSlot, error) {
	var out []booking.TimeSlot
	for _, res := range f.reservations {
		if res.CourtID() == courtID && res.IsBlocking() &&
			res.Slot().Start().Before(dayEnd) && res.Slot().End().After(dayStart) {
			out = append(out, res.Slot())
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, from, to booking.Status) error {
	f.updateStatusCalls++
	res, ok := f.reservations[id]
	if !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	if to == booking.StatusPaid && f.rejectPaidStatus {
		return infra.WrapRepoErr("status check constraint", nil, infra.KindCheckViolation)
	}
	if res.Status() != from {
		return infra.WrapRepoErr("status changed concurrently", nil, infra.KindConflict)
	}
	f.put(replaceReservation(res, to, res.PaidCents(), res.Metadata(), res.CancelReason()))
	return nil
}

func (f *fakeBookingRepo) RequirePayment(_ context.Context, _ repository.DBTX, id uuid.UUID, totalCents int64) error {
	res, ok := f.reservations[id]
	if !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	if res.Status() != booking.StatusPending {
		return infra.WrapRepoErr("reservation no longer pending", nil, infra.KindConflict)
	}
	f.put(booking.ReconstructReservation(
		res.ID(), res.CourtID(), res.UserID(), res.Slot(), booking.StatusPendingPayment,
		totalCents, res.PaidCents(), res.PlayerCount(), res.Metadata(), res.CancelReason(),
		res.CreatedAt(), res.UpdatedAt(), res.CancelledAt(),
	))
	return nil
}

func (f *fakeBookingRepo) Confirm(_ context.Context, _ repository.DBTX, id uuid.UUID, paidCents int64, metadataPatch booking.Metadata) error {
	if f.beforeConfirm != nil {
		f.beforeConfirm()
	}
	res, ok := f.reservations[id]
	if !ok {
		return infra.WrapRepoErr("reservation terminal or missing", nil, infra.KindConflict)
	}
	if res.Status().IsTerminal() {
		return infra.WrapRepoErr("reservation terminal or missing", nil, infra.KindConflict)
	}
	f.put(replaceReservation(res, booking.StatusConfirmed, paidCents, res.Metadata().Merge(metadataPatch), res.CancelReason()))
	return nil
}

func (f *fakeBookingRepo) SyncPaidAmount(_ context.Context, _ repository.DBTX, id uuid.UUID, amountCents int64) error {
	res, ok := f.reservations[id]
	if !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	if res.PaidCents() < amountCents {
		f.put(replaceReservation(res, res.Status(), amountCents, res.Metadata(), res.CancelReason()))
	}
	return nil
}

func (f *fakeBookingRepo) Cancel(_ context.Context, _ repository.DBTX, id uuid.UUID, reason string, metadataPatch booking.Metadata) error {
	res, ok := f.reservations[id]
	if !ok {
		return infra.WrapRepoErr("reservation not found", nil, infra.KindNotFound)
	}
	if res.Status().IsTerminal() {
		return infra.WrapRepoErr("reservation already terminal", nil, infra.KindConflict)
	}
	f.put(replaceReservation(res, booking.StatusCancelled, res.PaidCents(), res.Metadata().Merge(metadataPatch), &reason))
	return nil
}

func (f *fakeBookingRepo) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	delete(f.reservations, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBookingRepo) FindStalePendingPayment(_ context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, res := range f.reservations {
		if res.Status() == booking.StatusPendingPayment && res.CreatedAt().Before(olderThan) {
			ids = append(ids, res.ID())
		}
	}
	return ids, nil
}

func (f *fakeBookingRepo) FindRecurrenceGroupMembers(_ context.Context, groupID uuid.UUID, exceptID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, res := range f.reservations {
		if res.ID() == exceptID {
			continue
		}
		if gid, ok := res.Metadata().RecurrenceGroup(); ok && gid == groupID {
			ids = append(ids, res.ID())
		}
	}
	return ids, nil
}

// ---------------------------------------------------------------------------

type fakePaymentRepo struct {
	payments map[uuid.UUID]*payment.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uuid.UUID]*payment.Payment{}}
}

func (f *fakePaymentRepo) put(p *payment.Payment) {
	f.payments[p.ID()] = p
}

func (f *fakePaymentRepo) Create(_ context.Context, _ repository.DBTX, p *payment.Payment) (uuid.UUID, error) {
	f.put(p)
	return p.ID(), nil
}

func (f *fakePaymentRepo) FindByExternalID(_ context.Context, externalID string) (*payment.Payment, error) {
	for _, p := range f.payments {
		if ext := p.ExternalID(); ext != nil && *ext == externalID {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
}

func (f *fakePaymentRepo) FindByProviderRef(_ context.Context, ref string) (*payment.Payment, error) {
	for _, p := range f.payments {
		if r, ok := p.Metadata().ProviderRef(); ok && r == ref {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
}

func (f *fakePaymentRepo) FindByReservationID(_ context.Context, reservationID uuid.UUID) (*payment.Payment, error) {
	for _, p := range f.payments {
		if p.ReservationID() == reservationID {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
}

func (f *fakePaymentRepo) Update(_ context.Context, _ repository.DBTX, id uuid.UUID, status payment.Status, externalID *string, metadataPatch payment.Metadata) error {
	p, ok := f.payments[id]
	if !ok {
		return infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
	}
	meta := p.Metadata()
	for k, v := range metadataPatch {
		meta[k] = v
	}
	ext := p.ExternalID()
	if externalID != nil {
		ext = externalID
	}
	f.put(payment.ReconstructPayment(
		p.ID(), p.ReservationID(), p.AmountCents(), p.Currency(), p.Method(),
		status, ext, meta, p.CreatedAt(), p.UpdatedAt(),
	))
	return nil
}

func (f *fakePaymentRepo) TryAcquireLock(_ context.Context, id uuid.UUID, now time.Time, staleAfter time.Duration) (bool, error) {
	p, ok := f.payments[id]
	if !ok {
		return false, infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
	}
	if p.Metadata().LockIsFresh(now, staleAfter) {
		return false, nil
	}
	p.Metadata().AcquireLock(now)
	return true, nil
}

func (f *fakePaymentRepo) ReleaseLock(_ context.Context, id uuid.UUID) error {
	if p, ok := f.payments[id]; ok {
		p.Metadata().ReleaseLock()
	}
	return nil
}

// ---------------------------------------------------------------------------

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*queue.Session
	// failCreate simulates the session write failing after the reservation
	// committed, forcing saga compensation.
	failCreate bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*queue.Session{}}
}

func (f *fakeSessionRepo) put(s *queue.Session) {
	f.sessions[s.ID()] = s
}

func replaceSession(s *queue.Session, status queue.SessionStatus, approval queue.ApprovalStatus, current int, summary *queue.Summary) *queue.Session {
	return queue.ReconstructSession(
		s.ID(), s.CourtID(), s.OrganizerID(), s.ReservationID(), s.Start(), s.End(),
		s.Mode(), s.GameFormat(), s.MaxPlayers(), current, s.CostPerGame(),
		s.Visibility(), status, approval, summary, s.CreatedAt(), s.UpdatedAt(),
	)
}

func (f *fakeSessionRepo) Create(_ context.Context, _ repository.DBTX, s *queue.Session) (uuid.UUID, error) {
	if f.failCreate {
		return uuid.Nil, infra.WrapRepoErr("insert failed", errors.New("connection reset"), infra.KindDBFailure)
	}
	f.put(s)
	return s.ID(), nil
}

func (f *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*queue.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, infra.WrapRepoErr("session not found", nil, infra.KindNotFound)
	}
	return s, nil
}

func (f *fakeSessionRepo) UpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, from, to queue.SessionStatus, approval queue.ApprovalStatus) error {
	s, ok := f.sessions[id]
	if !ok {
		return infra.WrapRepoErr("session not found", nil, infra.KindNotFound)
	}
	if s.Status() != from {
		return infra.WrapRepoErr("session status changed concurrently", nil, infra.KindConflict)
	}
	f.put(replaceSession(s, to, approval, s.CurrentPlayers(), s.Summary()))
	return nil
}

func (f *fakeSessionRepo) IncrementPlayers(_ context.Context, _ repository.DBTX, id uuid.UUID) (int, error) {
	s, ok := f.sessions[id]
	if !ok {
		return 0, infra.WrapRepoErr("session not found", nil, infra.KindNotFound)
	}
	if !s.Status().AcceptsJoins() || s.CurrentPlayers() >= s.MaxPlayers() {
		return 0, infra.WrapRepoErr("session full or not joinable", nil, infra.KindConflict)
	}
	next := s.CurrentPlayers() + 1
	f.put(replaceSession(s, s.Status(), s.Approval(), next, s.Summary()))
	return next, nil
}

func (f *fakeSessionRepo) DecrementPlayers(_ context.Context, _ repository.DBTX, id uuid.UUID) (int, error) {
	s, ok := f.sessions[id]
	if !ok {
		return 0, infra.WrapRepoErr("session not found", nil, infra.KindNotFound)
	}
	next := s.CurrentPlayers() - 1
	if next < 0 {
		next = 0
	}
	f.put(replaceSession(s, s.Status(), s.Approval(), next, s.Summary()))
	return next, nil
}

func (f *fakeSessionRepo) Close(_ context.Context, _ repository.DBTX, id uuid.UUID, summary queue.Summary) (bool, error) {
	s, ok := f.sessions[id]
	if !ok {
		return false, infra.WrapRepoErr("session not found", nil, infra.KindNotFound)
	}
	if s.Status() == queue.SessionClosed {
		return false, nil
	}
	f.put(replaceSession(s, queue.SessionClosed, s.Approval(), s.CurrentPlayers(), &summary))
	return true, nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	delete(f.sessions, id)
	return nil
}

// ---------------------------------------------------------------------------

type fakeParticipantRepo struct {
	participants map[uuid.UUID]*queue.Participant
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{participants: map[uuid.UUID]*queue.Participant{}}
}

func (f *fakeParticipantRepo) FindBySessionAndUser(_ context.Context, sessionID, userID uuid.UUID) (*queue.Participant, error) {
	for _, p := range f.participants {
		if p.SessionID() == sessionID && p.UserID() == userID {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("participant not found", nil, infra.KindNotFound)
}

func (f *fakeParticipantRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]*queue.Participant, error) {
	var out []*queue.Participant
	for _, p := range f.participants {
		if p.SessionID() == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeParticipantRepo) Insert(_ context.Context, _ repository.DBTX, p *queue.Participant) (uuid.UUID, error) {
	for _, existing := range f.participants {
		if existing.SessionID() == p.SessionID() && existing.UserID() == p.UserID() {
			return uuid.Nil, infra.WrapRepoErr("duplicate participant", nil, infra.KindDuplicateKey)
		}
	}
	f.participants[p.ID()] = p
	return p.ID(), nil
}

func (f *fakeParticipantRepo) Rejoin(_ context.Context, _ repository.DBTX, id uuid.UUID, joinedAt time.Time) error {
	p, ok := f.participants[id]
	if !ok {
		return infra.WrapRepoErr("participant not found", nil, infra.KindNotFound)
	}
	if p.IsActive() {
		return infra.WrapRepoErr("participant is not left", nil, infra.KindConflict)
	}
	p.Rejoin(joinedAt)
	return nil
}

func (f *fakeParticipantRepo) MarkLeft(_ context.Context, _ repository.DBTX, id uuid.UUID, leftAt time.Time) error {
	p, ok := f.participants[id]
	if !ok {
		return infra.WrapRepoErr("participant not found", nil, infra.KindNotFound)
	}
	f.participants[id] = queue.ReconstructParticipant(
		p.ID(), p.SessionID(), p.UserID(), queue.ParticipantLeft,
		p.GamesPlayed(), p.GamesWon(), p.AmountOwedCents(), p.PaymentState(),
		p.JoinedAt(), &leftAt,
	)
	return nil
}

func (f *fakeParticipantRepo) UpdateAccounting(_ context.Context, _ repository.DBTX, p *queue.Participant) error {
	f.participants[p.ID()] = p
	return nil
}

// ---------------------------------------------------------------------------

type fakeNotificationRepo struct {
	jobs []repository.NotificationJob
}

func (f *fakeNotificationRepo) CreateJob(_ context.Context, _ repository.DBTX, job repository.NotificationJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeNotificationRepo) ofKind(kind string) []repository.NotificationJob {
	var out []repository.NotificationJob
	for _, j := range f.jobs {
		if j.Kind == kind {
			out = append(out, j)
		}
	}
	return out
}

// ---------------------------------------------------------------------------

type fakeProvider struct {
	sourceErrs  []error // consumed one per CreateSource call; nil means success
	chargeErr   error
	sourceCalls int
	chargeCalls int
}

func (f *fakeProvider) CreateSource(_ context.Context, in paymongo.CreateSourceInput) (*paymongo.Source, error) {
	f.sourceCalls++
	if len(f.sourceErrs) > 0 {
		err := f.sourceErrs[0]
		f.sourceErrs = f.sourceErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &paymongo.Source{ID: "src_test_1", CheckoutURL: "https://checkout.example/src_test_1"}, nil
}

func (f *fakeProvider) CreateCharge(_ context.Context, in paymongo.CreateChargeInput) (*paymongo.Charge, error) {
	f.chargeCalls++
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	return &paymongo.Charge{ID: "ch_test_1", Status: "paid"}, nil
}

// ---------------------------------------------------------------------------

type fakeLimiter struct {
	denied     bool
	retryAfter time.Duration
	err        error
	calls      int
}

func (f *fakeLimiter) Allow(_ context.Context, _ string) (ratelimit.Decision, error) {
	f.calls++
	if f.err != nil {
		return ratelimit.Decision{}, f.err
	}
	if f.denied {
		return ratelimit.Decision{Allowed: false, RetryAfter: f.retryAfter}, nil
	}
	return ratelimit.Decision{Allowed: true}, nil
}
