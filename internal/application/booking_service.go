package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/picklefed/court-reservation/internal/domain/availability"
	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/payment"
	"github.com/picklefed/court-reservation/internal/domain/pricing"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
	"github.com/picklefed/court-reservation/internal/pkg/clock"
	"github.com/picklefed/court-reservation/internal/pkg/logger"
	"github.com/picklefed/court-reservation/internal/pkg/metrics"
)

const tracerName = "github.com/picklefed/court-reservation/internal/application"

// 一覧取得の件数
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// BookingService はコート予約の作成と状態遷移を取りまとめる
type BookingService struct {
	courts         court.Repository
	reservations   reservation.Repository
	payments       payment.Gateway
	clock          clock.Clock
	locker         Locker
	pricer         *pricing.Calculator
	policy         reservation.CancellationPolicy
	publisher      EventPublisher
	cache          AvailabilityCache
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	requirePayment bool
}

// Option はBookingServiceの任意設定
type Option func(*BookingService)

// WithCalculator は料金計算を差し替える
func WithCalculator(c *pricing.Calculator) Option {
	return func(s *BookingService) { s.pricer = c }
}

// WithCancellationPolicy は返金ポリシーを差し替える
func WithCancellationPolicy(p reservation.CancellationPolicy) Option {
	return func(s *BookingService) { s.policy = p }
}

// WithPublisher はイベント配信先を設定する
func WithPublisher(p EventPublisher) Option {
	return func(s *BookingService) { s.publisher = p }
}

// WithAvailabilityCache は空き状況照会のキャッシュを設定する
func WithAvailabilityCache(c AvailabilityCache) Option {
	return func(s *BookingService) { s.cache = c }
}

// WithMetrics はメトリクスを設定する
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *BookingService) { s.metrics = m }
}

// WithTracer はトレーサーを差し替える
func WithTracer(t trace.Tracer) Option {
	return func(s *BookingService) { s.tracer = t }
}

// WithPaymentRequired は予約作成時に決済を必要とするかを設定する。
// false の場合、予約は confirmed で作成される
func WithPaymentRequired(required bool) Option {
	return func(s *BookingService) { s.requirePayment = required }
}

// NewBookingService はBookingServiceを作成する
func NewBookingService(
	courts court.Repository,
	reservations reservation.Repository,
	payments payment.Gateway,
	clk clock.Clock,
	locker Locker,
	opts ...Option,
) *BookingService {
	s := &BookingService{
		courts:         courts,
		reservations:   reservations,
		payments:       payments,
		clock:          clk,
		locker:         locker,
		pricer:         pricing.NewCalculator(nil),
		policy:         reservation.DefaultPolicy(),
		tracer:         otel.Tracer(tracerName),
		requirePayment: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.locker == nil {
		s.locker = NewLocalLocker()
	}
	if s.pricer == nil {
		s.pricer = pricing.NewCalculator(nil)
	}
	return s
}

// BookInput は予約リクエスト
type BookInput struct {
	CourtID    string
	UserID     string
	Date       time.Time
	Slot       timeslot.Slot
	MatchType  string
	GuestCount int
	IsMember   bool
	Notes      string
}

func (in BookInput) validate() error {
	if in.CourtID == "" {
		return reservation.ErrCourtIDRequired
	}
	if in.UserID == "" {
		return reservation.ErrUserIDRequired
	}
	if in.Date.IsZero() {
		return reservation.ErrDateRequired
	}
	if err := in.Slot.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.MatchType) == "" {
		return reservation.ErrMatchTypeRequired
	}
	if in.GuestCount < 0 {
		return reservation.ErrInvalidGuestCount
	}
	return nil
}

// Book はコート・日付を排他したうえで空き状況を取り直し、予約を作成する。
// 開始時刻を過ぎたかはコートのタイムゾーンで判定する
func (s *BookingService) Book(ctx context.Context, in BookInput) (res *reservation.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.Book", trace.WithAttributes(
		attribute.String("court.id", in.CourtID),
		attribute.String("reservation.date", timeslot.DateKey(in.Date)),
		attribute.String("reservation.slot", in.Slot.String()),
	))
	defer func() {
		s.metrics.ObserveBooking(bookingStatus(err))
		endSpan(span, err)
	}()

	if err = in.validate(); err != nil {
		return nil, err
	}

	c, err := s.courts.GetByID(ctx, in.CourtID)
	if err != nil {
		return nil, storageError("court.get", err)
	}
	// 枠の時刻はコートのタイムゾーンで解釈する
	if start, _ := in.Slot.On(in.Date, c.Zone()); start.Before(s.clock.Now()) {
		return nil, apperr.NewValidationError("slot", "開始時刻を過ぎた枠は予約できません")
	}

	key := CourtDayKey(in.CourtID, in.Date)
	lock, err := s.acquire(ctx, key)
	if err != nil {
		if errors.Is(err, ErrLockContended) {
			return nil, &SlotUnavailableError{CourtID: in.CourtID, Date: in.Date, Slot: in.Slot, Err: ErrLockContended}
		}
		return nil, err
	}
	defer s.release(ctx, key, lock)

	grid, err := c.Grid()
	if err != nil {
		return nil, fmt.Errorf("予約枠の生成に失敗: %w", err)
	}
	covered, ok := timeslot.Covering(grid, in.Slot)
	if !ok {
		return nil, &SlotUnavailableError{CourtID: c.ID, Date: in.Date, Slot: in.Slot, Reason: availability.ReasonOffGrid}
	}

	// 判定は毎回ストレージから取り直す
	existing, err := s.reservations.LoadReservations(ctx, c.ID, in.Date)
	if err != nil {
		return nil, storageError("reservation.load", err)
	}
	idx := availability.Build(c, in.Date, grid, existing)
	for _, sl := range covered {
		if e := idx[sl]; !e.Available {
			return nil, &SlotUnavailableError{CourtID: c.ID, Date: in.Date, Slot: in.Slot, Reason: e.Reason}
		}
	}

	quote, err := s.pricer.Price(c, in.Slot.Duration(), in.GuestCount, in.IsMember)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	r, err := reservation.NewReservation(reservation.NewParams{
		CourtID:         c.ID,
		ClubID:          c.ClubID,
		UserID:          in.UserID,
		Date:            in.Date,
		Location:        c.Location,
		Slot:            in.Slot,
		MatchType:       in.MatchType,
		GuestCount:      in.GuestCount,
		Notes:           in.Notes,
		Pricing:         quote.ToPricing(),
		RequiresPayment: s.requirePayment && quote.FinalAmount > 0,
	}, now)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	saved, err := s.reservations.Insert(ctx, r)
	if err != nil {
		if errors.Is(err, reservation.ErrOverlap) {
			return nil, &SlotUnavailableError{CourtID: c.ID, Date: in.Date, Slot: in.Slot, Reason: availability.ReasonReserved, Err: err}
		}
		return nil, storageError("reservation.insert", err)
	}

	s.invalidate(ctx, saved)
	s.publish(ctx, EventReservationCreated, saved)
	logger.Ctx(ctx).Info("コート予約を作成しました",
		zap.String("reservation_id", saved.ID),
		zap.String("court_id", saved.CourtID),
		zap.String("date", timeslot.DateKey(saved.ReservationDate)),
		zap.String("slot", saved.Slot().String()),
		zap.String("status", string(saved.Status)),
		zap.Int64("final_amount", saved.FinalAmount),
	)
	return saved, nil
}

// Availability はコート・日付の空き状況を返す。照会用でキャッシュを利用する。
// 開始時刻を過ぎた枠は予約不可として返す
func (s *BookingService) Availability(ctx context.Context, courtID string, date time.Time) (*AvailabilitySnapshot, error) {
	if courtID == "" {
		return nil, court.ErrCourtIDRequired
	}
	if date.IsZero() {
		return nil, reservation.ErrDateRequired
	}
	snap, err := s.loadAvailability(ctx, courtID, date)
	if err != nil {
		return nil, err
	}
	snap.closePast(s.clock.Now())
	return snap, nil
}

func (s *BookingService) loadAvailability(ctx context.Context, courtID string, date time.Time) (*AvailabilitySnapshot, error) {
	var (
		gen    int64
		storable bool
	)
	if s.cache != nil {
		snap, g, err := s.cache.Get(ctx, courtID, timeslot.DateKey(date))
		switch {
		case err != nil:
			logger.Ctx(ctx).Warn("空き状況キャッシュの取得に失敗", zap.String("court_id", courtID), zap.Error(err))
		case snap != nil:
			return snap, nil
		default:
			gen, storable = g, true
		}
	}

	c, err := s.courts.GetByID(ctx, courtID)
	if err != nil {
		return nil, storageError("court.get", err)
	}
	grid, err := c.Grid()
	if err != nil {
		return nil, fmt.Errorf("予約枠の生成に失敗: %w", err)
	}
	existing, err := s.reservations.LoadReservations(ctx, c.ID, date)
	if err != nil {
		return nil, storageError("reservation.load", err)
	}
	snap := newSnapshot(c.ID, date, c.Zone(), c.HourlyRate, c.MemberRate, grid, availability.Build(c, date, grid, existing))

	// 世代を取得できたときだけ保存する
	if storable {
		if err := s.cache.Set(ctx, gen, snap); err != nil {
			logger.Ctx(ctx).Warn("空き状況キャッシュの保存に失敗", zap.String("court_id", courtID), zap.Error(err))
		}
	}
	return snap, nil
}

// ConfirmPayment は決済を実行し、成功した場合に予約を confirmed にする。
// 決済に失敗した予約は pending のまま残る
func (s *BookingService) ConfirmPayment(ctx context.Context, id, paymentMethod string) (res *reservation.Reservation, err error) {
	ctx, span := s.tracer.Start(ctx, "BookingService.ConfirmPayment", trace.WithAttributes(attribute.String("reservation.id", id)))
	defer func() { endSpan(span, err) }()

	return s.transition(ctx, id, reservation.EventConfirmPayment, EventReservationConfirmed,
		func(ctx context.Context, r *reservation.Reservation, now time.Time) error {
			// 遷移できない予約には課金しない
			if err := r.Clone().ConfirmPayment("", now); err != nil {
				return err
			}
			receipt, err := s.charge(ctx, r, paymentMethod)
			if err != nil {
				return err
			}
			return r.ConfirmPayment(receipt.Reference, s.clock.Now())
		})
}

func (s *BookingService) charge(ctx context.Context, r *reservation.Reservation, method string) (payment.Receipt, error) {
	if s.payments == nil {
		s.metrics.ObservePayment("error")
		return payment.Receipt{}, &PaymentFailure{ReservationID: r.ID, Message: "決済手段が設定されていません"}
	}
	receipt, err := s.payments.Charge(ctx, payment.ChargeRequest{
		Amount:         r.FinalAmount,
		Method:         method,
		IdempotencyKey: chargeIdempotencyKey(r),
		Metadata: map[string]string{
			"reservation_id": r.ID,
			"court_id":       r.CourtID,
			"user_id":        r.UserID,
		},
	})
	if err != nil {
		s.metrics.ObservePayment("error")
		return receipt, &PaymentFailure{ReservationID: r.ID, Reference: receipt.Reference, Err: err}
	}
	if !receipt.Success {
		s.metrics.ObservePayment("declined")
		return receipt, &PaymentFailure{ReservationID: r.ID, Reference: receipt.Reference, Message: receipt.Message, Err: payment.ErrDeclined}
	}
	s.metrics.ObservePayment("success")
	return receipt, nil
}

// chargeIdempotencyKey は保存済みの版ごとに決まる冪等キー。
// 決済後の保存に失敗して再試行しても同じキーになる
func chargeIdempotencyKey(r *reservation.Reservation) string {
	return fmt.Sprintf("reservation-%s-v%d", r.ID, r.Version)
}

// CancelInput はキャンセルリクエスト
type CancelInput struct {
	ReservationID string
	By            string
	Reason        string
}

// Cancel は予約をキャンセルし、返金額を記録する
func (s *BookingService) Cancel(ctx context.Context, in CancelInput) (*reservation.Reservation, error) {
	return s.transition(ctx, in.ReservationID, reservation.EventCancel, EventReservationCancelled,
		func(_ context.Context, r *reservation.Reservation, now time.Time) error {
			return r.Cancel(reservation.CancelParams{By: in.By, Reason: in.Reason}, s.policy, now)
		})
}

// CheckIn は来場を記録する
func (s *BookingService) CheckIn(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.transition(ctx, id, reservation.EventCheckIn, EventReservationCheckedIn,
		func(_ context.Context, r *reservation.Reservation, now time.Time) error {
			return r.CheckIn(now)
		})
}

// Complete はプレー終了を記録する
func (s *BookingService) Complete(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.transition(ctx, id, reservation.EventComplete, EventReservationCompleted,
		func(_ context.Context, r *reservation.Reservation, now time.Time) error {
			return r.Complete(now)
		})
}

// MarkNoShow は予約を無断キャンセルとして記録する
func (s *BookingService) MarkNoShow(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.transition(ctx, id, reservation.EventNoShow, EventReservationNoShow,
		func(_ context.Context, r *reservation.Reservation, now time.Time) error {
			return r.MarkNoShow(now)
		})
}

// MarkNoShows は開始から grace 以上経過してもチェックインのない confirmed 予約を一括で no_show にする
func (s *BookingService) MarkNoShows(ctx context.Context, grace time.Duration) (int, error) {
	before := s.clock.Now().Add(-grace)
	candidates, err := s.reservations.ListNoShowCandidates(ctx, before)
	if err != nil {
		return 0, storageError("reservation.list_no_show", err)
	}

	var (
		marked int
		errs   []error
	)
	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.MarkNoShow(ctx, r.ID); err != nil {
			if errors.Is(err, apperr.ErrInvalidTransition) {
				// 取得後にチェックイン・キャンセルされた
				logger.Debug("無断キャンセル対象外", zap.String("reservation_id", r.ID), zap.Error(err))
				continue
			}
			errs = append(errs, fmt.Errorf("reservation %s: %w", r.ID, err))
			continue
		}
		marked++
	}
	s.metrics.AddNoShows(marked)
	return marked, errors.Join(errs...)
}

// GetReservation は予約を取得する
func (s *BookingService) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("reservation.get", err)
	}
	return r, nil
}

// ListCourts はクラブのコート一覧を取得する
func (s *BookingService) ListCourts(ctx context.Context, clubID string) ([]*court.Court, error) {
	if clubID == "" {
		return nil, apperr.NewValidationError("club_id", "クラブIDは必須です")
	}
	list, err := s.courts.ListByClub(ctx, clubID)
	if err != nil {
		return nil, storageError("court.list_by_club", err)
	}
	return list, nil
}

// ListUserReservations はユーザーの予約一覧を取得する
func (s *BookingService) ListUserReservations(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	if userID == "" {
		return nil, reservation.ErrUserIDRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.reservations.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, storageError("reservation.list_by_user", err)
	}
	return list, nil
}

type transitionFunc func(ctx context.Context, r *reservation.Reservation, now time.Time) error

// transition は予約単位で排他し、状態遷移を適用して保存する
func (s *BookingService) transition(ctx context.Context, id string, ev reservation.Event, eventKey string, apply transitionFunc) (*reservation.Reservation, error) {
	if id == "" {
		return nil, apperr.NewValidationError("id", "予約IDは必須です")
	}
	key := "reservation:" + id
	lock, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, key, lock)

	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("reservation.get", err)
	}

	if err := apply(ctx, r, s.clock.Now()); err != nil {
		s.metrics.ObserveTransition(string(ev), false)
		return nil, err
	}

	saved, err := s.reservations.Update(ctx, r)
	if err != nil {
		if ev == reservation.EventConfirmPayment {
			logger.Ctx(ctx).Error("決済後の予約更新に失敗しました",
				zap.String("reservation_id", r.ID),
				zap.String("payment_reference", r.PaymentReference),
				zap.Error(err),
			)
		}
		return nil, storageError("reservation.update", err)
	}
	s.metrics.ObserveTransition(string(ev), true)

	s.invalidate(ctx, saved)
	s.publish(ctx, eventKey, saved)
	logger.Ctx(ctx).Info("予約の状態を更新しました",
		zap.String("reservation_id", saved.ID),
		zap.String("event", string(ev)),
		zap.String("status", string(saved.Status)),
		zap.Int64("refund_amount", saved.RefundAmount),
	)
	return saved, nil
}

func (s *BookingService) acquire(ctx context.Context, key string) (Lock, error) {
	started := time.Now()
	lock, err := s.locker.Acquire(ctx, key)
	s.metrics.ObserveLock("acquire", err == nil, started)
	if err == nil {
		return lock, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, &PersistenceError{Op: "lock.acquire", Err: err}
}

func (s *BookingService) release(ctx context.Context, key string, lock Lock) {
	started := time.Now()
	err := lock.Release(context.WithoutCancel(ctx))
	s.metrics.ObserveLock("release", err == nil, started)
	if err != nil {
		logger.Warn("ロック解放に失敗", zap.String("key", key), zap.Error(err))
	}
}

func (s *BookingService) invalidate(ctx context.Context, r *reservation.Reservation) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, r.CourtID, timeslot.DateKey(r.ReservationDate)); err != nil {
		logger.Ctx(ctx).Warn("空き状況キャッシュの削除に失敗", zap.String("court_id", r.CourtID), zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, key string, r *reservation.Reservation) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, key, newReservationEvent(r, s.clock.Now())); err != nil {
		logger.Ctx(ctx).Warn("イベント配信に失敗", zap.String("event", key), zap.String("reservation_id", r.ID), zap.Error(err))
	}
}

// storageError は NotFound とコンテキスト終了以外のストレージエラーを PersistenceError にする
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return persistenceError(op, err)
}

func bookingStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrLockContended):
		return "lock_failed"
	case errors.Is(err, apperr.ErrSlotUnavailable):
		return "unavailable"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrPersistence):
		return "persistence_error"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
