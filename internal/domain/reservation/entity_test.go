package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklefed/court-reservation/internal/domain/timeslot"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

var (
	testDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	testSlot = timeslot.Slot{Start: timeslot.At(8, 0), End: timeslot.At(10, 0)}
	// 予約開始の1日前
	testNow = time.Date(2025, 5, 31, 8, 0, 0, 0, time.UTC)
)

func validParams() NewParams {
	return NewParams{
		CourtID:   "court-1",
		ClubID:    "club-1",
		UserID:    "user-1",
		Date:      testDate,
		Slot:      testSlot,
		MatchType: "doubles",
		Pricing: Pricing{
			HourlyRate: 3500, TotalAmount: 9000, MemberDiscount: 2000, FinalAmount: 7000,
		},
		RequiresPayment: true,
	}
}

func TestNewReservation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *NewParams)
		wantErr error
	}{
		{name: "正常な予約作成", modify: func(p *NewParams) {}},
		{name: "コートID未指定", modify: func(p *NewParams) { p.CourtID = "" }, wantErr: ErrCourtIDRequired},
		{name: "ユーザーID未指定", modify: func(p *NewParams) { p.UserID = "" }, wantErr: ErrUserIDRequired},
		{name: "予約日未指定", modify: func(p *NewParams) { p.Date = time.Time{} }, wantErr: ErrDateRequired},
		{name: "試合形式が空白", modify: func(p *NewParams) { p.MatchType = "  " }, wantErr: ErrMatchTypeRequired},
		{name: "ゲスト数が負", modify: func(p *NewParams) { p.GuestCount = -1 }, wantErr: ErrInvalidGuestCount},
		{name: "開始と終了が逆", modify: func(p *NewParams) {
			p.Slot = timeslot.Slot{Start: timeslot.At(10, 0), End: timeslot.At(8, 0)}
		}, wantErr: apperr.ErrValidation},
		{name: "金額の不整合", modify: func(p *NewParams) { p.Pricing.FinalAmount = 9000 }, wantErr: ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.modify(&p)
			r, err := NewReservation(p, testNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, apperr.ErrValidation)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, r.ID)
			assert.Equal(t, StatusPending, r.Status)
			assert.Equal(t, PaymentPending, r.PaymentStatus)
			assert.Equal(t, 2.0, r.DurationHours)
			assert.Equal(t, int64(7000), r.FinalAmount)
			assert.NoError(t, r.Validate())
		})
	}
}

func TestReservation_StartsAtInCourtTimeZone(t *testing.T) {
	p := validParams()
	p.Location = time.FixedZone("JST", 9*60*60)
	r, err := NewReservation(p, testNow)
	require.NoError(t, err)

	// 6/1 08:00 JST は 5/31 23:00 UTC
	assert.True(t, r.StartsAt().Equal(time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC)))
	assert.True(t, r.EndsAt().Equal(time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2025-06-01", timeslot.DateKey(r.ReservationDate))

	t.Run("無断キャンセル判定も現地の開始時刻", func(t *testing.T) {
		require.NoError(t, r.ConfirmPayment("pi_1", testNow))
		assert.ErrorIs(t, r.MarkNoShow(time.Date(2025, 5, 31, 22, 59, 0, 0, time.UTC)), apperr.ErrInvalidTransition)
		assert.NoError(t, r.MarkNoShow(time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC)))
	})
}

func TestNewReservation_NoPaymentRequired(t *testing.T) {
	p := validParams()
	p.RequiresPayment = false
	r, err := NewReservation(p, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, r.Status)
	assert.Equal(t, PaymentNotRequired, r.PaymentStatus)
}

func TestReservation_ConfirmPayment(t *testing.T) {
	r := createTestReservation(t)
	later := testNow.Add(time.Minute)

	require.NoError(t, r.ConfirmPayment("pi_123", later))
	assert.Equal(t, StatusConfirmed, r.Status)
	assert.Equal(t, PaymentCompleted, r.PaymentStatus)
	assert.Equal(t, "pi_123", r.PaymentReference)
	assert.Equal(t, later, r.UpdatedAt)

	err := r.ConfirmPayment("pi_456", later)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, StatusConfirmed, ite.From)
	assert.Equal(t, EventConfirmPayment, ite.Event)
}

func TestReservation_Cancel_CallsPolicy(t *testing.T) {
	r := createConfirmedReservation(t)
	// 開始2時間前
	now := r.StartsAt().Add(-2 * time.Hour)

	var gotAmount int64
	var gotUntil time.Duration
	policy := CancellationPolicyFunc(func(amount int64, until time.Duration) int64 {
		gotAmount, gotUntil = amount, until
		return 1234
	})

	require.NoError(t, r.Cancel(CancelParams{By: "user-1", Reason: "雨天"}, policy, now))
	assert.Equal(t, int64(7000), gotAmount)
	assert.Equal(t, 2*time.Hour, gotUntil)
	assert.Equal(t, StatusCancelled, r.Status)
	assert.Equal(t, int64(1234), r.RefundAmount)
	assert.Equal(t, PaymentRefunded, r.PaymentStatus)
	require.NotNil(t, r.CancelledAt)
	assert.Equal(t, now, *r.CancelledAt)
	assert.Equal(t, "user-1", r.CancelledBy)
	assert.Equal(t, "雨天", r.CancellationReason)
}

func TestReservation_Cancel_ClampsRefund(t *testing.T) {
	r := createConfirmedReservation(t)
	policy := CancellationPolicyFunc(func(int64, time.Duration) int64 { return 999999 })
	require.NoError(t, r.Cancel(CancelParams{By: "admin"}, policy, testNow))
	assert.Equal(t, r.FinalAmount, r.RefundAmount)
}

func TestReservation_Cancel_UnpaidSkipsPolicy(t *testing.T) {
	r := createTestReservation(t)
	called := false
	policy := CancellationPolicyFunc(func(int64, time.Duration) int64 {
		called = true
		return 100
	})
	require.NoError(t, r.Cancel(CancelParams{By: "user-1"}, policy, testNow))
	assert.False(t, called)
	assert.Equal(t, int64(0), r.RefundAmount)
	assert.Equal(t, PaymentPending, r.PaymentStatus)
}

func TestReservation_Cancel_RequiresActor(t *testing.T) {
	r := createConfirmedReservation(t)
	before := r.Clone()
	err := r.Cancel(CancelParams{}, DefaultPolicy(), testNow)
	assert.ErrorIs(t, err, ErrCancelledByRequired)
	assert.Equal(t, before, r)
}

func TestReservation_CheckInAndComplete(t *testing.T) {
	r := createConfirmedReservation(t)
	start := r.StartsAt()

	err := r.Complete(start.Add(time.Hour))
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition, "チェックイン前は完了できない")

	require.NoError(t, r.CheckIn(start.Add(-5*time.Minute)))
	assert.Equal(t, StatusConfirmed, r.Status)
	require.NotNil(t, r.ActualStartTime)

	assert.ErrorIs(t, r.CheckIn(start), apperr.ErrInvalidTransition, "二重チェックイン")

	end := start.Add(2 * time.Hour)
	require.NoError(t, r.Complete(end))
	assert.Equal(t, StatusCompleted, r.Status)
	require.NotNil(t, r.ActualEndTime)
	assert.Equal(t, end, *r.ActualEndTime)
}

func TestReservation_MarkNoShow(t *testing.T) {
	t.Run("開始後チェックインなしで no_show", func(t *testing.T) {
		r := createConfirmedReservation(t)
		require.NoError(t, r.MarkNoShow(r.StartsAt().Add(30*time.Minute)))
		assert.Equal(t, StatusNoShow, r.Status)
		assert.Equal(t, int64(0), r.RefundAmount)
	})
	t.Run("開始前は no_show にできない", func(t *testing.T) {
		r := createConfirmedReservation(t)
		assert.ErrorIs(t, r.MarkNoShow(r.StartsAt().Add(-time.Minute)), apperr.ErrInvalidTransition)
		assert.Equal(t, StatusConfirmed, r.Status)
	})
	t.Run("チェックイン済みは no_show にできない", func(t *testing.T) {
		r := createConfirmedReservation(t)
		require.NoError(t, r.CheckIn(r.StartsAt()))
		assert.ErrorIs(t, r.MarkNoShow(r.StartsAt().Add(time.Hour)), apperr.ErrInvalidTransition)
	})
}

// 遷移表にない操作は全て失敗し、エンティティは変更されない
func TestReservation_LifecycleClosure(t *testing.T) {
	events := []Event{EventConfirmPayment, EventCancel, EventCheckIn, EventComplete, EventNoShow}
	allowed := map[Status]map[Event]bool{
		StatusPending:   {EventConfirmPayment: true, EventCancel: true},
		StatusConfirmed: {EventCancel: true, EventCheckIn: true, EventComplete: true, EventNoShow: true},
	}

	for _, from := range Statuses {
		for _, ev := range events {
			from, ev := from, ev
			t.Run(string(from)+"/"+string(ev), func(t *testing.T) {
				r := createTestReservation(t)
				r.Status = from
				if ev == EventComplete {
					// 完了の前提条件を満たしておく
					at := r.StartsAt()
					r.CheckedInAt = &at
				}
				before := r.Clone()

				err := apply(r, ev, r.StartsAt().Add(time.Hour))
				if allowed[from][ev] {
					require.NoError(t, err)
					return
				}
				var ite *InvalidTransitionError
				require.ErrorAs(t, err, &ite)
				assert.Equal(t, from, ite.From)
				assert.Equal(t, ev, ite.Event)
				assert.Equal(t, before, r, "失敗時はエンティティを変更しない")
			})
		}
	}
}

func TestStatus(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid())
		assert.Equal(t, s == StatusCompleted || s == StatusCancelled || s == StatusNoShow, s.Terminal())
	}
	assert.False(t, Status("unknown").Valid())
	assert.True(t, StatusCompleted.Blocking())
	assert.False(t, StatusCancelled.Blocking())
	assert.False(t, StatusNoShow.Blocking())
}

func TestReservation_Conflicts(t *testing.T) {
	a := createTestReservation(t)
	b := createTestReservation(t)
	assert.True(t, a.Conflicts(b))

	b.StartTime, b.EndTime = timeslot.At(10, 0), timeslot.At(12, 0)
	assert.False(t, a.Conflicts(b), "連続する枠は競合しない")

	c := createTestReservation(t)
	c.Status = StatusCancelled
	assert.False(t, a.Conflicts(c), "キャンセル済みは競合しない")

	d := createTestReservation(t)
	d.ReservationDate = testDate.AddDate(0, 0, 1)
	assert.False(t, a.Conflicts(d))
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: StatusCancelled, Event: EventConfirmPayment}
	assert.Contains(t, err.Error(), "cancelled")
	assert.Contains(t, err.Error(), "confirm_payment")
}

func apply(r *Reservation, ev Event, now time.Time) error {
	switch ev {
	case EventConfirmPayment:
		return r.ConfirmPayment("ref", now)
	case EventCancel:
		return r.Cancel(CancelParams{By: "user-1"}, DefaultPolicy(), now)
	case EventCheckIn:
		return r.CheckIn(now)
	case EventComplete:
		return r.Complete(now)
	case EventNoShow:
		return r.MarkNoShow(now)
	}
	return nil
}

func createTestReservation(t *testing.T) *Reservation {
	r, err := NewReservation(validParams(), testNow)
	require.NoError(t, err)
	return r
}

func createConfirmedReservation(t *testing.T) *Reservation {
	r := createTestReservation(t)
	require.NoError(t, r.ConfirmPayment("pi_test", testNow))
	return r
}
