package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklefed/court-reservation/internal/domain/availability"
	"github.com/picklefed/court-reservation/internal/pkg/apperr"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock, err := l.Acquire(ctx, "court:court-1:2025-06-02")
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			_ = lock.Release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, l.slots)
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	a, err := l.Acquire(ctx, "court:court-1:2025-06-02")
	require.NoError(t, err)
	defer a.Release(ctx)

	ctx2, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	b, err := l.Acquire(ctx2, "court:court-2:2025-06-02")
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx))
}

func TestLocalLocker_ContextCancelledWhileWaiting(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	held, err := l.Acquire(ctx, "key")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "key")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Release(ctx))
	// 二重解放しても次の取得を妨げない
	require.NoError(t, held.Release(ctx))

	again, err := l.Acquire(ctx, "key")
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
	assert.Empty(t, l.slots)
}

func TestCourtDayKey(t *testing.T) {
	assert.Equal(t, "court:court-1:2025-06-02", CourtDayKey("court-1", bookDate.Add(15*time.Hour)))
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")

	sue := &SlotUnavailableError{CourtID: "court-1", Date: bookDate, Slot: slotOf(8, 10), Reason: availability.ReasonReserved}
	assert.True(t, errors.Is(sue, apperr.ErrSlotUnavailable))
	assert.Contains(t, sue.Error(), "08:00-10:00")
	assert.Contains(t, sue.Error(), "reserved")

	pe := &PersistenceError{Op: "reservation.insert", Err: cause}
	assert.True(t, errors.Is(pe, apperr.ErrPersistence))
	assert.True(t, errors.Is(pe, cause))
	assert.Same(t, error(pe), persistenceError("other", pe))

	pf := &PaymentFailure{ReservationID: "r-1", Message: "card_declined"}
	assert.True(t, errors.Is(pf, apperr.ErrPayment))
	assert.False(t, apperr.IsRetryable(pf))
	assert.Contains(t, pf.Error(), "card_declined")
}
