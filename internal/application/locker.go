package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// Lock は取得済みのロック
type Lock interface {
	Release(ctx context.Context) error
}

// Locker はキー単位の排他を提供する
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// CourtDayKey はコート・日付の排他キーを返す
func CourtDayKey(courtID string, date time.Time) string {
	return fmt.Sprintf("court:%s:%s", courtID, timeslot.DateKey(date))
}

// LocalLocker はプロセス内のキー単位ミューテックス。単一ノード構成とテストで使用する
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker はLocalLockerを作成する
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*localSlot)}
}

// Acquire はロックを取得する。ctx が終了した場合は ctx.Err() を返す
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &localLock{locker: l, key: key, slot: s}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

type localLock struct {
	locker *LocalLocker
	key    string
	slot   *localSlot
	once   sync.Once
}

func (l *localLock) Release(context.Context) error {
	l.once.Do(func() {
		<-l.slot.ch
		l.locker.unref(l.key, l.slot)
	})
	return nil
}
