// Package clock は現在時刻の取得を抽象化する
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返す
type Clock interface {
	Now() time.Time
}

// Real はシステム時刻を返すClock
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed はテスト用の固定時刻Clock。Advanceで進められる
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed は指定時刻で止まったClockを作成する
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set は時刻を変更する
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance は時刻をdだけ進める
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
