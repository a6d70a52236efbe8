package reservation

import (
	"context"
	"time"
)

// Repository は予約の永続化を提供する
type Repository interface {
	// LoadReservations はコート・日付の予約を全状態分取得する
	LoadReservations(ctx context.Context, courtID string, date time.Time) ([]*Reservation, error)

	// Insert は予約を保存する。占有中の予約と時間が重なる場合は ErrOverlap を返す
	Insert(ctx context.Context, r *Reservation) (*Reservation, error)

	// Update は予約を更新する（楽観的ロック）。競合時は ErrVersionConflict を返す
	Update(ctx context.Context, r *Reservation) (*Reservation, error)

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// ListByUser はユーザーの予約一覧を取得する
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Reservation, error)

	// ListNoShowCandidates は開始時刻が before 以前でチェックインのない confirmed 予約を取得する
	ListNoShowCandidates(ctx context.Context, before time.Time) ([]*Reservation, error)
}
