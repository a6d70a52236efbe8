package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

type reservationRow struct {
	ID                 string     `db:"id"`
	CourtID            string     `db:"court_id"`
	ClubID             string     `db:"club_id"`
	UserID             string     `db:"user_id"`
	ReservationDate    time.Time  `db:"reservation_date"`
	TimeZone           string     `db:"time_zone"`
	StartMinute        int        `db:"start_minute"`
	EndMinute          int        `db:"end_minute"`
	DurationHours      float64    `db:"duration_hours"`
	MatchType          string     `db:"match_type"`
	GuestCount         int        `db:"guest_count"`
	HourlyRate         int64      `db:"hourly_rate"`
	TotalAmount        int64      `db:"total_amount"`
	MemberDiscount     int64      `db:"member_discount"`
	FinalAmount        int64      `db:"final_amount"`
	PaymentStatus      string     `db:"payment_status"`
	PaymentReference   string     `db:"payment_reference"`
	Status             string     `db:"status"`
	CheckedInAt        *time.Time `db:"checked_in_at"`
	ActualStartTime    *time.Time `db:"actual_start_time"`
	ActualEndTime      *time.Time `db:"actual_end_time"`
	CancelledAt        *time.Time `db:"cancelled_at"`
	CancelledBy        string     `db:"cancelled_by"`
	CancellationReason string     `db:"cancellation_reason"`
	RefundAmount       int64      `db:"refund_amount"`
	Notes              string     `db:"notes"`
	Version            int        `db:"version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

const reservationColumns = `id, court_id, club_id, user_id, reservation_date, time_zone, start_minute, end_minute, duration_hours,
	match_type, guest_count, hourly_rate, total_amount, member_discount, final_amount, payment_status,
	payment_reference, status, checked_in_at, actual_start_time, actual_end_time, cancelled_at, cancelled_by,
	cancellation_reason, refund_amount, notes, version, created_at, updated_at`

// 占有状態の予約と枠が重なるか
const overlapQuery = `SELECT id FROM reservations
	WHERE court_id = $1 AND reservation_date = $2
	AND status IN ('pending', 'confirmed', 'completed')
	AND start_minute < $4 AND end_minute > $3
	LIMIT 1`

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) LoadReservations(ctx context.Context, courtID string, date time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE court_id = $1 AND reservation_date = $2 ORDER BY start_minute`
	if err := r.db.SelectContext(ctx, &rows, query, courtID, timeslot.DateKey(date)); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows)
}

// Insert はコート・日付単位のアドバイザリロック下で重複を確認してから保存する
func (r *ReservationRepository) Insert(ctx context.Context, res *reservation.Reservation) (*reservation.Reservation, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	stored := res.Clone()
	stored.Version = 1
	date := timeslot.DateKey(res.ReservationDate)

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, res.CourtID+"|"+date); err != nil {
			return fmt.Errorf("アドバイザリロック取得に失敗: %w", err)
		}
		if res.Blocks() {
			var existing string
			err := tx.GetContext(ctx, &existing, overlapQuery, res.CourtID, date, int(res.StartTime), int(res.EndTime))
			if err == nil {
				return reservation.ErrOverlap
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("重複確認に失敗: %w", err)
			}
		}

		query := `INSERT INTO reservations (` + reservationColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25, $26, $27, $28, $29)`
		_, err := tx.ExecContext(ctx, query,
			stored.ID, stored.CourtID, stored.ClubID, stored.UserID, date, zoneName(stored.Location),
			int(stored.StartTime), int(stored.EndTime), stored.DurationHours,
			stored.MatchType, stored.GuestCount, stored.HourlyRate, stored.TotalAmount,
			stored.MemberDiscount, stored.FinalAmount, string(stored.PaymentStatus),
			stored.PaymentReference, string(stored.Status), stored.CheckedInAt,
			stored.ActualStartTime, stored.ActualEndTime, stored.CancelledAt, stored.CancelledBy,
			stored.CancellationReason, stored.RefundAmount, stored.Notes, stored.Version,
			stored.CreatedAt, stored.UpdatedAt)
		if err != nil {
			var pgErr *pq.Error
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return reservation.ErrOverlap
			}
			return fmt.Errorf("予約作成に失敗: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Update はバージョンが一致する場合のみ可変項目を更新する
func (r *ReservationRepository) Update(ctx context.Context, res *reservation.Reservation) (*reservation.Reservation, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	query := `UPDATE reservations SET
		payment_status = $1, payment_reference = $2, status = $3, checked_in_at = $4,
		actual_start_time = $5, actual_end_time = $6, cancelled_at = $7, cancelled_by = $8,
		cancellation_reason = $9, refund_amount = $10, notes = $11, updated_at = $12,
		version = version + 1
		WHERE id = $13 AND version = $14
		AND court_id = $15 AND reservation_date = $16 AND start_minute = $17 AND end_minute = $18`
	result, err := r.db.ExecContext(ctx, query,
		string(res.PaymentStatus), res.PaymentReference, string(res.Status), res.CheckedInAt,
		res.ActualStartTime, res.ActualEndTime, res.CancelledAt, res.CancelledBy,
		res.CancellationReason, res.RefundAmount, res.Notes, res.UpdatedAt,
		res.ID, res.Version,
		res.CourtID, timeslot.DateKey(res.ReservationDate), int(res.StartTime), int(res.EndTime))
	if err != nil {
		return nil, fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("予約更新結果の取得に失敗: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, res.ID); err != nil {
			return nil, fmt.Errorf("予約存在確認に失敗: %w", err)
		}
		if !exists {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, reservation.ErrVersionConflict
	}
	stored := res.Clone()
	stored.Version = res.Version + 1
	return stored, nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, reservation.ErrReservationNotFound
	}
	var row reservationRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity()
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE user_id = $1
		ORDER BY reservation_date DESC, start_minute DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows)
}

func (r *ReservationRepository) ListNoShowCandidates(ctx context.Context, before time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status = 'confirmed' AND checked_in_at IS NULL
		AND (reservation_date::timestamp + make_interval(mins => start_minute)) AT TIME ZONE time_zone <= $1
		ORDER BY reservation_date, start_minute`
	if err := r.db.SelectContext(ctx, &rows, query, before.UTC()); err != nil {
		return nil, fmt.Errorf("無断キャンセル候補の取得に失敗: %w", err)
	}
	return toEntities(rows)
}

func toEntities(rows []reservationRow) ([]*reservation.Reservation, error) {
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		r, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (row *reservationRow) toEntity() (*reservation.Reservation, error) {
	loc, err := loadLocation(row.TimeZone)
	if err != nil {
		return nil, err
	}
	y, m, d := row.ReservationDate.Date()
	return &reservation.Reservation{
		ID: row.ID, CourtID: row.CourtID, ClubID: row.ClubID, UserID: row.UserID,
		ReservationDate: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Location:        loc,
		StartTime:       timeslot.Clock(row.StartMinute),
		EndTime:         timeslot.Clock(row.EndMinute),
		DurationHours:   row.DurationHours,
		MatchType:       row.MatchType, GuestCount: row.GuestCount,
		HourlyRate: row.HourlyRate, TotalAmount: row.TotalAmount,
		MemberDiscount: row.MemberDiscount, FinalAmount: row.FinalAmount,
		PaymentStatus:    reservation.PaymentStatus(row.PaymentStatus),
		PaymentReference: row.PaymentReference,
		Status:           reservation.Status(row.Status),
		CheckedInAt:      row.CheckedInAt, ActualStartTime: row.ActualStartTime, ActualEndTime: row.ActualEndTime,
		CancelledAt: row.CancelledAt, CancelledBy: row.CancelledBy,
		CancellationReason: row.CancellationReason, RefundAmount: row.RefundAmount,
		Notes: row.Notes, Version: row.Version,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

var _ reservation.Repository = (*ReservationRepository)(nil)
