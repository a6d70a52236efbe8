package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/picklefed/court-reservation/internal/domain/court"
)

type courtRow struct {
	ID               string     `db:"id"`
	ClubID           string     `db:"club_id"`
	Name             string     `db:"name"`
	Type             string     `db:"court_type"`
	Surface          string     `db:"surface"`
	HourlyRate       int64      `db:"hourly_rate"`
	MemberRate       int64      `db:"member_rate"`
	IsAvailable      bool       `db:"is_available"`
	IsMaintenance    bool       `db:"is_maintenance"`
	MaintenanceStart *time.Time `db:"maintenance_start"`
	MaintenanceEnd   *time.Time `db:"maintenance_end"`
	OpenHour         int        `db:"open_hour"`
	CloseHour        int        `db:"close_hour"`
	SlotMinutes      int        `db:"slot_minutes"`
	TimeZone         string     `db:"time_zone"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

const courtColumns = `id, club_id, name, court_type, surface, hourly_rate, member_rate, is_available, is_maintenance,
	maintenance_start, maintenance_end, open_hour, close_hour, slot_minutes, time_zone, created_at, updated_at`

type CourtRepository struct{ db *sqlx.DB }

func NewCourtRepository(db *sqlx.DB) *CourtRepository {
	return &CourtRepository{db: db}
}

func (r *CourtRepository) GetByID(ctx context.Context, id string) (*court.Court, error) {
	var row courtRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+courtColumns+` FROM courts WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, court.ErrCourtNotFound
		}
		return nil, fmt.Errorf("コート取得に失敗: %w", err)
	}
	return row.toEntity()
}

func (r *CourtRepository) ListByClub(ctx context.Context, clubID string) ([]*court.Court, error) {
	var rows []courtRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+courtColumns+` FROM courts WHERE club_id = $1 ORDER BY name`, clubID); err != nil {
		return nil, fmt.Errorf("コート一覧取得に失敗: %w", err)
	}
	result := make([]*court.Court, len(rows))
	for i := range rows {
		c, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		result[i] = c
	}
	return result, nil
}

// Save はコートを登録または更新する
func (r *CourtRepository) Save(ctx context.Context, c *court.Court) error {
	if err := c.Validate(); err != nil {
		return err
	}
	openHour, closeHour, slot := c.OpenHour, c.CloseHour, c.SlotDuration
	if openHour == 0 && closeHour == 0 {
		openHour, closeHour = court.DefaultOpenHour, court.DefaultCloseHour
	}
	if slot == 0 {
		slot = court.DefaultSlotDuration
	}
	zone := zoneName(c.Location)
	if _, err := loadLocation(zone); err != nil {
		return court.ErrInvalidTimeZone
	}
	courtType := c.Type
	if courtType == "" {
		courtType = court.TypeOutdoor
	}
	query := `INSERT INTO courts (` + courtColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			club_id = EXCLUDED.club_id, name = EXCLUDED.name, court_type = EXCLUDED.court_type,
			surface = EXCLUDED.surface, hourly_rate = EXCLUDED.hourly_rate, member_rate = EXCLUDED.member_rate,
			is_available = EXCLUDED.is_available, is_maintenance = EXCLUDED.is_maintenance,
			maintenance_start = EXCLUDED.maintenance_start, maintenance_end = EXCLUDED.maintenance_end,
			open_hour = EXCLUDED.open_hour, close_hour = EXCLUDED.close_hour,
			slot_minutes = EXCLUDED.slot_minutes, time_zone = EXCLUDED.time_zone, updated_at = NOW()`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ClubID, c.Name, string(courtType), c.Surface, c.HourlyRate, c.MemberRate,
		c.IsAvailable, c.IsMaintenance, c.MaintenanceStart, c.MaintenanceEnd,
		openHour, closeHour, int(slot/time.Minute), zone)
	if err != nil {
		return fmt.Errorf("コート保存に失敗: %w", err)
	}
	return nil
}

func (row *courtRow) toEntity() (*court.Court, error) {
	loc, err := loadLocation(row.TimeZone)
	if err != nil {
		return nil, err
	}
	return &court.Court{
		ID: row.ID, ClubID: row.ClubID, Name: row.Name,
		Type: court.Type(row.Type), Surface: row.Surface,
		HourlyRate: row.HourlyRate, MemberRate: row.MemberRate,
		IsAvailable: row.IsAvailable, IsMaintenance: row.IsMaintenance,
		MaintenanceStart: row.MaintenanceStart, MaintenanceEnd: row.MaintenanceEnd,
		OpenHour: row.OpenHour, CloseHour: row.CloseHour,
		SlotDuration: time.Duration(row.SlotMinutes) * time.Minute,
		Location:     loc,
		CreatedAt:    row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

var _ court.Repository = (*CourtRepository)(nil)
