package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/picklefed/court-reservation/internal/application"
	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

type AvailabilityHandler struct {
	service BookingServiceInterface
}

func NewAvailabilityHandler(s BookingServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{service: s}
}

// Register は空き状況APIのルートを登録する
func (h *AvailabilityHandler) Register(g *echo.Group) {
	g.GET("/courts/:court_id/availability", h.Get)
	g.GET("/clubs/:club_id/courts", h.ListCourts)
}

// CourtResponse はコート情報のレスポンス
type CourtResponse struct {
	ID            string `json:"id"`
	ClubID        string `json:"club_id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Surface       string `json:"surface,omitempty"`
	HourlyRate    int64  `json:"hourly_rate"`
	MemberRate    int64  `json:"member_rate"`
	IsAvailable   bool   `json:"is_available"`
	IsMaintenance bool   `json:"is_maintenance"`
	OpenHour      int    `json:"open_hour"`
	CloseHour     int    `json:"close_hour"`
	SlotMinutes   int    `json:"slot_minutes"`
	TimeZone      string `json:"time_zone"`
}

func toCourtResponse(c *court.Court) CourtResponse {
	open, closeHour, slot := c.OpenHour, c.CloseHour, c.SlotDuration
	if open == 0 && closeHour == 0 {
		open, closeHour = court.DefaultOpenHour, court.DefaultCloseHour
	}
	if slot == 0 {
		slot = court.DefaultSlotDuration
	}
	return CourtResponse{
		ID: c.ID, ClubID: c.ClubID, Name: c.Name, Type: string(c.Type), Surface: c.Surface,
		HourlyRate: c.HourlyRate, MemberRate: c.MemberRate,
		IsAvailable: c.IsAvailable, IsMaintenance: c.IsMaintenance,
		OpenHour: open, CloseHour: closeHour, SlotMinutes: int(slot.Minutes()),
		TimeZone: c.Zone().String(),
	}
}

type AvailabilityResponse struct {
	*application.AvailabilitySnapshot
	AvailableCount int `json:"available_count"`
}

// Get godoc
// @Summary コートの空き状況を取得
// @Tags courts
// @Produce json
// @Param court_id path string true "コートID"
// @Param date query string true "日付 (YYYY-MM-DD)"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /courts/{court_id}/availability [get]
func (h *AvailabilityHandler) Get(c echo.Context) error {
	date, err := timeslot.ParseDate(c.QueryParam("date"))
	if err != nil {
		return err
	}
	snap, err := h.service.Availability(c.Request().Context(), c.Param("court_id"), date)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{AvailabilitySnapshot: snap, AvailableCount: snap.AvailableCount()})
}

// ListCourts godoc
// @Summary クラブのコート一覧を取得
// @Tags courts
// @Produce json
// @Param club_id path string true "クラブID"
// @Success 200 {array} CourtResponse
// @Router /clubs/{club_id}/courts [get]
func (h *AvailabilityHandler) ListCourts(c echo.Context) error {
	list, err := h.service.ListCourts(c.Request().Context(), c.Param("club_id"))
	if err != nil {
		return err
	}
	resp := make([]CourtResponse, 0, len(list))
	for _, ct := range list {
		resp = append(resp, toCourtResponse(ct))
	}
	return c.JSON(http.StatusOK, resp)
}
