package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/picklefed/court-reservation/internal/application"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/domain/timeslot"
)

// HeaderUserID は利用者を識別するヘッダー
const HeaderUserID = "X-User-ID"

type ReservationHandler struct {
	service BookingServiceInterface
}

func NewReservationHandler(s BookingServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

// Register は予約APIのルートを登録する
func (h *ReservationHandler) Register(g *echo.Group) {
	g.POST("/reservations", h.Create)
	g.GET("/reservations", h.List)
	g.GET("/reservations/:id", h.GetByID)
	g.POST("/reservations/:id/confirm", h.Confirm)
	g.POST("/reservations/:id/cancel", h.Cancel)
	g.POST("/reservations/:id/check-in", h.CheckIn)
	g.POST("/reservations/:id/complete", h.Complete)
	g.POST("/reservations/:id/no-show", h.NoShow)
}

type CreateReservationRequest struct {
	CourtID    string `json:"court_id" validate:"required" example:"court-1"`
	Date       string `json:"date" validate:"required,date" example:"2025-06-02"`
	StartTime  string `json:"start_time" validate:"required,clock" example:"08:00"`
	EndTime    string `json:"end_time" validate:"required,clock" example:"10:00"`
	MatchType  string `json:"match_type" validate:"required,max=32" example:"doubles"`
	GuestCount int    `json:"guest_count" validate:"gte=0,lte=16" example:"0"`
	IsMember   bool   `json:"is_member" example:"true"`
	Notes      string `json:"notes" validate:"max=500"`
}

type ConfirmRequest struct {
	PaymentMethod string `json:"payment_method" example:"pm_card_visa"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500" example:"雨天のため"`
}

type ReservationResponse struct {
	ID                 string     `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	CourtID            string     `json:"court_id" example:"court-1"`
	ClubID             string     `json:"club_id,omitempty"`
	UserID             string     `json:"user_id" example:"user-123"`
	Date               string     `json:"date" example:"2025-06-02"`
	StartTime          string     `json:"start_time" example:"08:00"`
	EndTime            string     `json:"end_time" example:"10:00"`
	DurationHours      float64    `json:"duration_hours" example:"2"`
	MatchType          string     `json:"match_type" example:"doubles"`
	GuestCount         int        `json:"guest_count"`
	HourlyRate         int64      `json:"hourly_rate" example:"4500"`
	TotalAmount        int64      `json:"total_amount" example:"9000"`
	MemberDiscount     int64      `json:"member_discount" example:"2000"`
	FinalAmount        int64      `json:"final_amount" example:"7000"`
	Status             string     `json:"status" example:"pending"`
	PaymentStatus      string     `json:"payment_status" example:"pending"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	RefundAmount       int64      `json:"refund_amount,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID: r.ID, CourtID: r.CourtID, ClubID: r.ClubID, UserID: r.UserID,
		Date:      timeslot.DateKey(r.ReservationDate),
		StartTime: r.StartTime.String(), EndTime: r.EndTime.String(),
		DurationHours: r.DurationHours, MatchType: r.MatchType, GuestCount: r.GuestCount,
		HourlyRate: r.HourlyRate, TotalAmount: r.TotalAmount,
		MemberDiscount: r.MemberDiscount, FinalAmount: r.FinalAmount,
		Status: string(r.Status), PaymentStatus: string(r.PaymentStatus),
		PaymentReference: r.PaymentReference, CheckedInAt: r.CheckedInAt,
		CancelledAt: r.CancelledAt, CancelledBy: r.CancelledBy,
		CancellationReason: r.CancellationReason, RefundAmount: r.RefundAmount,
		Notes: r.Notes, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func userID(c echo.Context) (string, error) {
	id := c.Request().Header.Get(HeaderUserID)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	return id, nil
}

// Create godoc
// @Summary コートを予約
// @Description 支払いが必要な場合は pending、不要な場合は confirmed で作成します
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "枠が予約できない"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := timeslot.ParseDate(req.Date)
	if err != nil {
		return err
	}
	slot, err := timeslot.ParseSlot(req.StartTime + "-" + req.EndTime)
	if err != nil {
		return err
	}

	r, err := h.service.Book(c.Request().Context(), application.BookInput{
		CourtID:    req.CourtID,
		UserID:     uid,
		Date:       date,
		Slot:       slot,
		MatchType:  req.MatchType,
		GuestCount: req.GuestCount,
		IsMember:   req.IsMember,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	r, err := h.service.GetReservation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// List godoc
// @Summary ユーザーの予約一覧を取得
// @Tags reservations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} ReservationResponse
// @Router /reservations [get]
func (h *ReservationHandler) List(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	list, err := h.service.ListUserReservations(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]ReservationResponse, len(list))
	for i, r := range list {
		resp[i] = toReservationResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// Confirm godoc
// @Summary 決済して予約を確定
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "予約ID"
// @Param request body ConfirmRequest true "支払い方法"
// @Success 200 {object} ReservationResponse
// @Failure 402 {object} api.ErrorResponse "決済失敗"
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/confirm [post]
func (h *ReservationHandler) Confirm(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	r, err := h.service.ConfirmPayment(c.Request().Context(), c.Param("id"), req.PaymentMethod)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description キャンセルポリシーに従って返金額を記録します
// @Tags reservations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "予約ID"
// @Param request body CancelRequest false "キャンセル理由"
// @Success 200 {object} ReservationResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.Cancel(c.Request().Context(), application.CancelInput{
		ReservationID: c.Param("id"), By: uid, Reason: req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// CheckIn godoc
// @Summary 来場を記録
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Router /reservations/{id}/check-in [post]
func (h *ReservationHandler) CheckIn(c echo.Context) error {
	r, err := h.service.CheckIn(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// Complete godoc
// @Summary プレー終了を記録
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Router /reservations/{id}/complete [post]
func (h *ReservationHandler) Complete(c echo.Context) error {
	r, err := h.service.Complete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// NoShow godoc
// @Summary 無断キャンセルを記録
// @Tags reservations
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Router /reservations/{id}/no-show [post]
func (h *ReservationHandler) NoShow(c echo.Context) error {
	r, err := h.service.MarkNoShow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}
