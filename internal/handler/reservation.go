package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/arashfz/cinebook/internal/conflict"
	"github.com/arashfz/cinebook/internal/middleware"
	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/repository"
	"github.com/arashfz/cinebook/internal/reservation"
	"github.com/arashfz/cinebook/internal/store"
)

// ReservationHandler translates the reservation service's typed errors
// into HTTP responses. The mapping is fixed: invalid seat 400, missing
// record 404, foreign booking 403, occupied seat or stale version 409,
// exhausted transient retries 503.
type ReservationHandler struct {
	Service  *reservation.Service
	Bookings *repository.BookingRepo
}

func NewReservationHandler(svc *reservation.Service, bookings *repository.BookingRepo) *ReservationHandler {
	if svc == nil || bookings == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Service: svc, Bookings: bookings}
}

type reserveRequest struct {
	Row  int `json:"row"`
	Seat int `json:"seat"`
}

// Reserve handles POST /v1/screenings/:id/reservations.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	holderID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	screeningID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	var req reserveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	key := model.SeatKey{ScreeningID: screeningID, Row: req.Row, Seat: req.Seat}
	booked, err := h.Service.Reserve(c.Request().Context(), key, holderID)
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":   booked.ID,
		"screening_id": booked.ScreeningID,
		"row":          booked.Row,
		"seat":         booked.Seat,
		"status":       booked.Status,
		"version":      booked.Version,
	})
}

// Cancel handles DELETE /v1/bookings/:id. The version the client last
// read is mandatory and travels as a query parameter since DELETE has
// no body.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	holderID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	version := c.QueryParam("version")
	if version == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "version query parameter is required"})
	}

	if err := h.Service.Cancel(c.Request().Context(), bookingID, holderID, store.VersionToken(version)); err != nil {
		return reservationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelBySeat handles DELETE /v1/screenings/:id/seats. The seat is
// addressed by row and seat query parameters; the caller must hold the
// booking.
func (h *ReservationHandler) CancelBySeat(c echo.Context) error {
	holderID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	screeningID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	row, seat, err := seatParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row and seat query parameters are required"})
	}

	key := model.SeatKey{ScreeningID: screeningID, Row: row, Seat: seat}
	if err := h.Service.CancelBySeat(c.Request().Context(), key, holderID); err != nil {
		return reservationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SeatMap handles GET /v1/screenings/:id/seatmap.
func (h *ReservationHandler) SeatMap(c echo.Context) error {
	screeningID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	entries, err := h.Service.SeatMap(c.Request().Context(), screeningID)
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"screening_id": screeningID, "seats": entries})
}

// CheckAvailability handles GET /v1/screenings/:id/availability.
func (h *ReservationHandler) CheckAvailability(c echo.Context) error {
	screeningID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	row, seat, err := seatParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row and seat query parameters are required"})
	}

	key := model.SeatKey{ScreeningID: screeningID, Row: row, Seat: seat}
	free, holder, err := h.Service.CheckSeat(c.Request().Context(), key)
	if err != nil {
		return reservationError(c, err)
	}
	resp := echo.Map{"screening_id": screeningID, "row": row, "seat": seat, "available": free}
	if holder != nil {
		resp["holder_id"] = *holder
	}
	return c.JSON(http.StatusOK, resp)
}

// MyBookings handles GET /v1/bookings and lists the caller's bookings.
func (h *ReservationHandler) MyBookings(c echo.Context) error {
	holderID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListByHolder(c.Request().Context(), holderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, echo.Map{
			"booking_id":   b.ID,
			"screening_id": b.ScreeningID,
			"row":          b.Row,
			"seat":         b.Seat,
			"status":       b.Status,
			"version":      b.Version,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// reservationError maps the service's error taxonomy onto status codes.
func reservationError(c echo.Context, err error) error {
	var invalid *reservation.InvalidSeatError
	if errors.As(err, &invalid) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":         invalid.Error(),
			"rows":          invalid.RowCount,
			"seats_per_row": invalid.SeatsPerRow,
		})
	}
	var taken *reservation.AlreadyReservedError
	if errors.As(err, &taken) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "seat is already reserved",
			"conflict":    true,
			"reserved_by": taken.HolderID,
		})
	}
	if ce, ok := store.AsConflict(err); ok {
		return c.JSON(http.StatusConflict, conflict.Present(ce))
	}
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	if errors.Is(err, reservation.ErrForbidden) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if errors.Is(err, reservation.ErrTransient) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage is contended, retry shortly"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// seatParams reads the row and seat query parameters.
func seatParams(c echo.Context) (int, int, error) {
	row, err := strconv.Atoi(c.QueryParam("row"))
	if err != nil {
		return 0, 0, err
	}
	seat, err := strconv.Atoi(c.QueryParam("seat"))
	if err != nil {
		return 0, 0, err
	}
	return row, seat, nil
}
