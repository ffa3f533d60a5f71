package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/repository"
	"github.com/arashfz/cinebook/internal/store"
)

// ScreeningHandler serves the public screening catalog and the
// admin-only create/delete operations.
type ScreeningHandler struct {
	Screenings *repository.ScreeningRepo
}

func NewScreeningHandler(screenings *repository.ScreeningRepo) *ScreeningHandler {
	if screenings == nil {
		panic("nil repository passed to NewScreeningHandler")
	}
	return &ScreeningHandler{Screenings: screenings}
}

type createScreeningRequest struct {
	Title       string    `json:"title"`
	StartsAt    time.Time `json:"starts_at"`
	RowCount    int       `json:"row_count"`
	SeatsPerRow int       `json:"seats_per_row"`
}

// Create handles POST /v1/admin/screenings.
func (h *ScreeningHandler) Create(c echo.Context) error {
	var req createScreeningRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.RowCount < 1 || req.SeatsPerRow < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "row_count and seats_per_row must be positive"})
	}
	if req.StartsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at is required"})
	}

	s, err := h.Screenings.Create(c.Request().Context(), req.Title, req.StartsAt, req.RowCount, req.SeatsPerRow)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusCreated, screeningResponse(s))
}

// List handles GET /v1/screenings.
func (h *ScreeningHandler) List(c echo.Context) error {
	screenings, err := h.Screenings.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(screenings))
	for _, s := range screenings {
		out = append(out, screeningResponse(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"screenings": out})
}

// Get handles GET /v1/screenings/:id.
func (h *ScreeningHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	s, err := h.Screenings.GetScreening(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, screeningResponse(s))
}

// Delete handles DELETE /v1/admin/screenings/:id. Bookings made against
// the screening are removed by the database cascade.
func (h *ScreeningHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid screening id"})
	}
	if err := h.Screenings.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "screening not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.NoContent(http.StatusNoContent)
}

func screeningResponse(s model.Screening) echo.Map {
	return echo.Map{
		"id":            s.ID,
		"title":         s.Title,
		"starts_at":     s.StartsAt.UTC().Format(time.RFC3339),
		"row_count":     s.RowCount,
		"seats_per_row": s.SeatsPerRow,
		"version":       s.Version,
	}
}
