package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/arashfz/cinebook/internal/conflict"
	"github.com/arashfz/cinebook/internal/metrics"
	"github.com/arashfz/cinebook/internal/middleware"
	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/store"
)

// UserHandler exposes the version-guarded profile endpoints. All edits
// go through the record store so a stale stamp is rejected with a 409
// carrying the current state of the record.
type UserHandler struct {
	Records store.Store
}

func NewUserHandler(records store.Store) *UserHandler {
	if records == nil {
		panic("nil record store passed to NewUserHandler")
	}
	return &UserHandler{Records: records}
}

// updateUserRequest uses pointer fields so that an absent key is
// distinguishable from an explicit empty value. Version is mandatory:
// an update without the stamp the client last read is not accepted.
type updateUserRequest struct {
	Version  string  `json:"version"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

// Get handles GET /v1/users/:id. Admins may read anyone, customers
// only themselves.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !h.authorize(c, id) {
		return nil
	}
	rec, err := h.Records.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, userResponse(rec))
}

// Update handles PUT /v1/users/:id. The write succeeds only when the
// submitted version matches the stored one; otherwise the response is a
// 409 with the record's latest fields and version so the client can
// review and resubmit.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if !h.authorize(c, id) {
		return nil
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Version) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "version is required"})
	}
	if req.FullName == nil && req.Role == nil && req.IsActive == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no fields to update"})
	}

	// Role and activation changes are admin-only even on one's own record.
	role, _ := c.Get("role").(string)
	if (req.Role != nil || req.IsActive != nil) && role != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if req.Role != nil && *req.Role != model.RoleAdmin && *req.Role != model.RoleCustomer {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}

	newVersion, err := h.Records.ConditionalUpdate(c.Request().Context(), id,
		store.VersionToken(req.Version), func(fields map[string]any) error {
			if req.FullName != nil {
				fields["full_name"] = *req.FullName
			}
			if req.Role != nil {
				fields["role"] = *req.Role
			}
			if req.IsActive != nil {
				fields["is_active"] = *req.IsActive
			}
			return nil
		})
	if err != nil {
		if ce, ok := store.AsConflict(err); ok {
			metrics.VersionConflicts.WithLabelValues("user").Inc()
			return c.JSON(http.StatusConflict, conflict.Present(ce))
		}
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "version": string(newVersion)})
}

// authorize enforces admin-or-self access on /v1/users/:id routes. On
// rejection it writes the 401/403 response itself and returns false;
// the caller must return immediately without touching storage.
func (h *UserHandler) authorize(c echo.Context, targetID uint64) bool {
	userID, ok := middleware.UserID(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return false
	}
	role, _ := c.Get("role").(string)
	if userID != targetID && role != model.RoleAdmin {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		return false
	}
	return true
}

func userResponse(rec store.Record) echo.Map {
	out := echo.Map{"id": rec.ID, "version": string(rec.Version)}
	for k, v := range rec.Fields {
		out[k] = v
	}
	return out
}

// pathID parses a numeric :param from the route path.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
