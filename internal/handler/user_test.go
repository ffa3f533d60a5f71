package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arashfz/cinebook/internal/conflict"
	"github.com/arashfz/cinebook/internal/model"
	"github.com/arashfz/cinebook/internal/store"
)

func newUserContext(e *echo.Echo, method, target, body string, userID uint64, role string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("role", role)
	return c, rec
}

func TestUserUpdateStaleVersionReturns409WithLatestState(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{
		"email":     "ada@example.com",
		"full_name": "Ada",
		"role":      model.RoleCustomer,
		"is_active": true,
	})
	require.NoError(t, err)

	// A concurrent editor commits first; the seeded version goes stale.
	current, err := records.ConditionalUpdate(context.Background(), seeded.ID, seeded.Version,
		func(fields map[string]any) error {
			fields["full_name"] = "Ada L."
			return nil
		})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	body := fmt.Sprintf(`{"version":%q,"full_name":"Ada Lovelace"}`, seeded.Version)
	c, rec := newUserContext(e, http.MethodPut, "/v1/users/1", body, seeded.ID, model.RoleCustomer)
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	var report conflict.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, string(current), report.LatestVersion)
	assert.Equal(t, "Ada L.", report.LatestFields["full_name"])
	assert.NotEmpty(t, report.Message)

	// The stale write must not have touched storage.
	got, err := records.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Fields["full_name"])
	assert.Equal(t, current, got.Version)
}

func TestUserUpdateWithCurrentVersionSucceeds(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{
		"email":     "ada@example.com",
		"full_name": "Ada",
		"role":      model.RoleCustomer,
		"is_active": true,
	})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	body := fmt.Sprintf(`{"version":%q,"full_name":"Ada Lovelace"}`, seeded.Version)
	c, rec := newUserContext(e, http.MethodPut, "/v1/users/1", body, seeded.ID, model.RoleCustomer)
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))

	require.NoError(t, h.Update(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID      uint64 `json:"id"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, string(seeded.Version), resp.Version)

	got, err := records.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Fields["full_name"])

	// Resubmitting the original stamp now conflicts.
	c2, rec2 := newUserContext(e, http.MethodPut, "/v1/users/1", body, seeded.ID, model.RoleCustomer)
	c2.SetPath("/v1/users/:id")
	c2.SetParamNames("id")
	c2.SetParamValues(fmt.Sprint(seeded.ID))
	require.NoError(t, h.Update(c2))
	assert.Equal(t, http.StatusConflict, rec2.Code)
}

func TestUserUpdateMissingVersionRejected(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{"full_name": "Ada"})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	c, rec := newUserContext(e, http.MethodPut, "/v1/users/1", `{"full_name":"Ada Lovelace"}`, seeded.ID, model.RoleCustomer)
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserUpdateCustomerCannotEditOthers(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{"full_name": "Ada"})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	body := fmt.Sprintf(`{"version":%q,"full_name":"Mallory"}`, seeded.Version)
	c, rec := newUserContext(e, http.MethodPut, "/v1/users/1", body, seeded.ID+41, model.RoleCustomer)
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The rejection must short-circuit before the write: same fields,
	// same stamp.
	got, err := records.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Fields["full_name"])
	assert.Equal(t, seeded.Version, got.Version)
}

func TestUserUpdateUnauthenticatedLeavesRecordUntouched(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{"full_name": "Ada"})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	body := fmt.Sprintf(`{"version":%q,"full_name":"Mallory"}`, seeded.Version)
	c, rec := newUserContext(e, http.MethodPut, "/v1/users/1", body, 0, "")
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))

	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	got, err := records.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Fields["full_name"])
	assert.Equal(t, seeded.Version, got.Version)
}

func TestUserGetForbiddenRevealsNothing(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{
		"email":     "ada@example.com",
		"full_name": "Ada Secret",
	})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	c, rec := newUserContext(e, http.MethodGet, "/v1/users/1", "", seeded.ID+41, model.RoleCustomer)
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))

	require.NoError(t, h.Get(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The body carries the error alone, never the record.
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[string]any{"error": "forbidden"}, resp)
	assert.NotContains(t, rec.Body.String(), "Ada Secret")
}

func TestUserUpdateRoleChangeIsAdminOnly(t *testing.T) {
	records := store.NewMemoryStore()
	seeded, err := records.Insert(context.Background(), map[string]any{
		"full_name": "Ada",
		"role":      model.RoleCustomer,
		"is_active": true,
	})
	require.NoError(t, err)

	h := NewUserHandler(records)
	e := echo.New()

	body := fmt.Sprintf(`{"version":%q,"role":%q}`, seeded.Version, model.RoleAdmin)
	c, rec := newUserContext(e, http.MethodPut, "/v1/users/1", body, seeded.ID, model.RoleCustomer)
	c.SetPath("/v1/users/:id")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(seeded.ID))
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// An admin may promote, guarded by the same version check.
	c2, rec2 := newUserContext(e, http.MethodPut, "/v1/users/1", body, 99, model.RoleAdmin)
	c2.SetPath("/v1/users/:id")
	c2.SetParamNames("id")
	c2.SetParamValues(fmt.Sprint(seeded.ID))
	require.NoError(t, h.Update(c2))
	assert.Equal(t, http.StatusOK, rec2.Code)

	got, err := records.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Fields["role"])
}
