package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/campus-rooms/internal/application"
	"github.com/example/campus-rooms/internal/testfixtures"
)

type apiHarness struct {
	svc     *testfixtures.Services
	handler http.Handler

	admin        application.User
	adminFixture testfixtures.UserFixture
	adminToken   string
}

type apiResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func newAPI(t *testing.T, limiter *LoginLimiter) *apiHarness {
	t.Helper()

	svc := testfixtures.NewServices(t)
	logger := testfixtures.DiscardLogger()

	handler := NewRouter(RouterConfig{
		Auth:          NewAuthHandler(svc.Auth, logger),
		Bookings:      NewBookingHandler(svc.Bookings, logger),
		Rooms:         NewRoomHandler(svc.Rooms, svc.Bookings, logger),
		Departments:   NewDepartmentHandler(svc.Departments, logger),
		Users:         NewUserHandler(svc.Users, logger),
		Maintenance:   NewMaintenanceHandler(svc.Maintenance, logger),
		Reports:       NewReportHandler(svc.Reports, logger),
		Audit:         NewAuditHandler(svc.Audit, logger),
		Authenticator: svc.Auth,
		LoginLimiter:  limiter,
		Middleware:    []func(http.Handler) http.Handler{RequestLogger(logger)},
		Logger:        logger,
	})

	adminFixture := testfixtures.NewUserFixture(testfixtures.WithUserRole(application.RoleAdmin))
	admin := svc.SeedUser(t, adminFixture)
	return &apiHarness{
		svc:          svc,
		handler:      handler,
		admin:        admin,
		adminFixture: adminFixture,
		adminToken:   svc.Token(t, adminFixture),
	}
}

func (a *apiHarness) lecturer(t *testing.T) (application.User, string) {
	t.Helper()
	fixture := testfixtures.NewUserFixture()
	user := a.svc.SeedUser(t, fixture)
	return user, a.svc.Token(t, fixture)
}

func (a *apiHarness) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return rec, resp
}

func bookingBody(roomID int64, start, end time.Time) map[string]any {
	return map[string]any{
		"roomId":    roomID,
		"title":     "Algorithms lecture",
		"startTime": start.UTC().Format(time.RFC3339),
		"endTime":   end.UTC().Format(time.RFC3339),
	}
}

func TestHealth(t *testing.T) {
	api := newAPI(t, nil)

	rec, resp := api.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	api := newAPI(t, nil)

	rec, resp := api.do(t, http.MethodGet, "/nowhere", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, errRouteNotFound.Error(), resp.Message)
}

func TestLogin(t *testing.T) {
	api := newAPI(t, nil)

	t.Run("returns token and profile", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email":    api.adminFixture.Email,
			"password": api.adminFixture.Password,
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var data loginResponse
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.NotEmpty(t, data.Token)
		assert.Equal(t, api.admin.ID, data.User.ID)
		assert.Equal(t, "admin", data.User.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email":    api.adminFixture.Email,
			"password": "not-the-password",
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", resp.Message)
	})

	t.Run("unknown email gets the same answer", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email":    "nobody@campus.example",
			"password": "whatever-password",
		})

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid email or password", resp.Message)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/auth/login", "", `{"email":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errBadRequestBody.Error(), resp.Message)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgValidationFailed, resp.Message)
		assert.Contains(t, resp.Errors, "email")
		assert.Contains(t, resp.Errors, "password")
	})
}

func TestAuthenticationRequired(t *testing.T) {
	api := newAPI(t, nil)

	rec, resp := api.do(t, http.MethodGet, "/bookings/my-bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errMissingToken.Error(), resp.Message)

	rec, _ = api.do(t, http.MethodGet, "/bookings/my-bookings", "garbage.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	api := newAPI(t, nil)
	_, token := api.lecturer(t)

	rec, _ := api.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	revoked, err := api.svc.Revocations.IsRevoked(context.Background(), api.svc.TokenIDs.Last())
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestElapsedBookingIsCompleted(t *testing.T) {
	api := newAPI(t, nil)
	owner, token := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	booking := api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))
	path := fmt.Sprintf("/bookings/%d", booking.ID)

	api.svc.Clock.Elapse(booking)
	n, err := api.svc.Bookings.CompleteElapsedBookings(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rec, _ := api.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token issued before the clock moved has expired")

	adminToken := api.svc.Token(t, api.adminFixture)
	rec, resp := api.do(t, http.MethodGet, path, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var got bookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &got))
	assert.Equal(t, "completed", got.Status)

	rec, resp = api.do(t, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidTransition, resp.Message)
}

func TestAdminRoutesRejectLecturers(t *testing.T) {
	api := newAPI(t, nil)
	_, token := api.lecturer(t)

	for _, path := range []string{"/users", "/bookings", "/audit-logs", "/reports/department-usage"} {
		rec, resp := api.do(t, http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, msgForbidden, resp.Message, path)
	}

	rec, _ := api.do(t, http.MethodGet, "/users", api.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBooking(t *testing.T) {
	api := newAPI(t, nil)
	_, token := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	start := testfixtures.ReferenceTime().Add(48 * time.Hour)

	rec, resp := api.do(t, http.MethodPost, "/bookings", token, bookingBody(room.ID, start, start.Add(time.Hour)))
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var created bookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "confirmed", created.Status)
	assert.Equal(t, room.ID, created.RoomID)

	t.Run("overlap is rejected", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/bookings", token,
			bookingBody(room.ID, start.Add(30*time.Minute), start.Add(90*time.Minute)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Room is not available during the selected time", resp.Message)
		assert.False(t, resp.Success)
	})

	t.Run("adjacent slot is accepted", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/bookings", token,
			bookingBody(room.ID, start.Add(time.Hour), start.Add(2*time.Hour)))

		assert.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	})

	t.Run("end before start", func(t *testing.T) {
		rec, resp := api.do(t, http.MethodPost, "/bookings", token,
			bookingBody(room.ID, start.Add(5*time.Hour), start.Add(4*time.Hour)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgValidationFailed, resp.Message)
		assert.Contains(t, resp.Errors, "endTime")
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		body := bookingBody(room.ID, start, start.Add(time.Hour))
		body["startTime"] = "tomorrow morning"
		rec, resp := api.do(t, http.MethodPost, "/bookings", token, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, resp.Errors, "startTime")
	})

	t.Run("unknown room", func(t *testing.T) {
		rec, _ := api.do(t, http.MethodPost, "/bookings", token,
			bookingBody(room.ID+1000, start, start.Add(time.Hour)))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCancelFreesSlot(t *testing.T) {
	api := newAPI(t, nil)
	_, token := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	start := testfixtures.ReferenceTime().Add(72 * time.Hour)
	body := bookingBody(room.ID, start, start.Add(time.Hour))

	rec, resp := api.do(t, http.MethodPost, "/bookings", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var created bookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &created))

	rec, resp = api.do(t, http.MethodDelete, fmt.Sprintf("/bookings/%d", created.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var cancelled bookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)

	rec, resp = api.do(t, http.MethodDelete, fmt.Sprintf("/bookings/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidTransition, resp.Message)

	rec, resp = api.do(t, http.MethodPost, "/bookings", token, body)
	assert.Equal(t, http.StatusCreated, rec.Code, resp.Message)
}

func TestBookingOwnership(t *testing.T) {
	api := newAPI(t, nil)
	owner, _ := api.lecturer(t)
	_, otherToken := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	booking := api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))
	path := fmt.Sprintf("/bookings/%d", booking.ID)

	rec, _ := api.do(t, http.MethodGet, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodPut, path, otherToken,
		bookingBody(room.ID, booking.Start, booking.End))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodDelete, path, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = api.do(t, http.MethodGet, path, api.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := api.do(t, http.MethodGet, "/bookings/999999", api.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, resp.Message)

	rec, resp = api.do(t, http.MethodGet, "/bookings/abc", api.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errInvalidID.Error(), resp.Message)
}

func TestMyBookingsOnlyListsOwn(t *testing.T) {
	api := newAPI(t, nil)
	owner, token := api.lecturer(t)
	other, _ := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))
	api.svc.SeedBooking(t, other, testfixtures.NewBookingFixture(room.ID))

	rec, resp := api.do(t, http.MethodGet, "/bookings/my-bookings", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var bookings []bookingDTO
	require.NoError(t, json.Unmarshal(resp.Data, &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, owner.ID, bookings[0].UserID)

	rec, resp = api.do(t, http.MethodGet, "/bookings", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(resp.Data, &bookings))
	assert.Len(t, bookings, 2)
}

func TestRoomAvailability(t *testing.T) {
	api := newAPI(t, nil)
	owner, token := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	booking := api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))

	query := func(start, end time.Time) string {
		return fmt.Sprintf("/rooms/%d/availability?start=%s&end=%s", room.ID,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}

	rec, resp := api.do(t, http.MethodGet, query(booking.Start, booking.End), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var availability availabilityDTO
	require.NoError(t, json.Unmarshal(resp.Data, &availability))
	assert.False(t, availability.Available)

	rec, resp = api.do(t, http.MethodGet, query(booking.End, booking.End.Add(time.Hour)), token, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	require.NoError(t, json.Unmarshal(resp.Data, &availability))
	assert.True(t, availability.Available)

	rec, resp = api.do(t, http.MethodGet, fmt.Sprintf("/rooms/%d/availability", room.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Errors, "start")
}

func TestRoomAdministration(t *testing.T) {
	api := newAPI(t, nil)
	owner, token := api.lecturer(t)

	body := map[string]any{"name": "Lab 1", "capacity": 24, "building": "Engineering", "floor": 2}
	rec, _ := api.do(t, http.MethodPost, "/rooms", token, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := api.do(t, http.MethodPost, "/rooms", api.adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)
	var room roomDTO
	require.NoError(t, json.Unmarshal(resp.Data, &room))
	assert.NotNil(t, room.Resources)

	rec, resp = api.do(t, http.MethodPost, "/rooms", api.adminToken,
		map[string]any{"name": "", "capacity": 0, "building": "Engineering"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Errors, "name")
	assert.Contains(t, resp.Errors, "capacity")

	booking := api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))
	rec, resp = api.do(t, http.MethodDelete, fmt.Sprintf("/rooms/%d", room.ID), api.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInUse, resp.Message)

	t.Run("past bookings keep the room", func(t *testing.T) {
		api.svc.Clock.Elapse(booking)
		adminToken := api.svc.Token(t, api.adminFixture)

		rec, resp := api.do(t, http.MethodDelete, fmt.Sprintf("/rooms/%d", room.ID), adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, msgInUse, resp.Message)

		rec, _ = api.do(t, http.MethodGet, fmt.Sprintf("/bookings/%d", booking.ID), adminToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestDuplicateDepartmentCode(t *testing.T) {
	api := newAPI(t, nil)
	body := map[string]any{"name": "Computer Science", "code": "CS"}

	rec, resp := api.do(t, http.MethodPost, "/departments", api.adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code, resp.Message)

	rec, resp = api.do(t, http.MethodPost, "/departments", api.adminToken, body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, msgAlreadyExists, resp.Message)
}

func TestBookingSummaryIsScoped(t *testing.T) {
	api := newAPI(t, nil)
	owner, token := api.lecturer(t)
	other, _ := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))
	api.svc.SeedBooking(t, other, testfixtures.NewBookingFixture(room.ID))
	api.svc.SeedBooking(t, other, testfixtures.NewBookingFixture(room.ID))

	confirmed := func(token string) int {
		rec, resp := api.do(t, http.MethodGet, "/reports/booking-summary", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, resp.Message)
		var rows []statusCountDTO
		require.NoError(t, json.Unmarshal(resp.Data, &rows))
		for _, row := range rows {
			if row.Status == "confirmed" {
				return row.Count
			}
		}
		return 0
	}

	assert.Equal(t, 1, confirmed(token))
	assert.Equal(t, 3, confirmed(api.adminToken))
}

func TestAuditLogRecordsBookings(t *testing.T) {
	api := newAPI(t, nil)
	owner, _ := api.lecturer(t)
	room := api.svc.SeedRoom(t, testfixtures.NewRoomFixture())
	api.svc.SeedBooking(t, owner, testfixtures.NewBookingFixture(room.ID))

	rec, resp := api.do(t, http.MethodGet, "/audit-logs", api.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, resp.Message)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.NotEmpty(t, entries)
	assert.Equal(t, application.BookingCreated{}.EventName(), entries[0]["action"])
}

func TestLoginIsRateLimited(t *testing.T) {
	api := newAPI(t, NewLoginLimiter(1, 2, testfixtures.DiscardLogger()))
	body := map[string]string{"email": api.adminFixture.Email, "password": "wrong-password"}

	for i := 0; i < 2; i++ {
		rec, _ := api.do(t, http.MethodPost, "/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, resp := api.do(t, http.MethodPost, "/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, errTooManyRequests.Error(), resp.Message)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
