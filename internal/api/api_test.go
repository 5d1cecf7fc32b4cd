package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abcfood/fingerprint-bridge/pkg/cache"
	"github.com/abcfood/fingerprint-bridge/pkg/config"
	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/device/devicetest"
	"github.com/abcfood/fingerprint-bridge/pkg/hris"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

const testAPIKey = "test-secret"

type apiFixture struct {
	router http.Handler
	dialer *devicetest.Dialer
	cache  *cache.Cache
}

type fakeDirectory struct {
	employees []hris.Employee
}

func (f *fakeDirectory) Employees(context.Context) ([]hris.Employee, error) {
	return f.employees, nil
}

func newAPIFixture(t *testing.T, directory hris.Directory) *apiFixture {
	t.Helper()
	dialer := devicetest.NewDialer()
	pool, err := device.NewPoolFromConfigs([]device.Config{
		{Key: "tmi", Name: "TMI Office", IP: "10.0.0.1"},
		{Key: "mmk", Name: "MMK Office", IP: "10.0.0.2"},
	}, dialer)
	require.NoError(t, err)

	c := cache.New(pool)
	svc := service.New(pool, c, nil, directory)
	settings := &config.Settings{APIKey: testAPIKey}
	return &apiFixture{
		router: NewRouter(settings, svc, nil, nil, "test"),
		dialer: dialer,
		cache:  c,
	}
}

func (f *apiFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-API-Key", testAPIKey)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
		Error  string         `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func TestHealthIsUnauthenticated(t *testing.T) {
	f := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, "fingerprint-bridge", data["service"])
}

func TestMissingAPIKeyRejected(t *testing.T) {
	f := newAPIFixture(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListDevices(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 2, data["count"])
}

func TestGetDeviceOfflineIs503(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.dialer.Device("tmi").DialErr = device.ErrOffline

	rec := f.do(http.MethodGet, "/api/v1/devices/tmi", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOfflineOutsideDeviceDetailIs500(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.dialer.Device("tmi").DialErr = device.ErrOffline

	// Only the device detail endpoint reports an unreachable device as
	// 503; data endpoints surface the transport failure as 500.
	rec := f.do(http.MethodGet, "/api/v1/attendance/tmi?use_cache=false", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(http.MethodPost, "/api/v1/devices/tmi/restart", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetDeviceUnknownIs404(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/v1/devices/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAttendanceFiltersAndPaginates(t *testing.T) {
	f := newAPIFixture(t, nil)
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	f.dialer.Device("tmi").Attendance = []device.Attendance{
		{UID: 1, UserID: "E1", Timestamp: base},
		{UID: 1, UserID: "E1", Timestamp: base.Add(time.Hour)},
		{UID: 2, UserID: "E2", Timestamp: base.Add(2 * time.Hour)},
	}
	_, err := f.cache.Refresh(context.Background(), "tmi")
	require.NoError(t, err)

	rec := f.do(http.MethodGet,
		"/api/v1/attendance/tmi?from=2024-01-01&to=2024-01-01T09:30:00Z", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 2, data["total"])

	rec = f.do(http.MethodGet, "/api/v1/attendance/tmi?limit=2&offset=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeData(t, rec)
	assert.EqualValues(t, 3, data["total"])
	assert.EqualValues(t, 2, data["count"])
	assert.EqualValues(t, 1, data["offset"])
}

func TestGetAttendanceBadParams(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/v1/attendance/tmi?from=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/attendance/tmi?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/attendance/tmi?limit=99999", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAttendanceHRISFormat(t *testing.T) {
	f := newAPIFixture(t, nil)
	f.dialer.Device("tmi").Attendance = []device.Attendance{
		{UID: 1, UserID: "E1", Timestamp: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)},
	}
	_, err := f.cache.Refresh(context.Background(), "tmi")
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/api/v1/attendance/tmi?format=hris", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	rows, ok := data["records"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "tmi", row["machine_code"])
	assert.Equal(t, "TMI Office", row["machine_name"])
	assert.Equal(t, "Check-In", row["attendance_type"])
}

func TestCountAttendancePrefersCache(t *testing.T) {
	f := newAPIFixture(t, nil)
	dev := f.dialer.Device("tmi")
	dev.Attendance = []device.Attendance{
		{UID: 1, UserID: "E1", Timestamp: time.Now()},
	}
	_, err := f.cache.Refresh(context.Background(), "tmi")
	require.NoError(t, err)
	dialsAfterRefresh := dev.DialCount

	rec := f.do(http.MethodGet, "/api/v1/attendance/tmi/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 1, data["count"])
	assert.Equal(t, dialsAfterRefresh, dev.DialCount)
}

func TestClearAttendanceRequiresConfirm(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodDelete, "/api/v1/attendance/tmi", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/attendance/tmi?confirm=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserCRUD(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/users/tmi",
		`{"uid": 1, "user_id": "E1", "name": "Aung Kyaw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/users/tmi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 1, data["count"])

	rec = f.do(http.MethodGet, "/api/v1/users/tmi/E1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/api/v1/users/tmi/1", `{"name": "Renamed"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/api/v1/users/tmi/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/users/tmi/E1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateUnknownUserIs404(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPut, "/api/v1/users/tmi/42", `{"name": "Nobody"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncUsersDefaultsToDryRun(t *testing.T) {
	dir := &fakeDirectory{employees: []hris.Employee{
		{ID: "E1", Name: "A"},
		{ID: "E2", Name: "B"},
	}}
	f := newAPIFixture(t, dir)
	dev := f.dialer.Device("tmi")
	dev.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}

	rec := f.do(http.MethodPost, "/api/v1/users/tmi/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["dry_run"])
	assert.NotContains(t, dev.CallNames(), "SetUser")

	rec = f.do(http.MethodPost, "/api/v1/users/tmi/sync", `{"dry_run": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, dev.CallNames(), "SetUser")
}

func TestSyncWithoutHRISIs503(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/users/tmi/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFingerprintCount(t *testing.T) {
	f := newAPIFixture(t, nil)
	dev := f.dialer.Device("tmi")
	dev.Users = []device.User{{UID: 1, UserID: "E1", Name: "A"}}
	dev.Templates = []device.Fingerprint{
		{UID: 1, FingerIndex: 0, Template: []byte{1}, Valid: 1},
		{UID: 1, FingerIndex: 1, Template: []byte{2}, Valid: 1},
	}

	rec := f.do(http.MethodGet, "/api/v1/fingerprints/tmi/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 2, data["total"])
	assert.EqualValues(t, 1, data["users_with_fp"])
}

func TestBackupWithoutStoreIs503(t *testing.T) {
	f := newAPIFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/v1/backup/tmi", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(http.MethodGet, "/api/v1/backup/list", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRestoreRouteCapturesSlashedKey(t *testing.T) {
	f := newAPIFixture(t, nil)

	// Store is not configured, so the handler answers 503. Reaching that
	// error proves the wildcard route matched the slashed object key.
	rec := f.do(http.MethodPost,
		"/api/v1/backup/restore/backups/tmi/2024-01-01_00-00-00.json", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
