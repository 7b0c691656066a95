package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsync/fleetsync/internal/assignment"
	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/location"
	"github.com/fleetsync/fleetsync/internal/messaging"
	"github.com/fleetsync/fleetsync/internal/roster"
)

const testSecret = "test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := kvstore.NewMemory()
	feed := kvstore.NewFeed(store, 5*time.Millisecond)
	directory := roster.NewStoreDirectory(store)

	require.NoError(t, directory.Seed(context.Background(), "north",
		[]roster.Student{
			{ID: "s1", Name: "Asha Rao", Class: "5", Section: "B", Roll: "12"},
		},
		[]roster.Operator{
			{ID: "op1", Name: "Ravi", VehicleID: "KA-01-1234", Status: roster.OperatorActive},
			{ID: "op2", Name: "Suresh", VehicleID: "KA-01-9999", Status: roster.OperatorActive},
		},
	))

	registry := assignment.NewRegistry(store, directory, audit.Noop{})
	channel := location.NewChannel(store, feed, directory, audit.Noop{})
	messages := messaging.NewService(store, directory, audit.Noop{})

	h := NewHandler(registry, channel, messages)
	return NewRouter(h, NewRateLimiter(1000, 1000), testSecret)
}

func testToken(t *testing.T, tenantID, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"tenant_id": tenantID,
		"sub":       subject,
		"role":      role,
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(router http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RequiresToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodGet, "/api/v1/assignments/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/v1/assignments/", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_HealthzIsPublic(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(router, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RoleEnforcement(t *testing.T) {
	router := newTestRouter(t)
	studentToken := testToken(t, "north", "s1", RoleStudent)

	rec := doRequest(router, http.MethodPut, "/api/v1/location/", studentToken,
		`{"lat":12.9716,"lng":77.5946}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_PublishAndViewerProximity(t *testing.T) {
	router := newTestRouter(t)
	opToken := testToken(t, "north", "op1", RoleOperator)
	studentToken := testToken(t, "north", "s1", RoleStudent)

	rec := doRequest(router, http.MethodPut, "/api/v1/location/", opToken,
		`{"lat":12.9716,"lng":77.5946,"accuracy":8}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet,
		"/api/v1/location/operators/op1?lat=12.9720&lng=77.5950", studentToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tracking      bool    `json:"tracking"`
		AccuracyClass string  `json:"accuracy_class"`
		DistanceKm    float64 `json:"distance_km"`
		Distance      string  `json:"distance"`
		ETA           string  `json:"eta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Tracking)
	assert.Equal(t, "high", resp.AccuracyClass)
	assert.InDelta(t, 0.06, resp.DistanceKm, 0.005)
	assert.Equal(t, "62 m", resp.Distance)
	assert.Equal(t, "< 1 min", resp.ETA)

	// Stop tracking; the viewer now sees "not tracking", not a frozen sample.
	rec = doRequest(router, http.MethodDelete, "/api/v1/location/", opToken, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/v1/location/operators/op1", studentToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Tracking)
}

func TestRouter_AssignmentConflict(t *testing.T) {
	router := newTestRouter(t)
	op1Token := testToken(t, "north", "op1", RoleOperator)
	op2Token := testToken(t, "north", "op2", RoleOperator)

	rec := doRequest(router, http.MethodPost, "/api/v1/assignments/", op1Token,
		`{"student_id":"s1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/assignments/", op2Token,
		`{"student_id":"s1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Status transition through the API.
	rec = doRequest(router, http.MethodPut, "/api/v1/assignments/s1/status", op1Token,
		`{"status":"reached_home"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var a assignment.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, assignment.StatusReachedHome, a.TrackingStatus)
	assert.NotNil(t, a.ReachedHomeAt)

	rec = doRequest(router, http.MethodPut, "/api/v1/assignments/s1/status", op1Token,
		`{"status":"boarding"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRouter_AdminSendRequiresOperatorID(t *testing.T) {
	router := newTestRouter(t)
	adminToken := testToken(t, "north", "admin1", RoleAdmin)

	rec := doRequest(router, http.MethodPost, "/api/v1/messages/", adminToken,
		`{"type":"good","body":"hello","audience":"broadcast"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/principal-messages/", adminToken,
		`{"direction":"admin_to_operator","body":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Naming the operator thread works.
	rec = doRequest(router, http.MethodPost, "/api/v1/principal-messages/", adminToken,
		`{"operator_id":"op1","direction":"admin_to_operator","body":"hello"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRouter_MessageLifecycle(t *testing.T) {
	router := newTestRouter(t)
	opToken := testToken(t, "north", "op1", RoleOperator)
	studentToken := testToken(t, "north", "s1", RoleStudent)

	rec := doRequest(router, http.MethodPost, "/api/v1/messages/", opToken,
		`{"type":"good","body":"bus leaves at 4","audience":"broadcast"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var m messaging.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))

	rec = doRequest(router, http.MethodGet, "/api/v1/messages/operators/op1", studentToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bus leaves at 4")

	// A student cannot delete the operator's message.
	rec = doRequest(router, http.MethodDelete, "/api/v1/messages/operators/op1/"+m.ID, studentToken, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(router, http.MethodDelete, "/api/v1/messages/operators/op1/"+m.ID, opToken, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Hard delete reports absence on the second attempt.
	rec = doRequest(router, http.MethodDelete, "/api/v1/messages/operators/op1/"+m.ID, opToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
