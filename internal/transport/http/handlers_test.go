package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/donor"
	donorstore "lifeline/internal/donor/store"
	"lifeline/internal/events"
	"lifeline/internal/hospital"
	hospitalstore "lifeline/internal/hospital/store"
	"lifeline/internal/jwttoken"
	"lifeline/internal/matching"
	matchingmetrics "lifeline/internal/matching/metrics"
	"lifeline/internal/notify"
	"lifeline/internal/platform/metrics"
	"lifeline/internal/request"
	requeststore "lifeline/internal/request/store"
	httpapi "lifeline/internal/transport/http"
	id "lifeline/pkg/domain"
)

type testApp struct {
	server    *httptest.Server
	jwt       *jwttoken.JWTService
	donors    *donorstore.InMemory
	hospitals *hospitalstore.InMemory
	requests  *requeststore.InMemoryRequests
	hospital  hospital.Hospital
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	donors := donorstore.NewInMemory()
	hospitals := hospitalstore.NewInMemory()
	requests := requeststore.NewInMemoryRequests()
	notifications := requeststore.NewInMemoryNotifications()
	donations := requeststore.NewInMemoryDonations()

	requestSvc := request.NewService(requests, hospitals, donations, events.Noop{}, logger)
	donorSvc := donor.NewService(donors, donors, logger)
	hospitalSvc := hospital.NewService(hospitals, logger)
	coordinator := matching.NewCoordinator(
		requests, notifications, donations, donors, hospitals,
		matching.NewTieredSelector(donors),
		notify.NewLogNotifier(logger),
		events.Noop{},
		matchingmetrics.NewWith(prometheus.NewRegistry()),
		logger,
	)

	jwtSvc := jwttoken.NewJWTService("test-signing-key", "lifeline", "lifeline")
	handler := httpapi.NewHandler(requestSvc, donorSvc, hospitalSvc, coordinator, logger)
	router := httpapi.NewRouter(handler, jwtSvc, metrics.NewWith(prometheus.NewRegistry()), logger)

	app := &testApp{
		server:    httptest.NewServer(router),
		jwt:       jwtSvc,
		donors:    donors,
		hospitals: hospitals,
		requests:  requests,
	}
	t.Cleanup(app.server.Close)

	app.hospital = hospital.Hospital{
		ID:       id.NewHospitalID(),
		Name:     "City General",
		Email:    "bloodbank@citygeneral.example",
		City:     "Pune",
		State:    "Maharashtra",
		IsActive: true,
	}
	require.NoError(t, hospitals.Create(context.Background(), app.hospital))
	return app
}

func (a *testApp) token(t *testing.T, subject jwttoken.TokenSubject) string {
	t.Helper()
	tok, err := a.jwt.GenerateAccessToken(subject, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *testApp) staffToken(t *testing.T) string {
	return a.token(t, jwttoken.TokenSubject{
		UserID:     id.NewUserID(),
		Role:       id.RoleHospitalStaff,
		HospitalID: a.hospital.ID,
	})
}

func (a *testApp) managerToken(t *testing.T) string {
	return a.token(t, jwttoken.TokenSubject{
		UserID: id.NewUserID(),
		Role:   id.RoleBloodBankManager,
	})
}

func (a *testApp) donorToken(t *testing.T, donorID id.DonorID) string {
	return a.token(t, jwttoken.TokenSubject{
		UserID:  id.NewUserID(),
		Role:    id.RoleDonor,
		DonorID: donorID,
	})
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (a *testApp) seedDonor(t *testing.T, city, state string) donor.Donor {
	t.Helper()
	d := donor.Donor{
		ID:          id.NewDonorID(),
		UserID:      id.NewUserID(),
		FullName:    "Pool Donor",
		DateOfBirth: time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		Gender:      donor.GenderFemale,
		BloodGroup:  id.BloodGroupOPos,
		WeightKg:    68,
		PhoneNumber: "+91-98200-00000",
		City:        city,
		State:       state,
		IsAvailable: true,
		IsVerified:  true,
	}
	require.NoError(t, a.donors.Create(context.Background(), d))
	return d
}

func submitBody() map[string]any {
	return map[string]any{
		"patient_name":   "S. Rao",
		"patient_age":    41,
		"patient_gender": "M",
		"blood_group":    "O+",
		"units_required": 2,
		"urgency":        "high",
		"diagnosis":      "scheduled surgery",
	}
}

func TestAuthGates(t *testing.T) {
	app := newTestApp(t)

	t.Run("missing token", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/api/v1/requests/pending", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong role", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/api/v1/requests/pending", app.staffToken(t), nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("healthz is open", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	d := app.seedDonor(t, "Pune", "Maharashtra")
	staff := app.staffToken(t)
	manager := app.managerToken(t)
	donorTok := app.donorToken(t, d.ID)

	// Staff submits.
	resp := app.do(t, http.MethodPost, "/api/v1/requests", staff, submitBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	requestID := created["id"].(string)
	assert.Equal(t, "pending", created["status"])

	// Manager sees it pending.
	resp = app.do(t, http.MethodGet, "/api/v1/requests/pending", manager, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := decode[[]map[string]any](t, resp)
	require.Len(t, pending, 1)

	// Manager approves; one donor is notified.
	resp = app.do(t, http.MethodPost, "/api/v1/requests/"+requestID+"/approve", manager, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approval := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), approval["donors_notified"])

	// The donor finds the offer in the inbox.
	resp = app.do(t, http.MethodGet, "/api/v1/me/notifications", donorTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inbox := decode[[]map[string]any](t, resp)
	require.Len(t, inbox, 1)
	notification := inbox[0]["notification"].(map[string]any)
	notificationID := notification["id"].(string)

	// The donor accepts.
	resp = app.do(t, http.MethodPost, "/api/v1/notifications/"+notificationID+"/respond",
		donorTok, map[string]any{"accept": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	answered := decode[map[string]any](t, resp)
	assert.Equal(t, "accepted", answered["status"])

	// The request is completed and the donation recorded.
	resp = app.do(t, http.MethodGet, "/api/v1/requests/"+requestID, staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	final := decode[map[string]any](t, resp)
	assert.Equal(t, "completed", final["status"])

	resp = app.do(t, http.MethodGet, "/api/v1/me/donations", donorTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	donations := decode[[]map[string]any](t, resp)
	require.Len(t, donations, 1)
	assert.Equal(t, requestID, donations[0]["request_id"])

	// A second accept conflicts.
	resp = app.do(t, http.MethodPost, "/api/v1/notifications/"+notificationID+"/respond",
		donorTok, map[string]any{"accept": true})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSubmitValidationOverHTTP(t *testing.T) {
	app := newTestApp(t)
	staff := app.staffToken(t)

	body := submitBody()
	body["blood_group"] = "Q+"
	resp := app.do(t, http.MethodPost, "/api/v1/requests", staff, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody := decode[map[string]any](t, resp)
	assert.Equal(t, "bad_request", errBody["error"])
}

func TestInactiveHospitalCannotSubmit(t *testing.T) {
	app := newTestApp(t)
	require.NoError(t, app.hospitals.SetActive(context.Background(), app.hospital.ID, false, time.Now()))

	resp := app.do(t, http.MethodPost, "/api/v1/requests", app.staffToken(t), submitBody())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestDonorDirectoryOverHTTP(t *testing.T) {
	app := newTestApp(t)
	app.seedDonor(t, "Pune", "Maharashtra")
	app.seedDonor(t, "Chennai", "Tamil Nadu")
	manager := app.managerToken(t)

	resp := app.do(t, http.MethodGet, "/api/v1/donors?city=Pune", manager, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	donors := decode[[]map[string]any](t, resp)
	require.Len(t, donors, 1)
	assert.Equal(t, "Pune", donors[0]["city"])
	assert.Equal(t, true, donors[0]["can_donate_now"])
}

func TestDonorProfileOverHTTP(t *testing.T) {
	app := newTestApp(t)

	userID := id.NewUserID()
	registerTok := app.token(t, jwttoken.TokenSubject{UserID: userID, Role: id.RoleDonor})
	resp := app.do(t, http.MethodPost, "/api/v1/me/donor", registerTok, map[string]any{
		"full_name":     "K. Menon",
		"date_of_birth": "1992-07-04",
		"gender":        "F",
		"blood_group":   "A+",
		"weight_kg":     61,
		"phone_number":  "+91-98200-11111",
		"city":          "Pune",
		"state":         "Maharashtra",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	profile := decode[map[string]any](t, resp)
	donorID, err := id.ParseDonorID(profile["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, false, profile["is_verified"])

	donorTok := app.donorToken(t, donorID)
	resp = app.do(t, http.MethodPatch, "/api/v1/me/donor", donorTok, map[string]any{
		"is_available": false,
		"city":         "Mumbai",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[map[string]any](t, resp)
	assert.Equal(t, false, updated["is_available"])
	assert.Equal(t, "Mumbai", updated["city"])

	resp = app.do(t, http.MethodGet, "/api/v1/me/donor", donorTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHospitalRegistryOverHTTP(t *testing.T) {
	app := newTestApp(t)
	manager := app.managerToken(t)

	body := map[string]any{
		"name":           "Ruby Hall Clinic",
		"email":          "bloodbank@rubyhall.example",
		"city":           "Pune",
		"state":          "Maharashtra",
		"license_number": "MH-2024-0042",
	}
	resp := app.do(t, http.MethodPost, "/api/v1/hospitals", manager, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	hospitalID := created["id"].(string)
	assert.Equal(t, true, created["is_active"])

	t.Run("staff cannot register hospitals", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/api/v1/hospitals", app.staffToken(t), body)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("duplicate license conflicts", func(t *testing.T) {
		resp := app.do(t, http.MethodPost, "/api/v1/hospitals", manager, body)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("staff reads the profile", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/api/v1/hospitals/"+hospitalID, app.staffToken(t), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[map[string]any](t, resp)
		assert.Equal(t, "Ruby Hall Clinic", got["name"])
	})

	t.Run("manager deactivates and staff cannot submit", func(t *testing.T) {
		resp := app.do(t, http.MethodPatch, "/api/v1/hospitals/"+hospitalID+"/status", manager,
			map[string]any{"is_active": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		got := decode[map[string]any](t, resp)
		assert.Equal(t, false, got["is_active"])

		parsed, err := id.ParseHospitalID(hospitalID)
		require.NoError(t, err)
		staff := app.token(t, jwttoken.TokenSubject{
			UserID:     id.NewUserID(),
			Role:       id.RoleHospitalStaff,
			HospitalID: parsed,
		})
		resp = app.do(t, http.MethodPost, "/api/v1/requests", staff, submitBody())
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("unknown hospital", func(t *testing.T) {
		resp := app.do(t, http.MethodGet, "/api/v1/hospitals/"+id.NewHospitalID().String(), manager, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCancelOverHTTP(t *testing.T) {
	app := newTestApp(t)
	app.seedDonor(t, "Pune", "Maharashtra")
	staff := app.staffToken(t)
	manager := app.managerToken(t)

	resp := app.do(t, http.MethodPost, "/api/v1/requests", staff, submitBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	requestID := decode[map[string]any](t, resp)["id"].(string)

	// Cancel before approval conflicts.
	resp = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%s/cancel", requestID), staff, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%s/approve", requestID), manager, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = app.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%s/cancel", requestID), staff, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cancelled := decode[map[string]any](t, resp)
	assert.Equal(t, "cancelled", cancelled["status"])
}
