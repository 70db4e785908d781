package e2e

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"

	id "lifeline/pkg/domain"
)

func initializeScenario(ctx *godog.ScenarioContext) {
	w := &world{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		w.start()
		return ctx, nil
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		w.stop()
		return ctx, nil
	})

	// Actors.
	ctx.Step(`^a hospital "([^"]*)" in "([^"]*)", "([^"]*)"$`, w.aHospital)
	ctx.Step(`^the hospital "([^"]*)" is deactivated$`, w.hospitalDeactivated)
	ctx.Step(`^a verified donor "([^"]*)" with blood group "([^"]*)" in "([^"]*)", "([^"]*)"$`, w.aVerifiedDonor)

	// Request lifecycle.
	ctx.Step(`^staff at "([^"]*)" submit a request for (\d+) units? of "([^"]*)" with urgency "([^"]*)"$`, w.staffSubmitRequest)
	ctx.Step(`^a request is submitted without credentials$`, w.submitWithoutCredentials)
	ctx.Step(`^a blood bank manager approves the request$`, w.managerApproves)
	ctx.Step(`^a blood bank manager rejects the request$`, w.managerRejects)
	ctx.Step(`^staff at "([^"]*)" cancel the request$`, w.staffCancel)
	ctx.Step(`^donor "([^"]*)" (accepts|declines) their offer$`, w.donorResponds)

	// Donor self service.
	ctx.Step(`^a new donor signs up as "([^"]*)" with blood group "([^"]*)" in "([^"]*)", "([^"]*)"$`, w.donorSignsUp)
	ctx.Step(`^donor "([^"]*)" moves to "([^"]*)"$`, w.donorMoves)

	// Assertions.
	ctx.Step(`^the response status is (\d+)$`, w.responseStatusIs)
	ctx.Step(`^the request status is "([^"]*)"$`, w.requestStatusIs)
	ctx.Step(`^(\d+) donors? (?:are|is) notified$`, w.donorsAreNotified)
	ctx.Step(`^donor "([^"]*)" has (\d+) pending offers?$`, w.donorPendingOffers)
	ctx.Step(`^donor "([^"]*)" has no pending offers$`, w.donorNoPendingOffers)
	ctx.Step(`^donor "([^"]*)" has (\d+) recorded donations?$`, w.donorRecordedDonations)
	ctx.Step(`^donor "([^"]*)"'s profile shows city "([^"]*)"$`, w.donorProfileCity)
}

func (w *world) aHospital(name, city, state string) error {
	_, err := w.seedHospital(name, city, state)
	return err
}

func (w *world) hospitalDeactivated(name string) error {
	hospitalID, ok := w.hospitalIDs[name]
	if !ok {
		return fmt.Errorf("unknown hospital %q", name)
	}
	return w.hospitals.SetActive(context.Background(), hospitalID, false, time.Now().UTC())
}

func (w *world) aVerifiedDonor(name, group, city, state string) error {
	return w.seedDonor(name, group, city, state)
}

func (w *world) staffSubmitRequest(hospitalName string, units int, group, urgency string) error {
	token, err := w.staffToken(hospitalName)
	if err != nil {
		return err
	}
	body := map[string]any{
		"patient_name":   "A. Patient",
		"patient_age":    45,
		"patient_gender": "M",
		"blood_group":    group,
		"units_required": units,
		"urgency":        urgency,
	}
	if err := w.call(http.MethodPost, "/api/v1/requests", token, body); err != nil {
		return err
	}
	if w.lastStatus == http.StatusCreated {
		var resp struct {
			ID id.RequestID `json:"id"`
		}
		if err := w.decodeLast(&resp); err != nil {
			return err
		}
		w.currentRequest = resp.ID
	}
	return nil
}

func (w *world) submitWithoutCredentials() error {
	return w.call(http.MethodPost, "/api/v1/requests", "", map[string]any{
		"patient_name":   "A. Patient",
		"patient_age":    45,
		"patient_gender": "M",
		"blood_group":    "O+",
		"units_required": 1,
		"urgency":        "high",
	})
}

func (w *world) managerApproves() error {
	path := fmt.Sprintf("/api/v1/requests/%s/approve", w.currentRequest)
	return w.call(http.MethodPost, path, w.managerToken, nil)
}

func (w *world) managerRejects() error {
	path := fmt.Sprintf("/api/v1/requests/%s/reject", w.currentRequest)
	return w.call(http.MethodPost, path, w.managerToken, nil)
}

func (w *world) staffCancel(hospitalName string) error {
	token, err := w.staffToken(hospitalName)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/v1/requests/%s/cancel", w.currentRequest)
	return w.call(http.MethodPost, path, token, nil)
}

// pendingOffers lists the donor's inbox entries for the current request.
func (w *world) pendingOffers(name string) ([]inboxEntry, error) {
	token, err := w.donorToken(name)
	if err != nil {
		return nil, err
	}
	if err := w.call(http.MethodGet, "/api/v1/me/notifications", token, nil); err != nil {
		return nil, err
	}
	if w.lastStatus != http.StatusOK {
		return nil, fmt.Errorf("list notifications: status %d body %s", w.lastStatus, w.lastBody)
	}
	var entries []inboxEntry
	if err := w.decodeLast(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type inboxEntry struct {
	Notification struct {
		ID        id.NotificationID `json:"id"`
		RequestID id.RequestID      `json:"request_id"`
		Status    string            `json:"status"`
	} `json:"notification"`
	Request struct {
		ID     id.RequestID `json:"id"`
		Status string       `json:"status"`
	} `json:"request"`
}

func (w *world) donorResponds(name, verb string) error {
	entries, err := w.pendingOffers(name)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Notification.RequestID == w.currentRequest {
			path := fmt.Sprintf("/api/v1/notifications/%s/respond", e.Notification.ID)
			token, err := w.donorToken(name)
			if err != nil {
				return err
			}
			return w.call(http.MethodPost, path, token, map[string]any{
				"accept": verb == "accepts",
			})
		}
	}
	return fmt.Errorf("donor %q has no offer for the current request", name)
}

func (w *world) donorSignsUp(name, group, city, state string) error {
	userID := id.NewUserID()
	// A bare donor token first: the profile does not exist yet.
	token, err := w.jwt.GenerateAccessToken(jwtSubjectDonor(userID, id.DonorID{}), time.Hour)
	if err != nil {
		return err
	}
	body := map[string]any{
		"full_name":     name,
		"date_of_birth": time.Now().UTC().AddDate(-25, 0, 0).Format("2006-01-02"),
		"gender":        "F",
		"blood_group":   group,
		"weight_kg":     58,
		"phone_number":  "+91-98111-22222",
		"city":          city,
		"state":         state,
		"country":       "India",
	}
	if err := w.call(http.MethodPost, "/api/v1/me/donor", token, body); err != nil {
		return err
	}
	if w.lastStatus != http.StatusCreated {
		return nil
	}
	var resp struct {
		ID id.DonorID `json:"id"`
	}
	if err := w.decodeLast(&resp); err != nil {
		return err
	}
	// Re-minting with the created donor id mirrors a token refresh after
	// onboarding.
	refreshed, err := w.jwt.GenerateAccessToken(jwtSubjectDonor(userID, resp.ID), time.Hour)
	if err != nil {
		return err
	}
	w.donorUserIDs[name] = userID
	w.donorTokens[name] = refreshed
	return nil
}

func (w *world) donorMoves(name, city string) error {
	token, err := w.donorToken(name)
	if err != nil {
		return err
	}
	return w.call(http.MethodPatch, "/api/v1/me/donor", token, map[string]any{
		"city": city,
	})
}

func (w *world) responseStatusIs(status int) error {
	if w.lastStatus != status {
		return fmt.Errorf("expected status %d, got %d (body %s)", status, w.lastStatus, w.lastBody)
	}
	return nil
}

func (w *world) requestStatusIs(status string) error {
	path := fmt.Sprintf("/api/v1/requests/%s", w.currentRequest)
	if err := w.call(http.MethodGet, path, w.managerToken, nil); err != nil {
		return err
	}
	if w.lastStatus != http.StatusOK {
		return fmt.Errorf("get request: status %d body %s", w.lastStatus, w.lastBody)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := w.decodeLast(&resp); err != nil {
		return err
	}
	if resp.Status != status {
		return fmt.Errorf("expected request status %q, got %q", status, resp.Status)
	}
	return nil
}

func (w *world) donorsAreNotified(n int) error {
	var resp struct {
		DonorsNotified int `json:"donors_notified"`
	}
	if err := w.decodeLast(&resp); err != nil {
		return err
	}
	if resp.DonorsNotified != n {
		return fmt.Errorf("expected %d donors notified, got %d", n, resp.DonorsNotified)
	}
	return nil
}

func (w *world) donorPendingOffers(name string, n int) error {
	entries, err := w.pendingOffers(name)
	if err != nil {
		return err
	}
	if len(entries) != n {
		return fmt.Errorf("expected %d pending offers for %q, got %d", n, name, len(entries))
	}
	return nil
}

func (w *world) donorNoPendingOffers(name string) error {
	return w.donorPendingOffers(name, 0)
}

func (w *world) donorRecordedDonations(name string, n int) error {
	token, err := w.donorToken(name)
	if err != nil {
		return err
	}
	if err := w.call(http.MethodGet, "/api/v1/me/donations", token, nil); err != nil {
		return err
	}
	if w.lastStatus != http.StatusOK {
		return fmt.Errorf("list donations: status %d body %s", w.lastStatus, w.lastBody)
	}
	var donations []struct {
		RequestID id.RequestID `json:"request_id"`
	}
	if err := w.decodeLast(&donations); err != nil {
		return err
	}
	if len(donations) != n {
		return fmt.Errorf("expected %d donations for %q, got %d", n, name, len(donations))
	}
	return nil
}

func (w *world) donorProfileCity(name, city string) error {
	token, err := w.donorToken(name)
	if err != nil {
		return err
	}
	if err := w.call(http.MethodGet, "/api/v1/me/donor", token, nil); err != nil {
		return err
	}
	if w.lastStatus != http.StatusOK {
		return fmt.Errorf("get profile: status %d body %s", w.lastStatus, w.lastBody)
	}
	var resp struct {
		City string `json:"city"`
	}
	if err := w.decodeLast(&resp); err != nil {
		return err
	}
	if resp.City != city {
		return fmt.Errorf("expected city %q, got %q", city, resp.City)
	}
	return nil
}
