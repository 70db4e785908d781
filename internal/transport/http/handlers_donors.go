package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lifeline/internal/donor"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/requestcontext"
)

// handleListDonors serves the donor directory with live eligibility verdicts.
func (h *Handler) handleListDonors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	views, err := h.donors.List(ctx, donor.ListFilter{
		BloodGroup:   q.Get("blood_group"),
		City:         q.Get("city"),
		State:        q.Get("state"),
		EligibleOnly: q.Get("eligible") == "true",
	})
	if err != nil {
		h.logError(ctx, "list donors", err)
		writeError(w, err)
		return
	}
	out := make([]donorResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toDonorResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetDonor returns one donor from the directory.
func (h *Handler) handleGetDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, err := id.ParseDonorID(chi.URLParam(r, "donorID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid donor id"))
		return
	}
	view, err := h.donors.Get(ctx, donorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorResponse(view))
}

type registerDonorBody struct {
	FullName              string  `json:"full_name"`
	DateOfBirth           string  `json:"date_of_birth"`
	Gender                string  `json:"gender"`
	BloodGroup            string  `json:"blood_group"`
	WeightKg              float64 `json:"weight_kg"`
	PhoneNumber           string  `json:"phone_number"`
	EmergencyContact      string  `json:"emergency_contact"`
	Address               string  `json:"address"`
	City                  string  `json:"city"`
	State                 string  `json:"state"`
	Country               string  `json:"country"`
	Pincode               string  `json:"pincode"`
	HasChronicDisease     bool    `json:"has_chronic_disease"`
	ChronicDiseaseDetails string  `json:"chronic_disease_details"`
}

// handleRegisterDonor creates the caller's donor profile.
func (h *Handler) handleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body registerDonorBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	dob, err := time.Parse("2006-01-02", body.DateOfBirth)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "date_of_birth must be YYYY-MM-DD"))
		return
	}

	created, err := h.donors.Register(ctx, donor.NewDonor{
		UserID:                requestcontext.UserID(ctx),
		FullName:              body.FullName,
		DateOfBirth:           dob,
		Gender:                donor.Gender(body.Gender),
		BloodGroup:            body.BloodGroup,
		WeightKg:              body.WeightKg,
		PhoneNumber:           body.PhoneNumber,
		EmergencyContact:      body.EmergencyContact,
		Address:               body.Address,
		City:                  body.City,
		State:                 body.State,
		Country:               body.Country,
		Pincode:               body.Pincode,
		HasChronicDisease:     body.HasChronicDisease,
		ChronicDiseaseDetails: body.ChronicDiseaseDetails,
	})
	if err != nil {
		h.logError(ctx, "register donor", err)
		writeError(w, err)
		return
	}
	view, err := h.donors.Get(ctx, created.ID)
	if err != nil {
		writeJSON(w, http.StatusCreated, toDonorResponse(donor.View{Donor: created}))
		return
	}
	writeJSON(w, http.StatusCreated, toDonorResponse(view))
}

// handleGetMyDonor returns the caller's donor profile.
func (h *Handler) handleGetMyDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, ok := h.callerDonorID(w, ctx)
	if !ok {
		return
	}
	view, err := h.donors.Get(ctx, donorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorResponse(view))
}

type updateProfileBody struct {
	IsAvailable      *bool   `json:"is_available"`
	PhoneNumber      *string `json:"phone_number"`
	EmergencyContact *string `json:"emergency_contact"`
	Address          *string `json:"address"`
	City             *string `json:"city"`
	State            *string `json:"state"`
}

// handleUpdateMyDonor applies the donor-editable profile fields.
func (h *Handler) handleUpdateMyDonor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, ok := h.callerDonorID(w, ctx)
	if !ok {
		return
	}
	var body updateProfileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if _, err := h.donors.UpdateProfile(ctx, donorID, donor.ProfileUpdate{
		IsAvailable:      body.IsAvailable,
		PhoneNumber:      body.PhoneNumber,
		EmergencyContact: body.EmergencyContact,
		Address:          body.Address,
		City:             body.City,
		State:            body.State,
	}); err != nil {
		h.logError(ctx, "update donor profile", err)
		writeError(w, err)
		return
	}
	view, err := h.donors.Get(ctx, donorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonorResponse(view))
}

// handleMyDonations returns the caller's donation history.
func (h *Handler) handleMyDonations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, ok := h.callerDonorID(w, ctx)
	if !ok {
		return
	}
	history, err := h.requests.DonationHistory(ctx, donorID)
	if err != nil {
		h.logError(ctx, "list donation history", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDonationResponses(history))
}

// handleMyNotifications serves the caller's open offers.
func (h *Handler) handleMyNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, ok := h.callerDonorID(w, ctx)
	if !ok {
		return
	}
	entries, err := h.coordinator.Inbox(ctx, donorID)
	if err != nil {
		h.logError(ctx, "list notification inbox", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInboxResponse(entries))
}

type respondBody struct {
	Accept bool `json:"accept"`
}

// handleRespond records the caller's answer to an offer.
func (h *Handler) handleRespond(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	donorID, ok := h.callerDonorID(w, ctx)
	if !ok {
		return
	}
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid notification id"))
		return
	}
	var body respondBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	n, err := h.coordinator.Respond(ctx, notificationID, donorID, body.Accept)
	if err != nil {
		h.logError(ctx, "respond to notification", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}
