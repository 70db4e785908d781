package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeline/internal/hospital"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
)

type registerHospitalBody struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phone_number"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	LicenseNumber string `json:"license_number"`
}

// handleRegisterHospital adds a hospital to the registry.
func (h *Handler) handleRegisterHospital(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body registerHospitalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.hospitals.Register(ctx, hospital.NewHospital{
		Name:          body.Name,
		Email:         body.Email,
		PhoneNumber:   body.PhoneNumber,
		Address:       body.Address,
		City:          body.City,
		State:         body.State,
		Country:       body.Country,
		LicenseNumber: body.LicenseNumber,
	})
	if err != nil {
		h.logError(ctx, "register hospital", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHospitalResponse(created))
}

// handleGetHospital returns one hospital profile.
func (h *Handler) handleGetHospital(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hospitalID, ok := h.hospitalIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.hospitals.Get(ctx, hospitalID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHospitalResponse(out))
}

type hospitalStatusBody struct {
	IsActive bool `json:"is_active"`
}

// handleSetHospitalStatus activates or deactivates a hospital.
func (h *Handler) handleSetHospitalStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hospitalID, ok := h.hospitalIDParam(w, r)
	if !ok {
		return
	}
	var body hospitalStatusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	out, err := h.hospitals.SetActive(ctx, hospitalID, body.IsActive)
	if err != nil {
		h.logError(ctx, "set hospital status", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHospitalResponse(out))
}

func (h *Handler) hospitalIDParam(w http.ResponseWriter, r *http.Request) (id.HospitalID, bool) {
	hospitalID, err := id.ParseHospitalID(chi.URLParam(r, "hospitalID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid hospital id"))
		return id.HospitalID{}, false
	}
	return hospitalID, true
}
