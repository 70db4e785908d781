package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/requestcontext"
)

type submitRequestBody struct {
	PatientName     string  `json:"patient_name"`
	PatientAge      int     `json:"patient_age"`
	PatientGender   string  `json:"patient_gender"`
	BloodGroup      string  `json:"blood_group"`
	UnitsRequired   int     `json:"units_required"`
	HemoglobinLevel float64 `json:"hemoglobin_level"`
	Diagnosis       string  `json:"diagnosis"`
	OperationID     string  `json:"operation_id"`
	Urgency         string  `json:"urgency"`
}

// handleSubmitRequest creates a blood request for the caller's hospital.
func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hospitalID := requestcontext.HospitalID(ctx)
	if hospitalID.IsNil() {
		writeError(w, dErrors.New(dErrors.CodeForbidden, "no hospital associated with this account"))
		return
	}

	var body submitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	created, err := h.requests.Submit(ctx, request.NewRequest{
		HospitalID:      hospitalID,
		PatientName:     body.PatientName,
		PatientAge:      body.PatientAge,
		PatientGender:   body.PatientGender,
		BloodGroup:      body.BloodGroup,
		UnitsRequired:   body.UnitsRequired,
		HemoglobinLevel: body.HemoglobinLevel,
		Diagnosis:       body.Diagnosis,
		OperationID:     body.OperationID,
		Urgency:         body.Urgency,
	})
	if err != nil {
		h.logError(ctx, "submit blood request", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestResponse(created))
}

// handleListHospitalRequests lists the caller hospital's requests.
func (h *Handler) handleListHospitalRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hospitalID := requestcontext.HospitalID(ctx)
	if hospitalID.IsNil() {
		writeError(w, dErrors.New(dErrors.CodeForbidden, "no hospital associated with this account"))
		return
	}

	status := request.RequestStatus(r.URL.Query().Get("status"))
	out, err := h.requests.ListByHospital(ctx, hospitalID, status)
	if err != nil {
		h.logError(ctx, "list hospital requests", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponses(out))
}

// handleListPendingRequests lists requests awaiting a manager decision.
func (h *Handler) handleListPendingRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out, err := h.requests.ListPending(ctx)
	if err != nil {
		h.logError(ctx, "list pending requests", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponses(out))
}

// handleGetRequest returns one request.
func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.requests.Get(ctx, requestID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(out))
}

// handleApproveRequest approves a pending request and opens donor offers.
func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	result, err := h.coordinator.Approve(ctx, requestID, requestcontext.UserID(ctx))
	if err != nil {
		h.logError(ctx, "approve blood request", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toApproveResponse(result))
}

// handleRejectRequest rejects a pending request.
func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	out, err := h.coordinator.Reject(ctx, requestID, requestcontext.UserID(ctx))
	if err != nil {
		h.logError(ctx, "reject blood request", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(out))
}

// handleCancelRequest withdraws the caller hospital's approved request.
func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}
	hospitalID := requestcontext.HospitalID(ctx)
	if hospitalID.IsNil() {
		writeError(w, dErrors.New(dErrors.CodeForbidden, "no hospital associated with this account"))
		return
	}
	out, err := h.coordinator.Cancel(ctx, requestID, hospitalID)
	if err != nil {
		h.logError(ctx, "cancel blood request", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestResponse(out))
}

func (h *Handler) requestIDParam(w http.ResponseWriter, r *http.Request) (id.RequestID, bool) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request id"))
		return id.RequestID{}, false
	}
	return requestID, true
}
