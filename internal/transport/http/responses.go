package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"lifeline/internal/donor"
	"lifeline/internal/hospital"
	"lifeline/internal/matching"
	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
)

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders a coded domain error; anything uncoded becomes a 500
// with a generic message so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	var de *dErrors.Error
	if errors.As(err, &de) {
		resp.Message = de.Message
		resp.Fields = de.Fields
	} else {
		resp.Message = "internal error"
	}
	writeJSON(w, dErrors.ToHTTPStatus(code), resp)
}

type hospitalResponse struct {
	ID            id.HospitalID `json:"id"`
	Name          string        `json:"name"`
	Email         string        `json:"email,omitempty"`
	PhoneNumber   string        `json:"phone_number,omitempty"`
	Address       string        `json:"address,omitempty"`
	City          string        `json:"city"`
	State         string        `json:"state"`
	Country       string        `json:"country,omitempty"`
	LicenseNumber string        `json:"license_number"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

func toHospitalResponse(h hospital.Hospital) hospitalResponse {
	return hospitalResponse{
		ID:            h.ID,
		Name:          h.Name,
		Email:         h.Email,
		PhoneNumber:   h.PhoneNumber,
		Address:       h.Address,
		City:          h.City,
		State:         h.State,
		Country:       h.Country,
		LicenseNumber: h.LicenseNumber,
		IsActive:      h.IsActive,
		CreatedAt:     h.CreatedAt,
	}
}

type requestResponse struct {
	ID              id.RequestID  `json:"id"`
	HospitalID      id.HospitalID `json:"hospital_id"`
	PatientName     string        `json:"patient_name"`
	PatientAge      int           `json:"patient_age"`
	PatientGender   string        `json:"patient_gender"`
	BloodGroup      string        `json:"blood_group"`
	UnitsRequired   int           `json:"units_required"`
	HemoglobinLevel float64       `json:"hemoglobin_level,omitempty"`
	Diagnosis       string        `json:"diagnosis,omitempty"`
	OperationID     string        `json:"operation_id,omitempty"`
	Urgency         string        `json:"urgency"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func toRequestResponse(r request.BloodRequest) requestResponse {
	return requestResponse{
		ID:              r.ID,
		HospitalID:      r.HospitalID,
		PatientName:     r.PatientName,
		PatientAge:      r.PatientAge,
		PatientGender:   string(r.PatientGender),
		BloodGroup:      r.BloodGroup.String(),
		UnitsRequired:   r.UnitsRequired,
		HemoglobinLevel: r.HemoglobinLevel,
		Diagnosis:       r.Diagnosis,
		OperationID:     r.OperationID,
		Urgency:         r.Urgency.String(),
		Status:          string(r.Status),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toRequestResponses(rs []request.BloodRequest) []requestResponse {
	out := make([]requestResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRequestResponse(r))
	}
	return out
}

type approveResponse struct {
	Request        requestResponse `json:"request"`
	DonorsNotified int             `json:"donors_notified"`
	ByTier         map[string]int  `json:"by_tier"`
}

func toApproveResponse(result matching.ApproveResult) approveResponse {
	byTier := make(map[string]int, len(result.SelectedByTier))
	for tier, n := range result.SelectedByTier {
		byTier[string(tier)] = n
	}
	return approveResponse{
		Request:        toRequestResponse(result.Request),
		DonorsNotified: result.SelectedTotal,
		ByTier:         byTier,
	}
}

type donorResponse struct {
	ID                 id.DonorID `json:"id"`
	FullName           string     `json:"full_name"`
	BloodGroup         string     `json:"blood_group"`
	Gender             string     `json:"gender"`
	City               string     `json:"city"`
	State              string     `json:"state"`
	Country            string     `json:"country,omitempty"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	IsAvailable        bool       `json:"is_available"`
	IsVerified         bool       `json:"is_verified"`
	TotalDonations     int        `json:"total_donations"`
	LastDonationDate   *time.Time `json:"last_donation_date,omitempty"`
	CanDonateNow       bool       `json:"can_donate_now"`
	EligibilityMessage string     `json:"eligibility_message"`
}

func toDonorResponse(v donor.View) donorResponse {
	return donorResponse{
		ID:                 v.Donor.ID,
		FullName:           v.Donor.FullName,
		BloodGroup:         v.Donor.BloodGroup.String(),
		Gender:             string(v.Donor.Gender),
		City:               v.Donor.City,
		State:              v.Donor.State,
		Country:            v.Donor.Country,
		PhoneNumber:        v.Donor.PhoneNumber,
		IsAvailable:        v.Donor.IsAvailable,
		IsVerified:         v.Donor.IsVerified,
		TotalDonations:     v.Donor.TotalDonations,
		LastDonationDate:   v.Donor.LastDonationDate,
		CanDonateNow:       v.CanDonateNow,
		EligibilityMessage: v.EligibilityMessage,
	}
}

type notificationResponse struct {
	ID          id.NotificationID `json:"id"`
	RequestID   id.RequestID      `json:"request_id"`
	Status      string            `json:"status"`
	SentAt      time.Time         `json:"sent_at"`
	RespondedAt *time.Time        `json:"responded_at,omitempty"`
}

func toNotificationResponse(n request.DonorNotification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		RequestID:   n.RequestID,
		Status:      string(n.Status),
		SentAt:      n.SentAt,
		RespondedAt: n.RespondedAt,
	}
}

type inboxEntryResponse struct {
	Notification notificationResponse `json:"notification"`
	Request      requestResponse      `json:"request"`
}

func toInboxResponse(entries []matching.InboxEntry) []inboxEntryResponse {
	out := make([]inboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, inboxEntryResponse{
			Notification: toNotificationResponse(e.Notification),
			Request:      toRequestResponse(e.Request),
		})
	}
	return out
}

type donationResponse struct {
	ID           id.DonationID `json:"id"`
	RequestID    id.RequestID  `json:"request_id"`
	DonationDate time.Time     `json:"donation_date"`
	UnitsDonated int           `json:"units_donated"`
	Notes        string        `json:"notes,omitempty"`
}

func toDonationResponses(recs []request.DonationRecord) []donationResponse {
	out := make([]donationResponse, 0, len(recs))
	for _, d := range recs {
		out = append(out, donationResponse{
			ID:           d.ID,
			RequestID:    d.RequestID,
			DonationDate: d.DonationDate,
			UnitsDonated: d.UnitsDonated,
			Notes:        d.Notes,
		})
	}
	return out
}
