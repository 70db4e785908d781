package request

import (
	"time"

	"lifeline/internal/donor"
	id "lifeline/pkg/domain"
)

// RequestStatus is the blood request lifecycle state.
//
// pending → approved → {completed, cancelled}
// pending → rejected
//
// Approval is a one-way gate: an approved request can no longer be rejected.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether the state machine permits from → to.
func (s RequestStatus) CanTransitionTo(to RequestStatus) bool {
	for _, next := range requestTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist.
func (s RequestStatus) IsTerminal() bool {
	return len(requestTransitions[s]) == 0
}

// NotificationStatus is the per-donor offer state.
// pending → accepted | declined | expired; all responses are terminal.
type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationAccepted NotificationStatus = "accepted"
	NotificationDeclined NotificationStatus = "declined"
	NotificationExpired  NotificationStatus = "expired"
)

// BloodRequest is a hospital's request for donor blood.
type BloodRequest struct {
	ID         id.RequestID
	HospitalID id.HospitalID

	PatientName   string
	PatientAge    int
	PatientGender donor.Gender
	BloodGroup    id.BloodGroup
	UnitsRequired int

	HemoglobinLevel float64
	Diagnosis       string
	OperationID     string
	Urgency         id.Urgency

	Status RequestStatus
	// ApprovedBy is set exactly when status leaves pending, for approve and
	// reject alike.
	ApprovedBy *id.UserID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DonorNotification is one offer for one donor on one request. Unique per
// (request, donor).
type DonorNotification struct {
	ID          id.NotificationID
	RequestID   id.RequestID
	DonorID     id.DonorID
	Status      NotificationStatus
	SentAt      time.Time
	RespondedAt *time.Time
}

// DonationRecord is the append-only audit artifact for a completed donation.
// Created exactly once per accepted notification.
type DonationRecord struct {
	ID           id.DonationID
	RequestID    id.RequestID
	DonorID      id.DonorID
	DonationDate time.Time
	UnitsDonated int
	Notes        string
}
