package request

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"lifeline/internal/donor"
	"lifeline/internal/events"
	"lifeline/internal/hospital"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// Store is the request persistence port used for intake and listings. The
// conditional transitions live on the matching coordinator's wider port.
type Store interface {
	Create(ctx context.Context, r BloodRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (BloodRequest, error)
	List(ctx context.Context, filter ListFilter) ([]BloodRequest, error)
}

// ListFilter narrows listings. Zero values match everything.
type ListFilter struct {
	HospitalID id.HospitalID
	Status     RequestStatus
	BloodGroup id.BloodGroup
}

// Hospitals resolves the submitting hospital; inactive hospitals may not
// submit.
type Hospitals interface {
	FindByID(ctx context.Context, hospitalID id.HospitalID) (hospital.Hospital, error)
}

// Donations is the read side of the donation ledger.
type Donations interface {
	ListByDonor(ctx context.Context, donorID id.DonorID) ([]DonationRecord, error)
}

// Service owns blood request intake, listings and donation history.
type Service struct {
	store     Store
	hospitals Hospitals
	donations Donations
	events    events.Publisher
	logger    *slog.Logger
}

func NewService(store Store, hospitals Hospitals, donations Donations, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{store: store, hospitals: hospitals, donations: donations, events: publisher, logger: logger}
}

// NewRequest carries intake input. BloodGroup and Urgency arrive as wire
// strings and are validated here before any mutation.
type NewRequest struct {
	HospitalID      id.HospitalID
	PatientName     string
	PatientAge      int
	PatientGender   string
	BloodGroup      string
	UnitsRequired   int
	HemoglobinLevel float64
	Diagnosis       string
	OperationID     string
	Urgency         string
}

// Submit validates the request, checks the hospital is active, and creates it
// in pending state. No donors are contacted until a manager approves.
func (s *Service) Submit(ctx context.Context, input NewRequest) (BloodRequest, error) {
	bloodGroup, err := id.ParseBloodGroup(input.BloodGroup)
	if err != nil {
		return BloodRequest{}, dErrors.New(dErrors.CodeBadRequest, err.Error())
	}
	urgency, err := id.ParseUrgency(input.Urgency)
	if err != nil {
		return BloodRequest{}, dErrors.New(dErrors.CodeBadRequest, err.Error())
	}
	if strings.TrimSpace(input.PatientName) == "" {
		return BloodRequest{}, dErrors.New(dErrors.CodeBadRequest, "patient name is required")
	}
	if input.PatientAge <= 0 || input.PatientAge > 120 {
		return BloodRequest{}, dErrors.New(dErrors.CodeBadRequest, "patient age is out of range")
	}
	if input.UnitsRequired < 1 {
		return BloodRequest{}, dErrors.New(dErrors.CodeBadRequest, "at least one unit is required")
	}
	if input.HospitalID.IsNil() {
		return BloodRequest{}, dErrors.New(dErrors.CodeBadRequest, "hospital id is required")
	}

	h, err := s.hospitals.FindByID(ctx, input.HospitalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return BloodRequest{}, dErrors.New(dErrors.CodeNotFound, "hospital not found").
				With("hospital_id", input.HospitalID.String())
		}
		return BloodRequest{}, dErrors.Wrap(dErrors.CodeInternal, "find hospital", err)
	}
	if !h.IsActive {
		return BloodRequest{}, dErrors.New(dErrors.CodeForbidden, "hospital is not active").
			With("hospital_id", input.HospitalID.String())
	}

	now := requestcontext.Now(ctx)
	r := BloodRequest{
		ID:              id.NewRequestID(),
		HospitalID:      input.HospitalID,
		PatientName:     input.PatientName,
		PatientAge:      input.PatientAge,
		PatientGender:   genderOrOther(input.PatientGender),
		BloodGroup:      bloodGroup,
		UnitsRequired:   input.UnitsRequired,
		HemoglobinLevel: input.HemoglobinLevel,
		Diagnosis:       input.Diagnosis,
		OperationID:     input.OperationID,
		Urgency:         urgency,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return BloodRequest{}, dErrors.Wrap(dErrors.CodeInternal, "create blood request", err)
	}

	s.logger.InfoContext(ctx, "blood request submitted",
		"request_id", r.ID.String(),
		"hospital_id", r.HospitalID.String(),
		"blood_group", r.BloodGroup.String(),
		"urgency", r.Urgency.String(),
	)
	s.events.Publish(ctx, events.Event{
		Type:       events.TypeRequestSubmitted,
		RequestID:  r.ID,
		HospitalID: r.HospitalID,
		BloodGroup: r.BloodGroup,
		Urgency:    r.Urgency,
		OccurredAt: now,
	})
	return r, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (BloodRequest, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return BloodRequest{}, dErrors.New(dErrors.CodeNotFound, "blood request not found").
				With("request_id", requestID.String())
		}
		return BloodRequest{}, dErrors.Wrap(dErrors.CodeInternal, "find blood request", err)
	}
	return r, nil
}

// ListPending returns all requests awaiting a manager decision.
func (s *Service) ListPending(ctx context.Context) ([]BloodRequest, error) {
	out, err := s.store.List(ctx, ListFilter{Status: StatusPending})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list pending requests", err)
	}
	return out, nil
}

// ListByHospital returns a hospital's requests, optionally filtered by status.
func (s *Service) ListByHospital(ctx context.Context, hospitalID id.HospitalID, status RequestStatus) ([]BloodRequest, error) {
	if hospitalID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "hospital id is required")
	}
	out, err := s.store.List(ctx, ListFilter{HospitalID: hospitalID, Status: status})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list hospital requests", err)
	}
	return out, nil
}

// DonationHistory returns a donor's completed donations, newest first.
func (s *Service) DonationHistory(ctx context.Context, donorID id.DonorID) ([]DonationRecord, error) {
	out, err := s.donations.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list donations", err)
	}
	return out, nil
}

// genderOrOther keeps unknown wire values from leaking into storage.
func genderOrOther(g string) donor.Gender {
	switch donor.Gender(g) {
	case donor.GenderMale, donor.GenderFemale, donor.GenderOther:
		return donor.Gender(g)
	default:
		return donor.GenderOther
	}
}
