package request_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/events"
	"lifeline/internal/hospital"
	hospitalstore "lifeline/internal/hospital/store"
	"lifeline/internal/request"
	"lifeline/internal/request/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/requestcontext"
)

func newTestService(t *testing.T) (*request.Service, *store.InMemoryRequests, *hospitalstore.InMemory, *store.InMemoryDonations) {
	t.Helper()
	requests := store.NewInMemoryRequests()
	hospitals := hospitalstore.NewInMemory()
	donations := store.NewInMemoryDonations()
	svc := request.NewService(requests, hospitals, donations, events.Noop{}, slog.New(slog.DiscardHandler))
	return svc, requests, hospitals, donations
}

func seedHospital(t *testing.T, hospitals *hospitalstore.InMemory, active bool) hospital.Hospital {
	t.Helper()
	hID := id.NewHospitalID()
	h := hospital.Hospital{
		ID:            hID,
		Name:          "City General",
		Email:         "bloodbank@citygeneral.example",
		City:          "Pune",
		State:         "Maharashtra",
		Country:       "India",
		LicenseNumber: "MH-2024-" + hID.String()[:8],
		IsActive:      active,
		CreatedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, hospitals.Create(context.Background(), h))
	return h
}

func validInput(hospitalID id.HospitalID) request.NewRequest {
	return request.NewRequest{
		HospitalID:    hospitalID,
		PatientName:   "A. Kulkarni",
		PatientAge:    34,
		PatientGender: "F",
		BloodGroup:    "B+",
		UnitsRequired: 2,
		Urgency:       "high",
		Diagnosis:     "scheduled surgery",
	}
}

func TestService_Submit(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	t.Run("creates a pending request", func(t *testing.T) {
		svc, requests, hospitals, _ := newTestService(t)
		h := seedHospital(t, hospitals, true)

		r, err := svc.Submit(ctx, validInput(h.ID))
		require.NoError(t, err)
		assert.Equal(t, request.StatusPending, r.Status)
		assert.Equal(t, id.BloodGroupBPos, r.BloodGroup)
		assert.Equal(t, id.UrgencyHigh, r.Urgency)
		assert.Equal(t, now, r.CreatedAt)
		assert.Nil(t, r.ApprovedBy)

		stored, err := requests.FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, stored.ID)
	})

	t.Run("inactive hospital is forbidden", func(t *testing.T) {
		svc, _, hospitals, _ := newTestService(t)
		h := seedHospital(t, hospitals, false)

		_, err := svc.Submit(ctx, validInput(h.ID))
		assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
	})

	t.Run("unknown hospital is not found", func(t *testing.T) {
		svc, _, _, _ := newTestService(t)
		input := validInput(id.NewHospitalID())

		_, err := svc.Submit(ctx, input)
		assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
	})

	t.Run("validation runs before any lookup", func(t *testing.T) {
		svc, _, hospitals, _ := newTestService(t)
		h := seedHospital(t, hospitals, true)

		cases := map[string]func(*request.NewRequest){
			"bad blood group": func(in *request.NewRequest) { in.BloodGroup = "Q+" },
			"bad urgency":     func(in *request.NewRequest) { in.Urgency = "loud" },
			"empty name":      func(in *request.NewRequest) { in.PatientName = "  " },
			"zero units":      func(in *request.NewRequest) { in.UnitsRequired = 0 },
			"negative age":    func(in *request.NewRequest) { in.PatientAge = -1 },
			"absurd age":      func(in *request.NewRequest) { in.PatientAge = 130 },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				input := validInput(h.ID)
				mutate(&input)
				_, err := svc.Submit(ctx, input)
				assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
			})
		}
	})

	t.Run("unknown gender is stored as other", func(t *testing.T) {
		svc, _, hospitals, _ := newTestService(t)
		h := seedHospital(t, hospitals, true)
		input := validInput(h.ID)
		input.PatientGender = "X"

		r, err := svc.Submit(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, "O", string(r.PatientGender))
	})
}

func TestService_Listings(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	svc, requests, hospitals, _ := newTestService(t)
	h := seedHospital(t, hospitals, true)
	other := seedHospital(t, hospitals, true)

	mine, err := svc.Submit(ctx, validInput(h.ID))
	require.NoError(t, err)
	_, err = svc.Submit(ctx, validInput(other.ID))
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, requests.ApproveIfPending(ctx, mine.ID, id.NewUserID(), now))

	pending, err = svc.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	byHospital, err := svc.ListByHospital(ctx, h.ID, "")
	require.NoError(t, err)
	require.Len(t, byHospital, 1)
	assert.Equal(t, mine.ID, byHospital[0].ID)

	approved, err := svc.ListByHospital(ctx, h.ID, request.StatusApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	_, err = svc.ListByHospital(ctx, id.HospitalID{}, "")
	assert.Equal(t, dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func TestService_DonationHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, _, donations := newTestService(t)

	donorID := id.NewDonorID()
	rec := request.DonationRecord{
		ID:           id.NewDonationID(),
		RequestID:    id.NewRequestID(),
		DonorID:      donorID,
		DonationDate: time.Date(2024, 5, 20, 11, 0, 0, 0, time.UTC),
		UnitsDonated: 1,
	}
	require.NoError(t, donations.Create(ctx, rec))

	history, err := svc.DonationHistory(ctx, donorID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rec.ID, history[0].ID)
}

func TestRequestStatus_Transitions(t *testing.T) {
	assert.True(t, request.StatusPending.CanTransitionTo(request.StatusApproved))
	assert.True(t, request.StatusPending.CanTransitionTo(request.StatusRejected))
	assert.True(t, request.StatusApproved.CanTransitionTo(request.StatusCompleted))
	assert.True(t, request.StatusApproved.CanTransitionTo(request.StatusCancelled))

	assert.False(t, request.StatusPending.CanTransitionTo(request.StatusCompleted))
	assert.False(t, request.StatusApproved.CanTransitionTo(request.StatusRejected))
	assert.False(t, request.StatusRejected.CanTransitionTo(request.StatusApproved))

	assert.True(t, request.StatusRejected.IsTerminal())
	assert.True(t, request.StatusCompleted.IsTerminal())
	assert.True(t, request.StatusCancelled.IsTerminal())
	assert.False(t, request.StatusPending.IsTerminal())
}
