package donor_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/donor"
	donorstore "lifeline/internal/donor/store"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/requestcontext"
)

func fixedCtx() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))
}

func newService() (*donor.Service, *donorstore.InMemory) {
	store := donorstore.NewInMemory()
	svc := donor.NewService(store, store, slog.New(slog.DiscardHandler))
	return svc, store
}

func TestRegister(t *testing.T) {
	svc, store := newService()
	ctx := fixedCtx()

	d, err := svc.Register(ctx, donor.NewDonor{
		UserID:      id.NewUserID(),
		FullName:    "Ravi Menon",
		DateOfBirth: time.Date(1985, time.February, 20, 0, 0, 0, 0, time.UTC),
		Gender:      donor.GenderMale,
		BloodGroup:  "B-",
		WeightKg:    70,
		City:        "Kochi",
		State:       "Kerala",
		Country:     "India",
	})
	require.NoError(t, err)
	assert.False(t, d.ID.IsNil())
	assert.False(t, d.IsVerified, "registration does not verify")
	assert.True(t, d.IsAvailable)

	stored, err := store.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, id.BloodGroupBNeg, stored.BloodGroup)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newService()
	ctx := fixedCtx()

	cases := map[string]donor.NewDonor{
		"bad blood group": {
			UserID: id.NewUserID(), FullName: "X", BloodGroup: "Z+", WeightKg: 60,
			DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		"missing name": {
			UserID: id.NewUserID(), BloodGroup: "A+", WeightKg: 60,
			DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		"zero weight": {
			UserID: id.NewUserID(), FullName: "X", BloodGroup: "A+",
			DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		"missing dob": {
			UserID: id.NewUserID(), FullName: "X", BloodGroup: "A+", WeightKg: 60,
		},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(ctx, input)
			require.Error(t, err)
			assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		})
	}
}

func TestList_EnrichesEligibility(t *testing.T) {
	svc, store := newService()
	ctx := fixedCtx()

	fit, err := svc.Register(ctx, donor.NewDonor{
		UserID: id.NewUserID(), FullName: "Fit Donor", BloodGroup: "O+", WeightKg: 60,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), City: "Pune", State: "Maharashtra",
	})
	require.NoError(t, err)
	recent, err := svc.Register(ctx, donor.NewDonor{
		UserID: id.NewUserID(), FullName: "Recent Donor", BloodGroup: "O+", WeightKg: 60,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), City: "Pune", State: "Maharashtra",
	})
	require.NoError(t, err)

	// Directory only lists verified donors.
	for _, donorID := range []id.DonorID{fit.ID, recent.ID} {
		require.NoError(t, store.SetVerified(ctx, donorID, true, time.Now()))
	}

	// Recent donor donated two weeks before the fixed clock.
	require.NoError(t, store.RecordDonation(ctx,
		recent.ID, time.Date(2024, time.May, 18, 0, 0, 0, 0, time.UTC)))

	views, err := svc.List(ctx, donor.ListFilter{BloodGroup: "O+"})
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[id.DonorID]donor.View{}
	for _, v := range views {
		byID[v.Donor.ID] = v
	}
	assert.True(t, byID[fit.ID].CanDonateNow)
	assert.Equal(t, donor.MsgEligible, byID[fit.ID].EligibilityMessage)
	assert.False(t, byID[recent.ID].CanDonateNow)
	assert.Contains(t, byID[recent.ID].EligibilityMessage, "3-month gap required")

	eligible, err := svc.List(ctx, donor.ListFilter{BloodGroup: "O+", EligibleOnly: true})
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, fit.ID, eligible[0].Donor.ID)
}

func TestUpdateProfile_NotFound(t *testing.T) {
	svc, _ := newService()
	_, err := svc.UpdateProfile(fixedCtx(), id.NewDonorID(), donor.ProfileUpdate{})
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
}
