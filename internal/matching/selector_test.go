package matching_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/donor"
	donorstore "lifeline/internal/donor/store"
	"lifeline/internal/hospital"
	"lifeline/internal/matching"
	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	"lifeline/pkg/requestcontext"
)

var selectionDay = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

type donorOpt func(*donor.Donor)

func inCity(city, state string) donorOpt {
	return func(d *donor.Donor) {
		d.City = city
		d.State = state
	}
}

func recentlyDonated() donorOpt {
	return func(d *donor.Donor) {
		last := selectionDay.AddDate(0, 0, -20)
		d.LastDonationDate = &last
	}
}

func unavailable() donorOpt { return func(d *donor.Donor) { d.IsAvailable = false } }

func withGroup(g id.BloodGroup) donorOpt {
	return func(d *donor.Donor) { d.BloodGroup = g }
}

func seedDonor(t *testing.T, pool *donorstore.InMemory, opts ...donorOpt) donor.Donor {
	t.Helper()
	d := donor.Donor{
		ID:          id.NewDonorID(),
		UserID:      id.NewUserID(),
		FullName:    "Pool Donor",
		DateOfBirth: time.Date(1990, 3, 14, 0, 0, 0, 0, time.UTC),
		Gender:      donor.GenderMale,
		BloodGroup:  id.BloodGroupOPos,
		WeightKg:    70,
		City:        "Pune",
		State:       "Maharashtra",
		Country:     "India",
		IsAvailable: true,
		IsVerified:  true,
		CreatedAt:   selectionDay,
		UpdatedAt:   selectionDay,
	}
	for _, opt := range opts {
		opt(&d)
	}
	require.NoError(t, pool.Create(context.Background(), d))
	return d
}

func testRequest() request.BloodRequest {
	return request.BloodRequest{
		ID:            id.NewRequestID(),
		HospitalID:    id.NewHospitalID(),
		PatientName:   "S. Rao",
		PatientAge:    40,
		BloodGroup:    id.BloodGroupOPos,
		UnitsRequired: 1,
		Urgency:       id.UrgencyHigh,
		Status:        request.StatusApproved,
	}
}

func testHospital() hospital.Hospital {
	return hospital.Hospital{
		ID:       id.NewHospitalID(),
		Name:     "City General",
		City:     "Pune",
		State:    "Maharashtra",
		IsActive: true,
	}
}

func tiersOf(selections []matching.Selection) map[id.DonorID]matching.Tier {
	out := make(map[id.DonorID]matching.Tier, len(selections))
	for _, sel := range selections {
		out[sel.Donor.ID] = sel.Tier
	}
	return out
}

func TestTieredSelector_LocalSufficiency(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), selectionDay)
	pool := donorstore.NewInMemory()
	selector := matching.NewTieredSelector(pool)

	for i := 0; i < 5; i++ {
		seedDonor(t, pool)
	}
	// State donors that must not be contacted while the city suffices.
	seedDonor(t, pool, inCity("Nagpur", "Maharashtra"))
	seedDonor(t, pool, inCity("Mumbai", "Maharashtra"))

	selections, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)
	require.Len(t, selections, 5)
	for _, sel := range selections {
		assert.Equal(t, matching.TierLocal, sel.Tier)
		assert.Equal(t, "Pune", sel.Donor.City)
	}
}

func TestTieredSelector_StateEscalation(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), selectionDay)
	pool := donorstore.NewInMemory()
	selector := matching.NewTieredSelector(pool)

	local := seedDonor(t, pool)
	stateA := seedDonor(t, pool, inCity("Nagpur", "Maharashtra"))
	stateB := seedDonor(t, pool, inCity("Mumbai", "Maharashtra"))
	other := seedDonor(t, pool, inCity("Chennai", "Tamil Nadu"))

	selections, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)
	require.Len(t, selections, 3)

	tiers := tiersOf(selections)
	assert.Equal(t, matching.TierLocal, tiers[local.ID])
	assert.Equal(t, matching.TierState, tiers[stateA.ID])
	assert.Equal(t, matching.TierState, tiers[stateB.ID])
	// Three in-state donors reach the floor; no national escalation.
	assert.NotContains(t, tiers, other.ID)
}

func TestTieredSelector_NationalEscalation(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), selectionDay)
	pool := donorstore.NewInMemory()
	selector := matching.NewTieredSelector(pool)

	local := seedDonor(t, pool)
	state := seedDonor(t, pool, inCity("Nagpur", "Maharashtra"))
	national := make([]donor.Donor, 0, 7)
	for i := 0; i < 7; i++ {
		national = append(national, seedDonor(t, pool, inCity("Chennai", "Tamil Nadu")))
	}

	selections, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)
	// 1 local + 1 state < 3, so up to 5 national donors join.
	require.Len(t, selections, 7)

	tiers := tiersOf(selections)
	assert.Equal(t, matching.TierLocal, tiers[local.ID])
	assert.Equal(t, matching.TierState, tiers[state.ID])

	counts := matching.CountByTier(selections)
	assert.Equal(t, 1, counts[matching.TierLocal])
	assert.Equal(t, 1, counts[matching.TierState])
	assert.Equal(t, 5, counts[matching.TierNational])

	// Pool order is ascending donor id, so the cap keeps the five smallest.
	ids := make([]string, 0, len(national))
	for _, d := range national {
		ids = append(ids, d.ID.String())
	}
	for _, sel := range selections {
		if sel.Tier != matching.TierNational {
			continue
		}
		assert.Contains(t, ids, sel.Donor.ID.String())
	}
}

func TestTieredSelector_NationalCapIsDeterministic(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), selectionDay)
	pool := donorstore.NewInMemory()
	selector := matching.NewTieredSelector(pool)

	for i := 0; i < 8; i++ {
		seedDonor(t, pool, inCity("Chennai", "Tamil Nadu"))
	}

	first, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)
	second, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)

	require.Len(t, first, 5)
	require.Len(t, second, 5)
	for i := range first {
		assert.Equal(t, first[i].Donor.ID, second[i].Donor.ID)
	}
}

func TestTieredSelector_FiltersIneligibleAndMismatched(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), selectionDay)
	pool := donorstore.NewInMemory()
	selector := matching.NewTieredSelector(pool)

	eligible := seedDonor(t, pool)
	seedDonor(t, pool, recentlyDonated())
	seedDonor(t, pool, unavailable())
	seedDonor(t, pool, withGroup(id.BloodGroupABNeg))

	selections, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)

	tiers := tiersOf(selections)
	require.Len(t, tiers, 1)
	assert.Equal(t, matching.TierLocal, tiers[eligible.ID])
}

func TestTieredSelector_EmptyPool(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), selectionDay)
	pool := donorstore.NewInMemory()
	selector := matching.NewTieredSelector(pool)

	selections, err := selector.Select(ctx, testRequest(), testHospital())
	require.NoError(t, err)
	assert.Empty(t, selections)
}
