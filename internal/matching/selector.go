// Package matching selects donors for approved blood requests and coordinates
// the notification/response lifecycle around them.
package matching

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lifeline/internal/donor"
	"lifeline/internal/hospital"
	"lifeline/internal/request"
	"lifeline/pkg/requestcontext"
)

// Tier is the geographic escalation level a donor was selected at.
type Tier string

const (
	TierLocal    Tier = "local"
	TierState    Tier = "state"
	TierNational Tier = "national"
)

const (
	// localSufficiency is the local-donor count at which no escalation
	// happens.
	localSufficiency = 5
	// escalationFloor is the combined local+state count below which the
	// national tier is added.
	escalationFloor = 3
	// nationalCap bounds the national tier to the first donors in pool
	// order.
	nationalCap = 5
)

// Selection pairs a donor with the tier that produced them.
type Selection struct {
	Donor donor.Donor
	Tier  Tier
}

// Directory is the donor pool read port. Pool order is ascending donor id,
// which makes the national-tier cap deterministic.
type Directory interface {
	Search(ctx context.Context, filter donor.SearchFilter) ([]donor.Donor, error)
}

// TieredSelector widens the donor search geographically around the requesting
// hospital until enough eligible donors are found. An empty selection is a
// valid outcome, not an error.
type TieredSelector struct {
	directory Directory
	tracer    trace.Tracer
}

func NewTieredSelector(directory Directory) *TieredSelector {
	return &TieredSelector{
		directory: directory,
		tracer:    otel.Tracer("lifeline/matching"),
	}
}

// Select returns eligible donors for the request. Tier 1 is the hospital's
// city; five or more local donors stop the search. Otherwise tier 2 adds
// same-state donors outside the city, and if the combined count is still
// under three, tier 3 adds up to five out-of-state donors.
func (s *TieredSelector) Select(ctx context.Context, req request.BloodRequest, h hospital.Hospital) ([]Selection, error) {
	ctx, span := s.tracer.Start(ctx, "matching.Select",
		trace.WithAttributes(
			attribute.String("request.id", req.ID.String()),
			attribute.String("request.blood_group", req.BloodGroup.String()),
			attribute.String("hospital.city", h.City),
			attribute.String("hospital.state", h.State),
		))
	defer span.End()

	local, err := s.eligible(ctx, donor.SearchFilter{
		BloodGroup: req.BloodGroup,
		Verified:   boolPtr(true),
		Available:  boolPtr(true),
		City:       h.City,
	})
	if err != nil {
		return nil, fmt.Errorf("local tier: %w", err)
	}
	selections := tag(local, TierLocal)
	if len(local) >= localSufficiency {
		span.SetAttributes(attribute.Int("selection.local", len(local)))
		return selections, nil
	}

	state, err := s.eligible(ctx, donor.SearchFilter{
		BloodGroup:  req.BloodGroup,
		Verified:    boolPtr(true),
		Available:   boolPtr(true),
		State:       h.State,
		ExcludeCity: h.City,
	})
	if err != nil {
		return nil, fmt.Errorf("state tier: %w", err)
	}
	selections = append(selections, tag(state, TierState)...)

	if len(selections) < escalationFloor {
		national, err := s.eligible(ctx, donor.SearchFilter{
			BloodGroup:   req.BloodGroup,
			Verified:     boolPtr(true),
			Available:    boolPtr(true),
			ExcludeState: h.State,
		})
		if err != nil {
			return nil, fmt.Errorf("national tier: %w", err)
		}
		if len(national) > nationalCap {
			national = national[:nationalCap]
		}
		selections = append(selections, tag(national, TierNational)...)
	}

	span.SetAttributes(
		attribute.Int("selection.local", len(local)),
		attribute.Int("selection.total", len(selections)),
	)
	return selections, nil
}

// eligible queries the pool and drops donors who cannot donate today. The
// same filter runs again when a donor accepts, so a stale verdict here only
// costs a wasted notification.
func (s *TieredSelector) eligible(ctx context.Context, filter donor.SearchFilter) ([]donor.Donor, error) {
	pool, err := s.directory.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	today := requestcontext.Today(ctx)
	out := pool[:0:0]
	for _, d := range pool {
		if ok, _ := donor.CanDonate(d, today); ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func tag(donors []donor.Donor, tier Tier) []Selection {
	out := make([]Selection, 0, len(donors))
	for _, d := range donors {
		out = append(out, Selection{Donor: d, Tier: tier})
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

// CountByTier summarizes a selection for metrics and responses.
func CountByTier(selections []Selection) map[Tier]int {
	counts := make(map[Tier]int, 3)
	for _, sel := range selections {
		counts[sel.Tier]++
	}
	return counts
}
