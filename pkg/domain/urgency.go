package domain

import "fmt"

// Urgency is the ordered urgency level of a blood request.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// urgencyOrder defines the ordering for comparison; higher is more urgent.
var urgencyOrder = map[Urgency]int{
	UrgencyLow:      1,
	UrgencyMedium:   2,
	UrgencyHigh:     3,
	UrgencyCritical: 4,
}

// ParseUrgency validates and returns an Urgency.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(s)
	if _, ok := urgencyOrder[u]; !ok {
		return "", fmt.Errorf("unknown urgency level: %q", s)
	}
	return u, nil
}

func (u Urgency) String() string { return string(u) }

// AtLeast reports whether u is at least as urgent as other. Unknown values
// sort below any known level.
func (u Urgency) AtLeast(other Urgency) bool {
	return urgencyOrder[u] >= urgencyOrder[other]
}
