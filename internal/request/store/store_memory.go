package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	"lifeline/pkg/platform/sentinel"
)

// InMemoryRequests is a mutex-guarded RequestStore for tests and local runs.
type InMemoryRequests struct {
	mu       sync.RWMutex
	requests map[id.RequestID]request.BloodRequest
}

func NewInMemoryRequests() *InMemoryRequests {
	return &InMemoryRequests{requests: make(map[id.RequestID]request.BloodRequest)}
}

func (s *InMemoryRequests) Create(_ context.Context, r request.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.requests[r.ID] = r
	return nil
}

func (s *InMemoryRequests) FindByID(_ context.Context, requestID id.RequestID) (request.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return request.BloodRequest{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemoryRequests) List(_ context.Context, filter RequestFilter) ([]request.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]request.BloodRequest, 0)
	for _, r := range s.requests {
		if !filter.HospitalID.IsNil() && r.HospitalID != filter.HospitalID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if !filter.BloodGroup.IsNil() && r.BloodGroup != filter.BloodGroup {
			continue
		}
		out = append(out, r)
	}
	// Newest first, matching the postgres ORDER BY.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryRequests) ApproveIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error {
	return s.transitionFromPending(requestID, request.StatusApproved, approverID, now)
}

func (s *InMemoryRequests) RejectIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error {
	return s.transitionFromPending(requestID, request.StatusRejected, approverID, now)
}

func (s *InMemoryRequests) transitionFromPending(requestID id.RequestID, to request.RequestStatus, approverID id.UserID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != request.StatusPending {
		return sentinel.ErrInvalidState
	}
	r.Status = to
	r.ApprovedBy = &approverID
	r.UpdatedAt = now
	s.requests[requestID] = r
	return nil
}

func (s *InMemoryRequests) CompleteIfApproved(_ context.Context, requestID id.RequestID, now time.Time) error {
	return s.transitionFromApproved(requestID, request.StatusCompleted, now)
}

func (s *InMemoryRequests) CancelIfApproved(_ context.Context, requestID id.RequestID, now time.Time) error {
	return s.transitionFromApproved(requestID, request.StatusCancelled, now)
}

func (s *InMemoryRequests) transitionFromApproved(requestID id.RequestID, to request.RequestStatus, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != request.StatusApproved {
		return sentinel.ErrInvalidState
	}
	r.Status = to
	r.UpdatedAt = now
	s.requests[requestID] = r
	return nil
}

// InMemoryNotifications is a mutex-guarded NotificationStore.
type InMemoryNotifications struct {
	mu   sync.RWMutex
	byID map[id.NotificationID]request.DonorNotification
	// pairs enforces the (request, donor) uniqueness the postgres schema
	// gets from a composite unique index.
	pairs map[pairKey]id.NotificationID
}

type pairKey struct {
	requestID id.RequestID
	donorID   id.DonorID
}

func NewInMemoryNotifications() *InMemoryNotifications {
	return &InMemoryNotifications{
		byID:  make(map[id.NotificationID]request.DonorNotification),
		pairs: make(map[pairKey]id.NotificationID),
	}
}

func (s *InMemoryNotifications) CreateBatch(_ context.Context, ns []request.DonorNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[pairKey]struct{}, len(ns))
	for _, n := range ns {
		key := pairKey{requestID: n.RequestID, donorID: n.DonorID}
		if _, dup := s.pairs[key]; dup {
			return sentinel.ErrConflict
		}
		if _, dup := seen[key]; dup {
			return sentinel.ErrConflict
		}
		seen[key] = struct{}{}
	}
	for _, n := range ns {
		s.byID[n.ID] = n
		s.pairs[pairKey{requestID: n.RequestID, donorID: n.DonorID}] = n.ID
	}
	return nil
}

func (s *InMemoryNotifications) FindByID(_ context.Context, notificationID id.NotificationID) (request.DonorNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[notificationID]
	if !ok {
		return request.DonorNotification{}, sentinel.ErrNotFound
	}
	return n, nil
}

func (s *InMemoryNotifications) RecordResponse(_ context.Context, notificationID id.NotificationID, status request.NotificationStatus, respondedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[notificationID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if n.Status != request.NotificationPending {
		return sentinel.ErrInvalidState
	}
	n.Status = status
	n.RespondedAt = &respondedAt
	s.byID[notificationID] = n
	return nil
}

func (s *InMemoryNotifications) ExpireOthers(_ context.Context, requestID id.RequestID, keep id.NotificationID, respondedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for nID, n := range s.byID {
		if n.RequestID != requestID || nID == keep || n.Status != request.NotificationPending {
			continue
		}
		n.Status = request.NotificationExpired
		n.RespondedAt = &respondedAt
		s.byID[nID] = n
		expired++
	}
	return expired, nil
}

func (s *InMemoryNotifications) ListPendingByDonor(_ context.Context, donorID id.DonorID) ([]request.DonorNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]request.DonorNotification, 0)
	for _, n := range s.byID {
		if n.DonorID == donorID && n.Status == request.NotificationPending {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

func (s *InMemoryNotifications) ListByRequest(_ context.Context, requestID id.RequestID) ([]request.DonorNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]request.DonorNotification, 0)
	for _, n := range s.byID {
		if n.RequestID == requestID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	return out, nil
}

// InMemoryDonations is a mutex-guarded DonationStore.
type InMemoryDonations struct {
	mu      sync.RWMutex
	records map[id.DonationID]request.DonationRecord
	pairs   map[pairKey]struct{}
}

func NewInMemoryDonations() *InMemoryDonations {
	return &InMemoryDonations{
		records: make(map[id.DonationID]request.DonationRecord),
		pairs:   make(map[pairKey]struct{}),
	}
}

func (s *InMemoryDonations) Create(_ context.Context, d request.DonationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{requestID: d.RequestID, donorID: d.DonorID}
	if _, dup := s.pairs[key]; dup {
		return sentinel.ErrConflict
	}
	s.records[d.ID] = d
	s.pairs[key] = struct{}{}
	return nil
}

func (s *InMemoryDonations) ListByDonor(_ context.Context, donorID id.DonorID) ([]request.DonationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]request.DonationRecord, 0)
	for _, d := range s.records {
		if d.DonorID == donorID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DonationDate.After(out[j].DonationDate) })
	return out, nil
}
