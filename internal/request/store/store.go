// Package store persists blood requests, donor notifications and donation
// records. Implementations return pkg/platform/sentinel errors; callers
// translate them into coded domain errors.
package store

import (
	"context"
	"time"

	"lifeline/internal/request"
	id "lifeline/pkg/domain"
)

// RequestFilter narrows request listings. Zero values match everything. The
// alias keeps the store satisfying the service-side port directly.
type RequestFilter = request.ListFilter

// RequestStore persists blood requests. The *If* operations are conditional
// updates: they mutate only when the row is still in the expected state and
// report sentinel.ErrInvalidState otherwise, so concurrent actors race on the
// database row rather than on in-process state.
type RequestStore interface {
	Create(ctx context.Context, r request.BloodRequest) error
	FindByID(ctx context.Context, requestID id.RequestID) (request.BloodRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]request.BloodRequest, error)

	// ApproveIfPending moves pending → approved and records the approver.
	ApproveIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error
	// RejectIfPending moves pending → rejected and records the approver.
	RejectIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error
	// CompleteIfApproved moves approved → completed. At most one caller
	// succeeds per request; losers get sentinel.ErrInvalidState.
	CompleteIfApproved(ctx context.Context, requestID id.RequestID, now time.Time) error
	// CancelIfApproved moves approved → cancelled.
	CancelIfApproved(ctx context.Context, requestID id.RequestID, now time.Time) error
}

// NotificationStore persists per-donor offers.
type NotificationStore interface {
	// CreateBatch inserts all notifications or none. A duplicate
	// (request, donor) pair fails the whole batch with sentinel.ErrConflict.
	CreateBatch(ctx context.Context, ns []request.DonorNotification) error
	FindByID(ctx context.Context, notificationID id.NotificationID) (request.DonorNotification, error)
	// RecordResponse moves pending → status and stamps RespondedAt. A
	// notification that already left pending yields sentinel.ErrInvalidState.
	RecordResponse(ctx context.Context, notificationID id.NotificationID, status request.NotificationStatus, respondedAt time.Time) error
	// ExpireOthers marks every still-pending notification on the request
	// expired, except keep. Responded rows are untouched; calling it twice
	// is a no-op the second time.
	ExpireOthers(ctx context.Context, requestID id.RequestID, keep id.NotificationID, respondedAt time.Time) (int, error)
	ListPendingByDonor(ctx context.Context, donorID id.DonorID) ([]request.DonorNotification, error)
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]request.DonorNotification, error)
}

// DonationStore records completed donations. Create enforces one record per
// (request, donor) pair.
type DonationStore interface {
	Create(ctx context.Context, d request.DonationRecord) error
	ListByDonor(ctx context.Context, donorID id.DonorID) ([]request.DonationRecord, error)
}
