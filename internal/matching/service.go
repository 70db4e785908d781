package matching

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"lifeline/internal/donor"
	"lifeline/internal/events"
	"lifeline/internal/hospital"
	"lifeline/internal/matching/metrics"
	"lifeline/internal/notify"
	"lifeline/internal/request"
	id "lifeline/pkg/domain"
	dErrors "lifeline/pkg/domainerrors"
	"lifeline/pkg/platform/sentinel"
	"lifeline/pkg/requestcontext"
)

// fanOutWidth bounds concurrent outbound sends per operation.
const fanOutWidth = 8

// Requests is the request store port with the conditional transitions the
// coordinator serializes on.
type Requests interface {
	FindByID(ctx context.Context, requestID id.RequestID) (request.BloodRequest, error)
	ApproveIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error
	RejectIfPending(ctx context.Context, requestID id.RequestID, approverID id.UserID, now time.Time) error
	CompleteIfApproved(ctx context.Context, requestID id.RequestID, now time.Time) error
	CancelIfApproved(ctx context.Context, requestID id.RequestID, now time.Time) error
}

// Notifications is the offer ledger port.
type Notifications interface {
	CreateBatch(ctx context.Context, ns []request.DonorNotification) error
	FindByID(ctx context.Context, notificationID id.NotificationID) (request.DonorNotification, error)
	RecordResponse(ctx context.Context, notificationID id.NotificationID, status request.NotificationStatus, respondedAt time.Time) error
	ExpireOthers(ctx context.Context, requestID id.RequestID, keep id.NotificationID, respondedAt time.Time) (int, error)
	ListPendingByDonor(ctx context.Context, donorID id.DonorID) ([]request.DonorNotification, error)
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]request.DonorNotification, error)
}

// Donations appends the completed-donation audit records.
type Donations interface {
	Create(ctx context.Context, d request.DonationRecord) error
}

// Donors resolves donor profiles and advances donation history.
type Donors interface {
	FindByID(ctx context.Context, donorID id.DonorID) (donor.Donor, error)
	RecordDonation(ctx context.Context, donorID id.DonorID, on time.Time) error
}

// Hospitals resolves the requesting hospital for selection and messaging.
type Hospitals interface {
	FindByID(ctx context.Context, hospitalID id.HospitalID) (hospital.Hospital, error)
}

// Selector picks donors for an approved request.
type Selector interface {
	Select(ctx context.Context, req request.BloodRequest, h hospital.Hospital) ([]Selection, error)
}

// Coordinator drives the approve → notify → respond → complete lifecycle.
// State transitions go through conditional store updates; everything after a
// transition (messages, events, metrics) is best effort.
type Coordinator struct {
	requests      Requests
	notifications Notifications
	donations     Donations
	donors        Donors
	hospitals     Hospitals
	selector      Selector
	notifier      notify.Notifier
	events        events.Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewCoordinator(
	requests Requests,
	notifications Notifications,
	donations Donations,
	donors Donors,
	hospitals Hospitals,
	selector Selector,
	notifier notify.Notifier,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		requests:      requests,
		notifications: notifications,
		donations:     donations,
		donors:        donors,
		hospitals:     hospitals,
		selector:      selector,
		notifier:      notifier,
		events:        publisher,
		metrics:       m,
		logger:        logger,
		tracer:        otel.Tracer("lifeline/matching"),
	}
}

// ApproveResult reports how wide the donor search went.
type ApproveResult struct {
	Request        request.BloodRequest
	SelectedTotal  int
	SelectedByTier map[Tier]int
}

// Approve moves the request to approved, selects donors tier by tier and
// opens one offer per donor. The conditional update makes double approval
// impossible; an empty selection still approves the request.
func (c *Coordinator) Approve(ctx context.Context, requestID id.RequestID, approverID id.UserID) (ApproveResult, error) {
	ctx, span := c.tracer.Start(ctx, "matching.Approve",
		trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	if err := c.requests.ApproveIfPending(ctx, requestID, approverID, now); err != nil {
		return ApproveResult{}, c.transitionError(err, requestID, "approve")
	}
	c.metrics.Decisions.WithLabelValues("approved").Inc()

	req, err := c.requests.FindByID(ctx, requestID)
	if err != nil {
		return ApproveResult{}, dErrors.Wrap(dErrors.CodeInternal, "load approved request", err)
	}
	h, err := c.hospitals.FindByID(ctx, req.HospitalID)
	if err != nil {
		return ApproveResult{}, dErrors.Wrap(dErrors.CodeInternal, "load requesting hospital", err)
	}

	selections, err := c.selector.Select(ctx, req, h)
	if err != nil {
		return ApproveResult{}, dErrors.Wrap(dErrors.CodeInternal, "select donors", err)
	}
	byTier := CountByTier(selections)
	for tier, n := range byTier {
		c.metrics.DonorsSelected.WithLabelValues(string(tier)).Add(float64(n))
	}

	if len(selections) == 0 {
		c.metrics.EmptySelections.Inc()
		c.logger.WarnContext(ctx, "no eligible donors found",
			"request_id", requestID.String(),
			"blood_group", req.BloodGroup.String(),
		)
	} else {
		batch := make([]request.DonorNotification, 0, len(selections))
		for _, sel := range selections {
			batch = append(batch, request.DonorNotification{
				ID:        id.NewNotificationID(),
				RequestID: requestID,
				DonorID:   sel.Donor.ID,
				Status:    request.NotificationPending,
				SentAt:    now,
			})
		}
		if err := c.notifications.CreateBatch(ctx, batch); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return ApproveResult{}, dErrors.New(dErrors.CodeConflict, "donors already notified for this request").
					With("request_id", requestID.String())
			}
			return ApproveResult{}, dErrors.Wrap(dErrors.CodeInternal, "create notifications", err)
		}
	}

	c.events.Publish(ctx, events.Event{
		Type:       events.TypeRequestApproved,
		RequestID:  requestID,
		HospitalID: req.HospitalID,
		BloodGroup: req.BloodGroup,
		Urgency:    req.Urgency,
		OccurredAt: now,
	})

	c.fanOutDonorMessages(ctx, selections, req, h)
	c.send(ctx, notify.HospitalStatusMessage(h, req, "Matching donors are being contacted."))

	c.logger.InfoContext(ctx, "blood request approved",
		"request_id", requestID.String(),
		"approver_id", approverID.String(),
		"donors_selected", len(selections),
	)
	return ApproveResult{Request: req, SelectedTotal: len(selections), SelectedByTier: byTier}, nil
}

// Reject moves the request to rejected and tells the hospital.
func (c *Coordinator) Reject(ctx context.Context, requestID id.RequestID, approverID id.UserID) (request.BloodRequest, error) {
	ctx, span := c.tracer.Start(ctx, "matching.Reject",
		trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	if err := c.requests.RejectIfPending(ctx, requestID, approverID, now); err != nil {
		return request.BloodRequest{}, c.transitionError(err, requestID, "reject")
	}
	c.metrics.Decisions.WithLabelValues("rejected").Inc()

	req, err := c.requests.FindByID(ctx, requestID)
	if err != nil {
		return request.BloodRequest{}, dErrors.Wrap(dErrors.CodeInternal, "load rejected request", err)
	}

	c.events.Publish(ctx, events.Event{
		Type:       events.TypeRequestRejected,
		RequestID:  requestID,
		HospitalID: req.HospitalID,
		BloodGroup: req.BloodGroup,
		OccurredAt: now,
	})
	if h, err := c.hospitals.FindByID(ctx, req.HospitalID); err == nil {
		c.send(ctx, notify.HospitalStatusMessage(h, req, "The request was not approved by the blood bank."))
	}

	c.logger.InfoContext(ctx, "blood request rejected",
		"request_id", requestID.String(), "approver_id", approverID.String())
	return req, nil
}

// Cancel lets the owning hospital withdraw an approved request. Open offers
// on it expire.
func (c *Coordinator) Cancel(ctx context.Context, requestID id.RequestID, hospitalID id.HospitalID) (request.BloodRequest, error) {
	ctx, span := c.tracer.Start(ctx, "matching.Cancel",
		trace.WithAttributes(attribute.String("request.id", requestID.String())))
	defer span.End()

	req, err := c.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return request.BloodRequest{}, dErrors.New(dErrors.CodeNotFound, "blood request not found").
				With("request_id", requestID.String())
		}
		return request.BloodRequest{}, dErrors.Wrap(dErrors.CodeInternal, "load request", err)
	}
	if req.HospitalID != hospitalID {
		return request.BloodRequest{}, dErrors.New(dErrors.CodeForbidden, "request belongs to another hospital")
	}

	now := requestcontext.Now(ctx)
	if err := c.requests.CancelIfApproved(ctx, requestID, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return request.BloodRequest{}, dErrors.New(dErrors.CodeInvalidTransition, "only approved requests can be cancelled").
				With("request_id", requestID.String()).
				With("status", string(req.Status))
		}
		return request.BloodRequest{}, dErrors.Wrap(dErrors.CodeInternal, "cancel request", err)
	}
	c.metrics.Decisions.WithLabelValues("cancelled").Inc()

	if _, err := c.notifications.ExpireOthers(ctx, requestID, id.NotificationID{}, now); err != nil {
		c.logger.ErrorContext(ctx, "expire notifications after cancel",
			"request_id", requestID.String(), "error", err)
	}

	req.Status = request.StatusCancelled
	req.UpdatedAt = now
	c.events.Publish(ctx, events.Event{
		Type:       events.TypeRequestCancelled,
		RequestID:  requestID,
		HospitalID: req.HospitalID,
		BloodGroup: req.BloodGroup,
		OccurredAt: now,
	})

	c.logger.InfoContext(ctx, "blood request cancelled",
		"request_id", requestID.String(), "hospital_id", hospitalID.String())
	return req, nil
}

// Respond records a donor's answer to an offer. Accepting races through the
// request's conditional completion first, so at most one offer per request
// can ever reach accepted; everyone else gets told the request is fulfilled.
func (c *Coordinator) Respond(ctx context.Context, notificationID id.NotificationID, donorID id.DonorID, accept bool) (request.DonorNotification, error) {
	ctx, span := c.tracer.Start(ctx, "matching.Respond",
		trace.WithAttributes(
			attribute.String("notification.id", notificationID.String()),
			attribute.Bool("accept", accept),
		))
	defer span.End()

	n, err := c.notifications.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return request.DonorNotification{}, dErrors.New(dErrors.CodeNotFound, "notification not found")
		}
		return request.DonorNotification{}, dErrors.Wrap(dErrors.CodeInternal, "load notification", err)
	}
	if n.DonorID != donorID {
		return request.DonorNotification{}, dErrors.New(dErrors.CodeForbidden, "notification belongs to another donor")
	}
	if n.Status != request.NotificationPending {
		return request.DonorNotification{}, dErrors.New(dErrors.CodeNotPending, "notification has already been answered").
			With("status", string(n.Status))
	}

	now := requestcontext.Now(ctx)
	if !accept {
		if err := c.notifications.RecordResponse(ctx, notificationID, request.NotificationDeclined, now); err != nil {
			return request.DonorNotification{}, c.responseError(err)
		}
		c.metrics.DonorResponses.WithLabelValues("declined").Inc()
		n.Status = request.NotificationDeclined
		n.RespondedAt = &now
		return n, nil
	}

	d, err := c.donors.FindByID(ctx, donorID)
	if err != nil {
		return request.DonorNotification{}, dErrors.Wrap(dErrors.CodeInternal, "load donor", err)
	}
	if ok, msg := donor.CanDonate(d, requestcontext.Today(ctx)); !ok {
		return request.DonorNotification{}, dErrors.New(dErrors.CodeIneligible, msg).
			With("donor_id", donorID.String())
	}

	// The request row is the single-winner gate. Only after winning it does
	// the notification itself transition, so a second accepted offer cannot
	// exist even if two donors respond in the same instant.
	if err := c.requests.CompleteIfApproved(ctx, n.RequestID, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			c.metrics.DonorResponses.WithLabelValues("lost_race").Inc()
			return request.DonorNotification{}, dErrors.New(dErrors.CodeAlreadyFulfilled, "request has already been fulfilled").
				With("request_id", n.RequestID.String())
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return request.DonorNotification{}, dErrors.New(dErrors.CodeNotFound, "blood request not found")
		}
		return request.DonorNotification{}, dErrors.Wrap(dErrors.CodeInternal, "complete request", err)
	}
	c.metrics.Decisions.WithLabelValues("completed").Inc()
	c.metrics.DonorResponses.WithLabelValues("accepted").Inc()

	if err := c.notifications.RecordResponse(ctx, notificationID, request.NotificationAccepted, now); err != nil {
		// The request is already completed; only log, the ledger catches up
		// on the expiry sweep.
		c.logger.ErrorContext(ctx, "record accepted response",
			"notification_id", notificationID.String(), "error", err)
	}

	req, reqErr := c.requests.FindByID(ctx, n.RequestID)
	if reqErr != nil {
		c.logger.ErrorContext(ctx, "load completed request",
			"request_id", n.RequestID.String(), "error", reqErr)
	}
	units := 1
	if reqErr == nil {
		units = req.UnitsRequired
	}
	if err := c.donations.Create(ctx, request.DonationRecord{
		ID:           id.NewDonationID(),
		RequestID:    n.RequestID,
		DonorID:      donorID,
		DonationDate: now,
		UnitsDonated: units,
	}); err != nil && !errors.Is(err, sentinel.ErrConflict) {
		c.logger.ErrorContext(ctx, "create donation record",
			"request_id", n.RequestID.String(), "donor_id", donorID.String(), "error", err)
	}
	// The gap rule counts calendar days, so the history advances by date,
	// not by the wall-clock instant of the acceptance.
	if err := c.donors.RecordDonation(ctx, donorID, requestcontext.Today(ctx)); err != nil {
		c.logger.ErrorContext(ctx, "advance donor history",
			"donor_id", donorID.String(), "error", err)
	}
	if _, err := c.notifications.ExpireOthers(ctx, n.RequestID, notificationID, now); err != nil {
		c.logger.ErrorContext(ctx, "expire losing notifications",
			"request_id", n.RequestID.String(), "error", err)
	}

	if reqErr == nil {
		c.events.Publish(ctx, events.Event{
			Type:       events.TypeRequestCompleted,
			RequestID:  n.RequestID,
			HospitalID: req.HospitalID,
			DonorID:    donorID,
			BloodGroup: req.BloodGroup,
			OccurredAt: now,
		})
		c.events.Publish(ctx, events.Event{
			Type:       events.TypeDonationRecorded,
			RequestID:  n.RequestID,
			HospitalID: req.HospitalID,
			DonorID:    donorID,
			BloodGroup: req.BloodGroup,
			OccurredAt: now,
		})
		c.notifyFulfilled(ctx, req, notificationID, d)
	}

	c.logger.InfoContext(ctx, "blood request fulfilled",
		"request_id", n.RequestID.String(), "donor_id", donorID.String())

	n.Status = request.NotificationAccepted
	n.RespondedAt = &now
	return n, nil
}

// InboxEntry pairs a pending offer with its request for display.
type InboxEntry struct {
	Notification request.DonorNotification
	Request      request.BloodRequest
}

// Inbox lists a donor's open offers whose request is still approved.
func (c *Coordinator) Inbox(ctx context.Context, donorID id.DonorID) ([]InboxEntry, error) {
	pending, err := c.notifications.ListPendingByDonor(ctx, donorID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "list pending notifications", err)
	}
	out := make([]InboxEntry, 0, len(pending))
	for _, n := range pending {
		req, err := c.requests.FindByID(ctx, n.RequestID)
		if err != nil {
			c.logger.ErrorContext(ctx, "load request for inbox",
				"request_id", n.RequestID.String(), "error", err)
			continue
		}
		if req.Status != request.StatusApproved {
			continue
		}
		out = append(out, InboxEntry{Notification: n, Request: req})
	}
	return out, nil
}

// fanOutDonorMessages sends the donation ask to every selected donor with
// bounded concurrency. Failures are counted and logged only.
func (c *Coordinator) fanOutDonorMessages(ctx context.Context, selections []Selection, req request.BloodRequest, h hospital.Hospital) {
	if len(selections) == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutWidth)
	for _, sel := range selections {
		g.Go(func() error {
			c.send(gctx, notify.DonationRequestMessage(sel.Donor, req, h))
			return nil
		})
	}
	_ = g.Wait()
}

// notifyFulfilled tells every losing donor the request is covered and the
// hospital who covered it.
func (c *Coordinator) notifyFulfilled(ctx context.Context, req request.BloodRequest, winner id.NotificationID, winnerDonor donor.Donor) {
	all, err := c.notifications.ListByRequest(ctx, req.ID)
	if err != nil {
		c.logger.ErrorContext(ctx, "list notifications for fulfilled notices",
			"request_id", req.ID.String(), "error", err)
		all = nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutWidth)
	for _, n := range all {
		if n.ID == winner || n.Status == request.NotificationDeclined {
			continue
		}
		donorID := n.DonorID
		g.Go(func() error {
			d, err := c.donors.FindByID(gctx, donorID)
			if err != nil {
				c.logger.ErrorContext(gctx, "load donor for fulfilled notice",
					"donor_id", donorID.String(), "error", err)
				return nil
			}
			c.send(gctx, notify.FulfilledMessage(d, req))
			return nil
		})
	}
	_ = g.Wait()

	if h, err := c.hospitals.FindByID(ctx, req.HospitalID); err == nil {
		c.send(ctx, notify.HospitalStatusMessage(h, req,
			"Donor "+winnerDonor.FullName+" has accepted; please coordinate the donation."))
	}
}

// send pushes one message through the notifier and keeps score.
func (c *Coordinator) send(ctx context.Context, msg notify.Message) {
	c.metrics.NotificationsSent.Inc()
	if err := c.notifier.Send(ctx, msg); err != nil {
		c.metrics.NotificationErrors.Inc()
		c.logger.ErrorContext(ctx, "send notification",
			"kind", string(msg.Kind), "recipient", msg.Recipient, "error", err)
	}
}

func (c *Coordinator) transitionError(err error, requestID id.RequestID, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "blood request not found").
			With("request_id", requestID.String())
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeNotPending, "request is no longer pending").
			With("request_id", requestID.String())
	default:
		return dErrors.Wrap(dErrors.CodeInternal, action+" request", err)
	}
}

func (c *Coordinator) responseError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "notification not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeNotPending, "notification has already been answered")
	default:
		return dErrors.Wrap(dErrors.CodeInternal, "record response", err)
	}
}
