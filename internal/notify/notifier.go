// Package notify delivers best-effort outbound messages to donors and
// hospital staff. Delivery failures are the caller's to log and count, never
// to propagate.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"lifeline/internal/donor"
	"lifeline/internal/hospital"
	"lifeline/internal/request"
)

// Kind names a message template.
type Kind string

const (
	KindDonationRequest  Kind = "donation_request"
	KindRequestFulfilled Kind = "request_fulfilled"
	KindHospitalStatus   Kind = "hospital_status"
)

// Message is one outbound notification, fully rendered.
type Message struct {
	Kind      Kind
	Recipient string
	Subject   string
	Body      string

	// throttleKey dedupes repeat sends for the same recipient and request.
	throttleKey string
}

// ThrottleKey identifies the message for suppression of repeats. Empty means
// never throttle.
func (m Message) ThrottleKey() string { return m.throttleKey }

// Notifier sends a rendered message. Implementations must be safe for
// concurrent use; the coordinator fans out over the selection.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// DonationRequestMessage renders the ask sent to a selected donor.
func DonationRequestMessage(d donor.Donor, r request.BloodRequest, h hospital.Hospital) Message {
	return Message{
		Kind:      KindDonationRequest,
		Recipient: d.PhoneNumber,
		Subject:   fmt.Sprintf("Urgent: %s blood needed at %s", r.BloodGroup, h.Name),
		Body: fmt.Sprintf(
			"Dear %s, %s in %s urgently needs %d unit(s) of %s blood (urgency: %s). "+
				"Please open your notifications to accept or decline.",
			d.FullName, h.Name, h.City, r.UnitsRequired, r.BloodGroup, r.Urgency,
		),
		throttleKey: fmt.Sprintf("%s:%s:%s", KindDonationRequest, d.ID, r.ID),
	}
}

// FulfilledMessage tells a non-winning donor the request has been covered.
func FulfilledMessage(d donor.Donor, r request.BloodRequest) Message {
	return Message{
		Kind:      KindRequestFulfilled,
		Recipient: d.PhoneNumber,
		Subject:   fmt.Sprintf("Blood request for %s has been fulfilled", r.BloodGroup),
		Body: fmt.Sprintf(
			"Dear %s, the %s blood request you were contacted about has been fulfilled "+
				"by another donor. Thank you for your willingness to help.",
			d.FullName, r.BloodGroup,
		),
		throttleKey: fmt.Sprintf("%s:%s:%s", KindRequestFulfilled, d.ID, r.ID),
	}
}

// HospitalStatusMessage tells the requesting hospital about a state change.
func HospitalStatusMessage(h hospital.Hospital, r request.BloodRequest, detail string) Message {
	return Message{
		Kind:      KindHospitalStatus,
		Recipient: h.Email,
		Subject:   fmt.Sprintf("Blood request %s: %s", r.ID, r.Status),
		Body: fmt.Sprintf(
			"Request for %d unit(s) of %s for patient %s is now %s. %s",
			r.UnitsRequired, r.BloodGroup, r.PatientName, r.Status, detail,
		),
		// Status changes always go out; the request status in the subject
		// already makes repeats distinguishable.
		throttleKey: "",
	}
}

// LogNotifier writes messages to the structured log. It stands in for a real
// mail or SMS gateway; swapping it out is a wiring change in main.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "outbound notification",
		"kind", string(msg.Kind),
		"recipient", msg.Recipient,
		"subject", msg.Subject,
	)
	return nil
}
