// Package domain holds the typed identifiers and small enumerations shared by
// every layer. IDs wrap uuid.UUID so a donor id can never be passed where a
// request id is expected.
package domain

import "github.com/google/uuid"

type (
	UserID         uuid.UUID
	DonorID        uuid.UUID
	HospitalID     uuid.UUID
	RequestID      uuid.UUID
	NotificationID uuid.UUID
	DonationID     uuid.UUID
)

func NewUserID() UserID                 { return UserID(uuid.New()) }
func NewDonorID() DonorID               { return DonorID(uuid.New()) }
func NewHospitalID() HospitalID         { return HospitalID(uuid.New()) }
func NewRequestID() RequestID           { return RequestID(uuid.New()) }
func NewNotificationID() NotificationID { return NotificationID(uuid.New()) }
func NewDonationID() DonationID         { return DonationID(uuid.New()) }

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id DonorID) String() string        { return uuid.UUID(id).String() }
func (id HospitalID) String() string     { return uuid.UUID(id).String() }
func (id RequestID) String() string      { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id DonationID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id DonorID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id HospitalID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	return UserID(u), err
}

func ParseDonorID(s string) (DonorID, error) {
	u, err := uuid.Parse(s)
	return DonorID(u), err
}

func ParseHospitalID(s string) (HospitalID, error) {
	u, err := uuid.Parse(s)
	return HospitalID(u), err
}

func ParseRequestID(s string) (RequestID, error) {
	u, err := uuid.Parse(s)
	return RequestID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := uuid.Parse(s)
	return NotificationID(u), err
}

func ParseDonationID(s string) (DonationID, error) {
	u, err := uuid.Parse(s)
	return DonationID(u), err
}

// Text marshaling keeps the IDs rendering as canonical uuid strings in JSON
// payloads and log attributes.

func (id UserID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id DonorID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id HospitalID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id RequestID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id NotificationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id DonationID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DonorID) UnmarshalText(b []byte) error {
	parsed, err := ParseDonorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *HospitalID) UnmarshalText(b []byte) error {
	parsed, err := ParseHospitalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RequestID) UnmarshalText(b []byte) error {
	parsed, err := ParseRequestID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *NotificationID) UnmarshalText(b []byte) error {
	parsed, err := ParseNotificationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DonationID) UnmarshalText(b []byte) error {
	parsed, err := ParseDonationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
