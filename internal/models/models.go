package models

import (
	"fmt"
	"time"
)

// Booking statuses.
const (
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// BreakInterval is a pause inside a working day, "15:04" clock strings.
type BreakInterval struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DayHours is the open window for a single weekday.
type DayHours struct {
	Start  string          `json:"start"`
	End    string          `json:"end"`
	Breaks []BreakInterval `json:"breaks,omitempty"`
}

// WorkingHoursSpec maps lowercase weekday names ("monday".."sunday") to
// open windows. A missing day means closed.
type WorkingHoursSpec map[string]DayHours

// Facility is the place where appointments happen.
type Facility struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Timezone  string           `json:"timezone"`
	Hours     WorkingHoursSpec `json:"hours"`
	CreatedAt time.Time        `json:"created_at"`
}

// Staff is a bookable staff member of a facility.
type Staff struct {
	ID         int64            `json:"id"`
	FacilityID int64            `json:"facility_id"`
	Name       string           `json:"name"`
	Hours      WorkingHoursSpec `json:"hours"`
	IsActive   bool             `json:"is_active"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Service is an offered service with a fixed duration.
type Service struct {
	ID              int64  `json:"id"`
	FacilityID      int64  `json:"facility_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        bool   `json:"is_active"`
}

// IntentType classifies what the customer wants.
type IntentType string

const (
	IntentNewBooking     IntentType = "new_booking"
	IntentModifyBooking  IntentType = "modify_booking"
	IntentCancelBooking  IntentType = "cancel_booking"
	IntentAvailability   IntentType = "availability_question"
	IntentConversational IntentType = "conversational"
	IntentUnknown        IntentType = "unknown"
)

// BookingIntent is the classification result for one inbound message.
// It is re-derived per message and never mutated afterwards.
type BookingIntent struct {
	RawText     string     `json:"raw_text"`
	Language    string     `json:"language"`
	Type        IntentType `json:"type"`
	Confidence  float64    `json:"confidence"`
	ServiceName string     `json:"service_name,omitempty"`
	StaffName   string     `json:"staff_name,omitempty"`
	// DesiredDate is midnight in the facility timezone when the customer
	// named a date; nil otherwise.
	DesiredDate *time.Time `json:"desired_date,omitempty"`
	// DesiredMinute is minutes from midnight when the customer named a
	// time of day; nil otherwise.
	DesiredMinute *int `json:"desired_minute,omitempty"`
}

// SlotCandidate is a bookable interval for a staff/service pair.
// Value type: equality is (StaffID, Date, Start).
type SlotCandidate struct {
	StaffID   int64     `json:"staff_id"`
	ServiceID int64     `json:"service_id"`
	Date      time.Time `json:"date"` // midnight, facility timezone
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Equal reports value equality by staff, date and start time.
func (s SlotCandidate) Equal(other SlotCandidate) bool {
	return s.StaffID == other.StaffID && s.Date.Equal(other.Date) && s.Start.Equal(other.Start)
}

// ConversationSession is the in-flight selection state for one customer at
// one facility. Replaced wholesale on every mutation, last write wins.
type ConversationSession struct {
	SessionID  string          `json:"session_id"`
	CustomerID int64           `json:"customer_id"`
	FacilityID int64           `json:"facility_id"`
	Language   string          `json:"language"`
	Intent     BookingIntent   `json:"intent"`
	Candidates []SlotCandidate `json:"candidates,omitempty"`
	Selected   *SlotCandidate  `json:"selected,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Schema     int             `json:"schema"`
}

// SessionSchemaVersion is the current session wire schema.
const SessionSchemaVersion = 2

// Expired reports whether the session is past its TTL at the given instant.
func (s *ConversationSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionKey builds the store key for a (customer, facility) pair.
// Exactly one live session exists per key.
func SessionKey(customerID, facilityID int64) string {
	return fmt.Sprintf("session:%d:%d", facilityID, customerID)
}

// Booking is a confirmed appointment row. Created only by the commit engine.
type Booking struct {
	ID          int64     `json:"id"`
	FacilityID  int64     `json:"facility_id"`
	StaffID     int64     `json:"staff_id"`
	ServiceID   int64     `json:"service_id"`
	CustomerID  int64     `json:"customer_id"`
	StartTs     time.Time `json:"start_ts"`
	EndTs       time.Time `json:"end_ts"`
	Status      string    `json:"status"`
	BookingCode string    `json:"booking_code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

// IsActive reports whether the booking still occupies its interval.
func (b *Booking) IsActive() bool {
	return b.Status == StatusConfirmed
}

// Overlaps checks half-open interval intersection with [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTs.Before(end) && start.Before(b.EndTs)
}
