// Package availability computes bookable slots for a staff/service pair by
// intersecting facility hours, staff hours, breaks and existing bookings.
package availability

import (
	"time"

	"github.com/rs/zerolog"

	"citabot/internal/hours"
	"citabot/internal/models"
)

// DefaultGranularityMinutes is the slot step size.
const DefaultGranularityMinutes = 15

// Engine walks open windows at a fixed granularity. Cost is
// O(window/granularity) per request.
type Engine struct {
	granularity int
	logger      *zerolog.Logger
}

func NewEngine(granularityMinutes int, logger *zerolog.Logger) *Engine {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}
	return &Engine{granularity: granularityMinutes, logger: logger}
}

// FindSlots returns the chronologically ordered bookable slots for one
// staff member on one date. Facility closure is authoritative; a missing
// staff spec means no staff-level constraint, while a malformed one
// degrades to facility hours only. Bookings that are no longer active do
// not block slots.
func (e *Engine) FindSlots(
	facilityHours, staffHours models.WorkingHoursSpec,
	bookings []models.Booking,
	staffID, serviceID int64,
	date time.Time,
	durationMinutes int,
) []models.SlotCandidate {
	if durationMinutes <= 0 {
		return nil
	}

	facilityWindows := hours.ResolveOpenWindows(facilityHours, date)
	if len(facilityWindows) == 0 {
		return nil
	}

	staffWindows := facilityWindows
	switch {
	case len(staffHours) == 0:
		// No staff-level spec: facility hours are the only constraint.
	case hours.Malformed(staffHours, date):
		e.logger.Warn().Int64("staff_id", staffID).Str("date", date.Format("2006-01-02")).
			Msg("malformed staff hours, falling back to facility hours")
	default:
		staffWindows = hours.ResolveOpenWindows(staffHours, date)
		if len(staffWindows) == 0 {
			return nil
		}
	}

	windows := hours.Intersect(facilityWindows, staffWindows)

	var slots []models.SlotCandidate
	for _, w := range windows {
		for start := w.Start; start+durationMinutes <= w.End; start += e.granularity {
			slotStart := hours.OnDate(date, start)
			slotEnd := hours.OnDate(date, start+durationMinutes)

			if isBooked(bookings, staffID, slotStart, slotEnd) {
				continue
			}
			slots = append(slots, models.SlotCandidate{
				StaffID:   staffID,
				ServiceID: serviceID,
				Date:      hours.OnDate(date, 0),
				Start:     slotStart,
				End:       slotEnd,
			})
		}
	}
	return slots
}

// ClassifyMiss explains why an exact requested start time yields no slot,
// using the domain error taxonomy. Returns nil when the time lies inside
// the effective window (the miss is then an occupied slot, handled by slot
// search, not an error).
func (e *Engine) ClassifyMiss(
	facilityHours, staffHours models.WorkingHoursSpec,
	date time.Time,
	startMinute, durationMinutes int,
) error {
	facilityWindows := hours.ResolveOpenWindows(facilityHours, date)
	if len(facilityWindows) == 0 {
		return models.ErrOutOfHours
	}

	staffWindows := facilityWindows
	if len(staffHours) > 0 && !hours.Malformed(staffHours, date) {
		staffWindows = hours.ResolveOpenWindows(staffHours, date)
		if len(staffWindows) == 0 {
			return models.ErrStaffUnavailable
		}
	}

	for _, w := range hours.Intersect(facilityWindows, staffWindows) {
		if startMinute >= w.Start && startMinute < w.End {
			if startMinute+durationMinutes > w.End {
				return models.ErrDurationExceedsWindow
			}
			return nil
		}
	}
	return models.ErrOutOfHours
}

func isBooked(bookings []models.Booking, staffID int64, start, end time.Time) bool {
	for i := range bookings {
		b := &bookings[i]
		if b.StaffID != staffID || !b.IsActive() {
			continue
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
