package cards

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"citabot/internal/models"
)

// Callback actions embedded in choice item ids.
const (
	ActionPickSlot = "slot"
	ActionConfirm  = "confirm"
	ActionCancel   = "cancel"
)

// EncodeSlot packs a slot candidate into a choice item id. The id carries
// staff, service, date and times so the decode step can rebuild the
// candidate without a session-store round trip. Stays under the 64-byte
// callback-data limit of chat channels.
func EncodeSlot(action string, slot models.SlotCandidate) string {
	return strings.Join([]string{
		action,
		strconv.FormatInt(slot.StaffID, 10),
		strconv.FormatInt(slot.ServiceID, 10),
		slot.Date.Format("2006-01-02"),
		slot.Start.Format("15:04"),
		slot.End.Format("15:04"),
	}, "|")
}

// DecodeSelection splits a choice item id into its action and, for slot
// actions, the reconstructed candidate.
func DecodeSelection(id string, loc *time.Location) (string, *models.SlotCandidate, error) {
	parts := strings.Split(id, "|")
	action := parts[0]
	if action == ActionCancel {
		return action, nil, nil
	}
	if len(parts) != 6 {
		return "", nil, fmt.Errorf("%w: malformed selection %q", models.ErrValidation, id)
	}

	staffID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad staff id in %q", models.ErrValidation, id)
	}
	serviceID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad service id in %q", models.ErrValidation, id)
	}
	date, err := time.ParseInLocation("2006-01-02", parts[3], loc)
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad date in %q", models.ErrValidation, id)
	}
	start, err := parseClockOn(date, parts[4])
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad start in %q", models.ErrValidation, id)
	}
	end, err := parseClockOn(date, parts[5])
	if err != nil {
		return "", nil, fmt.Errorf("%w: bad end in %q", models.ErrValidation, id)
	}

	return action, &models.SlotCandidate{
		StaffID:   staffID,
		ServiceID: serviceID,
		Date:      date,
		Start:     start,
		End:       end,
	}, nil
}

func parseClockOn(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}
