package models

import (
	"errors"
	"fmt"
	"time"
)

// Domain error taxonomy. Everything here except ConflictError is resolved
// into a localized user-facing message by the conversation flow.
var (
	ErrValidation            = errors.New("invalid or unparseable request")
	ErrOutOfHours            = errors.New("requested time outside working hours")
	ErrDurationExceedsWindow = errors.New("service duration exceeds working window")
	ErrSessionExpired        = errors.New("conversation session expired")
	ErrStaffUnavailable      = errors.New("staff member unavailable")
	ErrSessionNotFound       = errors.New("session not found")
)

// ConflictError reports a commit-time race loss: the interval was taken
// between slot presentation and commit. Never retried by the commit engine
// itself; the flow re-enters slot search instead.
type ConflictError struct {
	StaffID int64
	StartTs time.Time
	EndTs   time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot conflict: staff %d already booked %s–%s",
		e.StaffID, e.StartTs.Format("2006-01-02 15:04"), e.EndTs.Format("15:04"))
}

// IsConflict reports whether err is a commit-time availability conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
