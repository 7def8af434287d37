// Package booking is the transactional commit engine. It is the only
// writer of booking rows and the only component that guarantees the
// no-double-booking invariant.
package booking

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"citabot/internal/database"
	"citabot/internal/events"
	"citabot/internal/metrics"
	"citabot/internal/models"
)

const (
	maxTxRetries     = 3
	maxCodeAttempts  = 5
	retryBackoffBase = 100 * time.Millisecond
)

// CommitRequest identifies the slot to commit. Session-layer checks are
// advisory; this request is re-validated under the staff lock.
type CommitRequest struct {
	FacilityID int64
	StaffID    int64
	ServiceID  int64
	CustomerID int64
	StartTs    time.Time
	EndTs      time.Time
}

// Engine commits bookings: Requested -> Locked -> {Committed | Conflicted}.
type Engine struct {
	db     *database.DB
	locks  *staffLocks
	bus    *events.Bus
	logger *zerolog.Logger
}

func NewEngine(db *database.DB, bus *events.Bus, logger *zerolog.Logger) *Engine {
	return &Engine{db: db, locks: newStaffLocks(), bus: bus, logger: logger}
}

// Commit re-validates the interval under the staff member's exclusive lock
// and inserts the booking atomically. A lost race returns *ConflictError
// and is never retried here; transient transaction failures are retried a
// bounded number of times with backoff.
func (e *Engine) Commit(ctx context.Context, req CommitRequest) (*models.Booking, error) {
	if !req.StartTs.Before(req.EndTs) {
		return nil, fmt.Errorf("%w: start %s not before end %s", models.ErrValidation, req.StartTs, req.EndTs)
	}

	mu := e.locks.lock(req.StaffID)
	defer mu.Unlock()
	started := time.Now()

	var lastErr error
	for attempt := 0; attempt <= maxTxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Warn().Err(lastErr).Int("attempt", attempt).Int64("staff_id", req.StaffID).
				Msg("retrying booking commit after transient failure")
			select {
			case <-time.After(retryBackoffBase * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		booking, err := e.commitOnce(ctx, req)
		if err == nil {
			metrics.IncBookingCommitted()
			metrics.ObserveCommitDuration(time.Since(started).Seconds())
			_ = e.bus.PublishJSON(events.TypeBookingCreated, booking)
			e.logger.Info().Int64("booking_id", booking.ID).Str("code", booking.BookingCode).
				Int64("staff_id", booking.StaffID).Time("start", booking.StartTs).
				Msg("booking committed")
			return booking, nil
		}
		if models.IsConflict(err) {
			metrics.IncBookingConflicted()
			_ = e.bus.PublishJSON(events.TypeBookingConflict, req)
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("booking commit failed after %d retries: %w", maxTxRetries, lastErr)
}

func (e *Engine) commitOnce(ctx context.Context, req CommitRequest) (*models.Booking, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Re-query under the lock: any active overlapping booking means the
	// slot was taken between presentation and commit. This also makes a
	// duplicate commit of an already-confirmed slot idempotently conflict.
	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings
		 WHERE staff_id = ? AND status = ? AND start_ts < ? AND end_ts > ?`,
		req.StaffID, models.StatusConfirmed, req.EndTs, req.StartTs,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("overlap check: %w", err)
	}
	if count > 0 {
		return nil, &models.ConflictError{StaffID: req.StaffID, StartTs: req.StartTs, EndTs: req.EndTs}
	}

	now := time.Now().UTC()
	var res sql.Result
	var code string
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code = newBookingCode()
		res, err = tx.ExecContext(ctx,
			`INSERT INTO bookings
			   (facility_id, staff_id, service_id, customer_id, start_ts, end_ts,
			    status, booking_code, created_at, updated_at, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			req.FacilityID, req.StaffID, req.ServiceID, req.CustomerID,
			req.StartTs, req.EndTs, models.StatusConfirmed, code, now, now)
		if err == nil {
			break
		}
		if !isCodeCollision(err) {
			return nil, fmt.Errorf("insert booking: %w", err)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("booking code collision persisted: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("booking id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &models.Booking{
		ID:          id,
		FacilityID:  req.FacilityID,
		StaffID:     req.StaffID,
		ServiceID:   req.ServiceID,
		CustomerID:  req.CustomerID,
		StartTs:     req.StartTs,
		EndTs:       req.EndTs,
		Status:      models.StatusConfirmed,
		BookingCode: code,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
	}, nil
}

func isCodeCollision(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: bookings.facility_id, bookings.booking_code")
}
