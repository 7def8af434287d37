package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"citabot/internal/models"
)

// GetFacility loads one facility with its parsed working hours.
func (db *DB) GetFacility(ctx context.Context, id int64) (*models.Facility, error) {
	var f models.Facility
	var hoursJSON string
	err := db.QueryRowContext(ctx,
		`SELECT id, name, timezone, hours_json, created_at FROM facilities WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.Timezone, &hoursJSON, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get facility %d: %w", id, err)
	}
	f.Hours = db.parseHours(hoursJSON, "facility", id)
	return &f, nil
}

// GetStaff loads one staff member with parsed hours and active flag.
func (db *DB) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	var s models.Staff
	var hoursJSON string
	err := db.QueryRowContext(ctx,
		`SELECT id, facility_id, name, hours_json, is_active, created_at FROM staff WHERE id = ?`, id,
	).Scan(&s.ID, &s.FacilityID, &s.Name, &hoursJSON, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %d: %w", id, err)
	}
	s.Hours = db.parseHours(hoursJSON, "staff", id)
	return &s, nil
}

// ListActiveStaff returns the facility's bookable staff members.
func (db *DB) ListActiveStaff(ctx context.Context, facilityID int64) ([]models.Staff, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, facility_id, name, hours_json, is_active, created_at
		 FROM staff WHERE facility_id = ? AND is_active = 1 ORDER BY id`, facilityID)
	if err != nil {
		return nil, fmt.Errorf("list staff for facility %d: %w", facilityID, err)
	}
	defer rows.Close()

	var out []models.Staff
	for rows.Next() {
		var s models.Staff
		var hoursJSON string
		if err := rows.Scan(&s.ID, &s.FacilityID, &s.Name, &hoursJSON, &s.IsActive, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Hours = db.parseHours(hoursJSON, "staff", s.ID)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetService loads one service (duration source for slot computation).
func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := db.QueryRowContext(ctx,
		`SELECT id, facility_id, name, duration_minutes, is_active FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.FacilityID, &s.Name, &s.DurationMinutes, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %d: %w", id, err)
	}
	return &s, nil
}

// GetServiceByName resolves a service by case-insensitive name match.
func (db *DB) GetServiceByName(ctx context.Context, facilityID int64, name string) (*models.Service, error) {
	var s models.Service
	err := db.QueryRowContext(ctx,
		`SELECT id, facility_id, name, duration_minutes, is_active
		 FROM services WHERE facility_id = ? AND lower(name) = ? AND is_active = 1`,
		facilityID, strings.ToLower(name),
	).Scan(&s.ID, &s.FacilityID, &s.Name, &s.DurationMinutes, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service %q: %w", name, err)
	}
	return &s, nil
}

// ListActiveServices returns the facility's bookable services.
func (db *DB) ListActiveServices(ctx context.Context, facilityID int64) ([]models.Service, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, facility_id, name, duration_minutes, is_active
		 FROM services WHERE facility_id = ? AND is_active = 1 ORDER BY id`, facilityID)
	if err != nil {
		return nil, fmt.Errorf("list services for facility %d: %w", facilityID, err)
	}
	defer rows.Close()

	var out []models.Service
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.FacilityID, &s.Name, &s.DurationMinutes, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetActiveBookings returns the staff member's active bookings whose
// interval intersects [from, to).
func (db *DB) GetActiveBookings(ctx context.Context, staffID int64, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, facility_id, staff_id, service_id, customer_id, start_ts, end_ts,
		        status, booking_code, created_at, updated_at, version
		 FROM bookings
		 WHERE staff_id = ? AND status = ? AND start_ts < ? AND end_ts > ?
		 ORDER BY start_ts`,
		staffID, models.StatusConfirmed, to, from)
	if err != nil {
		return nil, fmt.Errorf("get bookings for staff %d: %w", staffID, err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.FacilityID, &b.StaffID, &b.ServiceID, &b.CustomerID,
			&b.StartTs, &b.EndTs, &b.Status, &b.BookingCode, &b.CreatedAt, &b.UpdatedAt, &b.Version); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBookingsByDateRange returns all bookings of a facility in a range,
// any status, for the audit export.
func (db *DB) GetBookingsByDateRange(ctx context.Context, facilityID int64, from, to time.Time) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, facility_id, staff_id, service_id, customer_id, start_ts, end_ts,
		        status, booking_code, created_at, updated_at, version
		 FROM bookings
		 WHERE facility_id = ? AND start_ts >= ? AND start_ts < ?
		 ORDER BY start_ts`,
		facilityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("get bookings for facility %d: %w", facilityID, err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.FacilityID, &b.StaffID, &b.ServiceID, &b.CustomerID,
			&b.StartTs, &b.EndTs, &b.Status, &b.BookingCode, &b.CreatedAt, &b.UpdatedAt, &b.Version); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// parseHours unmarshals a stored hours spec; a broken column degrades to
// an empty spec rather than failing the read.
func (db *DB) parseHours(hoursJSON, kind string, id int64) models.WorkingHoursSpec {
	var spec models.WorkingHoursSpec
	if err := json.Unmarshal([]byte(hoursJSON), &spec); err != nil {
		db.logger.Warn().Err(err).Str("kind", kind).Int64("id", id).Msg("malformed hours spec in database")
		return models.WorkingHoursSpec{}
	}
	return spec
}
