package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanService(row pgx.Row) (*ServiceOffering, error) {
	var s ServiceOffering
	err := row.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanRule(row pgx.Row) (*WeeklyRule, error) {
	var r WeeklyRule
	var weekday int
	err := row.Scan(&r.ID, &r.DoctorID, &weekday, &r.StartMinute, &r.EndMinute, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	r.Weekday = time.Weekday(weekday)
	return &r, nil
}

func scanPeriod(row pgx.Row) (*UnavailabilityPeriod, error) {
	var p UnavailabilityPeriod
	var reason *string
	err := row.Scan(&p.ID, &p.DoctorID, &p.StartDate, &p.EndDate, &reason, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPeriodNotFound
		}
		return nil, err
	}
	if reason != nil {
		p.Reason = *reason
	}
	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.DoctorID, &b.PatientID, &b.Kind, &b.StartAt, &b.DurationMinutes, &b.Status, &b.ServiceID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*ServiceOffering, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) ActiveRules(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, active, created_at, updated_at
		FROM availability_rules
		WHERE doctor_id = $1 AND weekday = $2 AND active
		ORDER BY start_minute
	`, doctorID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *PgRepository) ListRules(ctx context.Context, doctorID uuid.UUID) ([]WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, active, created_at, updated_at
		FROM availability_rules
		WHERE doctor_id = $1
		ORDER BY weekday, start_minute
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]WeeklyRule, error) {
	var result []WeeklyRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpsertRule(ctx context.Context, rule *WeeklyRule) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO availability_rules (id, doctor_id, weekday, start_minute, end_minute, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE
		SET weekday      = EXCLUDED.weekday,
		    start_minute = EXCLUDED.start_minute,
		    end_minute   = EXCLUDED.end_minute,
		    active       = EXCLUDED.active,
		    updated_at   = now()
	`, rule.ID, rule.DoctorID, int(rule.Weekday), rule.StartMinute, rule.EndMinute, rule.Active)
	return err
}

func (r *PgRepository) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE availability_rules
		SET active = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PgRepository) ActivePeriodCovering(ctx context.Context, doctorID uuid.UUID, date time.Time) (*UnavailabilityPeriod, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_date, end_date, reason, active, created_at, updated_at
		FROM unavailability_periods
		WHERE doctor_id = $1
		  AND active
		  AND start_date <= $2::date
		  AND COALESCE(end_date, start_date) >= $2::date
		ORDER BY start_date
		LIMIT 1
	`, doctorID, date)

	p, err := scanPeriod(row)
	if errors.Is(err, ErrPeriodNotFound) {
		return nil, nil
	}
	return p, err
}

func (r *PgRepository) GetPeriodByID(ctx context.Context, id uuid.UUID) (*UnavailabilityPeriod, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, start_date, end_date, reason, active, created_at, updated_at
		FROM unavailability_periods
		WHERE id = $1
	`, id)
	return scanPeriod(row)
}

func (r *PgRepository) ListPeriods(ctx context.Context, doctorID uuid.UUID) ([]UnavailabilityPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, start_date, end_date, reason, active, created_at, updated_at
		FROM unavailability_periods
		WHERE doctor_id = $1
		ORDER BY start_date
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UnavailabilityPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CreatePeriod(ctx context.Context, p *UnavailabilityPeriod) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO unavailability_periods (id, doctor_id, start_date, end_date, reason, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, now(), now())
	`, p.ID, p.DoctorID, p.StartDate, p.EndDate, p.Reason, p.Active)
	return err
}

func (r *PgRepository) UpdatePeriod(ctx context.Context, p *UnavailabilityPeriod) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE unavailability_periods
		SET start_date = $2,
		    end_date   = $3,
		    reason     = NULLIF($4, ''),
		    active     = $5,
		    updated_at = now()
		WHERE id = $1
	`, p.ID, p.StartDate, p.EndDate, p.Reason, p.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *PgRepository) DeletePeriod(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM unavailability_periods
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

func (r *PgRepository) OccupiedIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_at, start_at + make_interval(mins => duration_minutes)
		FROM bookings
		WHERE doctor_id = $1
		  AND status <> 'cancelled'
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		  AND ($4::uuid IS NULL OR id <> $4)
		ORDER BY start_at
	`, doctorID, from, to, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Interval
	for rows.Next() {
		var iv Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		result = append(result, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, kind, start_at, duration_minutes, status, service_id, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

// InsertBooking commits the reservation with the overlap check folded into
// the statement, so exclusivity holds at the storage level even if the
// advisory lock lapsed. No row back means a contender won: ErrSlotUnavailable.
func (r *PgRepository) InsertBooking(ctx context.Context, b *Booking) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (id, doctor_id, patient_id, kind, start_at, duration_minutes, status, service_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, now(), now()
		WHERE NOT EXISTS (
			SELECT 1 FROM bookings o
			WHERE o.doctor_id = $2
			  AND o.status <> 'cancelled'
			  AND o.start_at < $5 + make_interval(mins => $6)
			  AND $5 < o.start_at + make_interval(mins => o.duration_minutes)
		)
		RETURNING id, doctor_id, patient_id, kind, start_at, duration_minutes, status, service_id, created_at, updated_at
	`, b.ID, b.DoctorID, b.PatientID, b.Kind, b.StartAt, b.DurationMinutes, b.Status, b.ServiceID)

	inserted, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		return nil, ErrSlotUnavailable
	}
	return inserted, err
}

func (r *PgRepository) UpdateBookingStart(ctx context.Context, id uuid.UUID, newStart time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings b
		SET start_at   = $2,
		    updated_at = now()
		WHERE b.id = $1
		  AND b.status NOT IN ('cancelled', 'completed')
		  AND NOT EXISTS (
			SELECT 1 FROM bookings o
			WHERE o.doctor_id = b.doctor_id
			  AND o.id <> b.id
			  AND o.status <> 'cancelled'
			  AND o.start_at < $2 + make_interval(mins => b.duration_minutes)
			  AND $2 < o.start_at + make_interval(mins => o.duration_minutes)
		)
		RETURNING id, doctor_id, patient_id, kind, start_at, duration_minutes, status, service_id, created_at, updated_at
	`, id, newStart)

	updated, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		// Distinguish a missing row from a terminal booking from a lost
		// overlap race.
		existing, lookupErr := r.GetBookingByID(ctx, id)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing.Status.Terminal() {
			return nil, ErrBookingTerminal
		}
		return nil, ErrSlotUnavailable
	}
	return updated, err
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status     = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, doctor_id, patient_id, kind, start_at, duration_minutes, status, service_id, created_at, updated_at
	`, id, to, from)
	return scanBooking(row)
}

func (r *PgRepository) CancelBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status     = 'cancelled',
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('cancelled', 'completed')
		RETURNING id, doctor_id, patient_id, kind, start_at, duration_minutes, status, service_id, created_at, updated_at
	`, id)

	cancelled, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		if _, lookupErr := r.GetBookingByID(ctx, id); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, ErrBookingTerminal
	}
	return cancelled, err
}
