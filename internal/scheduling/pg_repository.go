package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewPgRepository(pool *pgxpool.Pool, log zerolog.Logger) *PgRepository {
	return &PgRepository{pool: pool, log: log}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Gender, &p.DateOfBirth, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanFamilyMember(row pgx.Row) (*FamilyMember, error) {
	var f FamilyMember
	err := row.Scan(&f.ID, &f.PatientID, &f.Name, &f.Phone, &f.Gender, &f.DateOfBirth, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return &f, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.SpecialtyID, &d.YearsExperience, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var s Specialty
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialtyNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.ScheduleID, &s.StartTime, &s.EndTime, &s.Booked, &s.AppointmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

const appointmentColumns = `
	id, booker_id, health_profile_id, subject_kind, subject_id, doctor_id,
	specialty_id, day, time_label, slot_id, reason, status,
	patient_snapshot, doctor_snapshot, specialty_snapshot, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var patientSnap, doctorSnap, specialtySnap []byte

	err := row.Scan(
		&a.ID, &a.BookerID, &a.HealthProfileID, &a.SubjectKind, &a.SubjectID,
		&a.DoctorID, &a.SpecialtyID, &a.Day, &a.TimeLabel, &a.SlotID,
		&a.Reason, &a.Status, &patientSnap, &doctorSnap, &specialtySnap,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if err := decodeSnapshots(&a, patientSnap, doctorSnap, specialtySnap); err != nil {
		return nil, err
	}
	return &a, nil
}

func decodeSnapshots(a *Appointment, patientSnap, doctorSnap, specialtySnap []byte) error {
	if len(patientSnap) > 0 {
		a.PatientSnap = &PatientSnapshot{}
		if err := json.Unmarshal(patientSnap, a.PatientSnap); err != nil {
			return fmt.Errorf("decode patient snapshot: %w", err)
		}
	}
	if len(doctorSnap) > 0 {
		a.DoctorSnap = &DoctorSnapshot{}
		if err := json.Unmarshal(doctorSnap, a.DoctorSnap); err != nil {
			return fmt.Errorf("decode doctor snapshot: %w", err)
		}
	}
	if len(specialtySnap) > 0 {
		a.SpecialtySnap = &SpecialtySnapshot{}
		if err := json.Unmarshal(specialtySnap, a.SpecialtySnap); err != nil {
			return fmt.Errorf("decode specialty snapshot: %w", err)
		}
	}
	return nil
}

func encodeSnapshot(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case *PatientSnapshot:
		if s == nil {
			return nil, nil
		}
	case *DoctorSnapshot:
		if s == nil {
			return nil, nil
		}
	case *SpecialtySnapshot:
		if s == nil {
			return nil, nil
		}
	case *AppointmentSnapshot:
		if s == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

// Reference lookups

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, gender, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetFamilyMemberByID(ctx context.Context, id uuid.UUID) (*FamilyMember, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, name, phone, gender, date_of_birth, created_at, updated_at
		FROM family_members
		WHERE id = $1
	`, id)
	return scanFamilyMember(row)
}

func (r *PgRepository) GetHealthProfileByID(ctx context.Context, id uuid.UUID) (*HealthProfile, error) {
	var hp HealthProfile
	err := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, family_member_id, notes, created_at, updated_at
		FROM health_profiles
		WHERE id = $1
	`, id).Scan(&hp.ID, &hp.PatientID, &hp.FamilyMemberID, &hp.Notes, &hp.CreatedAt, &hp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return &hp, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, phone, specialty_id, years_experience, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM specialties
		WHERE id = $1
	`, id)
	return scanSpecialty(row)
}

func (r *PgRepository) GetServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]CareService, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, price_cents, created_at, updated_at
		FROM care_services
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CareService
	for rows.Next() {
		var s CareService
		if err := rows.Scan(&s.ID, &s.Name, &s.PriceCents, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM doctors ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Bulk lookups

func (r *PgRepository) GetHealthProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]HealthProfile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, family_member_id, notes, created_at, updated_at
		FROM health_profiles
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HealthProfile
	for rows.Next() {
		var hp HealthProfile
		if err := rows.Scan(&hp.ID, &hp.PatientID, &hp.FamilyMemberID, &hp.Notes, &hp.CreatedAt, &hp.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, hp)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetPatientsByIDs(ctx context.Context, ids []uuid.UUID) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, gender, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Gender, &p.DateOfBirth, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetFamilyMembersByIDs(ctx context.Context, ids []uuid.UUID) ([]FamilyMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, name, phone, gender, date_of_birth, created_at, updated_at
		FROM family_members
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []FamilyMember
	for rows.Next() {
		var f FamilyMember
		if err := rows.Scan(&f.ID, &f.PatientID, &f.Name, &f.Phone, &f.Gender, &f.DateOfBirth, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetDoctorsByIDs(ctx context.Context, ids []uuid.UUID) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, phone, specialty_id, years_experience, created_at, updated_at
		FROM doctors
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.SpecialtyID, &d.YearsExperience, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetSpecialtiesByIDs(ctx context.Context, ids []uuid.UUID) ([]Specialty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM specialties
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// Slot inventory

func (r *PgRepository) GetScheduleByDoctorDay(ctx context.Context, doctorID uuid.UUID, day time.Time) (*Schedule, error) {
	var s Schedule
	err := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, day, created_at
		FROM schedules
		WHERE doctor_id = $1 AND day = $2
	`, doctorID, day).Scan(&s.ID, &s.DoctorID, &s.Day, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) ListSlotsBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, schedule_id, start_time, end_time, booked, appointment_id
		FROM slots
		WHERE schedule_id = $1
		ORDER BY start_time
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateScheduleWithSlots(ctx context.Context, schedule *Schedule, slots []Slot) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO schedules (id, doctor_id, day, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (doctor_id, day) DO NOTHING
	`, schedule.ID, schedule.DoctorID, schedule.Day)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Another run got there first. Idempotent skip, nothing to roll back.
		return false, nil
	}

	for i := range slots {
		slots[i].ScheduleID = schedule.ID
		_, err := tx.Exec(ctx, `
			INSERT INTO slots (id, schedule_id, start_time, end_time, booked, appointment_id)
			VALUES ($1, $2, $3, $4, FALSE, NULL)
		`, slots[i].ID, slots[i].ScheduleID, slots[i].StartTime, slots[i].EndTime)
		if err != nil {
			return false, fmt.Errorf("insert slot %s: %w", slots[i].StartTime, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PgRepository) DeleteSchedulesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE day < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete schedules: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ReleaseSlot(ctx context.Context, slotID, appointmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET booked = FALSE, appointment_id = NULL
		WHERE id = $1 AND appointment_id = $2
	`, slotID, appointmentID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// reserveSlot is the race-safe reservation: the conditional booked = FALSE
// guard means that under concurrent bookings exactly one writer wins and the
// loser sees no matching row. An exact start-time match is tried first, then
// a single logged prefix-match fallback for minor label formatting drift.
func (r *PgRepository) reserveSlot(ctx context.Context, tx pgx.Tx, scheduleID uuid.UUID, startHHMM string, appointmentID uuid.UUID) (*Slot, error) {
	row := tx.QueryRow(ctx, `
		UPDATE slots
		SET booked = TRUE, appointment_id = $1
		WHERE schedule_id = $2 AND start_time = $3 AND booked = FALSE
		RETURNING id, schedule_id, start_time, end_time, booked, appointment_id
	`, appointmentID, scheduleID, startHHMM)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}

	// No unbooked exact match. Decide between "already booked" and "no such
	// slot" before trying the lenient prefix fallback.
	var booked bool
	err = tx.QueryRow(ctx, `
		SELECT booked FROM slots WHERE schedule_id = $1 AND start_time = $2
	`, scheduleID, startHHMM).Scan(&booked)
	switch {
	case err == nil && booked:
		return nil, ErrSlotAlreadyBooked
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE slots
		SET booked = TRUE, appointment_id = $1
		WHERE id = (
			SELECT id FROM slots
			WHERE schedule_id = $2 AND start_time LIKE $3 || '%' AND booked = FALSE
			ORDER BY start_time
			LIMIT 1
		)
		RETURNING id, schedule_id, start_time, end_time, booked, appointment_id
	`, appointmentID, scheduleID, startHHMM)

	slot, err = scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	r.log.Warn().
		Str("schedule_id", scheduleID.String()).
		Str("requested_start", startHHMM).
		Str("matched_start", slot.StartTime).
		Msg("slot reserved via prefix fallback, check upstream label formatting")

	return slot, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) error {
	patientSnap, err := encodeSnapshot(a.PatientSnap)
	if err != nil {
		return err
	}
	doctorSnap, err := encodeSnapshot(a.DoctorSnap)
	if err != nil {
		return err
	}
	specialtySnap, err := encodeSnapshot(a.SpecialtySnap)
	if err != nil {
		return err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, booker_id, health_profile_id, subject_kind, subject_id, doctor_id,
			specialty_id, day, time_label, slot_id, reason, status,
			patient_snapshot, doctor_snapshot, specialty_snapshot, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.BookerID, a.HealthProfileID, a.SubjectKind, a.SubjectID, a.DoctorID,
		a.SpecialtyID, a.Day, a.TimeLabel, a.SlotID, a.Reason, a.Status,
		patientSnap, doctorSnap, specialtySnap)

	created, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	*a = *created
	return nil
}

func (r *PgRepository) CreateAppointmentReservingSlot(ctx context.Context, a *Appointment, scheduleID uuid.UUID, startHHMM string) (*Slot, error) {
	patientSnap, err := encodeSnapshot(a.PatientSnap)
	if err != nil {
		return nil, err
	}
	doctorSnap, err := encodeSnapshot(a.DoctorSnap)
	if err != nil {
		return nil, err
	}
	specialtySnap, err := encodeSnapshot(a.SpecialtySnap)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	slot, err := r.reserveSlot(ctx, tx, scheduleID, startHHMM, a.ID)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, booker_id, health_profile_id, subject_kind, subject_id, doctor_id,
			specialty_id, day, time_label, slot_id, reason, status,
			patient_snapshot, doctor_snapshot, specialty_snapshot, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.BookerID, a.HealthProfileID, a.SubjectKind, a.SubjectID, a.DoctorID,
		a.SpecialtyID, a.Day, a.TimeLabel, slot.ID, a.Reason, a.Status,
		patientSnap, doctorSnap, specialtySnap)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	*a = *created
	return slot, nil
}

func (r *PgRepository) AssignDoctorReservingSlot(ctx context.Context, appointmentID, doctorID uuid.UUID, snap *DoctorSnapshot, scheduleID uuid.UUID, startHHMM string) (*Appointment, *Slot, error) {
	doctorSnap, err := encodeSnapshot(snap)
	if err != nil {
		return nil, nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	slot, err := r.reserveSlot(ctx, tx, scheduleID, startHHMM, appointmentID)
	if err != nil {
		return nil, nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET doctor_id = $2,
		    doctor_snapshot = $3,
		    slot_id = $4,
		    status = $5,
		    updated_at = now()
		WHERE id = $1
		  AND status = $6
		RETURNING `+appointmentColumns+`
	`, appointmentID, doctorID, doctorSnap, slot.ID, StatusPending, StatusWaitingAssigned)

	updated, err := scanAppointment(row)
	if err != nil {
		// The appointment left waiting_assigned between the service's read
		// and this write. Rolling back also releases the slot.
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return updated, slot, nil
}

// Reads and lifecycle

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) listAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListAppointmentsByBooker(ctx context.Context, bookerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE booker_id = $1
		ORDER BY day DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, bookerID, limit, offset)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY day DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
}

func (r *PgRepository) ListAppointmentsByDay(ctx context.Context, day time.Time) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE day = $1
		ORDER BY time_label
	`, day)
}

func (r *PgRepository) ListAppointmentsByMonth(ctx context.Context, year int, month time.Month) ([]Appointment, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE day >= $1 AND day < $2
		ORDER BY day, time_label
	`, from, to)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, to, statusStrings(from))
	return scanAppointment(row)
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Treatment hand-off

func (r *PgRepository) CreateTreatmentCompletingAppointment(ctx context.Context, t *Treatment, inv *Invoice, from []AppointmentStatus) error {
	patientSnap, err := encodeSnapshot(t.PatientSnap)
	if err != nil {
		return err
	}
	doctorSnap, err := encodeSnapshot(t.DoctorSnap)
	if err != nil {
		return err
	}
	apptSnap, err := encodeSnapshot(t.AppointmentSnap)
	if err != nil {
		return err
	}
	items, err := json.Marshal(t.Items)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
	`, t.AppointmentID, StatusCompleted, statusStrings(from))
	if err != nil {
		return fmt.Errorf("complete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO treatments (
			id, appointment_id, patient_snapshot, doctor_snapshot,
			appointment_snapshot, items, notes, total_cents, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, t.ID, t.AppointmentID, patientSnap, doctorSnap, apptSnap, items, t.Notes, t.TotalCents); err != nil {
		return fmt.Errorf("insert treatment: %w", err)
	}

	if inv != nil {
		if _, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, treatment_id, amount_cents, status, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, inv.ID, inv.TreatmentID, inv.AmountCents, inv.Status); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
