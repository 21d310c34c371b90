package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrMissingField       = errors.New("missing required field")
	ErrNotWaitingAssigned = errors.New("appointment is not waiting for assignment")
	ErrSpecialtyMismatch  = errors.New("doctor specialty does not match the appointment")
)

// BookingService validates booking requests, reserves slots and creates
// appointments with their embedded snapshots.
type BookingService struct {
	repo      Repository
	snapshots *SnapshotBuilder
	log       zerolog.Logger
}

func NewBookingService(repo Repository, snapshots *SnapshotBuilder, log zerolog.Logger) *BookingService {
	return &BookingService{repo: repo, snapshots: snapshots, log: log}
}

type BookByDoctorInput struct {
	BookerID        uuid.UUID
	SubjectOfCareID uuid.UUID // health profile id
	DoctorID        uuid.UUID
	Day             time.Time
	TimeLabel       string
	Reason          string
}

type BookBySpecialtyInput struct {
	BookerID        uuid.UUID
	SubjectOfCareID uuid.UUID
	SpecialtyID     uuid.UUID
	Day             time.Time
	TimeLabel       string
	Reason          string
}

// resolveParties checks the booker and the subject-of-care profile exist.
// Every booking mode runs this before anything else.
func (s *BookingService) resolveParties(ctx context.Context, bookerID, subjectOfCareID uuid.UUID) (*Patient, *HealthProfile, error) {
	booker, err := s.repo.GetPatientByID(ctx, bookerID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load booker: %w", err)
	}

	profile, err := s.repo.GetHealthProfileByID(ctx, subjectOfCareID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load health profile: %w", err)
	}

	return booker, profile, nil
}

// BookByDoctor books a concrete slot with a chosen doctor. The doctor's
// specialty is resolved implicitly, all three snapshots are captured, and the
// appointment starts out pending.
func (s *BookingService) BookByDoctor(ctx context.Context, in BookByDoctorInput) (*Appointment, error) {
	if in.BookerID == uuid.Nil || in.SubjectOfCareID == uuid.Nil || in.DoctorID == uuid.Nil ||
		in.Day.IsZero() || in.TimeLabel == "" {
		return nil, ErrMissingField
	}
	startHHMM := NormalizeTimeLabel(in.TimeLabel)
	if startHHMM == "" {
		return nil, ErrSlotNotFound
	}

	_, profile, err := s.resolveParties(ctx, in.BookerID, in.SubjectOfCareID)
	if err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	day := dateOnly(in.Day)
	schedule, err := s.repo.GetScheduleByDoctorDay(ctx, doctor.ID, day)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	patientSnap, err := s.snapshots.BuildPatientSnapshot(ctx, profile.ID)
	if err != nil {
		return nil, err
	}
	doctorSnap := doctorSnapshotOf(doctor)
	specialtySnap, err := s.snapshots.BuildSpecialtySnapshot(ctx, doctor.SpecialtyID)
	if err != nil {
		return nil, err
	}

	kind, subjectID := profile.Subject()
	doctorID := doctor.ID
	appt := &Appointment{
		ID:              uuid.New(),
		BookerID:        in.BookerID,
		HealthProfileID: profile.ID,
		SubjectKind:     kind,
		SubjectID:       subjectID,
		DoctorID:        &doctorID,
		SpecialtyID:     doctor.SpecialtyID,
		Day:             day,
		TimeLabel:       in.TimeLabel,
		Reason:          in.Reason,
		Status:          StatusPending,
		PatientSnap:     patientSnap,
		DoctorSnap:      doctorSnap,
		SpecialtySnap:   specialtySnap,
	}

	slot, err := s.repo.CreateAppointmentReservingSlot(ctx, appt, schedule.ID, startHHMM)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) || errors.Is(err, ErrSlotAlreadyBooked) {
			return nil, err
		}
		return nil, fmt.Errorf("reserve slot: %w", err)
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("slot_start", slot.StartTime).
		Msg("appointment booked")

	return appt, nil
}

// BookBySpecialty defers the doctor choice: the appointment is created as
// waiting_assigned with no doctor reference, no doctor snapshot and no slot.
func (s *BookingService) BookBySpecialty(ctx context.Context, in BookBySpecialtyInput) (*Appointment, error) {
	if in.BookerID == uuid.Nil || in.SubjectOfCareID == uuid.Nil || in.SpecialtyID == uuid.Nil ||
		in.Day.IsZero() || in.TimeLabel == "" {
		return nil, ErrMissingField
	}

	_, profile, err := s.resolveParties(ctx, in.BookerID, in.SubjectOfCareID)
	if err != nil {
		return nil, err
	}

	// The specialty must exist to book against it. This check runs before
	// snapshot building, the snapshot itself stays non-fatal.
	specialty, err := s.repo.GetSpecialtyByID(ctx, in.SpecialtyID)
	if err != nil {
		if errors.Is(err, ErrSpecialtyNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load specialty: %w", err)
	}

	patientSnap, err := s.snapshots.BuildPatientSnapshot(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	kind, subjectID := profile.Subject()
	appt := &Appointment{
		ID:              uuid.New(),
		BookerID:        in.BookerID,
		HealthProfileID: profile.ID,
		SubjectKind:     kind,
		SubjectID:       subjectID,
		SpecialtyID:     specialty.ID,
		Day:             dateOnly(in.Day),
		TimeLabel:       in.TimeLabel,
		Reason:          in.Reason,
		Status:          StatusWaitingAssigned,
		PatientSnap:     patientSnap,
		SpecialtySnap:   specialtySnapshotOf(specialty),
	}

	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("specialty_id", specialty.ID.String()).
		Msg("appointment created waiting for doctor assignment")

	return appt, nil
}

// AssignDoctor attaches a doctor to a waiting_assigned appointment. The
// doctor's specialty must match the appointment's exactly; a fresh doctor
// snapshot is captured at assignment time. Assignment either succeeds once or
// the appointment stays waiting_assigned.
func (s *BookingService) AssignDoctor(ctx context.Context, appointmentID, doctorID uuid.UUID) (*Appointment, error) {
	if appointmentID == uuid.Nil || doctorID == uuid.Nil {
		return nil, ErrMissingField
	}

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != StatusWaitingAssigned {
		return nil, ErrNotWaitingAssigned
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.SpecialtyID != appt.SpecialtyID {
		return nil, ErrSpecialtyMismatch
	}

	schedule, err := s.repo.GetScheduleByDoctorDay(ctx, doctor.ID, appt.Day)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	startHHMM := NormalizeTimeLabel(appt.TimeLabel)
	if startHHMM == "" {
		return nil, ErrSlotNotFound
	}

	updated, slot, err := s.repo.AssignDoctorReservingSlot(ctx, appt.ID, doctor.ID, doctorSnapshotOf(doctor), schedule.ID, startHHMM)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotNotFound), errors.Is(err, ErrSlotAlreadyBooked):
			return nil, err
		case errors.Is(err, ErrAppointmentNotFound):
			// Lost a race with another status write after our read.
			return nil, ErrNotWaitingAssigned
		}
		return nil, fmt.Errorf("assign doctor: %w", err)
	}

	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("doctor_id", doctor.ID.String()).
		Str("slot_start", slot.StartTime).
		Msg("doctor assigned")

	return updated, nil
}

// Read paths. These return appointments whose patient, doctor and specialty
// fields come only from the embedded snapshots.

func (s *BookingService) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *BookingService) ListByBooker(ctx context.Context, bookerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByBooker(ctx, bookerID, limit, offset)
}

func (s *BookingService) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListAppointmentsByDoctor(ctx, doctorID, limit, offset)
}

func (s *BookingService) ListByDay(ctx context.Context, day time.Time) ([]Appointment, error) {
	return s.repo.ListAppointmentsByDay(ctx, dateOnly(day))
}

func (s *BookingService) ListByMonth(ctx context.Context, year int, month time.Month) ([]Appointment, error) {
	return s.repo.ListAppointmentsByMonth(ctx, year, month)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
