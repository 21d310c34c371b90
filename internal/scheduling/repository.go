package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSubjectNotFound     = errors.New("subject of care not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSpecialtyNotFound   = errors.New("specialty not found")
	ErrScheduleNotFound    = errors.New("no schedule for that doctor and date")
	ErrSlotNotFound        = errors.New("no slot matches the requested time")
	ErrSlotAlreadyBooked   = errors.New("slot is already booked")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrServiceNotFound     = errors.New("care service not found")
)

// Repository contains all DB interactions needed by the scheduling services.
type Repository interface {
	// Reference lookups
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetFamilyMemberByID(ctx context.Context, id uuid.UUID) (*FamilyMember, error)
	GetHealthProfileByID(ctx context.Context, id uuid.UUID) (*HealthProfile, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetSpecialtyByID(ctx context.Context, id uuid.UUID) (*Specialty, error)
	GetServicesByIDs(ctx context.Context, ids []uuid.UUID) ([]CareService, error)
	ListDoctorIDs(ctx context.Context) ([]uuid.UUID, error)

	// Bulk lookups for the batch snapshot path
	GetHealthProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]HealthProfile, error)
	GetPatientsByIDs(ctx context.Context, ids []uuid.UUID) ([]Patient, error)
	GetFamilyMembersByIDs(ctx context.Context, ids []uuid.UUID) ([]FamilyMember, error)
	GetDoctorsByIDs(ctx context.Context, ids []uuid.UUID) ([]Doctor, error)
	GetSpecialtiesByIDs(ctx context.Context, ids []uuid.UUID) ([]Specialty, error)

	// Slot inventory
	GetScheduleByDoctorDay(ctx context.Context, doctorID uuid.UUID, day time.Time) (*Schedule, error)
	ListSlotsBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]Slot, error)
	// CreateScheduleWithSlots inserts the schedule and its slot grid in one
	// transaction. A duplicate (doctor, day) returns created=false, nil.
	CreateScheduleWithSlots(ctx context.Context, schedule *Schedule, slots []Slot) (created bool, err error)
	DeleteSchedulesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ReleaseSlot(ctx context.Context, slotID, appointmentID uuid.UUID) error

	// Booking. Appointment write and slot reservation run in one transaction
	// so a partial failure cannot leave the two out of step.
	CreateAppointment(ctx context.Context, a *Appointment) error
	CreateAppointmentReservingSlot(ctx context.Context, a *Appointment, scheduleID uuid.UUID, startHHMM string) (*Slot, error)
	AssignDoctorReservingSlot(ctx context.Context, appointmentID, doctorID uuid.UUID, snap *DoctorSnapshot, scheduleID uuid.UUID, startHHMM string) (*Appointment, *Slot, error)

	// Reads and lifecycle
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsByBooker(ctx context.Context, bookerID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByDay(ctx context.Context, day time.Time) ([]Appointment, error)
	ListAppointmentsByMonth(ctx context.Context, year int, month time.Month) ([]Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)

	// Treatment hand-off: inserts the treatment and invoice and marks the
	// appointment completed in one transaction.
	CreateTreatmentCompletingAppointment(ctx context.Context, t *Treatment, inv *Invoice, from []AppointmentStatus) error
}
