package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	// StatusWaitingAssigned means a specialty was chosen but no doctor or
	// slot yet. The doctor reference and doctor snapshot are both nil.
	StatusWaitingAssigned AppointmentStatus = "waiting_assigned"
	StatusPending         AppointmentStatus = "pending"
	StatusConfirmed       AppointmentStatus = "confirmed"
	StatusCancelled       AppointmentStatus = "cancelled"
	StatusCompleted       AppointmentStatus = "completed"
)

// SubjectKind tags who the subject of care behind a health profile is.
type SubjectKind string

const (
	SubjectPatient      SubjectKind = "patient"
	SubjectFamilyMember SubjectKind = "family_member"
)

type Specialty struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Doctor struct {
	ID              uuid.UUID
	Name            string
	Phone           *string
	SpecialtyID     uuid.UUID
	YearsExperience int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Patient struct {
	ID          uuid.UUID
	Name        string
	Phone       *string
	Gender      *string
	DateOfBirth *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type FamilyMember struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	Name        string
	Phone       *string
	Gender      *string
	DateOfBirth *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HealthProfile is the subject-of-care indirection: the profile belongs to a
// patient, and points at one of their family members when the person being
// treated is not the patient themselves.
type HealthProfile struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	FamilyMemberID *uuid.UUID
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subject resolves the tagged variant behind the profile.
func (hp *HealthProfile) Subject() (SubjectKind, uuid.UUID) {
	if hp.FamilyMemberID != nil {
		return SubjectFamilyMember, *hp.FamilyMemberID
	}
	return SubjectPatient, hp.PatientID
}

// CareService is a priced reference-data entry used when a treatment is
// recorded. Read-only from this service's point of view.
type CareService struct {
	ID         uuid.UUID
	Name       string
	PriceCents int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Schedule owns the slots of one doctor on one calendar day. At most one
// exists per (doctor, day), backed by a unique index.
type Schedule struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Day       time.Time
	CreatedAt time.Time
}

// Slot is one bookable interval. Booked is true iff AppointmentID is set.
type Slot struct {
	ID            uuid.UUID
	ScheduleID    uuid.UUID
	StartTime     string // "HH:MM"
	EndTime       string // "HH:MM"
	Booked        bool
	AppointmentID *uuid.UUID
}

// Snapshots are write-once denormalized copies embedded in an appointment or
// treatment. Reads never re-join the source entities, so later edits to a
// patient, doctor or specialty leave existing records untouched.

type PatientSnapshot struct {
	Name        string     `json:"name"`
	Phone       string     `json:"phone,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
}

type DoctorSnapshot struct {
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	YearsExperience int    `json:"years_experience"`
}

type SpecialtySnapshot struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type AppointmentSnapshot struct {
	Day       time.Time `json:"day"`
	TimeLabel string    `json:"time_label"`
	Reason    string    `json:"reason,omitempty"`
}

type Appointment struct {
	ID              uuid.UUID
	BookerID        uuid.UUID
	HealthProfileID uuid.UUID
	SubjectKind     SubjectKind
	SubjectID       uuid.UUID
	DoctorID        *uuid.UUID
	SpecialtyID     uuid.UUID
	Day             time.Time
	TimeLabel       string
	SlotID          *uuid.UUID
	Reason          string
	Status          AppointmentStatus
	PatientSnap     *PatientSnapshot
	DoctorSnap      *DoctorSnapshot
	SpecialtySnap   *SpecialtySnapshot
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TreatmentItem is one priced line captured at treatment time.
type TreatmentItem struct {
	ServiceID  uuid.UUID `json:"service_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
}

// Treatment records what happened during a completed appointment. It embeds
// its own snapshot copies so billing reads stay self-contained.
type Treatment struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	PatientSnap     *PatientSnapshot
	DoctorSnap      *DoctorSnapshot
	AppointmentSnap *AppointmentSnapshot
	Items           []TreatmentItem
	Notes           string
	TotalCents      int64
	CreatedAt       time.Time
}

type Invoice struct {
	ID          uuid.UUID
	TreatmentID uuid.UUID
	AmountCents int64
	Status      string
	CreatedAt   time.Time
}

// GenerateResult reports one generator run over a horizon.
type GenerateResult struct {
	Created int
	Skipped int
}
