package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinic-scheduling/internal/notification"
)

var ErrInvalidStatusTransition = errors.New("invalid status transition")

// LifecycleService drives appointments through confirmation, cancellation and
// completion. Each write path enforces its own allow-list of source statuses
// through a conditional update, there is no universal transition table.
type LifecycleService struct {
	repo     Repository
	notifier notification.Notifier
	log      zerolog.Logger
}

func NewLifecycleService(repo Repository, notifier notification.Notifier, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{repo: repo, notifier: notifier, log: log}
}

// Confirm moves a pending appointment to confirmed and fires the confirmation
// notification built from the embedded snapshots.
func (s *LifecycleService) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.UpdateAppointmentStatus(ctx, id, []AppointmentStatus{StatusPending}, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.transitionError(ctx, id)
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	c := notification.Confirmation{
		Day:       appt.Day,
		TimeLabel: appt.TimeLabel,
	}
	if appt.PatientSnap != nil {
		c.PatientName = appt.PatientSnap.Name
		c.Phone = appt.PatientSnap.Phone
	}
	if appt.DoctorSnap != nil {
		c.DoctorName = appt.DoctorSnap.Name
	}
	s.notifier.AppointmentConfirmed(c)

	return appt, nil
}

// Cancel moves a pending or confirmed appointment to cancelled and makes a
// best-effort attempt to release the reserved slot. A failed release is
// logged, not surfaced: slot state reconverges when the schedule ages out.
func (s *LifecycleService) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.UpdateAppointmentStatus(ctx, id,
		[]AppointmentStatus{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, s.transitionError(ctx, id)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if appt.SlotID != nil {
		if err := s.repo.ReleaseSlot(ctx, *appt.SlotID, appt.ID); err != nil {
			s.log.Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Str("slot_id", appt.SlotID.String()).
				Msg("slot release failed after cancellation")
		}
	}

	return appt, nil
}

type TreatmentInput struct {
	AppointmentID uuid.UUID
	ServiceIDs    []uuid.UUID
	Notes         string
}

// CreateTreatment records the treatment for an appointment, prices its line
// items from reference data, creates the invoice and marks the appointment
// completed, all in one write. Completion is only reachable through this
// flow, not through a direct status update.
func (s *LifecycleService) CreateTreatment(ctx context.Context, in TreatmentInput) (*Treatment, error) {
	if in.AppointmentID == uuid.Nil {
		return nil, ErrMissingField
	}

	appt, err := s.repo.GetAppointmentByID(ctx, in.AppointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	var items []TreatmentItem
	var total int64
	if len(in.ServiceIDs) > 0 {
		services, err := s.repo.GetServicesByIDs(ctx, in.ServiceIDs)
		if err != nil {
			return nil, fmt.Errorf("load services: %w", err)
		}
		if len(services) != len(dedupe(in.ServiceIDs)) {
			return nil, ErrServiceNotFound
		}
		for _, svc := range services {
			items = append(items, TreatmentItem{
				ServiceID:  svc.ID,
				Name:       svc.Name,
				PriceCents: svc.PriceCents,
			})
			total += svc.PriceCents
		}
	}

	treatment := &Treatment{
		ID:            uuid.New(),
		AppointmentID: appt.ID,
		// Treatment snapshots copy the appointment's own write-once blocks,
		// never the live source entities.
		PatientSnap: appt.PatientSnap,
		DoctorSnap:  appt.DoctorSnap,
		AppointmentSnap: &AppointmentSnapshot{
			Day:       appt.Day,
			TimeLabel: appt.TimeLabel,
			Reason:    appt.Reason,
		},
		Items:      items,
		Notes:      in.Notes,
		TotalCents: total,
	}
	invoice := &Invoice{
		ID:          uuid.New(),
		TreatmentID: treatment.ID,
		AmountCents: total,
		Status:      "unpaid",
	}

	err = s.repo.CreateTreatmentCompletingAppointment(ctx, treatment, invoice,
		[]AppointmentStatus{StatusPending, StatusConfirmed})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("create treatment: %w", err)
	}

	s.log.Info().
		Str("treatment_id", treatment.ID.String()).
		Str("appointment_id", appt.ID.String()).
		Int64("total_cents", total).
		Msg("treatment recorded, appointment completed")

	return treatment, nil
}

// transitionError distinguishes "no such appointment" from "exists but in a
// status the write path does not allow".
func (s *LifecycleService) transitionError(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetAppointmentByID(ctx, id); err != nil {
		return err
	}
	return ErrInvalidStatusTransition
}
