package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

func bookByDoctorHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookByDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookerID, ok := parseID(w, req.BookerID, "booker_id")
		if !ok {
			return
		}
		subjectID, ok := parseID(w, req.SubjectOfCareID, "subject_of_care_id")
		if !ok {
			return
		}
		doctorID, ok := parseID(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}
		day, ok := parseDate(w, req.Date)
		if !ok {
			return
		}

		appt, err := svc.BookByDoctor(r.Context(), scheduling.BookByDoctorInput{
			BookerID:        bookerID,
			SubjectOfCareID: subjectID,
			DoctorID:        doctorID,
			Day:             day,
			TimeLabel:       req.TimeLabel,
			Reason:          req.Reason,
		})
		if err != nil {
			handleBookingError(w, err, "invalid_time_slot")
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func bookBySpecialtyHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookBySpecialtyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		bookerID, ok := parseID(w, req.BookerID, "booker_id")
		if !ok {
			return
		}
		subjectID, ok := parseID(w, req.SubjectOfCareID, "subject_of_care_id")
		if !ok {
			return
		}
		specialtyID, ok := parseID(w, req.SpecialtyID, "specialty_id")
		if !ok {
			return
		}
		day, ok := parseDate(w, req.Date)
		if !ok {
			return
		}

		appt, err := svc.BookBySpecialty(r.Context(), scheduling.BookBySpecialtyInput{
			BookerID:        bookerID,
			SubjectOfCareID: subjectID,
			SpecialtyID:     specialtyID,
			Day:             day,
			TimeLabel:       req.TimeLabel,
			Reason:          req.Reason,
		})
		if err != nil {
			handleBookingError(w, err, "invalid_time_slot")
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func assignDoctorHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := parseID(w, chi.URLParam(r, "id"), "appointment id")
		if !ok {
			return
		}

		var req AssignDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		doctorID, ok := parseID(w, req.DoctorID, "doctor_id")
		if !ok {
			return
		}

		appt, err := svc.AssignDoctor(r.Context(), apptID, doctorID)
		if err != nil {
			handleBookingError(w, err, "slot_not_found")
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func confirmAppointmentHandler(svc *scheduling.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, chi.URLParam(r, "id"), "appointment id")
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), id)
		if err != nil {
			handleLifecycleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, chi.URLParam(r, "id"), "appointment id")
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), id)
		if err != nil {
			handleLifecycleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func createTreatmentHandler(svc *scheduling.LifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apptID, ok := parseID(w, chi.URLParam(r, "id"), "appointment id")
		if !ok {
			return
		}

		var req CreateTreatmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		serviceIDs := make([]uuid.UUID, 0, len(req.ServiceIDs))
		for _, raw := range req.ServiceIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_service_id", "service_ids must be valid UUIDs")
				return
			}
			serviceIDs = append(serviceIDs, id)
		}

		treatment, err := svc.CreateTreatment(r.Context(), scheduling.TreatmentInput{
			AppointmentID: apptID,
			ServiceIDs:    serviceIDs,
			Notes:         req.Notes,
		})
		if err != nil {
			handleLifecycleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, TreatmentResponse{
			ID:            treatment.ID,
			AppointmentID: treatment.AppointmentID,
			Patient:       treatment.PatientSnap,
			Doctor:        treatment.DoctorSnap,
			Appointment:   treatment.AppointmentSnap,
			Items:         treatment.Items,
			Notes:         treatment.Notes,
			TotalCents:    treatment.TotalCents,
		})
	}
}

func getAppointmentHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, chi.URLParam(r, "id"), "appointment id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler serves the by-booker, by-doctor, by-day and
// by-month read paths. All of them return snapshot-backed records only.
func listAppointmentsHandler(svc *scheduling.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := intQuery(q.Get("limit"), 20)
		offset := intQuery(q.Get("offset"), 0)

		var (
			appts []scheduling.Appointment
			err   error
		)

		switch {
		case q.Get("booker_id") != "":
			var id uuid.UUID
			if id, err = uuid.Parse(q.Get("booker_id")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_booker_id", "booker_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByBooker(r.Context(), id, limit, offset)
		case q.Get("doctor_id") != "":
			var id uuid.UUID
			if id, err = uuid.Parse(q.Get("doctor_id")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			appts, err = svc.ListByDoctor(r.Context(), id, limit, offset)
		case q.Get("day") != "":
			var day time.Time
			if day, err = time.Parse("2006-01-02", q.Get("day")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_day", "day must be YYYY-MM-DD")
				return
			}
			appts, err = svc.ListByDay(r.Context(), day)
		case q.Get("month") != "":
			var month time.Time
			if month, err = time.Parse("2006-01", q.Get("month")); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_month", "month must be YYYY-MM")
				return
			}
			appts, err = svc.ListByMonth(r.Context(), month.Year(), month.Month())
		default:
			writeError(w, http.StatusBadRequest, "missing_filter", "one of booker_id, doctor_id, day or month is required")
			return
		}

		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			out = append(out, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func generateSchedulesHandler(gen *scheduling.Generator, defaultDays int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateSchedulesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		start := time.Now()
		if req.StartDate != "" {
			parsed, err := time.Parse("2006-01-02", req.StartDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
				return
			}
			start = parsed
		}
		days := req.DaysAhead
		if days <= 0 {
			days = defaultDays
		}

		res, err := gen.GenerateForHorizon(r.Context(), start, days)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, GenerateSchedulesResponse{Created: res.Created, Skipped: res.Skipped})
	}
}

func purgeSchedulesHandler(gen *scheduling.Generator, defaultRetention int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PurgeSchedulesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		retention := req.RetentionDays
		if retention <= 0 {
			retention = defaultRetention
		}

		deleted, err := gen.PurgeOlderThan(r.Context(), retention)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, PurgeSchedulesResponse{Deleted: deleted})
	}
}

// handleBookingError maps booking/assignment errors onto HTTP codes.
// slotMissingCode differs per endpoint: the create path reports an invalid
// time slot, the assign path a missing slot.
func handleBookingError(w http.ResponseWriter, err error, slotMissingCode string) {
	switch {
	case errors.Is(err, scheduling.ErrMissingField):
		writeError(w, http.StatusBadRequest, "missing_field", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "booker_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSubjectNotFound):
		writeError(w, http.StatusNotFound, "subject_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSpecialtyNotFound):
		writeError(w, http.StatusNotFound, "specialty_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrNotWaitingAssigned):
		writeError(w, http.StatusConflict, "not_waiting_assigned", err.Error())
	case errors.Is(err, scheduling.ErrSpecialtyMismatch):
		writeError(w, http.StatusConflict, "specialty_mismatch", err.Error())
	case errors.Is(err, scheduling.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "no_schedule_for_date", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, slotMissingCode, err.Error())
	case errors.Is(err, scheduling.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrMissingField):
		writeError(w, http.StatusBadRequest, "missing_field", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_field", field+" is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "date is required")
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return day, true
}

func intQuery(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
