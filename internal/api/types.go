package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-scheduling/internal/scheduling"
)

type BookByDoctorRequest struct {
	BookerID        string `json:"booker_id"`
	SubjectOfCareID string `json:"subject_of_care_id"`
	DoctorID        string `json:"doctor_id"`
	Date            string `json:"date"` // "2006-01-02"
	TimeLabel       string `json:"time_label"`
	Reason          string `json:"reason"`
}

type BookBySpecialtyRequest struct {
	BookerID        string `json:"booker_id"`
	SubjectOfCareID string `json:"subject_of_care_id"`
	SpecialtyID     string `json:"specialty_id"`
	Date            string `json:"date"`
	TimeLabel       string `json:"time_label"`
	Reason          string `json:"reason"`
}

type AssignDoctorRequest struct {
	DoctorID string `json:"doctor_id"`
}

type CreateTreatmentRequest struct {
	ServiceIDs []string `json:"service_ids"`
	Notes      string   `json:"notes"`
}

type GenerateSchedulesRequest struct {
	StartDate string `json:"start_date"` // defaults to today
	DaysAhead int    `json:"days_ahead"` // defaults to configured horizon
}

type PurgeSchedulesRequest struct {
	RetentionDays int `json:"retention_days"` // defaults to configured retention
}

type AppointmentResponse struct {
	ID              uuid.UUID                     `json:"id"`
	BookerID        uuid.UUID                     `json:"booker_id"`
	SubjectOfCareID uuid.UUID                     `json:"subject_of_care_id"`
	SubjectKind     string                        `json:"subject_kind"`
	DoctorID        *uuid.UUID                    `json:"doctor_id,omitempty"`
	SpecialtyID     uuid.UUID                     `json:"specialty_id"`
	Date            string                        `json:"date"`
	TimeLabel       string                        `json:"time_label"`
	SlotID          *uuid.UUID                    `json:"slot_id,omitempty"`
	Reason          string                        `json:"reason,omitempty"`
	Status          string                        `json:"status"`
	Patient         *scheduling.PatientSnapshot   `json:"patient,omitempty"`
	Doctor          *scheduling.DoctorSnapshot    `json:"doctor,omitempty"`
	Specialty       *scheduling.SpecialtySnapshot `json:"specialty,omitempty"`
	CreatedAt       time.Time                     `json:"created_at"`
	UpdatedAt       time.Time                     `json:"updated_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		BookerID:        a.BookerID,
		SubjectOfCareID: a.HealthProfileID,
		SubjectKind:     string(a.SubjectKind),
		DoctorID:        a.DoctorID,
		SpecialtyID:     a.SpecialtyID,
		Date:            a.Day.Format("2006-01-02"),
		TimeLabel:       a.TimeLabel,
		SlotID:          a.SlotID,
		Reason:          a.Reason,
		Status:          string(a.Status),
		Patient:         a.PatientSnap,
		Doctor:          a.DoctorSnap,
		Specialty:       a.SpecialtySnap,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

type TreatmentResponse struct {
	ID            uuid.UUID                       `json:"id"`
	AppointmentID uuid.UUID                       `json:"appointment_id"`
	Patient       *scheduling.PatientSnapshot     `json:"patient,omitempty"`
	Doctor        *scheduling.DoctorSnapshot      `json:"doctor,omitempty"`
	Appointment   *scheduling.AppointmentSnapshot `json:"appointment,omitempty"`
	Items         []scheduling.TreatmentItem      `json:"items"`
	Notes         string                          `json:"notes,omitempty"`
	TotalCents    int64                           `json:"total_cents"`
}

type GenerateSchedulesResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type PurgeSchedulesResponse struct {
	Deleted int64 `json:"deleted"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
