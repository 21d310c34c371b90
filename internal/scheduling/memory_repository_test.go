package scheduling

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is a map-backed Repository for tests. The single mutex gives it the
// same atomicity the Postgres transactions give the real one, so the
// concurrency tests exercise the service logic, not fake-specific races.
type memRepo struct {
	mu             sync.Mutex
	patients       map[uuid.UUID]Patient
	familyMembers  map[uuid.UUID]FamilyMember
	healthProfiles map[uuid.UUID]HealthProfile
	doctors        map[uuid.UUID]Doctor
	specialties    map[uuid.UUID]Specialty
	services       map[uuid.UUID]CareService
	doctorOrder    []uuid.UUID
	schedules      map[uuid.UUID]Schedule
	slots          map[uuid.UUID]*Slot
	appointments   map[uuid.UUID]*Appointment
	treatments     map[uuid.UUID]*Treatment
	invoices       map[uuid.UUID]*Invoice
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients:       make(map[uuid.UUID]Patient),
		familyMembers:  make(map[uuid.UUID]FamilyMember),
		healthProfiles: make(map[uuid.UUID]HealthProfile),
		doctors:        make(map[uuid.UUID]Doctor),
		specialties:    make(map[uuid.UUID]Specialty),
		services:       make(map[uuid.UUID]CareService),
		schedules:      make(map[uuid.UUID]Schedule),
		slots:          make(map[uuid.UUID]*Slot),
		appointments:   make(map[uuid.UUID]*Appointment),
		treatments:     make(map[uuid.UUID]*Treatment),
		invoices:       make(map[uuid.UUID]*Invoice),
	}
}

// Fixture helpers

func strptr(s string) *string { return &s }

func (r *memRepo) addSpecialty(name string) Specialty {
	s := Specialty{ID: uuid.New(), Name: name, Description: strptr(name + " care")}
	r.specialties[s.ID] = s
	return s
}

func (r *memRepo) addDoctor(name string, specialtyID uuid.UUID) Doctor {
	d := Doctor{ID: uuid.New(), Name: name, Phone: strptr("555-0101"), SpecialtyID: specialtyID, YearsExperience: 10}
	r.doctors[d.ID] = d
	r.doctorOrder = append(r.doctorOrder, d.ID)
	return d
}

func (r *memRepo) addPatient(name string) Patient {
	p := Patient{ID: uuid.New(), Name: name, Phone: strptr("555-0202")}
	r.patients[p.ID] = p
	return p
}

// addProfile gives the patient a health profile naming themselves as the
// subject of care.
func (r *memRepo) addProfile(patientID uuid.UUID) HealthProfile {
	hp := HealthProfile{ID: uuid.New(), PatientID: patientID}
	r.healthProfiles[hp.ID] = hp
	return hp
}

// addFamilyProfile gives the patient a family member plus a profile pointing
// at that member.
func (r *memRepo) addFamilyProfile(patientID uuid.UUID, memberName string) (FamilyMember, HealthProfile) {
	fm := FamilyMember{ID: uuid.New(), PatientID: patientID, Name: memberName, Phone: strptr("555-0303")}
	r.familyMembers[fm.ID] = fm
	memberID := fm.ID
	hp := HealthProfile{ID: uuid.New(), PatientID: patientID, FamilyMemberID: &memberID}
	r.healthProfiles[hp.ID] = hp
	return fm, hp
}

func (r *memRepo) addService(name string, priceCents int64) CareService {
	s := CareService{ID: uuid.New(), Name: name, PriceCents: priceCents}
	r.services[s.ID] = s
	return s
}

// addSchedule creates a schedule with one 30-minute slot per given start time.
func (r *memRepo) addSchedule(doctorID uuid.UUID, day time.Time, starts ...string) Schedule {
	sched := Schedule{ID: uuid.New(), DoctorID: doctorID, Day: day, CreatedAt: time.Now()}
	r.schedules[sched.ID] = sched
	for _, start := range starts {
		slot := &Slot{ID: uuid.New(), ScheduleID: sched.ID, StartTime: start, EndTime: start}
		if mins, err := minutesOfDay(start); err == nil {
			slot.EndTime = formatMinutes(mins + 30)
		}
		r.slots[slot.ID] = slot
	}
	return sched
}

func (r *memRepo) slotByStart(scheduleID uuid.UUID, start string) *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.slots {
		if s.ScheduleID == scheduleID && s.StartTime == start {
			return s
		}
	}
	return nil
}

// Reference lookups

func (r *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepo) GetFamilyMemberByID(_ context.Context, id uuid.UUID) (*FamilyMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.familyMembers[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	return &f, nil
}

func (r *memRepo) GetHealthProfileByID(_ context.Context, id uuid.UUID) (*HealthProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hp, ok := r.healthProfiles[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	return &hp, nil
}

func (r *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *memRepo) GetSpecialtyByID(_ context.Context, id uuid.UUID) (*Specialty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.specialties[id]
	if !ok {
		return nil, ErrSpecialtyNotFound
	}
	return &s, nil
}

func (r *memRepo) GetServicesByIDs(_ context.Context, ids []uuid.UUID) ([]CareService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]struct{})
	var out []CareService
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if s, ok := r.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) ListDoctorIDs(_ context.Context) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uuid.UUID, len(r.doctorOrder))
	copy(out, r.doctorOrder)
	return out, nil
}

// Bulk lookups

func (r *memRepo) GetHealthProfilesByIDs(_ context.Context, ids []uuid.UUID) ([]HealthProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []HealthProfile
	for _, id := range ids {
		if hp, ok := r.healthProfiles[id]; ok {
			out = append(out, hp)
		}
	}
	return out, nil
}

func (r *memRepo) GetPatientsByIDs(_ context.Context, ids []uuid.UUID) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Patient
	for _, id := range ids {
		if p, ok := r.patients[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memRepo) GetFamilyMembersByIDs(_ context.Context, ids []uuid.UUID) ([]FamilyMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FamilyMember
	for _, id := range ids {
		if f, ok := r.familyMembers[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *memRepo) GetDoctorsByIDs(_ context.Context, ids []uuid.UUID) ([]Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Doctor
	for _, id := range ids {
		if d, ok := r.doctors[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) GetSpecialtiesByIDs(_ context.Context, ids []uuid.UUID) ([]Specialty, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Specialty
	for _, id := range ids {
		if s, ok := r.specialties[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Slot inventory

func (r *memRepo) GetScheduleByDoctorDay(_ context.Context, doctorID uuid.UUID, day time.Time) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.DoctorID == doctorID && s.Day.Equal(day) {
			sched := s
			return &sched, nil
		}
	}
	return nil, ErrScheduleNotFound
}

func (r *memRepo) ListSlotsBySchedule(_ context.Context, scheduleID uuid.UUID) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, s := range r.slots {
		if s.ScheduleID == scheduleID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r *memRepo) CreateScheduleWithSlots(_ context.Context, schedule *Schedule, slots []Slot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.DoctorID == schedule.DoctorID && s.Day.Equal(schedule.Day) {
			return false, nil
		}
	}
	schedule.CreatedAt = time.Now()
	r.schedules[schedule.ID] = *schedule
	for i := range slots {
		slot := slots[i]
		slot.ScheduleID = schedule.ID
		r.slots[slot.ID] = &slot
	}
	return true, nil
}

func (r *memRepo) DeleteSchedulesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, s := range r.schedules {
		if s.Day.Before(cutoff) {
			delete(r.schedules, id)
			deleted++
			for slotID, slot := range r.slots {
				if slot.ScheduleID == id {
					delete(r.slots, slotID)
				}
			}
		}
	}
	return deleted, nil
}

func (r *memRepo) ReleaseSlot(_ context.Context, slotID, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[slotID]
	if !ok || s.AppointmentID == nil || *s.AppointmentID != appointmentID {
		return nil
	}
	s.Booked = false
	s.AppointmentID = nil
	return nil
}

// reserveSlotLocked mirrors the conditional-update reservation: exact start
// match first, already-booked detection, then the prefix fallback. Callers
// hold the mutex.
func (r *memRepo) reserveSlotLocked(scheduleID uuid.UUID, startHHMM string, appointmentID uuid.UUID) (*Slot, error) {
	for _, s := range r.slots {
		if s.ScheduleID == scheduleID && s.StartTime == startHHMM {
			if s.Booked {
				return nil, ErrSlotAlreadyBooked
			}
			s.Booked = true
			id := appointmentID
			s.AppointmentID = &id
			out := *s
			return &out, nil
		}
	}

	var candidates []*Slot
	for _, s := range r.slots {
		if s.ScheduleID == scheduleID && strings.HasPrefix(s.StartTime, startHHMM) && !s.Booked {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrSlotNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].StartTime < candidates[j].StartTime })

	s := candidates[0]
	s.Booked = true
	id := appointmentID
	s.AppointmentID = &id
	out := *s
	return &out, nil
}

// Booking

func (r *memRepo) CreateAppointment(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := *a
	r.appointments[a.ID] = &stored
	return nil
}

func (r *memRepo) CreateAppointmentReservingSlot(_ context.Context, a *Appointment, scheduleID uuid.UUID, startHHMM string) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, err := r.reserveSlotLocked(scheduleID, startHHMM, a.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	a.SlotID = &slot.ID
	a.CreatedAt = now
	a.UpdatedAt = now
	stored := *a
	r.appointments[a.ID] = &stored
	return slot, nil
}

func (r *memRepo) AssignDoctorReservingSlot(_ context.Context, appointmentID, doctorID uuid.UUID, snap *DoctorSnapshot, scheduleID uuid.UUID, startHHMM string) (*Appointment, *Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, err := r.reserveSlotLocked(scheduleID, startHHMM, appointmentID)
	if err != nil {
		return nil, nil, err
	}

	appt, ok := r.appointments[appointmentID]
	if !ok || appt.Status != StatusWaitingAssigned {
		// Matches the transactional rollback: the reservation is undone.
		if s := r.slots[slot.ID]; s != nil {
			s.Booked = false
			s.AppointmentID = nil
		}
		return nil, nil, ErrAppointmentNotFound
	}

	docID := doctorID
	appt.DoctorID = &docID
	appt.DoctorSnap = snap
	appt.SlotID = &slot.ID
	appt.Status = StatusPending
	appt.UpdatedAt = time.Now()

	out := *appt
	return &out, slot, nil
}

// Reads and lifecycle

func (r *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *memRepo) listLocked(match func(*Appointment) bool) []Appointment {
	var out []Appointment
	for _, a := range r.appointments {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Day.Equal(out[j].Day) {
			return out[i].Day.After(out[j].Day)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func page(appts []Appointment, limit, offset int) []Appointment {
	if offset >= len(appts) {
		return nil
	}
	appts = appts[offset:]
	if limit < len(appts) {
		appts = appts[:limit]
	}
	return appts
}

func (r *memRepo) ListAppointmentsByBooker(_ context.Context, bookerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return page(r.listLocked(func(a *Appointment) bool { return a.BookerID == bookerID }), limit, offset), nil
}

func (r *memRepo) ListAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return page(r.listLocked(func(a *Appointment) bool {
		return a.DoctorID != nil && *a.DoctorID == doctorID
	}), limit, offset), nil
}

func (r *memRepo) ListAppointmentsByDay(_ context.Context, day time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(func(a *Appointment) bool { return a.Day.Equal(day) }), nil
}

func (r *memRepo) ListAppointmentsByMonth(_ context.Context, year int, month time.Month) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(func(a *Appointment) bool {
		return a.Day.Year() == year && a.Day.Month() == month
	}), nil
}

func (r *memRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || !statusIn(a.Status, from) {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	out := *a
	return &out, nil
}

func (r *memRepo) CreateTreatmentCompletingAppointment(_ context.Context, t *Treatment, inv *Invoice, from []AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[t.AppointmentID]
	if !ok || !statusIn(a.Status, from) {
		return ErrAppointmentNotFound
	}
	a.Status = StatusCompleted
	a.UpdatedAt = time.Now()

	t.CreatedAt = time.Now()
	stored := *t
	r.treatments[t.ID] = &stored
	if inv != nil {
		inv.CreatedAt = time.Now()
		storedInv := *inv
		r.invoices[inv.ID] = &storedInv
	}
	return nil
}

func statusIn(status AppointmentStatus, set []AppointmentStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
