package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// SnapshotBuilder copies fixed field projections out of source entities at
// capture time. A missing source yields a nil snapshot, not an error: callers
// that require the entity to exist check that separately before building.
type SnapshotBuilder struct {
	repo Repository
}

func NewSnapshotBuilder(repo Repository) *SnapshotBuilder {
	return &SnapshotBuilder{repo: repo}
}

func patientSnapshotOf(p *Patient) *PatientSnapshot {
	return &PatientSnapshot{
		Name:        p.Name,
		Phone:       strVal(p.Phone),
		Gender:      strVal(p.Gender),
		DateOfBirth: p.DateOfBirth,
	}
}

func familyMemberSnapshotOf(f *FamilyMember) *PatientSnapshot {
	return &PatientSnapshot{
		Name:        f.Name,
		Phone:       strVal(f.Phone),
		Gender:      strVal(f.Gender),
		DateOfBirth: f.DateOfBirth,
	}
}

func doctorSnapshotOf(d *Doctor) *DoctorSnapshot {
	return &DoctorSnapshot{
		Name:            d.Name,
		Phone:           strVal(d.Phone),
		YearsExperience: d.YearsExperience,
	}
}

func specialtySnapshotOf(s *Specialty) *SpecialtySnapshot {
	return &SpecialtySnapshot{
		Name:        s.Name,
		Description: strVal(s.Description),
	}
}

// BuildPatientSnapshot resolves the health-profile indirection to find the
// actual subject of care, then copies that person's fields.
func (b *SnapshotBuilder) BuildPatientSnapshot(ctx context.Context, subjectOfCareID uuid.UUID) (*PatientSnapshot, error) {
	hp, err := b.repo.GetHealthProfileByID(ctx, subjectOfCareID)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load health profile: %w", err)
	}

	kind, id := hp.Subject()
	if kind == SubjectFamilyMember {
		fm, err := b.repo.GetFamilyMemberByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrSubjectNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("load family member: %w", err)
		}
		return familyMemberSnapshotOf(fm), nil
	}

	p, err := b.repo.GetPatientByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	return patientSnapshotOf(p), nil
}

func (b *SnapshotBuilder) BuildDoctorSnapshot(ctx context.Context, doctorID uuid.UUID) (*DoctorSnapshot, error) {
	d, err := b.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	return doctorSnapshotOf(d), nil
}

func (b *SnapshotBuilder) BuildSpecialtySnapshot(ctx context.Context, specialtyID uuid.UUID) (*SpecialtySnapshot, error) {
	s, err := b.repo.GetSpecialtyByID(ctx, specialtyID)
	if err != nil {
		if errors.Is(err, ErrSpecialtyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load specialty: %w", err)
	}
	return specialtySnapshotOf(s), nil
}

// Batch variants. These exist for bulk backfill/read throughput: one lookup
// per entity collection, joined in memory. Per-record output is identical to
// the single-record builders.

func (b *SnapshotBuilder) BuildPatientSnapshots(ctx context.Context, subjectOfCareIDs []uuid.UUID) (map[uuid.UUID]*PatientSnapshot, error) {
	out := make(map[uuid.UUID]*PatientSnapshot, len(subjectOfCareIDs))
	if len(subjectOfCareIDs) == 0 {
		return out, nil
	}

	profiles, err := b.repo.GetHealthProfilesByIDs(ctx, dedupe(subjectOfCareIDs))
	if err != nil {
		return nil, fmt.Errorf("load health profiles: %w", err)
	}

	var patientIDs, familyIDs []uuid.UUID
	for i := range profiles {
		kind, id := profiles[i].Subject()
		if kind == SubjectFamilyMember {
			familyIDs = append(familyIDs, id)
		} else {
			patientIDs = append(patientIDs, id)
		}
	}

	patients := make(map[uuid.UUID]*Patient)
	if len(patientIDs) > 0 {
		rows, err := b.repo.GetPatientsByIDs(ctx, dedupe(patientIDs))
		if err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
		for i := range rows {
			patients[rows[i].ID] = &rows[i]
		}
	}

	familyMembers := make(map[uuid.UUID]*FamilyMember)
	if len(familyIDs) > 0 {
		rows, err := b.repo.GetFamilyMembersByIDs(ctx, dedupe(familyIDs))
		if err != nil {
			return nil, fmt.Errorf("load family members: %w", err)
		}
		for i := range rows {
			familyMembers[rows[i].ID] = &rows[i]
		}
	}

	for i := range profiles {
		hp := &profiles[i]
		kind, id := hp.Subject()
		if kind == SubjectFamilyMember {
			if fm, ok := familyMembers[id]; ok {
				out[hp.ID] = familyMemberSnapshotOf(fm)
			}
			continue
		}
		if p, ok := patients[id]; ok {
			out[hp.ID] = patientSnapshotOf(p)
		}
	}
	return out, nil
}

func (b *SnapshotBuilder) BuildDoctorSnapshots(ctx context.Context, doctorIDs []uuid.UUID) (map[uuid.UUID]*DoctorSnapshot, error) {
	out := make(map[uuid.UUID]*DoctorSnapshot, len(doctorIDs))
	if len(doctorIDs) == 0 {
		return out, nil
	}
	rows, err := b.repo.GetDoctorsByIDs(ctx, dedupe(doctorIDs))
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for i := range rows {
		out[rows[i].ID] = doctorSnapshotOf(&rows[i])
	}
	return out, nil
}

func (b *SnapshotBuilder) BuildSpecialtySnapshots(ctx context.Context, specialtyIDs []uuid.UUID) (map[uuid.UUID]*SpecialtySnapshot, error) {
	out := make(map[uuid.UUID]*SpecialtySnapshot, len(specialtyIDs))
	if len(specialtyIDs) == 0 {
		return out, nil
	}
	rows, err := b.repo.GetSpecialtiesByIDs(ctx, dedupe(specialtyIDs))
	if err != nil {
		return nil, fmt.Errorf("load specialties: %w", err)
	}
	for i := range rows {
		out[rows[i].ID] = specialtySnapshotOf(&rows[i])
	}
	return out, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
