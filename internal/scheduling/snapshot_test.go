package scheduling

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPatientSnapshot(t *testing.T) {
	repo := newMemRepo()
	patient := repo.addPatient("Linh Nguyen")
	profile := repo.addProfile(patient.ID)
	member, memberProfile := repo.addFamilyProfile(patient.ID, "Bao Nguyen")
	b := NewSnapshotBuilder(repo)
	ctx := context.Background()

	snap, err := b.BuildPatientSnapshot(ctx, profile.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, patient.Name, snap.Name)
	assert.Equal(t, "555-0202", snap.Phone)

	snap, err = b.BuildPatientSnapshot(ctx, memberProfile.ID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, member.Name, snap.Name)

	// Missing source yields nil, not an error.
	snap, err = b.BuildPatientSnapshot(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestBuildDoctorAndSpecialtySnapshots(t *testing.T) {
	repo := newMemRepo()
	specialty := repo.addSpecialty("Cardiology")
	doc := repo.addDoctor("Dr. Hoang", specialty.ID)
	b := NewSnapshotBuilder(repo)
	ctx := context.Background()

	dsnap, err := b.BuildDoctorSnapshot(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, dsnap)
	assert.Equal(t, "Dr. Hoang", dsnap.Name)
	assert.Equal(t, 10, dsnap.YearsExperience)

	ssnap, err := b.BuildSpecialtySnapshot(ctx, specialty.ID)
	require.NoError(t, err)
	require.NotNil(t, ssnap)
	assert.Equal(t, "Cardiology", ssnap.Name)
	assert.Equal(t, "Cardiology care", ssnap.Description)

	dsnap, err = b.BuildDoctorSnapshot(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, dsnap)
	ssnap, err = b.BuildSpecialtySnapshot(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, ssnap)
}

// The batch builders must produce byte-for-byte the same snapshots as the
// single-record path.
func TestBatchSnapshotsMatchSingle(t *testing.T) {
	repo := newMemRepo()
	b := NewSnapshotBuilder(repo)
	ctx := context.Background()

	alice := repo.addPatient("Alice")
	aliceProfile := repo.addProfile(alice.ID)
	bob := repo.addPatient("Bob")
	_, bobKidProfile := repo.addFamilyProfile(bob.ID, "Bob Junior")

	specialty := repo.addSpecialty("Neurology")
	docA := repo.addDoctor("Dr. A", specialty.ID)
	docB := repo.addDoctor("Dr. B", specialty.ID)

	missing := uuid.New()
	profileIDs := []uuid.UUID{aliceProfile.ID, bobKidProfile.ID, aliceProfile.ID, missing}

	batch, err := b.BuildPatientSnapshots(ctx, profileIDs)
	require.NoError(t, err)
	assert.Len(t, batch, 2)
	assert.NotContains(t, batch, missing)
	for _, id := range []uuid.UUID{aliceProfile.ID, bobKidProfile.ID} {
		single, err := b.BuildPatientSnapshot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, single, batch[id])
	}

	docBatch, err := b.BuildDoctorSnapshots(ctx, []uuid.UUID{docA.ID, docB.ID, missing})
	require.NoError(t, err)
	assert.Len(t, docBatch, 2)
	for _, id := range []uuid.UUID{docA.ID, docB.ID} {
		single, err := b.BuildDoctorSnapshot(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, single, docBatch[id])
	}

	specBatch, err := b.BuildSpecialtySnapshots(ctx, []uuid.UUID{specialty.ID, missing})
	require.NoError(t, err)
	require.Len(t, specBatch, 1)
	single, err := b.BuildSpecialtySnapshot(ctx, specialty.ID)
	require.NoError(t, err)
	assert.Equal(t, single, specBatch[specialty.ID])
}

func TestBatchSnapshotsEmptyInput(t *testing.T) {
	b := NewSnapshotBuilder(newMemRepo())
	ctx := context.Background()

	out, err := b.BuildPatientSnapshots(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	docs, err := b.BuildDoctorSnapshots(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDedupe(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, []uuid.UUID{a, b}, dedupe([]uuid.UUID{a, b, a, b, a}))
	assert.Empty(t, dedupe(nil))
}
