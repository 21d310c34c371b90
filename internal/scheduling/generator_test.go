package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		RestDay:     time.Sunday,
		SlotMinutes: 30,
		Sessions: []SessionBlock{
			{Start: "08:00", End: "11:30"},
			{Start: "13:30", End: "17:00"},
		},
	}
}

func TestBuildDayGrid(t *testing.T) {
	repo := newMemRepo()
	gen := NewGenerator(repo, testGeneratorConfig(), zerolog.Nop())

	grid, err := gen.buildDayGrid()
	require.NoError(t, err)

	// 3.5h morning + 3.5h afternoon at 30 minutes each.
	require.Len(t, grid, 14)
	assert.Equal(t, "08:00", grid[0].StartTime)
	assert.Equal(t, "08:30", grid[0].EndTime)
	assert.Equal(t, "11:00", grid[6].StartTime)
	assert.Equal(t, "13:30", grid[7].StartTime)
	assert.Equal(t, "16:30", grid[13].StartTime)
	assert.Equal(t, "17:00", grid[13].EndTime)
	for _, s := range grid {
		assert.False(t, s.Booked)
		assert.Nil(t, s.AppointmentID)
	}
}

func TestBuildDayGridBadSession(t *testing.T) {
	repo := newMemRepo()
	cfg := testGeneratorConfig()
	cfg.Sessions = []SessionBlock{{Start: "nope", End: "11:30"}}
	gen := NewGenerator(repo, cfg, zerolog.Nop())

	_, err := gen.buildDayGrid()
	assert.Error(t, err)
}

func TestGenerateForHorizon(t *testing.T) {
	repo := newMemRepo()
	specialty := repo.addSpecialty("General Practice")
	docA := repo.addDoctor("Dr. A", specialty.ID)
	docB := repo.addDoctor("Dr. B", specialty.ID)
	gen := NewGenerator(repo, testGeneratorConfig(), zerolog.Nop())

	// A Monday, so the 7-day horizon contains exactly one rest day.
	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	res, err := gen.GenerateForHorizon(context.Background(), monday, 7)
	require.NoError(t, err)

	assert.Equal(t, 12, res.Created, "6 working days for each of 2 doctors")
	assert.Equal(t, 0, res.Skipped)

	sched, err := repo.GetScheduleByDoctorDay(context.Background(), docA.ID, monday)
	require.NoError(t, err)
	slots, err := repo.ListSlotsBySchedule(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 14)

	// Rest day has no schedule for anyone.
	sunday := monday.AddDate(0, 0, 6)
	_, err = repo.GetScheduleByDoctorDay(context.Background(), docA.ID, sunday)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	_, err = repo.GetScheduleByDoctorDay(context.Background(), docB.ID, sunday)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestGenerateForHorizonIdempotent(t *testing.T) {
	repo := newMemRepo()
	specialty := repo.addSpecialty("General Practice")
	doc := repo.addDoctor("Dr. A", specialty.ID)
	gen := NewGenerator(repo, testGeneratorConfig(), zerolog.Nop())

	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	first, err := gen.GenerateForHorizon(context.Background(), monday, 7)
	require.NoError(t, err)
	require.Equal(t, 6, first.Created)

	// Book a slot between runs; the rerun must not disturb it.
	sched, err := repo.GetScheduleByDoctorDay(context.Background(), doc.ID, monday)
	require.NoError(t, err)
	require.NotNil(t, repo.slotByStart(sched.ID, "08:00"))
	appt := &Appointment{ID: uuid.New(), BookerID: uuid.New(), Status: StatusPending}
	_, err = repo.CreateAppointmentReservingSlot(context.Background(), appt, sched.ID, "08:00")
	require.NoError(t, err)

	second, err := gen.GenerateForHorizon(context.Background(), monday, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 6, second.Skipped)

	slots, err := repo.ListSlotsBySchedule(context.Background(), sched.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 14, "rerun does not duplicate the slot grid")
	assert.True(t, repo.slotByStart(sched.ID, "08:00").Booked, "rerun leaves booked slots alone")
}

func TestGenerateForHorizonOverlappingRanges(t *testing.T) {
	repo := newMemRepo()
	specialty := repo.addSpecialty("General Practice")
	repo.addDoctor("Dr. A", specialty.ID)
	gen := NewGenerator(repo, testGeneratorConfig(), zerolog.Nop())

	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	_, err := gen.GenerateForHorizon(context.Background(), monday, 3)
	require.NoError(t, err)

	// Overlaps the first range by two days and extends it by two.
	res, err := gen.GenerateForHorizon(context.Background(), monday.AddDate(0, 0, 1), 4)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 2, res.Skipped)
}

func TestPurgeOlderThan(t *testing.T) {
	repo := newMemRepo()
	specialty := repo.addSpecialty("General Practice")
	doc := repo.addDoctor("Dr. A", specialty.ID)
	gen := NewGenerator(repo, testGeneratorConfig(), zerolog.Nop())

	today := dateOnly(time.Now())
	oldDay := today.AddDate(0, 0, -40)
	recentDay := today.AddDate(0, 0, -5)
	oldSched := repo.addSchedule(doc.ID, oldDay, "09:00")
	repo.addSchedule(doc.ID, recentDay, "09:00")

	deleted, err := gen.PurgeOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetScheduleByDoctorDay(context.Background(), doc.ID, oldDay)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	_, err = repo.GetScheduleByDoctorDay(context.Background(), doc.ID, recentDay)
	assert.NoError(t, err)

	slots, err := repo.ListSlotsBySchedule(context.Background(), oldSched.ID)
	require.NoError(t, err)
	assert.Empty(t, slots, "slots go with their schedule")
}
