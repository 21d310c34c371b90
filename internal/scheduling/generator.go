package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionBlock is one stretch of a working day that gets split into slots.
type SessionBlock struct {
	Start string // "HH:MM"
	End   string // "HH:MM"
}

// GeneratorConfig controls the shape of the default slot grid and which days
// get schedules at all.
type GeneratorConfig struct {
	RestDay     time.Weekday
	SlotMinutes int
	Sessions    []SessionBlock
}

// Generator materializes future schedules for every doctor and purges old
// ones. Both operations are safe to invoke repeatedly over the same range.
type Generator struct {
	repo Repository
	cfg  GeneratorConfig
	log  zerolog.Logger
}

func NewGenerator(repo Repository, cfg GeneratorConfig, log zerolog.Logger) *Generator {
	return &Generator{repo: repo, cfg: cfg, log: log}
}

// buildDayGrid splits the configured session blocks into fixed-width slots.
func (g *Generator) buildDayGrid() ([]Slot, error) {
	var slots []Slot
	for _, session := range g.cfg.Sessions {
		start, err := minutesOfDay(session.Start)
		if err != nil {
			return nil, fmt.Errorf("session start: %w", err)
		}
		end, err := minutesOfDay(session.End)
		if err != nil {
			return nil, fmt.Errorf("session end: %w", err)
		}
		for at := start; at+g.cfg.SlotMinutes <= end; at += g.cfg.SlotMinutes {
			slots = append(slots, Slot{
				ID:        uuid.New(),
				StartTime: formatMinutes(at),
				EndTime:   formatMinutes(at + g.cfg.SlotMinutes),
			})
		}
	}
	return slots, nil
}

// GenerateForHorizon creates a schedule with the default slot grid for every
// doctor and every day in [startDate, startDate+daysAhead), skipping the rest
// day. Existing (doctor, day) pairs are counted as skipped; the unique index
// is the backstop against a duplicate-insert race, and a duplicate outcome is
// a successful skip, never an error. A failure on one doctor/day is logged
// and does not abort the rest of the batch.
func (g *Generator) GenerateForHorizon(ctx context.Context, startDate time.Time, daysAhead int) (GenerateResult, error) {
	var res GenerateResult

	doctorIDs, err := g.repo.ListDoctorIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list doctors: %w", err)
	}

	start := dateOnly(startDate)
	for offset := 0; offset < daysAhead; offset++ {
		day := start.AddDate(0, 0, offset)
		if day.Weekday() == g.cfg.RestDay {
			continue
		}

		for _, doctorID := range doctorIDs {
			grid, err := g.buildDayGrid()
			if err != nil {
				return res, err
			}

			created, err := g.repo.CreateScheduleWithSlots(ctx, &Schedule{
				ID:       uuid.New(),
				DoctorID: doctorID,
				Day:      day,
			}, grid)
			if err != nil {
				g.log.Error().Err(err).
					Str("doctor_id", doctorID.String()).
					Str("day", day.Format("2006-01-02")).
					Msg("schedule generation failed, continuing")
				continue
			}
			if created {
				res.Created++
			} else {
				res.Skipped++
			}
		}
	}

	g.log.Info().
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Str("start", start.Format("2006-01-02")).
		Int("days_ahead", daysAhead).
		Msg("schedule generation complete")

	return res, nil
}

// PurgeOlderThan deletes every schedule older than the retention threshold.
// Slots go with their schedule. This is deliberately unconditional:
// appointments keep slot ids for information only and read from their own
// snapshots, so nothing breaks when old inventory disappears.
func (g *Generator) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := dateOnly(time.Now()).AddDate(0, 0, -retentionDays)
	deleted, err := g.repo.DeleteSchedulesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge schedules: %w", err)
	}

	g.log.Info().
		Int64("deleted", deleted).
		Str("cutoff", cutoff.Format("2006-01-02")).
		Msg("schedule purge complete")

	return deleted, nil
}
