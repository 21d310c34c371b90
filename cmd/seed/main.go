package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	specialtyIDs, err := seedSpecialties(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed specialties: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, specialtyIDs, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedCareServices(context.Background(), pool, 30); err != nil {
		log.Fatalf("seed care services: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	log.Printf("seeding %d specialties", len(names))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()
		desc := gofakeit.Sentence(8)

		_, err := tx.Exec(ctx, `
			INSERT INTO specialties (id, name, description, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, desc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("specialties seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, specialtyIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		phone := gofakeit.Phone()
		specialtyID := specialtyIDs[gofakeit.Number(0, len(specialtyIDs)-1)]
		years := gofakeit.Number(1, 35)

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, phone, specialty_id, years_experience, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, name, phone, specialtyID, years)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

// seedPatients creates each patient with a health profile of their own, and
// gives roughly a third of them a family member with a second profile.
func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			patientID := uuid.New()
			dob := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
			)
			gender := gofakeit.Gender()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, gender, date_of_birth, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, now(), now())
			`, patientID, gofakeit.Name(), gofakeit.Phone(), gender, dob)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO health_profiles (id, patient_id, family_member_id, created_at, updated_at)
				VALUES ($1, $2, NULL, now(), now())
			`, uuid.New(), patientID)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			if gofakeit.Number(0, 2) == 0 {
				memberID := uuid.New()
				memberDob := gofakeit.DateRange(
					time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
				)

				_, err := tx.Exec(ctx, `
					INSERT INTO family_members (id, patient_id, name, phone, gender, date_of_birth, created_at, updated_at)
					VALUES ($1, $2, $3, $4, $5, $6, now(), now())
				`, memberID, patientID, gofakeit.Name(), gofakeit.Phone(), gofakeit.Gender(), memberDob)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}

				_, err = tx.Exec(ctx, `
					INSERT INTO health_profiles (id, patient_id, family_member_id, created_at, updated_at)
					VALUES ($1, $2, $3, now(), now())
				`, uuid.New(), patientID, memberID)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Println("patients seeded")
	return nil
}

func seedCareServices(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d care services", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO care_services (id, name, price_cents, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), gofakeit.ProductName(), int64(gofakeit.Number(1500, 50000)))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("care services seeded")
	return nil
}
