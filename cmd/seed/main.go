package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicbase/scheduling-engine/internal/db"
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

	pool, err := db.ConnectPostgres(ctx, db.Options{DSN: dsn})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedServices(context.Background(), pool); err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedWeeklyRules(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed weekly rules: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"General Surgery",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

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
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) error {
	services := []struct {
		name     string
		duration int
	}{
		{"Consultation", 30},
		{"Follow-up", 15},
		{"Full checkup", 60},
		{"Minor surgery", 90},
		{"Major surgery", 180},
	}

	log.Printf("seeding %d services", len(services))

	for _, s := range services {
		_, err := pool.Exec(ctx, `
			INSERT INTO services (id, name, duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, uuid.New(), s.name, s.duration)
		if err != nil {
			return err
		}
	}

	log.Println("services seeded")
	return nil
}

// seedWeeklyRules gives every doctor a Monday-Friday schedule: a morning
// shift, and for most doctors an afternoon shift as well.
func seedWeeklyRules(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	log.Printf("seeding weekly rules for %d doctors", len(doctorIDs))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctorIDs {
		for weekday := 1; weekday <= 5; weekday++ {
			// Morning shift: 08:00 or 09:00 start, ends at noon.
			start := 8 * 60
			if gofakeit.Bool() {
				start = 9 * 60
			}
			if err := insertRule(ctx, tx, doctorID, weekday, start, 12*60); err != nil {
				return err
			}

			// Afternoon shift for roughly four doctors out of five.
			if gofakeit.Number(0, 4) > 0 {
				if err := insertRule(ctx, tx, doctorID, weekday, 14*60, 17*60); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("weekly rules seeded")
	return nil
}

func insertRule(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, weekday, startMinute, endMinute int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO availability_rules (id, doctor_id, weekday, start_minute, end_minute, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, now(), now())
	`, uuid.New(), doctorID, weekday, startMinute, endMinute)
	return err
}
