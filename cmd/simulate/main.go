// simulate drives contended reserve traffic against the in-memory engine
// and verifies the per-doctor exclusivity invariant: for every targeted
// slot, exactly one concurrent caller wins and the rest get a slot
// conflict. Useful for eyeballing guard latency under contention without
// Postgres or Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinicbase/scheduling-engine/internal/scheduling"
)

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

func main() {
	workers := flag.Int("workers", 50, "concurrent callers per slot")
	slotCount := flag.Int("slots", 16, "number of distinct slots to contend for")
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.Printf("simulate starting: workers=%d slots=%d", *workers, *slotCount)

	repo := scheduling.NewMemoryRepository()
	resolver := scheduling.NewResolver(repo, scheduling.ResolverOptions{})
	guard := scheduling.NewConflictGuard(repo, scheduling.NewInProcessLocker(), resolver)
	svc := scheduling.NewBookingService(repo, guard, resolver, nil, zap.NewNop())

	doctor := scheduling.Doctor{ID: uuid.New(), Name: "Dr. Simulated"}
	repo.AddDoctor(doctor)

	patients := make([]uuid.UUID, *workers)
	for i := range patients {
		id := uuid.New()
		patients[i] = id
		repo.AddPatient(scheduling.Patient{ID: id, Name: fmt.Sprintf("patient-%d", i)})
	}

	// Next Monday, 08:00-17:00, 30-minute granularity.
	ctx := context.Background()
	day := nextMonday(time.Now().UTC())
	rule := scheduling.WeeklyRule{
		ID:          uuid.New(),
		DoctorID:    doctor.ID,
		Weekday:     time.Monday,
		StartMinute: 8 * 60,
		EndMinute:   17 * 60,
		Active:      true,
	}
	if err := repo.UpsertRule(ctx, &rule); err != nil {
		log.Fatalf("seed rule: %v", err)
	}

	slots, _, err := svc.ResolveSlots(ctx, scheduling.ResolveRequest{
		DoctorID: doctor.ID,
		Date:     day,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		log.Fatalf("resolve slots: %v", err)
	}
	if len(slots) < *slotCount {
		log.Fatalf("only %d slots available, need %d", len(slots), *slotCount)
	}

	metrics := &OperationMetrics{}
	violations := 0
	start := time.Now()

	for s := 0; s < *slotCount; s++ {
		slot := slots[s]
		var winners int64
		var wg sync.WaitGroup

		for w := 0; w < *workers; w++ {
			wg.Add(1)
			go func(patientID uuid.UUID) {
				defer wg.Done()
				// Stagger arrivals slightly so the lock sees realistic traffic.
				time.Sleep(time.Duration(rand.Intn(500)) * time.Microsecond)

				opStart := time.Now()
				_, err := svc.Create(ctx, scheduling.CreateBookingRequest{
					DoctorID:        doctor.ID,
					PatientID:       patientID,
					Kind:            scheduling.KindAppointment,
					StartAt:         slot.StartAt,
					DurationMinutes: slot.DurationMinutes,
				})
				metrics.Record(time.Since(opStart), err)
				if err == nil {
					atomic.AddInt64(&winners, 1)
				}
			}(patients[w])
		}
		wg.Wait()

		if winners != 1 {
			violations++
			log.Printf("INVARIANT VIOLATION: slot %s had %d winners", slot.StartAt.Format(time.RFC3339), winners)
		}
	}

	elapsed := time.Since(start)
	avg, p50, p95, maxLat := metrics.Stats()

	log.Printf("done in %s", elapsed)
	log.Printf("reserve calls: total=%d success=%d conflict=%d error=%d",
		metrics.Total, metrics.Success, metrics.Conflict, metrics.Error)
	log.Printf("latency: avg=%s p50=%s p95=%s max=%s", avg, p50, p95, maxLat)

	if violations > 0 {
		log.Printf("FAILED: %d slots with multiple winners", violations)
		os.Exit(1)
	}
	if metrics.Success != int64(*slotCount) {
		log.Printf("FAILED: expected %d successful reserves, got %d", *slotCount, metrics.Success)
		os.Exit(1)
	}
	log.Printf("OK: every contended slot resolved to exactly one winner")
}

func nextMonday(t time.Time) time.Time {
	day := scheduling.DateOf(t, time.UTC)
	for day.Weekday() != time.Monday {
		day = day.AddDate(0, 0, 1)
	}
	if day.Equal(scheduling.DateOf(t, time.UTC)) {
		day = day.AddDate(0, 0, 7)
	}
	return day
}
