package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinic-scheduling/internal/config"
	"github.com/clinicore/clinic-scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	BookerLimit  int
	SlotLimit    int
	PostgresDSN  string
}

// Booker pairs a patient with one of their health profiles, the two IDs a
// booking request needs.
type Booker struct {
	PatientID uuid.UUID
	ProfileID uuid.UUID
}

// OpenSlot carries everything needed to aim a booking at a concrete slot.
type OpenSlot struct {
	DoctorID  uuid.UUID
	Day       time.Time
	TimeLabel string
}

type DataPool struct {
	Bookers []Booker
	Slots   []OpenSlot

	mu      sync.Mutex
	created []uuid.UUID // appointment IDs created during the run
}

func (p *DataPool) addCreated(id uuid.UUID) {
	p.mu.Lock()
	p.created = append(p.created, id)
	p.mu.Unlock()
}

func (p *DataPool) randomCreated(rng *rand.Rand) (uuid.UUID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.created) == 0 {
		return uuid.Nil, false
	}
	return p.created[rng.Intn(len(p.created))], true
}

type OperationMetrics struct {
	Success  int64
	Conflict int64
	Error    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (m *OperationMetrics) Record(status int, latency time.Duration) {
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	m.mu.Lock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking      OperationMetrics
	Confirm      OperationMetrics
	ReadByID     OperationMetrics
	ListByBooker OperationMetrics
	ListByDoctor OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f confirm=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.ConfirmRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d bookers, %d open slots", len(dataPool.Bookers), len(dataPool.Slots))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		BookerLimit:  getInt("SIM_BOOKER_LIMIT", 4000),
		SlotLimit:    getInt("SIM_SLOT_LIMIT", 2400),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT patient_id, id FROM health_profiles LIMIT $1
	`, cfg.BookerLimit)
	if err != nil {
		return nil, fmt.Errorf("load bookers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b Booker
		if err := rows.Scan(&b.PatientID, &b.ProfileID); err != nil {
			return nil, err
		}
		dataPool.Bookers = append(dataPool.Bookers, b)
	}

	rows, err = pool.Query(ctx, `
		SELECT sc.doctor_id, sc.day, sl.start_time
		FROM slots sl
		JOIN schedules sc ON sc.id = sl.schedule_id
		WHERE sl.booked = false AND sc.day >= CURRENT_DATE
		LIMIT $1
	`, cfg.SlotLimit)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s OpenSlot
		if err := rows.Scan(&s.DoctorID, &s.Day, &s.TimeLabel); err != nil {
			return nil, err
		}
		dataPool.Slots = append(dataPool.Slots, s)
	}

	if len(dataPool.Bookers) == 0 {
		return nil, fmt.Errorf("no bookers loaded (run the seed command first)")
	}
	if len(dataPool.Slots) == 0 {
		return nil, fmt.Errorf("no open slots loaded (generate schedules first)")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.ConfirmRatio:
				s.doConfirm(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListByBooker(ctx, rng)
				case 2:
					s.doListByDoctor(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	booker := s.pool.Bookers[rng.Intn(len(s.pool.Bookers))]
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	body := map[string]string{
		"booker_id":          booker.PatientID.String(),
		"subject_of_care_id": booker.ProfileID.String(),
		"doctor_id":          slot.DoctorID.String(),
		"date":               slot.Day.Format("2006-01-02"),
		"time_label":         slot.TimeLabel,
		"reason":             "simulated visit",
	}

	status, respBody, latency := s.post(ctx, "/appointments/by-doctor", body)
	s.metrics.Booking.Record(status, latency)

	if status == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(respBody, &created); err == nil && created.ID != uuid.Nil {
			s.pool.addCreated(created.ID)
		}
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.randomCreated(rng)
	if !ok {
		return
	}

	status, _, latency := s.post(ctx, "/appointments/"+id.String()+"/confirm", struct{}{})
	s.metrics.Confirm.Record(status, latency)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.randomCreated(rng)
	if !ok {
		return
	}

	status, latency := s.get(ctx, "/appointments/"+id.String())
	s.metrics.ReadByID.Record(status, latency)
}

func (s *Simulator) doListByBooker(ctx context.Context, rng *rand.Rand) {
	booker := s.pool.Bookers[rng.Intn(len(s.pool.Bookers))]

	status, latency := s.get(ctx, "/appointments?booker_id="+booker.PatientID.String())
	s.metrics.ListByBooker.Record(status, latency)
}

func (s *Simulator) doListByDoctor(ctx context.Context, rng *rand.Rand) {
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	status, latency := s.get(ctx, "/appointments?doctor_id="+slot.DoctorID.String())
	s.metrics.ListByDoctor.Record(status, latency)
}

func (s *Simulator) post(ctx context.Context, path string, body any) (int, []byte, time.Duration) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, 0
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, 0
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, respBody, latency
}

func (s *Simulator) get(ctx context.Context, path string) (int, time.Duration) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return 0, 0
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, latency
}

func (s *Simulator) PrintReport() {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 72))

	printOp("booking (by-doctor)", &s.metrics.Booking)
	printOp("confirm", &s.metrics.Confirm)
	printOp("read by id", &s.metrics.ReadByID)
	printOp("list by booker", &s.metrics.ListByBooker)
	printOp("list by doctor", &s.metrics.ListByDoctor)

	fmt.Println(strings.Repeat("=", 72))
}

func printOp(name string, m *OperationMetrics) {
	success := atomic.LoadInt64(&m.Success)
	conflict := atomic.LoadInt64(&m.Conflict)
	errCount := atomic.LoadInt64(&m.Error)
	total := success + conflict + errCount

	fmt.Printf("\n%s\n", name)
	fmt.Printf("  total=%d success=%d conflict=%d error=%d\n", total, success, conflict, errCount)

	if total == 0 {
		return
	}

	avg, min, max, p50, p95 := m.Stats()
	fmt.Printf("  latency avg=%s min=%s max=%s p50=%s p95=%s\n", avg, min, max, p50, p95)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
