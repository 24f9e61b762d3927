// Command seeder populates a running pingpoint API with fake users around a
// center point: profiles, locations, broadcasting status, pings and connections.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"pingpoint/logger"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/sync/errgroup"
)

type Stats struct {
	TotalRequests   atomic.Int64
	SuccessRequests atomic.Int64
	FailedRequests  atomic.Int64
	TotalDuration   atomic.Int64
}

type Config struct {
	BaseURL     string
	Users       int
	Workers     int
	Latitude    float64
	Longitude   float64
	SpreadKm    float64
	Pings       int
	Connections int
	Seed        uint64
}

type seeder struct {
	conf   Config
	client *http.Client
	log    *slog.Logger
	stats  *Stats
}

func main() {
	conf := parseFlags()
	log := logger.New("pingpoint-seeder", "info", logger.FormatConsole)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := &seeder{
		conf:   conf,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		stats:  &Stats{},
	}

	log.Info("seeding", "url", conf.BaseURL, "users", conf.Users, "workers", conf.Workers)
	start := time.Now()
	err := s.run(ctx)
	s.printFinalStats(time.Since(start))
	if err != nil {
		log.Error("seeding aborted", "error", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	conf := Config{}
	flag.StringVar(&conf.BaseURL, "url", "http://localhost:8080", "API base URL")
	flag.IntVar(&conf.Users, "users", 50, "Number of users to create")
	flag.IntVar(&conf.Workers, "workers", 8, "Number of concurrent workers")
	flag.Float64Var(&conf.Latitude, "lat", 55.7558, "Center latitude")
	flag.Float64Var(&conf.Longitude, "lng", 37.6173, "Center longitude")
	flag.Float64Var(&conf.SpreadKm, "spread", 2, "Max distance from the center in km")
	flag.IntVar(&conf.Pings, "pings", 1, "Pings per user")
	flag.IntVar(&conf.Connections, "connections", 100, "Random connections to create")
	flag.Uint64Var(&conf.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.Parse()
	return conf
}

func (s *seeder) run(ctx context.Context) error {
	ids, err := s.createUsers(ctx)
	if err != nil {
		return err
	}
	s.log.Info("users created", "count", len(ids))
	if len(ids) < 2 {
		return nil
	}

	faker := gofakeit.New(s.conf.Seed)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.conf.Workers)
	for i := 0; i < s.conf.Connections; i++ {
		from := ids[faker.IntN(len(ids))]
		to := ids[faker.IntN(len(ids))]
		if from == to {
			continue
		}
		g.Go(func() error {
			s.post(gctx, "/connect", map[string]any{"fromUser": from, "toUser": to}, nil)
			return gctx.Err()
		})
	}
	return g.Wait()
}

// createUsers fans user creation out to workers. Each worker owns its faker.
func (s *seeder) createUsers(ctx context.Context) ([]string, error) {
	jobs := make(chan int)
	var (
		mu  sync.Mutex
		ids []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < s.conf.Users; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < s.conf.Workers; w++ {
		faker := gofakeit.New(s.conf.Seed + uint64(w) + 1)
		g.Go(func() error {
			for i := range jobs {
				id, ok := s.seedUser(gctx, faker, i)
				if ok {
					mu.Lock()
					ids = append(ids, id)
					mu.Unlock()
				}
			}
			return gctx.Err()
		})
	}
	err := g.Wait()
	return ids, err
}

func (s *seeder) seedUser(ctx context.Context, faker *gofakeit.Faker, n int) (string, bool) {
	profile := map[string]any{
		"email": fmt.Sprintf("seed%d.%s", n, faker.Email()),
		"name":  faker.Name(),
		"items": []map[string]any{
			{"type": "skill", "data": map[string]string{"name": faker.ProgrammingLanguage()}},
			{"type": "education", "data": map[string]string{"school": faker.School()}},
			{"type": "experience", "data": map[string]string{"title": faker.JobTitle(), "company": faker.Company()}},
		},
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if !s.post(ctx, "/profile", profile, &created) {
		return "", false
	}
	id := created.Data.ID

	lat, lng := s.scatter(faker)
	s.post(ctx, "/location", map[string]any{"userId": id, "latitude": lat, "longitude": lng}, nil)
	s.post(ctx, "/status/broadcasting", map[string]any{"userId": id, "is_broadcasting": true}, nil)

	categories := []string{"skill", "education", "experience"}
	for p := 0; p < s.conf.Pings; p++ {
		s.post(ctx, "/ping", map[string]any{
			"userId":    id,
			"message":   faker.Sentence(6),
			"mood":      faker.Adjective(),
			"latitude":  lat,
			"longitude": lng,
			"category":  categories[faker.IntN(len(categories))],
			"value":     faker.Hobby(),
		}, nil)
	}
	return id, true
}

// scatter picks a point uniformly inside the spread disc around the center.
func (s *seeder) scatter(faker *gofakeit.Faker) (float64, float64) {
	distance := s.conf.SpreadKm * math.Sqrt(faker.Float64Range(0, 1))
	bearing := faker.Float64Range(0, 2*math.Pi)
	dLat := distance / 111.32 * math.Cos(bearing)
	dLng := distance / (111.32 * math.Cos(s.conf.Latitude*math.Pi/180)) * math.Sin(bearing)
	return s.conf.Latitude + dLat, s.conf.Longitude + dLng
}

func (s *seeder) post(ctx context.Context, path string, body, out any) bool {
	start := time.Now()
	s.stats.TotalRequests.Add(1)
	err := s.do(ctx, path, body, out)
	s.stats.TotalDuration.Add(int64(time.Since(start)))
	if err != nil {
		s.stats.FailedRequests.Add(1)
		s.log.Warn("request failed", "path", path, "error", err)
		return false
	}
	s.stats.SuccessRequests.Add(1)
	return true
}

func (s *seeder) do(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.conf.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func (s *seeder) printFinalStats(elapsed time.Duration) {
	total := s.stats.TotalRequests.Load()
	success := s.stats.SuccessRequests.Load()
	failed := s.stats.FailedRequests.Load()

	var avg time.Duration
	if total > 0 {
		avg = time.Duration(s.stats.TotalDuration.Load() / total)
	}
	rps := 0.0
	if elapsed > 0 {
		rps = float64(total) / elapsed.Seconds()
	}

	fmt.Println("=== Seeding stats ===")
	fmt.Printf("Duration:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Total requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Failed:          %d\n", failed)
	fmt.Printf("Avg latency:     %s\n", avg.Round(time.Microsecond))
	fmt.Printf("Requests/sec:    %.1f\n", rps)
}
