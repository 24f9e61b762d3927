package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"pingpoint/db"
	"pingpoint/logger"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScatterStaysInsideSpread(t *testing.T) {
	s := &seeder{conf: Config{Latitude: 55.7558, Longitude: 37.6173, SpreadKm: 2}}
	faker := gofakeit.New(42)
	for i := 0; i < 500; i++ {
		lat, lng := s.scatter(faker)
		// the flat-earth offset is slightly optimistic, allow a small margin
		assert.LessOrEqual(t, db.Haversine(55.7558, 37.6173, lat, lng), 2020.0)
	}
}

func TestRunAgainstFakeAPI(t *testing.T) {
	var (
		mu    sync.Mutex
		calls = map[string]int{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls[r.URL.Path]++
		n := calls["/profile"]
		mu.Unlock()

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/profile":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data":   map[string]any{"id": strconv.Itoa(n)},
			})
		case "/ping":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"InvalidRequest","details":"nope"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}
	}))
	defer srv.Close()

	s := &seeder{
		conf: Config{
			BaseURL: srv.URL, Users: 6, Workers: 3, Latitude: 1, Longitude: 1,
			SpreadKm: 1, Pings: 1, Connections: 10, Seed: 7,
		},
		client: srv.Client(),
		log:    logger.Discard(),
		stats:  &Stats{},
	}
	require.NoError(t, s.run(context.Background()))

	assert.Equal(t, 6, calls["/profile"])
	assert.Equal(t, 6, calls["/location"])
	assert.Equal(t, 6, calls["/status/broadcasting"])
	assert.Equal(t, 6, calls["/ping"])
	assert.LessOrEqual(t, calls["/connect"], 10)

	assert.EqualValues(t, 6, s.stats.FailedRequests.Load())
	assert.Equal(t, s.stats.TotalRequests.Load(), s.stats.SuccessRequests.Load()+s.stats.FailedRequests.Load())
}
