package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pingpoint/db/dbtest"
	"pingpoint/logger"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type publishedEvent struct {
	key     string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{key: key, payload: payload})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	keys := make([]string, 0, len(p.events))
	for _, e := range p.events {
		keys = append(keys, e.key)
	}
	return keys
}

type fixture struct {
	*Services
	orm    *gorm.DB
	clock  *fakeClock
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orm:    dbtest.Open(t),
		clock:  newFakeClock(),
		events: &recordingPublisher{},
	}
	f.Services = New(Env{DB: f.orm, Log: logger.Discard(), Events: f.events, Clock: f.clock})
	return f
}

// user creates a profile with a random name and the given items.
func (f *fixture) user(t *testing.T, email string, items ...ProfileItemInput) uuid.UUID {
	t.Helper()
	name := gofakeit.Name()
	p, err := f.Profiles.CreateProfile(context.Background(), CreateProfileInput{
		Email: email,
		Name:  &name,
		Items: items,
	})
	require.NoError(t, err)
	return p.ID
}

func item(t *testing.T, itemType string, data any) ProfileItemInput {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return ProfileItemInput{Type: itemType, Data: raw}
}

func ptr[T any](v T) *T {
	return &v
}
