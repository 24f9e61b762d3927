package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"pingpoint/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingLat, pingLng = 35.6762, 139.6503

func (f *fixture) ping(t *testing.T, author uuid.UUID, message string, lat, lng float64) *models.Ping {
	t.Helper()
	p, err := f.Pings.CreatePing(context.Background(), CreatePingInput{
		UserID:    author.String(),
		Message:   message,
		Mood:      "chatty",
		Latitude:  ptr(lat),
		Longitude: ptr(lng),
	})
	require.NoError(t, err)
	return p
}

func TestNearbyPingsExcludeAuthor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	author := f.user(t, "author@example.com")
	other := f.user(t, "other@example.com")

	p := f.ping(t, author, "anyone around?", pingLat, pingLng)

	seen, err := f.Pings.FindNearbyPings(ctx, NearbyPingsQuery{Latitude: pingLat, Longitude: pingLng, RequesterID: other.String()})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, p.ID, seen[0].ID)
	assert.Zero(t, seen[0].DistanceMeters)
	assert.Equal(t, "anyone around?", seen[0].Message)

	own, err := f.Pings.FindNearbyPings(ctx, NearbyPingsQuery{Latitude: pingLat, Longitude: pingLng, RequesterID: author.String()})
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestNearbyPingsWindow(t *testing.T) {
	cases := []struct {
		age     time.Duration
		visible bool
	}{
		{14 * time.Minute, true},
		{15 * time.Minute, true},
		{16 * time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.age.String(), func(t *testing.T) {
			f := newFixture(t)
			author := f.user(t, "author@example.com")
			reader := f.user(t, "reader@example.com")
			f.ping(t, author, "hello", pingLat, pingLng)

			f.clock.Advance(tc.age)
			got, err := f.Pings.FindNearbyPings(context.Background(), NearbyPingsQuery{
				Latitude: pingLat, Longitude: pingLng, RequesterID: reader.String(),
			})
			require.NoError(t, err)
			if tc.visible {
				assert.Len(t, got, 1)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestNearbyPingsOrderAndRadius(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	reader := f.user(t, "reader@example.com")

	farther := f.ping(t, a, "farther", pingLat+0.005, pingLng) // ~557 m
	f.clock.Advance(time.Minute)
	older := f.ping(t, b, "same spot older", pingLat+0.001, pingLng)
	f.clock.Advance(time.Minute)
	newer := f.ping(t, a, "same spot newer", pingLat+0.001, pingLng)
	outside := f.ping(t, b, "outside default radius", pingLat+0.02, pingLng) // ~2.2 km

	got, err := f.Pings.FindNearbyPings(ctx, NearbyPingsQuery{Latitude: pingLat, Longitude: pingLng, RequesterID: reader.String()})
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(got))
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	// equal distances fall back to newest first
	assert.Equal(t, []uuid.UUID{newer.ID, older.ID, farther.ID}, ids)
	assert.InDelta(t, 111, got[0].DistanceMeters, 1)
	assert.InDelta(t, 557, got[2].DistanceMeters, 1)

	got, err = f.Pings.FindNearbyPings(ctx, NearbyPingsQuery{
		Latitude: pingLat, Longitude: pingLng, RadiusKm: ptr(3.0), RequesterID: reader.String(),
	})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, outside.ID, got[3].ID)

	_, err = f.Pings.FindNearbyPings(ctx, NearbyPingsQuery{
		Latitude: pingLat, Longitude: pingLng, RadiusKm: ptr(0.0), RequesterID: reader.String(),
	})
	assert.ErrorIs(t, err, ErrInvalidRadius)
	_, err = f.Pings.FindNearbyPings(ctx, NearbyPingsQuery{Latitude: pingLat, Longitude: pingLng, RequesterID: "nope"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreatePingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user(t, "pinger@example.com")

	p, err := f.Pings.CreatePing(ctx, CreatePingInput{
		UserID: id.String(), Message: "need a Go reviewer", Mood: "focused",
		Latitude: ptr(1.0), Longitude: ptr(2.0),
		Category: ptr("Skill"), Value: ptr("Go"),
	})
	require.NoError(t, err)
	require.NotNil(t, p.Category)
	assert.Equal(t, models.PingCategorySkill, *p.Category)
	assert.Equal(t, "Go", *p.Value)
	assert.True(t, p.CreatedAt.Equal(f.clock.Now()))

	cases := []struct {
		name string
		in   CreatePingInput
		want error
	}{
		{"no message", CreatePingInput{UserID: id.String(), Mood: "x", Latitude: ptr(1.0), Longitude: ptr(1.0)}, ErrMissingField},
		{"no mood", CreatePingInput{UserID: id.String(), Message: "x", Latitude: ptr(1.0), Longitude: ptr(1.0)}, ErrMissingField},
		{"no coordinates", CreatePingInput{UserID: id.String(), Message: "x", Mood: "x"}, ErrMissingField},
		{"bad latitude", CreatePingInput{UserID: id.String(), Message: "x", Mood: "x", Latitude: ptr(-91.0), Longitude: ptr(1.0)}, ErrInvalidCoordinate},
		{"bad category", CreatePingInput{UserID: id.String(), Message: "x", Mood: "x", Latitude: ptr(1.0), Longitude: ptr(1.0), Category: ptr("hobby")}, ErrInvalidCategory},
		{"unknown user", CreatePingInput{UserID: uuid.NewString(), Message: "x", Mood: "x", Latitude: ptr(1.0), Longitude: ptr(1.0)}, ErrUserNotFound},
		{"mood too long", CreatePingInput{UserID: id.String(), Message: "x", Mood: strings.Repeat("m", 101), Latitude: ptr(1.0), Longitude: ptr(1.0)}, ErrInvalidRequest},
		{"value too long", CreatePingInput{UserID: id.String(), Message: "x", Mood: "x", Latitude: ptr(1.0), Longitude: ptr(1.0), Category: ptr("skill"), Value: ptr(strings.Repeat("v", 256))}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.Pings.CreatePing(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestListFilterOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "one@example.com",
		item(t, models.ItemTypeSkill, map[string]string{"skill": "Go"}),
		item(t, models.ItemTypeEducation, map[string]string{"school": "MIT"}),
	)
	f.user(t, "two@example.com",
		item(t, models.ItemTypeSkill, map[string]string{"skill": "Go"}),
		item(t, models.ItemTypeSkill, map[string]string{"skill": "SQL"}),
		item(t, "hobby", map[string]string{"hobby": "chess"}),
	)

	options, err := f.Pings.ListFilterOptions(ctx)
	require.NoError(t, err)
	require.Len(t, options, 3)
	require.Len(t, options[models.ItemTypeSkill], 2)
	assert.Len(t, options[models.ItemTypeEducation], 1)
	assert.Empty(t, options[models.ItemTypeExperience])

	var skills []map[string]string
	for _, raw := range options[models.ItemTypeSkill] {
		var v map[string]string
		require.NoError(t, json.Unmarshal(raw, &v))
		skills = append(skills, v)
	}
	assert.ElementsMatch(t, []map[string]string{{"skill": "Go"}, {"skill": "SQL"}}, skills)
}
