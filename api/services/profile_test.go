package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"pingpoint/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpeg(size int) string {
	return imagePrefix + base64.StdEncoding.EncodeToString(make([]byte, size))
}

func TestProfileItemInputShapes(t *testing.T) {
	var in CreateProfileInput
	err := json.Unmarshal([]byte(`{
		"email": "shapes@example.com",
		"items": [
			{"type": "skill", "data": {"skill": "Go"}},
			{"item_type": "education", "item_data": {"school": "MIT"}},
			"not an object"
		]
	}`), &in)
	require.NoError(t, err)
	require.Len(t, in.Items, 3)

	assert.Equal(t, "skill", in.Items[0].Type)
	assert.JSONEq(t, `{"skill":"Go"}`, string(in.Items[0].Data))
	assert.Equal(t, "education", in.Items[1].Type)
	assert.JSONEq(t, `{"school":"MIT"}`, string(in.Items[1].Data))
	assert.ErrorIs(t, in.Items[2].validate(), ErrInvalidItem)
}

func TestCreateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.Profiles.CreateProfile(ctx, CreateProfileInput{
		Email: "  Ada@Example.com ",
		Name:  ptr("Ada"),
		Items: []ProfileItemInput{
			item(t, models.ItemTypeSkill, map[string]string{"skill": "Go"}),
			{Type: models.ItemTypeExperience, Data: json.RawMessage(`"5 years backend"`)},
		},
		ProfileImage: ptr(jpeg(64)),
	})
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Len(t, p.Items, 2)
	require.NotNil(t, p.ProfileImage)
	assert.Equal(t, jpeg(64), *p.ProfileImage)
	assert.Nil(t, p.Location)
	assert.Nil(t, p.LatestMood)
	assert.Empty(t, p.MoodBadges)
}

func TestCreateProfileDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.user(t, "dup@example.com")
	_, err := f.Profiles.CreateProfile(ctx, CreateProfileInput{Email: "DUP@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = f.Profiles.CreateProfile(ctx, CreateProfileInput{Email: "  "})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestCreateProfileRollsBackOnBadItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]CreateProfileInput{
		"missing data": {
			Email: "rollback@example.com",
			Items: []ProfileItemInput{
				item(t, models.ItemTypeSkill, map[string]string{"skill": "Go"}),
				{Type: models.ItemTypeSkill},
			},
		},
		"null data": {
			Email: "rollback@example.com",
			Items: []ProfileItemInput{{Type: models.ItemTypeSkill, Data: json.RawMessage(`null`)}},
		},
		"image as item": {
			Email: "rollback@example.com",
			Items: []ProfileItemInput{{Type: models.ItemTypeProfileImage, Data: json.RawMessage(`"x"`)}},
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.Profiles.CreateProfile(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidItem)

			_, err = f.Profiles.GetProfile(ctx, "rollback@example.com")
			assert.ErrorIs(t, err, ErrUserNotFound)
		})
	}

	_, err := f.Profiles.CreateProfile(ctx, CreateProfileInput{
		Email:        "rollback@example.com",
		ProfileImage: ptr("data:image/png;base64,AAAA"),
	})
	assert.ErrorIs(t, err, ErrInvalidImage)
	_, err = f.Profiles.GetProfile(ctx, "rollback@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateImage(t *testing.T) {
	cases := []struct {
		name  string
		image string
		ok    bool
	}{
		{"small jpeg", jpeg(1024), true},
		{"exactly 2 MiB", jpeg(maxImageBytes), true},
		{"over 2 MiB", jpeg(maxImageBytes + 1), false},
		{"png prefix", "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png")), false},
		{"no prefix", base64.StdEncoding.EncodeToString([]byte("raw")), false},
		{"bad alphabet", imagePrefix + "!!!!", false},
		{"empty payload", imagePrefix, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateImage(tc.image)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidImage)
			}
		})
	}
}

func TestGetProfileAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.user(t, "agg@example.com", item(t, models.ItemTypeSkill, map[string]string{"skill": "SQL"}))
	_, err := f.Locations.UpsertLocation(ctx, id.String(), 52.52, 13.405)
	require.NoError(t, err)
	_, err = f.Pings.CreatePing(ctx, CreatePingInput{
		UserID: id.String(), Message: "coffee?", Mood: "curious",
		Latitude: ptr(52.52), Longitude: ptr(13.405),
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.Pings.CreatePing(ctx, CreatePingInput{
		UserID: id.String(), Message: "lunch?", Mood: "hungry",
		Latitude: ptr(52.52), Longitude: ptr(13.405),
	})
	require.NoError(t, err)
	_, err = f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{
		MoodBadges: &[]MoodBadgeInput{{Mood: "focused", Category: "skill", Value: "SQL"}},
	})
	require.NoError(t, err)

	byID, err := f.Profiles.GetProfile(ctx, id.String())
	require.NoError(t, err)
	byEmail, err := f.Profiles.GetProfile(ctx, "AGG@example.com")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byEmail.ID)

	require.NotNil(t, byID.Location)
	assert.InDelta(t, 52.52, byID.Location.Latitude, 1e-9)
	require.NotNil(t, byID.LatestMood)
	assert.Equal(t, "hungry", *byID.LatestMood)
	require.Len(t, byID.MoodBadges, 1)
	assert.Equal(t, "focused", byID.MoodBadges[0].Mood)
	require.Len(t, byID.Items, 1)

	_, err = f.Profiles.GetProfile(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.user(t, "update@example.com",
		item(t, models.ItemTypeSkill, map[string]string{"skill": "Go"}),
		item(t, models.ItemTypeSkill, map[string]string{"skill": "Rust"}),
	)
	other := f.user(t, "taken@example.com")

	_, err := f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{ProfileImage: ptr(jpeg(16))})
	require.NoError(t, err)

	p, err := f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{
		Name:         ptr("Renamed"),
		Items:        &[]ProfileItemInput{item(t, models.ItemTypeEducation, map[string]string{"school": "ETH"})},
		ProfileImage: ptr(jpeg(32)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.DisplayName)
	assert.Equal(t, "update@example.com", p.Email)
	require.Len(t, p.Items, 1)
	assert.Equal(t, models.ItemTypeEducation, p.Items[0].ItemType)
	require.NotNil(t, p.ProfileImage)
	assert.Equal(t, jpeg(32), *p.ProfileImage)

	var images int64
	require.NoError(t, f.orm.Model(&models.ProfileItem{}).
		Where("user_id = ? AND item_type = ?", id, models.ItemTypeProfileImage).
		Count(&images).Error)
	assert.EqualValues(t, 1, images)

	// omitted items keep the current set
	p, err = f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{Name: ptr("Again")})
	require.NoError(t, err)
	assert.Len(t, p.Items, 1)

	_, err = f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{Email: ptr("taken@example.com")})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = f.Profiles.UpdateProfile(ctx, other.String(), UpdateProfileInput{
		Items: &[]ProfileItemInput{{Type: "skill"}},
	})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = f.Profiles.UpdateProfile(ctx, "6f1c3c2a-4b8e-4d6f-9a3e-2b7c1d0e5f4a", UpdateProfileInput{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.Profiles.UpdateProfile(ctx, "not-a-uuid", UpdateProfileInput{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateProfileReplacesMoodBadges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.user(t, "badges@example.com")

	_, err := f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{
		MoodBadges: &[]MoodBadgeInput{{Mood: "happy"}, {Mood: "tired"}},
	})
	require.NoError(t, err)
	p, err := f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{
		MoodBadges: &[]MoodBadgeInput{{Mood: "calm", Category: "experience", Value: "yoga"}},
	})
	require.NoError(t, err)
	require.Len(t, p.MoodBadges, 1)
	assert.Equal(t, "calm", p.MoodBadges[0].Mood)

	_, err = f.Profiles.UpdateProfile(ctx, id.String(), UpdateProfileInput{
		MoodBadges: &[]MoodBadgeInput{{Mood: " "}},
	})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestErrorsMatchByCode(t *testing.T) {
	err := ErrUserNotFound.With("user %s does not exist", "abc")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NotErrorIs(t, err, ErrRequestNotFound)
	assert.True(t, strings.HasPrefix(err.Error(), "UserNotFound: "))

	var domainErr *Error
	require.True(t, errors.As(error(err), &domainErr))
	assert.Equal(t, KindNotFound, domainErr.Kind)
	assert.Equal(t, "user does not exist", ErrUserNotFound.Details)
}
