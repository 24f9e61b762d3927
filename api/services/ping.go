package services

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"pingpoint/db"
	"pingpoint/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// PingWindow is how long a ping stays visible to nearby searches.
	PingWindow = 15 * time.Minute
	// DefaultPingRadiusKm applies when a nearby search names no radius.
	DefaultPingRadiusKm = 1.0

	maxMoodLen      = 100
	maxPingValueLen = 255
)

type PingService struct {
	env Env
}

func NewPingService(env Env) *PingService {
	return &PingService{env: env.withDefaults()}
}

type CreatePingInput struct {
	UserID    string   `json:"userId"`
	Message   string   `json:"message"`
	Mood      string   `json:"mood"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Category  *string  `json:"category"`
	Value     *string  `json:"value"`
}

type NearbyPingsQuery struct {
	Latitude    float64
	Longitude   float64
	RadiusKm    *float64
	RequesterID string
}

type NearbyPing struct {
	ID             uuid.UUID            `json:"id"`
	UserID         uuid.UUID            `json:"userId"`
	DisplayName    string               `json:"displayName"`
	Message        string               `json:"message"`
	Mood           string               `json:"mood"`
	Category       *models.PingCategory `json:"category"`
	Value          *string              `json:"value"`
	Latitude       float64              `json:"latitude"`
	Longitude      float64              `json:"longitude"`
	DistanceMeters float64              `json:"distance"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func (s *PingService) CreatePing(ctx context.Context, in CreatePingInput) (*models.Ping, error) {
	userID, err := requireID("userId", in.UserID)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(in.Message)
	mood := strings.TrimSpace(in.Mood)
	switch {
	case message == "":
		return nil, ErrMissingField.With("message is required")
	case mood == "":
		return nil, ErrMissingField.With("mood is required")
	case in.Latitude == nil || in.Longitude == nil:
		return nil, ErrMissingField.With("latitude and longitude are required")
	}
	if !validCoordinates(*in.Latitude, *in.Longitude) {
		return nil, ErrInvalidCoordinate.With("got (%v, %v)", *in.Latitude, *in.Longitude)
	}
	if utf8.RuneCountInString(mood) > maxMoodLen {
		return nil, ErrInvalidRequest.With("mood must be at most %d characters", maxMoodLen)
	}

	ping := models.Ping{
		UserID:    userID,
		Message:   message,
		Mood:      mood,
		Latitude:  *in.Latitude,
		Longitude: *in.Longitude,
		CreatedAt: s.env.now(),
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) != "" {
		category := models.PingCategory(strings.ToLower(strings.TrimSpace(*in.Category)))
		if !category.Valid() {
			return nil, ErrInvalidCategory.With("ping category must be one of skill, education, experience")
		}
		ping.Category = &category
	}
	if in.Value != nil && strings.TrimSpace(*in.Value) != "" {
		value := strings.TrimSpace(*in.Value)
		if utf8.RuneCountInString(value) > maxPingValueLen {
			return nil, ErrInvalidRequest.With("value must be at most %d characters", maxPingValueLen)
		}
		ping.Value = &value
	}

	err = s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		return tx.Create(&ping).Error
	})
	if err != nil {
		return nil, s.env.fail("create ping", err)
	}
	return &ping, nil
}

// FindNearbyPings lists other users' pings from the last PingWindow, closest first.
func (s *PingService) FindNearbyPings(ctx context.Context, q NearbyPingsQuery) ([]NearbyPing, error) {
	if !validCoordinates(q.Latitude, q.Longitude) {
		return nil, ErrInvalidCoordinate.With("got (%v, %v)", q.Latitude, q.Longitude)
	}
	radius := DefaultPingRadiusKm
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, ErrInvalidRadius.With("got %v", radius)
	}
	requester, err := requireID("userId", q.RequesterID)
	if err != nil {
		return nil, err
	}

	dialect := s.env.dialect()
	within, withinArgs := db.Within(dialect, "p.latitude", "p.longitude", q.Latitude, q.Longitude, radius)
	distance, distanceArgs := db.DistanceMeters(dialect, "p.latitude", "p.longitude", q.Latitude, q.Longitude)

	query := `
		SELECT p.id, p.user_id, u.name, u.email, p.message, p.mood, p.category, p.value,
			p.latitude, p.longitude, p.created_at, ` + distance + ` AS distance
		FROM pings p
		JOIN users u ON u.id = p.user_id
		WHERE p.created_at >= ? AND p.user_id <> ? AND ` + within + `
		ORDER BY distance ASC, p.created_at DESC`

	args := append([]any{}, distanceArgs...)
	args = append(args, s.env.now().Add(-PingWindow), requester)
	args = append(args, withinArgs...)

	var rows []struct {
		ID        uuid.UUID
		UserID    uuid.UUID
		Name      *string
		Email     string
		Message   string
		Mood      string
		Category  *string
		Value     *string
		Latitude  float64
		Longitude float64
		CreatedAt time.Time
		Distance  float64
	}
	if err := s.env.read(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, s.env.fail("nearby pings", err)
	}

	result := make([]NearbyPing, 0, len(rows))
	for _, r := range rows {
		p := NearbyPing{
			ID:             r.ID,
			UserID:         r.UserID,
			DisplayName:    displayName(r.Name, r.Email),
			Message:        r.Message,
			Mood:           r.Mood,
			Value:          r.Value,
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			DistanceMeters: math.Round(r.Distance),
			CreatedAt:      r.CreatedAt,
		}
		if r.Category != nil {
			category := models.PingCategory(*r.Category)
			p.Category = &category
		}
		result = append(result, p)
	}
	return result, nil
}

// ListFilterOptions returns the distinct item payloads per filterable item type.
func (s *PingService) ListFilterOptions(ctx context.Context) (map[string][]json.RawMessage, error) {
	types := []string{models.ItemTypeSkill, models.ItemTypeEducation, models.ItemTypeExperience}

	var rows []struct {
		ItemType string
		ItemData string
	}
	err := s.env.read(ctx).
		Raw(`SELECT DISTINCT item_type, CAST(item_data AS TEXT) AS item_data
			FROM profile_items
			WHERE item_type IN ?
			ORDER BY item_type, item_data`, types).
		Scan(&rows).Error
	if err != nil {
		return nil, s.env.fail("filter options", err)
	}

	options := make(map[string][]json.RawMessage, len(types))
	for _, t := range types {
		options[t] = []json.RawMessage{}
	}
	for _, r := range rows {
		options[r.ItemType] = append(options[r.ItemType], json.RawMessage(r.ItemData))
	}
	return options, nil
}
