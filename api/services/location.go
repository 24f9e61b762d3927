package services

import (
	"context"
	"errors"
	"math"
	"time"

	"pingpoint/db"
	"pingpoint/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OnlineWindow is how recent last_seen must be for a user to count as online.
const OnlineWindow = 3 * time.Minute

type LocationService struct {
	env Env
}

func NewLocationService(env Env) *LocationService {
	return &LocationService{env: env.withDefaults()}
}

type Status struct {
	UserID         uuid.UUID  `json:"userId"`
	IsBroadcasting bool       `json:"isBroadcasting"`
	LastSeen       *time.Time `json:"lastSeen"`
	IsOnline       bool       `json:"isOnline"`
}

type NearbyUser struct {
	UserID         uuid.UUID `json:"userId"`
	DisplayName    string    `json:"displayName"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	DistanceMeters float64   `json:"distanceMeters"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastSeen       time.Time `json:"lastSeen"`
	IsOnline       bool      `json:"isOnline"`
}

// UpsertLocation stores the single current position of a user.
func (s *LocationService) UpsertLocation(ctx context.Context, rawUserID string, lat, lng float64) (*models.Location, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}
	if !validCoordinates(lat, lng) {
		return nil, ErrInvalidCoordinate.With("got (%v, %v)", lat, lng)
	}

	now := s.env.now()
	var saved models.Location
	err = s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		loc := models.Location{
			UserID:    userID,
			Latitude:  lat,
			Longitude: lng,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"latitude", "longitude", "updated_at"}),
		}).Create(&loc).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&saved).Error
	})
	if err != nil {
		return nil, s.env.fail("upsert location", err)
	}
	return &saved, nil
}

// FindNearbyLocations returns broadcasting users seen within OnlineWindow whose
// location lies within radiusKm, most recently moved first.
func (s *LocationService) FindNearbyLocations(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyUser, error) {
	if !validCoordinates(lat, lng) {
		return nil, ErrInvalidCoordinate.With("got (%v, %v)", lat, lng)
	}
	if !(radiusKm > 0) || math.IsInf(radiusKm, 0) {
		return nil, ErrInvalidRadius.With("got %v", radiusKm)
	}

	dialect := s.env.dialect()
	within, withinArgs := db.Within(dialect, "l.latitude", "l.longitude", lat, lng, radiusKm)
	distance, distanceArgs := db.DistanceMeters(dialect, "l.latitude", "l.longitude", lat, lng)

	query := `
		SELECT l.user_id, u.name, u.email, l.latitude, l.longitude, l.updated_at, s.last_seen,
			` + distance + ` AS distance
		FROM locations l
		JOIN users u ON u.id = l.user_id
		JOIN user_status s ON s.user_id = l.user_id
		WHERE s.is_broadcasting = ? AND s.last_seen >= ? AND ` + within + `
		ORDER BY l.updated_at DESC`

	args := append([]any{}, distanceArgs...)
	args = append(args, true, s.env.now().Add(-OnlineWindow))
	args = append(args, withinArgs...)

	var rows []struct {
		UserID    uuid.UUID
		Name      *string
		Email     string
		Latitude  float64
		Longitude float64
		UpdatedAt time.Time
		LastSeen  time.Time
		Distance  float64
	}
	if err := s.env.read(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, s.env.fail("nearby locations", err)
	}

	result := make([]NearbyUser, 0, len(rows))
	for _, r := range rows {
		result = append(result, NearbyUser{
			UserID:         r.UserID,
			DisplayName:    displayName(r.Name, r.Email),
			Latitude:       r.Latitude,
			Longitude:      r.Longitude,
			DistanceMeters: math.Round(r.Distance),
			UpdatedAt:      r.UpdatedAt,
			LastSeen:       r.LastSeen,
			IsOnline:       true,
		})
	}
	return result, nil
}

// SetBroadcasting toggles discoverability and refreshes last_seen.
func (s *LocationService) SetBroadcasting(ctx context.Context, rawUserID string, broadcasting bool) (*Status, error) {
	return s.touch(ctx, "set broadcasting", rawUserID, &broadcasting)
}

// Heartbeat refreshes last_seen only, creating a non-broadcasting status if none exists.
func (s *LocationService) Heartbeat(ctx context.Context, rawUserID string) (*Status, error) {
	return s.touch(ctx, "heartbeat", rawUserID, nil)
}

func (s *LocationService) touch(ctx context.Context, op, rawUserID string, broadcasting *bool) (*Status, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}

	now := s.env.now()
	var saved models.UserStatus
	err = s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		status := models.UserStatus{UserID: userID, LastSeen: now}
		columns := []string{"last_seen"}
		if broadcasting != nil {
			status.IsBroadcasting = *broadcasting
			columns = append(columns, "is_broadcasting")
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).Create(&status).Error
		if err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&saved).Error
	})
	if err != nil {
		return nil, s.env.fail(op, err)
	}
	return s.statusOf(saved), nil
}

// GetStatus reports the offline default when the user never sent a status.
func (s *LocationService) GetStatus(ctx context.Context, rawUserID string) (*Status, error) {
	userID, err := requireID("userId", rawUserID)
	if err != nil {
		return nil, err
	}

	var status models.UserStatus
	err = s.env.read(ctx).Where("user_id = ?", userID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Status{UserID: userID}, nil
	}
	if err != nil {
		return nil, s.env.fail("get status", err)
	}
	return s.statusOf(status), nil
}

func (s *LocationService) statusOf(status models.UserStatus) *Status {
	lastSeen := status.LastSeen.UTC()
	return &Status{
		UserID:         status.UserID,
		IsBroadcasting: status.IsBroadcasting,
		LastSeen:       &lastSeen,
		IsOnline:       s.env.now().Sub(lastSeen) <= OnlineWindow,
	}
}
