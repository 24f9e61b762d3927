package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pingpoint/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	imagePrefix   = "data:image/jpeg;base64,"
	maxImageBytes = 2 << 20
)

// ProfileItemInput is a profile item as sent by clients. Both
// {"type","data"} and {"item_type","item_data"} shapes decode into it.
type ProfileItemInput struct {
	Type string
	Data json.RawMessage
}

func (in *ProfileItemInput) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type     string          `json:"type"`
		Data     json.RawMessage `json:"data"`
		ItemType string          `json:"item_type"`
		ItemData json.RawMessage `json:"item_data"`
	}
	// anything that is not an object stays empty and is rejected as InvalidItem
	if err := json.Unmarshal(b, &raw); err != nil {
		*in = ProfileItemInput{}
		return nil
	}
	in.Type, in.Data = raw.Type, raw.Data
	if in.Type == "" && len(in.Data) == 0 {
		in.Type, in.Data = raw.ItemType, raw.ItemData
	}
	return nil
}

func (in ProfileItemInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{in.Type, in.Data})
}

func (in ProfileItemInput) validate() error {
	itemType := strings.TrimSpace(in.Type)
	if itemType == "" || len(itemType) > 50 {
		return ErrInvalidItem.With("item type is required")
	}
	if itemType == models.ItemTypeProfileImage {
		return ErrInvalidItem.With("profile images are set through profileImage")
	}
	data := bytes.TrimSpace(in.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrInvalidItem.With("item %q has no data", itemType)
	}
	if !json.Valid(data) {
		return ErrInvalidItem.With("item %q data is not valid JSON", itemType)
	}
	return nil
}

type MoodBadgeInput struct {
	Mood     string `json:"mood"`
	Category string `json:"category"`
	Value    string `json:"value"`
}

type CreateProfileInput struct {
	Email        string             `json:"email"`
	Name         *string            `json:"name"`
	Items        []ProfileItemInput `json:"items"`
	ProfileImage *string            `json:"profileImage"`
}

// UpdateProfileInput changes only the fields that are present. Items and
// MoodBadges replace the whole existing set when supplied.
type UpdateProfileInput struct {
	Name         *string             `json:"name"`
	Email        *string             `json:"email"`
	Items        *[]ProfileItemInput `json:"items"`
	MoodBadges   *[]MoodBadgeInput   `json:"moodBadges"`
	ProfileImage *string             `json:"profileImage"`
}

type Profile struct {
	ID           uuid.UUID            `json:"id"`
	Email        string               `json:"email"`
	Name         *string              `json:"name"`
	DisplayName  string               `json:"displayName"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
	Items        []models.ProfileItem `json:"items"`
	ProfileImage *string              `json:"profileImage"`
	Location     *models.Location     `json:"location"`
	LatestMood   *string              `json:"latestMood"`
	MoodBadges   []models.MoodBadge   `json:"moodBadges"`
}

type ProfileService struct {
	env Env
}

func NewProfileService(env Env) *ProfileService {
	return &ProfileService{env: env.withDefaults()}
}

// CreateProfile registers a user with its items and optional image in one transaction.
func (s *ProfileService) CreateProfile(ctx context.Context, in CreateProfileInput) (*Profile, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, ErrMissingField.With("email is required")
	}

	user := models.User{Email: email, Name: normalizeName(in.Name)}
	err := s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateEmail.With("%s is already registered", email)
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateEmail.With("%s is already registered", email)
			}
			return err
		}
		if err := insertItems(tx, user.ID, in.Items); err != nil {
			return err
		}
		if in.ProfileImage != nil {
			return replaceImage(tx, user.ID, *in.ProfileImage)
		}
		return nil
	})
	if err != nil {
		return nil, s.env.fail("create profile", err)
	}
	return s.load(ctx, user.ID)
}

// GetProfile looks a user up by id when idOrEmail is a UUID and by email otherwise.
func (s *ProfileService) GetProfile(ctx context.Context, idOrEmail string) (*Profile, error) {
	key := strings.TrimSpace(idOrEmail)
	if key == "" {
		return nil, ErrMissingField.With("id or email is required")
	}

	query := s.env.read(ctx).Model(&models.User{})
	if id, ok := ParseID(key); ok {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("email = ?", normalizeEmail(key))
	}

	var user models.User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound.With("no user matches %q", key)
		}
		return nil, s.env.fail("get profile", err)
	}
	return s.assemble(ctx, user)
}

func (s *ProfileService) UpdateProfile(ctx context.Context, rawID string, in UpdateProfileInput) (*Profile, error) {
	id, err := requireID("id", rawID)
	if err != nil {
		return nil, err
	}

	err = s.env.write(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound.With("user %s does not exist", id)
			}
			return err
		}

		changes := map[string]any{}
		if in.Name != nil {
			changes["name"] = normalizeName(in.Name)
		}
		if in.Email != nil {
			email := normalizeEmail(*in.Email)
			if email == "" {
				return ErrMissingField.With("email cannot be empty")
			}
			if email != user.Email {
				var count int64
				if err := tx.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					return ErrDuplicateEmail.With("%s is already registered", email)
				}
				changes["email"] = email
			}
		}
		if len(changes) > 0 {
			changes["updated_at"] = s.env.now()
			if err := tx.Model(&user).Updates(changes).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateEmail
				}
				return err
			}
		}

		if in.Items != nil {
			if err := tx.Where("user_id = ? AND item_type <> ?", id, models.ItemTypeProfileImage).
				Delete(&models.ProfileItem{}).Error; err != nil {
				return err
			}
			if err := insertItems(tx, id, *in.Items); err != nil {
				return err
			}
		}

		if in.MoodBadges != nil {
			if err := replaceMoodBadges(tx, id, *in.MoodBadges); err != nil {
				return err
			}
		}

		if in.ProfileImage != nil {
			return replaceImage(tx, id, *in.ProfileImage)
		}
		return nil
	})
	if err != nil {
		return nil, s.env.fail("update profile", err)
	}
	return s.load(ctx, id)
}

func (s *ProfileService) load(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var user models.User
	if err := s.env.write(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, s.env.fail("load profile", err)
	}
	return s.assemble(ctx, user)
}

func (s *ProfileService) assemble(ctx context.Context, user models.User) (*Profile, error) {
	orm := s.env.read(ctx)
	profile := &Profile{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		DisplayName: user.DisplayName(),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		Items:       []models.ProfileItem{},
		MoodBadges:  []models.MoodBadge{},
	}

	if err := orm.Where("user_id = ? AND item_type <> ?", user.ID, models.ItemTypeProfileImage).
		Order("created_at DESC").Find(&profile.Items).Error; err != nil {
		return nil, s.env.fail("profile items", err)
	}

	var images []models.ProfileItem
	if err := orm.Where("user_id = ? AND item_type = ?", user.ID, models.ItemTypeProfileImage).
		Order("created_at DESC").Limit(1).Find(&images).Error; err != nil {
		return nil, s.env.fail("profile image", err)
	}
	if len(images) == 1 {
		var uri string
		if err := json.Unmarshal(images[0].ItemData, &uri); err == nil {
			profile.ProfileImage = &uri
		}
	}

	var locations []models.Location
	if err := orm.Where("user_id = ?", user.ID).Order("updated_at DESC").Limit(1).Find(&locations).Error; err != nil {
		return nil, s.env.fail("profile location", err)
	}
	if len(locations) == 1 {
		profile.Location = &locations[0]
	}

	var pings []models.Ping
	if err := orm.Select("mood").Where("user_id = ?", user.ID).Order("created_at DESC").Limit(1).Find(&pings).Error; err != nil {
		return nil, s.env.fail("profile latest ping", err)
	}
	if len(pings) == 1 {
		profile.LatestMood = &pings[0].Mood
	}

	if err := orm.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&profile.MoodBadges).Error; err != nil {
		return nil, s.env.fail("profile mood badges", err)
	}
	return profile, nil
}

func insertItems(tx *gorm.DB, userID uuid.UUID, items []ProfileItemInput) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([]models.ProfileItem, 0, len(items))
	for i, item := range items {
		if err := item.validate(); err != nil {
			var domainErr *Error
			if errors.As(err, &domainErr) {
				return domainErr.With("item %d: %s", i, domainErr.Details)
			}
			return err
		}
		rows = append(rows, models.ProfileItem{
			UserID:   userID,
			ItemType: strings.TrimSpace(item.Type),
			ItemData: datatypes.JSON(bytes.TrimSpace(item.Data)),
		})
	}
	return tx.Create(&rows).Error
}

func replaceMoodBadges(tx *gorm.DB, userID uuid.UUID, badges []MoodBadgeInput) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.MoodBadge{}).Error; err != nil {
		return err
	}
	if len(badges) == 0 {
		return nil
	}
	rows := make([]models.MoodBadge, 0, len(badges))
	for i, b := range badges {
		mood := strings.TrimSpace(b.Mood)
		if mood == "" {
			return ErrMissingField.With("moodBadges[%d].mood is required", i)
		}
		rows = append(rows, models.MoodBadge{
			UserID:   userID,
			Mood:     mood,
			Category: strings.TrimSpace(b.Category),
			Value:    strings.TrimSpace(b.Value),
		})
	}
	return tx.Create(&rows).Error
}

// replaceImage keeps at most one profile_image item per user.
func replaceImage(tx *gorm.DB, userID uuid.UUID, image string) error {
	if err := ValidateImage(image); err != nil {
		return err
	}
	if err := tx.Where("user_id = ? AND item_type = ?", userID, models.ItemTypeProfileImage).
		Delete(&models.ProfileItem{}).Error; err != nil {
		return err
	}
	data, err := json.Marshal(image)
	if err != nil {
		return err
	}
	return tx.Create(&models.ProfileItem{
		UserID:   userID,
		ItemType: models.ItemTypeProfileImage,
		ItemData: datatypes.JSON(data),
	}).Error
}

// ValidateImage accepts a base64 JPEG data URI whose payload decodes to at most 2 MiB.
func ValidateImage(image string) error {
	if !strings.HasPrefix(image, imagePrefix) {
		return ErrInvalidImage.With("image must start with %s", imagePrefix)
	}
	payload := strings.TrimPrefix(image, imagePrefix)
	if payload == "" {
		return ErrInvalidImage.With("image payload is empty")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxImageBytes+2 {
		return ErrInvalidImage.With("image exceeds %d bytes", maxImageBytes)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return ErrInvalidImage.With("image payload is not valid base64")
	}
	if len(decoded) > maxImageBytes {
		return ErrInvalidImage.With("image exceeds %d bytes", maxImageBytes)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
